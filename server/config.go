// Copyright 2025 LandmarkLens
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the backend. Values are fixed at
// startup and read-only afterwards: the process keeps no other state,
// which is what makes horizontal scaling safe.
type Config struct {
	Port string `yaml:"port"`

	RedisURL string `yaml:"redis_url"`

	FreeDailyLimit     int           `yaml:"free_daily_limit"`
	CreditsPerPurchase int           `yaml:"credits_per_purchase"`
	PurchaseMarkerTTL  time.Duration `yaml:"purchase_marker_ttl"`
	FreeCounterTTL     time.Duration `yaml:"free_counter_ttl"`

	DevBypassToken string `yaml:"dev_bypass_token"`
	JWTSecret      string `yaml:"jwt_secret"`

	GeminiAPIKey string `yaml:"gemini_api_key"`
	GeminiModel  string `yaml:"gemini_model"`

	PlayPackageName     string `yaml:"play_package_name"`
	PlayCredentialsFile string `yaml:"play_credentials_file"`

	DatabaseURL   string `yaml:"database_url"`
	ArchiveBucket string `yaml:"archive_bucket"`
}

// LoadConfig builds the configuration: defaults, then the optional YAML
// file named by CONFIG_FILE, then environment variables on top.
func LoadConfig() (Config, error) {
	cfg := Config{
		Port:               "8080",
		RedisURL:           "redis://localhost:6379",
		FreeDailyLimit:     2,
		CreditsPerPurchase: 150,
		PurchaseMarkerTTL:  365 * 24 * time.Hour,
		FreeCounterTTL:     72 * time.Hour,
		GeminiModel:        "gemini-2.0-flash",
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.DevBypassToken = getEnv("DEV_BYPASS_TOKEN", cfg.DevBypassToken)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.GeminiAPIKey = getEnv("GEMINI_API_KEY", cfg.GeminiAPIKey)
	cfg.GeminiModel = getEnv("GEMINI_MODEL", cfg.GeminiModel)
	cfg.PlayPackageName = getEnv("PLAY_PACKAGE_NAME", cfg.PlayPackageName)
	cfg.PlayCredentialsFile = getEnv("PLAY_CREDENTIALS_FILE", cfg.PlayCredentialsFile)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.ArchiveBucket = getEnv("ARCHIVE_BUCKET", cfg.ArchiveBucket)

	var err error
	if cfg.FreeDailyLimit, err = getEnvInt("FREE_DAILY_LIMIT", cfg.FreeDailyLimit); err != nil {
		return Config{}, err
	}
	if cfg.FreeDailyLimit < 0 {
		return Config{}, fmt.Errorf("FREE_DAILY_LIMIT must not be negative, got %d", cfg.FreeDailyLimit)
	}
	if cfg.CreditsPerPurchase, err = getEnvInt("CREDITS_PER_PURCHASE", cfg.CreditsPerPurchase); err != nil {
		return Config{}, err
	}
	if cfg.CreditsPerPurchase <= 0 {
		return Config{}, fmt.Errorf("CREDITS_PER_PURCHASE must be positive, got %d", cfg.CreditsPerPurchase)
	}
	if cfg.PurchaseMarkerTTL, err = getEnvDuration("PURCHASE_MARKER_TTL", cfg.PurchaseMarkerTTL); err != nil {
		return Config{}, err
	}
	if cfg.FreeCounterTTL, err = getEnvDuration("FREE_COUNTER_TTL", cfg.FreeCounterTTL); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, value)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 72h, got %q", key, value)
	}
	return d, nil
}
