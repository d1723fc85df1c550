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
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"google.golang.org/api/option"

	"landmarklens/backend/archive"
	"landmarklens/backend/billing"
	"landmarklens/backend/ledger"
	"landmarklens/backend/shared/logger"
	"landmarklens/backend/usage"
	"landmarklens/backend/vision/gemini"
)

// Run starts the backend and blocks until the listener fails.
func Run() error {
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	srv, cleanup, err := newServer(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	router := srv.routes()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Device-ID", "X-Bypass-Token"},
	})

	addr := ":" + cfg.Port
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      corsHandler.Handler(router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("🚀 LandmarkLens backend listening on port %s", cfg.Port)
	return httpServer.ListenAndServe()
}

// newServer builds a Server and its collaborators from the config.
// Collaborators gated on optional config (database, archive bucket,
// Play credentials) come up as nil and their features stay off.
func newServer(ctx context.Context, cfg Config) (*Server, func(), error) {
	appLogger := logger.New("landmarklens-backend")

	redisClient, err := ledger.Connect(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}
	log.Printf("✅ Connected to Redis")

	store := ledger.NewStore(redisClient, ledger.Config{
		FreeDailyLimit:    cfg.FreeDailyLimit,
		FreeCounterTTL:    cfg.FreeCounterTTL,
		PurchaseMarkerTTL: cfg.PurchaseMarkerTTL,
	})

	classifier, err := gemini.NewProvider(gemini.Config{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiModel,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating vision provider: %w", err)
	}

	var verifier PurchaseVerifier
	if cfg.PlayPackageName != "" {
		var opts []option.ClientOption
		if cfg.PlayCredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.PlayCredentialsFile))
		}
		playVerifier, err := billing.NewVerifier(ctx, cfg.PlayPackageName, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("creating purchase verifier: %w", err)
		}
		verifier = playVerifier
		log.Printf("✅ Play purchase verification enabled for %s", cfg.PlayPackageName)
	} else {
		log.Printf("⚠️  PLAY_PACKAGE_NAME not set - purchase verification disabled")
	}

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("opening usage database: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := db.PingContext(pingCtx); err != nil {
			cancel()
			db.Close()
			return nil, nil, fmt.Errorf("pinging usage database: %w", err)
		}
		cancel()
		log.Printf("✅ Usage database connected")
	} else {
		log.Printf("⚠️  DATABASE_URL not set - usage recording disabled")
	}

	var archiver *archive.Archiver
	if cfg.ArchiveBucket != "" {
		archiver, err = archive.New(ctx, cfg.ArchiveBucket)
		if err != nil {
			if db != nil {
				db.Close()
			}
			return nil, nil, fmt.Errorf("creating photo archiver: %w", err)
		}
		log.Printf("✅ Photo archive enabled on bucket %s", cfg.ArchiveBucket)
	}

	srv := &Server{
		cfg:        cfg,
		store:      store,
		log:        appLogger,
		classifier: classifier,
		verifier:   verifier,
		archiver:   archiver,
		recorder:   usage.NewRecorder(db),
	}

	cleanup := func() {
		if archiver != nil {
			archiver.Close()
		}
		if db != nil {
			db.Close()
		}
		redisClient.Close()
	}
	return srv, cleanup, nil
}

// routes registers every endpoint on a fresh router.
func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.healthHandler).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.HandleFunc("/api/v1/classify", s.classifyHandler).Methods("POST")
	router.HandleFunc("/api/v1/status", s.statusHandler).Methods("GET")
	router.HandleFunc("/api/v1/purchase/verify", s.purchaseVerifyHandler).Methods("POST")

	return router
}
