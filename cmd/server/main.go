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

// Package main is the entry point for the LandmarkLens backend service.
//
// The backend meters landmark classification for the mobile app:
// - Enforces the daily free quota and paid credit balance atomically
// - Calls the Gemini vision API for photo classification
// - Verifies and credits Google Play purchases exactly once
//
// Usage:
//
//	./server
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8080)
//	REDIS_URL - Redis connection URL for the usage ledger
//	GEMINI_API_KEY - Google API key for the vision provider
//	PLAY_PACKAGE_NAME - Android package for purchase verification
//	DATABASE_URL - PostgreSQL connection string for usage events
package main

import (
	"log"

	"landmarklens/backend/server"
)

func main() {
	if err := server.Run(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
