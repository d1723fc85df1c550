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

/*
Package logger provides structured JSON logging for LandmarkLens
components.

Logs are written as one JSON object per line to stdout, so they are
directly consumable by CloudWatch, Loki, or any other log aggregation
system.

Each log entry includes:
  - Timestamp (RFC3339Nano format)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (server, ledger, vision, billing)
  - Instance ID and container name
  - User ID (the account a request was attributed to)
  - Request ID (for request correlation)
  - Custom fields

# Usage

Create a logger for your component:

	log := logger.New("server")

Log messages with user and request context:

	log.Info(userID, requestID, "classification allowed", map[string]interface{}{
	    "used_free": true,
	    "credits":   4,
	})
*/
package logger
