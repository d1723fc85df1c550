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
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics
var (
	promRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landmarklens_server_requests_total",
			Help: "Total number of requests processed by the server",
		},
		[]string{"route", "status"},
	)
	promRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "landmarklens_server_request_duration_milliseconds",
			Help:    "Request duration in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"route"},
	)
	promQuotaDenied = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "landmarklens_server_quota_denied_total",
			Help: "Total number of requests denied by the quota gate",
		},
	)
	promFreeConsumed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "landmarklens_server_free_uses_consumed_total",
			Help: "Total number of free daily uses consumed",
		},
	)
	promCreditsConsumed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "landmarklens_server_credits_consumed_total",
			Help: "Total number of paid credits consumed",
		},
	)
	promCreditsGranted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "landmarklens_server_credits_granted_total",
			Help: "Total number of credits granted for verified purchases",
		},
	)
	promStoreErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "landmarklens_server_store_errors_total",
			Help: "Total number of ledger store failures (denials by unavailability)",
		},
	)
)

func init() {
	// Register Prometheus metrics
	prometheus.MustRegister(promRequestsTotal)
	prometheus.MustRegister(promRequestDuration)
	prometheus.MustRegister(promQuotaDenied)
	prometheus.MustRegister(promFreeConsumed)
	prometheus.MustRegister(promCreditsConsumed)
	prometheus.MustRegister(promCreditsGranted)
	prometheus.MustRegister(promStoreErrors)
}
