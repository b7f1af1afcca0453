// Copyright 2025 Tom Barlow
//
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

package cgi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xunlei_cgi_dispatch_total",
			Help: "CGI dispatches by outcome (ok, spawn, io, protocol, bad_request)",
		},
		[]string{"outcome"},
	)

	dispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xunlei_cgi_dispatch_duration_seconds",
			Help:    "Wall time of a CGI dispatch, spawn to parsed response",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
)

func observeDispatch(outcome string, start time.Time) {
	dispatchTotal.WithLabelValues(outcome).Inc()
	dispatchDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}
