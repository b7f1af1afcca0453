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

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	authDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xunlei_auth_decisions_total",
			Help: "Authentication decisions on protected routes by result",
		},
		[]string{"result"},
	)

	loginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xunlei_login_attempts_total",
			Help: "Login submissions by result",
		},
		[]string{"result"},
	)
)

func recordDecision(result string) {
	authDecisions.WithLabelValues(result).Inc()
}

func recordLogin(result string) {
	loginAttempts.WithLabelValues(result).Inc()
}
