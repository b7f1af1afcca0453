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

package supervisor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	engineState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "xunlei_engine_state",
		Help: "Supervisor state: 0 idle, 1 mounting, 2 running, 3 shutting down, 4 stopped",
	})

	engineExits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xunlei_engine_exits_total",
		Help: "Engine exits that were not requested by the supervisor",
	})
)
