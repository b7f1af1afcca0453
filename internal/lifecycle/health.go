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

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrHealthCheckTimeout is returned when the gateway does not become
// healthy in time.
var ErrHealthCheckTimeout = errors.New("health check timeout")

// HealthChecker polls the gateway's /healthz with exponential backoff.
type HealthChecker struct {
	endpoint   string
	client     *http.Client
	initial    time.Duration
	max        time.Duration
	multiplier float64
}

// HealthCheckResult is the outcome of one check.
type HealthCheckResult struct {
	Success      bool
	StatusCode   int
	ResponseTime time.Duration
	Error        error
}

// NewHealthChecker polls endpoint, backing off from 50ms to 1s.
func NewHealthChecker(endpoint string) *HealthChecker {
	return &HealthChecker{
		endpoint:   endpoint,
		client:     &http.Client{Timeout: 5 * time.Second},
		initial:    50 * time.Millisecond,
		max:        time.Second,
		multiplier: 2,
	}
}

// WithBackoff overrides the retry schedule.
func (h *HealthChecker) WithBackoff(initial, max time.Duration, multiplier float64) *HealthChecker {
	h.initial = initial
	h.max = max
	h.multiplier = multiplier
	return h
}

// WithHTTPClient replaces the client, e.g. to trust a self-signed gateway.
func (h *HealthChecker) WithHTTPClient(client *http.Client) *HealthChecker {
	h.client = client
	return h
}

// Check performs one request. Any 2xx is healthy.
func (h *HealthChecker) Check(ctx context.Context) *HealthCheckResult {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.endpoint, nil)
	if err != nil {
		return &HealthCheckResult{Error: fmt.Errorf("failed to create request: %w", err)}
	}

	resp, err := h.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return &HealthCheckResult{ResponseTime: elapsed, Error: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	res := &HealthCheckResult{
		Success:      resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode:   resp.StatusCode,
		ResponseTime: elapsed,
	}
	if !res.Success {
		res.Error = fmt.Errorf("unhealthy: HTTP %d", resp.StatusCode)
	}
	return res
}

// WaitUntilHealthy polls until success, timeout, or ctx is done, and
// returns the number of attempts. onAttempt, when set, sees every result.
func (h *HealthChecker) WaitUntilHealthy(ctx context.Context, timeout time.Duration, onAttempt func(*HealthCheckResult, int)) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	interval := h.initial
	for attempt := 1; ; attempt++ {
		res := h.Check(ctx)
		if onAttempt != nil {
			onAttempt(res, attempt)
		}
		if res.Success {
			return attempt, nil
		}

		select {
		case <-ctx.Done():
			return attempt, fmt.Errorf("%w after %d attempts: %v", ErrHealthCheckTimeout, attempt, res.Error)
		case <-time.After(interval):
		}

		interval = time.Duration(float64(interval) * h.multiplier)
		if interval > h.max {
			interval = h.max
		}
	}
}
