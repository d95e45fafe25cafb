// Package health serves the liveness and readiness endpoints.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"time"
)

func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

type ReadinessReporter interface {
	Readiness() (ready bool, partitions []int32)
}

// Check reports a dependency as unavailable by returning an error.
type Check func(ctx context.Context) error

type Options struct {
	Checks map[string]Check
	// Consumer is nil when invalidation is disabled.
	Consumer ReadinessReporter
	Timeout  time.Duration
}

func Readiness(opts Options) http.HandlerFunc {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	names := make([]string, 0, len(opts.Checks))
	for n := range opts.Checks {
		names = append(names, n)
	}
	slices.Sort(names)

	return func(w http.ResponseWriter, r *http.Request) {
		type resp struct {
			Status     string            `json:"status"`
			Checks     map[string]string `json:"checks,omitempty"`
			Partitions []int32           `json:"partitions,omitempty"`
		}
		ctx, cancel := context.WithTimeout(r.Context(), opts.Timeout)
		defer cancel()

		ready := true
		out := resp{Checks: map[string]string{}}
		for _, n := range names {
			if err := opts.Checks[n](ctx); err != nil {
				ready = false
				out.Checks[n] = err.Error()
				continue
			}
			out.Checks[n] = "ok"
		}
		if opts.Consumer != nil {
			ok, parts := opts.Consumer.Readiness()
			if ok {
				out.Checks["kafka"] = "ok"
				out.Partitions = parts
			} else {
				ready = false
				out.Checks["kafka"] = "no partitions assigned"
			}
		}

		out.Status = "not_ready"
		if ready {
			out.Status = "ready"
		}
		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
