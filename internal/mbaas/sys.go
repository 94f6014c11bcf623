package mbaas

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/antonrybalko/wfm-mbaas-go/internal/web"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

// healthTimeout bounds every individual health check
const healthTimeout = 5 * time.Second

// HealthDetail is the outcome of one health check
type HealthDetail struct {
	Description string `json:"description"`
	TestStatus  string `json:"test_status"`
	Result      string `json:"result"`
	Runtime     int64  `json:"runtime"`
}

// HealthResponse is the body of /sys/info/health
type HealthResponse struct {
	Status  string         `json:"status"`
	Summary string         `json:"summary"`
	Details []HealthDetail `json:"details"`
}

func (a *API) sys(securable []string) http.Handler {
	endpoints := append([]string{}, securable...)

	r := chi.NewRouter()
	r.Get("/info/ping", func(w http.ResponseWriter, r *http.Request) {
		web.WriteJSON(w, http.StatusOK, "OK")
	})
	r.Get("/info/version", func(w http.ResponseWriter, r *http.Request) {
		web.WriteJSON(w, http.StatusOK, map[string]string{
			"version": a.version,
			"go":      runtime.Version(),
		})
	})
	r.Get("/info/memory", func(w http.ResponseWriter, r *http.Request) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		web.WriteJSON(w, http.StatusOK, map[string]any{
			"alloc":      m.Alloc,
			"totalAlloc": m.TotalAlloc,
			"sys":        m.Sys,
			"heapInuse":  m.HeapInuse,
			"numGC":      m.NumGC,
			"goroutines": runtime.NumGoroutine(),
			"uptime":     time.Since(a.started).Round(time.Second).String(),
		})
	})
	r.Get("/info/endpoints", func(w http.ResponseWriter, r *http.Request) {
		web.WriteJSON(w, http.StatusOK, map[string][]string{"endpoints": endpoints})
	})
	r.Get("/info/health", a.health)
	return r
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Summary: "No issues to report. All tests passed without error"}

	names := a.healthChecks()
	details := make([]HealthDetail, len(names))

	// Checks run concurrently; details keep the sorted name order
	g := new(errgroup.Group)
	for i, name := range names {
		i, name := i, name
		a.mu.RLock()
		check := a.checks[name]
		a.mu.RUnlock()

		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()

			start := time.Now()
			err := check(ctx)

			details[i] = HealthDetail{
				Description: name,
				TestStatus:  "ok",
				Result:      "OK",
				Runtime:     time.Since(start).Milliseconds(),
			}
			if err != nil {
				details[i].TestStatus = "crit"
				details[i].Result = err.Error()
				a.logger.Warnw("Health check failed", "check", name, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, detail := range details {
		if detail.TestStatus != "ok" {
			resp.Status = "crit"
			resp.Summary = "Some health checks failed"
		}
	}
	resp.Details = details

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	web.WriteJSON(w, status, resp)
}
