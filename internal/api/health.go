package api

import (
	"context"
	"net/http"

	"github.com/antonrybalko/wfm-mbaas-go/internal/web"
)

// HealthHandler returns a health check handler function that responds with
// 200 OK and JSON {"status":"ok"} while check passes, and 503 with the
// failure otherwise.
func HealthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := check(r.Context()); err != nil {
			web.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}

		web.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
