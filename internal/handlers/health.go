package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Healthz returns a liveness handler. When db is set it must answer a ping
// within two seconds.
func Healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				writeError(w, r, http.StatusServiceUnavailable, "Database unavailable")
				return
			}
		}
		writeSuccess(w, http.StatusOK, "OK", map[string]string{"status": "ok"})
	}
}
