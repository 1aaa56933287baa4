package health

import (
	"encoding/json"
	"net/http"
)

// Check reports an unhealthy dependency by returning an error.
type Check func() error

// Handler returns a lightweight health check endpoint. Any failing check
// turns the response into 503 with the failure listed under its name.
func Handler(checks map[string]Check) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ok"}

		for name, check := range checks {
			if err := check(); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	})
}
