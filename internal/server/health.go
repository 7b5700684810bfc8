package server

import (
	"context"
	"encoding/json"
	"net/http"
	"reflect"
	"time"

	"github.com/rs/zerolog/log"
)

func handleHealth(checkers []Checker) http.HandlerFunc {
	type result struct {
		Status string `json:"status"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]result{}
		status := http.StatusOK

		for _, c := range checkers {
			if isNil(c) {
				continue
			}
			if err := c.HealthCheck(ctx); err != nil {
				log.Error().Err(err).Str("name", c.Name()).Msg("Health check failed")
				checks[c.Name()] = result{Status: "error"}
				status = http.StatusServiceUnavailable
				continue
			}
			checks[c.Name()] = result{Status: "ok"}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(checks)
	}
}

// isNil catches typed nil pointers such as a disabled *db.Redis.
func isNil(c Checker) bool {
	if c == nil {
		return true
	}
	v := reflect.ValueOf(c)
	return v.Kind() == reflect.Ptr && v.IsNil()
}
