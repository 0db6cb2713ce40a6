package main

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"whatsrelay/internal/metrics"
	"whatsrelay/internal/service"
	"whatsrelay/internal/tracing"
)

// handleMetrics returns the in-process registry snapshot as JSON. Prometheus
// scrapes /metrics instead.
func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := tracing.GetRequestID(r.Context())

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")

		if err := encoder.Encode(metrics.GetAllMetrics()); err != nil {
			s.logger.WithFields(logrus.Fields{
				service.LogFieldRequestID: requestID,
				"error":                   err,
			}).Error("Failed to encode metrics response")

			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	}
}
