package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	appErrors "whatsrelay/internal/errors"
	"whatsrelay/internal/httputil"
	"whatsrelay/internal/models"
	"whatsrelay/internal/service"
	"whatsrelay/internal/tracing"
	"whatsrelay/internal/validation"
)

const healthCheckTimeout = 2 * time.Second

// handleWebhookVerify answers the provider's subscription handshake.
func (s *Server) handleWebhookVerify() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode := firstQuery(r, "hub.mode", "mode")
		token := firstQuery(r, "hub.verify_token", "verify_token")
		challenge := firstQuery(r, "hub.challenge", "challenge")

		if mode == "" || token == "" {
			s.writeError(w, r, appErrors.NewValidationError("hub.mode", mode, "mode and verify token are required"))
			return
		}
		if mode != "subscribe" || !tokensMatch(token, s.cfg.Webhook.VerifyToken) {
			s.logger.WithField(service.LogFieldRemoteIP, httputil.GetClientIP(r)).Warn("Webhook verification failed")
			s.writeError(w, r, appErrors.NewForbiddenError("webhook verification failed"))
			return
		}

		s.logger.Info("Webhook verified")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(challenge))
	}
}

// handleWebhook ingests a provider callback. Anything that parses is
// acknowledged with 200 so the provider does not redeliver; item failures
// are logged by the ingestion service.
func (s *Server) handleWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := validation.ValidateHTTPRequestSize(r, s.cfg.Server.MaxBodyBytes); err != nil {
			s.writeErrorStatus(w, r, http.StatusRequestEntityTooLarge, err)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				s.writeErrorStatus(w, r, http.StatusRequestEntityTooLarge,
					appErrors.NewValidationError("body", "", "request body too large"))
				return
			}
			s.writeError(w, r, appErrors.NewMalformedPayloadError(err))
			return
		}

		if err := verifySignature(r, body, s.cfg.Webhook.AppSecret); err != nil {
			s.logger.WithError(err).Warn("Rejected webhook with invalid signature")
			s.writeError(w, r, appErrors.NewAuthError(err.Error()))
			return
		}

		var payload models.WebhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			s.writeError(w, r, appErrors.NewMalformedPayloadError(err))
			return
		}

		ctx := s.requestContext(r)
		events, report := s.ingestion.Ingest(ctx, &payload)
		s.dispatcher.Dispatch(events...)

		s.logger.WithFields(logrus.Fields{
			service.LogFieldRequestID: tracing.GetRequestID(ctx),
			"created":                 report.Created,
			"duplicate":               report.Duplicate,
			"updated":                 report.Updated,
			"unmatched":               report.Unmatched,
			"failed":                  report.Failed,
		}).Info("Webhook processed")

		s.writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
	}
}

func (s *Server) handleListMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conversationID := mux.Vars(r)["conversationId"]

		page, err := intQuery(r, "page")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		limit, err := intQuery(r, "limit")
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		result, err := s.conversations.ListMessages(s.requestContext(r), conversationID, page, limit)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleSendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var out models.OutgoingMessage
		if !s.decodeJSON(w, r, &out) {
			return
		}

		msg, err := s.outbound.SendOutgoing(s.requestContext(r), out)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, msg)
	}
}

func (s *Server) handleUpdateStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Status models.DeliveryStatus `json:"status"`
		}
		if !s.decodeJSON(w, r, &req) {
			return
		}

		msg, err := s.outbound.UpdateStatus(s.requestContext(r), mux.Vars(r)["id"], req.Status)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, msg)
	}
}

func (s *Server) handleListConversations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conversations, err := s.conversations.ListConversations(s.requestContext(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if conversations == nil {
			conversations = []models.Conversation{}
		}
		s.writeJSON(w, http.StatusOK, conversations)
	}
}

func (s *Server) handleMarkRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		updated, err := s.conversations.MarkRead(s.requestContext(r), mux.Vars(r)["conversationId"])
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "updated": updated})
	}
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		status, code := "ok", http.StatusOK
		if err := s.store.Ping(ctx); err != nil {
			s.logger.WithError(err).Warn("Health check: store unavailable")
			status, code = "unavailable", http.StatusServiceUnavailable
		}

		s.writeJSON(w, code, map[string]any{
			"status":      status,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"connections": s.hub.Stats().Connections,
			"database":    s.store.Driver(),
		})
	}
}

func (s *Server) requestContext(r *http.Request) context.Context {
	return service.WithVerbose(r.Context(), s.verbose)
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, r, appErrors.NewMalformedPayloadError(err))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeErrorStatus(w, r, appErrors.HTTPStatusCode(err), err)
}

func (s *Server) writeErrorStatus(w http.ResponseWriter, r *http.Request, status int, err error) {
	requestID := tracing.GetRequestID(r.Context())
	if status >= http.StatusInternalServerError {
		appErrors.NewLogger(s.logger).LogError(err, "Request failed", logrus.Fields{
			service.LogFieldRequestID: requestID,
			service.LogFieldURL:       r.URL.Path,
		})
	}
	s.writeJSON(w, status, appErrors.ToHTTPResponse(err, requestID))
}

// intQuery parses an optional integer query parameter; absent means 0.
func intQuery(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErrors.NewValidationError(key, raw, "must be an integer")
	}
	return n, nil
}
