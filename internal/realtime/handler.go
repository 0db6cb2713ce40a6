package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"whatsrelay/internal/constants"
	appErrors "whatsrelay/internal/errors"
	"whatsrelay/internal/models"
)

// MessageSender persists a client-originated message and publishes it.
type MessageSender interface {
	SendOutgoing(ctx context.Context, out models.OutgoingMessage) (*models.Message, error)
}

// Handler upgrades HTTP requests to websocket connections attached to a Hub.
type Handler struct {
	hub            *Hub
	sender         MessageSender
	logger         *logrus.Logger
	queueSize      int
	pingInterval   time.Duration
	writeTimeout   time.Duration
	originPatterns []string
}

func NewHandler(hub *Hub, sender MessageSender, cfg models.RealtimeConfig, allowedOrigins []string, logger *logrus.Logger) *Handler {
	if cfg.PingIntervalSec <= 0 {
		cfg.PingIntervalSec = constants.DefaultPingIntervalSec
	}
	if cfg.WriteTimeoutSec <= 0 {
		cfg.WriteTimeoutSec = constants.DefaultRealtimeWriteSec
	}
	return &Handler{
		hub:            hub,
		sender:         sender,
		logger:         logger,
		queueSize:      cfg.SendQueueSize,
		pingInterval:   time.Duration(cfg.PingIntervalSec) * time.Second,
		writeTimeout:   time.Duration(cfg.WriteTimeoutSec) * time.Second,
		originPatterns: originPatterns(allowedOrigins),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// http.Server read/write timeouts would otherwise cut long-lived sockets.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.WithError(err).Warn("Failed to accept websocket connection")
		return
	}
	conn.SetReadLimit(constants.DefaultRealtimeReadLimit)

	client := NewClient(h.queueSize)
	if err := h.hub.Register(client); err != nil {
		_ = conn.Close(websocket.StatusTryAgainLater, ReasonShutdown)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	defer conn.CloseNow()
	defer h.hub.Unregister(client)

	logger := h.logger.WithField("connection_id", client.ID())
	logger.Info("Realtime connection opened")

	go h.writeLoop(ctx, conn, client)
	go h.pingLoop(ctx, conn)

	err = h.readLoop(ctx, conn, client)
	switch status := websocket.CloseStatus(err); {
	case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
		logger.Info("Realtime connection closed")
	case errors.Is(err, context.Canceled):
		logger.Debug("Realtime connection cancelled")
	default:
		logger.WithError(err).Info("Realtime connection ended")
	}
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, client *Client) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			h.sendError(client, appErrors.ErrCodeMalformedPayload, "binary frames are not supported")
			continue
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.sendError(client, appErrors.ErrCodeMalformedPayload, "frame is not valid JSON")
			continue
		}
		h.handleFrame(ctx, client, frame)
	}
}

func (h *Handler) handleFrame(ctx context.Context, client *Client, frame inboundFrame) {
	switch frame.Event {
	case models.EventJoinConversation:
		conversationID, err := conversationRef(frame.Data)
		if err != nil {
			h.sendError(client, appErrors.ErrCodeValidationFailed, err.Error())
			return
		}
		h.hub.Join(client, conversationID)

	case models.EventLeaveConversation:
		conversationID, err := conversationRef(frame.Data)
		if err != nil {
			h.sendError(client, appErrors.ErrCodeValidationFailed, err.Error())
			return
		}
		h.hub.Leave(client, conversationID)

	case models.EventSendMessage:
		var out models.OutgoingMessage
		if err := json.Unmarshal(frame.Data, &out); err != nil {
			h.sendError(client, appErrors.ErrCodeMalformedPayload, "send-message data must be an object")
			return
		}
		if _, err := h.sender.SendOutgoing(ctx, out); err != nil {
			h.logger.WithError(err).WithField("connection_id", client.ID()).Warn("Failed to send realtime message")
			h.sendError(client, appErrors.GetCode(err), appErrors.GetUserMessage(err))
		}

	default:
		h.logger.WithField("event", frame.Event).Debug("Ignoring unknown realtime event")
	}
}

func (h *Handler) sendError(client *Client, code appErrors.ErrorCode, message string) {
	h.hub.SendTo(client, models.RealtimeEvent{
		Event: models.EventError,
		Data:  models.ErrorEvent{Code: string(code), Message: message},
	})
}

// writeLoop drains the client queue until the hub closes it or ctx ends.
func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, client *Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-client.Frames():
			if !ok {
				status := websocket.StatusNormalClosure
				switch client.CloseReason() {
				case ReasonSlowConsumer:
					status = websocket.StatusPolicyViolation
				case ReasonShutdown:
					status = websocket.StatusGoingAway
				}
				_ = conn.Close(status, client.CloseReason())
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				h.logger.WithError(err).WithField("connection_id", client.ID()).Debug("Realtime write failed")
				conn.CloseNow()
				return
			}
		}
	}
}

func (h *Handler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				conn.CloseNow()
				return
			}
		}
	}
}

// originPatterns converts configured origins such as "http://localhost:3000"
// into the host patterns websocket.Accept matches against.
func originPatterns(origins []string) []string {
	var patterns []string
	for _, origin := range origins {
		if origin == "*" {
			return []string{"*"}
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			patterns = append(patterns, origin)
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}
