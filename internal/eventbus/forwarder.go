package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"whatsrelay/internal/circuitbreaker"
	"whatsrelay/internal/constants"
	"whatsrelay/internal/metrics"
	"whatsrelay/internal/models"
)

// publishConn is the part of *nats.Conn the forwarder uses.
type publishConn interface {
	Publish(subject string, data []byte) error
}

// Forwarder mirrors realtime events onto NATS subjects. Failures are logged
// and never reach the caller. Repeated failures open a circuit breaker and
// events are dropped until it recovers.
type Forwarder struct {
	conn    publishConn
	nc      *nats.Conn
	prefix  string
	breaker *circuitbreaker.Breaker
	logger  *logrus.Logger
	now     func() time.Time
}

// Connect dials the NATS server at url and returns a forwarder publishing
// under prefix.
func Connect(url, prefix string, logger *logrus.Logger) (*Forwarder, error) {
	nc, err := nats.Connect(url,
		nats.Name("whatsrelay"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.WithError(err).Warn("Disconnected from NATS")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.WithField("url", c.ConnectedUrlRedacted()).Info("Reconnected to NATS")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	f := newForwarder(nc, prefix, logger)
	f.nc = nc
	logger.WithField("url", nc.ConnectedUrlRedacted()).Info("Connected to NATS")
	return f, nil
}

func newForwarder(conn publishConn, prefix string, logger *logrus.Logger) *Forwarder {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = constants.DefaultNATSSubjectPrefix
	}
	return &Forwarder{
		conn:    conn,
		prefix:  prefix,
		breaker: circuitbreaker.New("nats", constants.ForwarderMaxFailures, constants.ForwarderCooldownSec*time.Second, logger),
		logger:  logger,
		now:     time.Now,
	}
}

func (f *Forwarder) PublishToConversation(conversationID string, event models.RealtimeEvent) {
	f.publish(f.ConversationSubject(conversationID), models.ForwardedEvent{
		Event:          event.Event,
		ConversationID: conversationID,
		Data:           event.Data,
		PublishedAt:    f.now().UTC(),
	})
}

func (f *Forwarder) PublishGlobal(event models.RealtimeEvent) {
	f.publish(f.GlobalSubject(), models.ForwardedEvent{
		Event:       event.Event,
		Data:        event.Data,
		PublishedAt: f.now().UTC(),
	})
}

// ConversationSubject returns <prefix>.conversation.<id>. Characters that
// carry meaning in NATS subjects are replaced in the id.
func (f *Forwarder) ConversationSubject(conversationID string) string {
	return f.prefix + ".conversation." + subjectToken(conversationID)
}

func (f *Forwarder) GlobalSubject() string {
	return f.prefix + ".global"
}

// BreakerStats reports the state of the publish circuit breaker.
func (f *Forwarder) BreakerStats() circuitbreaker.Stats {
	return f.breaker.Stats()
}

// Close drains pending publishes and closes the connection.
func (f *Forwarder) Close() error {
	if f.nc == nil {
		return nil
	}
	return f.nc.Drain()
}

func (f *Forwarder) publish(subject string, envelope models.ForwardedEvent) {
	data, err := json.Marshal(envelope)
	if err != nil {
		f.logger.WithError(err).WithField("event", envelope.Event).Error("Failed to encode forwarded event")
		return
	}
	err = f.breaker.Execute(context.Background(), func(context.Context) error {
		return f.conn.Publish(subject, data)
	})
	switch {
	case err == nil:
		metrics.RecordEventForwarded("published")
	case circuitbreaker.IsOpen(err):
		metrics.RecordEventForwarded("dropped")
		f.logger.WithField("event", envelope.Event).Debug("NATS circuit open, dropping forwarded event")
	default:
		metrics.RecordEventForwarded("failed")
		f.logger.WithError(err).WithFields(logrus.Fields{
			"event":   envelope.Event,
			"subject": subject,
		}).Warn("Failed to forward event to NATS")
	}
}

func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
