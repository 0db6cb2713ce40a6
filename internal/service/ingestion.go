package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"whatsrelay/internal/metrics"
	"whatsrelay/internal/models"
	"whatsrelay/internal/tracing"
)

// IngestReport counts the outcome of every item of one webhook delivery.
type IngestReport struct {
	Created   int `json:"created"`
	Duplicate int `json:"duplicate"`
	Updated   int `json:"updated"`
	Unmatched int `json:"unmatched"`
	Failed    int `json:"failed"`
}

// Add accumulates other into r.
func (r *IngestReport) Add(other IngestReport) {
	r.Created += other.Created
	r.Duplicate += other.Duplicate
	r.Updated += other.Updated
	r.Unmatched += other.Unmatched
	r.Failed += other.Failed
}

// IngestionService turns webhook deliveries into stored messages and domain
// events.
type IngestionService struct {
	store  MessageStore
	logger *logrus.Logger
	now    func() time.Time

	// seedMode is set when replaying stored webhook bodies. Created messages
	// get a status correlation id equal to their external id, and messages
	// sent by the business account are stored as outgoing.
	seedMode bool
}

func NewIngestionService(store MessageStore, logger *logrus.Logger) *IngestionService {
	return &IngestionService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// NewSeedIngestionService returns an ingestion service for replaying stored
// webhook bodies.
func NewSeedIngestionService(store MessageStore, logger *logrus.Logger) *IngestionService {
	s := NewIngestionService(store, logger)
	s.seedMode = true
	return s
}

// Ingest processes every message and status of payload. Item failures are
// logged and counted; they never abort the remaining items.
func (s *IngestionService) Ingest(ctx context.Context, payload *models.WebhookPayload) ([]models.DomainEvent, IngestReport) {
	var report IngestReport
	if payload == nil {
		return nil, report
	}

	if payload.Object != models.ObjectWhatsAppBusinessAccount {
		s.logger.WithField(LogFieldObject, payload.Object).Debug("Skipping webhook: unsupported object")
		return nil, report
	}

	ctx, span := tracing.StartSpan(ctx, "webhook.ingest",
		attribute.Int("webhook.entries", len(payload.Entry)),
	)
	defer span.End()

	receivedAt := s.now().UTC()
	var events []models.DomainEvent

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != models.FieldMessages {
				s.logger.WithField(LogFieldField, change.Field).Debug("Skipping webhook change: unsupported field")
				continue
			}

			for _, raw := range change.Value.Messages {
				if event := s.ingestMessage(ctx, raw, change.Value, receivedAt, &report); event != nil {
					events = append(events, *event)
				}
			}
			for _, raw := range change.Value.Statuses {
				if event := s.ingestStatus(ctx, raw, &report); event != nil {
					events = append(events, *event)
				}
			}
		}
	}

	tracing.AddSpanAttributes(ctx,
		attribute.Int("webhook.created", report.Created),
		attribute.Int("webhook.duplicate", report.Duplicate),
		attribute.Int("webhook.updated", report.Updated),
		attribute.Int("webhook.unmatched", report.Unmatched),
		attribute.Int("webhook.failed", report.Failed),
	)
	return events, report
}

func (s *IngestionService) ingestMessage(ctx context.Context, raw json.RawMessage, value models.ChangeValue, receivedAt time.Time, report *IngestReport) *models.DomainEvent {
	msg, err := NormalizeMessage(raw, value, receivedAt)
	if err != nil {
		report.Failed++
		metrics.RecordWebhookMessage(metrics.OutcomeFailed)
		s.logger.WithError(err).Warn("Skipping webhook message: normalization failed")
		return nil
	}
	if s.seedMode {
		applySeedConventions(msg, value)
	}

	created, err := s.store.InsertIfAbsent(ctx, msg)
	if err != nil {
		report.Failed++
		metrics.RecordWebhookMessage(metrics.OutcomeFailed)
		tracing.RecordError(ctx, err)
		s.logger.WithError(err).WithFields(messageFields(ctx, msg)).Error("Failed to store webhook message")
		return nil
	}
	if !created {
		report.Duplicate++
		metrics.RecordWebhookMessage(metrics.OutcomeDuplicate)
		s.logger.WithFields(messageFields(ctx, msg)).Debug("Skipping duplicate webhook message")
		return nil
	}

	report.Created++
	metrics.RecordWebhookMessage(metrics.OutcomeCreated)
	s.logger.WithFields(messageFields(ctx, msg)).Debug("Stored webhook message")
	return &models.DomainEvent{Kind: models.MessageCreated, Message: msg}
}

func (s *IngestionService) ingestStatus(ctx context.Context, raw json.RawMessage, report *IngestReport) *models.DomainEvent {
	update, err := NormalizeStatus(raw)
	if err != nil {
		report.Failed++
		metrics.RecordWebhookStatus(metrics.OutcomeFailed)
		s.logger.WithError(err).Warn("Skipping webhook status: normalization failed")
		return nil
	}

	fields := logrus.Fields{
		LogFieldMessageID: maskID(ctx, update.TargetID),
		LogFieldStatus:    string(update.Status),
	}

	msg, err := s.store.UpdateStatus(ctx, update.TargetID, update.Status)
	if err != nil {
		report.Failed++
		metrics.RecordWebhookStatus(metrics.OutcomeFailed)
		tracing.RecordError(ctx, err)
		s.logger.WithError(err).WithFields(fields).Error("Failed to apply webhook status")
		return nil
	}
	if msg == nil {
		report.Unmatched++
		metrics.RecordWebhookStatus(metrics.OutcomeUnmatched)
		s.logger.WithFields(fields).Warn("Dropping status update: no matching message")
		return nil
	}

	report.Updated++
	metrics.RecordWebhookStatus(metrics.OutcomeUpdated)
	s.logger.WithFields(fields).Debug("Applied webhook status")
	return &models.DomainEvent{Kind: models.StatusChanged, Message: msg}
}

// applySeedConventions treats a message whose sender is not the listed
// contact as one the business sent to that contact.
func applySeedConventions(msg *models.Message, value models.ChangeValue) {
	msg.StatusCorrelationID = msg.ExternalID
	if len(value.Contacts) == 0 {
		return
	}
	contact := value.Contacts[0].WaID
	if contact == "" || contact == msg.From {
		return
	}
	msg.Direction = models.DirectionOutgoing
	msg.ConversationID = contact
	msg.To = contact
}
