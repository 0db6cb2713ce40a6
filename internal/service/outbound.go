package service

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"whatsrelay/internal/constants"
	appErrors "whatsrelay/internal/errors"
	"whatsrelay/internal/metrics"
	"whatsrelay/internal/models"
	"whatsrelay/internal/tracing"
	"whatsrelay/internal/validation"
)

// OutboundService records client-originated messages and client status
// changes. Nothing is delivered to the provider.
type OutboundService struct {
	store       MessageStore
	dispatcher  *Dispatcher
	logger      *logrus.Logger
	business    models.BusinessConfig
	now         func() time.Time
	newExternal func() string
}

func NewOutboundService(store MessageStore, dispatcher *Dispatcher, business models.BusinessConfig, logger *logrus.Logger) *OutboundService {
	if business.PhoneNumber == "" {
		business.PhoneNumber = constants.DefaultBusinessPhoneNumber
	}
	if business.DisplayName == "" {
		business.DisplayName = constants.DefaultBusinessDisplayName
	}
	return &OutboundService{
		store:       store,
		dispatcher:  dispatcher,
		logger:      logger,
		business:    business,
		now:         time.Now,
		newExternal: func() string { return constants.OutboundIDPrefix + ulid.Make().String() },
	}
}

// SendOutgoing persists a message written by a client and publishes it.
func (s *OutboundService) SendOutgoing(ctx context.Context, out models.OutgoingMessage) (*models.Message, error) {
	ctx, span := tracing.StartSpan(ctx, "outbound.send")
	defer span.End()

	out.ConversationID = validation.NormalizeConversationID(out.ConversationID)
	if err := validation.ValidateConversationID(out.ConversationID); err != nil {
		metrics.RecordOutbound(metrics.OutcomeFailed)
		return nil, err
	}
	if err := validation.ValidateContent(out.Content); err != nil {
		metrics.RecordOutbound(metrics.OutcomeFailed)
		return nil, err
	}
	contentType := out.ContentType
	if contentType == "" {
		contentType = models.TextMessage
	}
	if _, ok := models.ParseContentType(string(contentType)); !ok {
		metrics.RecordOutbound(metrics.OutcomeFailed)
		return nil, appErrors.NewValidationError("contentType", string(contentType), "unsupported content type")
	}

	msg := &models.Message{
		ExternalID:          s.newExternal(),
		StatusCorrelationID: out.ClientID,
		ConversationID:      out.ConversationID,
		SenderDisplayName:   s.business.DisplayName,
		Content:             out.Content,
		ContentType:         contentType,
		OccurredAt:          s.now().UTC(),
		DeliveryStatus:      models.DeliveryStatusSent,
		Direction:           models.DirectionOutgoing,
		From:                s.business.PhoneNumber,
		To:                  out.ConversationID,
	}
	span.SetAttributes(attribute.String("message.content_type", string(contentType)))

	created, err := s.store.InsertIfAbsent(ctx, msg)
	if err != nil {
		metrics.RecordOutbound(metrics.OutcomeFailed)
		tracing.RecordError(ctx, err)
		return nil, appErrors.NewStoreError("insert outgoing message", err)
	}
	if !created {
		// ULIDs carry 80 random bits; a collision means the clock or entropy
		// source is broken.
		metrics.RecordOutbound(metrics.OutcomeFailed)
		return nil, appErrors.New(appErrors.ErrCodeInternalError, "generated message id already exists").
			WithContext("external_id", msg.ExternalID)
	}

	metrics.RecordOutbound(metrics.OutcomeCreated)
	s.logger.WithFields(messageFields(ctx, msg)).Info("Stored outgoing message")

	s.dispatcher.Dispatch(models.DomainEvent{Kind: models.MessageCreated, Message: msg})
	return msg, nil
}

// UpdateStatus sets the delivery status of a message identified by external
// id or status correlation id and notifies its room.
func (s *OutboundService) UpdateStatus(ctx context.Context, id string, status models.DeliveryStatus) (*models.Message, error) {
	if err := validation.ValidateMessageID(id); err != nil {
		return nil, err
	}
	if !status.IsKnown() {
		return nil, appErrors.NewValidationError("status", string(status), "status must be one of sent, delivered, read, failed")
	}

	msg, err := s.store.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, appErrors.NewStoreError("update status", err)
	}
	if msg == nil {
		return nil, appErrors.NewNotFoundError("message", id)
	}

	s.logger.WithFields(logrus.Fields{
		LogFieldMessageID: maskID(ctx, msg.ExternalID),
		LogFieldStatus:    string(status),
	}).Debug("Updated message status")

	s.dispatcher.DispatchStatusToRoom(msg)
	return msg, nil
}
