package service

import (
	"encoding/json"
	"fmt"
	"time"

	"whatsrelay/internal/models"
	"whatsrelay/internal/validation"
)

// NormalizeMessage converts one element of value.messages into a canonical
// incoming message. receivedAt is used when the provider timestamp is missing
// or unparseable.
func NormalizeMessage(raw json.RawMessage, value models.ChangeValue, receivedAt time.Time) (*models.Message, error) {
	var in models.InboundMessage
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("undecodable message: %w", err)
	}
	if in.ID == "" {
		return nil, fmt.Errorf("message is missing id")
	}
	if in.From == "" {
		return nil, fmt.Errorf("message %s is missing from", in.ID)
	}

	contentType, _ := models.ParseContentType(in.Type)

	occurredAt := receivedAt.UTC()
	if in.Timestamp.Valid {
		occurredAt = time.Unix(in.Timestamp.Seconds, 0).UTC()
	}

	return &models.Message{
		ExternalID:        in.ID,
		ConversationID:    validation.NormalizeConversationID(in.From),
		SenderDisplayName: value.ContactName(in.From),
		Content:           messageContent(&in),
		ContentType:       contentType,
		OccurredAt:        occurredAt,
		DeliveryStatus:    models.DeliveryStatusSent,
		Direction:         models.DirectionIncoming,
		From:              in.From,
		To:                businessAddress(value.Metadata),
		RawPayload:        append(json.RawMessage(nil), raw...),
	}, nil
}

// NormalizeStatus converts one element of value.statuses. The status string
// is kept verbatim.
func NormalizeStatus(raw json.RawMessage) (*models.StatusUpdate, error) {
	var in models.InboundStatus
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("undecodable status: %w", err)
	}
	if in.ID == "" {
		return nil, fmt.Errorf("status is missing id")
	}
	if in.Status == "" {
		return nil, fmt.Errorf("status for %s is empty", in.ID)
	}

	update := &models.StatusUpdate{
		TargetID:  in.ID,
		Status:    models.DeliveryStatus(in.Status),
		Recipient: in.RecipientID,
	}
	if in.Timestamp.Valid {
		update.OccurredAt = time.Unix(in.Timestamp.Seconds, 0).UTC()
	}
	return update, nil
}

func messageContent(in *models.InboundMessage) string {
	if in.Text != nil && in.Text.Body != "" {
		return in.Text.Body
	}
	if caption := in.MediaCaption(); caption != "" {
		return caption
	}
	return models.MediaPlaceholder
}

func businessAddress(meta *models.WebhookMetadata) string {
	if meta == nil {
		return ""
	}
	if meta.PhoneNumberID != "" {
		return meta.PhoneNumberID
	}
	return meta.DisplayPhoneNumber
}
