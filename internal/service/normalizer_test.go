package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsrelay/internal/models"
)

var receivedAt = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func testValue() models.ChangeValue {
	var v models.ChangeValue
	v.Metadata = &models.WebhookMetadata{DisplayPhoneNumber: "15550001111", PhoneNumberID: "PNID"}
	v.Contacts = []models.WebhookContact{{WaID: "999"}, {WaID: "555"}}
	v.Contacts[0].Profile.Name = "Other"
	v.Contacts[1].Profile.Name = "Alice"
	return v
}

func TestNormalizeMessage_Text(t *testing.T) {
	raw := json.RawMessage(`{"id":"m1","from":"555","timestamp":"1700000000","type":"text","text":{"body":"hi"}}`)

	msg, err := NormalizeMessage(raw, testValue(), receivedAt)
	require.NoError(t, err)

	assert.Equal(t, "m1", msg.ExternalID)
	assert.Equal(t, "555", msg.ConversationID)
	assert.Equal(t, "555", msg.From)
	assert.Equal(t, "PNID", msg.To)
	assert.Equal(t, "Alice", msg.SenderDisplayName)
	assert.Equal(t, "hi", msg.Content)
	assert.Equal(t, models.TextMessage, msg.ContentType)
	assert.Equal(t, models.DirectionIncoming, msg.Direction)
	assert.Equal(t, models.DeliveryStatusSent, msg.DeliveryStatus)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), msg.OccurredAt)
	assert.JSONEq(t, string(raw), string(msg.RawPayload))
	assert.Empty(t, msg.StatusCorrelationID)
}

func TestNormalizeMessage_Content(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		content     string
		contentType models.ContentType
	}{
		{"image with nested caption", `{"id":"a","from":"1","type":"image","image":{"id":"x","caption":"look"}}`, "look", models.ImageMessage},
		{"top level caption wins", `{"id":"a","from":"1","type":"video","caption":"top","video":{"caption":"inner"}}`, "top", models.VideoMessage},
		{"document caption", `{"id":"a","from":"1","type":"document","document":{"caption":"invoice"}}`, "invoice", models.DocumentMessage},
		{"audio placeholder", `{"id":"a","from":"1","type":"audio","audio":{"id":"x"}}`, models.MediaPlaceholder, models.AudioMessage},
		{"unknown type falls back to text", `{"id":"a","from":"1","type":"sticker"}`, models.MediaPlaceholder, models.TextMessage},
		{"missing type", `{"id":"a","from":"1","text":{"body":"plain"}}`, "plain", models.TextMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NormalizeMessage(json.RawMessage(tt.raw), models.ChangeValue{}, receivedAt)
			require.NoError(t, err)
			assert.Equal(t, tt.content, msg.Content)
			assert.Equal(t, tt.contentType, msg.ContentType)
		})
	}
}

func TestNormalizeMessage_Defaults(t *testing.T) {
	t.Run("timestamp missing or invalid uses receive time", func(t *testing.T) {
		for _, raw := range []string{
			`{"id":"a","from":"1"}`,
			`{"id":"a","from":"1","timestamp":"soon"}`,
			`{"id":"a","from":"1","timestamp":null}`,
			`{"id":"a","from":"1","timestamp":"99999999999999"}`,
			`{"id":"a","from":"1","timestamp":1e300}`,
		} {
			msg, err := NormalizeMessage(json.RawMessage(raw), models.ChangeValue{}, receivedAt)
			require.NoError(t, err)
			assert.Equal(t, receivedAt, msg.OccurredAt, raw)
		}
	})

	t.Run("numeric timestamp", func(t *testing.T) {
		msg, err := NormalizeMessage(json.RawMessage(`{"id":"a","from":"1","timestamp":1700000000}`), models.ChangeValue{}, receivedAt)
		require.NoError(t, err)
		assert.Equal(t, int64(1700000000), msg.OccurredAt.Unix())
	})

	t.Run("no contacts and no metadata", func(t *testing.T) {
		msg, err := NormalizeMessage(json.RawMessage(`{"id":"a","from":"1"}`), models.ChangeValue{}, receivedAt)
		require.NoError(t, err)
		assert.Empty(t, msg.SenderDisplayName)
		assert.Empty(t, msg.To)
	})

	t.Run("first contact when from does not match", func(t *testing.T) {
		msg, err := NormalizeMessage(json.RawMessage(`{"id":"a","from":"123"}`), testValue(), receivedAt)
		require.NoError(t, err)
		assert.Equal(t, "Other", msg.SenderDisplayName)
	})

	t.Run("display phone number when id is missing", func(t *testing.T) {
		value := models.ChangeValue{Metadata: &models.WebhookMetadata{DisplayPhoneNumber: "15550001111"}}
		msg, err := NormalizeMessage(json.RawMessage(`{"id":"a","from":"1"}`), value, receivedAt)
		require.NoError(t, err)
		assert.Equal(t, "15550001111", msg.To)
	})
}

func TestNormalizeMessage_Errors(t *testing.T) {
	for name, raw := range map[string]string{
		"undecodable":  `[1,2]`,
		"missing id":   `{"from":"1","text":{"body":"x"}}`,
		"missing from": `{"id":"a","text":{"body":"x"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NormalizeMessage(json.RawMessage(raw), models.ChangeValue{}, receivedAt)
			assert.Error(t, err)
		})
	}
}

func TestNormalizeStatus(t *testing.T) {
	update, err := NormalizeStatus(json.RawMessage(`{"id":"m1","status":"read","timestamp":"1700000100","recipient_id":"555"}`))
	require.NoError(t, err)
	assert.Equal(t, "m1", update.TargetID)
	assert.Equal(t, models.DeliveryStatusRead, update.Status)
	assert.Equal(t, "555", update.Recipient)
	assert.Equal(t, int64(1700000100), update.OccurredAt.Unix())

	t.Run("unknown status kept verbatim", func(t *testing.T) {
		update, err := NormalizeStatus(json.RawMessage(`{"id":"m1","status":"deleted"}`))
		require.NoError(t, err)
		assert.Equal(t, models.DeliveryStatus("deleted"), update.Status)
		assert.True(t, update.OccurredAt.IsZero())
	})

	for name, raw := range map[string]string{
		"undecodable":  `"read"`,
		"missing id":   `{"status":"read"}`,
		"empty status": `{"id":"m1","status":""}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NormalizeStatus(json.RawMessage(raw))
			assert.Error(t, err)
		})
	}
}
