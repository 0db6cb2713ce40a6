package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEpochTime_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantSecs  int64
		wantValid bool
	}{
		{"string seconds", `"1700000000"`, 1700000000, true},
		{"numeric seconds", `1700000000`, 1700000000, true},
		{"fractional number", `1700000000.75`, 1700000000, true},
		{"padded string", `" 1700000000 "`, 1700000000, true},
		{"null", `null`, 0, false},
		{"empty string", `""`, 0, false},
		{"garbage", `"yesterday"`, 0, false},
		{"zero", `0`, 0, false},
		{"negative", `-5`, -5, false},
		{"last second of year 9999", `253402300799`, 253402300799, true},
		{"past year 9999", `"99999999999999"`, 0, false},
		{"past year 9999 fractional", `253402300800.5`, 0, false},
		{"float beyond int64", `1e300`, 0, false},
		{"out of int64 range string", `"99999999999999999999"`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e EpochTime
			require.NoError(t, json.Unmarshal([]byte(tt.input), &e))
			assert.Equal(t, tt.wantValid, e.Valid)
			if tt.wantValid {
				assert.Equal(t, tt.wantSecs, e.Seconds)
			}
		})
	}
}

func TestEpochTime_AbsentField(t *testing.T) {
	var s InboundStatus
	require.NoError(t, json.Unmarshal([]byte(`{"id":"wamid.1","status":"read"}`), &s))
	assert.False(t, s.Timestamp.Valid)
}

func TestWebhookPayload_KeepsItemsRaw(t *testing.T) {
	body := `{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "WABA",
			"changes": [{
				"field": "messages",
				"value": {
					"messaging_product": "whatsapp",
					"metadata": {"display_phone_number": "15550000000", "phone_number_id": "PNID"},
					"contacts": [{"wa_id": "919937320320", "profile": {"name": "Ravi Kumar"}}],
					"messages": [{"id": "wamid.A"}, 42, {"id": "wamid.B"}]
				}
			}]
		}]
	}`

	var payload WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	require.Len(t, payload.Entry, 1)
	value := payload.Entry[0].Changes[0].Value
	assert.Len(t, value.Messages, 3)
	assert.Equal(t, "PNID", value.Metadata.PhoneNumberID)
	assert.JSONEq(t, `42`, string(value.Messages[1]))
}

func TestChangeValue_ContactName(t *testing.T) {
	value := ChangeValue{Contacts: []WebhookContact{
		{WaID: "111"},
		{WaID: "222"},
	}}
	value.Contacts[0].Profile.Name = "First"
	value.Contacts[1].Profile.Name = "Second"

	assert.Equal(t, "Second", value.ContactName("222"))
	assert.Equal(t, "First", value.ContactName("999"))
	assert.Equal(t, "", ChangeValue{}.ContactName("222"))
}

func TestInboundMessage_MediaCaption(t *testing.T) {
	tests := []struct {
		name string
		msg  InboundMessage
		want string
	}{
		{"top level caption wins", InboundMessage{Caption: "top", Image: &MediaBody{Caption: "inner"}}, "top"},
		{"image caption", InboundMessage{Image: &MediaBody{Caption: "sunset"}}, "sunset"},
		{"video caption", InboundMessage{Video: &MediaBody{Caption: "clip"}}, "clip"},
		{"document caption", InboundMessage{Document: &MediaBody{Caption: "invoice"}}, "invoice"},
		{"audio has none", InboundMessage{Audio: &MediaBody{ID: "a"}}, ""},
		{"nothing", InboundMessage{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.MediaCaption())
		})
	}
}
