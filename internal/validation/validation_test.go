package validation

import (
	"math"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"whatsrelay/internal/constants"
	"whatsrelay/internal/errors"
)

func TestValidateConversationID(t *testing.T) {
	tests := []struct {
		name        string
		id          string
		expectError bool
	}{
		{name: "wa_id", id: "15551234567"},
		{name: "empty", id: "", expectError: true},
		{name: "whitespace", id: "   ", expectError: true},
		{name: "too long", id: strings.Repeat("1", constants.MaxConversationIDLength+1), expectError: true},
		{name: "control character", id: "1555\n1234", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConversationID(tt.id)
			if tt.expectError {
				assert.Error(t, err)
				assert.Equal(t, errors.ErrCodeValidationFailed, errors.GetCode(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizeConversationID(t *testing.T) {
	assert.Equal(t, "555", NormalizeConversationID(" 555\t"))
	assert.Equal(t, "555", NormalizeConversationID("555"))
	assert.Empty(t, NormalizeConversationID("   "))
}

func TestValidateMessageID(t *testing.T) {
	tests := []struct {
		name        string
		id          string
		expectError bool
	}{
		{name: "provider id", id: "wamid.HBgLMTU1NTEyMzQ1NjcVAgASGBQzQTdGMjE="},
		{name: "outbound id", id: "out_01J9Z3Q8K4M2N6P7R8S9T0V1W2"},
		{name: "empty", id: "", expectError: true},
		{name: "too long", id: strings.Repeat("a", constants.MaxMessageIDLength+1), expectError: true},
		{name: "null byte", id: "wamid.\x00", expectError: true},
		{name: "tab", id: "wamid.\t1", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessageID(tt.id)
			if tt.expectError {
				assert.True(t, errors.HasCode(err, errors.ErrCodeValidationFailed))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateContent(t *testing.T) {
	assert.NoError(t, ValidateContent("Hi there 👋"))
	assert.NoError(t, ValidateContent("line one\nline two"))
	assert.Error(t, ValidateContent(""))
	assert.Error(t, ValidateContent(" \n\t"))
	assert.Error(t, ValidateContent("bad \xff utf8"))
	assert.Error(t, ValidateContent(strings.Repeat("x", constants.MaxContentLength+1)))
}

func TestValidatePagination(t *testing.T) {
	tests := []struct {
		page, limit int
		expectError bool
	}{
		{1, 50, false},
		{3, 200, false},
		{0, 50, true},
		{-1, 50, true},
		{1, 0, true},
		{1, 201, true},
		{constants.MaxPage, constants.MaxMessageLimit, false},
		{constants.MaxPage + 1, 50, true},
		{math.MaxInt/50 + 2, 50, true},
	}

	for _, tt := range tests {
		err := ValidatePagination(tt.page, tt.limit)
		assert.Equal(t, tt.expectError, err != nil, "page=%d limit=%d", tt.page, tt.limit)
	}
}

func TestValidateHTTPRequestSize(t *testing.T) {
	small := httptest.NewRequest("POST", "/api/webhook", strings.NewReader("{}"))
	assert.NoError(t, ValidateHTTPRequestSize(small, 1024))

	large := httptest.NewRequest("POST", "/api/webhook", strings.NewReader(strings.Repeat("a", 2048)))
	err := ValidateHTTPRequestSize(large, 1024)
	assert.Error(t, err)
	assert.Contains(t, errors.GetUserMessage(err), "request too large")
}

func TestValidateRetentionDays(t *testing.T) {
	assert.NoError(t, ValidateRetentionDays(0), "zero disables retention")
	assert.NoError(t, ValidateRetentionDays(30))
	assert.Error(t, ValidateRetentionDays(-1))
	assert.Error(t, ValidateRetentionDays(constants.MaxRetentionDays+1))
}
