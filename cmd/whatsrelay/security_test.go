package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	const secret = "test-secret"
	const body = `{"object":"whatsapp_business_account"}`

	tests := []struct {
		name    string
		secret  string
		header  string
		wantErr string
	}{
		{name: "disabled without secret", secret: "", header: ""},
		{name: "valid", secret: secret, header: sign(secret, body)},
		{name: "uppercase hex", secret: secret, header: "sha256=" + strings.ToUpper(strings.TrimPrefix(sign(secret, body), "sha256="))},
		{name: "missing header", secret: secret, header: "", wantErr: "missing signature header"},
		{name: "wrong algorithm", secret: secret, header: "sha1=abcd", wantErr: "invalid signature format"},
		{name: "no separator", secret: secret, header: "abcd", wantErr: "invalid signature format"},
		{name: "wrong secret", secret: secret, header: sign("other", body), wantErr: "signature mismatch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/webhook", strings.NewReader(body))
			if tt.header != "" {
				req.Header.Set(signatureHeader, tt.header)
			}
			err := verifySignature(req, []byte(body), tt.secret)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestTokensMatch(t *testing.T) {
	assert.True(t, tokensMatch("abc", "abc"))
	assert.False(t, tokensMatch("abd", "abc"))
	assert.False(t, tokensMatch("", "abc"))
	assert.False(t, tokensMatch("", ""), "unset token never matches")
}

func TestFirstQuery(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/webhook?mode=subscribe&hub.challenge=42", nil)

	assert.Equal(t, "subscribe", firstQuery(req, "hub.mode", "mode"))
	assert.Equal(t, "42", firstQuery(req, "hub.challenge", "challenge"))
	assert.Empty(t, firstQuery(req, "hub.verify_token", "verify_token"))
}
