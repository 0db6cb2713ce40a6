package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

const signatureHeader = "X-Hub-Signature-256"

// verifySignature checks the provider's HMAC-SHA256 signature of body. An
// empty secret disables the check.
func verifySignature(r *http.Request, body []byte, secretKey string) error {
	if secretKey == "" {
		return nil
	}

	header := r.Header.Get(signatureHeader)
	if header == "" {
		return fmt.Errorf("missing signature header: %s", signatureHeader)
	}

	algo, expectedSignatureHex, ok := strings.Cut(header, "=")
	if !ok || strings.ToLower(algo) != "sha256" {
		return fmt.Errorf("invalid signature format in header %s", signatureHeader)
	}

	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write(body)
	computedSignatureHex := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(computedSignatureHex), []byte(strings.ToLower(expectedSignatureHex))) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

// tokensMatch compares a presented verify token against the configured one in
// constant time. An unset token never matches.
func tokensMatch(presented, configured string) bool {
	if configured == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(configured)) == 1
}

// firstQuery returns the first non-empty query value among keys.
func firstQuery(r *http.Request, keys ...string) string {
	q := r.URL.Query()
	for _, k := range keys {
		if v := q.Get(k); v != "" {
			return v
		}
	}
	return ""
}
