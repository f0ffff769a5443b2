// Package webhook receives inbound provider events, verifies their
// authenticity and feeds them to reconciliation exactly once.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrBadSignature = errors.New("webhook signature verification failed")
	// ErrStaleTimestamp indicates the event is outside the replay window.
	ErrStaleTimestamp = errors.New("webhook timestamp outside tolerance")
)

// timestampTolerance bounds how old or skewed an event timestamp may be.
const timestampTolerance = 5 * time.Minute

// Verifier checks svix-style webhook signatures: HMAC-SHA256 over
// "{id}.{timestamp}.{body}" keyed with the base64-decoded shared secret.
type Verifier struct {
	key []byte
	now func() time.Time
}

// NewVerifier parses the shared secret. The conventional "whsec_" prefix is
// stripped before base64 decoding.
func NewVerifier(secret string) (*Verifier, error) {
	trimmed := strings.TrimPrefix(secret, "whsec_")
	key, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("decode webhook secret: %w", err)
	}
	return &Verifier{key: key, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Verify checks the signature header against the raw body. The header may
// carry several space-separated versioned signatures ("v1,<base64> ..."); the
// event is authentic when any of them matches in constant time.
func (v *Verifier) Verify(id, timestamp, signatureHeader string, body []byte) error {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrBadSignature)
	}
	age := v.now().Sub(time.Unix(ts, 0))
	if age > timestampTolerance || age < -timestampTolerance {
		return ErrStaleTimestamp
	}

	mac := hmac.New(sha256.New, v.key)
	fmt.Fprintf(mac, "%s.%s.%s", id, timestamp, body)
	expected := mac.Sum(nil)

	for _, part := range strings.Fields(signatureHeader) {
		version, sig, found := strings.Cut(part, ",")
		if !found || version != "v1" {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}
	return ErrBadSignature
}

// Sign produces the "v1,<base64>" signature for the given event. Used by
// tests and local tooling to fabricate valid deliveries.
func (v *Verifier) Sign(id, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, v.key)
	fmt.Fprintf(mac, "%s.%s.%s", id, timestamp, body)
	return "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
