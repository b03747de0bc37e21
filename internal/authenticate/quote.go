package authenticate

import (
	"bytes"
	"crypto/hmac"
	"encoding/json"
	"fmt"
	"time"
)

// AuthenticatedQuote is a signed quote. It only exposes copies of its
// content, a changed input needs a new computation.
type AuthenticatedQuote struct {
	canonical []byte
	signature string
	seal      string
	timestamp string
	status    Status
}

func (q *AuthenticatedQuote) Signature() string {
	return q.signature
}

func (q *AuthenticatedQuote) Seal() string {
	return q.seal
}

func (q *AuthenticatedQuote) Timestamp() time.Time {
	t, _ := time.Parse(time.RFC3339Nano, q.timestamp)
	return t
}

func (q *AuthenticatedQuote) Confidence() Status {
	return q.status
}

// Canonical returns the signed payload bytes.
func (q *AuthenticatedQuote) Canonical() []byte {
	return bytes.Clone(q.canonical)
}

// Payload decodes a fresh copy of the signed payload.
func (q *AuthenticatedQuote) Payload() (Payload, error) {
	var p Payload
	if err := json.Unmarshal(q.canonical, &p); err != nil {
		return Payload{}, fmt.Errorf("authenticate: decode payload: %w", err)
	}
	return p, nil
}

type envelope struct {
	Signature  string          `json:"signature"`
	Seal       string          `json:"seal"`
	Timestamp  string          `json:"timestamp"`
	Confidence Status          `json:"confidence"`
	Payload    json.RawMessage `json:"payload"`
}

func (q *AuthenticatedQuote) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelope{
		Signature:  q.signature,
		Seal:       q.seal,
		Timestamp:  q.timestamp,
		Confidence: q.status,
		Payload:    q.canonical,
	})
}

func (q *AuthenticatedQuote) UnmarshalJSON(data []byte) error {
	p, err := Parse(data)
	if err != nil {
		return err
	}
	*q = *p
	return nil
}

// Parse reads a quote written by MarshalJSON. The result is not trusted
// until Verify succeeds.
func Parse(data []byte) (*AuthenticatedQuote, error) {
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("authenticate: parse quote: %w", err)
	}
	if len(e.Payload) == 0 || e.Signature == "" {
		return nil, fmt.Errorf("authenticate: parse quote: missing payload or signature")
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, e.Payload); err != nil {
		return nil, fmt.Errorf("authenticate: parse quote: %w", err)
	}
	return &AuthenticatedQuote{
		canonical: compact.Bytes(),
		signature: e.Signature,
		seal:      e.Seal,
		timestamp: e.Timestamp,
		status:    e.Confidence,
	}, nil
}

// Verify recomputes the signature over the payload and the seal over the
// signature and timestamp.
func Verify(q *AuthenticatedQuote, key []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	if !hmac.Equal([]byte(sign(key, q.canonical)), []byte(q.signature)) {
		return ErrBadSignature
	}
	if !hmac.Equal([]byte(sign(key, []byte(q.signature+"|"+q.timestamp))), []byte(q.seal)) {
		return ErrBadSeal
	}
	return nil
}
