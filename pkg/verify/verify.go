// Package verify authenticates inbound interaction callbacks with the
// application's Ed25519 public key.
package verify

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Header names carried by every interaction callback.
const (
	HeaderSignature = "X-Signature-Ed25519"
	HeaderTimestamp = "X-Signature-Timestamp"
)

// zeroKey stands in when no key is loaded so Verify keeps its shape.
var zeroKey = make(ed25519.PublicKey, ed25519.PublicKeySize)

// ErrNoPublicKey is returned by LoadPublicKey for an empty key.
var ErrNoPublicKey = errors.New("public key is not configured")

// LoadPublicKey decodes a hex-encoded 32-byte Ed25519 public key.
func LoadPublicKey(hexKey string) (ed25519.PublicKey, error) {
	hexKey = strings.TrimSpace(hexKey)
	if hexKey == "" {
		return nil, ErrNoPublicKey
	}
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("public key is not valid hex: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// Verifier checks request signatures. A Verifier with no key rejects everything.
type Verifier struct {
	key     ed25519.PublicKey
	maxSkew time.Duration
	now     func() time.Time
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithMaxSkew rejects timestamps further than d from the current time.
// Zero disables the check.
func WithMaxSkew(d time.Duration) Option {
	return func(v *Verifier) { v.maxSkew = d }
}

// WithClock overrides the time source used for the skew check.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// New creates a verifier. key may be nil, in which case Verify always fails.
func New(key ed25519.PublicKey, opts ...Option) *Verifier {
	v := &Verifier{key: key, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// KeyLoaded reports whether a usable public key is present.
func (v *Verifier) KeyLoaded() bool {
	return v != nil && len(v.key) == ed25519.PublicKeySize
}

// Verify reports whether signatureHex is a valid signature of timestamp
// followed immediately by body. It never panics and gives no reason for
// a rejection. Every input takes the same path through ed25519.Verify;
// the individual checks are combined only at the end.
func (v *Verifier) Verify(signatureHex, timestamp string, body []byte) bool {
	loaded := v.KeyLoaded()
	key := zeroKey
	if loaded {
		key = v.key
	}

	var sig [ed25519.SignatureSize]byte
	raw, err := hex.DecodeString(signatureHex)
	copy(sig[:], raw)
	wellFormed := err == nil && len(raw) == ed25519.SignatureSize

	fresh := true
	if loaded && v.maxSkew > 0 {
		fresh = v.fresh(timestamp)
	}

	msg := make([]byte, 0, len(timestamp)+len(body))
	msg = append(msg, timestamp...)
	msg = append(msg, body...)
	valid := ed25519.Verify(key, msg, sig[:])

	return loaded && wellFormed && timestamp != "" && fresh && valid
}

func (v *Verifier) fresh(timestamp string) bool {
	secs, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	delta := v.now().Sub(time.Unix(secs, 0))
	if delta < 0 {
		delta = -delta
	}
	return delta <= v.maxSkew
}
