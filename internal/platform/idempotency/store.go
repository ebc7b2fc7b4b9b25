package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// DefaultTTL bounds how long a completed response can be replayed.
const DefaultTTL = 24 * time.Hour

// State is the outcome of reserving a key.
type State int

const (
	// StateNew means the caller owns the key and must run the request.
	StateNew State = iota
	// StateCompleted means a stored response exists and should be replayed.
	StateCompleted
	// StatePending means another request holds the key.
	StatePending
)

// Record is the stored outcome for a key.
type Record struct {
	Fingerprint string              `json:"fingerprint"`
	Completed   bool                `json:"completed"`
	Status      int                 `json:"status,omitempty"`
	Headers     map[string][]string `json:"headers,omitempty"`
	Body        []byte              `json:"body,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
}

// Store persists reservations and the responses that complete them.
type Store interface {
	Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (State, Record, error)
	Complete(ctx context.Context, key string, record Record, ttl time.Duration) error
	Release(ctx context.Context, key, fingerprint string) error
}

// ErrFingerprintMismatch is returned when a key is reused for a different request.
var ErrFingerprintMismatch = errors.New("idempotency: key reserved for a different request")

func classify(existing Record, fingerprint string) (State, error) {
	if existing.Fingerprint != fingerprint {
		return StatePending, ErrFingerprintMismatch
	}
	if existing.Completed {
		return StateCompleted, nil
	}
	return StatePending, nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// replayableHeaders keeps the response headers worth storing.
func replayableHeaders(header http.Header) map[string][]string {
	out := make(map[string][]string)
	for name, values := range header {
		switch strings.ToLower(name) {
		case "content-length", "date", "connection", "transfer-encoding", "x-request-id":
			continue
		}
		out[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
