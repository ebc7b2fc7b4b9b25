package auth

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/suitline/fulfillment/internal/platform/requestctx"
)

const (
	defaultSignatureHeader = "X-Webhook-Hmac-Sha256"
	defaultMaxBodyBytes    = 1 << 20
	meterName              = "github.com/suitline/fulfillment/internal/platform/auth"
)

// SecretProvider resolves shared secrets used for HMAC validation.
type SecretProvider interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// SecretProviderFunc adapts a function to the SecretProvider interface.
type SecretProviderFunc func(context.Context, string) (string, error)

// GetSecret implements SecretProvider.
func (f SecretProviderFunc) GetSecret(ctx context.Context, name string) (string, error) {
	if f == nil {
		return "", errors.New("auth: secret provider not configured")
	}
	return f(ctx, name)
}

// StaticSecret returns a provider that serves the same secret for every name.
func StaticSecret(secret string) SecretProvider {
	return SecretProviderFunc(func(context.Context, string) (string, error) {
		if strings.TrimSpace(secret) == "" {
			return "", errors.New("auth: webhook secret not configured")
		}
		return secret, nil
	})
}

// WebhookVerifier authenticates storefront webhooks signed with HMAC-SHA256 over the raw body.
type WebhookVerifier struct {
	provider        SecretProvider
	logger          *zap.Logger
	signatureHeader string
	maxBodyBytes    int64
	verifications   metric.Int64Counter

	secretCache sync.Map
}

// WebhookOption customises the verifier.
type WebhookOption func(*WebhookVerifier)

// WithSignatureHeader overrides the header carrying the signature.
func WithSignatureHeader(header string) WebhookOption {
	return func(v *WebhookVerifier) {
		if trimmed := strings.TrimSpace(header); trimmed != "" {
			v.signatureHeader = trimmed
		}
	}
}

// WithWebhookLogger sets the logger used for secret lookup failures.
func WithWebhookLogger(logger *zap.Logger) WebhookOption {
	return func(v *WebhookVerifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithMaxBodyBytes caps the payload size read for verification.
func WithMaxBodyBytes(limit int64) WebhookOption {
	return func(v *WebhookVerifier) {
		if limit > 0 {
			v.maxBodyBytes = limit
		}
	}
}

// WithWebhookMeter registers the verification counter on the given meter.
func WithWebhookMeter(meter metric.Meter) WebhookOption {
	return func(v *WebhookVerifier) {
		if meter != nil {
			v.verifications = newVerificationCounter(meter)
		}
	}
}

// NewWebhookVerifier builds a verifier using the given secret provider.
func NewWebhookVerifier(provider SecretProvider, opts ...WebhookOption) *WebhookVerifier {
	v := &WebhookVerifier{
		provider:        provider,
		logger:          zap.NewNop(),
		signatureHeader: defaultSignatureHeader,
		maxBodyBytes:    defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	if v.verifications == nil {
		v.verifications = newVerificationCounter(otel.GetMeterProvider().Meter(meterName))
	}
	return v
}

// Require enforces a valid signature for requests from the named source. The body is restored
// for downstream handlers.
func (v *WebhookVerifier) Require(source string) func(http.Handler) http.Handler {
	source = strings.TrimSpace(source)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			secret, err := v.loadSecret(ctx, source)
			if err != nil {
				v.logger.Warn("auth: webhook secret lookup failed", zap.String("source", source), zap.Error(err))
				v.record(ctx, source, "secret_unavailable")
				respondAuthError(w, http.StatusServiceUnavailable, "verification_unavailable", "webhook secret unavailable")
				return
			}

			signatureValue := strings.TrimSpace(r.Header.Get(v.signatureHeader))
			if signatureValue == "" {
				v.record(ctx, source, "signature_missing")
				respondAuthError(w, http.StatusUnauthorized, "signature_missing", "signature header missing")
				return
			}
			signature, err := decodeSignature(signatureValue)
			if err != nil {
				v.record(ctx, source, "signature_invalid")
				respondAuthError(w, http.StatusUnauthorized, "signature_invalid", "signature encoding invalid")
				return
			}

			body, err := v.readAndRestoreBody(r)
			if err != nil {
				v.record(ctx, source, "body_unreadable")
				respondAuthError(w, http.StatusBadRequest, "invalid_body", "unable to read body for signature verification")
				return
			}

			if !hmac.Equal(signature, ComputeSignature(secret, body)) {
				v.record(ctx, source, "signature_mismatch")
				respondAuthError(w, http.StatusUnauthorized, "signature_mismatch", "signature verification failed")
				return
			}

			v.record(ctx, source, "ok")
			requestctx.SetSubject(ctx, "webhook:"+source)
			next.ServeHTTP(w, r)
		})
	}
}

// ComputeSignature returns the raw HMAC-SHA256 of body under secret.
func ComputeSignature(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}

func (v *WebhookVerifier) record(ctx context.Context, source, outcome string) {
	if v.verifications == nil {
		return
	}
	v.verifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("outcome", outcome),
	))
}

func (v *WebhookVerifier) loadSecret(ctx context.Context, name string) ([]byte, error) {
	if v.provider == nil {
		return nil, errors.New("auth: secret provider not configured")
	}
	if cached, ok := v.secretCache.Load(name); ok {
		return cached.([]byte), nil
	}
	raw, err := v.provider.GetSecret(ctx, name)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, errors.New("auth: secret is empty")
	}
	secret := []byte(raw)
	v.secretCache.Store(name, secret)
	return secret, nil
}

func (v *WebhookVerifier) readAndRestoreBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()

	buf, err := io.ReadAll(io.LimitReader(r.Body, v.maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(buf)) > v.maxBodyBytes {
		return nil, errors.New("auth: body exceeds limit")
	}
	r.Body = io.NopCloser(bytes.NewReader(buf))
	return buf, nil
}

func decodeSignature(value string) ([]byte, error) {
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		return decoded, nil
	}
	if decoded, err := hex.DecodeString(value); err == nil {
		return decoded, nil
	}
	return nil, errors.New("auth: signature must be base64 or hex encoded")
}

func newVerificationCounter(meter metric.Meter) metric.Int64Counter {
	counter, err := meter.Int64Counter(
		"fulfillment.webhooks.verifications",
		metric.WithDescription("Webhook signature verification outcomes"),
	)
	if err != nil {
		return nil
	}
	return counter
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   code,
		"message": message,
		"status":  status,
	})
}
