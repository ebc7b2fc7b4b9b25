package idempotency

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/suitline/fulfillment/internal/platform/httpx"
	"github.com/suitline/fulfillment/internal/platform/requestctx"
)

const (
	defaultHeaderName  = "Idempotency-Key"
	replayHeaderName   = "X-Idempotent-Replay"
	maxKeyLength       = 255
	defaultMaxBodySize = 1 << 20
)

type guardConfig struct {
	headerName string
	ttl        time.Duration
	clock      func() time.Time
	logger     *zap.Logger
	required   bool
}

// Option customises the guard.
type Option func(*guardConfig)

// WithHeader overrides the header carrying the key.
func WithHeader(name string) Option {
	return func(cfg *guardConfig) {
		if name = strings.TrimSpace(name); name != "" {
			cfg.headerName = name
		}
	}
}

// WithTTL sets how long completed responses are replayable.
func WithTTL(ttl time.Duration) Option {
	return func(cfg *guardConfig) {
		if ttl > 0 {
			cfg.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(cfg *guardConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// WithLogger sets the logger for store failures.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *guardConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithKeyRequired rejects requests that carry no key.
func WithKeyRequired() Option {
	return func(cfg *guardConfig) {
		cfg.required = true
	}
}

// Guard replays the stored response for a repeated Idempotency-Key instead of running the
// handler again. Safe methods are not guarded. Requests without a key pass through unless WithKeyRequired is set. Server
// errors release the key so the client can retry.
func Guard(store Store, opts ...Option) func(http.Handler) http.Handler {
	cfg := guardConfig{
		headerName: defaultHeaderName,
		ttl:        DefaultTTL,
		clock:      time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			key := strings.TrimSpace(r.Header.Get(cfg.headerName))
			if key == "" {
				if cfg.required {
					httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_required", "missing "+cfg.headerName+" header", http.StatusBadRequest))
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxKeyLength {
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_invalid", "idempotency key too long", http.StatusBadRequest))
				return
			}

			body, err := readAndRestoreBody(r)
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_body", "unable to read request body", http.StatusBadRequest))
				return
			}

			subject := requestctx.Subject(ctx)
			fingerprint := fingerprintOf(r, body, subject)
			storeKey := sha256Hex([]byte(subject + "|" + key))

			state, record, err := store.Reserve(ctx, storeKey, fingerprint, cfg.clock().UTC(), cfg.ttl)
			switch {
			case errors.Is(err, ErrFingerprintMismatch):
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_conflict", "idempotency key already used for a different request", http.StatusUnprocessableEntity))
				return
			case err != nil:
				cfg.logger.Warn("idempotency: reserve failed", zap.Error(err))
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_unavailable", "unable to process idempotency key", http.StatusServiceUnavailable))
				return
			}

			switch state {
			case StateCompleted:
				replay(w, record)
				return
			case StatePending:
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_in_progress", "a request with this idempotency key is in progress", http.StatusConflict))
				return
			}

			rec := &bufferedResponse{header: make(http.Header)}
			next.ServeHTTP(rec, r)

			if rec.statusCode() >= http.StatusInternalServerError {
				if err := store.Release(ctx, storeKey, fingerprint); err != nil {
					cfg.logger.Warn("idempotency: release failed", zap.Error(err))
				}
			} else {
				record.Status = rec.statusCode()
				record.Headers = replayableHeaders(rec.header)
				record.Body = rec.body.Bytes()
				if err := store.Complete(ctx, storeKey, record, cfg.ttl); err != nil {
					cfg.logger.Warn("idempotency: complete failed", zap.Error(err))
				}
			}
			rec.flush(w)
		})
	}
}

func readAndRestoreBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, defaultMaxBodySize+1))
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

func fingerprintOf(r *http.Request, body []byte, subject string) string {
	parts := []string{
		strings.ToUpper(r.Method),
		r.URL.Path,
		r.URL.RawQuery,
		subject,
		sha256Hex(body),
	}
	return sha256Hex([]byte(strings.Join(parts, "|")))
}

func replay(w http.ResponseWriter, record Record) {
	for name, values := range record.Headers {
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}
	w.Header().Set(replayHeaderName, "true")
	status := record.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(record.Body)
}

type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedResponse) statusCode() int {
	if b.status == 0 {
		return http.StatusOK
	}
	return b.status
}

func (b *bufferedResponse) flush(w http.ResponseWriter) {
	for name, values := range b.header {
		w.Header()[name] = values
	}
	w.WriteHeader(b.statusCode())
	_, _ = w.Write(b.body.Bytes())
}
