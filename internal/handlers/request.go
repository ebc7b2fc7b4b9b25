package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/suitline/fulfillment/internal/platform/httpx"
	"github.com/suitline/fulfillment/internal/services"
)

// retryAfter is advertised on transient failures so senders back off before redelivering.
const retryAfter = 30 * time.Second

var (
	errEmptyBody    = errors.New("request body is required")
	errBodyTooLarge = errors.New("request body exceeds allowed size")

	payloadValidator = validator.New(validator.WithRequiredStructEnabled())
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// decodeRequest reads, unmarshals and validates the JSON body into dst. On failure the error
// response has already been written.
func decodeRequest(w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	ctx := r.Context()
	body, err := readLimitedBody(r, limit)
	if err != nil {
		switch {
		case errors.Is(err, errEmptyBody):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return false
	}
	if err := payloadValidator.Struct(dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "payload failed validation", http.StatusBadRequest).
			WithDetails(map[string]any{"fields": validationFields(err)}))
		return false
	}
	return true
}

func validationFields(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s:%s", fe.Namespace(), fe.Tag()))
	}
	return fields
}

// writeServiceError maps service sentinels onto HTTP statuses.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput), errors.Is(err, services.ErrDiscountInvalidInput), errors.Is(err, services.ErrValidation):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrDiscountExceedsLook):
		httpx.WriteError(ctx, w, httpx.NewError("discount_exceeds_look", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrAttendeeNotEligible):
		httpx.WriteError(ctx, w, httpx.NewError("attendee_not_eligible", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrGroupDiscountIneligible):
		httpx.WriteError(ctx, w, httpx.NewError("group_discount_unavailable", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrService):
		httpx.WriteError(ctx, w, httpx.NewError("dependency_unavailable", "a backing service is unavailable", http.StatusServiceUnavailable).WithRetryAfter(retryAfter))
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		httpx.WriteError(ctx, w, httpx.NewError("request_timeout", "request did not complete in time", http.StatusServiceUnavailable).WithRetryAfter(retryAfter))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to process request", http.StatusInternalServerError))
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
