package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/suitline/fulfillment/internal/domain"
	"github.com/suitline/fulfillment/internal/services"
)

type stubSystemService struct {
	report services.SystemHealthReport
	err    error
}

func (s *stubSystemService) HealthReport(context.Context) (services.SystemHealthReport, error) {
	return s.report, s.err
}

var _ services.SystemService = (*stubSystemService)(nil)

func TestHealthHandlersHealthz(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(30 * time.Second)
	handlers := NewHealthHandlers(
		WithHealthBuildInfo(services.BuildInfo{
			Version:     "1.0.0",
			CommitSHA:   "abc123",
			Environment: "prod",
			StartedAt:   start,
		}),
		WithHealthClock(func() time.Time { return now }),
	)

	rr := httptest.NewRecorder()
	handlers.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["status"] != domain.HealthStatusOK || body["version"] != "1.0.0" || body["commitSha"] != "abc123" {
		t.Fatalf("unexpected body %v", body)
	}
	if body["uptime"] != "30s" {
		t.Fatalf("expected uptime 30s, got %v", body["uptime"])
	}
}

func TestHealthHandlersReadyz(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC)

	cases := []struct {
		name    string
		report  services.SystemHealthReport
		err     error
		status  int
		details []string
	}{
		{
			name: "all healthy",
			report: services.SystemHealthReport{
				Status:      domain.HealthStatusOK,
				GeneratedAt: now,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusOK, Critical: true, Latency: 10 * time.Millisecond, CheckedAt: now},
				},
			},
			status: http.StatusOK,
		},
		{
			name: "optional cache down stays ready",
			report: services.SystemHealthReport{
				Status: domain.HealthStatusDegraded,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusOK, Critical: true},
					"cache":     {Status: domain.HealthStatusDegraded, Error: "connection refused"},
				},
			},
			status:  http.StatusOK,
			details: []string{"cache: connection refused"},
		},
		{
			name: "critical dependency down",
			report: services.SystemHealthReport{
				Status: domain.HealthStatusError,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusError, Critical: true, Detail: "timeout"},
				},
			},
			status:  http.StatusServiceUnavailable,
			details: []string{"firestore: timeout"},
		},
		{
			name:   "report failure",
			err:    errors.New("collect failed"),
			status: http.StatusServiceUnavailable,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handlers := NewHealthHandlers(
				WithHealthSystemService(&stubSystemService{report: tc.report, err: tc.err}),
				WithHealthClock(func() time.Time { return now }),
			)
			rr := httptest.NewRecorder()
			handlers.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
			if tc.err != nil {
				return
			}
			var body struct {
				Status  string   `json:"status"`
				Details []string `json:"details"`
				Checks  map[string]struct {
					Status   string `json:"status"`
					Critical bool   `json:"critical"`
				} `json:"checks"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to parse response: %v", err)
			}
			if body.Status != tc.report.Status {
				t.Fatalf("expected status %s, got %s", tc.report.Status, body.Status)
			}
			if len(body.Details) != len(tc.details) {
				t.Fatalf("expected details %v, got %v", tc.details, body.Details)
			}
			for i := range tc.details {
				if body.Details[i] != tc.details[i] {
					t.Fatalf("expected details %v, got %v", tc.details, body.Details)
				}
			}
			if fs, ok := body.Checks["firestore"]; ok && !fs.Critical {
				t.Fatalf("expected firestore to be reported critical")
			}
		})
	}
}
