package di

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/suitline/fulfillment/internal/commerce"
	"github.com/suitline/fulfillment/internal/platform/config"
	"github.com/suitline/fulfillment/internal/repositories"
)

type stubOrders struct{ repositories.OrderRepository }
type stubProducts struct{ repositories.ProductRepository }
type stubUsers struct{ repositories.UserRepository }
type stubSizings struct{ repositories.SizingRepository }
type stubMeasurements struct{ repositories.MeasurementRepository }
type stubEvents struct{ repositories.EventRepository }
type stubAttendees struct{ repositories.AttendeeRepository }
type stubLooks struct{ repositories.LookRepository }
type stubDiscounts struct{ repositories.DiscountRepository }

type stubRegistry struct{}

func (stubRegistry) Orders() repositories.OrderRepository             { return stubOrders{} }
func (stubRegistry) Products() repositories.ProductRepository         { return stubProducts{} }
func (stubRegistry) Users() repositories.UserRepository               { return stubUsers{} }
func (stubRegistry) Sizings() repositories.SizingRepository           { return stubSizings{} }
func (stubRegistry) Measurements() repositories.MeasurementRepository { return stubMeasurements{} }
func (stubRegistry) Events() repositories.EventRepository             { return stubEvents{} }
func (stubRegistry) Attendees() repositories.AttendeeRepository       { return stubAttendees{} }
func (stubRegistry) Looks() repositories.LookRepository               { return stubLooks{} }
func (stubRegistry) Discounts() repositories.DiscountRepository       { return stubDiscounts{} }

func (stubRegistry) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func TestNewContainerRequiresRegistryAndCatalog(t *testing.T) {
	if _, err := NewContainer(context.Background(), config.Config{}, nil); err == nil {
		t.Fatalf("expected error for missing registry")
	}
	if _, err := NewContainer(context.Background(), config.Config{}, stubRegistry{}); err == nil {
		t.Fatalf("expected error for missing commerce client")
	}
}

func TestNewContainerBuildsServices(t *testing.T) {
	cfg := config.Config{Environment: "test"}
	cfg.Orders.ResolveConcurrency = 2

	container, err := NewContainer(context.Background(), cfg, stubRegistry{},
		WithCatalog(commerce.NewFakeClient(nil)),
		WithClock(func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }),
	)
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	if container.Services.Orders == nil || container.Services.Discounts == nil {
		t.Fatalf("expected order and discount services, got %+v", container.Services)
	}
	if container.Services.System != nil {
		t.Fatalf("expected no system service without health checks")
	}
}

func TestNewContainerWithHealthChecks(t *testing.T) {
	container, err := NewContainer(context.Background(), config.Config{Environment: "test"}, stubRegistry{},
		WithCatalog(commerce.NewFakeClient(nil)),
		WithHealthChecks(repositories.DependencyCheck{
			Name:     "firestore",
			Critical: true,
			Check:    func(context.Context) error { return nil },
		}),
	)
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	if container.Services.System == nil {
		t.Fatalf("expected system service")
	}
	report, err := container.Services.System.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Environment != "test" {
		t.Fatalf("expected environment from config, got %q", report.Environment)
	}
	if _, ok := report.Checks["firestore"]; !ok {
		t.Fatalf("expected firestore check in %+v", report.Checks)
	}
}

func TestContainerCloseRunsClosersInReverse(t *testing.T) {
	var order []string
	boom := errors.New("boom")
	container, err := NewContainer(context.Background(), config.Config{}, stubRegistry{},
		WithCatalog(commerce.NewFakeClient(nil)),
		WithCloser(func(context.Context) error {
			order = append(order, "firestore")
			return nil
		}),
		WithCloser(func(context.Context) error {
			order = append(order, "pubsub")
			return boom
		}),
	)
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}

	if err := container.Close(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected close error to surface, got %v", err)
	}
	if len(order) != 2 || order[0] != "pubsub" || order[1] != "firestore" {
		t.Fatalf("unexpected close order: %v", order)
	}
	if err := container.Close(context.Background()); err != nil {
		t.Fatalf("second close should be a no-op, got %v", err)
	}
}
