package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/suitline/fulfillment/internal/commerce"
	domain "github.com/suitline/fulfillment/internal/domain"
	"github.com/suitline/fulfillment/internal/platform/textutil"
	"github.com/suitline/fulfillment/internal/repositories"
)

const (
	orderEventAssembled = "order.assembled"

	orderIDPrefix   = "ord_"
	productIDPrefix = "prd_"

	defaultResolveConcurrency = 4
	meterName                 = "github.com/suitline/fulfillment/internal/services"
)

// OrderAssemblerDeps bundles collaborators required to construct the order assembler.
type OrderAssemblerDeps struct {
	Orders       repositories.OrderRepository
	Products     repositories.ProductRepository
	Users        repositories.UserRepository
	Sizings      repositories.SizingRepository
	Measurements repositories.MeasurementRepository
	Attendees    repositories.AttendeeRepository
	Catalog      commerce.Client
	Discounts    DiscountService
	Aggregator   *SuitAggregator
	UnitOfWork   repositories.UnitOfWork
	Events       OrderEventPublisher
	// ResolveConcurrency bounds concurrent line resolution. Defaults to 4.
	ResolveConcurrency int
	Clock              func() time.Time
	IDGenerator        func() string
	Tracer             trace.Tracer
	Meter              metric.Meter
	Logger             func(ctx context.Context, event string, fields map[string]any)
}

type orderAssembler struct {
	orders       repositories.OrderRepository
	products     repositories.ProductRepository
	users        repositories.UserRepository
	sizings      repositories.SizingRepository
	measurements repositories.MeasurementRepository
	attendees    repositories.AttendeeRepository
	catalog      commerce.Client
	discounts    DiscountService
	aggregator   *SuitAggregator
	unitOfWork   repositories.UnitOfWork
	events       OrderEventPublisher
	concurrency  int
	clock        func() time.Time
	newID        func() string
	tracer       trace.Tracer
	assembled    metric.Int64Counter
	unresolved   metric.Int64Counter
	logger       func(context.Context, string, map[string]any)
}

var _ OrderAssembler = (*orderAssembler)(nil)

// NewOrderAssembler wires dependencies into a concrete OrderAssembler implementation.
func NewOrderAssembler(deps OrderAssemblerDeps) (OrderAssembler, error) {
	if deps.Orders == nil {
		return nil, errors.New("order assembler: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order assembler: product repository is required")
	}
	if deps.Users == nil {
		return nil, errors.New("order assembler: user repository is required")
	}
	if deps.Sizings == nil {
		return nil, errors.New("order assembler: sizing repository is required")
	}
	if deps.Measurements == nil {
		return nil, errors.New("order assembler: measurement repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order assembler: catalog client is required")
	}
	if deps.Discounts == nil {
		return nil, errors.New("order assembler: discount service is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	aggregator := deps.Aggregator
	if aggregator == nil {
		var err error
		aggregator, err = NewSuitAggregator(deps.Catalog, logger)
		if err != nil {
			return nil, err
		}
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	concurrency := deps.ResolveConcurrency
	if concurrency <= 0 {
		concurrency = defaultResolveConcurrency
	}

	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(meterName)
	}
	assembled, err := meter.Int64Counter("fulfillment.orders.assembled",
		metric.WithDescription("Orders assembled, by resulting status"))
	if err != nil {
		return nil, fmt.Errorf("order assembler: create counter: %w", err)
	}
	unresolved, err := meter.Int64Counter("fulfillment.lines.unresolved",
		metric.WithDescription("Order lines left unresolved, by category"))
	if err != nil {
		return nil, fmt.Errorf("order assembler: create counter: %w", err)
	}

	return &orderAssembler{
		orders:       deps.Orders,
		products:     deps.Products,
		users:        deps.Users,
		sizings:      deps.Sizings,
		measurements: deps.Measurements,
		attendees:    deps.Attendees,
		catalog:      deps.Catalog,
		discounts:    deps.Discounts,
		aggregator:   aggregator,
		unitOfWork:   unit,
		events:       deps.Events,
		concurrency:  concurrency,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:      idGen,
		tracer:     tracer,
		assembled:  assembled,
		unresolved: unresolved,
		logger:     logger,
	}, nil
}

// sizingInputs carries the customer snapshots used for a single assembly.
type sizingInputs struct {
	sizing      *domain.SizingRecord
	measurement *domain.MeasurementRecord
}

func (in sizingInputs) present() bool {
	return in.sizing != nil || in.measurement != nil
}

func (s *orderAssembler) Assemble(ctx context.Context, event domain.OrderPaidEvent) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderAssembler.Assemble")
	defer span.End()

	externalID := strings.TrimSpace(event.OrderID)
	if externalID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if len(event.LineItems) == 0 {
		return domain.Order{}, fmt.Errorf("%w: order %s has no line items", ErrOrderInvalidInput, externalID)
	}
	span.SetAttributes(attribute.String("order.external_id", externalID))

	order, previousLines, err := s.prepareOrder(ctx, externalID, event)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Order{}, err
	}

	if sku, ok := discountRedemptionSKU(event); ok {
		return s.assembleRedemption(ctx, span, order, previousLines, event.LineItems[0], sku)
	}

	inputs := s.lookupSizing(ctx, &order)

	lines, err := s.resolveLines(ctx, event.LineItems, inputs)
	if err != nil {
		span.RecordError(err)
		return domain.Order{}, err
	}

	synthesized, err := s.aggregator.Aggregate(ctx, lines, inputs.sizing, inputs.measurement)
	if err != nil {
		return domain.Order{}, err
	}
	for _, line := range synthesized {
		line.Position = len(lines)
		if line.ResolvedSKU != "" {
			if product, err := s.lookupProduct(ctx, line.ResolvedSKU); err == nil {
				line.Product = &product
			} else {
				s.logger(ctx, "order.line.product_unavailable", map[string]any{"sku": line.ResolvedSKU, "error": err.Error()})
			}
		}
		lines = append(lines, line)
	}
	order.Lines = lines
	order.Status = orderStatus(lines, inputs.present())

	s.findAttendee(ctx, &order)

	if err := s.persist(ctx, order, previousLines); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Order{}, err
	}

	s.markAttendeePaid(ctx, order)
	s.record(ctx, order)
	s.publishAssembled(ctx, order)

	span.SetAttributes(attribute.String("order.status", string(order.Status)), attribute.Int("order.lines", len(order.Lines)))
	s.logger(ctx, "order.assembled", map[string]any{
		"orderId":    order.ID,
		"externalId": order.ExternalID,
		"status":     string(order.Status),
		"lines":      len(order.Lines),
	})
	return order, nil
}

func (s *orderAssembler) prepareOrder(ctx context.Context, externalID string, event domain.OrderPaidEvent) (domain.Order, int, error) {
	now := s.clock()
	placedAt := event.CreatedAt.UTC()
	if event.CreatedAt.IsZero() {
		placedAt = now
	}

	order := domain.Order{
		ExternalID:      externalID,
		OrderNumber:     strings.TrimSpace(event.OrderNumber),
		CustomerEmail:   textutil.NormalizeEmail(event.CustomerEmail),
		EventID:         strings.TrimSpace(event.EventID()),
		DiscountCodes:   normalizeCodes(event.DiscountCodes),
		ShippingAddress: cloneAddress(event.ShippingAddress),
		NoteAttributes:  maps.Clone(event.NoteAttributes),
		PlacedAt:        placedAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	existing, err := s.orders.FindByExternalID(ctx, externalID)
	switch {
	case err == nil:
		order.ID = existing.ID
		order.CreatedAt = existing.CreatedAt
		s.logger(ctx, "order.reassemble", map[string]any{"orderId": existing.ID, "externalId": externalID})
		return order, len(existing.Lines), nil
	case isRepositoryNotFound(err):
		order.ID = orderIDPrefix + s.newID()
		return order, 0, nil
	default:
		return domain.Order{}, 0, s.mapRepositoryError(err)
	}
}

func (s *orderAssembler) assembleRedemption(ctx context.Context, span trace.Span, order domain.Order, previousLines int, item domain.OrderPaidLine, sku string) (domain.Order, error) {
	span.SetAttributes(attribute.Bool("order.discount_redemption", true))

	result, err := s.discounts.RedeemForOrder(ctx, sku, order.ID)
	if err != nil {
		span.RecordError(err)
		return domain.Order{}, err
	}

	order.Lines = []domain.OrderLine{{
		CatalogSKU:  sku,
		Name:        strings.TrimSpace(item.Name),
		ResolvedSKU: sku,
		Price:       item.Price,
		Quantity:    quantityOrOne(item.Quantity),
	}}
	order.Status = domain.OrderStatusReady

	if err := s.persist(ctx, order, previousLines); err != nil {
		span.RecordError(err)
		return domain.Order{}, err
	}

	productID := strings.TrimSpace(item.ProductID)
	if productID == "" {
		productID = sku
	}
	if err := s.catalog.ArchiveProduct(ctx, productID); err != nil {
		s.logger(ctx, "order.discount_product.archive_failed", map[string]any{
			"orderId":   order.ID,
			"productId": productID,
			"error":     err.Error(),
		})
	}

	s.record(ctx, order)
	s.publishAssembled(ctx, order)
	s.logger(ctx, "order.discount_redeemed", map[string]any{
		"orderId": order.ID,
		"sku":     sku,
		"issued":  len(result.Issued),
		"failed":  len(result.Failed),
	})
	return order, nil
}

func (s *orderAssembler) lookupSizing(ctx context.Context, order *domain.Order) sizingInputs {
	var inputs sizingInputs
	if order.CustomerEmail == "" {
		return inputs
	}

	user, err := s.users.FindByEmail(ctx, order.CustomerEmail)
	switch {
	case err == nil:
		order.UserID = user.ID
	case isRepositoryNotFound(err):
	default:
		s.logger(ctx, "order.user.lookup_failed", map[string]any{"email": order.CustomerEmail, "error": err.Error()})
	}

	if order.UserID != "" {
		sizing, err := s.sizings.LatestForUser(ctx, order.UserID)
		switch {
		case err == nil:
			inputs.sizing = &sizing
			order.Metadata.SizingID = sizing.ID
		case !isRepositoryNotFound(err):
			s.logger(ctx, "order.sizing.lookup_failed", map[string]any{"userId": order.UserID, "error": err.Error()})
		}

		measurement, err := s.measurements.LatestForUser(ctx, order.UserID)
		switch {
		case err == nil:
			inputs.measurement = &measurement
		case !isRepositoryNotFound(err):
			s.logger(ctx, "order.measurement.lookup_failed", map[string]any{"userId": order.UserID, "error": err.Error()})
		}
	}

	if inputs.measurement == nil {
		measurement, err := s.measurements.LatestForEmail(ctx, order.CustomerEmail)
		switch {
		case err == nil:
			inputs.measurement = &measurement
		case !isRepositoryNotFound(err):
			s.logger(ctx, "order.measurement.lookup_failed", map[string]any{"email": order.CustomerEmail, "error": err.Error()})
		}
	}
	if inputs.measurement != nil {
		order.Metadata.MeasurementID = inputs.measurement.ID
	}
	return inputs
}

func (s *orderAssembler) resolveLines(ctx context.Context, items []domain.OrderPaidLine, inputs sizingInputs) ([]domain.OrderLine, error) {
	lines := make([]domain.OrderLine, len(items))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency)
	for i, item := range items {
		i, item := i, item
		group.Go(func() error {
			lines[i] = s.resolveLine(groupCtx, i, item, inputs)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *orderAssembler) resolveLine(ctx context.Context, position int, item domain.OrderPaidLine, inputs sizingInputs) domain.OrderLine {
	sku := strings.TrimSpace(item.SKU)
	line := domain.OrderLine{
		Position:   position,
		CatalogSKU: sku,
		Name:       strings.TrimSpace(item.Name),
		Price:      item.Price,
		Quantity:   quantityOrOne(item.Quantity),
	}
	if sku == "" {
		s.logger(ctx, "order.line.missing_sku", map[string]any{"position": position, "name": line.Name})
		return line
	}

	switch domain.CategoryOf(sku) {
	case domain.CategorySuit, domain.CategoryUnknown:
		line.ResolvedSKU = sku
		return line
	}

	resolved, err := ResolveSKU(sku, inputs.sizing, inputs.measurement)
	if err != nil {
		fields := map[string]any{"sku": sku, "error": err.Error()}
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			fields["field"] = validationErr.Field
		}
		s.logger(ctx, "order.line.resolve_invalid", fields)
		return line
	}
	if !resolved.Resolved {
		return line
	}
	line.ResolvedSKU = resolved.SKU

	product, err := s.lookupProduct(ctx, resolved.SKU)
	if err != nil {
		s.logger(ctx, "order.line.product_unavailable", map[string]any{"sku": resolved.SKU, "error": err.Error()})
		return line
	}
	line.Product = &product
	return line
}

// lookupProduct reads the warehouse product, registering it from the catalog on first sight.
func (s *orderAssembler) lookupProduct(ctx context.Context, sku string) (domain.Product, error) {
	product, err := s.products.GetProductBySKU(ctx, sku)
	if err == nil {
		return product, nil
	}
	if !isRepositoryNotFound(err) {
		return domain.Product{}, err
	}

	variant, err := s.catalog.GetVariantBySKU(ctx, sku)
	if err != nil {
		return domain.Product{}, err
	}
	return s.products.CreateProduct(ctx, domain.Product{
		ID:        productIDPrefix + s.newID(),
		SKU:       sku,
		Name:      variant.ProductTitle,
		Price:     variant.Price,
		CreatedAt: s.clock(),
	})
}

func (s *orderAssembler) findAttendee(ctx context.Context, order *domain.Order) {
	if order.EventID == "" || order.CustomerEmail == "" || s.attendees == nil {
		return
	}
	attendee, err := s.attendees.FindByEventAndEmail(ctx, order.EventID, order.CustomerEmail)
	if err != nil {
		s.logger(ctx, "order.attendee.lookup_failed", map[string]any{
			"eventId": order.EventID,
			"email":   order.CustomerEmail,
			"error":   err.Error(),
		})
		return
	}
	order.AttendeeID = attendee.ID
}

func (s *orderAssembler) markAttendeePaid(ctx context.Context, order domain.Order) {
	if order.AttendeeID == "" {
		return
	}
	if err := s.attendees.MarkPaid(ctx, order.AttendeeID, order.PlacedAt); err != nil {
		s.logger(ctx, "order.attendee.mark_paid_failed", map[string]any{
			"attendeeId": order.AttendeeID,
			"orderId":    order.ID,
			"error":      err.Error(),
		})
	}
}

func (s *orderAssembler) persist(ctx context.Context, order domain.Order, previousLines int) error {
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Save(txCtx, order, previousLines); err != nil {
			return err
		}
		if len(order.DiscountCodes) > 0 {
			if err := s.discounts.MarkUsed(txCtx, order.DiscountCodes, order.PlacedAt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *orderAssembler) record(ctx context.Context, order domain.Order) {
	s.assembled.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(order.Status))))
	for _, line := range order.Lines {
		if line.Resolved() {
			continue
		}
		s.unresolved.Add(ctx, 1, metric.WithAttributes(attribute.String("category", string(domain.CategoryOf(line.CatalogSKU)))))
	}
}

func (s *orderAssembler) publishAssembled(ctx context.Context, order domain.Order) {
	if s.events == nil {
		return
	}
	event := OrderEvent{
		Type:          orderEventAssembled,
		OrderID:       order.ID,
		ExternalID:    order.ExternalID,
		OrderNumber:   order.OrderNumber,
		Status:        string(order.Status),
		EventID:       order.EventID,
		AttendeeID:    order.AttendeeID,
		LineCount:     len(order.Lines),
		UnresolvedSKU: unresolvedSKUs(order.Lines),
		OccurredAt:    s.clock(),
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.Status,
		})
	}
}

func (s *orderAssembler) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderAssembler) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrService) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
		return err
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case repoErr.IsConflict(), repoErr.IsUnavailable():
			return fmt.Errorf("%w: repository: %v", ErrService, err)
		}
	}

	return fmt.Errorf("%w: %v", ErrService, err)
}

// orderStatus applies the readiness rules: every line resolved is READY; otherwise the order
// waits on measurements only when a blocking line needs them and none were on file.
func orderStatus(lines []domain.OrderLine, hasSizingInputs bool) domain.OrderStatus {
	ready := true
	needsMeasurements := false
	for _, line := range lines {
		if line.Resolved() {
			continue
		}
		ready = false
		if RequiresMeasurements(line.CatalogSKU) {
			needsMeasurements = true
		}
	}
	switch {
	case ready:
		return domain.OrderStatusReady
	case needsMeasurements && !hasSizingInputs:
		return domain.OrderStatusPendingMeasurements
	default:
		return domain.OrderStatusPendingMissingSKU
	}
}

func discountRedemptionSKU(event domain.OrderPaidEvent) (string, bool) {
	if len(event.LineItems) != 1 {
		return "", false
	}
	sku := strings.TrimSpace(event.LineItems[0].SKU)
	if !strings.HasPrefix(strings.ToUpper(sku), domain.DiscountProductSKUPrefix) {
		return "", false
	}
	return sku, true
}

func unresolvedSKUs(lines []domain.OrderLine) []string {
	var out []string
	for _, line := range lines {
		if !line.Resolved() {
			out = append(out, line.CatalogSKU)
		}
	}
	return out
}

func isRepositoryNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func quantityOrOne(quantity int) int {
	if quantity <= 0 {
		return 1
	}
	return quantity
}

func cloneAddress(address *domain.Address) *domain.Address {
	if address == nil {
		return nil
	}
	copied := *address
	return &copied
}
