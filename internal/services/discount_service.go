package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/suitline/fulfillment/internal/commerce"
	domain "github.com/suitline/fulfillment/internal/domain"
	"github.com/suitline/fulfillment/internal/repositories"
)

const (
	discountIDPrefix = "dsc_"
	giftCodePrefix   = "GIFT"
	groupCodePrefix  = "GROUP"

	groupDiscountMinAttendees  = 4
	groupDiscountFlatThreshold = int64(30000)
	groupDiscountFlatAmount    = int64(5000)
	groupDiscountMinimumOrder  = int64(26000)

	defaultDiscountCurrency = "usd"
	tracerName              = "github.com/suitline/fulfillment/internal/services"
)

var groupDiscountRate = decimal.RequireFromString("0.25")

// DiscountServiceDeps bundles collaborators required to construct the discount service.
type DiscountServiceDeps struct {
	Events     repositories.EventRepository
	Attendees  repositories.AttendeeRepository
	Looks      repositories.LookRepository
	Discounts  repositories.DiscountRepository
	Catalog    commerce.Client
	UnitOfWork repositories.UnitOfWork
	Currency   string
	Clock      func() time.Time
	// IDGenerator produces unique suffixes for discount ids and virtual product SKUs.
	IDGenerator func() string
	// CodeGenerator produces the random portion of customer-facing codes.
	CodeGenerator func() string
	Tracer        trace.Tracer
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type discountService struct {
	events     repositories.EventRepository
	attendees  repositories.AttendeeRepository
	looks      repositories.LookRepository
	discounts  repositories.DiscountRepository
	catalog    commerce.Client
	unitOfWork repositories.UnitOfWork
	currency   string
	clock      func() time.Time
	newID      func() string
	newCode    func() string
	titles     *bluemonday.Policy
	tracer     trace.Tracer
	logger     func(context.Context, string, map[string]any)
}

var _ DiscountService = (*discountService)(nil)

// NewDiscountService wires dependencies into a concrete DiscountService implementation.
func NewDiscountService(deps DiscountServiceDeps) (DiscountService, error) {
	if deps.Events == nil {
		return nil, errors.New("discount service: event repository is required")
	}
	if deps.Attendees == nil {
		return nil, errors.New("discount service: attendee repository is required")
	}
	if deps.Looks == nil {
		return nil, errors.New("discount service: look repository is required")
	}
	if deps.Discounts == nil {
		return nil, errors.New("discount service: discount repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("discount service: catalog client is required")
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

	codeGen := deps.CodeGenerator
	if codeGen == nil {
		codeGen = randomCodeBody
	}

	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	currency := strings.ToLower(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = defaultDiscountCurrency
	}

	return &discountService{
		events:     deps.Events,
		attendees:  deps.Attendees,
		looks:      deps.Looks,
		discounts:  deps.Discounts,
		catalog:    deps.Catalog,
		unitOfWork: unit,
		currency:   currency,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:   idGen,
		newCode: codeGen,
		titles:  bluemonday.StrictPolicy(),
		tracer:  tracer,
		logger:  logger,
	}, nil
}

type intentCheck struct {
	attendee domain.Attendee
	look     domain.Look
	amount   int64
}

func (s *discountService) CreateIntents(ctx context.Context, cmd CreateDiscountIntentsCommand) (DiscountIntentBatch, error) {
	ctx, span := s.tracer.Start(ctx, "DiscountService.CreateIntents")
	defer span.End()

	eventID := strings.TrimSpace(cmd.EventID)
	if eventID == "" {
		return DiscountIntentBatch{}, fmt.Errorf("%w: event id is required", ErrDiscountInvalidInput)
	}
	if len(cmd.Intents) == 0 {
		return DiscountIntentBatch{}, fmt.Errorf("%w: at least one intent is required", ErrDiscountInvalidInput)
	}
	span.SetAttributes(attribute.String("event.id", eventID), attribute.Int("intents", len(cmd.Intents)))

	var order []string
	requested := make(map[string]int64, len(cmd.Intents))
	for i, intent := range cmd.Intents {
		attendeeID := strings.TrimSpace(intent.AttendeeID)
		if attendeeID == "" {
			return DiscountIntentBatch{}, fmt.Errorf("%w: intents[%d].attendeeId is required", ErrDiscountInvalidInput, i)
		}
		if intent.Amount <= 0 {
			return DiscountIntentBatch{}, fmt.Errorf("%w: intents[%d].amount must be > 0", ErrDiscountInvalidInput, i)
		}
		if _, seen := requested[attendeeID]; !seen {
			order = append(order, attendeeID)
		}
		requested[attendeeID] += intent.Amount
	}

	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		return DiscountIntentBatch{}, s.mapRepositoryError(err)
	}

	roster, err := s.attendees.ListByEvent(ctx, eventID)
	if err != nil {
		return DiscountIntentBatch{}, s.mapRepositoryError(err)
	}
	byID := make(map[string]domain.Attendee, len(roster))
	for _, attendee := range roster {
		byID[attendee.ID] = attendee
	}
	groupActive := countEligible(roster) >= groupDiscountMinAttendees

	existing, err := s.discounts.List(ctx, repositories.DiscountFilter{EventID: eventID, AttendeeIDs: order})
	if err != nil {
		return DiscountIntentBatch{}, s.mapRepositoryError(err)
	}
	issuedGifts := make(map[string]int64, len(order))
	issuedGroups := make(map[string]int64, len(order))
	var replaced []domain.Discount
	for _, discount := range existing {
		switch {
		case discount.Type == domain.DiscountTypeGroup:
			if discount.Issued() {
				issuedGroups[discount.AttendeeID] += discount.Amount
			}
		case discount.Issued():
			issuedGifts[discount.AttendeeID] += discount.Amount
		default:
			replaced = append(replaced, discount)
		}
	}

	checks := make([]intentCheck, 0, len(order))
	var total int64
	for _, attendeeID := range order {
		attendee, ok := byID[attendeeID]
		if !ok {
			return DiscountIntentBatch{}, fmt.Errorf("%w: attendee %s is not part of event %s", ErrNotFound, attendeeID, eventID)
		}
		look, err := s.eligibleLook(ctx, attendee)
		if err != nil {
			return DiscountIntentBatch{}, err
		}

		amount := requested[attendeeID]
		// An issued group code stands in for the offer; the offer only counts while the
		// event still qualifies.
		group, issued := issuedGroups[attendeeID]
		if !issued && groupActive {
			group, _ = groupDiscountFor(look.Price)
		}
		if committed := issuedGifts[attendeeID] + amount + group; committed > look.Price {
			return DiscountIntentBatch{}, fmt.Errorf("%w: attendee %s would receive %d against look price %d",
				ErrDiscountExceedsLook, attendeeID, committed, look.Price)
		}
		checks = append(checks, intentCheck{attendee: attendee, look: look, amount: amount})
		total += amount
	}

	sku := fmt.Sprintf("%s%s-%s", domain.DiscountProductSKUPrefix, eventID, s.newID())
	variant, err := s.catalog.CreateDiscountProduct(ctx, commerce.DiscountProductRequest{
		SKU:      sku,
		Title:    s.productTitle(event),
		Price:    total,
		Currency: s.currency,
		Metadata: map[string]string{
			"eventId":   eventID,
			"attendees": strings.Join(order, ","),
		},
	})
	if err != nil {
		return DiscountIntentBatch{}, fmt.Errorf("%w: create discount product: %v", ErrService, err)
	}

	now := s.clock()
	intents := make([]domain.Discount, 0, len(checks))
	for _, check := range checks {
		intents = append(intents, domain.Discount{
			ID:         discountIDPrefix + s.newID(),
			EventID:    eventID,
			AttendeeID: check.attendee.ID,
			Type:       domain.DiscountTypeGift,
			Amount:     check.amount,
			ProductID:  variant.ProductID,
			ProductSKU: variant.SKU,
			VariantID:  variant.VariantID,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		for _, previous := range replaced {
			if err := s.discounts.Delete(txCtx, previous.ID); err != nil {
				return err
			}
		}
		for _, intent := range intents {
			if err := s.discounts.Insert(txCtx, intent); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.deleteProduct(ctx, variant.ProductID, "rollback")
		return DiscountIntentBatch{}, s.mapRepositoryError(err)
	}

	s.removeOrphanedProducts(ctx, replaced)

	s.logger(ctx, "discount.intents.created", map[string]any{
		"eventId":  eventID,
		"sku":      variant.SKU,
		"count":    len(intents),
		"total":    total,
		"replaced": len(replaced),
	})

	return DiscountIntentBatch{
		EventID:   eventID,
		ProductID: variant.ProductID,
		SKU:       variant.SKU,
		VariantID: variant.VariantID,
		Total:     total,
		Intents:   intents,
	}, nil
}

func (s *discountService) RedeemForOrder(ctx context.Context, productSKU string, orderID string) (RedemptionResult, error) {
	ctx, span := s.tracer.Start(ctx, "DiscountService.RedeemForOrder")
	defer span.End()

	productSKU = strings.TrimSpace(productSKU)
	if productSKU == "" {
		return RedemptionResult{}, fmt.Errorf("%w: product sku is required", ErrDiscountInvalidInput)
	}
	span.SetAttributes(attribute.String("discount.sku", productSKU), attribute.String("order.id", orderID))

	unissued := false
	intents, err := s.discounts.List(ctx, repositories.DiscountFilter{
		ProductSKU: productSKU,
		Type:       domain.DiscountTypeGift,
		Issued:     &unissued,
	})
	if err != nil {
		return RedemptionResult{}, s.mapRepositoryError(err)
	}

	var result RedemptionResult
	for _, intent := range intents {
		issued, err := s.issueGift(ctx, intent, orderID)
		if err != nil {
			s.logger(ctx, "discount.redeem.failed", map[string]any{
				"discountId": intent.ID,
				"attendeeId": intent.AttendeeID,
				"orderId":    orderID,
				"error":      err.Error(),
			})
			result.Failed = append(result.Failed, RedemptionFailure{
				DiscountID: intent.ID,
				AttendeeID: intent.AttendeeID,
				Err:        err,
			})
			continue
		}
		result.Issued = append(result.Issued, issued)
	}

	s.logger(ctx, "discount.redeemed", map[string]any{
		"sku":     productSKU,
		"orderId": orderID,
		"issued":  len(result.Issued),
		"failed":  len(result.Failed),
	})
	return result, nil
}

func (s *discountService) issueGift(ctx context.Context, intent domain.Discount, orderID string) (domain.Discount, error) {
	attendee, err := s.attendees.FindByID(ctx, intent.AttendeeID)
	if err != nil {
		return domain.Discount{}, s.mapRepositoryError(err)
	}
	look, err := s.lookFor(ctx, attendee)
	if err != nil {
		return domain.Discount{}, err
	}
	if strings.TrimSpace(look.BundleID) == "" {
		return domain.Discount{}, fmt.Errorf("%w: look %s has no bundle", ErrAttendeeNotEligible, look.ID)
	}

	code, err := s.catalog.CreateDiscountCode(ctx, commerce.DiscountCodeRequest{
		Code:       s.formatCode(giftCodePrefix),
		Title:      "Gift for " + s.sanitize(look.Name),
		Amount:     intent.Amount,
		Currency:   s.currency,
		ProductIDs: []string{look.BundleID},
		Metadata: map[string]string{
			"discountId": intent.ID,
			"attendeeId": intent.AttendeeID,
			"eventId":    intent.EventID,
			"orderId":    orderID,
		},
	})
	if err != nil {
		return domain.Discount{}, fmt.Errorf("%w: create discount code: %v", ErrService, err)
	}

	intent.Code = code
	intent.UpdatedAt = s.clock()
	if err := s.discounts.Update(ctx, intent); err != nil {
		s.logger(ctx, "discount.code.orphaned", map[string]any{"discountId": intent.ID, "code": code})
		return domain.Discount{}, s.mapRepositoryError(err)
	}
	return intent, nil
}

func (s *discountService) GroupDiscount(ctx context.Context, eventID string, attendeeID string) (domain.GroupDiscountOffer, error) {
	offer, _, err := s.groupOffer(ctx, eventID, attendeeID)
	return offer, err
}

func (s *discountService) IssueGroupDiscount(ctx context.Context, eventID string, attendeeID string) (domain.Discount, error) {
	ctx, span := s.tracer.Start(ctx, "DiscountService.IssueGroupDiscount")
	defer span.End()

	offer, look, err := s.groupOffer(ctx, eventID, attendeeID)
	if err != nil {
		return domain.Discount{}, err
	}

	unused := false
	existing, err := s.discounts.List(ctx, repositories.DiscountFilter{
		EventID:     offer.EventID,
		AttendeeIDs: []string{offer.AttendeeID},
		Type:        domain.DiscountTypeGroup,
		Used:        &unused,
	})
	if err != nil {
		return domain.Discount{}, s.mapRepositoryError(err)
	}
	if len(existing) > 0 {
		return existing[0], nil
	}

	prior, err := s.discounts.List(ctx, repositories.DiscountFilter{
		EventID:     offer.EventID,
		AttendeeIDs: []string{offer.AttendeeID},
	})
	if err != nil {
		return domain.Discount{}, s.mapRepositoryError(err)
	}
	if committed := issuedTotal(prior) + offer.Amount; committed > look.Price {
		return domain.Discount{}, fmt.Errorf("%w: attendee %s would receive %d against look price %d",
			ErrDiscountExceedsLook, offer.AttendeeID, committed, look.Price)
	}
	if strings.TrimSpace(look.BundleID) == "" {
		return domain.Discount{}, fmt.Errorf("%w: look %s has no bundle", ErrAttendeeNotEligible, look.ID)
	}

	id := discountIDPrefix + s.newID()
	code, err := s.catalog.CreateDiscountCode(ctx, commerce.DiscountCodeRequest{
		Code:         s.formatCode(groupCodePrefix),
		Title:        "Group discount for " + s.sanitize(look.Name),
		Amount:       offer.Amount,
		Currency:     s.currency,
		MinimumOrder: offer.MinimumOrder,
		ProductIDs:   []string{look.BundleID},
		Metadata: map[string]string{
			"discountId": id,
			"attendeeId": offer.AttendeeID,
			"eventId":    offer.EventID,
		},
	})
	if err != nil {
		return domain.Discount{}, fmt.Errorf("%w: create discount code: %v", ErrService, err)
	}

	now := s.clock()
	discount := domain.Discount{
		ID:           id,
		EventID:      offer.EventID,
		AttendeeID:   offer.AttendeeID,
		Type:         domain.DiscountTypeGroup,
		Amount:       offer.Amount,
		MinimumOrder: offer.MinimumOrder,
		Code:         code,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.discounts.Insert(ctx, discount); err != nil {
		return domain.Discount{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "discount.group.issued", map[string]any{
		"eventId":    offer.EventID,
		"attendeeId": offer.AttendeeID,
		"amount":     offer.Amount,
	})
	return discount, nil
}

func (s *discountService) MarkUsed(ctx context.Context, codes []string, usedAt time.Time) error {
	normalized := normalizeCodes(codes)
	if len(normalized) == 0 {
		return nil
	}

	found, err := s.discounts.FindByCodes(ctx, normalized)
	if err != nil {
		return s.mapRepositoryError(err)
	}

	usedAt = usedAt.UTC()
	for _, discount := range found {
		if discount.Used {
			continue
		}
		discount.Used = true
		discount.UsedAt = &usedAt
		discount.UpdatedAt = s.clock()
		if err := s.discounts.Update(ctx, discount); err != nil {
			return s.mapRepositoryError(err)
		}
	}
	return nil
}

func (s *discountService) groupOffer(ctx context.Context, eventID string, attendeeID string) (domain.GroupDiscountOffer, domain.Look, error) {
	eventID = strings.TrimSpace(eventID)
	attendeeID = strings.TrimSpace(attendeeID)
	if eventID == "" || attendeeID == "" {
		return domain.GroupDiscountOffer{}, domain.Look{}, fmt.Errorf("%w: event id and attendee id are required", ErrDiscountInvalidInput)
	}

	if _, err := s.events.FindByID(ctx, eventID); err != nil {
		return domain.GroupDiscountOffer{}, domain.Look{}, s.mapRepositoryError(err)
	}
	roster, err := s.attendees.ListByEvent(ctx, eventID)
	if err != nil {
		return domain.GroupDiscountOffer{}, domain.Look{}, s.mapRepositoryError(err)
	}

	idx := slices.IndexFunc(roster, func(a domain.Attendee) bool { return a.ID == attendeeID })
	if idx < 0 {
		return domain.GroupDiscountOffer{}, domain.Look{}, fmt.Errorf("%w: attendee %s is not part of event %s", ErrNotFound, attendeeID, eventID)
	}
	look, err := s.eligibleLook(ctx, roster[idx])
	if err != nil {
		return domain.GroupDiscountOffer{}, domain.Look{}, err
	}
	if eligible := countEligible(roster); eligible < groupDiscountMinAttendees {
		return domain.GroupDiscountOffer{}, domain.Look{}, fmt.Errorf("%w: event %s has %d eligible attendees", ErrGroupDiscountIneligible, eventID, eligible)
	}

	amount, minimum := groupDiscountFor(look.Price)
	return domain.GroupDiscountOffer{
		EventID:      eventID,
		AttendeeID:   attendeeID,
		Amount:       amount,
		MinimumOrder: minimum,
	}, look, nil
}

func (s *discountService) eligibleLook(ctx context.Context, attendee domain.Attendee) (domain.Look, error) {
	if !attendee.Styled || !attendee.Invited {
		return domain.Look{}, fmt.Errorf("%w: attendee %s must be styled and invited", ErrAttendeeNotEligible, attendee.ID)
	}
	return s.lookFor(ctx, attendee)
}

func (s *discountService) lookFor(ctx context.Context, attendee domain.Attendee) (domain.Look, error) {
	lookID := strings.TrimSpace(attendee.LookID)
	if lookID == "" {
		return domain.Look{}, fmt.Errorf("%w: attendee %s has no look", ErrAttendeeNotEligible, attendee.ID)
	}
	look, err := s.looks.FindByID(ctx, lookID)
	if err != nil {
		return domain.Look{}, s.mapRepositoryError(err)
	}
	return look, nil
}

func (s *discountService) removeOrphanedProducts(ctx context.Context, replaced []domain.Discount) {
	seen := make(map[string]struct{})
	for _, previous := range replaced {
		if previous.ProductSKU == "" || previous.ProductID == "" {
			continue
		}
		if _, ok := seen[previous.ProductSKU]; ok {
			continue
		}
		seen[previous.ProductSKU] = struct{}{}

		remaining, err := s.discounts.List(ctx, repositories.DiscountFilter{ProductSKU: previous.ProductSKU})
		if err != nil {
			s.logger(ctx, "discount.product.orphan_check_failed", map[string]any{"sku": previous.ProductSKU, "error": err.Error()})
			continue
		}
		if len(remaining) == 0 {
			s.deleteProduct(ctx, previous.ProductID, "replaced")
		}
	}
}

func (s *discountService) deleteProduct(ctx context.Context, productID string, reason string) {
	if err := s.catalog.DeleteProduct(ctx, productID); err != nil {
		s.logger(ctx, "discount.product.delete_failed", map[string]any{
			"productId": productID,
			"reason":    reason,
			"error":     err.Error(),
		})
	}
}

func (s *discountService) productTitle(event domain.Event) string {
	name := s.sanitize(event.Name)
	if name == "" {
		name = event.ID
	}
	return "Attendee gifts for " + name
}

func (s *discountService) sanitize(value string) string {
	return strings.TrimSpace(s.titles.Sanitize(value))
}

func (s *discountService) formatCode(prefix string) string {
	body := strings.ToUpper(s.newCode())
	if len(body) < 8 {
		body += strings.Repeat("0", 8-len(body))
	}
	return fmt.Sprintf("%s-%s-%s", prefix, body[:4], body[4:8])
}

func (s *discountService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *discountService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrDiscountInvalidInput, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: repository unavailable: %v", ErrService, err)
		}
	}

	return err
}

// groupDiscountFor returns the group credit and minimum order for a look price.
func groupDiscountFor(lookPrice int64) (amount int64, minimumOrder int64) {
	if lookPrice <= groupDiscountFlatThreshold {
		return groupDiscountFlatAmount, 0
	}
	amount = decimal.NewFromInt(lookPrice).Mul(groupDiscountRate).Round(0).IntPart()
	return amount, groupDiscountMinimumOrder
}

// issuedTotal sums discounts that carry a code, used or not.
func issuedTotal(discounts []domain.Discount) int64 {
	var total int64
	for _, discount := range discounts {
		if discount.Issued() {
			total += discount.Amount
		}
	}
	return total
}

func countEligible(attendees []domain.Attendee) int {
	count := 0
	for _, attendee := range attendees {
		if attendee.DiscountEligible() {
			count++
		}
	}
	return count
}

func normalizeCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" || slices.Contains(out, code) {
			continue
		}
		out = append(out, code)
	}
	return out
}

// randomCodeBody takes the entropy tail of a ULID, which is Crockford base32 and free of
// ambiguous characters.
func randomCodeBody() string {
	id := ulid.Make().String()
	return id[len(id)-8:]
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
