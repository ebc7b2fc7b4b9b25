package services

import (
	"context"
	"errors"
	"strings"

	"github.com/suitline/fulfillment/internal/commerce"
	domain "github.com/suitline/fulfillment/internal/domain"
)

// SuitAggregator synthesizes a suit line when an order contains exactly one jacket, vest,
// and pants of the same style.
type SuitAggregator struct {
	catalog commerce.Client
	logger  func(context.Context, string, map[string]any)
}

// NewSuitAggregator constructs an aggregator that prices synthesized suits through the catalog.
func NewSuitAggregator(catalog commerce.Client, logger func(context.Context, string, map[string]any)) (*SuitAggregator, error) {
	if catalog == nil {
		return nil, errors.New("suit aggregator: catalog client is required")
	}
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &SuitAggregator{catalog: catalog, logger: logger}, nil
}

type suitGroup struct {
	base   string
	counts map[domain.Category]int
}

// Aggregate returns the synthesized suit lines for the given order lines. Groups are emitted
// in order of first appearance. A failed price lookup keeps the synthesized line but leaves it
// unresolved.
func (a *SuitAggregator) Aggregate(ctx context.Context, lines []domain.OrderLine, sizing *domain.SizingRecord, measurement *domain.MeasurementRecord) ([]domain.OrderLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var order []string
	groups := make(map[string]*suitGroup)
	for _, line := range lines {
		category := domain.CategoryOf(line.CatalogSKU)
		if !category.IsSuitPart() || line.Synthesized {
			continue
		}
		base := SuitBaseCode(line.CatalogSKU)
		group, ok := groups[base]
		if !ok {
			group = &suitGroup{base: base, counts: make(map[domain.Category]int, 3)}
			groups[base] = group
			order = append(order, base)
		}
		quantity := line.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		group.counts[category] += quantity
	}

	var synthesized []domain.OrderLine
	for _, base := range order {
		group := groups[base]
		if !group.complete() {
			continue
		}
		synthesized = append(synthesized, a.synthesize(ctx, group.base, sizing, measurement))
	}
	return synthesized, nil
}

func (g *suitGroup) complete() bool {
	return g.counts[domain.CategoryJacket] == 1 &&
		g.counts[domain.CategoryVest] == 1 &&
		g.counts[domain.CategoryPants] == 1
}

func (a *SuitAggregator) synthesize(ctx context.Context, base string, sizing *domain.SizingRecord, measurement *domain.MeasurementRecord) domain.OrderLine {
	line := domain.OrderLine{
		CatalogSKU:  base,
		Name:        "Suit " + base,
		Quantity:    1,
		Synthesized: true,
	}

	resolved, err := ResolveSKU(base, sizing, measurement)
	if err != nil {
		a.logger(ctx, "suit.aggregate.resolve_failed", map[string]any{"sku": base, "error": err.Error()})
		return line
	}
	if !resolved.Resolved {
		return line
	}

	variant, err := a.catalog.GetVariantBySKU(ctx, resolved.SKU)
	if err != nil {
		a.logger(ctx, "suit.aggregate.price_failed", map[string]any{"sku": resolved.SKU, "error": err.Error()})
		return line
	}

	line.ResolvedSKU = resolved.SKU
	line.Price = variant.Price
	if title := strings.TrimSpace(variant.ProductTitle); title != "" {
		line.Name = title
	}
	return line
}
