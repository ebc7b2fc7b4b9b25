package domain

import (
	"strings"
	"time"
)

// Category identifies the garment family encoded by the first character of a catalog SKU.
type Category string

const (
	CategorySuit                Category = "SUIT"
	CategoryJacket              Category = "JACKET"
	CategoryPants               Category = "PANTS"
	CategoryVest                Category = "VEST"
	CategoryShirt               Category = "SHIRT"
	CategoryBowTie              Category = "BOW_TIE"
	CategoryNeckTie             Category = "NECK_TIE"
	CategoryBelt                Category = "BELT"
	CategoryShoes               Category = "SHOES"
	CategorySocks               Category = "SOCKS"
	CategorySwatch              Category = "SWATCH"
	CategoryPremiumPocketSquare Category = "PREMIUM_POCKET_SQUARE"
	CategoryUnknown             Category = "UNKNOWN"
)

// SuitCategoryCode is the leading character shared by every suit-level SKU.
const SuitCategoryCode = '0'

var categoryCodes = map[byte]Category{
	'0': CategorySuit,
	'1': CategoryJacket,
	'2': CategoryPants,
	'3': CategoryVest,
	'4': CategoryShirt,
	'5': CategoryBowTie,
	'6': CategoryNeckTie,
	'7': CategoryBelt,
	'8': CategoryShoes,
	'9': CategorySocks,
	'W': CategorySwatch,
	'P': CategoryPremiumPocketSquare,
}

// CategoryOf returns the category selected by the SKU's leading character.
// Unrecognised codes map to CategoryUnknown rather than failing.
func CategoryOf(sku string) Category {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return CategoryUnknown
	}
	if category, ok := categoryCodes[strings.ToUpper(sku[:1])[0]]; ok {
		return category
	}
	return CategoryUnknown
}

// IsSuitPart reports whether the category participates in suit aggregation.
func (c Category) IsSuitPart() bool {
	return c == CategoryJacket || c == CategoryVest || c == CategoryPants
}

// Product is a warehouse-fulfillable variant recognised by the fulfillment centre.
type Product struct {
	ID        string
	SKU       string
	Name      string
	Price     int64
	CreatedAt time.Time
}

// CatalogVariant is the commerce platform's view of a sellable variant.
type CatalogVariant struct {
	ProductID    string
	VariantID    string
	SKU          string
	ProductTitle string
	Price        int64
	Currency     string
}

// ResolvedSKU is the outcome of fulfillment resolution. Resolved is false when the
// inputs needed for the category are missing.
type ResolvedSKU struct {
	SKU      string
	Category Category
	Resolved bool
}
