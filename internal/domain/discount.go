package domain

import "time"

// DiscountType distinguishes attendee gifts from automatic group credits.
type DiscountType string

const (
	DiscountTypeGift  DiscountType = "GIFT"
	DiscountTypeGroup DiscountType = "GROUP"
)

// Discount is a monetary credit owned by an attendee. A discount without a code is an
// intent that has not been issued on the commerce platform yet.
type Discount struct {
	ID           string
	EventID      string
	AttendeeID   string
	Type         DiscountType
	Amount       int64
	MinimumOrder int64
	Code         string
	Used         bool
	UsedAt       *time.Time
	ProductID    string
	ProductSKU   string
	VariantID    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Issued reports whether a redeemable code exists for the discount.
func (d Discount) Issued() bool {
	return d.Code != ""
}

// Event is a social occasion whose attendees are outfitted together.
type Event struct {
	ID        string
	Name      string
	Date      *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Attendee is a participant of an event.
type Attendee struct {
	ID      string
	EventID string
	UserID  string
	Email   string
	Styled  bool
	Invited bool
	LookID  string
	Paid    bool
	PaidAt  *time.Time
}

// DiscountEligible reports whether the attendee may receive discounts.
func (a Attendee) DiscountEligible() bool {
	return a.Styled && a.Invited && a.LookID != ""
}

// Look is a priced outfit bundle assigned to attendees.
type Look struct {
	ID       string
	Name     string
	Price    int64
	BundleID string
}

// GroupDiscountOffer is the synthesized group credit an attendee is entitled to.
type GroupDiscountOffer struct {
	EventID      string
	AttendeeID   string
	Amount       int64
	MinimumOrder int64
}
