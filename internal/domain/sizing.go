package domain

import "time"

// SizingRecord is an immutable garment sizing snapshot supplied by a customer.
// The most recently created record for a user is authoritative.
type SizingRecord struct {
	ID           string
	UserID       string
	JacketSize   string
	JacketLength string
	VestSize     string
	VestLength   string
	PantSize     string
	PantLength   string
	ShirtNeck    string
	ShirtSleeve  string
	CreatedAt    time.Time
}

// MeasurementRecord is an immutable body measurement snapshot. Records may be keyed
// only by email before the customer has an account.
type MeasurementRecord struct {
	ID        string
	UserID    string
	Email     string
	ShoeSize  string
	CreatedAt time.Time
}

// User is the minimal customer identity needed to match sizing inputs to an order.
type User struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	CreatedAt time.Time
}
