package domain

import "time"

type BookingStatus string

const (
	BookingPending BookingStatus = "pending"
	BookingPaid    BookingStatus = "paid"
)

func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch BookingStatus(s) {
	case BookingPending, BookingPaid:
		return BookingStatus(s), true
	default:
		return "", false
	}
}

type PackageTier string

const (
	PackageBase       PackageTier = "base"
	PackageExplorer   PackageTier = "explorer"
	PackageExpedition PackageTier = "expedition"
)

// Account is a registered visitor. Immutable after creation; one per email.
type Account struct {
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// TripConfig is the user-assembled trip: destination, dates, guests, tier
// and add-ons. It is what the pricing calculator prices and what a booking
// snapshots at creation time.
type TripConfig struct {
	Forest        string      `json:"forest"`
	Pickup        string      `json:"pickup"`
	DateIn        string      `json:"date_in"`            // yyyy-mm-dd
	DateOut       string      `json:"date_out,omitempty"` // empty on day trips
	DayTrip       bool        `json:"day_trip"`
	Guests        int         `json:"guests"`
	Package       PackageTier `json:"package"`
	NeedTransport bool        `json:"need_transport"`
	NeedLodging   bool        `json:"need_lodging"`
}

type Booking struct {
	ID     int64         `json:"id"`
	Code   string        `json:"code"`
	Email  string        `json:"email"`
	Name   string        `json:"name,omitempty"`
	Status BookingStatus `json:"status"`

	TripConfig

	// Subtotal is the estimate captured at creation, in whole rupiah.
	Subtotal int64 `json:"subtotal"`

	PaidAt     *time.Time `json:"paid_at,omitempty"`
	PaidMethod string     `json:"paid_method,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Payment is an append-only ledger entry recorded when a booking is paid.
type Payment struct {
	ID        int64         `json:"id"`
	BookingID int64         `json:"booking_id"`
	Code      string        `json:"code"`
	Email     string        `json:"email"`
	Amount    int64         `json:"amount"`
	Method    string        `json:"method"`
	Status    BookingStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// Session is the decoded client credential: proof of "signed in as Email",
// not a cryptographic identity.
type Session struct {
	Email    string    `json:"email"`
	Name     string    `json:"name,omitempty"`
	IssuedAt time.Time `json:"issued_at"`
}
