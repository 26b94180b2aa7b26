package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransportMode is the kind of vehicle a ticket is sold for.
type TransportMode string

const (
	TransportBus    TransportMode = "Bus"
	TransportTrain  TransportMode = "Train"
	TransportLaunch TransportMode = "Launch"
	TransportPlane  TransportMode = "Plane"
)

// ParseTransportMode accepts the mode names case-insensitively and returns
// the canonical spelling.
func ParseTransportMode(s string) (TransportMode, error) {
	for _, m := range []TransportMode{TransportBus, TransportTrain, TransportLaunch, TransportPlane} {
		if strings.EqualFold(strings.TrimSpace(s), string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown transport mode %q", s)
}

// VerificationStatus records the admin review state of a ticket.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// Ticket is a vendor-listed sellable travel slot.  Quantity is the pool of
// units still for sale; it only shrinks when a booking is paid.
//
// Fields:
//  ID            – primary key identifier.
//  VendorID      – user ID of the owning vendor.
//  VendorName    – vendor display name (denormalised for listings).
//  VendorEmail   – vendor contact email (denormalised for listings).
//  Title         – listing title.
//  From / To     – route endpoints.
//  Transport     – Bus, Train, Launch or Plane.
//  Price         – unit price, strictly positive.
//  Quantity      – remaining sellable units, never negative.
//  DepartureDate – calendar date, "2006-01-02".
//  DepartureTime – wall-clock time, "15:04".
//  Perks         – free-form amenities (AC, WiFi, ...).
//  ImageURL      – externally hosted picture.
//  Verification  – pending, approved or rejected.
//  Advertised    – admin-curated highlight flag.
//  DeletedAt     – soft delete marker (nil when live).
type Ticket struct {
	ID            uint64             `json:"id"`
	VendorID      uint64             `json:"vendor_id"`
	VendorName    string             `json:"vendor_name"`
	VendorEmail   string             `json:"vendor_email"`
	Title         string             `json:"title"`
	From          string             `json:"from_location"`
	To            string             `json:"to_location"`
	Transport     TransportMode      `json:"transport_type"`
	Price         decimal.Decimal    `json:"price"`
	Quantity      int                `json:"quantity"`
	DepartureDate string             `json:"departure_date"`
	DepartureTime string             `json:"departure_time"`
	Perks         []string           `json:"perks"`
	ImageURL      string             `json:"image,omitempty"`
	Verification  VerificationStatus `json:"verification_status"`
	Advertised    bool               `json:"is_advertised"`
	VendorFraud   bool               `json:"-"`
	DeletedAt     *time.Time         `json:"-"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// Snapshot copies the fields a booking must remember even if the ticket
// is later edited.
func (t *Ticket) Snapshot() TicketSnapshot {
	return TicketSnapshot{
		Title:         t.Title,
		From:          t.From,
		To:            t.To,
		Transport:     t.Transport,
		UnitPrice:     t.Price,
		DepartureDate: t.DepartureDate,
		DepartureTime: t.DepartureTime,
	}
}

// TicketSortOrder selects listing order for public searches.
type TicketSortOrder string

const (
	SortDefault   TicketSortOrder = ""
	SortPriceLow  TicketSortOrder = "price-low"
	SortPriceHigh TicketSortOrder = "price-high"
)

// TicketQuery holds filters and pagination for the public ticket listing.
type TicketQuery struct {
	Search    string
	Transport TransportMode
	SortBy    TicketSortOrder
	Page      int
	Limit     int
}

// Offset returns the row offset for the requested page.
func (q TicketQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

// Pagination is returned alongside paged listings.
type Pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

// NewPagination computes the page count for total rows.
func NewPagination(total int64, page, limit int) Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{Total: total, Page: page, Limit: limit, TotalPages: pages}
}
