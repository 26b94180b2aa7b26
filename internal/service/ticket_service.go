package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/travel-ticket-booking/internal/model"
	"github.com/iliyamo/travel-ticket-booking/internal/repository"
	"github.com/iliyamo/travel-ticket-booking/internal/session"
)

// Listing limits.
const (
	DefaultPageSize   = 9
	MaxPageSize       = 50
	DefaultLatestSize = 6
)

// TicketInput is the vendor-editable part of a ticket.
type TicketInput struct {
	Title         string          `json:"title" validate:"required,max=200"`
	From          string          `json:"from_location" validate:"required,max=120"`
	To            string          `json:"to_location" validate:"required,max=120"`
	Transport     string          `json:"transport_type" validate:"required"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int             `json:"quantity" validate:"gte=0"`
	DepartureDate string          `json:"departure_date" validate:"required,datetime=2006-01-02"`
	DepartureTime string          `json:"departure_time" validate:"required"`
	Perks         []string        `json:"perks" validate:"max=20,dive,max=60"`
	ImageURL      string          `json:"image" validate:"omitempty,url,max=500"`
}

// TicketPage is one page of the public listing.
type TicketPage struct {
	Tickets    []model.Ticket   `json:"tickets"`
	Pagination model.Pagination `json:"pagination"`
}

// TicketService covers the ticket lifecycle: vendor listing, admin review
// and advertising, and the public catalogue.
type TicketService struct {
	tickets        TicketStore
	users          UserStore
	expiry         ExpiryPolicy
	advertiseLimit int
	log            logrus.FieldLogger
}

func NewTicketService(tickets TicketStore, users UserStore, expiry ExpiryPolicy, advertiseLimit int, log logrus.FieldLogger) *TicketService {
	if advertiseLimit <= 0 {
		advertiseLimit = DefaultLatestSize
	}
	return &TicketService{
		tickets:        tickets,
		users:          users,
		expiry:         expiry,
		advertiseLimit: advertiseLimit,
		log:            log.WithField("component", "ticket"),
	}
}

// normalize validates in and fills t with it.
func (s *TicketService) normalize(in TicketInput, t *model.Ticket) error {
	mode, err := model.ParseTransportMode(in.Transport)
	if err != nil {
		return ErrInvalidInput.WithMessage("transport_type must be Bus, Train, Launch or Plane")
	}
	if !in.Price.IsPositive() {
		return ErrInvalidPrice
	}
	if in.Quantity < 0 {
		return ErrInvalidQuantity.WithMessage("quantity cannot be negative")
	}
	dep, err := s.expiry.Departure(in.DepartureDate, in.DepartureTime)
	if err != nil || s.expiry.Expired(in.DepartureDate, in.DepartureTime) {
		return ErrInvalidDeparture
	}
	perks := make([]string, 0, len(in.Perks))
	for _, p := range in.Perks {
		if p = strings.TrimSpace(p); p != "" {
			perks = append(perks, p)
		}
	}
	t.Title = strings.TrimSpace(in.Title)
	t.From = strings.TrimSpace(in.From)
	t.To = strings.TrimSpace(in.To)
	t.Transport = mode
	t.Price = in.Price
	t.Quantity = in.Quantity
	t.DepartureDate = dep.Format(model.DateLayout)
	t.DepartureTime = dep.Format(model.TimeLayout)
	t.Perks = perks
	t.ImageURL = strings.TrimSpace(in.ImageURL)
	if t.Title == "" || t.From == "" || t.To == "" {
		return ErrInvalidInput.WithMessage("title, from_location and to_location are required")
	}
	return nil
}

// Create lists a new ticket for the calling vendor in pending review.
func (s *TicketService) Create(ctx context.Context, sess session.Session, in TicketInput) (*model.Ticket, error) {
	if err := requireRole(sess, model.RoleVendor); err != nil {
		return nil, err
	}
	vendor, err := s.users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		return nil, storeErr(err, ErrUserNotFound)
	}
	if vendor.IsFraud {
		return nil, ErrFraudVendor
	}
	t := &model.Ticket{VendorID: sess.UserID, Verification: model.VerificationPending}
	if err := s.normalize(in, t); err != nil {
		return nil, err
	}
	if err := s.tickets.CreateTicket(ctx, t); err != nil {
		return nil, storeErr(err, ErrUserNotFound)
	}
	s.log.WithFields(logrus.Fields{"ticket_id": t.ID, "vendor_id": sess.UserID}).Info("ticket created")
	return t, nil
}

// ownTicket loads a ticket the calling vendor owns and may still change.
func (s *TicketService) ownTicket(ctx context.Context, sess session.Session, id uint64) (*model.Ticket, error) {
	if err := requireRole(sess, model.RoleVendor); err != nil {
		return nil, err
	}
	t, err := s.tickets.GetTicket(ctx, id)
	if err != nil {
		return nil, storeErr(err, ErrTicketNotFound)
	}
	if t.VendorID != sess.UserID {
		return nil, ErrNotOwner
	}
	if t.Verification == model.VerificationRejected {
		return nil, ErrTicketRejected
	}
	return t, nil
}

// Update replaces the editable fields of the vendor's ticket.  Existing
// bookings keep their snapshot.
func (s *TicketService) Update(ctx context.Context, sess session.Session, id uint64, in TicketInput) (*model.Ticket, error) {
	t, err := s.ownTicket(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if err := s.normalize(in, t); err != nil {
		return nil, err
	}
	if err := s.tickets.UpdateTicket(ctx, t); err != nil {
		if errors.Is(err, repository.ErrStateChanged) {
			return nil, ErrTicketRejected
		}
		return nil, storeErr(err, ErrTicketNotFound)
	}
	s.log.WithField("ticket_id", id).Info("ticket updated")
	return t, nil
}

// Delete soft deletes the vendor's ticket.  Bookings keep referencing it.
func (s *TicketService) Delete(ctx context.Context, sess session.Session, id uint64) error {
	if _, err := s.ownTicket(ctx, sess, id); err != nil {
		return err
	}
	if err := s.tickets.SoftDeleteTicket(ctx, id); err != nil {
		if errors.Is(err, repository.ErrStateChanged) {
			return ErrTicketRejected
		}
		return storeErr(err, ErrTicketNotFound)
	}
	s.log.WithField("ticket_id", id).Info("ticket deleted")
	return nil
}

// ListMine returns the calling vendor's tickets.
func (s *TicketService) ListMine(ctx context.Context, sess session.Session) ([]model.Ticket, error) {
	if err := requireRole(sess, model.RoleVendor); err != nil {
		return nil, err
	}
	items, err := s.tickets.ListTicketsByVendor(ctx, sess.UserID)
	return items, storeErr(err, ErrTicketNotFound)
}

// ListAll returns every live ticket for review.
func (s *TicketService) ListAll(ctx context.Context, sess session.Session) ([]model.Ticket, error) {
	if err := requireRole(sess, model.RoleAdmin); err != nil {
		return nil, err
	}
	items, err := s.tickets.ListAllTickets(ctx)
	return items, storeErr(err, ErrTicketNotFound)
}

// Approve publishes a pending ticket.
func (s *TicketService) Approve(ctx context.Context, sess session.Session, id uint64) (*model.Ticket, error) {
	if err := requireRole(sess, model.RoleAdmin); err != nil {
		return nil, err
	}
	err := s.tickets.SetVerification(ctx, id, []model.VerificationStatus{model.VerificationPending}, model.VerificationApproved)
	if errors.Is(err, repository.ErrStateChanged) {
		return nil, ErrTicketNotPending
	}
	if err != nil {
		return nil, storeErr(err, ErrTicketNotFound)
	}
	s.log.WithFields(logrus.Fields{"ticket_id": id, "admin_id": sess.UserID}).Info("ticket approved")
	return s.reload(ctx, id)
}

// Reject takes a pending or approved ticket out of sale for good.
func (s *TicketService) Reject(ctx context.Context, sess session.Session, id uint64) (*model.Ticket, error) {
	if err := requireRole(sess, model.RoleAdmin); err != nil {
		return nil, err
	}
	from := []model.VerificationStatus{model.VerificationPending, model.VerificationApproved}
	err := s.tickets.SetVerification(ctx, id, from, model.VerificationRejected)
	if errors.Is(err, repository.ErrStateChanged) {
		return nil, ErrTicketRejected
	}
	if err != nil {
		return nil, storeErr(err, ErrTicketNotFound)
	}
	s.log.WithFields(logrus.Fields{"ticket_id": id, "admin_id": sess.UserID}).Info("ticket rejected")
	return s.reload(ctx, id)
}

// ToggleAdvertise flips the advertised flag of an approved ticket.
func (s *TicketService) ToggleAdvertise(ctx context.Context, sess session.Session, id uint64) (*model.Ticket, error) {
	if err := requireRole(sess, model.RoleAdmin); err != nil {
		return nil, err
	}
	t, err := s.tickets.GetTicket(ctx, id)
	if err != nil {
		return nil, storeErr(err, ErrTicketNotFound)
	}
	if t.Verification != model.VerificationApproved {
		return nil, ErrTicketNotApproved
	}
	err = s.tickets.SetAdvertised(ctx, id, !t.Advertised, s.advertiseLimit)
	switch {
	case errors.Is(err, repository.ErrConflict):
		return nil, ErrAdvertiseLimit
	case errors.Is(err, repository.ErrStateChanged):
		return nil, ErrTicketNotApproved
	case err != nil:
		return nil, storeErr(err, ErrTicketNotFound)
	}
	return s.reload(ctx, id)
}

// ListPublic pages through approved tickets of vendors in good standing.
func (s *TicketService) ListPublic(ctx context.Context, q model.TicketQuery) (TicketPage, error) {
	q.Search = strings.TrimSpace(q.Search)
	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.Limit < 1:
		q.Limit = DefaultPageSize
	case q.Limit > MaxPageSize:
		q.Limit = MaxPageSize
	}
	switch q.SortBy {
	case model.SortDefault, model.SortPriceLow, model.SortPriceHigh:
	default:
		q.SortBy = model.SortDefault
	}
	items, total, err := s.tickets.ListPublicTickets(ctx, q)
	if err != nil {
		return TicketPage{}, storeErr(err, ErrTicketNotFound)
	}
	return TicketPage{Tickets: items, Pagination: model.NewPagination(total, q.Page, q.Limit)}, nil
}

// Latest returns the most recently listed public tickets.
func (s *TicketService) Latest(ctx context.Context, limit int) ([]model.Ticket, error) {
	if limit < 1 {
		limit = DefaultLatestSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	items, err := s.tickets.LatestTickets(ctx, limit)
	return items, storeErr(err, ErrTicketNotFound)
}

// Advertised returns the admin-curated highlights.
func (s *TicketService) Advertised(ctx context.Context) ([]model.Ticket, error) {
	items, err := s.tickets.AdvertisedTickets(ctx, s.advertiseLimit)
	return items, storeErr(err, ErrTicketNotFound)
}

// Get returns a ticket.  Tickets that are not public are visible only to
// their vendor and to admins; everyone else sees not found.
func (s *TicketService) Get(ctx context.Context, sess session.Session, id uint64) (*model.Ticket, error) {
	t, err := s.tickets.GetTicket(ctx, id)
	if err != nil {
		return nil, storeErr(err, ErrTicketNotFound)
	}
	if t.Verification == model.VerificationApproved && !t.VendorFraud {
		return t, nil
	}
	switch sess.Role {
	case model.RoleAdmin:
		return t, nil
	case model.RoleVendor:
		if t.VendorID == sess.UserID {
			return t, nil
		}
	case model.RoleUser:
	}
	return nil, ErrTicketNotFound
}

func (s *TicketService) reload(ctx context.Context, id uint64) (*model.Ticket, error) {
	t, err := s.tickets.GetTicket(ctx, id)
	if err != nil {
		return nil, storeErr(err, ErrTicketNotFound)
	}
	return t, nil
}
