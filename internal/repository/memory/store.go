// Package memory is an in-process implementation of the repository
// contracts.  It backs DB_DRIVER=memory runs and the service and handler
// tests.  A single RWMutex guards the maps; the payment ledger
// additionally serialises on a per-ticket mutex.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/travel-ticket-booking/internal/model"
	"github.com/iliyamo/travel-ticket-booking/internal/repository"
)

type refreshRow struct {
	userID    uint64
	expiresAt time.Time
	revoked   bool
}

// Store holds every table in maps keyed by id.
type Store struct {
	mu           sync.RWMutex
	users        map[uint64]*model.User
	tickets      map[uint64]*model.Ticket
	bookings     map[uint64]*model.Booking
	transactions map[uint64]*model.Transaction
	refresh      map[string]*refreshRow
	seq          uint64

	locksMu     sync.Mutex
	ticketLocks map[uint64]*sync.Mutex

	now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:        map[uint64]*model.User{},
		tickets:      map[uint64]*model.Ticket{},
		bookings:     map[uint64]*model.Booking{},
		transactions: map[uint64]*model.Transaction{},
		refresh:      map[string]*refreshRow{},
		ticketLocks:  map[uint64]*sync.Mutex{},
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) nextID() uint64 {
	s.seq++
	return s.seq
}

// ticketLock returns the mutex serialising ledger updates of one ticket.
func (s *Store) ticketLock(id uint64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.ticketLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.ticketLocks[id] = l
	}
	return l
}

// ---- users ----

func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	now := s.now()
	u.ID = s.nextID()
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id uint64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) UpdateProfile(_ context.Context, id uint64, name, photoURL string) error {
	return s.updateUser(id, func(u *model.User) { u.Name, u.PhotoURL = name, photoURL })
}

func (s *Store) SetRole(_ context.Context, id uint64, role model.Role) error {
	return s.updateUser(id, func(u *model.User) { u.Role = role })
}

func (s *Store) SetFraud(_ context.Context, id uint64, fraud bool) error {
	return s.updateUser(id, func(u *model.User) { u.IsFraud = fraud })
}

func (s *Store) updateUser(id uint64, fn func(*model.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(u)
	u.UpdatedAt = s.now()
	return nil
}

func (s *Store) ListUsers(_ context.Context, role model.Role, query string) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := strings.ToLower(strings.TrimSpace(query))
	out := []model.User{}
	for _, u := range s.users {
		if role.Valid() && u.Role != role {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(u.Name), q) && !strings.Contains(u.Email, q) {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) UserStats(_ context.Context) (model.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st model.UserStats
	for _, u := range s.users {
		st.Total++
		switch u.Role {
		case model.RoleUser:
			st.Users++
		case model.RoleVendor:
			st.Vendors++
			if u.IsFraud {
				st.FraudVendors++
			}
		case model.RoleAdmin:
			st.Admins++
		}
	}
	return st, nil
}

func (s *Store) DeleteUser(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return repository.ErrNotFound
	}
	// Bookings made by the user or against the vendor's tickets pin the
	// account, as the foreign keys do in MySQL.
	for _, b := range s.bookings {
		if b.UserID == id || b.VendorID == id {
			return repository.ErrConflict
		}
	}
	delete(s.users, id)
	for _, t := range s.tickets {
		if t.VendorID == id && t.DeletedAt == nil {
			now := s.now()
			t.DeletedAt = &now
		}
	}
	return nil
}

// ---- refresh tokens ----

func (s *Store) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh[tokenHash] = &refreshRow{userID: userID, expiresAt: exp}
	return nil
}

func (s *Store) ValidateRefresh(_ context.Context, tokenHash string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.refresh[tokenHash]
	if !ok || row.revoked || !s.now().Before(row.expiresAt) {
		return 0, repository.ErrNotFound
	}
	return row.userID, nil
}

func (s *Store) RevokeByHash(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.refresh[tokenHash]; ok {
		row.revoked = true
	}
	return nil
}

func (s *Store) RevokeAllForUser(_ context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.refresh {
		if row.userID == userID {
			row.revoked = true
		}
	}
	return nil
}

// ---- tickets ----

func (s *Store) CreateTicket(_ context.Context, t *model.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[t.VendorID]; !ok {
		return repository.ErrNotFound
	}
	now := s.now()
	t.ID = s.nextID()
	t.CreatedAt, t.UpdatedAt = now, now
	if t.Perks == nil {
		t.Perks = []string{}
	}
	stored := cloneTicket(t)
	s.tickets[t.ID] = stored
	*t = *s.decorate(stored)
	return nil
}

// decorate returns a copy of t with the vendor columns joined in.
func (s *Store) decorate(t *model.Ticket) *model.Ticket {
	cp := cloneTicket(t)
	if v, ok := s.users[t.VendorID]; ok {
		cp.VendorName, cp.VendorEmail, cp.VendorFraud = v.Name, v.Email, v.IsFraud
	}
	return cp
}

func cloneTicket(t *model.Ticket) *model.Ticket {
	cp := *t
	cp.Perks = append([]string(nil), t.Perks...)
	if cp.Perks == nil {
		cp.Perks = []string{}
	}
	return &cp
}

func (s *Store) liveTicket(id uint64) (*model.Ticket, error) {
	t, ok := s.tickets[id]
	if !ok || t.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	return t, nil
}

func (s *Store) GetTicket(_ context.Context, id uint64) (*model.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.liveTicket(id)
	if err != nil {
		return nil, err
	}
	return s.decorate(t), nil
}

func (s *Store) UpdateTicket(_ context.Context, t *model.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.liveTicket(t.ID)
	if err != nil {
		return err
	}
	if cur.Verification == model.VerificationRejected {
		return repository.ErrStateChanged
	}
	cur.Title, cur.From, cur.To, cur.Transport = t.Title, t.From, t.To, t.Transport
	cur.Price, cur.Quantity = t.Price, t.Quantity
	cur.DepartureDate, cur.DepartureTime = t.DepartureDate, t.DepartureTime
	cur.Perks = append([]string{}, t.Perks...)
	cur.ImageURL = t.ImageURL
	cur.UpdatedAt = s.now()
	*t = *s.decorate(cur)
	return nil
}

func (s *Store) SoftDeleteTicket(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.liveTicket(id)
	if err != nil {
		return err
	}
	if cur.Verification == model.VerificationRejected {
		return repository.ErrStateChanged
	}
	now := s.now()
	cur.DeletedAt = &now
	cur.Advertised = false
	return nil
}

func (s *Store) collectTickets(keep func(*model.Ticket) bool) []model.Ticket {
	out := []model.Ticket{}
	for _, t := range s.tickets {
		if t.DeletedAt != nil {
			continue
		}
		d := s.decorate(t)
		if keep(d) {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (s *Store) ListTicketsByVendor(_ context.Context, vendorID uint64) ([]model.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectTickets(func(t *model.Ticket) bool { return t.VendorID == vendorID }), nil
}

func (s *Store) ListAllTickets(_ context.Context) ([]model.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectTickets(func(*model.Ticket) bool { return true }), nil
}

func isPublic(t *model.Ticket) bool {
	return t.Verification == model.VerificationApproved && !t.VendorFraud
}

func (s *Store) ListPublicTickets(_ context.Context, q model.TicketQuery) ([]model.Ticket, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	search := strings.ToLower(strings.TrimSpace(q.Search))
	items := s.collectTickets(func(t *model.Ticket) bool {
		if !isPublic(t) {
			return false
		}
		if q.Transport != "" && t.Transport != q.Transport {
			return false
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(t.From), search) &&
			!strings.Contains(strings.ToLower(t.To), search) &&
			!strings.Contains(strings.ToLower(t.Title), search) {
			return false
		}
		return true
	})
	switch q.SortBy {
	case model.SortPriceLow:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Price.LessThan(items[j].Price) })
	case model.SortPriceHigh:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Price.GreaterThan(items[j].Price) })
	}
	total := int64(len(items))
	start := q.Offset()
	if start > len(items) {
		start = len(items)
	}
	end := start + q.Limit
	if q.Limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end], total, nil
}

func (s *Store) LatestTickets(_ context.Context, limit int) ([]model.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return head(s.collectTickets(isPublic), limit), nil
}

func (s *Store) AdvertisedTickets(_ context.Context, limit int) ([]model.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return head(s.collectTickets(func(t *model.Ticket) bool { return isPublic(t) && t.Advertised }), limit), nil
}

func head(items []model.Ticket, n int) []model.Ticket {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

func (s *Store) SetVerification(_ context.Context, id uint64, from []model.VerificationStatus, to model.VerificationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.liveTicket(id)
	if err != nil {
		return err
	}
	for _, f := range from {
		if t.Verification == f {
			t.Verification = to
			if to == model.VerificationRejected {
				t.Advertised = false
			}
			t.UpdatedAt = s.now()
			return nil
		}
	}
	return repository.ErrStateChanged
}

func (s *Store) SetAdvertised(_ context.Context, id uint64, advertised bool, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.liveTicket(id)
	if err != nil {
		return err
	}
	if t.Advertised == advertised {
		return nil
	}
	if advertised {
		if t.Verification != model.VerificationApproved {
			return repository.ErrStateChanged
		}
		count := 0
		for _, other := range s.tickets {
			if other.Advertised && other.DeletedAt == nil {
				count++
			}
		}
		if count >= limit {
			return repository.ErrConflict
		}
	}
	t.Advertised = advertised
	t.UpdatedAt = s.now()
	return nil
}

// ---- bookings ----

func (s *Store) CreateBooking(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	b.ID = s.nextID()
	b.CreatedAt, b.UpdatedAt = now, now
	cp := *b
	s.bookings[b.ID] = &cp
	*b = *s.decorateBooking(&cp)
	return nil
}

func (s *Store) decorateBooking(b *model.Booking) *model.Booking {
	cp := *b
	if u, ok := s.users[b.UserID]; ok {
		cp.UserName, cp.UserEmail = u.Name, u.Email
	}
	return &cp
}

func (s *Store) GetBooking(_ context.Context, id uint64) (*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.decorateBooking(b), nil
}

func (s *Store) TransitionBooking(_ context.Context, id uint64, from, to model.BookingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	if b.Status != from {
		return repository.ErrStateChanged
	}
	b.Status = to
	b.UpdatedAt = s.now()
	return nil
}

func (s *Store) SetPaymentIntent(_ context.Context, id uint64, intentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	if b.Status != model.BookingAccepted || b.PaymentStatus != model.PaymentUnpaid {
		return repository.ErrStateChanged
	}
	b.PaymentIntentID = intentID
	b.UpdatedAt = s.now()
	return nil
}

func (s *Store) collectBookings(keep func(*model.Booking) bool) []model.Booking {
	out := []model.Booking{}
	for _, b := range s.bookings {
		if keep(b) {
			out = append(out, *s.decorateBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (s *Store) ListBookingsByUser(_ context.Context, userID uint64) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectBookings(func(b *model.Booking) bool { return b.UserID == userID }), nil
}

func (s *Store) ListBookingsByVendor(_ context.Context, vendorID uint64) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectBookings(func(b *model.Booking) bool { return b.VendorID == vendorID }), nil
}

func (s *Store) ListAllBookings(_ context.Context) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectBookings(func(*model.Booking) bool { return true }), nil
}

func (s *Store) VendorRevenue(_ context.Context, vendorID uint64) (model.VendorRevenue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := model.VendorRevenue{TotalRevenue: decimal.Zero}
	for _, b := range s.bookings {
		if b.VendorID == vendorID && b.Status == model.BookingPaid {
			out.TotalRevenue = out.TotalRevenue.Add(b.TotalPrice)
			out.TotalTicketsSold += b.Quantity
		}
	}
	for _, t := range s.tickets {
		if t.VendorID == vendorID && t.DeletedAt == nil {
			out.TotalTicketsAdded++
		}
	}
	return out, nil
}

// ---- payment ledger ----

// FinalizePayment holds the ticket's ledger lock for the whole
// check-and-decrement so concurrent payers cannot both pass the check.
func (s *Store) FinalizePayment(_ context.Context, bookingID uint64, txn *model.Transaction) error {
	s.mu.RLock()
	b, ok := s.bookings[bookingID]
	var ticketID uint64
	if ok {
		ticketID = b.TicketID
	}
	s.mu.RUnlock()
	if !ok {
		return repository.ErrNotFound
	}

	lock := s.ticketLock(ticketID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if b.Status != model.BookingAccepted {
		return repository.ErrStateChanged
	}
	t, ok := s.tickets[ticketID]
	if !ok {
		return repository.ErrNotFound
	}
	if t.Quantity < b.Quantity {
		return repository.ErrInsufficientAvailability
	}
	for _, existing := range s.transactions {
		if existing.BookingID == bookingID || existing.ProcessorRef == txn.ProcessorRef {
			return repository.ErrStateChanged
		}
	}

	now := s.now()
	t.Quantity -= b.Quantity
	t.UpdatedAt = now
	b.Status = model.BookingPaid
	b.PaymentStatus = model.PaymentPaid
	b.UpdatedAt = now

	txn.ID = s.nextID()
	txn.BookingID = bookingID
	txn.CreatedAt = now
	cp := *txn
	s.transactions[txn.ID] = &cp
	return nil
}

func (s *Store) GetTransaction(_ context.Context, id uint64) (*model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Store) ListTransactionsByUser(_ context.Context, userID uint64) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectTransactions(func(t *model.Transaction) bool { return t.UserID == userID }), nil
}

func (s *Store) ListAllTransactions(_ context.Context) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectTransactions(func(*model.Transaction) bool { return true }), nil
}

func (s *Store) collectTransactions(keep func(*model.Transaction) bool) []model.Transaction {
	out := []model.Transaction{}
	for _, t := range s.transactions {
		if keep(t) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}
