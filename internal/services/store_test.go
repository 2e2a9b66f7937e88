package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"bizledger/internal/models"
	"bizledger/internal/repositories"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// memStore is an in-memory stand-in for the billing tables. Every repository
// call is atomic, and memUnitOfWork serializes transactions and restores a
// snapshot when one fails.
type memStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	businesses   map[uuid.UUID]models.Business
	payments     map[uuid.UUID]models.SubscriptionPayment
	events       map[string]models.StripeEvent
	debts        map[uuid.UUID]models.Debt
	debtPayments []models.DebtPayment
	customers    map[uuid.UUID]models.Customer

	trialWrites int
	failOn      map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		businesses: map[uuid.UUID]models.Business{},
		payments:   map[uuid.UUID]models.SubscriptionPayment{},
		events:     map[string]models.StripeEvent{},
		debts:      map[uuid.UUID]models.Debt{},
		customers:  map[uuid.UUID]models.Customer{},
		failOn:     map[string]error{},
	}
}

type memSnapshot struct {
	businesses   map[uuid.UUID]models.Business
	payments     map[uuid.UUID]models.SubscriptionPayment
	events       map[string]models.StripeEvent
	debts        map[uuid.UUID]models.Debt
	debtPayments []models.DebtPayment
	customers    map[uuid.UUID]models.Customer
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memSnapshot{
		businesses:   copyMap(s.businesses),
		payments:     copyMap(s.payments),
		events:       copyMap(s.events),
		debts:        copyMap(s.debts),
		debtPayments: append([]models.DebtPayment(nil), s.debtPayments...),
		customers:    copyMap(s.customers),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.businesses = snap.businesses
	s.payments = snap.payments
	s.events = snap.events
	s.debts = snap.debts
	s.debtPayments = snap.debtPayments
	s.customers = snap.customers
}

// fail must be called with mu held.
func (s *memStore) fail(op string) error {
	return s.failOn[op]
}

func (s *memStore) setFailure(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failOn, op)
		return
	}
	s.failOn[op] = err
}

func (s *memStore) addBusiness(b models.Business) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.businesses[b.ID] = b
}

func (s *memStore) business(id uuid.UUID) models.Business {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.businesses[id]
}

func (s *memStore) addCustomer(c models.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = c
}

func (s *memStore) customer(id uuid.UUID) models.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customers[id]
}

func (s *memStore) debt(id uuid.UUID) models.Debt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debts[id]
}

func (s *memStore) paymentByTransaction(txID string) (models.SubscriptionPayment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.TransactionID == txID {
			return p, true
		}
	}
	return models.SubscriptionPayment{}, false
}

func (s *memStore) eventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *memStore) debtPaymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.debtPayments)
}

type memTxKey struct{}

type memUnitOfWork struct {
	s *memStore
}

func (u memUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	u.s.txMu.Lock()
	defer u.s.txMu.Unlock()

	snap := u.s.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		u.s.restore(snap)
		return err
	}
	return nil
}

type memBusinessRepo struct{ s *memStore }

var _ repositories.BusinessRepository = memBusinessRepo{}

func (r memBusinessRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Business, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("BusinessGet"); err != nil {
		return nil, err
	}
	b, ok := r.s.businesses[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &b, nil
}

func (r memBusinessRepo) GetByStripeCustomerID(ctx context.Context, customerID string) (*models.Business, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.businesses {
		if b.StripeCustomerID != nil && *b.StripeCustomerID == customerID {
			return &b, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r memBusinessRepo) EnsureTrialEnd(ctx context.Context, id uuid.UUID, candidate time.Time) (time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.businesses[id]
	if !ok {
		return time.Time{}, pgx.ErrNoRows
	}
	if b.TrialEnd == nil {
		b.TrialEnd = &candidate
		r.s.businesses[id] = b
		r.s.trialWrites++
	}
	return *b.TrialEnd, nil
}

func (r memBusinessRepo) ExpireSubscription(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.businesses[id]
	if !ok || !b.SubscriptionActive || b.SubscriptionEndDate == nil || !b.SubscriptionEndDate.Before(now) {
		return false, nil
	}
	b.SubscriptionActive = false
	r.s.businesses[id] = b
	return true, nil
}

func (r memBusinessRepo) ExpireLapsed(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []uuid.UUID
	for id, b := range r.s.businesses {
		if b.SubscriptionActive && b.SubscriptionEndDate != nil && b.SubscriptionEndDate.Before(now) {
			b.SubscriptionActive = false
			r.s.businesses[id] = b
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r memBusinessRepo) Activate(ctx context.Context, id uuid.UUID, now time.Time, periodDays int, extend bool) (*models.SubscriptionWindow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Activate"); err != nil {
		return nil, err
	}
	b, ok := r.s.businesses[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}

	start, base := now, now
	if extend && b.SubscriptionActive && b.SubscriptionEndDate != nil && b.SubscriptionEndDate.After(now) {
		start, base = *b.SubscriptionStartDate, *b.SubscriptionEndDate
	}
	end := base.AddDate(0, 0, periodDays)

	b.SubscriptionActive = true
	b.SubscriptionStartDate = &start
	b.SubscriptionEndDate = &end
	r.s.businesses[id] = b
	return &models.SubscriptionWindow{StartDate: start, EndDate: end}, nil
}

func (r memBusinessRepo) Deactivate(ctx context.Context, id uuid.UUID, endAt *time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.businesses[id]
	if !ok {
		return false, nil
	}
	b.SubscriptionActive = false
	if endAt != nil {
		end := *endAt
		b.SubscriptionEndDate = &end
	}
	r.s.businesses[id] = b
	return true, nil
}

func (r memBusinessRepo) SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b := r.s.businesses[id]
	b.StripeCustomerID = &customerID
	r.s.businesses[id] = b
	return nil
}

type memPaymentRepo struct{ s *memStore }

var _ repositories.SubscriptionPaymentRepository = memPaymentRepo{}

func (r memPaymentRepo) Upsert(ctx context.Context, payment *models.SubscriptionPayment) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("PaymentUpsert"); err != nil {
		return false, err
	}
	for id, p := range r.s.payments {
		if p.TransactionID != payment.TransactionID {
			continue
		}
		if p.Status == models.PaymentStatusApproved {
			return false, nil
		}
		p.BusinessID = payment.BusinessID
		p.SenderNumber = payment.SenderNumber
		p.Amount = payment.Amount
		p.Status = models.PaymentStatusPending
		r.s.payments[id] = p
		payment.ID = id
		payment.Status = p.Status
		return true, nil
	}

	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	payment.Status = models.PaymentStatusPending
	r.s.payments[payment.ID] = *payment
	return true, nil
}

func (r memPaymentRepo) HasApproved(ctx context.Context, transactionID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.TransactionID == transactionID && p.Status == models.PaymentStatusApproved {
			return true, nil
		}
	}
	return false, nil
}

func (r memPaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.SubscriptionPayment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &p, nil
}

func (r memPaymentRepo) ListByBusiness(ctx context.Context, businessID uuid.UUID, limit, offset int) ([]*models.SubscriptionPayment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*models.SubscriptionPayment{}
	for _, p := range r.s.payments {
		if p.BusinessID == businessID {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransactionID < out[j].TransactionID })
	return page(out, limit, offset), nil
}

func (r memPaymentRepo) mark(id uuid.UUID, status string, notes *string, verifiedBy *uuid.UUID) bool {
	p, ok := r.s.payments[id]
	if !ok || p.Status == models.PaymentStatusApproved {
		return false
	}
	now := time.Now()
	p.Status = status
	p.VerificationNotes = notes
	p.VerifiedBy = verifiedBy
	p.VerifiedAt = &now
	r.s.payments[id] = p
	return true
}

func (r memPaymentRepo) MarkApproved(ctx context.Context, id uuid.UUID, notes *string, verifiedBy *uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.mark(id, models.PaymentStatusApproved, notes, verifiedBy), nil
}

func (r memPaymentRepo) MarkRejected(ctx context.Context, id uuid.UUID, notes *string, verifiedBy *uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.mark(id, models.PaymentStatusRejected, notes, verifiedBy), nil
}

func (r memPaymentRepo) MarkActivated(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil
	}
	p.Status = models.PaymentStatusApproved
	p.SubscriptionActivated = true
	r.s.payments[id] = p
	return nil
}

type memEventRepo struct{ s *memStore }

var _ repositories.StripeEventRepository = memEventRepo{}

func (r memEventRepo) Exists(ctx context.Context, eventID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.events[eventID]
	return ok, nil
}

func (r memEventRepo) Insert(ctx context.Context, eventID, eventType string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("EventInsert"); err != nil {
		return err
	}
	if _, ok := r.s.events[eventID]; ok {
		return repositories.ErrDuplicateEvent
	}
	r.s.events[eventID] = models.StripeEvent{EventID: eventID, EventType: eventType, ProcessedAt: time.Now()}
	return nil
}

type memCustomerRepo struct{ s *memStore }

var _ repositories.CustomerRepository = memCustomerRepo{}

func (r memCustomerRepo) GetByID(ctx context.Context, businessID, id uuid.UUID) (*models.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customers[id]
	if !ok || c.BusinessID != businessID {
		return nil, pgx.ErrNoRows
	}
	return &c, nil
}

func (r memCustomerRepo) AdjustTotalDebt(ctx context.Context, businessID, id uuid.UUID, delta float64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customers[id]
	if !ok || c.BusinessID != businessID {
		return nil
	}
	c.TotalDebt += delta
	if c.TotalDebt < 0 {
		c.TotalDebt = 0
	}
	r.s.customers[id] = c
	return nil
}

type memDebtRepo struct{ s *memStore }

var _ repositories.DebtRepository = memDebtRepo{}

func (r memDebtRepo) Create(ctx context.Context, debt *models.Debt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if debt.ID == uuid.Nil {
		debt.ID = uuid.New()
	}
	now := time.Now()
	debt.CreatedAt, debt.UpdatedAt = now, now
	r.s.debts[debt.ID] = *debt
	return nil
}

func (r memDebtRepo) GetByID(ctx context.Context, businessID, id uuid.UUID) (*models.Debt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.debts[id]
	if !ok || d.BusinessID != businessID {
		return nil, pgx.ErrNoRows
	}
	return &d, nil
}

func (r memDebtRepo) ApplyPayment(ctx context.Context, businessID, id uuid.UUID, amount float64) (*models.Debt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.debts[id]
	if !ok || d.BusinessID != businessID {
		return nil, pgx.ErrNoRows
	}
	d.PaymentAmount += amount
	if d.Amount-d.PaymentAmount <= 0 {
		d.Status = models.DebtStatusPaid
	} else {
		d.Status = models.DebtStatusPartial
	}
	r.s.debts[id] = d
	return &d, nil
}

func (r memDebtRepo) InsertPayment(ctx context.Context, payment *models.DebtPayment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("DebtPaymentInsert"); err != nil {
		return err
	}
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	payment.CreatedAt = time.Now()
	r.s.debtPayments = append(r.s.debtPayments, *payment)
	return nil
}

func (r memDebtRepo) Update(ctx context.Context, businessID, id uuid.UUID, patch models.DebtPatch) (*models.Debt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.debts[id]
	if !ok || d.BusinessID != businessID {
		return nil, pgx.ErrNoRows
	}
	if patch.Description != nil {
		d.Description = patch.Description
	}
	if patch.DueDate != nil {
		d.DueDate = patch.DueDate
	}
	r.s.debts[id] = d
	return &d, nil
}

func (r memDebtRepo) List(ctx context.Context, businessID uuid.UUID, status *string, limit, offset int) ([]*models.Debt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*models.Debt{}
	for _, d := range r.s.debts {
		if d.BusinessID == businessID && (status == nil || d.Status == *status) {
			d := d
			out = append(out, &d)
		}
	}
	return page(out, limit, offset), nil
}

func (r memDebtRepo) ListByCustomer(ctx context.Context, businessID, customerID uuid.UUID) ([]*models.Debt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*models.Debt{}
	for _, d := range r.s.debts {
		if d.BusinessID == businessID && d.CustomerID != nil && *d.CustomerID == customerID {
			d := d
			out = append(out, &d)
		}
	}
	return out, nil
}

func (r memDebtRepo) ListPayments(ctx context.Context, businessID, debtID uuid.UUID) ([]*models.DebtPayment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*models.DebtPayment{}
	for _, p := range r.s.debtPayments {
		if p.BusinessID == businessID && p.DebtID == debtID {
			p := p
			out = append(out, &p)
		}
	}
	return out, nil
}

func (r memDebtRepo) Summary(ctx context.Context, businessID uuid.UUID) (*models.DebtSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	summary := &models.DebtSummary{}
	for _, d := range r.s.debts {
		if d.BusinessID != businessID {
			continue
		}
		summary.TotalDebts++
		summary.TotalAmount += d.Amount
		summary.TotalPaid += d.PaymentAmount
		if d.Amount > d.PaymentAmount {
			summary.TotalOutstanding += d.Amount - d.PaymentAmount
		}
		switch d.Status {
		case models.DebtStatusPending:
			summary.PendingCount++
		case models.DebtStatusPartial:
			summary.PartialCount++
		case models.DebtStatusPaid:
			summary.PaidCount++
		}
	}
	return summary, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// spyAccessCache records invalidations.
type spyAccessCache struct {
	mu          sync.Mutex
	invalidated []uuid.UUID
}

func (c *spyAccessCache) GetAccess(context.Context, uuid.UUID) (*models.AccessStatus, error) {
	return nil, nil
}

func (c *spyAccessCache) SetAccess(context.Context, uuid.UUID, *models.AccessStatus) error {
	return nil
}

func (c *spyAccessCache) InvalidateAccess(_ context.Context, ids ...uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, ids...)
	return nil
}

func (c *spyAccessCache) Ping(context.Context) error {
	return nil
}

func (c *spyAccessCache) wasInvalidated(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, got := range c.invalidated {
		if got == id {
			return true
		}
	}
	return false
}

// fixedClock returns a settable clock for services that read the time.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
