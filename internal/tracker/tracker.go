package tracker

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/brisastore/checkout/internal/domain"
)

// NotifyFunc fires when a tracked payment reaches a terminal status. The
// orchestrator registers its pending-session resolver here.
type NotifyFunc func(paymentID string, status domain.PaymentStatus, detail string)

// Tracker is the single source of truth for the latest known status of a
// delayed-settlement payment and its full history. Entries are never
// deleted, only marked terminal; history only ever grows.
type Tracker struct {
	mu       sync.Mutex
	payments map[string]*domain.TrackedPayment
	stopped  map[string]bool
	notify   NotifyFunc
	logger   *slog.Logger
	now      func() time.Time
}

func New(logger *slog.Logger, notify NotifyFunc) *Tracker {
	return &Tracker{
		payments: make(map[string]*domain.TrackedPayment),
		stopped:  make(map[string]bool),
		notify:   notify,
		logger:   logger,
		now:      time.Now,
	}
}

func (t *Tracker) Track(paymentID, orderID string, initial domain.PaymentStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.payments[paymentID]; ok {
		return fmt.Errorf("Track: payment %s already tracked", paymentID)
	}

	t.payments[paymentID] = &domain.TrackedPayment{
		PaymentID:     paymentID,
		OrderID:       orderID,
		CurrentStatus: initial,
		History: []domain.StatusChange{
			{Status: initial, At: t.now().UTC()},
		},
	}

	t.logger.Info("payment tracked", "payment_id", paymentID, "order_id", orderID, "status", initial)
	return nil
}

// Update appends a status change. Updates after a terminal status are
// refused so a slow poll can never overwrite a settled outcome. Safe to call
// from the external poll timer and a webhook concurrently.
func (t *Tracker) Update(paymentID string, status domain.PaymentStatus, detail string) error {
	t.mu.Lock()

	p, ok := t.payments[paymentID]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("Update: payment %s: %w", paymentID, domain.ErrNotFound)
	}
	if p.CurrentStatus.IsTerminal() {
		t.mu.Unlock()
		t.logger.Info("ignoring status update on settled payment",
			"payment_id", paymentID,
			"current", p.CurrentStatus,
			"ignored", status,
		)
		return fmt.Errorf("Update: %w", domain.ErrPaymentTerminal)
	}
	if t.stopped[paymentID] {
		t.mu.Unlock()
		return fmt.Errorf("Update: payment %s tracking stopped: %w", paymentID, domain.ErrPaymentTerminal)
	}

	p.CurrentStatus = status
	p.History = append(p.History, domain.StatusChange{
		Status: status,
		Detail: detail,
		At:     t.now().UTC(),
	})
	terminal := status.IsTerminal()
	t.mu.Unlock()

	t.logger.Info("payment status updated", "payment_id", paymentID, "status", status, "detail", detail)

	if terminal && t.notify != nil {
		t.notify(paymentID, status, detail)
	}
	return nil
}

// Get returns a copy so callers can read history without holding the lock.
func (t *Tracker) Get(paymentID string) (*domain.TrackedPayment, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("Get: payment %s: %w", paymentID, domain.ErrNotFound)
	}

	cp := *p
	cp.History = make([]domain.StatusChange, len(p.History))
	copy(cp.History, p.History)
	return &cp, nil
}

// Stop halts further updates without discarding the record or its history.
func (t *Tracker) Stop(paymentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.payments[paymentID]; ok {
		t.stopped[paymentID] = true
	}
}
