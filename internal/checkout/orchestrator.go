package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brisastore/checkout/internal/domain"
	"github.com/brisastore/checkout/internal/gateway"
	"github.com/brisastore/checkout/internal/logging"
	"github.com/brisastore/checkout/internal/pricing"
	"github.com/brisastore/checkout/internal/tokenizer"
)

type methodRegistry interface {
	Describe(id domain.MethodID) (*domain.PaymentMethodDescriptor, error)
	ValidatePayer(id domain.MethodID, p domain.PayerProfile) *domain.ValidationError
}

type submitter interface {
	SubmitPayment(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error)
}

type paymentTracker interface {
	Track(paymentID, orderID string, initial domain.PaymentStatus) error
}

type attemptStore interface {
	Create(ctx context.Context, a *domain.PaymentAttempt) error
}

// WidgetHandle is one mounted secure-field widget session.
type WidgetHandle interface {
	Submit(ctx context.Context, fields tokenizer.NonSensitiveFields) (*domain.TokenizationResult, error)
	Unmount()
}

// WidgetMounter acquires widget sessions; satisfied by TokenizerMounter in
// production wiring.
type WidgetMounter interface {
	Mount(ctx context.Context, targets tokenizer.SecureFieldTargets) (WidgetHandle, error)
}

// TokenizerMounter adapts the tokenizer client to the orchestrator's mount
// interface.
type TokenizerMounter struct {
	Client *tokenizer.Client
}

func (m TokenizerMounter) Mount(ctx context.Context, targets tokenizer.SecureFieldTargets) (WidgetHandle, error) {
	h, err := m.Client.Mount(ctx, targets)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// ResultCallback is the surrounding application's success/error hook, fired
// when a session reaches a terminal outcome (including a delayed settlement
// resolving long after checkout rendered pending instructions).
type ResultCallback func(sessionID uuid.UUID, orderID string, status domain.PaymentStatus)

// Config holds the orchestrator's method-level business knobs.
type Config struct {
	PixDiscountPct int
	PixExpiry      time.Duration
	BoletoExpiry   time.Duration
}

type session struct {
	mu sync.Mutex
	domain.CheckoutSession
	widget WidgetHandle
}

// Orchestrator drives every checkout session through
// MethodSelection → DataEntry → Processing → Result. The Processing state is
// the mutual-exclusion gate: while an attempt is in flight no other
// transition is accepted, and a cancellation is queued instead of applied.
type Orchestrator struct {
	registry methodRegistry
	mounter  WidgetMounter
	gateway  submitter
	tracker  paymentTracker
	attempts attemptStore
	cfg      Config
	onResult ResultCallback

	mu        sync.RWMutex
	sessions  map[uuid.UUID]*session
	byPayment map[string]uuid.UUID
}

func NewOrchestrator(
	registry methodRegistry,
	mounter WidgetMounter,
	gw submitter,
	tr paymentTracker,
	attempts attemptStore,
	cfg Config,
	onResult ResultCallback,
) *Orchestrator {
	return &Orchestrator{
		registry:  registry,
		mounter:   mounter,
		gateway:   gw,
		tracker:   tr,
		attempts:  attempts,
		cfg:       cfg,
		onResult:  onResult,
		sessions:  make(map[uuid.UUID]*session),
		byPayment: make(map[string]uuid.UUID),
	}
}

// CreateSession opens a checkout for an order. Amount is fixed here; the only
// later change is the single PIX discount, and the original stays recoverable.
func (o *Orchestrator) CreateSession(ctx context.Context, orderID string, amount decimal.Decimal) (*domain.CheckoutSession, error) {
	if orderID == "" {
		return nil, fmt.Errorf("CreateSession: order id is required")
	}
	if amount.IsNegative() || amount.IsZero() {
		return nil, fmt.Errorf("CreateSession: amount must be positive")
	}

	now := time.Now().UTC()
	s := &session{
		CheckoutSession: domain.CheckoutSession{
			ID:             uuid.New(),
			OrderID:        orderID,
			Amount:         amount,
			OriginalAmount: amount,
			State:          domain.StateMethodSelection,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
	}

	o.mu.Lock()
	o.sessions[s.CheckoutSession.ID] = s
	o.mu.Unlock()

	logging.FromContext(ctx).Info("checkout session created",
		"session_id", s.CheckoutSession.ID,
		"order_id", orderID,
		"amount", amount,
	)
	return snapshot(s), nil
}

func (o *Orchestrator) Get(sessionID uuid.UUID) (*domain.CheckoutSession, error) {
	s, err := o.lookup(sessionID)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s), nil
}

// SelectMethod moves the session into data entry for one method. Switching
// method tears down any mounted widget first; the PIX discount is applied on
// entry and restored on exit, exactly once each way.
func (o *Orchestrator) SelectMethod(ctx context.Context, sessionID uuid.UUID, methodID domain.MethodID, targets tokenizer.SecureFieldTargets) (*domain.CheckoutSession, error) {
	desc, err := o.registry.Describe(methodID)
	if err != nil {
		return nil, fmt.Errorf("SelectMethod: %w", err)
	}

	s, err := o.lookup(sessionID)
	if err != nil {
		return nil, fmt.Errorf("SelectMethod: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State {
	case domain.StateMethodSelection, domain.StateDataEntry:
	case domain.StateCancelled:
		return nil, fmt.Errorf("SelectMethod: %w", domain.ErrSessionCancelled)
	default:
		return nil, fmt.Errorf("SelectMethod: from %s: %w", s.State, domain.ErrInvalidTransition)
	}

	// The widget is owned exclusively for one card data entry; it must be
	// gone before any transition away from card.
	o.releaseWidget(s)

	if s.Method == domain.MethodPix && methodID != domain.MethodPix && s.DiscountApplied {
		s.Amount = s.OriginalAmount
		s.DiscountApplied = false
	}

	if methodID == domain.MethodPix && !s.DiscountApplied && o.cfg.PixDiscountPct > 0 {
		quote, err := pricing.Discount(s.OriginalAmount, o.cfg.PixDiscountPct)
		if err != nil {
			return nil, fmt.Errorf("SelectMethod: %w", err)
		}
		s.Amount = quote.FinalAmount
		s.DiscountApplied = true
	}

	if methodID == domain.MethodCard {
		h, err := o.mounter.Mount(ctx, targets)
		if err != nil {
			return nil, fmt.Errorf("SelectMethod: %w", err)
		}
		s.widget = h
	}

	s.Method = desc.ID
	s.State = domain.StateDataEntry
	s.UpdatedAt = time.Now().UTC()

	logging.FromContext(ctx).Info("payment method selected",
		"session_id", sessionID,
		"method_id", methodID,
		"discount_applied", s.DiscountApplied,
	)
	return snapshot(s), nil
}

// UpdatePayer replaces the payer profile; legal only during data entry.
func (o *Orchestrator) UpdatePayer(ctx context.Context, sessionID uuid.UUID, payer domain.PayerProfile) (*domain.CheckoutSession, error) {
	s, err := o.lookup(sessionID)
	if err != nil {
		return nil, fmt.Errorf("UpdatePayer: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State == domain.StateCancelled {
		return nil, fmt.Errorf("UpdatePayer: %w", domain.ErrSessionCancelled)
	}
	if s.State != domain.StateDataEntry {
		return nil, fmt.Errorf("UpdatePayer: from %s: %w", s.State, domain.ErrInvalidTransition)
	}

	s.Payer = payer
	s.UpdatedAt = time.Now().UTC()
	return snapshot(s), nil
}

// Submit runs one attempt end to end: local validation, a fresh attempt id,
// card tokenization, the idempotent charge, and result application. Every
// path out of Processing is bounded; none leaves the session stuck there.
func (o *Orchestrator) Submit(ctx context.Context, sessionID uuid.UUID) (*domain.PaymentResult, error) {
	log := logging.FromContext(ctx)

	s, err := o.lookup(sessionID)
	if err != nil {
		return nil, fmt.Errorf("Submit: %w", err)
	}

	req, widget, err := o.beginAttempt(s)
	if err != nil {
		return nil, fmt.Errorf("Submit: %w", err)
	}

	if req.MethodID == domain.MethodCard {
		if err := o.tokenizeCard(ctx, widget, req); err != nil {
			o.failAttempt(s, req.AttemptID)
			return nil, fmt.Errorf("Submit: %w", err)
		}
	}

	result, err := o.gateway.SubmitPayment(ctx, req)
	if err != nil {
		o.failAttempt(s, req.AttemptID)
		log.Warn("charge attempt did not resolve",
			"session_id", sessionID,
			"attempt_id", req.AttemptID,
			"error", err,
		)
		return nil, fmt.Errorf("Submit: %w", err)
	}

	applied, err := o.applyResult(ctx, s, result)
	if err != nil {
		return nil, fmt.Errorf("Submit: %w", err)
	}
	return applied, nil
}

// beginAttempt validates locally, mints the attempt id and enters Processing.
// No network happens before this returns.
func (o *Orchestrator) beginAttempt(s *session) (*domain.PaymentRequest, WidgetHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State == domain.StateCancelled {
		return nil, nil, fmt.Errorf("beginAttempt: %w", domain.ErrSessionCancelled)
	}
	if s.State != domain.StateDataEntry {
		return nil, nil, fmt.Errorf("beginAttempt: from %s: %w", s.State, domain.ErrInvalidTransition)
	}
	if !s.Method.IsValid() {
		return nil, nil, fmt.Errorf("beginAttempt: %w", domain.ErrNoMethodSelected)
	}

	if verr := o.registry.ValidatePayer(s.Method, s.Payer); verr != nil {
		return nil, nil, verr
	}

	// Fresh idempotency key per attempt: a retry is always a new, distinct
	// request, never a transparent replay.
	s.AttemptID = uuid.New()
	s.State = domain.StateProcessing
	s.UpdatedAt = time.Now().UTC()

	req := &domain.PaymentRequest{
		OrderID:     s.OrderID,
		AttemptID:   s.AttemptID,
		MethodID:    s.Method,
		Amount:      s.Amount,
		Description: fmt.Sprintf("order %s", s.OrderID),
		Payer:       s.Payer,
	}
	if s.Payer.Card != nil {
		req.Installments = s.Payer.Card.Installments
	}

	now := time.Now().UTC()
	switch s.Method {
	case domain.MethodPix:
		exp := now.Add(o.cfg.PixExpiry)
		req.ExpiresAt = &exp
	case domain.MethodBoleto:
		exp := now.Add(o.cfg.BoletoExpiry)
		req.ExpiresAt = &exp
	}

	return req, s.widget, nil
}

// tokenizeCard exchanges the mounted widget's raw fields for a single-use
// token. The raw values never touch this process.
func (o *Orchestrator) tokenizeCard(ctx context.Context, widget WidgetHandle, req *domain.PaymentRequest) error {
	if widget == nil {
		return fmt.Errorf("tokenizeCard: %w", domain.ErrWidgetNotMounted)
	}

	fields := tokenizer.NonSensitiveFields{
		CardholderName: req.Payer.FirstName + " " + req.Payer.LastName,
		Installments:   req.Installments,
		Identification: req.Payer.Identification,
	}

	res, err := widget.Submit(ctx, fields)
	if err != nil {
		return fmt.Errorf("tokenizeCard: %w", err)
	}

	token, err := res.Consume()
	if err != nil {
		return fmt.Errorf("tokenizeCard: %w", err)
	}
	req.Token = token
	if req.Payer.Card != nil {
		req.Payer.Card.IssuerID = res.IssuerID
	}
	return nil
}

// failAttempt returns the session to data entry after an attempt that never
// produced a result (tokenization rejection, timeout, transport failure).
// A cancellation queued while Processing is honored here.
func (o *Orchestrator) failAttempt(s *session, attemptID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.AttemptID != attemptID || s.State != domain.StateProcessing {
		return
	}
	s.State = domain.StateDataEntry
	s.UpdatedAt = time.Now().UTC()
	o.applyQueuedCancel(s)
}

// applyResult moves the session out of Processing. A result whose attempt id
// no longer matches the session's current attempt is discarded: it belongs
// to a superseded submission.
func (o *Orchestrator) applyResult(ctx context.Context, s *session, result *domain.PaymentResult) (*domain.PaymentResult, error) {
	log := logging.FromContext(ctx)

	s.mu.Lock()

	if s.AttemptID != result.AttemptID {
		s.mu.Unlock()
		log.Warn("discarding late result for superseded attempt",
			"session_id", s.CheckoutSession.ID,
			"result_attempt_id", result.AttemptID,
			"current_attempt_id", s.AttemptID,
		)
		return nil, fmt.Errorf("applyResult: %w", domain.ErrStaleAttempt)
	}
	if s.State != domain.StateProcessing {
		s.mu.Unlock()
		return nil, fmt.Errorf("applyResult: from %s: %w", s.State, domain.ErrInvalidTransition)
	}

	s.PaymentID = result.PaymentID
	s.Reference = result.Reference
	s.ExpiresAt = result.ExpiresAt
	s.UpdatedAt = time.Now().UTC()

	var declineErr *domain.DeclineError
	var trackPending bool

	switch result.Status {
	case domain.PaymentStatusApproved:
		s.State = domain.StateResultApproved
		o.releaseWidget(s)

	case domain.PaymentStatusRejected, domain.PaymentStatusCancelled:
		// Rejection renders as a result but the session goes back to data
		// entry so the shopper can correct and resubmit with a new attempt.
		s.State = domain.StateDataEntry
		declineErr = gateway.DeclineFor(result.StatusDetail)
		o.applyQueuedCancel(s)

	case domain.PaymentStatusPending, domain.PaymentStatusInProcess:
		s.State = domain.StateResultPending
		trackPending = true
		o.releaseWidget(s)
	}

	sessionID := s.CheckoutSession.ID
	orderID := s.OrderID
	s.mu.Unlock()

	o.recordAttempt(ctx, s, result)

	if trackPending {
		o.mu.Lock()
		o.byPayment[result.PaymentID] = sessionID
		o.mu.Unlock()

		if err := o.tracker.Track(result.PaymentID, orderID, result.Status); err != nil {
			log.Error("failed to track pending payment", "payment_id", result.PaymentID, "error", err)
		}
	}

	if result.Status == domain.PaymentStatusApproved && o.onResult != nil {
		o.onResult(sessionID, orderID, domain.PaymentStatusApproved)
	}

	if declineErr != nil {
		return result, declineErr
	}
	return result, nil
}

// RequestCancel applies immediately outside Processing; during Processing it
// is queued and applied once the in-flight response resolves.
func (o *Orchestrator) RequestCancel(ctx context.Context, sessionID uuid.UUID) (*domain.CheckoutSession, error) {
	s, err := o.lookup(sessionID)
	if err != nil {
		return nil, fmt.Errorf("RequestCancel: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State {
	case domain.StateMethodSelection, domain.StateDataEntry:
		o.releaseWidget(s)
		s.State = domain.StateCancelled
		s.UpdatedAt = time.Now().UTC()

	case domain.StateProcessing:
		s.CancelRequested = true
		logging.FromContext(ctx).Info("cancellation queued until in-flight attempt resolves",
			"session_id", sessionID,
			"attempt_id", s.AttemptID,
		)

	default:
		return nil, fmt.Errorf("RequestCancel: from %s: %w", s.State, domain.ErrCancelNotAllowed)
	}

	return snapshot(s), nil
}

// ResolvePending is the tracker's terminal-status callback. It moves a
// pending session to its final result without ever re-entering Processing.
func (o *Orchestrator) ResolvePending(paymentID string, status domain.PaymentStatus, detail string) {
	o.mu.RLock()
	sessionID, ok := o.byPayment[paymentID]
	o.mu.RUnlock()
	if !ok {
		return
	}

	s, err := o.lookup(sessionID)
	if err != nil {
		return
	}

	s.mu.Lock()
	if s.State != domain.StateResultPending {
		s.mu.Unlock()
		return
	}
	if status == domain.PaymentStatusApproved {
		s.State = domain.StateResultApproved
	} else {
		s.State = domain.StateResultRejected
	}
	s.UpdatedAt = time.Now().UTC()
	orderID := s.OrderID
	s.mu.Unlock()

	if o.onResult != nil {
		o.onResult(sessionID, orderID, status)
	}
}

func (o *Orchestrator) lookup(sessionID uuid.UUID) (*session, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

// releaseWidget must be called with s.mu held.
func (o *Orchestrator) releaseWidget(s *session) {
	if s.widget != nil {
		s.widget.Unmount()
		s.widget = nil
	}
}

// applyQueuedCancel must be called with s.mu held and state == DataEntry.
func (o *Orchestrator) applyQueuedCancel(s *session) {
	if s.CancelRequested {
		o.releaseWidget(s)
		s.State = domain.StateCancelled
		s.CancelRequested = false
	}
}

func (o *Orchestrator) recordAttempt(ctx context.Context, s *session, result *domain.PaymentResult) {
	if o.attempts == nil {
		return
	}

	s.mu.Lock()
	attempt := &domain.PaymentAttempt{
		AttemptID:    result.AttemptID,
		SessionID:    s.CheckoutSession.ID,
		OrderID:      s.OrderID,
		MethodID:     s.Method,
		Amount:       s.Amount,
		Status:       result.Status,
		StatusDetail: result.StatusDetail,
		PaymentID:    result.PaymentID,
		CreatedAt:    time.Now().UTC(),
	}
	s.mu.Unlock()

	if err := o.attempts.Create(ctx, attempt); err != nil {
		logging.FromContext(ctx).Error("failed to persist payment attempt",
			"attempt_id", attempt.AttemptID,
			"error", err,
		)
	}
}

func snapshot(s *session) *domain.CheckoutSession {
	cp := s.CheckoutSession
	return &cp
}

// IsRecoverable reports whether an error from Submit leaves the session in
// data entry for another attempt. Only configuration-level failures are not.
func IsRecoverable(err error) bool {
	var verr *domain.ValidationError
	var terr *domain.TokenizationError
	var derr *domain.DeclineError
	if errors.As(err, &verr) || errors.As(err, &terr) || errors.As(err, &derr) {
		return true
	}
	return errors.Is(err, domain.ErrGatewayTimeout) || errors.Is(err, domain.ErrGatewayUnavailable)
}
