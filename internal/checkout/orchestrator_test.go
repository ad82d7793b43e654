package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brisastore/checkout/internal/domain"
	"github.com/brisastore/checkout/internal/methods"
	"github.com/brisastore/checkout/internal/tokenizer"
)

type fakeWidget struct {
	mu        sync.Mutex
	submits   int
	unmounts  int
	submitErr error
	nextToken int
}

func (w *fakeWidget) Submit(ctx context.Context, fields tokenizer.NonSensitiveFields) (*domain.TokenizationResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.submits++
	if w.submitErr != nil {
		return nil, w.submitErr
	}
	w.nextToken++
	return &domain.TokenizationResult{
		Token:              uuid.NewString(),
		IssuerID:           "visa",
		InstallmentOptions: []int{1, 3, 6, 12},
	}, nil
}

func (w *fakeWidget) Unmount() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.unmounts++
}

type fakeMounter struct {
	widget   *fakeWidget
	mountErr error
	mounts   int
}

func (m *fakeMounter) Mount(ctx context.Context, targets tokenizer.SecureFieldTargets) (WidgetHandle, error) {
	m.mounts++
	if m.mountErr != nil {
		return nil, m.mountErr
	}
	return m.widget, nil
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []*domain.PaymentRequest
	respond  func(req *domain.PaymentRequest) (*domain.PaymentResult, error)
	block    chan struct{}
}

func (g *fakeGateway) SubmitPayment(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	g.mu.Lock()
	cp := *req
	g.requests = append(g.requests, &cp)
	block := g.block
	g.mu.Unlock()

	if block != nil {
		<-block
	}
	return g.respond(req)
}

func (g *fakeGateway) calls() []*domain.PaymentRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*domain.PaymentRequest(nil), g.requests...)
}

type fakeTracker struct {
	mu      sync.Mutex
	tracked map[string]domain.PaymentStatus
}

func (t *fakeTracker) Track(paymentID, orderID string, initial domain.PaymentStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tracked == nil {
		t.tracked = make(map[string]domain.PaymentStatus)
	}
	t.tracked[paymentID] = initial
	return nil
}

type resultRecorder struct {
	mu      sync.Mutex
	results []domain.PaymentStatus
}

func (r *resultRecorder) record(sessionID uuid.UUID, orderID string, status domain.PaymentStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, status)
}

func (r *resultRecorder) all() []domain.PaymentStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.PaymentStatus(nil), r.results...)
}

func approvedResponse(req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	return &domain.PaymentResult{
		PaymentID:      "pay_" + req.AttemptID.String()[:8],
		AttemptID:      req.AttemptID,
		Status:         domain.PaymentStatusApproved,
		StatusDetail:   "accredited",
		SettlementKind: domain.SettlementInstant,
	}, nil
}

type fixture struct {
	orch    *Orchestrator
	gw      *fakeGateway
	mounter *fakeMounter
	widget  *fakeWidget
	tracker *fakeTracker
	results *resultRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	reg := methods.NewStaticRegistry(12)
	widget := &fakeWidget{}
	f := &fixture{
		gw:      &fakeGateway{respond: approvedResponse},
		mounter: &fakeMounter{widget: widget},
		widget:  widget,
		tracker: &fakeTracker{},
		results: &resultRecorder{},
	}
	f.orch = NewOrchestrator(reg, f.mounter, f.gw, f.tracker, nil, Config{
		PixDiscountPct: 5,
		PixExpiry:      time.Hour,
		BoletoExpiry:   3 * 24 * time.Hour,
	}, f.results.record)
	return f
}

func cardPayer() domain.PayerProfile {
	return domain.PayerProfile{
		FirstName:      "Ana",
		LastName:       "Souza",
		Email:          "ana@example.com",
		Identification: domain.Identification{Type: domain.TaxIDCPF, Number: "111.444.777-35"},
		Card:           &domain.CardDetails{Installments: 3},
	}
}

func pixPayer() domain.PayerProfile {
	p := cardPayer()
	p.Card = nil
	return p
}

func boletoPayer() domain.PayerProfile {
	p := pixPayer()
	p.Address = &domain.Address{
		Street:     "Rua das Laranjeiras",
		Number:     "120",
		PostalCode: "01310-100",
		City:       "Sao Paulo",
		State:      "SP",
	}
	return p
}

func startSession(t *testing.T, f *fixture) uuid.UUID {
	t.Helper()
	s, err := f.orch.CreateSession(context.Background(), "order-1", decimal.RequireFromString("181.70"))
	require.NoError(t, err)
	require.Equal(t, domain.StateMethodSelection, s.State)
	return s.ID
}

func TestCardCheckout_ApprovedExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := startSession(t, f)

	s, err := f.orch.SelectMethod(ctx, id, domain.MethodCard, tokenizer.SecureFieldTargets{CardNumber: "#n"})
	require.NoError(t, err)
	assert.Equal(t, domain.StateDataEntry, s.State)
	assert.Equal(t, 1, f.mounter.mounts)

	_, err = f.orch.UpdatePayer(ctx, id, cardPayer())
	require.NoError(t, err)

	res, err := f.orch.Submit(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusApproved, res.Status)

	s, err = f.orch.Get(id)
	require.NoError(t, err)
	assert.Equal(t, domain.StateResultApproved, s.State)
	assert.NotEqual(t, uuid.Nil, s.AttemptID)

	// Exactly one approval callback, one charge, widget released.
	assert.Equal(t, []domain.PaymentStatus{domain.PaymentStatusApproved}, f.results.all())
	assert.Len(t, f.gw.calls(), 1)
	assert.Equal(t, 1, f.widget.unmounts)

	// Terminal states accept no further submission.
	_, err = f.orch.Submit(ctx, id)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestPixCheckout_PendingResolvesWithoutReprocessing(t *testing.T) {
	f := newFixture(t)
	f.gw.respond = func(req *domain.PaymentRequest) (*domain.PaymentResult, error) {
		return &domain.PaymentResult{
			PaymentID:      "pay_pix_1",
			AttemptID:      req.AttemptID,
			Status:         domain.PaymentStatusPending,
			StatusDetail:   "pending_waiting_transfer",
			SettlementKind: domain.SettlementDelayed,
			Reference:      "pix-copy-paste-code",
		}, nil
	}

	ctx := context.Background()
	id := startSession(t, f)

	_, err := f.orch.SelectMethod(ctx, id, domain.MethodPix, tokenizer.SecureFieldTargets{})
	require.NoError(t, err)
	_, err = f.orch.UpdatePayer(ctx, id, pixPayer())
	require.NoError(t, err)

	res, err := f.orch.Submit(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, res.Status)

	s, err := f.orch.Get(id)
	require.NoError(t, err)
	assert.Equal(t, domain.StateResultPending, s.State)
	assert.Equal(t, "pix-copy-paste-code", s.Reference)

	// Tracker took ownership of the delayed settlement.
	assert.Equal(t, domain.PaymentStatusPending, f.tracker.tracked["pay_pix_1"])

	// The discounted amount was submitted, exact and unrounded.
	calls := f.gw.calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Amount.Equal(decimal.RequireFromString("172.615")), "got %s", calls[0].Amount)
	require.NotNil(t, calls[0].ExpiresAt)

	// Later settlement resolves the outcome without re-entering Processing.
	f.orch.ResolvePending("pay_pix_1", domain.PaymentStatusApproved, "accredited")

	s, err = f.orch.Get(id)
	require.NoError(t, err)
	assert.Equal(t, domain.StateResultApproved, s.State)
	assert.Equal(t, []domain.PaymentStatus{domain.PaymentStatusApproved}, f.results.all())
	assert.Len(t, f.gw.calls(), 1)

	// A second resolution is a no-op.
	f.orch.ResolvePending("pay_pix_1", domain.PaymentStatusRejected, "expired")
	s, _ = f.orch.Get(id)
	assert.Equal(t, domain.StateResultApproved, s.State)
}

func TestBoletoCheckout_BadPostalCodeBlocksBeforeNetwork(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := startSession(t, f)

	_, err := f.orch.SelectMethod(ctx, id, domain.MethodBoleto, tokenizer.SecureFieldTargets{})
	require.NoError(t, err)

	payer := boletoPayer()
	payer.Address.PostalCode = "99-bad"
	_, err = f.orch.UpdatePayer(ctx, id, payer)
	require.NoError(t, err)

	_, err = f.orch.Submit(ctx, id)

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "postal_code", verr.Fields[0].Field)

	// No network call was made and the session stayed in data entry.
	assert.Empty(t, f.gw.calls())
	s, _ := f.orch.Get(id)
	assert.Equal(t, domain.StateDataEntry, s.State)
	assert.Equal(t, uuid.Nil, s.AttemptID)
}

func TestDeclineThenResubmit_FreshAttemptSamePayload(t *testing.T) {
	f := newFixture(t)
	declined := true
	f.gw.respond = func(req *domain.PaymentRequest) (*domain.PaymentResult, error) {
		if declined {
			return &domain.PaymentResult{
				PaymentID:    "pay_1",
				AttemptID:    req.AttemptID,
				Status:       domain.PaymentStatusRejected,
				StatusDetail: "cc_rejected_insufficient_amount",
			}, nil
		}
		return approvedResponse(req)
	}

	ctx := context.Background()
	id := startSession(t, f)

	_, err := f.orch.SelectMethod(ctx, id, domain.MethodCard, tokenizer.SecureFieldTargets{})
	require.NoError(t, err)
	_, err = f.orch.UpdatePayer(ctx, id, cardPayer())
	require.NoError(t, err)

	_, err = f.orch.Submit(ctx, id)

	var derr *domain.DeclineError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, "decline.insufficient_funds", derr.MessageKey)

	// Rejection returns to data entry, not method selection.
	s, _ := f.orch.Get(id)
	assert.Equal(t, domain.StateDataEntry, s.State)
	firstAttempt := s.AttemptID

	declined = false
	res, err := f.orch.Submit(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusApproved, res.Status)

	calls := f.gw.calls()
	require.Len(t, calls, 2)
	assert.NotEqual(t, calls[0].AttemptID, calls[1].AttemptID)
	assert.NotEqual(t, firstAttempt, calls[1].AttemptID)
	assert.Equal(t, calls[0].OrderID, calls[1].OrderID)
	assert.True(t, calls[0].Amount.Equal(calls[1].Amount))

	// Each attempt carried its own single-use token.
	assert.NotEmpty(t, calls[0].Token)
	assert.NotEmpty(t, calls[1].Token)
	assert.NotEqual(t, calls[0].Token, calls[1].Token)
}

func TestTokenizationRejection_NoChargeAttempted(t *testing.T) {
	f := newFixture(t)
	f.widget.submitErr = &domain.TokenizationError{Field: "card_cvv", Hint: "invalid_cvv"}

	ctx := context.Background()
	id := startSession(t, f)

	_, err := f.orch.SelectMethod(ctx, id, domain.MethodCard, tokenizer.SecureFieldTargets{})
	require.NoError(t, err)
	_, err = f.orch.UpdatePayer(ctx, id, cardPayer())
	require.NoError(t, err)

	_, err = f.orch.Submit(ctx, id)

	var terr *domain.TokenizationError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "card_cvv", terr.Field)

	assert.Empty(t, f.gw.calls())
	s, _ := f.orch.Get(id)
	assert.Equal(t, domain.StateDataEntry, s.State)
	assert.True(t, IsRecoverable(err))
}

func TestGatewayTimeout_ReturnsToDataEntry(t *testing.T) {
	f := newFixture(t)
	f.gw.respond = func(req *domain.PaymentRequest) (*domain.PaymentResult, error) {
		return nil, domain.ErrGatewayTimeout
	}

	ctx := context.Background()
	id := startSession(t, f)

	_, err := f.orch.SelectMethod(ctx, id, domain.MethodPix, tokenizer.SecureFieldTargets{})
	require.NoError(t, err)
	_, err = f.orch.UpdatePayer(ctx, id, pixPayer())
	require.NoError(t, err)

	_, err = f.orch.Submit(ctx, id)
	require.ErrorIs(t, err, domain.ErrGatewayTimeout)
	assert.True(t, IsRecoverable(err))

	s, _ := f.orch.Get(id)
	assert.Equal(t, domain.StateDataEntry, s.State)
}

func TestDiscountAppliedOnceAndRestored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := startSession(t, f)

	s, err := f.orch.SelectMethod(ctx, id, domain.MethodPix, tokenizer.SecureFieldTargets{})
	require.NoError(t, err)
	assert.True(t, s.DiscountApplied)
	assert.True(t, s.Amount.Equal(decimal.RequireFromString("172.615")), "got %s", s.Amount)
	assert.True(t, s.OriginalAmount.Equal(decimal.RequireFromString("181.70")))

	// Re-selecting PIX must not stack the discount.
	s, err = f.orch.SelectMethod(ctx, id, domain.MethodPix, tokenizer.SecureFieldTargets{})
	require.NoError(t, err)
	assert.True(t, s.Amount.Equal(decimal.RequireFromString("172.615")), "got %s", s.Amount)

	// Switching away restores the original amount.
	s, err = f.orch.SelectMethod(ctx, id, domain.MethodBoleto, tokenizer.SecureFieldTargets{})
	require.NoError(t, err)
	assert.False(t, s.DiscountApplied)
	assert.True(t, s.Amount.Equal(decimal.RequireFromString("181.70")))

	// And back again applies it exactly once more, from the original.
	s, err = f.orch.SelectMethod(ctx, id, domain.MethodPix, tokenizer.SecureFieldTargets{})
	require.NoError(t, err)
	assert.True(t, s.Amount.Equal(decimal.RequireFromString("172.615")), "got %s", s.Amount)
}

func TestTransitionLegality(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := startSession(t, f)

	// Submitting from method selection skips data entry.
	_, err := f.orch.Submit(ctx, id)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.orch.SelectMethod(ctx, id, domain.MethodCard, tokenizer.SecureFieldTargets{})
	require.NoError(t, err)
	_, err = f.orch.UpdatePayer(ctx, id, cardPayer())
	require.NoError(t, err)
	_, err = f.orch.Submit(ctx, id)
	require.NoError(t, err)

	// Result is terminal for submission and method selection.
	_, err = f.orch.Submit(ctx, id)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = f.orch.SelectMethod(ctx, id, domain.MethodPix, tokenizer.SecureFieldTargets{})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = f.orch.UpdatePayer(ctx, id, cardPayer())
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCancelDuringProcessingIsDeferred(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	f.gw.block = release
	f.gw.respond = func(req *domain.PaymentRequest) (*domain.PaymentResult, error) {
		return &domain.PaymentResult{
			PaymentID:    "pay_1",
			AttemptID:    req.AttemptID,
			Status:       domain.PaymentStatusRejected,
			StatusDetail: "cc_rejected_high_risk",
		}, nil
	}

	ctx := context.Background()
	id := startSession(t, f)

	_, err := f.orch.SelectMethod(ctx, id, domain.MethodPix, tokenizer.SecureFieldTargets{})
	require.NoError(t, err)
	_, err = f.orch.UpdatePayer(ctx, id, pixPayer())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := f.orch.Submit(ctx, id)
		done <- err
	}()

	// Wait for the attempt to be in flight.
	require.Eventually(t, func() bool {
		s, err := f.orch.Get(id)
		return err == nil && s.State == domain.StateProcessing
	}, time.Second, 5*time.Millisecond)

	// Cancellation while Processing is queued, not applied.
	s, err := f.orch.RequestCancel(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StateProcessing, s.State)
	assert.True(t, s.CancelRequested)

	close(release)
	require.Error(t, <-done)

	// The queued cancel lands only after the in-flight response resolved.
	s, err = f.orch.Get(id)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCancelled, s.State)
	assert.False(t, s.CancelRequested)
}

func TestCancelLegality(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Legal from method selection.
	id := startSession(t, f)
	s, err := f.orch.RequestCancel(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCancelled, s.State)

	// A cancelled session accepts nothing further.
	_, err = f.orch.SelectMethod(ctx, id, domain.MethodPix, tokenizer.SecureFieldTargets{})
	require.ErrorIs(t, err, domain.ErrSessionCancelled)
	_, err = f.orch.Submit(ctx, id)
	require.ErrorIs(t, err, domain.ErrSessionCancelled)

	// Legal from data entry, and the widget is torn down.
	id = startSession(t, f)
	_, err = f.orch.SelectMethod(ctx, id, domain.MethodCard, tokenizer.SecureFieldTargets{})
	require.NoError(t, err)
	_, err = f.orch.RequestCancel(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, f.widget.unmounts)

	// Illegal once a result exists.
	id = startSession(t, f)
	_, err = f.orch.SelectMethod(ctx, id, domain.MethodCard, tokenizer.SecureFieldTargets{})
	require.NoError(t, err)
	_, err = f.orch.UpdatePayer(ctx, id, cardPayer())
	require.NoError(t, err)
	_, err = f.orch.Submit(ctx, id)
	require.NoError(t, err)
	_, err = f.orch.RequestCancel(ctx, id)
	require.ErrorIs(t, err, domain.ErrCancelNotAllowed)
}

func TestLateResultForSupersededAttemptDiscarded(t *testing.T) {
	f := newFixture(t)
	timedOut := true
	f.gw.respond = func(req *domain.PaymentRequest) (*domain.PaymentResult, error) {
		if timedOut {
			return nil, domain.ErrGatewayTimeout
		}
		return approvedResponse(req)
	}

	ctx := context.Background()
	id := startSession(t, f)

	_, err := f.orch.SelectMethod(ctx, id, domain.MethodPix, tokenizer.SecureFieldTargets{})
	require.NoError(t, err)
	_, err = f.orch.UpdatePayer(ctx, id, pixPayer())
	require.NoError(t, err)

	// Attempt 1 times out client-side.
	_, err = f.orch.Submit(ctx, id)
	require.ErrorIs(t, err, domain.ErrGatewayTimeout)
	calls := f.gw.calls()
	require.Len(t, calls, 1)
	attempt1 := calls[0].AttemptID

	// Attempt 2 succeeds.
	timedOut = false
	_, err = f.orch.Submit(ctx, id)
	require.NoError(t, err)

	// Attempt 1's response finally shows up; it must be discarded.
	s, err := f.orch.lookup(id)
	require.NoError(t, err)
	late := &domain.PaymentResult{
		PaymentID: "pay_late",
		AttemptID: attempt1,
		Status:    domain.PaymentStatusApproved,
	}
	_, err = f.orch.applyResult(ctx, s, late)
	require.ErrorIs(t, err, domain.ErrStaleAttempt)

	snap, _ := f.orch.Get(id)
	assert.Equal(t, domain.StateResultApproved, snap.State)
	assert.NotEqual(t, "pay_late", snap.PaymentID)
	assert.Equal(t, []domain.PaymentStatus{domain.PaymentStatusApproved}, f.results.all())
}

func TestSelectCardMountFailure(t *testing.T) {
	f := newFixture(t)
	f.mounter.mountErr = domain.ErrWidgetMount

	ctx := context.Background()
	id := startSession(t, f)

	_, err := f.orch.SelectMethod(ctx, id, domain.MethodCard, tokenizer.SecureFieldTargets{})
	require.ErrorIs(t, err, domain.ErrWidgetMount)

	s, _ := f.orch.Get(id)
	assert.Equal(t, domain.StateMethodSelection, s.State)
}

func TestUnknownMethodRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := startSession(t, f)

	_, err := f.orch.SelectMethod(ctx, id, domain.MethodID("crypto"), tokenizer.SecureFieldTargets{})
	require.ErrorIs(t, err, domain.ErrMethodNotFound)
}

func TestSessionNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.Get(uuid.New())
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}
