package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brisastore/checkout/internal/domain"
	"github.com/brisastore/checkout/internal/repository"
	"github.com/brisastore/checkout/internal/testutil"
)

func TestPaymentAttemptRepository(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewPaymentAttemptRepository(db)
	ctx := context.Background()

	sessionID := uuid.New()
	first := &domain.PaymentAttempt{
		AttemptID:    uuid.New(),
		SessionID:    sessionID,
		OrderID:      "order-42",
		MethodID:     domain.MethodCard,
		Amount:       decimal.RequireFromString("181.70"),
		Status:       domain.PaymentStatusRejected,
		StatusDetail: "cc_rejected_insufficient_amount",
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.Create(ctx, first))

	second := &domain.PaymentAttempt{
		AttemptID: uuid.New(),
		SessionID: sessionID,
		OrderID:   "order-42",
		MethodID:  domain.MethodCard,
		Amount:    decimal.RequireFromString("181.70"),
		Status:    domain.PaymentStatusApproved,
		PaymentID: "pay_1",
		CreatedAt: first.CreatedAt.Add(time.Second),
	}
	require.NoError(t, repo.Create(ctx, second))

	got, err := repo.GetByAttemptID(ctx, first.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, first.OrderID, got.OrderID)
	assert.Equal(t, first.StatusDetail, got.StatusDetail)
	assert.Empty(t, got.PaymentID)
	assert.True(t, got.Amount.Equal(first.Amount))

	attempts, err := repo.ListByOrder(ctx, "order-42")
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, first.AttemptID, attempts[0].AttemptID)
	assert.Equal(t, second.AttemptID, attempts[1].AttemptID)
	assert.Equal(t, "pay_1", attempts[1].PaymentID)

	_, err = repo.GetByAttemptID(ctx, uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStatusEventRepository(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewStatusEventRepository(db)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Microsecond)
	pending := &repository.StatusEvent{
		ID:             uuid.New(),
		PaymentID:      "pay_pix_9",
		OrderID:        "order-9",
		Status:         domain.PaymentStatusPending,
		StatusDetail:   "pending_waiting_transfer",
		NotificationID: "notif-1",
		ReceivedAt:     base,
	}
	require.NoError(t, repo.Append(ctx, pending))

	approved := &repository.StatusEvent{
		ID:             uuid.New(),
		PaymentID:      "pay_pix_9",
		OrderID:        "order-9",
		Status:         domain.PaymentStatusApproved,
		StatusDetail:   "accredited",
		NotificationID: "notif-2",
		ReceivedAt:     base.Add(time.Minute),
	}
	require.NoError(t, repo.Append(ctx, approved))

	// A replayed notification id is refused, not re-appended.
	replay := &repository.StatusEvent{
		ID:             uuid.New(),
		PaymentID:      "pay_pix_9",
		OrderID:        "order-9",
		Status:         domain.PaymentStatusApproved,
		StatusDetail:   "accredited",
		NotificationID: "notif-2",
		ReceivedAt:     base.Add(2 * time.Minute),
	}
	err := repo.Append(ctx, replay)
	require.ErrorIs(t, err, domain.ErrDuplicateNotification)

	events, err := repo.ListByPayment(ctx, "pay_pix_9")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.PaymentStatusPending, events[0].Status)
	assert.Equal(t, domain.PaymentStatusApproved, events[1].Status)
}
