package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SessionState string

const (
	StateMethodSelection SessionState = "method_selection"
	StateDataEntry       SessionState = "data_entry"
	StateProcessing      SessionState = "processing"
	StateResultApproved  SessionState = "result_approved"
	StateResultRejected  SessionState = "result_rejected"
	StateResultPending   SessionState = "result_pending"
	StateCancelled       SessionState = "cancelled"
)

// CheckoutSession drives one shopper through method selection, data entry
// and submission. Amount is immutable after creation except for the single
// documented PIX discount; OriginalAmount always holds the pre-discount
// value for display.
type CheckoutSession struct {
	ID              uuid.UUID
	OrderID         string
	Amount          decimal.Decimal
	OriginalAmount  decimal.Decimal
	DiscountApplied bool
	Method          MethodID
	Payer           PayerProfile
	State           SessionState

	// AttemptID is the idempotency key of the in-flight or most recent
	// submission. It is regenerated on every new attempt; uuid.Nil before
	// the first one.
	AttemptID uuid.UUID

	// CancelRequested queues a cancellation that arrived during Processing.
	// It is applied only after the in-flight response resolves.
	CancelRequested bool

	PaymentID string
	Reference string
	ExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
