package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusApproved  PaymentStatus = "approved"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusInProcess PaymentStatus = "in_process"
	PaymentStatusRejected  PaymentStatus = "rejected"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusApproved || s == PaymentStatusRejected || s == PaymentStatusCancelled
}

// TokenizationResult is produced only by the tokenizer and consumed at most
// once by a submission attempt. The token is opaque and single-use; it is
// never logged or stored.
type TokenizationResult struct {
	Token              string
	IssuerID           string
	InstallmentOptions []int

	consumed bool
}

// Consume marks the token as spent. A second call fails so one token can
// never back two submission attempts.
func (t *TokenizationResult) Consume() (string, error) {
	if t.consumed {
		return "", ErrTokenConsumed
	}
	t.consumed = true
	return t.Token, nil
}

// PaymentRequest is the finalized payload for one submission attempt. It is
// built fresh per attempt and never mutated after send.
type PaymentRequest struct {
	OrderID      string
	AttemptID    uuid.UUID
	MethodID     MethodID
	Amount       decimal.Decimal
	Description  string
	Token        string
	Installments int
	Payer        PayerProfile
	ExpiresAt    *time.Time
}

type PaymentResult struct {
	PaymentID      string
	AttemptID      uuid.UUID
	Status         PaymentStatus
	StatusDetail   string
	SettlementKind SettlementKind
	Reference      string
	ExpiresAt      *time.Time
}

type StatusChange struct {
	Status PaymentStatus
	Detail string
	At     time.Time
}

// TrackedPayment records the lifecycle of a delayed-settlement payment.
// History is append-only; entries are never discarded.
type TrackedPayment struct {
	PaymentID     string
	OrderID       string
	CurrentStatus PaymentStatus
	History       []StatusChange
}
