package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentAttempt is the persisted record of one submission attempt. Written
// once per attempt so delayed settlements survive beyond the session.
type PaymentAttempt struct {
	AttemptID    uuid.UUID
	SessionID    uuid.UUID
	OrderID      string
	MethodID     MethodID
	Amount       decimal.Decimal
	Status       PaymentStatus
	StatusDetail string
	PaymentID    string
	CreatedAt    time.Time
}
