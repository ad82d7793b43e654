package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/brisastore/checkout/internal/domain"
	"github.com/brisastore/checkout/internal/pricing"
)

type statusReader interface {
	Get(paymentID string) (*domain.TrackedPayment, error)
}

type attemptReader interface {
	ListByOrder(ctx context.Context, orderID string) ([]domain.PaymentAttempt, error)
}

type StatusHandler struct {
	tracker  statusReader
	attempts attemptReader
}

func NewStatusHandler(tracker statusReader, attempts attemptReader) *StatusHandler {
	return &StatusHandler{tracker: tracker, attempts: attempts}
}

type statusChangeResponse struct {
	Status string    `json:"status"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

type paymentStatusResponse struct {
	PaymentID string                 `json:"payment_id"`
	OrderID   string                 `json:"order_id"`
	Status    string                 `json:"status"`
	History   []statusChangeResponse `json:"history"`
}

// GetPaymentStatus reports the current status of a tracked payment and its
// full history, for delayed settlements still resolving after checkout.
func (h *StatusHandler) GetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	p, err := h.tracker.Get(r.PathValue("id"))
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	history := make([]statusChangeResponse, 0, len(p.History))
	for _, c := range p.History {
		history = append(history, statusChangeResponse{
			Status: string(c.Status),
			Detail: c.Detail,
			At:     c.At,
		})
	}

	RespondSuccess(w, http.StatusOK, paymentStatusResponse{
		PaymentID: p.PaymentID,
		OrderID:   p.OrderID,
		Status:    string(p.CurrentStatus),
		History:   history,
	})
}

type attemptResponse struct {
	AttemptID    string    `json:"attempt_id"`
	MethodID     string    `json:"method_id"`
	Amount       string    `json:"amount"`
	Status       string    `json:"status"`
	StatusDetail string    `json:"status_detail,omitempty"`
	PaymentID    string    `json:"payment_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListOrderAttempts returns the audit trail of submissions for an order.
func (h *StatusHandler) ListOrderAttempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.attempts.ListByOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	out := make([]attemptResponse, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, attemptResponse{
			AttemptID:    a.AttemptID.String(),
			MethodID:     string(a.MethodID),
			Amount:       pricing.Display(a.Amount),
			Status:       string(a.Status),
			StatusDetail: a.StatusDetail,
			PaymentID:    a.PaymentID,
			CreatedAt:    a.CreatedAt,
		})
	}

	RespondSuccess(w, http.StatusOK, map[string]any{"attempts": out})
}
