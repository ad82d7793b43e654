package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brisastore/checkout/internal/domain"
	"github.com/brisastore/checkout/internal/logging"
	"github.com/brisastore/checkout/internal/pricing"
	"github.com/brisastore/checkout/internal/tokenizer"
)

type checkoutOrchestrator interface {
	CreateSession(ctx context.Context, orderID string, amount decimal.Decimal) (*domain.CheckoutSession, error)
	Get(sessionID uuid.UUID) (*domain.CheckoutSession, error)
	SelectMethod(ctx context.Context, sessionID uuid.UUID, methodID domain.MethodID, targets tokenizer.SecureFieldTargets) (*domain.CheckoutSession, error)
	UpdatePayer(ctx context.Context, sessionID uuid.UUID, payer domain.PayerProfile) (*domain.CheckoutSession, error)
	Submit(ctx context.Context, sessionID uuid.UUID) (*domain.PaymentResult, error)
	RequestCancel(ctx context.Context, sessionID uuid.UUID) (*domain.CheckoutSession, error)
}

type CheckoutHandler struct {
	orchestrator checkoutOrchestrator
}

func NewCheckoutHandler(orchestrator checkoutOrchestrator) *CheckoutHandler {
	return &CheckoutHandler{orchestrator: orchestrator}
}

type createSessionRequest struct {
	OrderID string `json:"order_id"`
	Amount  string `json:"amount"`
}

func (r createSessionRequest) Validate() []FieldError {
	var errs []FieldError

	if r.OrderID == "" {
		errs = append(errs, FieldError{Field: "order_id", Message: "required"})
	}

	if r.Amount == "" {
		errs = append(errs, FieldError{Field: "amount", Message: "required"})
	} else if _, err := pricing.ParseAmount(r.Amount); err != nil {
		errs = append(errs, FieldError{Field: "amount", Message: "must be a positive decimal amount"})
	}

	return errs
}

type selectMethodRequest struct {
	MethodID string `json:"method_id"`

	// Element ids for the provider-hosted secure fields; card only.
	CardNumberTarget string `json:"card_number_target,omitempty"`
	ExpiryTarget     string `json:"expiry_target,omitempty"`
	CVVTarget        string `json:"cvv_target,omitempty"`
}

func (r selectMethodRequest) Validate() []FieldError {
	var errs []FieldError

	if r.MethodID == "" {
		errs = append(errs, FieldError{Field: "method_id", Message: "required"})
	} else if !domain.MethodID(r.MethodID).IsValid() {
		errs = append(errs, FieldError{Field: "method_id", Message: "must be card, pix, or boleto"})
	}

	return errs
}

type payerRequest struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	TaxIDType    string `json:"tax_id_type"`
	TaxIDNumber  string `json:"tax_id_number"`
	Installments int    `json:"installments,omitempty"`

	Address *struct {
		Street     string `json:"street"`
		Number     string `json:"number"`
		PostalCode string `json:"postal_code"`
		City       string `json:"city"`
		State      string `json:"state"`
	} `json:"address,omitempty"`
}

func (r payerRequest) toProfile() domain.PayerProfile {
	p := domain.PayerProfile{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Identification: domain.Identification{
			Type:   domain.TaxIDType(r.TaxIDType),
			Number: r.TaxIDNumber,
		},
	}
	if r.Installments > 0 {
		p.Card = &domain.CardDetails{Installments: r.Installments}
	}
	if r.Address != nil {
		p.Address = &domain.Address{
			Street:     r.Address.Street,
			Number:     r.Address.Number,
			PostalCode: r.Address.PostalCode,
			City:       r.Address.City,
			State:      r.Address.State,
		}
	}
	return p
}

type sessionResponse struct {
	ID              uuid.UUID  `json:"id"`
	OrderID         string     `json:"order_id"`
	State           string     `json:"state"`
	Method          string     `json:"method,omitempty"`
	Amount          string     `json:"amount"`
	OriginalAmount  string     `json:"original_amount"`
	DiscountApplied bool       `json:"discount_applied"`
	PaymentID       string     `json:"payment_id,omitempty"`
	Reference       string     `json:"reference,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}

// Amounts cross the API boundary as display strings, rounded half up to two
// places. Internal precision never leaks.
func toSessionResponse(s *domain.CheckoutSession) sessionResponse {
	return sessionResponse{
		ID:              s.ID,
		OrderID:         s.OrderID,
		State:           string(s.State),
		Method:          string(s.Method),
		Amount:          pricing.Display(s.Amount),
		OriginalAmount:  pricing.Display(s.OriginalAmount),
		DiscountApplied: s.DiscountApplied,
		PaymentID:       s.PaymentID,
		Reference:       s.Reference,
		ExpiresAt:       s.ExpiresAt,
	}
}

type submitResponse struct {
	PaymentID    string     `json:"payment_id"`
	Status       string     `json:"status"`
	StatusDetail string     `json:"status_detail,omitempty"`
	Reference    string     `json:"reference,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	amount, err := pricing.ParseAmount(req.Amount)
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "amount", Message: "must be a decimal amount"}})
		return
	}

	s, err := h.orchestrator.CreateSession(r.Context(), req.OrderID, amount)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toSessionResponse(s))
}

func (h *CheckoutHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	s, err := h.orchestrator.Get(id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toSessionResponse(s))
}

func (h *CheckoutHandler) SelectMethod(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req selectMethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	targets := tokenizer.SecureFieldTargets{
		CardNumber: req.CardNumberTarget,
		Expiry:     req.ExpiryTarget,
		CVV:        req.CVVTarget,
	}

	s, err := h.orchestrator.SelectMethod(r.Context(), id, domain.MethodID(req.MethodID), targets)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toSessionResponse(s))
}

func (h *CheckoutHandler) UpdatePayer(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req payerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	s, err := h.orchestrator.UpdatePayer(r.Context(), id, req.toProfile())
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toSessionResponse(s))
}

func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	log := logging.FromContext(r.Context())

	result, err := h.orchestrator.Submit(r.Context(), id)
	if err != nil {
		log.Info("checkout submission did not approve", "session_id", id, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, submitResponse{
		PaymentID:    result.PaymentID,
		Status:       string(result.Status),
		StatusDetail: result.StatusDetail,
		Reference:    result.Reference,
		ExpiresAt:    result.ExpiresAt,
	})
}

func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	s, err := h.orchestrator.RequestCancel(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toSessionResponse(s))
}

func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "id", Message: "must be a valid UUID"}})
		return uuid.Nil, false
	}
	return id, true
}
