package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brisastore/checkout/internal/domain"
	"github.com/brisastore/checkout/internal/logging"
)

// submitTimeout is the hard ceiling on one charge submission. After it the
// outcome is unknown: the caller is told to check order status, never to
// silently retry.
const submitTimeout = 30 * time.Second

type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

func NewClient(baseURL, accessToken string) *Client {
	return &Client{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: submitTimeout,
		},
	}
}

type methodsResponse struct {
	Methods []struct {
		ID                   string `json:"id"`
		Label                string `json:"label"`
		SupportsInstallments bool   `json:"supports_installments"`
		SettlementKind       string `json:"settlement_kind"`
		DiscountPct          int    `json:"discount_pct"`
	} `json:"methods"`
}

func (c *Client) ListMethods(ctx context.Context) ([]domain.MethodCapability, error) {
	var resp methodsResponse
	if err := c.getJSON(ctx, "/v1/payment-methods", &resp); err != nil {
		return nil, fmt.Errorf("ListMethods: %w", err)
	}

	caps := make([]domain.MethodCapability, 0, len(resp.Methods))
	for _, m := range resp.Methods {
		caps = append(caps, domain.MethodCapability{
			ID:                   domain.MethodID(m.ID),
			Label:                m.Label,
			SupportsInstallments: m.SupportsInstallments,
			SettlementKind:       domain.SettlementKind(m.SettlementKind),
			DiscountPct:          m.DiscountPct,
		})
	}
	return caps, nil
}

type InstallmentPlan struct {
	Count   int             `json:"count"`
	Total   decimal.Decimal `json:"total"`
	PerUnit decimal.Decimal `json:"per_unit"`
}

type installmentsResponse struct {
	Plans []InstallmentPlan `json:"plans"`
}

func (c *Client) ListInstallments(ctx context.Context, amount decimal.Decimal, methodID domain.MethodID) ([]InstallmentPlan, error) {
	q := url.Values{}
	q.Set("amount", amount.String())
	q.Set("method_id", string(methodID))

	var resp installmentsResponse
	if err := c.getJSON(ctx, "/v1/installments?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("ListInstallments: %w", err)
	}
	return resp.Plans, nil
}

type submitPayload struct {
	OrderID      string               `json:"order_id"`
	Amount       decimal.Decimal      `json:"amount"`
	Description  string               `json:"description"`
	MethodID     string               `json:"method_id"`
	Token        string               `json:"token,omitempty"`
	Installments int                  `json:"installments,omitempty"`
	Payer        submitPayerPayload   `json:"payer"`
	Address      *submitAddressPayload `json:"address,omitempty"`
	ExpiresAt    *time.Time           `json:"expires_at,omitempty"`
}

type submitPayerPayload struct {
	FirstName          string `json:"first_name"`
	LastName           string `json:"last_name"`
	Email              string `json:"email"`
	IdentificationType string `json:"identification_type"`
	Identification     string `json:"identification"`
}

type submitAddressPayload struct {
	Street     string `json:"street"`
	Number     string `json:"number"`
	PostalCode string `json:"postal_code"`
	City       string `json:"city"`
	State      string `json:"state"`
}

type submitResponse struct {
	Success      bool       `json:"success"`
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	StatusDetail string     `json:"status_detail"`
	Reference    string     `json:"reference,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// SubmitPayment sends one idempotent charge attempt. The attempt id rides in
// X-Idempotency-Key so the backend collapses duplicates; this client never
// retries on its own.
func (c *Client) SubmitPayment(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	log := logging.FromContext(ctx)

	if req.AttemptID == uuid.Nil {
		return nil, fmt.Errorf("SubmitPayment: attempt id is required")
	}
	if req.MethodID == domain.MethodCard && req.Token == "" {
		return nil, fmt.Errorf("SubmitPayment: %w", domain.ErrTokenRequired)
	}

	payload := submitPayload{
		OrderID:      req.OrderID,
		Amount:       req.Amount,
		Description:  req.Description,
		MethodID:     string(req.MethodID),
		Token:        req.Token,
		Installments: req.Installments,
		Payer: submitPayerPayload{
			FirstName:          req.Payer.FirstName,
			LastName:           req.Payer.LastName,
			Email:              req.Payer.Email,
			IdentificationType: string(req.Payer.Identification.Type),
			Identification:     req.Payer.Identification.Number,
		},
		ExpiresAt: req.ExpiresAt,
	}
	if req.Payer.Address != nil {
		payload.Address = &submitAddressPayload{
			Street:     req.Payer.Address.Street,
			Number:     req.Payer.Address.Number,
			PostalCode: req.Payer.Address.PostalCode,
			City:       req.Payer.Address.City,
			State:      req.Payer.Address.State,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("SubmitPayment: marshal: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payments", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("SubmitPayment: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)
	httpReq.Header.Set("X-Idempotency-Key", req.AttemptID.String())

	start := time.Now()
	log.Info("charge submitted",
		"order_id", req.OrderID,
		"method_id", req.MethodID,
		"attempt_id", req.AttemptID,
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("SubmitPayment: %w", classifyTransportError(err))
	}
	defer resp.Body.Close()

	log.Info("charge response received",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("SubmitPayment: gateway returned %d: %w", resp.StatusCode, domain.ErrGatewayUnavailable)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("SubmitPayment: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var sr submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("SubmitPayment: decode: %w", err)
	}

	return &domain.PaymentResult{
		PaymentID:      sr.ID,
		AttemptID:      req.AttemptID,
		Status:         MapStatus(sr.Status),
		StatusDetail:   sr.StatusDetail,
		SettlementKind: settlementFor(req.MethodID),
		Reference:      sr.Reference,
		ExpiresAt:      sr.ExpiresAt,
	}, nil
}

type statusResponse struct {
	Status       string `json:"status"`
	StatusDetail string `json:"status_detail"`
}

// GetPaymentStatus backs the external polling driver for delayed methods.
func (c *Client) GetPaymentStatus(ctx context.Context, paymentID string) (domain.PaymentStatus, string, error) {
	var resp statusResponse
	if err := c.getJSON(ctx, "/v1/payments/"+url.PathEscape(paymentID), &resp); err != nil {
		return "", "", fmt.Errorf("GetPaymentStatus: %w", err)
	}
	return MapStatus(resp.Status), resp.StatusDetail, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %w", resp.StatusCode, domain.ErrGatewayUnavailable)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// MapStatus normalizes the provider status vocabulary. Anything unknown is
// treated as pending so it re-verifies later instead of passing as success.
func MapStatus(s string) domain.PaymentStatus {
	switch domain.PaymentStatus(s) {
	case domain.PaymentStatusApproved:
		return domain.PaymentStatusApproved
	case domain.PaymentStatusRejected:
		return domain.PaymentStatusRejected
	case domain.PaymentStatusCancelled:
		return domain.PaymentStatusCancelled
	case domain.PaymentStatusInProcess:
		return domain.PaymentStatusInProcess
	case domain.PaymentStatusPending:
		return domain.PaymentStatusPending
	default:
		return domain.PaymentStatusPending
	}
}

func settlementFor(id domain.MethodID) domain.SettlementKind {
	if id == domain.MethodCard {
		return domain.SettlementInstant
	}
	return domain.SettlementDelayed
}

func classifyTransportError(err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return domain.ErrGatewayTimeout
	}
	return fmt.Errorf("%w: %w", domain.ErrGatewayUnavailable, err)
}
