package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brisastore/checkout/internal/domain"
)

func testRequest() *domain.PaymentRequest {
	return &domain.PaymentRequest{
		OrderID:   "order-42",
		AttemptID: uuid.New(),
		MethodID:  domain.MethodCard,
		Amount:    decimal.RequireFromString("181.70"),
		Token:     "tok_abc",
		Payer: domain.PayerProfile{
			Email:          "ana@example.com",
			Identification: domain.Identification{Type: domain.TaxIDCPF, Number: "11144477735"},
		},
		Installments: 3,
	}
}

func TestSubmitPayment_MapsStatuses(t *testing.T) {
	tests := []struct {
		name       string
		respStatus string
		want       domain.PaymentStatus
	}{
		{name: "approved", respStatus: "approved", want: domain.PaymentStatusApproved},
		{name: "rejected", respStatus: "rejected", want: domain.PaymentStatusRejected},
		{name: "cancelled", respStatus: "cancelled", want: domain.PaymentStatusCancelled},
		{name: "pending", respStatus: "pending", want: domain.PaymentStatusPending},
		{name: "in_process", respStatus: "in_process", want: domain.PaymentStatusInProcess},
		// Fail safe toward re-verification, never toward success.
		{name: "unknown status treated as pending", respStatus: "charged_back", want: domain.PaymentStatusPending},
		{name: "empty status treated as pending", respStatus: "", want: domain.PaymentStatusPending},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/v1/payments", r.URL.Path)
				json.NewEncoder(w).Encode(map[string]any{
					"success": true,
					"id":      "pay_1",
					"status":  tc.respStatus,
				})
			}))
			defer srv.Close()

			client := NewClient(srv.URL, "test-token")
			res, err := client.SubmitPayment(context.Background(), testRequest())

			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Status)
			assert.Equal(t, "pay_1", res.PaymentID)
		})
	}
}

func TestSubmitPayment_SendsIdempotencyKeyAndAuth(t *testing.T) {
	req := testRequest()

	var gotKey, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"id": "pay_1", "status": "approved"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")
	_, err := client.SubmitPayment(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, req.AttemptID.String(), gotKey)
	assert.Equal(t, "Bearer test-token", gotAuth)
}

func TestSubmitPayment_RequiresAttemptID(t *testing.T) {
	client := NewClient("http://unused", "tok")
	req := testRequest()
	req.AttemptID = uuid.Nil

	_, err := client.SubmitPayment(context.Background(), req)
	require.Error(t, err)
}

func TestSubmitPayment_RequiresTokenForCard(t *testing.T) {
	client := NewClient("http://unused", "tok")
	req := testRequest()
	req.Token = ""

	_, err := client.SubmitPayment(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrTokenRequired)
}

func TestSubmitPayment_GatewayErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok")
	_, err := client.SubmitPayment(context.Background(), testRequest())
	require.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestSubmitPayment_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.SubmitPayment(ctx, testRequest())
	require.ErrorIs(t, err, domain.ErrGatewayTimeout)
}

func TestSubmitPayment_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(srv.URL, "tok")
	_, err := client.SubmitPayment(context.Background(), testRequest())
	require.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestListMethods(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/payment-methods", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"methods": []map[string]any{
				{"id": "card", "label": "Credit card", "supports_installments": true, "settlement_kind": "instant"},
				{"id": "pix", "label": "PIX", "settlement_kind": "delayed", "discount_pct": 5},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok")
	caps, err := client.ListMethods(context.Background())

	require.NoError(t, err)
	require.Len(t, caps, 2)
	assert.Equal(t, domain.MethodCard, caps[0].ID)
	assert.True(t, caps[0].SupportsInstallments)
	assert.Equal(t, 5, caps[1].DiscountPct)
	assert.Equal(t, domain.SettlementDelayed, caps[1].SettlementKind)
}

func TestGetPaymentStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/payments/pay_9", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"status": "approved", "status_detail": "accredited"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok")
	status, detail, err := client.GetPaymentStatus(context.Background(), "pay_9")

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusApproved, status)
	assert.Equal(t, "accredited", detail)
}

func TestDeclineFor(t *testing.T) {
	tests := []struct {
		detail string
		want   string
	}{
		{detail: "cc_rejected_insufficient_amount", want: "decline.insufficient_funds"},
		{detail: "cc_rejected_bad_filled_security_code", want: "decline.bad_security_code"},
		{detail: "cc_rejected_high_risk", want: "decline.high_risk"},
		{detail: "something_new", want: "decline.other"},
		{detail: "", want: "decline.other"},
	}

	for _, tc := range tests {
		t.Run(tc.detail, func(t *testing.T) {
			de := DeclineFor(tc.detail)
			assert.Equal(t, tc.want, de.MessageKey)
			assert.Equal(t, tc.detail, de.Code)
		})
	}
}
