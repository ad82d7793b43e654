package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brisastore/checkout/internal/logging"
	"github.com/brisastore/checkout/internal/pricing"
)

// The mock scripts outcomes from the amount's cents so flows are
// reproducible without real provider credentials:
//
//	*.01  rejected (insufficient funds)
//	*.02  rejected (bad security code)
//	*.03  gateway error 500
//	anything else: card approves, pix and boleto go pending
const (
	centsRejectInsufficient = "01"
	centsRejectBadCVV       = "02"
	centsServerError        = "03"
)

type payment struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	StatusDetail string     `json:"status_detail"`
	Reference    string     `json:"reference,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	OrderID      string     `json:"-"`
	SettleAt     time.Time  `json:"-"`
}

type server struct {
	mu       sync.Mutex
	widgets  map[string]bool
	payments map[string]*payment
	byKey    map[string]*payment

	notifyURL     string
	webhookSecret string
}

func main() {
	logging.Init("mock-gateway", "info", os.Getenv("APP_ENV"))

	s := &server{
		widgets:       make(map[string]bool),
		payments:      make(map[string]*payment),
		byKey:         make(map[string]*payment),
		notifyURL:     os.Getenv("NOTIFY_URL"),
		webhookSecret: os.Getenv("WEBHOOK_SECRET"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /v1/payment-methods", s.handleMethods)
	mux.HandleFunc("GET /v1/installments", s.handleInstallments)
	mux.HandleFunc("POST /v1/secure-fields", s.handleMountWidget)
	mux.HandleFunc("POST /v1/secure-fields/{session}/tokens", s.handleCreateToken)
	mux.HandleFunc("DELETE /v1/secure-fields/{session}", s.handleReleaseWidget)
	mux.HandleFunc("POST /v1/payments", s.handleCreatePayment)
	mux.HandleFunc("GET /v1/payments/{id}", s.handleGetPayment)

	addr := ":8081"
	slog.Info("mock gateway started", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func (s *server) handleMethods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"methods": []map[string]any{
			{"id": "card", "label": "Cartão de crédito", "supports_installments": true, "settlement_kind": "instant"},
			{"id": "pix", "label": "PIX", "supports_installments": false, "settlement_kind": "delayed", "discount_pct": 5},
			{"id": "boleto", "label": "Boleto bancário", "supports_installments": false, "settlement_kind": "delayed"},
		},
	})
}

func (s *server) handleInstallments(w http.ResponseWriter, r *http.Request) {
	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil || !amount.IsPositive() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid amount"})
		return
	}

	plans, err := pricing.InstallmentPlans(amount, 12)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	out := make([]map[string]any, 0, len(plans))
	for _, p := range plans {
		out = append(out, map[string]any{
			"count":    p.Count,
			"total":    p.Total,
			"per_unit": p.PerUnit,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": out})
}

func (s *server) handleMountWidget(w http.ResponseWriter, r *http.Request) {
	session := "wsess_" + uuid.NewString()

	s.mu.Lock()
	s.widgets[session] = true
	s.mu.Unlock()

	slog.Info("widget session mounted", "session", session)
	writeJSON(w, http.StatusCreated, map[string]string{"widget_session": session})
}

func (s *server) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	session := r.PathValue("session")

	s.mu.Lock()
	active := s.widgets[session]
	s.mu.Unlock()

	if !active {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown widget session"})
		return
	}

	var fields struct {
		CardholderName string `json:"cardholder_name"`
		Installments   int    `json:"installments"`
	}
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	// A cardholder name containing "reject" simulates the provider refusing
	// the raw card data inside the widget.
	if strings.Contains(strings.ToLower(fields.CardholderName), "reject") {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"field": "card_number",
			"hint":  "invalid_card_number",
		})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"token":               "tok_" + uuid.NewString(),
		"issuer_id":           "visa",
		"installment_options": []int{1, 3, 6, 12},
	})
}

func (s *server) handleReleaseWidget(w http.ResponseWriter, r *http.Request) {
	session := r.PathValue("session")

	s.mu.Lock()
	delete(s.widgets, session)
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("X-Idempotency-Key")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing idempotency key"})
		return
	}

	s.mu.Lock()
	if existing, ok := s.byKey[key]; ok {
		cp := *existing
		s.mu.Unlock()
		slog.Info("idempotent replay", "key", key, "payment_id", cp.ID)
		writeJSON(w, http.StatusOK, &cp)
		return
	}
	s.mu.Unlock()

	var req struct {
		OrderID   string          `json:"order_id"`
		Amount    decimal.Decimal `json:"amount"`
		MethodID  string          `json:"method_id"`
		Token     string          `json:"token"`
		ExpiresAt *time.Time      `json:"expires_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	if req.MethodID == "card" && req.Token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "token required for card"})
		return
	}

	cents := centsOf(req.Amount)
	if cents == centsServerError {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "provider unavailable"})
		return
	}

	p := &payment{
		ID:        "pay_" + uuid.NewString(),
		OrderID:   req.OrderID,
		ExpiresAt: req.ExpiresAt,
	}

	switch {
	case cents == centsRejectInsufficient:
		p.Status = "rejected"
		p.StatusDetail = "cc_rejected_insufficient_amount"
	case cents == centsRejectBadCVV:
		p.Status = "rejected"
		p.StatusDetail = "cc_rejected_bad_filled_security_code"
	case req.MethodID == "card":
		p.Status = "approved"
		p.StatusDetail = "accredited"
	case req.MethodID == "pix":
		p.Status = "pending"
		p.StatusDetail = "pending_waiting_transfer"
		p.Reference = "pix-qr-" + uuid.NewString()
		p.SettleAt = time.Now().Add(10 * time.Second)
	default:
		p.Status = "pending"
		p.StatusDetail = "pending_waiting_payment"
		p.Reference = "boleto-" + uuid.NewString()
		p.SettleAt = time.Now().Add(30 * time.Second)
	}

	s.mu.Lock()
	s.payments[p.ID] = p
	s.byKey[key] = p
	s.mu.Unlock()

	if !p.SettleAt.IsZero() {
		go s.settleLater(p.ID)
	}

	slog.Info("payment created",
		"payment_id", p.ID,
		"order_id", req.OrderID,
		"method_id", req.MethodID,
		"status", p.Status,
	)
	writeJSON(w, http.StatusCreated, p)
}

func (s *server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	p, ok := s.payments[r.PathValue("id")]
	if ok {
		cp := *p
		p = &cp
	}
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "payment not found"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// settleLater flips a delayed payment to approved after its settle delay and
// pushes a signed notification if a callback is configured.
func (s *server) settleLater(paymentID string) {
	s.mu.Lock()
	p, ok := s.payments[paymentID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delay := time.Until(p.SettleAt)
	s.mu.Unlock()

	time.Sleep(delay)

	s.mu.Lock()
	p.Status = "approved"
	p.StatusDetail = "accredited"
	orderID := p.OrderID
	s.mu.Unlock()

	slog.Info("payment settled", "payment_id", paymentID)

	if s.notifyURL == "" {
		return
	}

	body, err := json.Marshal(map[string]string{
		"notification_id": uuid.NewString(),
		"payment_id":      paymentID,
		"order_id":        orderID,
		"status":          "approved",
		"status_detail":   "accredited",
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}

	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	mac.Write(body)

	req, err := http.NewRequest(http.MethodPost, s.notifyURL, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Gateway-Signature", hex.EncodeToString(mac.Sum(nil)))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Warn("notification delivery failed", "payment_id", paymentID, "error", err)
		return
	}
	resp.Body.Close()
	slog.Info("notification delivered", "payment_id", paymentID, "status", resp.StatusCode)
}

func centsOf(amount decimal.Decimal) string {
	str := amount.StringFixed(2)
	return str[len(str)-2:]
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
