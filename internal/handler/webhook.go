package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/brisastore/checkout/internal/domain"
	"github.com/brisastore/checkout/internal/gateway"
	"github.com/brisastore/checkout/internal/logging"
	"github.com/brisastore/checkout/internal/repository"
)

type statusEventStore interface {
	Append(ctx context.Context, e *repository.StatusEvent) error
}

type statusUpdater interface {
	Update(paymentID string, status domain.PaymentStatus, detail string) error
}

// WebhookHandler receives gateway status notifications for delayed
// settlements. Every notification is recorded before interpretation; the
// gateway retries until it sees 200, so duplicates are expected and acked.
type WebhookHandler struct {
	events  statusEventStore
	tracker statusUpdater
	secret  string
}

func NewWebhookHandler(events statusEventStore, tracker statusUpdater, secret string) *WebhookHandler {
	return &WebhookHandler{events: events, tracker: tracker, secret: secret}
}

type notificationPayload struct {
	NotificationID string `json:"notification_id"`
	PaymentID      string `json:"payment_id"`
	OrderID        string `json:"order_id"`
	Status         string `json:"status"`
	StatusDetail   string `json:"status_detail,omitempty"`
	Timestamp      string `json:"timestamp"`
}

func (p notificationPayload) validate() []FieldError {
	var errs []FieldError

	if p.NotificationID == "" {
		errs = append(errs, FieldError{Field: "notification_id", Message: "required"})
	}
	if p.PaymentID == "" {
		errs = append(errs, FieldError{Field: "payment_id", Message: "required"})
	}
	if p.Status == "" {
		errs = append(errs, FieldError{Field: "status", Message: "required"})
	}

	return errs
}

func (h *WebhookHandler) ReceiveGatewayNotification(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		log.Error("failed to read notification body", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	sig := r.Header.Get("X-Gateway-Signature")
	if !verifyHMAC(body, sig, h.secret) {
		log.Warn("notification signature verification failed")
		RespondAppError(w, ErrInvalidSignature, nil)
		return
	}

	var payload notificationPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn("failed to parse notification payload", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := payload.validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	status := gateway.MapStatus(payload.Status)

	event := &repository.StatusEvent{
		ID:             uuid.New(),
		PaymentID:      payload.PaymentID,
		OrderID:        payload.OrderID,
		Status:         status,
		StatusDetail:   payload.StatusDetail,
		NotificationID: payload.NotificationID,
		ReceivedAt:     time.Now().UTC(),
	}

	if err := h.events.Append(r.Context(), event); err != nil {
		if errors.Is(err, domain.ErrDuplicateNotification) {
			log.Info("duplicate notification received",
				"notification_id", payload.NotificationID,
				"payment_id", payload.PaymentID,
			)
			RespondSuccess(w, http.StatusOK, map[string]string{"status": "already_received"})
			return
		}
		log.Error("failed to store status event", "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	// Update failures after the event is stored still ack: the event is on
	// record, and a notification for an untracked or settled payment carries
	// nothing further to do.
	if err := h.tracker.Update(payload.PaymentID, status, payload.StatusDetail); err != nil {
		log.Info("status event stored without tracker update",
			"payment_id", payload.PaymentID,
			"status", status,
			"reason", err,
		)
	}

	log.Info("gateway notification processed",
		"notification_id", payload.NotificationID,
		"payment_id", payload.PaymentID,
		"status", status,
	)

	RespondSuccess(w, http.StatusOK, map[string]string{"status": "received"})
}

func verifyHMAC(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
