package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/brisastore/checkout/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

func fieldDetails(fields []domain.FieldError) []FieldError {
	out := make([]FieldError, 0, len(fields))
	for _, f := range fields {
		out = append(out, FieldError{Field: f.Field, Message: f.Message})
	}
	return out
}

// RespondDomainError maps orchestrator and validation errors to the API
// envelope. Typed errors carry their details; unknown errors never leak.
func RespondDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		RespondAppError(w, ErrValidationFailed, fieldDetails(verr.Fields))
		return
	}

	var terr *domain.TokenizationError
	if errors.As(err, &terr) {
		RespondAppError(w, ErrTokenizationRejected, []FieldError{{Field: terr.Field, Message: terr.Hint}})
		return
	}

	var derr *domain.DeclineError
	if errors.As(err, &derr) {
		RespondAppError(w, ErrPaymentDeclined, map[string]string{
			"decline_code": derr.Code,
			"message_key":  derr.MessageKey,
		})
		return
	}

	var appErr *AppError

	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		appErr = ErrSessionNotFound
	case errors.Is(err, domain.ErrMethodNotFound):
		appErr = ErrMethodNotFound
	case errors.Is(err, domain.ErrNoMethodSelected):
		appErr = ErrNoMethodSelected
	case errors.Is(err, domain.ErrInvalidTransition):
		appErr = ErrInvalidTransition
	case errors.Is(err, domain.ErrCancelNotAllowed):
		appErr = ErrCancelNotAllowed
	case errors.Is(err, domain.ErrSessionCancelled):
		appErr = ErrSessionCancelled
	case errors.Is(err, domain.ErrTokenRequired):
		appErr = ErrTokenizationRejected
	case errors.Is(err, domain.ErrGatewayTimeout):
		appErr = ErrGatewayTimeout
	case errors.Is(err, domain.ErrGatewayUnavailable):
		appErr = ErrGatewayUnavailable
	case errors.Is(err, domain.ErrRegistryUnavailable):
		appErr = ErrPaymentsUnavailable
	case errors.Is(err, domain.ErrWidgetMount), errors.Is(err, domain.ErrWidgetNotMounted):
		appErr = ErrWidgetMountFailed
	case errors.Is(err, domain.ErrNotFound):
		appErr = ErrResourceNotFound
	default:
		slog.Error("unhandled domain error", "error", err)
		appErr = ErrInternalError
	}

	RespondAppError(w, appErr, nil)
}
