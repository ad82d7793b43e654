package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrSessionNotFound      = &AppError{http.StatusNotFound, "SESSION_NOT_FOUND", "Checkout session not found"}
	ErrMethodNotFound       = &AppError{http.StatusUnprocessableEntity, "METHOD_NOT_FOUND", "Payment method is not available"}
	ErrInvalidTransition    = &AppError{http.StatusConflict, "INVALID_TRANSITION", "Operation is not allowed in the current checkout state"}
	ErrCancelNotAllowed     = &AppError{http.StatusConflict, "CANCEL_NOT_ALLOWED", "Checkout can no longer be cancelled"}
	ErrSessionCancelled     = &AppError{http.StatusGone, "SESSION_CANCELLED", "Checkout session was cancelled"}
	ErrNoMethodSelected     = &AppError{http.StatusUnprocessableEntity, "NO_METHOD_SELECTED", "Select a payment method first"}
	ErrTokenizationRejected = &AppError{http.StatusUnprocessableEntity, "TOKENIZATION_REJECTED", "Card details were rejected"}
	ErrPaymentDeclined      = &AppError{http.StatusUnprocessableEntity, "PAYMENT_DECLINED", "Payment was declined"}
	ErrGatewayTimeout       = &AppError{http.StatusGatewayTimeout, "GATEWAY_TIMEOUT", "Payment provider did not respond in time"}
	ErrGatewayUnavailable   = &AppError{http.StatusBadGateway, "GATEWAY_UNAVAILABLE", "Payment provider is unavailable"}
	ErrPaymentsUnavailable  = &AppError{http.StatusServiceUnavailable, "PAYMENTS_UNAVAILABLE", "Payment methods could not be loaded, try again"}
	ErrWidgetMountFailed    = &AppError{http.StatusBadGateway, "WIDGET_MOUNT_FAILED", "Secure card fields could not be initialized"}
	ErrInvalidSignature     = &AppError{http.StatusUnauthorized, "INVALID_SIGNATURE", "Webhook signature is invalid"}
)
