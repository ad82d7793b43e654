package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrSessionNotFound       = errors.New("checkout session not found")
	ErrMethodNotFound        = errors.New("payment method not found")
	ErrNoMethodSelected      = errors.New("no payment method selected")
	ErrInvalidTransition     = errors.New("illegal checkout state transition")
	ErrCancelNotAllowed      = errors.New("cancellation not allowed in current state")
	ErrSessionCancelled      = errors.New("checkout session cancelled")
	ErrStaleAttempt          = errors.New("result belongs to a superseded attempt")
	ErrTokenConsumed         = errors.New("card token already consumed")
	ErrTokenRequired         = errors.New("card token required")
	ErrWidgetMount           = errors.New("secure field widget failed to mount")
	ErrWidgetNotMounted      = errors.New("secure field widget not mounted")
	ErrGatewayTimeout        = errors.New("payment gateway timed out")
	ErrGatewayUnavailable    = errors.New("payment gateway unavailable")
	ErrRegistryUnavailable   = errors.New("payment method registry unavailable")
	ErrPaymentTerminal       = errors.New("payment already in terminal state")
	ErrDuplicateNotification = errors.New("duplicate gateway notification")
)

// FieldError is a single field-scoped validation failure. Message is a
// message key, not prose; the storefront owns the copy.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates field failures found before any network call.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Fields))
}

// TokenizationError means the provider rejected the raw card data held by the
// secure-field widget. No token was produced and no charge was attempted.
type TokenizationError struct {
	Field string
	Hint  string
}

func (e *TokenizationError) Error() string {
	return fmt.Sprintf("tokenization rejected: %s: %s", e.Field, e.Hint)
}

// DeclineError is an issuer-level rejection. Code is the gateway's
// status-detail value, MessageKey the mapped user-facing message key.
type DeclineError struct {
	Code       string
	MessageKey string
}

func (e *DeclineError) Error() string {
	return fmt.Sprintf("payment declined: %s", e.Code)
}
