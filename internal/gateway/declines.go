package gateway

import "github.com/brisastore/checkout/internal/domain"

// Decline codes are the gateway's status_detail values for rejected charges.
// Each maps to a message key the storefront renders as actionable guidance.
var declineMessages = map[string]string{
	"cc_rejected_insufficient_amount":    "decline.insufficient_funds",
	"cc_rejected_bad_filled_security_code": "decline.bad_security_code",
	"cc_rejected_bad_filled_date":        "decline.bad_expiry_date",
	"cc_rejected_bad_filled_other":       "decline.bad_card_details",
	"cc_rejected_high_risk":              "decline.high_risk",
	"cc_rejected_call_for_authorize":     "decline.call_for_authorize",
	"cc_rejected_card_disabled":          "decline.card_disabled",
	"cc_rejected_duplicated_payment":     "decline.duplicated_payment",
	"cc_rejected_max_attempts":           "decline.max_attempts",
	"cc_rejected_blacklist":              "decline.not_processed",
	"rejected_by_bank":                   "decline.rejected_by_bank",
	"expired":                            "decline.expired",
}

const declineMessageDefault = "decline.other"

// DeclineFor turns a rejected result's status detail into the typed error the
// orchestrator surfaces. Unknown codes fall back to a generic message key.
func DeclineFor(statusDetail string) *domain.DeclineError {
	key, ok := declineMessages[statusDetail]
	if !ok {
		key = declineMessageDefault
	}
	return &domain.DeclineError{Code: statusDetail, MessageKey: key}
}
