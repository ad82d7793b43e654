package methods

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/brisastore/checkout/internal/domain"
)

// All validators here are pure functions: value in, field error or nil out.
// No network, no side effects.

var (
	emailPattern      = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	cvvPattern        = regexp.MustCompile(`^\d{3,4}$`)
	postalCodePattern = regexp.MustCompile(`^\d{5}-?\d{3}$`)
	expiryPattern     = regexp.MustCompile(`^(\d{2})/(\d{2}|\d{4})$`)
)

var brazilianStates = map[string]bool{
	"AC": true, "AL": true, "AP": true, "AM": true, "BA": true, "CE": true,
	"DF": true, "ES": true, "GO": true, "MA": true, "MT": true, "MS": true,
	"MG": true, "PA": true, "PB": true, "PR": true, "PE": true, "PI": true,
	"RJ": true, "RN": true, "RS": true, "RO": true, "RR": true, "SC": true,
	"SP": true, "SE": true, "TO": true,
}

func ValidateEmail(value string) *domain.FieldError {
	if !emailPattern.MatchString(value) {
		return &domain.FieldError{Field: "email", Message: "invalid_email"}
	}
	return nil
}

func ValidateCVV(value string) *domain.FieldError {
	if !cvvPattern.MatchString(value) {
		return &domain.FieldError{Field: "card_cvv", Message: "invalid_cvv"}
	}
	return nil
}

// ValidateExpiryAt checks MM/YY or MM/YYYY against now at month granularity:
// the expiry month must be strictly in the future.
func ValidateExpiryAt(value string, now time.Time) *domain.FieldError {
	m := expiryPattern.FindStringSubmatch(value)
	if m == nil {
		return &domain.FieldError{Field: "card_expiry", Message: "invalid_expiry"}
	}

	month, _ := strconv.Atoi(m[1])
	if month < 1 || month > 12 {
		return &domain.FieldError{Field: "card_expiry", Message: "invalid_expiry"}
	}

	year, _ := strconv.Atoi(m[2])
	if year < 100 {
		year += 2000
	}

	if year < now.Year() || (year == now.Year() && month < int(now.Month())) {
		return &domain.FieldError{Field: "card_expiry", Message: "card_expired"}
	}
	return nil
}

func ValidateInstallments(count, max int) *domain.FieldError {
	if count < 1 || count > max {
		return &domain.FieldError{Field: "installments", Message: "invalid_installments"}
	}
	return nil
}

func ValidatePostalCode(value string) *domain.FieldError {
	if !postalCodePattern.MatchString(value) {
		return &domain.FieldError{Field: "postal_code", Message: "invalid_postal_code"}
	}
	return nil
}

func ValidateStateCode(value string) *domain.FieldError {
	if !brazilianStates[strings.ToUpper(value)] {
		return &domain.FieldError{Field: "state", Message: "invalid_state"}
	}
	return nil
}

func ValidateTaxID(id domain.Identification) *domain.FieldError {
	if id.Number == "" {
		return &domain.FieldError{Field: "identification", Message: "required"}
	}
	if !ValidTaxID(id) {
		return &domain.FieldError{Field: "identification", Message: "invalid_tax_id"}
	}
	return nil
}

func requiredText(field, value string) *domain.FieldError {
	if strings.TrimSpace(value) == "" {
		return &domain.FieldError{Field: field, Message: "required"}
	}
	return nil
}

func validateAddress(addr *domain.Address) []domain.FieldError {
	if addr == nil {
		return []domain.FieldError{
			{Field: "street", Message: "required"},
			{Field: "street_number", Message: "required"},
			{Field: "postal_code", Message: "required"},
			{Field: "city", Message: "required"},
			{Field: "state", Message: "required"},
		}
	}

	var errs []domain.FieldError
	if fe := requiredText("street", addr.Street); fe != nil {
		errs = append(errs, *fe)
	}
	if fe := requiredText("street_number", addr.Number); fe != nil {
		errs = append(errs, *fe)
	}
	if fe := requiredText("postal_code", addr.PostalCode); fe != nil {
		errs = append(errs, *fe)
	} else if fe := ValidatePostalCode(addr.PostalCode); fe != nil {
		errs = append(errs, *fe)
	}
	if fe := requiredText("city", addr.City); fe != nil {
		errs = append(errs, *fe)
	}
	if fe := requiredText("state", addr.State); fe != nil {
		errs = append(errs, *fe)
	} else if fe := ValidateStateCode(addr.State); fe != nil {
		errs = append(errs, *fe)
	}
	return errs
}
