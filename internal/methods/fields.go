package methods

import "github.com/brisastore/checkout/internal/domain"

// Field templates per method. Capability flags from the gateway select which
// methods are offered; the field contract itself is fixed by method kind.

var cardFields = []domain.FieldSpec{
	{Name: "cardholder_name", Label: "Name on card", Required: true, Format: domain.FormatText},
	{Name: "email", Label: "E-mail", Required: true, Format: domain.FormatEmail},
	{Name: "identification", Label: "CPF/CNPJ", Required: true, Format: domain.FormatTaxID},
	{Name: "card_number", Label: "Card number", Required: true, Format: domain.FormatDigits},
	{Name: "card_expiry", Label: "Expiry", Required: true, Format: domain.FormatCardExpiry},
	{Name: "card_cvv", Label: "Security code", Required: true, Format: domain.FormatCVV},
	{Name: "installments", Label: "Installments", Required: true, Format: domain.FormatInstallments},
}

var pixFields = []domain.FieldSpec{
	{Name: "first_name", Label: "First name", Required: true, Format: domain.FormatText},
	{Name: "last_name", Label: "Last name", Required: true, Format: domain.FormatText},
	{Name: "email", Label: "E-mail", Required: true, Format: domain.FormatEmail},
	{Name: "identification", Label: "CPF/CNPJ", Required: true, Format: domain.FormatTaxID},
}

var boletoFields = []domain.FieldSpec{
	{Name: "first_name", Label: "First name", Required: true, Format: domain.FormatText},
	{Name: "last_name", Label: "Last name", Required: true, Format: domain.FormatText},
	{Name: "email", Label: "E-mail", Required: true, Format: domain.FormatEmail},
	{Name: "identification", Label: "CPF/CNPJ", Required: true, Format: domain.FormatTaxID},
	{Name: "street", Label: "Street", Required: true, Format: domain.FormatText},
	{Name: "street_number", Label: "Number", Required: true, Format: domain.FormatText},
	{Name: "postal_code", Label: "CEP", Required: true, Format: domain.FormatPostalCode},
	{Name: "city", Label: "City", Required: true, Format: domain.FormatText},
	{Name: "state", Label: "State", Required: true, Format: domain.FormatStateCode},
}

func fieldsFor(id domain.MethodID) []domain.FieldSpec {
	switch id {
	case domain.MethodCard:
		return cardFields
	case domain.MethodPix:
		return pixFields
	case domain.MethodBoleto:
		return boletoFields
	}
	return nil
}
