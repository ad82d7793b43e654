package domain

type MethodID string

const (
	MethodCard   MethodID = "card"
	MethodPix    MethodID = "pix"
	MethodBoleto MethodID = "boleto"
)

func (m MethodID) IsValid() bool {
	switch m {
	case MethodCard, MethodPix, MethodBoleto:
		return true
	}
	return false
}

type SettlementKind string

const (
	SettlementInstant SettlementKind = "instant"
	SettlementDelayed SettlementKind = "delayed"
)

// FieldFormat selects the pure validation rule applied to a field's value.
type FieldFormat string

const (
	FormatText         FieldFormat = "text"
	FormatEmail        FieldFormat = "email"
	FormatTaxID        FieldFormat = "tax_id"
	FormatCVV          FieldFormat = "cvv"
	FormatCardExpiry   FieldFormat = "card_expiry"
	FormatInstallments FieldFormat = "installments"
	FormatPostalCode   FieldFormat = "postal_code"
	FormatStateCode    FieldFormat = "state_code"
	FormatDigits       FieldFormat = "digits"
)

type FieldSpec struct {
	Name     string
	Label    string
	Required bool
	Format   FieldFormat
}

// PaymentMethodDescriptor is immutable once loaded from the gateway's
// capability endpoint.
type PaymentMethodDescriptor struct {
	ID                   MethodID
	Label                string
	RequiredFields       []FieldSpec
	SupportsInstallments bool
	SettlementKind       SettlementKind
	DiscountPct          int
}

// MethodCapability is one entry of the gateway's capability endpoint.
type MethodCapability struct {
	ID                   MethodID
	Label                string
	SupportsInstallments bool
	SettlementKind       SettlementKind
	DiscountPct          int
}
