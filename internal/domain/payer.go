package domain

type TaxIDType string

const (
	TaxIDCPF  TaxIDType = "CPF"
	TaxIDCNPJ TaxIDType = "CNPJ"
)

type Identification struct {
	Type   TaxIDType
	Number string
}

type Address struct {
	Street     string
	Number     string
	PostalCode string
	City       string
	State      string
}

// CardDetails holds only non-sensitive card metadata. The primary account
// number, expiry and CVV never enter this struct; they live in the
// provider-hosted secure fields and reach the gateway as an opaque token.
type CardDetails struct {
	IssuerID     string
	Installments int
}

// PayerProfile is mutated only by shopper input or address-lookup autofill.
// It is never persisted by this subsystem.
type PayerProfile struct {
	FirstName      string
	LastName       string
	Email          string
	Identification Identification
	Address        *Address
	Card           *CardDetails
}
