package methods

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brisastore/checkout/internal/domain"
)

func TestValidateExpiryAt(t *testing.T) {
	now := time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{name: "future year two-digit", input: "01/27"},
		{name: "future year four-digit", input: "01/2027"},
		{name: "current month allowed", input: "08/26"},
		{name: "previous month expired", input: "07/26", wantMsg: "card_expired"},
		{name: "previous year expired", input: "12/25", wantMsg: "card_expired"},
		{name: "month zero", input: "00/27", wantMsg: "invalid_expiry"},
		{name: "month thirteen", input: "13/27", wantMsg: "invalid_expiry"},
		{name: "garbage", input: "1/277", wantMsg: "invalid_expiry"},
		{name: "empty", input: "", wantMsg: "invalid_expiry"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fe := ValidateExpiryAt(tc.input, now)
			if tc.wantMsg == "" {
				require.Nil(t, fe)
				return
			}
			require.NotNil(t, fe)
			assert.Equal(t, tc.wantMsg, fe.Message)
		})
	}
}

func TestValidateInstallments(t *testing.T) {
	require.Nil(t, ValidateInstallments(1, 12))
	require.Nil(t, ValidateInstallments(12, 12))
	require.NotNil(t, ValidateInstallments(0, 12))
	require.NotNil(t, ValidateInstallments(13, 12))
	require.NotNil(t, ValidateInstallments(-1, 12))
	// Provider cap below the default.
	require.NotNil(t, ValidateInstallments(7, 6))
}

func validPixPayer() domain.PayerProfile {
	return domain.PayerProfile{
		FirstName:      "Ana",
		LastName:       "Souza",
		Email:          "ana@example.com",
		Identification: domain.Identification{Type: domain.TaxIDCPF, Number: "111.444.777-35"},
	}
}

func validBoletoPayer() domain.PayerProfile {
	p := validPixPayer()
	p.Address = &domain.Address{
		Street:     "Rua das Laranjeiras",
		Number:     "120",
		PostalCode: "01310-100",
		City:       "Sao Paulo",
		State:      "SP",
	}
	return p
}

func testRegistry() *Registry {
	return &Registry{
		descriptors: map[domain.MethodID]domain.PaymentMethodDescriptor{
			domain.MethodCard:   {ID: domain.MethodCard, RequiredFields: cardFields},
			domain.MethodPix:    {ID: domain.MethodPix, RequiredFields: pixFields},
			domain.MethodBoleto: {ID: domain.MethodBoleto, RequiredFields: boletoFields},
		},
		order:           []domain.MethodID{domain.MethodCard, domain.MethodPix, domain.MethodBoleto},
		maxInstallments: 12,
	}
}

func TestValidatePayer(t *testing.T) {
	reg := testRegistry()

	tests := []struct {
		name       string
		method     domain.MethodID
		payer      domain.PayerProfile
		wantFields []string
	}{
		{
			name:   "valid pix payer",
			method: domain.MethodPix,
			payer:  validPixPayer(),
		},
		{
			name:   "pix missing names",
			method: domain.MethodPix,
			payer: func() domain.PayerProfile {
				p := validPixPayer()
				p.FirstName = ""
				p.LastName = "  "
				return p
			}(),
			wantFields: []string{"first_name", "last_name"},
		},
		{
			name:   "pix bad tax id",
			method: domain.MethodPix,
			payer: func() domain.PayerProfile {
				p := validPixPayer()
				p.Identification.Number = "111.444.777-36"
				return p
			}(),
			wantFields: []string{"identification"},
		},
		{
			name:   "valid boleto payer",
			method: domain.MethodBoleto,
			payer:  validBoletoPayer(),
		},
		{
			name:   "boleto missing address entirely",
			method: domain.MethodBoleto,
			payer:  validPixPayer(),
			wantFields: []string{
				"street", "street_number", "postal_code", "city", "state",
			},
		},
		{
			name:   "boleto bad postal code",
			method: domain.MethodBoleto,
			payer: func() domain.PayerProfile {
				p := validBoletoPayer()
				p.Address.PostalCode = "1310-10"
				return p
			}(),
			wantFields: []string{"postal_code"},
		},
		{
			name:   "boleto unknown state",
			method: domain.MethodBoleto,
			payer: func() domain.PayerProfile {
				p := validBoletoPayer()
				p.Address.State = "XX"
				return p
			}(),
			wantFields: []string{"state"},
		},
		{
			name:   "valid card payer",
			method: domain.MethodCard,
			payer: func() domain.PayerProfile {
				p := validPixPayer()
				p.Card = &domain.CardDetails{Installments: 3}
				return p
			}(),
		},
		{
			name:   "card installments above cap",
			method: domain.MethodCard,
			payer: func() domain.PayerProfile {
				p := validPixPayer()
				p.Card = &domain.CardDetails{Installments: 13}
				return p
			}(),
			wantFields: []string{"installments"},
		},
		{
			name:       "card without card details",
			method:     domain.MethodCard,
			payer:      validPixPayer(),
			wantFields: []string{"installments"},
		},
		{
			name:   "cnpj payer accepted",
			method: domain.MethodBoleto,
			payer: func() domain.PayerProfile {
				p := validBoletoPayer()
				p.Identification = domain.Identification{Type: domain.TaxIDCNPJ, Number: "11.222.333/0001-81"}
				return p
			}(),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			verr := reg.ValidatePayer(tc.method, tc.payer)

			if len(tc.wantFields) == 0 {
				require.Nil(t, verr)
				return
			}

			require.NotNil(t, verr)
			got := make([]string, 0, len(verr.Fields))
			for _, fe := range verr.Fields {
				got = append(got, fe.Field)
			}
			assert.ElementsMatch(t, tc.wantFields, got)
		})
	}
}

func TestRegistryDescribe(t *testing.T) {
	reg := testRegistry()

	d, err := reg.Describe(domain.MethodPix)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodPix, d.ID)

	_, err = reg.Describe(domain.MethodID("crypto"))
	require.ErrorIs(t, err, domain.ErrMethodNotFound)

	assert.Len(t, reg.List(), 3)
}
