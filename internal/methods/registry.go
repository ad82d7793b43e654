package methods

import (
	"context"
	"fmt"
	"time"

	"github.com/brisastore/checkout/internal/domain"
	"github.com/brisastore/checkout/internal/logging"
)

type capabilityClient interface {
	ListMethods(ctx context.Context) ([]domain.MethodCapability, error)
}

// Registry holds the immutable method descriptors for a checkout surface,
// merged from the gateway's capability endpoint and the per-method field
// contracts. Loaded once; a failed load must surface to the caller so the
// shopper gets a retry affordance instead of a silently shorter list.
type Registry struct {
	descriptors     map[domain.MethodID]domain.PaymentMethodDescriptor
	order           []domain.MethodID
	maxInstallments int
}

func Load(ctx context.Context, client capabilityClient, maxInstallments int) (*Registry, error) {
	caps, err := client.ListMethods(ctx)
	if err != nil {
		return nil, fmt.Errorf("methods.Load: %w: %w", domain.ErrRegistryUnavailable, err)
	}

	r := &Registry{
		descriptors:     make(map[domain.MethodID]domain.PaymentMethodDescriptor, len(caps)),
		maxInstallments: maxInstallments,
	}

	log := logging.FromContext(ctx)
	for _, c := range caps {
		fields := fieldsFor(c.ID)
		if fields == nil {
			log.Warn("skipping unknown method from capability endpoint", "method_id", c.ID)
			continue
		}
		r.descriptors[c.ID] = domain.PaymentMethodDescriptor{
			ID:                   c.ID,
			Label:                c.Label,
			RequiredFields:       fields,
			SupportsInstallments: c.SupportsInstallments,
			SettlementKind:       c.SettlementKind,
			DiscountPct:          c.DiscountPct,
		}
		r.order = append(r.order, c.ID)
	}

	if len(r.order) == 0 {
		return nil, fmt.Errorf("methods.Load: capability endpoint offered no usable methods: %w", domain.ErrRegistryUnavailable)
	}
	return r, nil
}

// NewStaticRegistry builds a registry from the built-in Brazilian retail
// method set without consulting the capability endpoint. The mock gateway and
// tests use it; production loads from the gateway so disabled methods drop out.
func NewStaticRegistry(maxInstallments int) *Registry {
	caps := []domain.MethodCapability{
		{ID: domain.MethodCard, Label: "Cartão de crédito", SupportsInstallments: true, SettlementKind: domain.SettlementInstant},
		{ID: domain.MethodPix, Label: "PIX", SettlementKind: domain.SettlementDelayed, DiscountPct: 5},
		{ID: domain.MethodBoleto, Label: "Boleto bancário", SettlementKind: domain.SettlementDelayed},
	}

	r := &Registry{
		descriptors:     make(map[domain.MethodID]domain.PaymentMethodDescriptor, len(caps)),
		maxInstallments: maxInstallments,
	}
	for _, c := range caps {
		r.descriptors[c.ID] = domain.PaymentMethodDescriptor{
			ID:                   c.ID,
			Label:                c.Label,
			RequiredFields:       fieldsFor(c.ID),
			SupportsInstallments: c.SupportsInstallments,
			SettlementKind:       c.SettlementKind,
			DiscountPct:          c.DiscountPct,
		}
		r.order = append(r.order, c.ID)
	}
	return r
}

func (r *Registry) Describe(id domain.MethodID) (*domain.PaymentMethodDescriptor, error) {
	d, ok := r.descriptors[id]
	if !ok {
		return nil, fmt.Errorf("Describe: %q: %w", id, domain.ErrMethodNotFound)
	}
	return &d, nil
}

// List preserves the gateway's ordering.
func (r *Registry) List() []domain.PaymentMethodDescriptor {
	out := make([]domain.PaymentMethodDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.descriptors[id])
	}
	return out
}

func (r *Registry) MaxInstallments() int { return r.maxInstallments }

// ValidatePayer runs every client-side rule for the selected method against
// the payer profile. Card number, expiry and CVV are absent on purpose: those
// live in the provider-hosted secure fields and are validated there.
func (r *Registry) ValidatePayer(id domain.MethodID, p domain.PayerProfile) *domain.ValidationError {
	var errs []domain.FieldError

	switch id {
	case domain.MethodCard:
		if fe := ValidateEmail(p.Email); fe != nil {
			errs = append(errs, *fe)
		}
		if fe := ValidateTaxID(p.Identification); fe != nil {
			errs = append(errs, *fe)
		}
		if p.Card == nil {
			errs = append(errs, domain.FieldError{Field: "installments", Message: "required"})
		} else if fe := ValidateInstallments(p.Card.Installments, r.maxInstallments); fe != nil {
			errs = append(errs, *fe)
		}

	case domain.MethodPix, domain.MethodBoleto:
		if fe := requiredText("first_name", p.FirstName); fe != nil {
			errs = append(errs, *fe)
		}
		if fe := requiredText("last_name", p.LastName); fe != nil {
			errs = append(errs, *fe)
		}
		if fe := ValidateEmail(p.Email); fe != nil {
			errs = append(errs, *fe)
		}
		if fe := ValidateTaxID(p.Identification); fe != nil {
			errs = append(errs, *fe)
		}
		if id == domain.MethodBoleto {
			errs = append(errs, validateAddress(p.Address)...)
		}

	default:
		errs = append(errs, domain.FieldError{Field: "method", Message: "unknown_method"})
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Fields: errs}
	}
	return nil
}

// ValidateRawCard is the provider-side rule set for the secure fields. The
// orchestrator never calls this; it exists for the widget end of the
// tokenization boundary (and the mock gateway).
func ValidateRawCard(number, expiry, cvv string, now time.Time) []domain.FieldError {
	var errs []domain.FieldError
	if len(digitsOf(number)) < 13 || len(digitsOf(number)) > 19 {
		errs = append(errs, domain.FieldError{Field: "card_number", Message: "invalid_card_number"})
	}
	if fe := ValidateExpiryAt(expiry, now); fe != nil {
		errs = append(errs, *fe)
	}
	if fe := ValidateCVV(cvv); fe != nil {
		errs = append(errs, *fe)
	}
	return errs
}
