package handler

import (
	"net/http"

	"github.com/brisastore/checkout/internal/domain"
	"github.com/brisastore/checkout/internal/pricing"
)

type methodLister interface {
	List() []domain.PaymentMethodDescriptor
	Describe(id domain.MethodID) (*domain.PaymentMethodDescriptor, error)
	MaxInstallments() int
}

type MethodsHandler struct {
	registry methodLister
}

func NewMethodsHandler(registry methodLister) *MethodsHandler {
	return &MethodsHandler{registry: registry}
}

type fieldSpecResponse struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
	Format   string `json:"format"`
}

type methodResponse struct {
	ID                   string              `json:"id"`
	Label                string              `json:"label"`
	RequiredFields       []fieldSpecResponse `json:"required_fields"`
	SupportsInstallments bool                `json:"supports_installments"`
	SettlementKind       string              `json:"settlement_kind"`
	DiscountPct          int                 `json:"discount_pct,omitempty"`
}

func toMethodResponse(d domain.PaymentMethodDescriptor) methodResponse {
	fields := make([]fieldSpecResponse, 0, len(d.RequiredFields))
	for _, f := range d.RequiredFields {
		fields = append(fields, fieldSpecResponse{
			Name:     f.Name,
			Label:    f.Label,
			Required: f.Required,
			Format:   string(f.Format),
		})
	}
	return methodResponse{
		ID:                   string(d.ID),
		Label:                d.Label,
		RequiredFields:       fields,
		SupportsInstallments: d.SupportsInstallments,
		SettlementKind:       string(d.SettlementKind),
		DiscountPct:          d.DiscountPct,
	}
}

// ListMethods returns every available method with its field contract so the
// storefront renders forms from data instead of hardcoding them.
func (h *MethodsHandler) ListMethods(w http.ResponseWriter, r *http.Request) {
	descriptors := h.registry.List()
	out := make([]methodResponse, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, toMethodResponse(d))
	}
	RespondSuccess(w, http.StatusOK, map[string]any{"methods": out})
}

type installmentResponse struct {
	Count   int    `json:"count"`
	Total   string `json:"total"`
	PerUnit string `json:"per_unit"`
}

// ListInstallments quotes the installment plans for an amount under the
// selected method.
func (h *MethodsHandler) ListInstallments(w http.ResponseWriter, r *http.Request) {
	desc, err := h.registry.Describe(domain.MethodID(r.PathValue("id")))
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	if !desc.SupportsInstallments {
		RespondValidationError(w, []FieldError{{Field: "id", Message: "method does not support installments"}})
		return
	}

	amount, err := pricing.ParseAmount(r.URL.Query().Get("amount"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "amount", Message: "must be a positive decimal amount"}})
		return
	}

	plans, err := pricing.InstallmentPlans(amount, h.registry.MaxInstallments())
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	out := make([]installmentResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, installmentResponse{
			Count:   p.Count,
			Total:   pricing.Display(p.Total),
			PerUnit: pricing.Display(p.PerUnit),
		})
	}
	RespondSuccess(w, http.StatusOK, map[string]any{"installments": out})
}
