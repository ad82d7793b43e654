package tokenizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/brisastore/checkout/internal/domain"
	"github.com/brisastore/checkout/internal/logging"
)

// The tokenizer owns the only path raw card data can take: the provider
// hosts the secure fields against a widget session, and this process only
// ever sees the opaque single-use token that comes back.

type Client struct {
	baseURL    string
	publicKey  string
	httpClient *http.Client
}

func NewClient(baseURL, publicKey string) *Client {
	return &Client{
		baseURL:   baseURL,
		publicKey: publicKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SecureFieldTargets names the storefront slots the provider renders its
// hosted inputs into. Values are element ids, never card data.
type SecureFieldTargets struct {
	CardNumber string `json:"card_number"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv"`
}

// NonSensitiveFields is everything Submit is allowed to carry. The provider
// pairs it with the raw values it already holds for the widget session.
type NonSensitiveFields struct {
	CardholderName string
	Installments   int
	Identification domain.Identification
}

// MountHandle is the exclusive owner of one widget session for the lifetime
// of one data-entry state. Unmount is idempotent and must run on every exit
// path.
type MountHandle struct {
	client        *Client
	widgetSession string

	unmountOnce sync.Once
}

type mountResponse struct {
	WidgetSession string `json:"widget_session"`
}

func (c *Client) Mount(ctx context.Context, targets SecureFieldTargets) (*MountHandle, error) {
	body, err := json.Marshal(map[string]any{
		"public_key": c.publicKey,
		"targets":    targets,
	})
	if err != nil {
		return nil, fmt.Errorf("Mount: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/secure-fields", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("Mount: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Mount: %w: %w", domain.ErrWidgetMount, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("Mount: widget init returned %d (%s): %w", resp.StatusCode, string(respBody), domain.ErrWidgetMount)
	}

	var mr mountResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil || mr.WidgetSession == "" {
		return nil, fmt.Errorf("Mount: bad widget session: %w", domain.ErrWidgetMount)
	}

	return &MountHandle{client: c, widgetSession: mr.WidgetSession}, nil
}

type tokenResponse struct {
	Token              string `json:"token"`
	IssuerID           string `json:"issuer_id"`
	InstallmentOptions []int  `json:"installment_options"`
}

type tokenRejection struct {
	Field string `json:"field"`
	Hint  string `json:"hint"`
}

// Submit exchanges the widget session plus non-sensitive fields for a token.
// A provider rejection of the raw data comes back as TokenizationError: no
// token exists and no charge was attempted.
func (h *MountHandle) Submit(ctx context.Context, fields NonSensitiveFields) (*domain.TokenizationResult, error) {
	if h.widgetSession == "" {
		return nil, fmt.Errorf("Submit: %w", domain.ErrWidgetNotMounted)
	}

	body, err := json.Marshal(map[string]any{
		"cardholder_name":     fields.CardholderName,
		"installments":        fields.Installments,
		"identification_type": fields.Identification.Type,
		"identification":      fields.Identification.Number,
	})
	if err != nil {
		return nil, fmt.Errorf("Submit: marshal: %w", err)
	}

	url := h.client.baseURL + "/v1/secure-fields/" + h.widgetSession + "/tokens"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("Submit: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Submit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnprocessableEntity {
		var rej tokenRejection
		if err := json.NewDecoder(resp.Body).Decode(&rej); err != nil {
			rej = tokenRejection{Field: "card", Hint: "rejected"}
		}
		return nil, &domain.TokenizationError{Field: rej.Field, Hint: rej.Hint}
	}
	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("Submit: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("Submit: decode: %w", err)
	}

	return &domain.TokenizationResult{
		Token:              tr.Token,
		IssuerID:           tr.IssuerID,
		InstallmentOptions: tr.InstallmentOptions,
	}, nil
}

// Unmount releases the widget session. Safe to call more than once and on
// paths where Submit never ran.
func (h *MountHandle) Unmount() {
	h.unmountOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, h.client.baseURL+"/v1/secure-fields/"+h.widgetSession, nil)
		if err != nil {
			return
		}
		resp, err := h.client.httpClient.Do(req)
		if err != nil {
			logging.FromContext(ctx).Warn("secure field release failed", "error", err)
			return
		}
		resp.Body.Close()
	})
}

// WithSecureFields scopes a widget session to fn, releasing it on every exit
// path including error and panic.
func WithSecureFields(ctx context.Context, c *Client, targets SecureFieldTargets, fn func(*MountHandle) error) error {
	h, err := c.Mount(ctx, targets)
	if err != nil {
		return fmt.Errorf("WithSecureFields: %w", err)
	}
	defer h.Unmount()
	return fn(h)
}
