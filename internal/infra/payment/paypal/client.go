// Package paypal implements the approve-then-capture checkout flow:
// client-credentials OAuth2 with a lazily refreshed token, order creation
// with an opaque custom field, idempotent capture, and webhook authenticity
// delegated to the provider's verify-webhook-signature API.
package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"membership-billing/internal/config"
	"membership-billing/internal/domain"
	"membership-billing/internal/domain/model"
	"membership-billing/internal/domain/ports/adapter"
)

var (
	_ adapter.PaymentProvider = (*Client)(nil)
	_ adapter.Capturer        = (*Client)(nil)
)

// tokenSlack refreshes the bearer token this long before it expires.
const tokenSlack = 60 * time.Second

type Client struct {
	clientID  string
	secret    string
	webhookID string
	returnURL string
	cancelURL string
	rest      *resty.Client
	now       func() time.Time

	mu       sync.RWMutex
	token    string
	tokenExp time.Time
}

func New(cfg config.PayPalConfig) (*Client, error) {
	if cfg.ClientID == "" || cfg.Secret == "" || cfg.WebhookID == "" || cfg.ReturnURL == "" {
		return nil, fmt.Errorf("%w: paypal credentials incomplete", domain.ErrConfig)
	}
	rest := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(15 * time.Second)
	return &Client{
		clientID:  cfg.ClientID,
		secret:    cfg.Secret,
		webhookID: cfg.WebhookID,
		returnURL: cfg.ReturnURL,
		cancelURL: cfg.CancelURL,
		rest:      rest,
		now:       time.Now,
	}, nil
}

func (c *Client) Name() model.Provider { return model.ProviderPayPal }

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// bearerToken returns a cached token or fetches a fresh one. Concurrent
// refreshes may race and fetch twice; that is cheaper than serializing
// every request behind one network call.
func (c *Client) bearerToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	token, exp := c.token, c.tokenExp
	c.mu.RUnlock()
	if token != "" && c.now().Before(exp.Add(-tokenSlack)) {
		return token, nil
	}

	var out tokenResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBasicAuth(c.clientID, c.secret).
		SetFormData(map[string]string{"grant_type": "client_credentials"}).
		SetResult(&out).
		Post("/v1/oauth2/token")
	if err != nil {
		return "", fmt.Errorf("paypal token: %w", err)
	}
	if resp.IsError() || out.AccessToken == "" {
		return "", fmt.Errorf("paypal token: status %d body %s", resp.StatusCode(), resp.String())
	}

	c.mu.Lock()
	c.token = out.AccessToken
	c.tokenExp = c.now().Add(time.Duration(out.ExpiresIn) * time.Second)
	c.mu.Unlock()
	return out.AccessToken, nil
}

type customField struct {
	UserID   string `json:"userId"`
	PlanType string `json:"planType"`
	Days     int    `json:"days"`
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
}

type purchaseUnit struct {
	ReferenceID string `json:"reference_id"`
	InvoiceID   string `json:"invoice_id"`
	Payments    *struct {
		Captures []capture `json:"captures"`
	} `json:"payments"`
}

type capture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount struct {
		CurrencyCode string `json:"currency_code"`
		Value        string `json:"value"`
	} `json:"amount"`
	InvoiceID string `json:"invoice_id"`
	CustomID  string `json:"custom_id"`
}

// CreateOrder registers a CAPTURE-intent order and returns the approval
// link. The invoice_id carries our order id so callbacks and captures can
// be mapped back; custom_id carries the opaque plan metadata.
func (c *Client) CreateOrder(ctx context.Context, order *model.PaymentOrder) (*adapter.RedirectArtifact, error) {
	token, err := c.bearerToken(ctx)
	if err != nil {
		return nil, err
	}

	custom, err := json.Marshal(customField{UserID: order.UserID, PlanType: order.Plan, Days: order.BillingDays})
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{{
			"reference_id": order.ID,
			"invoice_id":   order.ID,
			"custom_id":    string(custom),
			"amount": map[string]string{
				"currency_code": order.Currency,
				"value":         order.Amount.StringFixed(2),
			},
		}},
		"application_context": map[string]string{
			"return_url": c.returnURL + "?order_id=" + order.ID,
			"cancel_url": c.cancelURL,
		},
	}

	var out orderResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(body).
		SetResult(&out).
		Post("/v2/checkout/orders")
	if err != nil {
		return nil, fmt.Errorf("paypal create order: %w", err)
	}
	if resp.IsError() || out.ID == "" {
		return nil, fmt.Errorf("paypal create order: status %d body %s", resp.StatusCode(), resp.String())
	}

	approve := ""
	for _, l := range out.Links {
		if l.Rel == "approve" {
			approve = l.Href
			break
		}
	}
	if approve == "" {
		return nil, fmt.Errorf("paypal create order: no approve link in response")
	}

	return &adapter.RedirectArtifact{
		Kind:        adapter.ArtifactApprovalURL,
		Value:       approve,
		ProviderRef: out.ID,
	}, nil
}

type apiError struct {
	Name    string `json:"name"`
	Details []struct {
		Issue string `json:"issue"`
	} `json:"details"`
}

// Capture finalizes an approved order. An ORDER_ALREADY_CAPTURED answer is
// success: someone else (webhook or an earlier return) finalized it, and
// the order lookup recovers the capture details.
func (c *Client) Capture(ctx context.Context, providerRef string) (*adapter.VerifiedEvent, error) {
	token, err := c.bearerToken(ctx)
	if err != nil {
		return nil, err
	}

	var out orderResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetResult(&out).
		Post("/v2/checkout/orders/" + providerRef + "/capture")
	if err != nil {
		return nil, fmt.Errorf("paypal capture: %w", err)
	}

	if resp.IsError() {
		var apiErr apiError
		if json.Unmarshal(resp.Body(), &apiErr) == nil {
			for _, d := range apiErr.Details {
				if d.Issue == "ORDER_ALREADY_CAPTURED" {
					return c.lookupOrder(ctx, providerRef)
				}
			}
		}
		return nil, fmt.Errorf("paypal capture: status %d body %s", resp.StatusCode(), resp.String())
	}

	return eventFromOrder(&out)
}

func (c *Client) lookupOrder(ctx context.Context, providerRef string) (*adapter.VerifiedEvent, error) {
	token, err := c.bearerToken(ctx)
	if err != nil {
		return nil, err
	}
	var out orderResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&out).
		Get("/v2/checkout/orders/" + providerRef)
	if err != nil {
		return nil, fmt.Errorf("paypal get order: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("paypal get order: status %d body %s", resp.StatusCode(), resp.String())
	}
	return eventFromOrder(&out)
}

func eventFromOrder(out *orderResponse) (*adapter.VerifiedEvent, error) {
	if len(out.PurchaseUnits) == 0 {
		return nil, fmt.Errorf("paypal order %s has no purchase units", out.ID)
	}
	pu := out.PurchaseUnits[0]
	if pu.Payments == nil || len(pu.Payments.Captures) == 0 {
		return nil, fmt.Errorf("paypal order %s has no captures", out.ID)
	}
	cap := pu.Payments.Captures[0]

	amount, err := decimal.NewFromString(cap.Amount.Value)
	if err != nil {
		return nil, fmt.Errorf("paypal capture amount %q: %w", cap.Amount.Value, err)
	}

	orderID := pu.ReferenceID
	if orderID == "" {
		orderID = pu.InvoiceID
	}
	return &adapter.VerifiedEvent{
		OrderID:       orderID,
		ProviderTxnID: cap.ID,
		PaidAmount:    amount,
		PaidCurrency:  cap.Amount.CurrencyCode,
		ProviderRef:   out.ID,
		Settled:       cap.Status == "COMPLETED",
	}, nil
}
