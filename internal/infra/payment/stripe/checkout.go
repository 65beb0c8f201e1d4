// Package stripe implements the hosted Checkout Session flow over the
// provider's form-encoded REST surface, with local HMAC verification of
// signed webhook events.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"membership-billing/internal/config"
	"membership-billing/internal/domain"
	"membership-billing/internal/domain/model"
	"membership-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentProvider = (*Client)(nil)

type Client struct {
	secretKey     string
	webhookSecret string
	successURL    string
	cancelURL     string
	baseURL       string
	http          *http.Client
	now           func() time.Time
}

func New(cfg config.StripeConfig) (*Client, error) {
	if cfg.SecretKey == "" || cfg.WebhookSecret == "" || cfg.SuccessURL == "" || cfg.CancelURL == "" {
		return nil, fmt.Errorf("%w: stripe credentials incomplete", domain.ErrConfig)
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.stripe.com"
	}
	return &Client{
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
		baseURL:       base,
		http:          &http.Client{Timeout: 10 * time.Second},
		now:           time.Now,
	}, nil
}

func (c *Client) Name() model.Provider { return model.ProviderStripe }

type checkoutSession struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateOrder opens a Checkout Session. The order id travels as the
// client_reference_id and in metadata, so the webhook can map the session
// back without any provider-side state of ours.
func (c *Client) CreateOrder(ctx context.Context, order *model.PaymentOrder) (*adapter.RedirectArtifact, error) {
	// Checkout wants minor units regardless of how the order is denominated.
	unitAmount := order.Amount.Mul(decimal.NewFromInt(100)).IntPart()

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("client_reference_id", order.ID)
	form.Set("success_url", c.successURL+"?session_id={CHECKOUT_SESSION_ID}")
	form.Set("cancel_url", c.cancelURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(order.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(unitAmount, 10))
	form.Set("line_items[0][price_data][product_data][name]", fmt.Sprintf("membership %s/%s", order.Plan, order.BillingCycle))
	form.Set("metadata[order_id]", order.ID)
	form.Set("metadata[user_id]", order.UserID)
	form.Set("metadata[plan]", order.Plan)
	form.Set("metadata[days]", strconv.Itoa(order.BillingDays))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stripe request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var session checkoutSession
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("stripe response: %w, body: %s", err, string(body))
	}
	if resp.StatusCode != http.StatusOK || session.URL == "" {
		msg := ""
		if session.Error != nil {
			msg = session.Error.Message
		}
		return nil, fmt.Errorf("stripe error: status %d message %s", resp.StatusCode, msg)
	}

	return &adapter.RedirectArtifact{
		Kind:        adapter.ArtifactCheckoutURL,
		Value:       session.URL,
		ProviderRef: session.ID,
	}, nil
}
