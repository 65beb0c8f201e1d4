package paypal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"membership-billing/internal/domain"
	"membership-billing/internal/domain/ports/adapter"
)

type webhookEvent struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	ResourceType string          `json:"resource_type"`
	Resource     json.RawMessage `json:"resource"`
}

type verifyRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type verifyResponse struct {
	VerificationStatus string `json:"verification_status"`
}

// VerifyCallback authenticates a webhook delivery by asking the provider's
// verify-webhook-signature endpoint, passing along the transmission headers
// and the raw event exactly as received.
func (c *Client) VerifyCallback(ctx context.Context, cb *adapter.CallbackRequest) (*adapter.VerifiedEvent, error) {
	transmissionID := cb.Header.Get("Paypal-Transmission-Id")
	if transmissionID == "" {
		return nil, fmt.Errorf("%w: missing Paypal-Transmission-Id header", domain.ErrSignatureInvalid)
	}

	token, err := c.bearerToken(ctx)
	if err != nil {
		return nil, err
	}

	var out verifyResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(verifyRequest{
			AuthAlgo:         cb.Header.Get("Paypal-Auth-Algo"),
			CertURL:          cb.Header.Get("Paypal-Cert-Url"),
			TransmissionID:   transmissionID,
			TransmissionSig:  cb.Header.Get("Paypal-Transmission-Sig"),
			TransmissionTime: cb.Header.Get("Paypal-Transmission-Time"),
			WebhookID:        c.webhookID,
			WebhookEvent:     json.RawMessage(cb.Body),
		}).
		SetResult(&out).
		Post("/v1/notifications/verify-webhook-signature")
	if err != nil {
		return nil, fmt.Errorf("paypal verify signature: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("paypal verify signature: status %d body %s", resp.StatusCode(), resp.String())
	}
	if out.VerificationStatus != "SUCCESS" {
		return nil, fmt.Errorf("%w: verification status %s", domain.ErrSignatureInvalid, out.VerificationStatus)
	}

	var ev webhookEvent
	if err := json.Unmarshal(cb.Body, &ev); err != nil {
		return nil, fmt.Errorf("%w: malformed event body", domain.ErrSignatureInvalid)
	}

	switch ev.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		return c.captureCompletedEvent(transmissionID, &ev)
	case "CHECKOUT.ORDER.APPROVED":
		return c.orderApprovedEvent(transmissionID, &ev)
	default:
		// Authentic but not something we act on.
		return &adapter.VerifiedEvent{EventID: transmissionID}, nil
	}
}

func (c *Client) captureCompletedEvent(transmissionID string, ev *webhookEvent) (*adapter.VerifiedEvent, error) {
	var res capture
	if err := json.Unmarshal(ev.Resource, &res); err != nil {
		return nil, fmt.Errorf("paypal capture resource: %w", err)
	}
	amount, err := decimal.NewFromString(res.Amount.Value)
	if err != nil {
		return nil, fmt.Errorf("paypal capture amount %q: %w", res.Amount.Value, err)
	}

	orderID := res.InvoiceID
	if orderID == "" {
		return nil, fmt.Errorf("paypal capture %s carries no invoice_id", res.ID)
	}

	return &adapter.VerifiedEvent{
		OrderID:       orderID,
		ProviderTxnID: res.ID,
		PaidAmount:    amount,
		PaidCurrency:  res.Amount.CurrencyCode,
		EventID:       transmissionID,
		Settled:       res.Status == "COMPLETED",
	}, nil
}

func (c *Client) orderApprovedEvent(transmissionID string, ev *webhookEvent) (*adapter.VerifiedEvent, error) {
	var res orderResponse
	if err := json.Unmarshal(ev.Resource, &res); err != nil {
		return nil, fmt.Errorf("paypal order resource: %w", err)
	}
	if len(res.PurchaseUnits) == 0 {
		return nil, fmt.Errorf("paypal order %s has no purchase units", res.ID)
	}
	pu := res.PurchaseUnits[0]
	orderID := pu.ReferenceID
	if orderID == "" {
		orderID = pu.InvoiceID
	}
	if orderID == "" {
		return nil, fmt.Errorf("paypal order %s carries no reference_id", res.ID)
	}

	// Approval means the buyer consented; the money only moves on capture.
	return &adapter.VerifiedEvent{
		OrderID:         orderID,
		EventID:         transmissionID,
		ProviderRef:     res.ID,
		RequiresCapture: true,
	}, nil
}
