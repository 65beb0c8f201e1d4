package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"membership-billing/internal/domain"
	"membership-billing/internal/domain/ports/adapter"
)

// signatureTolerance bounds how old a signed timestamp may be; replays
// outside the window are rejected even with a valid MAC.
const signatureTolerance = 5 * time.Minute

type webhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID                string `json:"id"`
			ClientReferenceID string `json:"client_reference_id"`
			PaymentIntent     string `json:"payment_intent"`
			PaymentStatus     string `json:"payment_status"`
			AmountTotal       int64  `json:"amount_total"`
			Currency          string `json:"currency"`
			Metadata          map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// VerifyCallback checks the Stripe-Signature header: HMAC-SHA256 with the
// endpoint signing secret over "<t>.<raw body>", compared in constant time,
// with a bounded timestamp. Settles on a paid checkout.session.completed.
func (c *Client) VerifyCallback(_ context.Context, cb *adapter.CallbackRequest) (*adapter.VerifiedEvent, error) {
	header := cb.Header.Get("Stripe-Signature")
	if header == "" {
		return nil, fmt.Errorf("%w: missing Stripe-Signature header", domain.ErrSignatureInvalid)
	}

	ts, sigs, err := parseSignatureHeader(header)
	if err != nil {
		return nil, err
	}
	if d := c.now().Sub(time.Unix(ts, 0)); d > signatureTolerance || d < -signatureTolerance {
		return nil, fmt.Errorf("%w: signed timestamp outside tolerance", domain.ErrSignatureInvalid)
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(cb.Body)
	expected := mac.Sum(nil)

	ok := false
	for _, sig := range sigs {
		raw, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(raw, expected) {
			ok = true
			break
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: no matching v1 signature", domain.ErrSignatureInvalid)
	}

	var ev webhookEvent
	if err := json.Unmarshal(cb.Body, &ev); err != nil {
		return nil, fmt.Errorf("%w: malformed event body", domain.ErrSignatureInvalid)
	}

	obj := ev.Data.Object
	orderID := obj.ClientReferenceID
	if orderID == "" {
		orderID = obj.Metadata["order_id"]
	}

	// amount_total arrives in minor units; orders are denominated in major.
	amount := decimal.NewFromInt(obj.AmountTotal).Div(decimal.NewFromInt(100))

	return &adapter.VerifiedEvent{
		OrderID:       orderID,
		ProviderTxnID: obj.PaymentIntent,
		PaidAmount:    amount,
		PaidCurrency:  strings.ToUpper(obj.Currency),
		EventID:       ev.ID,
		ProviderRef:   obj.ID,
		Settled:       ev.Type == "checkout.session.completed" && obj.PaymentStatus == "paid",
	}, nil
}

// parseSignatureHeader splits "t=...,v1=...,v1=..." into the timestamp and
// the candidate signatures.
func parseSignatureHeader(header string) (int64, []string, error) {
	var ts int64 = -1
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			v, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: bad signature timestamp", domain.ErrSignatureInvalid)
			}
			ts = v
		case "v1":
			sigs = append(sigs, kv[1])
		}
	}
	if ts < 0 || len(sigs) == 0 {
		return 0, nil, fmt.Errorf("%w: signature header incomplete", domain.ErrSignatureInvalid)
	}
	return ts, sigs, nil
}
