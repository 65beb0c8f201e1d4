//go:build !integration

package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"membership-billing/internal/domain"
	"membership-billing/internal/domain/model"
	"membership-billing/internal/domain/ports/adapter"
)

const testWebhookSecret = "whsec_test_secret"

func newTestStripeClient() *Client {
	return &Client{
		secretKey:     "sk_test_123",
		webhookSecret: testWebhookSecret,
		successURL:    "https://example.com/success",
		cancelURL:     "https://example.com/cancel",
		baseURL:       "https://api.stripe.com",
		http:          &http.Client{},
		now:           time.Now,
	}
}

// signedCallback produces the Stripe-Signature header for body at ts.
func signedCallback(body string, ts time.Time) *adapter.CallbackRequest {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), body)
	sig := hex.EncodeToString(mac.Sum(nil))

	h := http.Header{}
	h.Set("Stripe-Signature", "t="+strconv.FormatInt(ts.Unix(), 10)+",v1="+sig)
	return &adapter.CallbackRequest{Body: []byte(body), Header: h}
}

const completedSessionEvent = `{
  "id": "evt_1",
  "type": "checkout.session.completed",
  "data": {
    "object": {
      "id": "cs_test_1",
      "client_reference_id": "str_order1",
      "payment_intent": "pi_1",
      "payment_status": "paid",
      "amount_total": 499,
      "currency": "usd"
    }
  }
}`

func TestClient_VerifyCallback(t *testing.T) {
	ctx := context.Background()

	t.Run("should verify the signature and settle a paid session", func(t *testing.T) {
		// --- Arrange ---
		c := newTestStripeClient()
		cb := signedCallback(completedSessionEvent, time.Now())

		// --- Act ---
		ev, err := c.VerifyCallback(ctx, cb)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if ev.OrderID != "str_order1" || ev.ProviderTxnID != "pi_1" {
			t.Errorf("unexpected mapping: %+v", ev)
		}
		if !ev.Settled {
			t.Error("expected a settled event")
		}
		if !ev.PaidAmount.Equal(decimal.RequireFromString("4.99")) || ev.PaidCurrency != "USD" {
			t.Errorf("expected 4.99 USD, got %s %s", ev.PaidAmount, ev.PaidCurrency)
		}
		if ev.EventID != "evt_1" {
			t.Errorf("expected the event id, got %q", ev.EventID)
		}
	})

	t.Run("should not settle an unpaid session", func(t *testing.T) {
		c := newTestStripeClient()
		body := `{"id":"evt_2","type":"checkout.session.completed","data":{"object":{"client_reference_id":"str_order1","payment_status":"unpaid","amount_total":499,"currency":"usd"}}}`
		cb := signedCallback(body, time.Now())

		ev, err := c.VerifyCallback(ctx, cb)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if ev.Settled {
			t.Error("expected an unsettled event for an unpaid session")
		}
	})

	t.Run("should reject a tampered body", func(t *testing.T) {
		c := newTestStripeClient()
		cb := signedCallback(completedSessionEvent, time.Now())
		cb.Body = []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"amount_total":1}}}`)

		if _, err := c.VerifyCallback(ctx, cb); !errors.Is(err, domain.ErrSignatureInvalid) {
			t.Fatalf("expected ErrSignatureInvalid, got %v", err)
		}
	})

	t.Run("should reject a signed timestamp outside the tolerance", func(t *testing.T) {
		c := newTestStripeClient()
		cb := signedCallback(completedSessionEvent, time.Now().Add(-10*time.Minute))

		if _, err := c.VerifyCallback(ctx, cb); !errors.Is(err, domain.ErrSignatureInvalid) {
			t.Fatalf("expected ErrSignatureInvalid, got %v", err)
		}
	})

	t.Run("should reject a missing signature header", func(t *testing.T) {
		c := newTestStripeClient()
		cb := &adapter.CallbackRequest{Body: []byte(completedSessionEvent), Header: http.Header{}}

		if _, err := c.VerifyCallback(ctx, cb); !errors.Is(err, domain.ErrSignatureInvalid) {
			t.Fatalf("expected ErrSignatureInvalid, got %v", err)
		}
	})

	t.Run("should accept any matching v1 signature among several", func(t *testing.T) {
		c := newTestStripeClient()
		cb := signedCallback(completedSessionEvent, time.Now())
		// During secret rotation the header carries one signature per key.
		ts := time.Now()
		mac := hmac.New(sha256.New, []byte(testWebhookSecret))
		fmt.Fprintf(mac, "%d.%s", ts.Unix(), completedSessionEvent)
		good := hex.EncodeToString(mac.Sum(nil))
		cb.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=deadbeef,v1=%s", ts.Unix(), good))

		if _, err := c.VerifyCallback(ctx, cb); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})
}

func TestClient_CreateOrder(t *testing.T) {
	t.Run("should open a checkout session carrying the order id", func(t *testing.T) {
		// --- Arrange ---
		var gotForm string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				t.Errorf("bad form: %v", err)
			}
			gotForm = r.PostForm.Encode()
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id":"cs_test_1","url":"https://checkout.stripe.com/c/pay/cs_test_1"}`)
		}))
		defer srv.Close()

		c := newTestStripeClient()
		c.baseURL = srv.URL

		order, err := model.NewPaymentOrder("user-1", "pro", "monthly", model.ProviderStripe, decimal.RequireFromString("4.99"), "USD", 30)
		if err != nil {
			t.Fatalf("setup: %v", err)
		}

		// --- Act ---
		artifact, err := c.CreateOrder(context.Background(), order)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if artifact.Kind != adapter.ArtifactCheckoutURL {
			t.Errorf("expected a checkout_url artifact, got %q", artifact.Kind)
		}
		if artifact.ProviderRef != "cs_test_1" {
			t.Errorf("expected the session id as provider ref, got %q", artifact.ProviderRef)
		}
		for _, want := range []string{
			"client_reference_id=" + order.ID,
			"unit_amount%5D=499",
			"currency%5D=usd",
		} {
			if !strings.Contains(gotForm, want) {
				t.Errorf("form missing %q in %q", want, gotForm)
			}
		}
	})

	t.Run("should surface session creation errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
			fmt.Fprint(w, `{"error":{"type":"card_error","message":"nope"}}`)
		}))
		defer srv.Close()

		c := newTestStripeClient()
		c.baseURL = srv.URL
		order, _ := model.NewPaymentOrder("user-1", "pro", "monthly", model.ProviderStripe, decimal.RequireFromString("4.99"), "USD", 30)

		if _, err := c.CreateOrder(context.Background(), order); err == nil {
			t.Fatal("expected an error")
		}
	})
}
