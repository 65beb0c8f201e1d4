package adapter

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"membership-billing/internal/domain/model"
)

// ArtifactKind tells the client how to continue the checkout.
type ArtifactKind string

const (
	ArtifactQRCode      ArtifactKind = "qr_code"      // URL to encode as a QR code
	ArtifactFormHTML    ArtifactKind = "form_html"    // auto-submitting HTML form
	ArtifactCheckoutURL ArtifactKind = "checkout_url" // hosted checkout page
	ArtifactApprovalURL ArtifactKind = "approval_url" // approval link, capture on return
)

// RedirectArtifact is what order creation hands back to the client.
type RedirectArtifact struct {
	Kind  ArtifactKind
	Value string
	// ProviderRef is the provider-side order/session id to persist when it
	// differs from our order id (e.g. a checkout session id).
	ProviderRef string
}

// CallbackRequest carries the raw inbound webhook: exact body bytes plus the
// transport headers the provider signed.
type CallbackRequest struct {
	Body   []byte
	Header http.Header
}

// VerifiedEvent is the outcome of a successful callback verification,
// normalized across providers.
type VerifiedEvent struct {
	OrderID       string
	ProviderTxnID string
	PaidAmount    decimal.Decimal // in the provider's native unit
	PaidCurrency  string
	EventID       string // provider event/transmission id for the dedup ledger
	// Settled is true only for events that report a completed charge. A
	// verified but non-settling event (closed trade, approval-only) must not
	// transition the order.
	Settled bool
	// RequiresCapture marks an authorized-but-uncaptured charge; the
	// pipeline finalizes it through the Capturer before applying.
	RequiresCapture bool
	ProviderRef     string
}

// PaymentProvider is the port every payment network adapter implements.
type PaymentProvider interface {
	Name() model.Provider

	// CreateOrder registers the order with the provider and returns the
	// artifact the client needs to complete payment.
	CreateOrder(ctx context.Context, order *model.PaymentOrder) (*RedirectArtifact, error)

	// VerifyCallback authenticates a raw provider callback and extracts the
	// normalized event. Returns domain.ErrSignatureInvalid (wrapped) when
	// authenticity cannot be established.
	VerifyCallback(ctx context.Context, cb *CallbackRequest) (*VerifiedEvent, error)
}

// Capturer finalizes an authorized charge. Capture must be idempotent: an
// "already captured" answer from the provider maps to the settled event, not
// to an error.
type Capturer interface {
	Capture(ctx context.Context, providerRef string) (*VerifiedEvent, error)
}
