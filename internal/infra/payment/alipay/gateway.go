// Package alipay implements the page-pay redirect flow: an RSA2-signed
// parameter set rendered as an auto-submitting form outbound, and RSA2
// verification of form-encoded asynchronous notifications inbound.
package alipay

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html/template"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"membership-billing/internal/config"
	"membership-billing/internal/domain"
	"membership-billing/internal/domain/model"
	"membership-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentProvider = (*Gateway)(nil)

type Options struct {
	AppID      string
	PrivateKey *rsa.PrivateKey // merchant application key, signs requests
	PublicKey  *rsa.PublicKey  // provider key, verifies notifications
	GatewayURL string
	NotifyURL  string
	ReturnURL  string
}

type Gateway struct {
	opts Options
	now  func() time.Time
}

func New(opts Options) (*Gateway, error) {
	if opts.AppID == "" || opts.PrivateKey == nil || opts.PublicKey == nil || opts.NotifyURL == "" {
		return nil, fmt.Errorf("%w: alipay credentials incomplete", domain.ErrConfig)
	}
	if opts.GatewayURL == "" {
		opts.GatewayURL = "https://openapi.alipay.com/gateway.do"
	}
	return &Gateway{opts: opts, now: time.Now}, nil
}

func NewFromConfig(cfg config.AlipayConfig) (*Gateway, error) {
	priv, err := loadPrivateKey(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: alipay private key: %v", domain.ErrConfig, err)
	}
	pub, err := loadPublicKey(cfg.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: alipay public key: %v", domain.ErrConfig, err)
	}
	return New(Options{
		AppID:      cfg.AppID,
		PrivateKey: priv,
		PublicKey:  pub,
		GatewayURL: cfg.GatewayURL,
		NotifyURL:  cfg.NotifyURL,
		ReturnURL:  cfg.ReturnURL,
	})
}

func (g *Gateway) Name() model.Provider { return model.ProviderAlipay }

var formTmpl = template.Must(template.New("alipay").Parse(`<form id="alipay_submit" method="POST" action="{{.Action}}">
{{- range $k, $v := .Fields}}
<input type="hidden" name="{{$k}}" value="{{$v}}"/>
{{- end}}
</form>
<script>document.getElementById("alipay_submit").submit();</script>`))

// CreateOrder renders the signed auto-submitting form the client posts to
// the gateway.
func (g *Gateway) CreateOrder(_ context.Context, order *model.PaymentOrder) (*adapter.RedirectArtifact, error) {
	bizContent, err := json.Marshal(map[string]string{
		"out_trade_no": order.ID,
		"product_code": "FAST_INSTANT_TRADE_PAY",
		"total_amount": order.Amount.StringFixed(2),
		"subject":      fmt.Sprintf("membership %s/%s", order.Plan, order.BillingCycle),
	})
	if err != nil {
		return nil, err
	}

	params := map[string]string{
		"app_id":      g.opts.AppID,
		"method":      "alipay.trade.page.pay",
		"format":      "JSON",
		"charset":     "utf-8",
		"sign_type":   "RSA2",
		"timestamp":   g.now().Format("2006-01-02 15:04:05"),
		"version":     "1.0",
		"notify_url":  g.opts.NotifyURL,
		"return_url":  g.opts.ReturnURL,
		"biz_content": string(bizContent),
	}
	sign, err := g.sign(params)
	if err != nil {
		return nil, err
	}
	params["sign"] = sign

	var sb strings.Builder
	if err := formTmpl.Execute(&sb, struct {
		Action string
		Fields map[string]string
	}{Action: g.opts.GatewayURL, Fields: params}); err != nil {
		return nil, err
	}

	return &adapter.RedirectArtifact{Kind: adapter.ArtifactFormHTML, Value: sb.String()}, nil
}

// VerifyCallback authenticates a form-encoded asynchronous notification with
// the provider's public key. Only TRADE_SUCCESS/TRADE_FINISHED settle.
func (g *Gateway) VerifyCallback(_ context.Context, cb *adapter.CallbackRequest) (*adapter.VerifiedEvent, error) {
	values, err := url.ParseQuery(string(cb.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: malformed notification body", domain.ErrSignatureInvalid)
	}

	params := make(map[string]string, len(values))
	for k := range values {
		params[k] = values.Get(k)
	}
	sign := params["sign"]
	if sign == "" {
		return nil, fmt.Errorf("%w: notification carries no sign", domain.ErrSignatureInvalid)
	}
	if err := g.verify(params, sign); err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(params["total_amount"])
	if err != nil {
		return nil, fmt.Errorf("%w: bad total_amount %q", domain.ErrSignatureInvalid, params["total_amount"])
	}

	tradeStatus := params["trade_status"]
	return &adapter.VerifiedEvent{
		OrderID:       params["out_trade_no"],
		ProviderTxnID: params["trade_no"],
		PaidAmount:    amount,
		PaidCurrency:  "CNY",
		EventID:       params["notify_id"],
		Settled:       tradeStatus == "TRADE_SUCCESS" || tradeStatus == "TRADE_FINISHED",
	}, nil
}

// signingString joins the non-empty parameters as k=v pairs, keys sorted
// lexicographically, sign and sign_type excluded.
func signingString(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if k == "sign" || k == "sign_type" || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	return strings.Join(pairs, "&")
}

func (g *Gateway) sign(params map[string]string) (string, error) {
	digest := sha256.Sum256([]byte(signingString(params)))
	sig, err := rsa.SignPKCS1v15(rand.Reader, g.opts.PrivateKey, crypto.SHA256, digest[:])
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

func (g *Gateway) verify(params map[string]string, signB64 string) error {
	sig, err := base64.StdEncoding.DecodeString(signB64)
	if err != nil {
		return fmt.Errorf("%w: sign is not base64", domain.ErrSignatureInvalid)
	}
	digest := sha256.Sum256([]byte(signingString(params)))
	if err := rsa.VerifyPKCS1v15(g.opts.PublicKey, crypto.SHA256, digest[:], sig); err != nil {
		return fmt.Errorf("%w: RSA2 check failed", domain.ErrSignatureInvalid)
	}
	return nil
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePrivateKeyPEM(raw)
}

func loadPublicKey(path string) (*rsa.PublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePublicKeyPEM(raw)
}
