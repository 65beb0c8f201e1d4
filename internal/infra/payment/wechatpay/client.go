// Package wechatpay implements the WeChat Pay APIv3 Native (QR code) flow:
// RSA-signed merchant requests outbound, certificate-verified and
// AES-256-GCM-encrypted notifications inbound.
package wechatpay

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"membership-billing/internal/config"
	"membership-billing/internal/domain"
	"membership-billing/internal/domain/model"
	"membership-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentProvider = (*Client)(nil)

// Options carries parsed credentials. NewFromConfig loads them from PEM
// files; tests construct them directly.
type Options struct {
	MchID             string
	AppID             string
	SerialNo          string // merchant certificate serial
	APIv3Key          []byte // 32-byte symmetric key for notification resources
	PrivateKey        *rsa.PrivateKey
	PlatformSerialNo  string // platform certificate serial
	PlatformPublicKey *rsa.PublicKey
	NotifyURL         string
	BaseURL           string
	HTTPClient        *http.Client
}

type Client struct {
	opts Options
	now  func() time.Time
}

func New(opts Options) (*Client, error) {
	if opts.MchID == "" || opts.AppID == "" || opts.SerialNo == "" ||
		opts.PrivateKey == nil || opts.PlatformPublicKey == nil || len(opts.APIv3Key) != 32 {
		return nil, fmt.Errorf("%w: wechatpay credentials incomplete", domain.ErrConfig)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.mch.weixin.qq.com"
	}
	return &Client{opts: opts, now: time.Now}, nil
}

// NewFromConfig reads the merchant private key and the platform certificate
// from the configured PEM files.
func NewFromConfig(cfg config.WechatPayConfig) (*Client, error) {
	priv, err := loadPrivateKey(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: wechatpay private key: %v", domain.ErrConfig, err)
	}
	serial, pub, err := loadCertificate(cfg.PlatformCertPath)
	if err != nil {
		return nil, fmt.Errorf("%w: wechatpay platform certificate: %v", domain.ErrConfig, err)
	}
	return New(Options{
		MchID:             cfg.MchID,
		AppID:             cfg.AppID,
		SerialNo:          cfg.SerialNo,
		APIv3Key:          []byte(cfg.APIv3Key),
		PrivateKey:        priv,
		PlatformSerialNo:  serial,
		PlatformPublicKey: pub,
		NotifyURL:         cfg.NotifyURL,
		BaseURL:           cfg.BaseURL,
	})
}

func (c *Client) Name() model.Provider { return model.ProviderWechatPay }

type nativeOrderRequest struct {
	AppID       string `json:"appid"`
	MchID       string `json:"mchid"`
	Description string `json:"description"`
	OutTradeNo  string `json:"out_trade_no"`
	NotifyURL   string `json:"notify_url"`
	Amount      struct {
		Total    int64  `json:"total"`
		Currency string `json:"currency"`
	} `json:"amount"`
}

type nativeOrderResponse struct {
	CodeURL string `json:"code_url"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreateOrder places a Native trade and returns the QR-encodable code_url.
func (c *Client) CreateOrder(ctx context.Context, order *model.PaymentOrder) (*adapter.RedirectArtifact, error) {
	req := nativeOrderRequest{
		AppID:       c.opts.AppID,
		MchID:       c.opts.MchID,
		Description: fmt.Sprintf("membership %s/%s", order.Plan, order.BillingCycle),
		OutTradeNo:  order.ID,
		NotifyURL:   c.opts.NotifyURL,
	}
	req.Amount.Total = order.Amount.IntPart()
	req.Amount.Currency = order.Currency

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	const path = "/v3/pay/transactions/native"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	auth, err := c.authorization(http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", auth)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.opts.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("wechatpay request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var out nativeOrderResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("wechatpay response: %w, body: %s", err, string(respBody))
	}
	if resp.StatusCode != http.StatusOK || out.CodeURL == "" {
		return nil, fmt.Errorf("wechatpay error: status %d code %s message %s", resp.StatusCode, out.Code, out.Message)
	}

	return &adapter.RedirectArtifact{Kind: adapter.ArtifactQRCode, Value: out.CodeURL}, nil
}

// authorization signs METHOD\nPATH\nTIMESTAMP\nNONCE\nBODY\n with the
// merchant private key and renders the serial-bearing scheme header.
func (c *Client) authorization(method, pathWithQuery string, body []byte) (string, error) {
	ts := fmt.Sprintf("%d", c.now().Unix())
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")
	msg := method + "\n" + pathWithQuery + "\n" + ts + "\n" + nonce + "\n" + string(body) + "\n"

	digest := sha256.Sum256([]byte(msg))
	sig, err := rsa.SignPKCS1v15(rand.Reader, c.opts.PrivateKey, crypto.SHA256, digest[:])
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		`WECHATPAY2-SHA256-RSA2048 mchid="%s",nonce_str="%s",signature="%s",timestamp="%s",serial_no="%s"`,
		c.opts.MchID, nonce, base64.StdEncoding.EncodeToString(sig), ts, c.opts.SerialNo,
	), nil
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePrivateKeyPEM(raw)
}

// ParsePrivateKeyPEM accepts PKCS#8 or PKCS#1 encoded RSA keys.
func ParsePrivateKeyPEM(raw []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	if k, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("not an RSA key")
		}
		return rsaKey, nil
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

func loadCertificate(path string) (serial string, pub *rsa.PublicKey, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return "", nil, fmt.Errorf("no PEM block found")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return "", nil, err
	}
	rsaPub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return "", nil, fmt.Errorf("certificate key is not RSA")
	}
	return strings.ToUpper(cert.SerialNumber.Text(16)), rsaPub, nil
}
