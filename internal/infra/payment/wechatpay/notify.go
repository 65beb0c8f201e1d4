package wechatpay

import (
	"context"
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"membership-billing/internal/domain"
	"membership-billing/internal/domain/ports/adapter"
)

// Notifications older or newer than this are rejected outright.
const timestampSkew = 5 * time.Minute

type notifyEnvelope struct {
	ID       string `json:"id"`
	Type     string `json:"event_type"`
	Resource struct {
		Ciphertext     string `json:"ciphertext"`
		AssociatedData string `json:"associated_data"`
		Nonce          string `json:"nonce"`
	} `json:"resource"`
}

type transactionResource struct {
	OutTradeNo    string `json:"out_trade_no"`
	TransactionID string `json:"transaction_id"`
	TradeState    string `json:"trade_state"`
	Amount        struct {
		Total    int64  `json:"total"`
		Currency string `json:"currency"`
	} `json:"amount"`
}

// VerifyCallback authenticates a payment notification end to end: the outer
// HTTP signature against the platform certificate with a freshness window,
// then the AES-256-GCM resource decryption with the APIv3 key. Only a
// decrypted trade_state of SUCCESS yields a settled event.
func (c *Client) VerifyCallback(_ context.Context, cb *adapter.CallbackRequest) (*adapter.VerifiedEvent, error) {
	ts := cb.Header.Get("Wechatpay-Timestamp")
	nonce := cb.Header.Get("Wechatpay-Nonce")
	sig := cb.Header.Get("Wechatpay-Signature")
	serial := cb.Header.Get("Wechatpay-Serial")
	if ts == "" || nonce == "" || sig == "" || serial == "" {
		return nil, fmt.Errorf("%w: missing wechatpay signature headers", domain.ErrSignatureInvalid)
	}

	tsUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad timestamp %q", domain.ErrSignatureInvalid, ts)
	}
	if d := c.now().Sub(time.Unix(tsUnix, 0)); d > timestampSkew || d < -timestampSkew {
		return nil, fmt.Errorf("%w: notification timestamp outside freshness window", domain.ErrSignatureInvalid)
	}

	if serial != c.opts.PlatformSerialNo {
		return nil, fmt.Errorf("%w: unknown platform certificate serial %s", domain.ErrSignatureInvalid, serial)
	}

	msg := ts + "\n" + nonce + "\n" + string(cb.Body) + "\n"
	digest := sha256.Sum256([]byte(msg))
	rawSig, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return nil, fmt.Errorf("%w: signature is not base64", domain.ErrSignatureInvalid)
	}
	if err := rsa.VerifyPKCS1v15(c.opts.PlatformPublicKey, crypto.SHA256, digest[:], rawSig); err != nil {
		return nil, fmt.Errorf("%w: platform signature check failed", domain.ErrSignatureInvalid)
	}

	var env notifyEnvelope
	if err := json.Unmarshal(cb.Body, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed notification body", domain.ErrSignatureInvalid)
	}

	plaintext, err := c.decryptResource(env.Resource.Ciphertext, env.Resource.Nonce, env.Resource.AssociatedData)
	if err != nil {
		return nil, fmt.Errorf("%w: resource decryption failed", domain.ErrSignatureInvalid)
	}

	var txn transactionResource
	if err := json.Unmarshal(plaintext, &txn); err != nil {
		return nil, fmt.Errorf("%w: malformed transaction resource", domain.ErrSignatureInvalid)
	}

	return &adapter.VerifiedEvent{
		OrderID:       txn.OutTradeNo,
		ProviderTxnID: txn.TransactionID,
		PaidAmount:    decimal.NewFromInt(txn.Amount.Total),
		PaidCurrency:  txn.Amount.Currency,
		EventID:       env.ID,
		Settled:       txn.TradeState == "SUCCESS",
	}, nil
}

// decryptResource opens the AEAD box around the notification resource. The
// provider appends the 16-byte GCM tag to the ciphertext, which is exactly
// the layout cipher.Open expects.
func (c *Client) decryptResource(ciphertextB64, nonce, associatedData string) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(c.opts.APIv3Key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.Overhead() {
		return nil, fmt.Errorf("ciphertext shorter than GCM tag")
	}
	return gcm.Open(nil, []byte(nonce), ciphertext, []byte(associatedData))
}
