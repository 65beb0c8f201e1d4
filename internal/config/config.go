// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL       string        `yaml:"url"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	ReplayTTL time.Duration `yaml:"replay_ttl"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type WechatPayConfig struct {
	MchID            string `yaml:"mch_id"`
	AppID            string `yaml:"app_id"`
	SerialNo         string `yaml:"serial_no"`
	APIv3Key         string `yaml:"apiv3_key"`
	PrivateKeyPath   string `yaml:"private_key_path"`
	PlatformCertPath string `yaml:"platform_cert_path"`
	NotifyURL        string `yaml:"notify_url"`
	BaseURL          string `yaml:"base_url"`
}

func (c WechatPayConfig) Enabled() bool { return c.MchID != "" }

type AlipayConfig struct {
	AppID          string `yaml:"app_id"`
	PrivateKeyPath string `yaml:"private_key_path"`
	PublicKeyPath  string `yaml:"alipay_public_key_path"`
	GatewayURL     string `yaml:"gateway_url"`
	NotifyURL      string `yaml:"notify_url"`
	ReturnURL      string `yaml:"return_url"`
}

func (c AlipayConfig) Enabled() bool { return c.AppID != "" }

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	SuccessURL    string `yaml:"success_url"`
	CancelURL     string `yaml:"cancel_url"`
	BaseURL       string `yaml:"base_url"`
}

func (c StripeConfig) Enabled() bool { return c.SecretKey != "" }

type PayPalConfig struct {
	ClientID  string `yaml:"client_id"`
	Secret    string `yaml:"secret"`
	BaseURL   string `yaml:"base_url"`
	WebhookID string `yaml:"webhook_id"`
	ReturnURL string `yaml:"return_url"`
	CancelURL string `yaml:"cancel_url"`
}

func (c PayPalConfig) Enabled() bool { return c.ClientID != "" }

type ProvidersConfig struct {
	WechatPay WechatPayConfig `yaml:"wechatpay"`
	Alipay    AlipayConfig    `yaml:"alipay"`
	Stripe    StripeConfig    `yaml:"stripe"`
	PayPal    PayPalConfig    `yaml:"paypal"`
}

type PlanConfig struct {
	Name     string `yaml:"name"`
	Cycle    string `yaml:"cycle"`
	Days     int    `yaml:"days"`
	PriceCNY string `yaml:"price_cny"`
	PriceUSD string `yaml:"price_usd"`
}

type AlertsConfig struct {
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
}

type ReconcilerConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Plans      []PlanConfig     `yaml:"plans"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads and validates the YAML config. Missing provider
// credentials are a startup failure, never a silent skip of the provider's
// routes: a provider is either fully configured or absent.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Providers.WechatPay.BaseURL == "" {
		cfg.Providers.WechatPay.BaseURL = "https://api.mch.weixin.qq.com"
	}
	if cfg.Providers.Alipay.GatewayURL == "" {
		cfg.Providers.Alipay.GatewayURL = "https://openapi.alipay.com/gateway.do"
	}
	if cfg.Providers.Stripe.BaseURL == "" {
		cfg.Providers.Stripe.BaseURL = "https://api.stripe.com"
	}
	if cfg.Providers.PayPal.BaseURL == "" {
		if dev {
			cfg.Providers.PayPal.BaseURL = "https://api-m.sandbox.paypal.com"
		} else {
			cfg.Providers.PayPal.BaseURL = "https://api-m.paypal.com"
		}
	}
	if cfg.Reconciler.Interval <= 0 {
		cfg.Reconciler.Interval = time.Minute
	}
	if cfg.Reconciler.StaleAfter <= 0 {
		cfg.Reconciler.StaleAfter = 10 * time.Minute
	}

	// minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	if len(cfg.Plans) == 0 {
		return nil, errors.New("at least one plan is required")
	}
	if err := validateProviders(&cfg.Providers); err != nil {
		return nil, err
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func validateProviders(p *ProvidersConfig) error {
	enabled := 0
	if p.WechatPay.Enabled() {
		enabled++
		if p.WechatPay.AppID == "" || p.WechatPay.SerialNo == "" || p.WechatPay.APIv3Key == "" ||
			p.WechatPay.PrivateKeyPath == "" || p.WechatPay.PlatformCertPath == "" || p.WechatPay.NotifyURL == "" {
			return errors.New("providers.wechatpay is partially configured")
		}
	}
	if p.Alipay.Enabled() {
		enabled++
		if p.Alipay.PrivateKeyPath == "" || p.Alipay.PublicKeyPath == "" || p.Alipay.NotifyURL == "" {
			return errors.New("providers.alipay is partially configured")
		}
	}
	if p.Stripe.Enabled() {
		enabled++
		if p.Stripe.WebhookSecret == "" || p.Stripe.SuccessURL == "" || p.Stripe.CancelURL == "" {
			return errors.New("providers.stripe is partially configured")
		}
	}
	if p.PayPal.Enabled() {
		enabled++
		if p.PayPal.Secret == "" || p.PayPal.WebhookID == "" || p.PayPal.ReturnURL == "" {
			return errors.New("providers.paypal is partially configured")
		}
	}
	if enabled == 0 {
		return errors.New("no payment provider configured")
	}
	return nil
}
