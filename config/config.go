// ABOUTME: Layered configuration: defaults, TOML file, .env file, environment
// ABOUTME: The config file lives under the XDG config home by default
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/harperreed/taxdesk/models"
	"github.com/joho/godotenv"
)

// DefaultBasePath is the route prefix the web client already calls.
const DefaultBasePath = "/make-server-c2a25be0"

type Config struct {
	Server  ServerConfig  `toml:"server"`
	Store   StoreConfig   `toml:"store"`
	Auth    AuthConfig    `toml:"auth"`
	Stripe  StripeConfig  `toml:"stripe"`
	Billing BillingConfig `toml:"billing"`
	Log     LogConfig     `toml:"log"`
}

type ServerConfig struct {
	Addr            string        `toml:"addr"`
	BasePath        string        `toml:"base_path"`
	RequestTimeout  time.Duration `toml:"request_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
	AllowedOrigins  []string      `toml:"allowed_origins"`
}

type StoreConfig struct {
	Backend   string `toml:"backend"`
	Path      string `toml:"path"`
	CharmHost string `toml:"charm_host"`
	AutoSync  bool   `toml:"auto_sync"`
}

type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
	// BootstrapAdmins are emails treated as admins without a permission record.
	BootstrapAdmins []string `toml:"bootstrap_admins"`
}

type StripeConfig struct {
	SecretKey     string `toml:"secret_key"`
	WebhookSecret string `toml:"webhook_secret"`
	SuccessURL    string `toml:"success_url"`
	CancelURL     string `toml:"cancel_url"`
	// UseFake swaps Stripe for the in-process provider. For local development only.
	UseFake bool `toml:"use_fake"`
}

type BillingConfig struct {
	Fee           int64  `toml:"fee"` // in cents
	Currency      string `toml:"currency"`
	IssuerName    string `toml:"issuer_name"`
	IssuerEmail   string `toml:"issuer_email"`
	IssuerAddress string `toml:"issuer_address"`
}

type LogConfig struct {
	Level string `toml:"level"`
	// Format is "json", "console", or "auto" (console on a terminal).
	Format string `toml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			BasePath:        DefaultBasePath,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Store: StoreConfig{Backend: "badger"},
		Stripe: StripeConfig{
			SuccessURL: "http://localhost:5173/payment/success?session_id={CHECKOUT_SESSION_ID}",
			CancelURL:  "http://localhost:5173/payment/cancelled",
		},
		Billing: BillingConfig{
			Fee:        models.InitialFee,
			Currency:   models.DefaultCurrency,
			IssuerName: "Taxdesk",
		},
		Log: LogConfig{Level: "info", Format: "auto"},
	}
}

// DefaultPath returns the XDG config file location.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "taxdesk", "config.toml")
}

// Load builds the configuration. An empty path reads DefaultPath if it
// exists; an explicit path must exist. A .env file in the working directory
// is loaded into the environment first without overriding existing values.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) || explicit {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	cfg.normalize()
	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Server.Addr, "TAXDESK_ADDR")
	setString(&cfg.Server.BasePath, "TAXDESK_BASE_PATH")
	setDuration(&cfg.Server.RequestTimeout, "TAXDESK_REQUEST_TIMEOUT")
	if origins := os.Getenv("TAXDESK_ALLOWED_ORIGINS"); origins != "" {
		cfg.Server.AllowedOrigins = splitList(origins)
	}

	setString(&cfg.Store.Backend, "TAXDESK_STORE_BACKEND")
	setString(&cfg.Store.Path, "TAXDESK_STORE_PATH")
	setString(&cfg.Store.CharmHost, "TAXDESK_CHARM_HOST")
	setBool(&cfg.Store.AutoSync, "TAXDESK_AUTO_SYNC")

	setString(&cfg.Auth.JWTSecret, "SUPABASE_JWT_SECRET")
	if admins := os.Getenv("TAXDESK_ADMIN_EMAILS"); admins != "" {
		cfg.Auth.BootstrapAdmins = splitList(admins)
	}

	setString(&cfg.Stripe.SecretKey, "STRIPE_SECRET_KEY")
	setString(&cfg.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET")
	setString(&cfg.Stripe.SuccessURL, "STRIPE_SUCCESS_URL")
	setString(&cfg.Stripe.CancelURL, "STRIPE_CANCEL_URL")
	setBool(&cfg.Stripe.UseFake, "TAXDESK_FAKE_PAYMENTS")

	setString(&cfg.Log.Level, "TAXDESK_LOG_LEVEL")
	setString(&cfg.Log.Format, "TAXDESK_LOG_FORMAT")
}

func (c *Config) normalize() {
	c.Server.BasePath = "/" + strings.Trim(c.Server.BasePath, "/")
	if c.Server.BasePath == "/" {
		c.Server.BasePath = ""
	}
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	admins := c.Auth.BootstrapAdmins[:0]
	for _, a := range c.Auth.BootstrapAdmins {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			admins = append(admins, a)
		}
	}
	c.Auth.BootstrapAdmins = admins
}

// Validate checks what the HTTP server needs to start.
func (c *Config) Validate() error {
	var problems []string
	if c.Auth.JWTSecret == "" {
		problems = append(problems, "auth.jwt_secret (SUPABASE_JWT_SECRET) is required")
	}
	if c.Stripe.WebhookSecret == "" {
		problems = append(problems, "stripe.webhook_secret (STRIPE_WEBHOOK_SECRET) is required")
	}
	if c.Stripe.SecretKey == "" && !c.Stripe.UseFake {
		problems = append(problems, "stripe.secret_key (STRIPE_SECRET_KEY) is required unless stripe.use_fake is set")
	}
	if c.Billing.Fee <= 0 {
		problems = append(problems, "billing.fee must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true" || v == "1"
	}
}

func setDuration(dst *time.Duration, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
	} else if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
