package app

import (
	"flag"
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (INVOICER_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (INVOICER_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKey      string `usage:"Require this key in the api_key header of /api requests" flag:"api-key" env:"API_KEY"`
	Razorpay    RazorpayConfig
	Rules       RulesConfig
	Seller      SellerConfig
	RateLimit   RateLimitConfig
	Graceful    GracefulConfig
}

// RazorpayConfig holds payment gateway credentials.
type RazorpayConfig struct {
	BaseURL   string        `default:"https://api.razorpay.com/v1" usage:"Razorpay API root" flag:"razorpay-base-url"`
	KeyID     string        `usage:"Razorpay key id (or RAZORPAY_KEY_ID)" flag:"razorpay-key-id"`
	KeySecret string        `usage:"Razorpay key secret (or RAZORPAY_KEY_SECRET)" flag:"razorpay-key-secret"`
	Timeout   time.Duration `default:"10s" usage:"Per-request timeout for payment lookups" flag:"razorpay-timeout"`
}

// RulesConfig tunes order validation.
type RulesConfig struct {
	CountryCode string `default:"+91" usage:"Country code stripped from phone numbers" flag:"country-code"`
	MaxQuantity int    `default:"5" usage:"Largest per-line quantity that is not suspicious" flag:"max-quantity"`
}

// SellerConfig is printed in every invoice header.
type SellerConfig struct {
	Name    string `default:"Indalnova" usage:"Seller name" flag:"seller-name"`
	Address string `default:"123H PATEL NAGAR RAMADEVI KANPUR UTTARPRADESH, Pin-208007" usage:"Seller address line" flag:"seller-address"`
	Contact string `default:"Email: teamindalnova@gmail.com | Phone: +91-8840393051" usage:"Seller contact line" flag:"seller-contact"`
}

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	Max    int           `default:"60" usage:"Max requests per window"`
	Window time.Duration `default:"1m" usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, flags and YAML
// config files, then applies platform-specific defaults. register, when
// non-nil, adds command-specific flags to the same flag set before parsing.
func LoadConfig(register func(*flag.FlagSet)) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "INVOICER",
		Files:     []string{"config.yaml", "/etc/invoicer/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if register != nil {
		register(loader.Flags())
	}
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports missing required settings.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set INVOICER_DATABASE_URL or DATABASE_URL")
	}
	if c.Razorpay.KeyID == "" || c.Razorpay.KeySecret == "" {
		return errors.New("razorpay credentials are required: set RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET")
	}
	if c.Rules.MaxQuantity < 1 {
		return errors.Errorf("max quantity must be positive, got %d", c.Rules.MaxQuantity)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like DATABASE_URL and PORT to the INVOICER_-prefixed
// configuration.
func (c *Config) applyPlatformDefaults() {
	fallback := func(dst *string, env string) {
		if *dst != "" {
			return
		}
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	fallback(&c.DatabaseURL, "DATABASE_URL")
	fallback(&c.Razorpay.KeyID, "RAZORPAY_KEY_ID")
	fallback(&c.Razorpay.KeySecret, "RAZORPAY_KEY_SECRET")

	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
