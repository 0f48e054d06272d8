package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xraph/escrow"
	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/types"
)

// Config is the daemon configuration. It is read from a YAML file, then
// overridden by ESCROW_* environment variables.
type Config struct {
	Listen        string `yaml:"listen"`
	MetricsListen string `yaml:"metrics_listen"`
	LogLevel      string `yaml:"log_level"`

	Owner         string        `yaml:"owner"`
	Relayer       string        `yaml:"relayer"`
	FeeBps        int           `yaml:"fee_bps"`
	SettlementFee int64         `yaml:"settlement_fee"`
	ClaimPolicy   string        `yaml:"claim_policy"`
	VerifyEvery   time.Duration `yaml:"verify_interval"`

	BasePath  string  `yaml:"base_path"`
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`

	Auth      AuthConfig      `yaml:"auth"`
	Linkstore LinkstoreConfig `yaml:"linkstore"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AuthConfig selects how API callers are identified.
type AuthConfig struct {
	// Mode is "header" (default) or "jwt".
	Mode      string `yaml:"mode"`
	Header    string `yaml:"header"`
	JWTSecret string `yaml:"jwt_secret"`
}

// LinkstoreConfig controls the off-chain voucher index.
type LinkstoreConfig struct {
	// URL of a remote /data service. When empty and Serve is set, an
	// in-process index is served under /data instead.
	URL             string `yaml:"url"`
	Serve           bool   `yaml:"serve"`
	ContractAddress string `yaml:"contract_address"`
	QueueSize       int    `yaml:"queue_size"`
}

// Enabled reports whether voucher events are indexed at all.
func (c LinkstoreConfig) Enabled() bool { return c.URL != "" || c.Serve }

func DefaultConfig() Config {
	return Config{
		Listen:          ":8080",
		MetricsListen:   ":9090",
		LogLevel:        "info",
		SettlementFee:   int64(escrow.DefaultSettlementFee),
		ClaimPolicy:     string(access.DefaultPolicy),
		BasePath:        "/escrow",
		RateBurst:       50,
		Auth:            AuthConfig{Mode: "header"},
		ShutdownTimeout: 15 * time.Second,
	}
}

// LoadConfig reads path when non-empty and applies environment overrides.
func LoadConfig(path string, getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv("ESCROW_" + key); v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, parse func(string) error) {
		if v := getenv("ESCROW_" + key); v != "" {
			if err := parse(v); err != nil {
				errs = append(errs, fmt.Errorf("ESCROW_%s: %w", key, err))
			}
		}
	}

	str("LISTEN", &c.Listen)
	str("METRICS_LISTEN", &c.MetricsListen)
	str("LOG_LEVEL", &c.LogLevel)
	str("OWNER", &c.Owner)
	str("RELAYER", &c.Relayer)
	str("CLAIM_POLICY", &c.ClaimPolicy)
	str("BASE_PATH", &c.BasePath)
	str("AUTH_MODE", &c.Auth.Mode)
	str("AUTH_HEADER", &c.Auth.Header)
	str("JWT_SECRET", &c.Auth.JWTSecret)
	str("LINKSTORE_URL", &c.Linkstore.URL)
	str("CONTRACT_ADDRESS", &c.Linkstore.ContractAddress)

	num("FEE_BPS", func(v string) (err error) { c.FeeBps, err = strconv.Atoi(v); return })
	num("SETTLEMENT_FEE", func(v string) error {
		a, err := types.ParseAmount(v)
		c.SettlementFee = int64(a)
		return err
	})
	num("RATE_LIMIT", func(v string) (err error) { c.RateLimit, err = strconv.ParseFloat(v, 64); return })
	num("RATE_BURST", func(v string) (err error) { c.RateBurst, err = strconv.Atoi(v); return })
	num("VERIFY_INTERVAL", func(v string) (err error) { c.VerifyEvery, err = time.ParseDuration(v); return })
	num("SERVE_LINKSTORE", func(v string) (err error) { c.Linkstore.Serve, err = strconv.ParseBool(v); return })

	return errors.Join(errs...)
}

// Validate checks the settings the engine does not check itself.
func (c Config) Validate() error {
	if c.Listen == "" {
		return errors.New("listen address is required")
	}
	if _, err := access.ParsePolicy(c.ClaimPolicy); err != nil {
		return err
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.Auth.Mode {
	case "", "header":
	case "jwt":
		if c.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret is required in jwt mode")
		}
	default:
		return fmt.Errorf("unknown auth mode %q", c.Auth.Mode)
	}
	if c.RateLimit < 0 {
		return errors.New("rate_limit must not be negative")
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return l, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}
