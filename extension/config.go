package extension

import (
	"fmt"

	"github.com/xraph/escrow"
	"github.com/xraph/escrow/access"
)

// Store drivers selectable with Config.StoreDriver.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// Config holds the Escrow extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.escrow" or "escrow" keys).
//
// Owner, Relayer, FeeBps, SettlementFee and ClaimPolicy only take effect when
// the journal is empty; afterwards the journal is authoritative.
type Config struct {
	Owner         string `json:"owner" mapstructure:"owner" yaml:"owner"`
	Relayer       string `json:"relayer" mapstructure:"relayer" yaml:"relayer"`
	FeeBps        int    `json:"fee_bps" mapstructure:"fee_bps" yaml:"fee_bps"`

	// SettlementFee is the per-voucher relayer reimbursement. Zero falls back
	// to escrow.DefaultSettlementFee; use WithEscrowOption to settle for free.
	SettlementFee int64 `json:"settlement_fee" mapstructure:"settlement_fee" yaml:"settlement_fee"`

	// ClaimPolicy is "relayer_batched" (default) or "self_claim".
	ClaimPolicy string `json:"claim_policy" mapstructure:"claim_policy" yaml:"claim_policy"`

	// StoreDriver selects the journal backend: memory (default), postgres,
	// sqlite or mongo. The grove backends need a database passed with WithGroveDB.
	StoreDriver string `json:"store_driver" mapstructure:"store_driver" yaml:"store_driver"`

	// DisableRoutes skips building the HTTP handler.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate skips store migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for escrow routes (default: "/escrow").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// RateLimit is the sustained requests per second admitted by the HTTP
	// handler. Zero disables limiting.
	RateLimit float64 `json:"rate_limit" mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `json:"rate_burst" mapstructure:"rate_burst" yaml:"rate_burst"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SettlementFee: int64(escrow.DefaultSettlementFee),
		ClaimPolicy:   string(access.DefaultPolicy),
		StoreDriver:   DriverMemory,
		BasePath:      "/escrow",
		RateBurst:     50,
	}
}

// Validate checks values that cannot be repaired by defaults.
func (c Config) Validate() error {
	if _, err := access.ParsePolicy(c.ClaimPolicy); err != nil {
		return fmt.Errorf("escrow: %w", err)
	}
	switch c.StoreDriver {
	case DriverMemory, DriverPostgres, DriverSQLite, DriverMongo:
	default:
		return fmt.Errorf("escrow: unknown store driver %q", c.StoreDriver)
	}
	if c.SettlementFee < 0 {
		return fmt.Errorf("escrow: negative settlement fee")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("escrow: negative rate limit")
	}
	return nil
}
