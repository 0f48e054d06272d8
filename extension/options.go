package extension

import (
	"github.com/xraph/grove"

	"github.com/xraph/escrow"
	"github.com/xraph/escrow/api"
	"github.com/xraph/escrow/plugin"
	"github.com/xraph/escrow/store"
)

// Option configures the Escrow Forge extension.
type Option func(*Extension)

// WithStore sets the store for the escrow engine. It takes precedence over
// StoreDriver.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGroveDB supplies the database used by the postgres, sqlite and mongo
// drivers and selects driver.
func WithGroveDB(db *grove.DB, driver string) Option {
	return func(e *Extension) {
		e.groveDB = db
		e.config.StoreDriver = driver
	}
}

// WithEscrowOption passes an escrow.Option through to the underlying engine.
func WithEscrowOption(opt escrow.Option) Option {
	return func(e *Extension) {
		e.escrowOpts = append(e.escrowOpts, opt)
	}
}

// WithPlugin registers an escrow plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.escrowOpts = append(e.escrowOpts, escrow.WithPlugin(p))
	}
}

// WithAuthenticator sets how the HTTP handler identifies callers.
func WithAuthenticator(a api.Authenticator) Option {
	return func(e *Extension) {
		e.apiOpts = append(e.apiOpts, api.WithAuthenticator(a))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithOwner sets the owner recorded at genesis.
func WithOwner(addr string) Option {
	return func(e *Extension) { e.config.Owner = addr }
}

// WithRelayer sets the relayer recorded at genesis.
func WithRelayer(addr string) Option {
	return func(e *Extension) { e.config.Relayer = addr }
}

// WithFeeBps sets the deposit fee recorded at genesis.
func WithFeeBps(bps int) Option {
	return func(e *Extension) { e.config.FeeBps = bps }
}

// WithSettlementFee sets the per-voucher relayer reimbursement recorded at genesis.
func WithSettlementFee(fee int64) Option {
	return func(e *Extension) { e.config.SettlementFee = fee }
}

// WithClaimPolicy sets the claim policy recorded at genesis.
func WithClaimPolicy(policy string) Option {
	return func(e *Extension) { e.config.ClaimPolicy = policy }
}

// WithDisableRoutes prevents building the HTTP handler.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBasePath sets the URL prefix for escrow routes.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
