// Package extension provides the Forge extension adapter for Escrow.
//
// It implements the forge.Extension interface to integrate the escrow engine
// into a Forge application with DI registration and lifecycle management.
// The engine and, unless disabled, its *api.Handler are provided to the
// container so the application can mount the routes.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.escrow" or "escrow" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"
	"golang.org/x/time/rate"

	"github.com/xraph/escrow"
	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/api"
	"github.com/xraph/escrow/store"
	"github.com/xraph/escrow/store/memory"
	"github.com/xraph/escrow/store/mongo"
	"github.com/xraph/escrow/store/postgres"
	"github.com/xraph/escrow/store/sqlite"
	"github.com/xraph/escrow/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "escrow"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Custodial voucher escrow with relayer settlement"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Escrow as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *escrow.Escrow
	handler    *api.Handler
	store      store.Store
	groveDB    *grove.DB
	escrowOpts []escrow.Option
	apiOpts    []api.Option
}

// New creates a new Escrow Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Escrow instance.
// This is nil until Register is called.
func (e *Extension) Engine() *escrow.Escrow { return e.engine }

// Handler returns the HTTP handler, or nil when routes are disabled.
func (e *Extension) Handler() *api.Handler { return e.handler }

// Register implements [forge.Extension]. It loads configuration,
// initializes the escrow engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}
	if err := e.build(); err != nil {
		return err
	}

	if err := vessel.Provide(fapp.Container(), func() (*escrow.Escrow, error) {
		return e.engine, nil
	}); err != nil {
		return err
	}
	if e.handler == nil {
		return nil
	}
	return vessel.Provide(fapp.Container(), func() (*api.Handler, error) {
		return e.handler, nil
	})
}

// build resolves the store and constructs the engine and handler from the
// resolved config.
func (e *Extension) build() error {
	if err := e.config.Validate(); err != nil {
		return err
	}

	s, err := e.resolveStore()
	if err != nil {
		return err
	}
	e.store = s

	opts, err := e.buildEscrowOpts()
	if err != nil {
		return err
	}
	e.engine = escrow.New(e.store, opts...)

	if !e.config.DisableRoutes {
		e.handler = api.New(e.engine, e.buildAPIOpts()...)
	}
	return nil
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("escrow: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("escrow: store not initialized")
	}
	return e.store.Ping(ctx)
}

// resolveStore picks the programmatic store, or builds one for StoreDriver.
func (e *Extension) resolveStore() (store.Store, error) {
	if e.store != nil {
		return e.store, nil
	}

	switch e.config.StoreDriver {
	case "", DriverMemory:
		return memory.New(), nil
	case DriverPostgres, DriverSQLite, DriverMongo:
		if e.groveDB == nil {
			return nil, fmt.Errorf("escrow: store driver %q requires a grove database (WithGroveDB)", e.config.StoreDriver)
		}
	default:
		return nil, fmt.Errorf("escrow: unknown store driver %q", e.config.StoreDriver)
	}

	switch e.config.StoreDriver {
	case DriverPostgres:
		return postgres.New(e.groveDB), nil
	case DriverSQLite:
		return sqlite.New(e.groveDB), nil
	default:
		return mongo.New(e.groveDB), nil
	}
}

// buildEscrowOpts constructs escrow.Option values from the resolved config.
func (e *Extension) buildEscrowOpts() ([]escrow.Option, error) {
	policy, err := access.ParsePolicy(e.config.ClaimPolicy)
	if err != nil {
		return nil, fmt.Errorf("escrow: %w", err)
	}

	opts := make([]escrow.Option, 0, len(e.escrowOpts)+6)
	opts = append(opts,
		escrow.WithOwner(access.Address(e.config.Owner)),
		escrow.WithRelayer(access.Address(e.config.Relayer)),
		escrow.WithFeeBps(e.config.FeeBps),
		escrow.WithSettlementFee(types.Amount(e.config.SettlementFee)),
		escrow.WithClaimPolicy(policy),
	)
	if e.config.DisableMigrate {
		opts = append(opts, escrow.WithoutMigrate())
	}

	// Append any pass-through escrow options.
	opts = append(opts, e.escrowOpts...)

	return opts, nil
}

func (e *Extension) buildAPIOpts() []api.Option {
	opts := []api.Option{api.WithBasePath(e.config.BasePath)}
	if e.config.RateLimit > 0 {
		opts = append(opts, api.WithRateLimit(rate.Limit(e.config.RateLimit), e.config.RateBurst))
	}
	return append(opts, e.apiOpts...)
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("escrow: configuration is required but not found in config files; " +
				"ensure 'extensions.escrow' or 'escrow' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("escrow: configuration loaded",
		forge.F("owner", e.config.Owner),
		forge.F("relayer", e.config.Relayer),
		forge.F("fee_bps", e.config.FeeBps),
		forge.F("claim_policy", e.config.ClaimPolicy),
		forge.F("store_driver", e.config.StoreDriver),
		forge.F("base_path", e.config.BasePath),
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.escrow", "escrow"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("escrow: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("escrow: loaded config from file", forge.F("key", key))
		return cfg, true
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.ClaimPolicy == "" {
		cfg.ClaimPolicy = defaults.ClaimPolicy
	}
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = defaults.StoreDriver
	}
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.SettlementFee == 0 {
		cfg.SettlementFee = defaults.SettlementFee
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaults.RateBurst
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&yamlConfig.Owner, programmaticConfig.Owner)
	fill(&yamlConfig.Relayer, programmaticConfig.Relayer)
	fill(&yamlConfig.ClaimPolicy, programmaticConfig.ClaimPolicy)
	fill(&yamlConfig.StoreDriver, programmaticConfig.StoreDriver)
	fill(&yamlConfig.BasePath, programmaticConfig.BasePath)

	if yamlConfig.FeeBps == 0 {
		yamlConfig.FeeBps = programmaticConfig.FeeBps
	}
	if yamlConfig.SettlementFee == 0 {
		yamlConfig.SettlementFee = programmaticConfig.SettlementFee
	}
	if yamlConfig.RateLimit == 0 {
		yamlConfig.RateLimit = programmaticConfig.RateLimit
	}
	if yamlConfig.RateBurst == 0 {
		yamlConfig.RateBurst = programmaticConfig.RateBurst
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}
