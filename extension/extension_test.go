package extension

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/escrow"
	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/store/memory"
)

func TestMergeConfigurations(t *testing.T) {
	yaml := Config{Owner: "file-owner", FeeBps: 250}
	prog := Config{Owner: "code-owner", Relayer: "code-relayer", DisableRoutes: true, SettlementFee: 5}

	got := mergeConfigurations(yaml, prog)

	assert.Equal(t, "file-owner", got.Owner)
	assert.Equal(t, "code-relayer", got.Relayer)
	assert.Equal(t, 250, got.FeeBps)
	assert.Equal(t, int64(5), got.SettlementFee)
	assert.True(t, got.DisableRoutes)
	assert.Equal(t, string(access.PolicyRelayerBatched), got.ClaimPolicy)
	assert.Equal(t, DriverMemory, got.StoreDriver)
	assert.Equal(t, "/escrow", got.BasePath)
}

func TestConfigValidate(t *testing.T) {
	cfg := mergeWithDefaults(Config{})
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(escrow.DefaultSettlementFee), cfg.SettlementFee)

	bad := cfg
	bad.SettlementFee = -1
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.ClaimPolicy = "anyone"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.StoreDriver = "redis"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.RateLimit = -1
	assert.Error(t, bad.Validate())
}

func TestResolveStore(t *testing.T) {
	e := New()
	e.config = mergeWithDefaults(Config{})
	s, err := e.resolveStore()
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, s)

	provided := memory.New()
	e = New(WithStore(provided), WithGroveDB(nil, DriverPostgres))
	s, err = e.resolveStore()
	require.NoError(t, err)
	assert.Same(t, provided, s)

	for _, driver := range []string{DriverPostgres, DriverSQLite, DriverMongo} {
		e = New(WithGroveDB(nil, driver))
		_, err = e.resolveStore()
		assert.Error(t, err, driver)
	}
}

func TestBuildWiresEngineAndHandler(t *testing.T) {
	e := New(
		WithOwner("owner"),
		WithRelayer("relayer"),
		WithFeeBps(100),
		WithClaimPolicy("self_claim"),
		WithBasePath("/custody"),
	)
	e.config = mergeWithDefaults(e.config)
	require.NoError(t, e.build())
	require.NotNil(t, e.Handler())
	assert.Equal(t, "/custody", e.Handler().BasePath())

	ctx := context.Background()
	require.NoError(t, e.Engine().Start(ctx))
	t.Cleanup(func() { _ = e.Engine().Stop() })

	policy, err := e.Engine().Policy()
	require.NoError(t, err)
	assert.Equal(t, access.PolicySelfClaim, policy)
	bps, err := e.Engine().FeeBps()
	require.NoError(t, err)
	assert.Equal(t, 100, bps)
}

func TestBuildWithoutRoutes(t *testing.T) {
	e := New(WithOwner("owner"), WithDisableRoutes())
	e.config = mergeWithDefaults(e.config)
	require.NoError(t, e.build())
	assert.NotNil(t, e.Engine())
	assert.Nil(t, e.Handler())
}
