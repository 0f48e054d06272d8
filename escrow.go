package escrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/journal"
	"github.com/xraph/escrow/plugin"
	"github.com/xraph/escrow/state"
	"github.com/xraph/escrow/store"
	"github.com/xraph/escrow/types"
	"github.com/xraph/escrow/voucher"
)

// Escrow is the voucher escrow engine.
type Escrow struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	clock   func() time.Time
	codes   voucher.CodeGenerator

	// Genesis configuration. Ignored once the journal holds a genesis entry.
	owner         access.Address
	relayer       access.Address
	feeBps        int
	settlementFee types.Amount
	policy        access.ClaimPolicy

	maxCodeAttempts int
	migrate         bool
	verifyInterval  time.Duration

	mu      sync.RWMutex
	st      *state.State
	started bool

	// Background workers
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates an engine over s. Call Start before use.
func New(s store.Store, opts ...Option) *Escrow {
	e := &Escrow{
		store:           s,
		plugins:         plugin.NewRegistry(),
		logger:          slog.Default(),
		clock:           time.Now,
		codes:           voucher.NewRandomGenerator(),
		settlementFee:   DefaultSettlementFee,
		policy:          access.DefaultPolicy,
		maxCodeAttempts: DefaultMaxCodeAttempts,
		migrate:         true,
		stopChan:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Escrow instance.
type Option func(*Escrow)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Escrow) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Escrow) {
		if err := e.plugins.Register(p); err != nil {
			e.logger.Warn("escrow: plugin not registered", "plugin", p.Name(), "error", err)
		}
	}
}

// WithPluginTimeout bounds each hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(e *Escrow) { e.plugins.WithTimeout(d) }
}

// WithOwner sets the Owner recorded at genesis.
func WithOwner(addr access.Address) Option {
	return func(e *Escrow) { e.owner = addr }
}

// WithRelayer sets the Relayer recorded at genesis.
func WithRelayer(addr access.Address) Option {
	return func(e *Escrow) { e.relayer = addr }
}

// WithFeeBps sets the deposit fee recorded at genesis.
func WithFeeBps(bps int) Option {
	return func(e *Escrow) { e.feeBps = bps }
}

// WithSettlementFee sets the per-voucher relayer reimbursement recorded at genesis.
func WithSettlementFee(fee types.Amount) Option {
	return func(e *Escrow) { e.settlementFee = fee }
}

// WithClaimPolicy sets the claim policy recorded at genesis.
func WithClaimPolicy(p access.ClaimPolicy) Option {
	return func(e *Escrow) { e.policy = p }
}

// WithCodeGenerator replaces the random voucher code generator.
func WithCodeGenerator(g voucher.CodeGenerator) Option {
	return func(e *Escrow) { e.codes = g }
}

// WithMaxCodeAttempts bounds regeneration after collisions within one mint.
func WithMaxCodeAttempts(n int) Option {
	return func(e *Escrow) {
		if n > 0 {
			e.maxCodeAttempts = n
		}
	}
}

// WithClock replaces time.Now for journal timestamps.
func WithClock(clock func() time.Time) Option {
	return func(e *Escrow) { e.clock = clock }
}

// WithoutMigrate skips store migration in Start.
func WithoutMigrate() Option {
	return func(e *Escrow) { e.migrate = false }
}

// WithVerifyInterval starts a background worker that re-verifies the stored
// journal against the projection every d.
func WithVerifyInterval(d time.Duration) Option {
	return func(e *Escrow) { e.verifyInterval = d }
}

// Plugins returns the plugin registry.
func (e *Escrow) Plugins() *plugin.Registry { return e.plugins }

// Start migrates the store, verifies and replays the journal, and writes the
// genesis entry when the journal is empty.
func (e *Escrow) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	if err := e.boot(ctx); err != nil {
		e.mu.Unlock()
		return err
	}
	e.started = true
	e.stopChan = make(chan struct{})
	st := e.st
	e.mu.Unlock()

	e.plugins.EmitInit(ctx, e)

	if e.verifyInterval > 0 {
		e.wg.Add(1)
		go e.verifyWorker()
	}

	e.logger.Info("escrow started",
		"seq", st.Seq(),
		"owner", st.Owner(),
		"relayer", st.Relayer(),
		"fee_bps", st.FeeBps(),
		"settlement_fee", st.SettlementFee(),
		"policy", st.Policy(),
	)
	return nil
}

func (e *Escrow) boot(ctx context.Context) error {
	if e.migrate {
		if err := e.store.Migrate(ctx); err != nil {
			return fmt.Errorf("escrow: migrate: %w", err)
		}
	}

	entries, err := e.store.ListEntries(ctx, journal.ListOpts{})
	if err != nil {
		return fmt.Errorf("escrow: load journal: %w", err)
	}
	if err := journal.Verify(entries); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptJournal, err)
	}
	st, err := state.Replay(entries)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptJournal, err)
	}
	e.st = st

	if len(entries) > 0 {
		e.warnConfigDrift()
		return nil
	}

	genesis, err := e.genesisEntry()
	if err != nil {
		return err
	}
	return e.commit(ctx, genesis)
}

func (e *Escrow) genesisEntry() (*journal.Entry, error) {
	if !e.owner.Valid() {
		return nil, fmt.Errorf("%w: owner is required to initialize an empty journal", ErrInvalidArgument)
	}
	if !types.ValidBps(e.feeBps) {
		return nil, fmt.Errorf("%w: fee %d bps out of range", ErrInvalidArgument, e.feeBps)
	}
	if e.settlementFee < 0 {
		return nil, fmt.Errorf("%w: negative settlement fee", ErrInvalidArgument)
	}
	if !e.policy.Valid() {
		return nil, fmt.Errorf("%w: unknown claim policy %q", ErrInvalidArgument, e.policy)
	}

	fee, settle := e.feeBps, e.settlementFee
	return &journal.Entry{
		Op:    journal.OpGenesis,
		Actor: e.owner,
		Config: &journal.ConfigChange{
			Owner:         e.owner,
			Relayer:       e.relayer,
			FeeBps:        &fee,
			SettlementFee: &settle,
			Policy:        e.policy,
		},
	}, nil
}

// warnConfigDrift logs options that disagree with the replayed journal. The
// journal wins.
func (e *Escrow) warnConfigDrift() {
	if e.owner != "" && e.owner != e.st.Owner() {
		e.logger.Warn("escrow: configured owner ignored, journal is authoritative",
			"configured", e.owner, "journal", e.st.Owner())
	}
	if e.policy != e.st.Policy() {
		e.logger.Warn("escrow: configured claim policy ignored, journal is authoritative",
			"configured", e.policy, "journal", e.st.Policy())
	}
}

// Stop shuts down background workers, notifies plugins and closes the store.
func (e *Escrow) Stop() error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return e.store.Close()
	}
	e.started = false
	e.mu.Unlock()

	close(e.stopChan)
	e.wg.Wait()

	e.plugins.EmitShutdown(context.Background())

	return e.store.Close()
}

func (e *Escrow) verifyWorker() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.verifyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), e.verifyInterval)
			if err := e.VerifyJournal(ctx); err != nil {
				e.logger.Error("escrow: journal verification failed", "error", err)
			}
			cancel()
		}
	}
}

// ──────────────────────────────────────────────────
// Commit protocol
// ──────────────────────────────────────────────────

// commit seals entry after the current head, persists it and applies it.
// Callers hold e.mu.
func (e *Escrow) commit(ctx context.Context, entry *journal.Entry) error {
	entry.ID = id.NewEntryID()
	entry.Timestamp = e.clock()

	var prev *journal.Entry
	if e.st.Seq() > 0 {
		prev = &journal.Entry{Seq: e.st.Seq(), Hash: e.st.Hash()}
	}
	if err := entry.Seal(prev); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}
	if err := e.st.Check(entry); err != nil {
		return translate(err)
	}

	if err := e.store.AppendEntry(ctx, entry); err != nil {
		e.logger.Error("escrow: journal append failed",
			"op", entry.Op,
			"seq", entry.Seq,
			"error", err,
		)
		return fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}

	if err := e.st.Apply(entry); err != nil {
		// Check passed, so the projection and the journal now disagree.
		e.logger.Error("escrow: projection diverged from journal", "seq", entry.Seq, "error", err)
		return fmt.Errorf("%w: %w", ErrCorruptJournal, err)
	}

	e.logger.Debug("escrow: committed",
		"op", entry.Op,
		"seq", entry.Seq,
		"actor", entry.Actor,
		"hash", entry.Hash,
	)
	return nil
}

// outcome is what a committed transaction hands back for event emission.
type outcome struct {
	entry       *journal.Entry
	vouchers    []*voucher.Voucher
	transitions []access.Transition
}

// transact runs build under the engine lock and commits the entry it returns.
// Pledger role changes are derived by comparing the holdings of every touched
// account before and after.
func (e *Escrow) transact(ctx context.Context, build func(st *state.State) (*journal.Entry, error)) (*outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return nil, ErrNotStarted
	}

	entry, err := build(e.st)
	if err != nil {
		return nil, err
	}

	touched := touchedAccounts(entry)
	before := make(map[access.Address]access.Holdings, len(touched))
	for _, a := range touched {
		before[a] = e.st.Holdings(a)
	}

	if err := e.commit(ctx, entry); err != nil {
		return nil, err
	}

	after := make(map[access.Address]access.Holdings, len(touched))
	for _, a := range touched {
		after[a] = e.st.Holdings(a)
	}

	out := &outcome{
		entry:       entry,
		transitions: access.DiffPledgers(before, after),
	}
	for _, vc := range entry.Vouchers {
		if v, ok := e.st.Voucher(vc.Code); ok {
			out.vouchers = append(out.vouchers, v)
		}
	}
	return out, nil
}

func touchedAccounts(entry *journal.Entry) []access.Address {
	seen := make(map[access.Address]struct{})
	var out []access.Address
	add := func(a access.Address) {
		if a == "" {
			return
		}
		if _, ok := seen[a]; !ok {
			seen[a] = struct{}{}
			out = append(out, a)
		}
	}
	for _, p := range entry.Postings {
		add(p.Account)
	}
	for _, vc := range entry.Vouchers {
		add(vc.Pledger)
	}
	return out
}

func commitOf(entry *journal.Entry) plugin.Commit {
	return plugin.Commit{Seq: entry.Seq, EntryID: entry.ID, Actor: entry.Actor, At: entry.Timestamp}
}

// reject logs and reports a failed operation, then returns err unchanged.
func (e *Escrow) reject(ctx context.Context, op journal.Operation, caller access.Address, err error) error {
	if IsRejection(err) {
		e.logger.Debug("escrow: rejected", "op", op, "caller", caller, "error", err)
	} else {
		e.logger.Error("escrow: operation failed", "op", op, "caller", caller, "error", err)
	}
	e.plugins.EmitOperationRejected(ctx, op, caller, err)
	return err
}

// translate maps projection errors onto the engine's rejections.
func translate(err error) error {
	switch {
	case errors.Is(err, state.ErrInsufficientFunds):
		return fmt.Errorf("%w: %w", ErrInsufficientFunds, err)
	case errors.Is(err, state.ErrUnknownVoucher):
		return fmt.Errorf("%w: %w", ErrUnknownVoucher, err)
	case errors.Is(err, state.ErrIllegalTransition):
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	case errors.Is(err, state.ErrInvalidAmount), errors.Is(err, state.ErrCodeReused):
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	default:
		return fmt.Errorf("%w: %w", ErrCorruptJournal, err)
	}
}

func requireCaller(caller access.Address) error {
	if !caller.Valid() {
		return fmt.Errorf("%w: caller identity is required", ErrUnauthorized)
	}
	return nil
}
