package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/journal"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages registered plugins. Hook implementations are discovered
// once at registration and cached per hook.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit              []OnInit
	onShutdown          []OnShutdown
	onDeposit           []OnDeposit
	onWithdrawal        []OnWithdrawal
	onFeeChanged        []OnFeeChanged
	onRelayerChanged    []OnRelayerChanged
	onVouchersMinted    []OnVouchersMinted
	onClaimantsApproved []OnClaimantsApproved
	onVouchersSettled   []OnVouchersSettled
	onVoucherClaimed    []OnVoucherClaimed
	onVouchersReclaimed []OnVouchersReclaimed
	onRoleGranted       []OnRoleGranted
	onRoleRevoked       []OnRoleRevoked
	onRejected          []OnOperationRejected
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin and caches the hooks it implements.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}
	r.plugins = append(r.plugins, p)

	var hooks []string
	cache := func(ok bool, name string, add func()) {
		if ok {
			add()
			hooks = append(hooks, name)
		}
	}

	v1, ok := p.(OnInit)
	cache(ok, "OnInit", func() { r.onInit = append(r.onInit, v1) })
	v2, ok := p.(OnShutdown)
	cache(ok, "OnShutdown", func() { r.onShutdown = append(r.onShutdown, v2) })
	v3, ok := p.(OnDeposit)
	cache(ok, "OnDeposit", func() { r.onDeposit = append(r.onDeposit, v3) })
	v4, ok := p.(OnWithdrawal)
	cache(ok, "OnWithdrawal", func() { r.onWithdrawal = append(r.onWithdrawal, v4) })
	v5, ok := p.(OnFeeChanged)
	cache(ok, "OnFeeChanged", func() { r.onFeeChanged = append(r.onFeeChanged, v5) })
	v6, ok := p.(OnRelayerChanged)
	cache(ok, "OnRelayerChanged", func() { r.onRelayerChanged = append(r.onRelayerChanged, v6) })
	v7, ok := p.(OnVouchersMinted)
	cache(ok, "OnVouchersMinted", func() { r.onVouchersMinted = append(r.onVouchersMinted, v7) })
	v8, ok := p.(OnClaimantsApproved)
	cache(ok, "OnClaimantsApproved", func() { r.onClaimantsApproved = append(r.onClaimantsApproved, v8) })
	v9, ok := p.(OnVouchersSettled)
	cache(ok, "OnVouchersSettled", func() { r.onVouchersSettled = append(r.onVouchersSettled, v9) })
	v10, ok := p.(OnVoucherClaimed)
	cache(ok, "OnVoucherClaimed", func() { r.onVoucherClaimed = append(r.onVoucherClaimed, v10) })
	v11, ok := p.(OnVouchersReclaimed)
	cache(ok, "OnVouchersReclaimed", func() { r.onVouchersReclaimed = append(r.onVouchersReclaimed, v11) })
	v12, ok := p.(OnRoleGranted)
	cache(ok, "OnRoleGranted", func() { r.onRoleGranted = append(r.onRoleGranted, v12) })
	v13, ok := p.(OnRoleRevoked)
	cache(ok, "OnRoleRevoked", func() { r.onRoleRevoked = append(r.onRoleRevoked, v13) })
	v14, ok := p.(OnOperationRejected)
	cache(ok, "OnOperationRejected", func() { r.onRejected = append(r.onRejected, v14) })

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"hooks", hooks,
	)

	return nil
}

// Get returns a plugin by name, or nil.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins in registration order.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

func (r *Registry) EmitInit(ctx context.Context, e any) {
	r.mu.RLock()
	ps := r.onInit
	r.mu.RUnlock()
	emit(ctx, r, "OnInit", ps, func(p OnInit) error { return p.OnInit(ctx, e) })
}

func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	ps := r.onShutdown
	r.mu.RUnlock()
	emit(ctx, r, "OnShutdown", ps, func(p OnShutdown) error { return p.OnShutdown(ctx) })
}

func (r *Registry) EmitDeposit(ctx context.Context, ev *DepositEvent) {
	r.mu.RLock()
	ps := r.onDeposit
	r.mu.RUnlock()
	emit(ctx, r, "OnDeposit", ps, func(p OnDeposit) error { return p.OnDeposit(ctx, ev) })
}

func (r *Registry) EmitWithdrawal(ctx context.Context, ev *WithdrawalEvent) {
	r.mu.RLock()
	ps := r.onWithdrawal
	r.mu.RUnlock()
	emit(ctx, r, "OnWithdrawal", ps, func(p OnWithdrawal) error { return p.OnWithdrawal(ctx, ev) })
}

func (r *Registry) EmitFeeChanged(ctx context.Context, ev *FeeChangedEvent) {
	r.mu.RLock()
	ps := r.onFeeChanged
	r.mu.RUnlock()
	emit(ctx, r, "OnFeeChanged", ps, func(p OnFeeChanged) error { return p.OnFeeChanged(ctx, ev) })
}

func (r *Registry) EmitRelayerChanged(ctx context.Context, ev *RelayerChangedEvent) {
	r.mu.RLock()
	ps := r.onRelayerChanged
	r.mu.RUnlock()
	emit(ctx, r, "OnRelayerChanged", ps, func(p OnRelayerChanged) error { return p.OnRelayerChanged(ctx, ev) })
}

func (r *Registry) EmitVouchersMinted(ctx context.Context, ev *VouchersMintedEvent) {
	r.mu.RLock()
	ps := r.onVouchersMinted
	r.mu.RUnlock()
	emit(ctx, r, "OnVouchersMinted", ps, func(p OnVouchersMinted) error { return p.OnVouchersMinted(ctx, ev) })
}

func (r *Registry) EmitClaimantsApproved(ctx context.Context, ev *ClaimantsApprovedEvent) {
	r.mu.RLock()
	ps := r.onClaimantsApproved
	r.mu.RUnlock()
	emit(ctx, r, "OnClaimantsApproved", ps, func(p OnClaimantsApproved) error { return p.OnClaimantsApproved(ctx, ev) })
}

func (r *Registry) EmitVouchersSettled(ctx context.Context, ev *VouchersSettledEvent) {
	r.mu.RLock()
	ps := r.onVouchersSettled
	r.mu.RUnlock()
	emit(ctx, r, "OnVouchersSettled", ps, func(p OnVouchersSettled) error { return p.OnVouchersSettled(ctx, ev) })
}

func (r *Registry) EmitVoucherClaimed(ctx context.Context, ev *VoucherClaimedEvent) {
	r.mu.RLock()
	ps := r.onVoucherClaimed
	r.mu.RUnlock()
	emit(ctx, r, "OnVoucherClaimed", ps, func(p OnVoucherClaimed) error { return p.OnVoucherClaimed(ctx, ev) })
}

func (r *Registry) EmitVouchersReclaimed(ctx context.Context, ev *VouchersReclaimedEvent) {
	r.mu.RLock()
	ps := r.onVouchersReclaimed
	r.mu.RUnlock()
	emit(ctx, r, "OnVouchersReclaimed", ps, func(p OnVouchersReclaimed) error { return p.OnVouchersReclaimed(ctx, ev) })
}

// EmitRoleTransitions dispatches each transition to OnRoleGranted or OnRoleRevoked.
func (r *Registry) EmitRoleTransitions(ctx context.Context, ts []access.Transition) {
	r.mu.RLock()
	granted, revoked := r.onRoleGranted, r.onRoleRevoked
	r.mu.RUnlock()

	for _, t := range ts {
		if t.Granted {
			emit(ctx, r, "OnRoleGranted", granted, func(p OnRoleGranted) error { return p.OnRoleGranted(ctx, t) })
		} else {
			emit(ctx, r, "OnRoleRevoked", revoked, func(p OnRoleRevoked) error { return p.OnRoleRevoked(ctx, t) })
		}
	}
}

func (r *Registry) EmitOperationRejected(ctx context.Context, op journal.Operation, actor access.Address, err error) {
	r.mu.RLock()
	ps := r.onRejected
	r.mu.RUnlock()
	emit(ctx, r, "OnOperationRejected", ps, func(p OnOperationRejected) error {
		return p.OnOperationRejected(ctx, op, actor, err)
	})
}

func emit[P Plugin](ctx context.Context, r *Registry, hook string, plugins []P, call func(P) error) {
	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error { return call(p) }); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout runs fn, giving up after the registry timeout. A hook that
// outlives its timeout keeps running in its own goroutine.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("plugin panic: %s: %v", pluginName, rec)
			}
		}()
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
