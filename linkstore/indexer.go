package linkstore

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/escrow/plugin"
	"github.com/xraph/escrow/voucher"
)

// DefaultQueueSize is the number of pending writes an Indexer buffers.
const DefaultQueueSize = 1024

const (
	writeTimeout    = 10 * time.Second
	maxCodeAttempts = 8
)

// Compile-time hook checks.
var (
	_ plugin.OnInit              = (*Indexer)(nil)
	_ plugin.OnShutdown          = (*Indexer)(nil)
	_ plugin.OnVouchersMinted    = (*Indexer)(nil)
	_ plugin.OnClaimantsApproved = (*Indexer)(nil)
	_ plugin.OnVouchersSettled   = (*Indexer)(nil)
	_ plugin.OnVoucherClaimed    = (*Indexer)(nil)
	_ plugin.OnVouchersReclaimed = (*Indexer)(nil)
)

// Indexer mirrors voucher lifecycle events into a Store. Writes go through a
// bounded queue drained by one background worker; when the queue is full the
// write is dropped and counted, so the engine never waits on the index.
type Indexer struct {
	store    Store
	contract string
	logger   *slog.Logger
	newCode  func() (string, error)

	queue chan job

	mu       sync.RWMutex
	links    map[voucher.Code]string
	assigned map[string]struct{}
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	dropped atomic.Uint64
	failed  atomic.Uint64
}

type job struct {
	create *Record
	id     string
	patch  Patch
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithContractAddress sets the contractAddress written on every record.
func WithContractAddress(addr string) IndexerOption {
	return func(i *Indexer) { i.contract = addr }
}

// WithQueueSize sets the write buffer size.
func WithQueueSize(n int) IndexerOption {
	return func(i *Indexer) {
		if n > 0 {
			i.queue = make(chan job, n)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) IndexerOption {
	return func(i *Indexer) { i.logger = l }
}

// WithCodeSource replaces NewFrontendCode.
func WithCodeSource(fn func() (string, error)) IndexerOption {
	return func(i *Indexer) { i.newCode = fn }
}

// NewIndexer returns an Indexer writing to store. Call Start before use;
// the engine does this through OnInit when the Indexer is registered.
func NewIndexer(store Store, opts ...IndexerOption) *Indexer {
	i := &Indexer{
		store:    store,
		logger:   slog.Default(),
		newCode:  NewFrontendCode,
		queue:    make(chan job, DefaultQueueSize),
		links:    make(map[voucher.Code]string),
		assigned: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Name implements plugin.Plugin.
func (i *Indexer) Name() string { return "linkstore-indexer" }

// Lookup returns the frontend code assigned to a voucher at mint time.
func (i *Indexer) Lookup(code voucher.Code) (string, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	id, ok := i.links[code]
	return id, ok
}

// Dropped is the number of writes discarded because the queue was full.
func (i *Indexer) Dropped() uint64 { return i.dropped.Load() }

// Failed is the number of writes the store rejected.
func (i *Indexer) Failed() uint64 { return i.failed.Load() }

// Start launches the worker. It is a no-op when already running.
func (i *Indexer) Start() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.running {
		return
	}
	i.running = true
	i.stopChan = make(chan struct{})
	i.wg.Add(1)
	go i.worker(i.stopChan)
}

// Stop drains queued writes and stops the worker.
func (i *Indexer) Stop() {
	i.mu.Lock()
	if !i.running {
		i.mu.Unlock()
		return
	}
	i.running = false
	close(i.stopChan)
	i.mu.Unlock()

	i.wg.Wait()
}

// OnInit implements plugin.OnInit.
func (i *Indexer) OnInit(context.Context, any) error {
	i.Start()
	return nil
}

// OnShutdown implements plugin.OnShutdown.
func (i *Indexer) OnShutdown(context.Context) error {
	i.Stop()
	return nil
}

// OnVouchersMinted implements plugin.OnVouchersMinted.
func (i *Indexer) OnVouchersMinted(_ context.Context, ev *plugin.VouchersMintedEvent) error {
	for _, v := range ev.Vouchers {
		id, err := i.assign(v.Code)
		if err != nil {
			i.logger.Warn("linkstore: no frontend code assigned", "code", v.Code, "error", err)
			continue
		}
		i.enqueue(job{create: &Record{
			ID:              id,
			Code:            string(v.Code),
			Amount:          v.Amount,
			ContractAddress: i.contract,
			Pledger:         string(v.Pledger),
			Status:          string(v.Status),
		}})
	}
	return nil
}

// OnClaimantsApproved implements plugin.OnClaimantsApproved.
func (i *Indexer) OnClaimantsApproved(_ context.Context, ev *plugin.ClaimantsApprovedEvent) error {
	for _, v := range ev.Vouchers {
		recipient, status := string(v.Claimant), string(v.Status)
		i.update(v.Code, Patch{Recipient: &recipient, Status: &status})
	}
	return nil
}

// OnVouchersSettled implements plugin.OnVouchersSettled.
func (i *Indexer) OnVouchersSettled(_ context.Context, ev *plugin.VouchersSettledEvent) error {
	for _, s := range ev.Settlements {
		i.settled(s.Voucher)
	}
	return nil
}

// OnVoucherClaimed implements plugin.OnVoucherClaimed.
func (i *Indexer) OnVoucherClaimed(_ context.Context, ev *plugin.VoucherClaimedEvent) error {
	i.settled(ev.Voucher)
	return nil
}

// OnVouchersReclaimed implements plugin.OnVouchersReclaimed.
func (i *Indexer) OnVouchersReclaimed(_ context.Context, ev *plugin.VouchersReclaimedEvent) error {
	for _, v := range ev.Vouchers {
		status := string(v.Status)
		i.update(v.Code, Patch{Status: &status})
	}
	return nil
}

func (i *Indexer) settled(v *voucher.Voucher) {
	recipient, status, send := string(v.Recipient), string(v.Status), true
	i.update(v.Code, Patch{Recipient: &recipient, Send: &send, Status: &status})
}

// assign draws a frontend code not used by any other voucher.
func (i *Indexer) assign(code voucher.Code) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	var lastErr error
	for range maxCodeAttempts {
		id, err := i.newCode()
		if err != nil {
			lastErr = err
			continue
		}
		if _, taken := i.assigned[id]; taken {
			continue
		}
		i.assigned[id] = struct{}{}
		i.links[code] = id
		return id, nil
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", ErrAlreadyExists
}

// update is skipped for vouchers minted before the indexer was registered.
func (i *Indexer) update(code voucher.Code, p Patch) {
	id, ok := i.Lookup(code)
	if !ok {
		i.logger.Debug("linkstore: voucher not indexed", "code", code)
		return
	}
	i.enqueue(job{id: id, patch: p})
}

func (i *Indexer) enqueue(j job) {
	select {
	case i.queue <- j:
	default:
		i.dropped.Add(1)
		i.logger.Warn("linkstore: index queue full, dropping write", "queue_size", cap(i.queue))
	}
}

func (i *Indexer) worker(stop <-chan struct{}) {
	defer i.wg.Done()

	for {
		select {
		case <-stop:
			// Final drain
			for {
				select {
				case j := <-i.queue:
					i.write(j)
				default:
					return
				}
			}

		case j := <-i.queue:
			i.write(j)
		}
	}
}

func (i *Indexer) write(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	var err error
	id := j.id
	if j.create != nil {
		id = j.create.ID
		err = i.store.Create(ctx, j.create)
	} else {
		_, err = i.store.Update(ctx, j.id, j.patch)
	}
	if err != nil {
		i.failed.Add(1)
		i.logger.Error("linkstore: index write failed", "id", id, "error", err)
	}
}
