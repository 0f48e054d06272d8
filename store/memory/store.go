// Package memory is an in-process journal store for tests and single-node
// development. Entries are held as encoded payloads so callers can never
// mutate committed history.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/xraph/escrow"
	"github.com/xraph/escrow/journal"
	"github.com/xraph/escrow/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

type Store struct {
	mu       sync.RWMutex
	payloads [][]byte
	closed   bool
}

func New() *Store {
	return &Store{payloads: make([][]byte, 0, 64)}
}

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return escrow.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed. Committed entries are kept so a new engine
// over the same Store replays them.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Reopen clears the closed flag.
func (s *Store) Reopen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = false
}

func (s *Store) AppendEntry(_ context.Context, e *journal.Entry) error {
	payload, err := journal.Encode(e)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return escrow.ErrStoreClosed
	}
	if want := uint64(len(s.payloads)) + 1; e.Seq != want {
		if e.Seq < want {
			return fmt.Errorf("%w: %d", journal.ErrSeqConflict, e.Seq)
		}
		return fmt.Errorf("memory: entry %d would leave a gap after %d", e.Seq, want-1)
	}
	s.payloads = append(s.payloads, payload)
	return nil
}

func (s *Store) GetEntry(_ context.Context, seq uint64) (*journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if seq == 0 || seq > uint64(len(s.payloads)) {
		return nil, journal.ErrNotFound
	}
	return journal.Decode(s.payloads[seq-1])
}

func (s *Store) LastEntry(_ context.Context) (*journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.payloads) == 0 {
		return nil, journal.ErrNotFound
	}
	return journal.Decode(s.payloads[len(s.payloads)-1])
}

func (s *Store) ListEntries(_ context.Context, opts journal.ListOpts) ([]*journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*journal.Entry, 0)
	for i := opts.AfterSeq; i < uint64(len(s.payloads)); i++ {
		e, err := journal.Decode(s.payloads[i])
		if err != nil {
			return nil, err
		}
		if opts.Op != "" && e.Op != opts.Op {
			continue
		}
		result = append(result, e)
		if opts.Limit > 0 && len(result) == opts.Limit {
			break
		}
	}
	return result, nil
}

func (s *Store) CountEntries(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.payloads)), nil
}
