package journal

import "context"

// Store persists journal entries. Implementations must make AppendEntry a
// single atomic write and reject a second entry with the same sequence number
// with ErrSeqConflict.
type Store interface {
	AppendEntry(ctx context.Context, e *Entry) error
	GetEntry(ctx context.Context, seq uint64) (*Entry, error)
	LastEntry(ctx context.Context) (*Entry, error)
	ListEntries(ctx context.Context, opts ListOpts) ([]*Entry, error)
	CountEntries(ctx context.Context) (int64, error)
}
