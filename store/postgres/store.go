package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/escrow/journal"
	escrowstore "github.com/xraph/escrow/store"
)

// compile-time interface check
var _ escrowstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("escrow/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("escrow/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type entryModel struct {
	grove.BaseModel `grove:"table:escrow_journal"`

	Seq       int64           `grove:"seq,pk"`
	ID        string          `grove:"id"`
	Op        string          `grove:"op"`
	Actor     string          `grove:"actor"`
	PrevHash  string          `grove:"prev_hash"`
	Hash      string          `grove:"hash"`
	Payload   json.RawMessage `grove:"payload,type:jsonb"`
	CreatedAt time.Time       `grove:"created_at"`
}

func toEntryModel(e *journal.Entry) (*entryModel, error) {
	payload, err := journal.Encode(e)
	if err != nil {
		return nil, err
	}
	return &entryModel{
		Seq:       int64(e.Seq),
		ID:        e.ID.String(),
		Op:        string(e.Op),
		Actor:     string(e.Actor),
		PrevHash:  e.PrevHash,
		Hash:      e.Hash,
		Payload:   payload,
		CreatedAt: e.Timestamp,
	}, nil
}

func fromEntryModel(m *entryModel) (*journal.Entry, error) {
	return journal.Decode(m.Payload)
}

// AppendEntry inserts e in one statement. The seq primary key makes a second
// writer for the same sequence a no-op, reported as journal.ErrSeqConflict.
func (s *Store) AppendEntry(ctx context.Context, e *journal.Entry) error {
	m, err := toEntryModel(e)
	if err != nil {
		return err
	}
	res, err := s.pg.NewInsert(m).
		OnConflict("(seq) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("escrow/postgres: append entry %d: %w", e.Seq, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %d", journal.ErrSeqConflict, e.Seq)
	}
	return nil
}

func (s *Store) GetEntry(ctx context.Context, seq uint64) (*journal.Entry, error) {
	m := new(entryModel)
	err := s.pg.NewSelect(m).
		Where("seq = $1", int64(seq)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, journal.ErrNotFound
		}
		return nil, err
	}
	return fromEntryModel(m)
}

func (s *Store) LastEntry(ctx context.Context) (*journal.Entry, error) {
	m := new(entryModel)
	err := s.pg.NewSelect(m).
		OrderExpr("seq DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, journal.ErrNotFound
		}
		return nil, err
	}
	return fromEntryModel(m)
}

func (s *Store) ListEntries(ctx context.Context, opts journal.ListOpts) ([]*journal.Entry, error) {
	var models []entryModel
	q := s.pg.NewSelect(&models).Where("seq > $1", int64(opts.AfterSeq))

	if opts.Op != "" {
		q = q.Where("op = $2", string(opts.Op))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	q = q.OrderExpr("seq ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*journal.Entry, len(models))
	for i := range models {
		e, err := fromEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

func (s *Store) CountEntries(ctx context.Context) (int64, error) {
	var n int64
	err := s.pg.NewRaw(`SELECT COUNT(*) FROM escrow_journal`).Scan(ctx, &n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
