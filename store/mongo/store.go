package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/escrow/journal"
	escrowstore "github.com/xraph/escrow/store"
)

// Collection name constants.
const (
	colJournal = "escrow_journal"
)

// compile-time interface check
var _ escrowstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all escrow collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("escrow/mongo: migrate %s indexes: %w", col, err)
		}
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

// entryModel keys documents by sequence number. The entry itself is kept as
// its JSON payload because BSON dates would truncate timestamps to
// milliseconds and break the hash.
type entryModel struct {
	grove.BaseModel `grove:"table:escrow_journal"`

	Seq       int64     `grove:"seq,pk"     bson:"_id"`
	ID        string    `grove:"id"         bson:"entry_id"`
	Op        string    `grove:"op"         bson:"op"`
	Actor     string    `grove:"actor"      bson:"actor"`
	PrevHash  string    `grove:"prev_hash"  bson:"prev_hash"`
	Hash      string    `grove:"hash"       bson:"hash"`
	Payload   string    `grove:"payload"    bson:"payload"`
	CreatedAt time.Time `grove:"created_at" bson:"created_at"`
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
		Payload:   string(payload),
		CreatedAt: e.Timestamp,
	}, nil
}

func fromEntryModel(m *entryModel) (*journal.Entry, error) {
	return journal.Decode([]byte(m.Payload))
}

func (s *Store) AppendEntry(ctx context.Context, e *journal.Entry) error {
	m, err := toEntryModel(e)
	if err != nil {
		return err
	}
	_, err = s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %d", journal.ErrSeqConflict, e.Seq)
		}
		return fmt.Errorf("escrow/mongo: append entry %d: %w", e.Seq, err)
	}
	return nil
}

func (s *Store) GetEntry(ctx context.Context, seq uint64) (*journal.Entry, error) {
	var m entryModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": int64(seq)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, journal.ErrNotFound
		}
		return nil, fmt.Errorf("escrow/mongo: get entry: %w", err)
	}
	return fromEntryModel(&m)
}

func (s *Store) LastEntry(ctx context.Context) (*journal.Entry, error) {
	var m entryModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "_id", Value: -1}}).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, journal.ErrNotFound
		}
		return nil, fmt.Errorf("escrow/mongo: last entry: %w", err)
	}
	return fromEntryModel(&m)
}

func (s *Store) ListEntries(ctx context.Context, opts journal.ListOpts) ([]*journal.Entry, error) {
	var models []entryModel

	filter := bson.M{"_id": bson.M{"$gt": int64(opts.AfterSeq)}}
	if opts.Op != "" {
		filter["op"] = string(opts.Op)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("escrow/mongo: list entries: %w", err)
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
	n, err := s.mdb.Collection(colJournal).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("escrow/mongo: count entries: %w", err)
	}
	return n, nil
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all escrow collections.
// Sequence uniqueness comes from _id.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colJournal: {
			{
				Keys:    bson.D{{Key: "entry_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "hash", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "op", Value: 1}, {Key: "_id", Value: 1}}},
			{Keys: bson.D{{Key: "actor", Value: 1}, {Key: "_id", Value: 1}}},
		},
	}
}
