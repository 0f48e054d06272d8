package journal

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/minio/sha256-simd"
)

// GenesisPrevHash is the PrevHash of the first entry.
const GenesisPrevHash = "0000000000000000000000000000000000000000000000000000000000000000"

var (
	// ErrBrokenChain is returned when a journal fails verification.
	ErrBrokenChain = errors.New("journal: broken hash chain")
	// ErrSeqConflict is returned by a Store when the sequence number is taken.
	ErrSeqConflict = errors.New("journal: sequence already committed")
	// ErrNotFound is returned when no entry matches.
	ErrNotFound = errors.New("journal: entry not found")
)

// body is everything an entry commits to, excluding its own hash.
func (e *Entry) body() ([]byte, error) {
	c := *e
	c.Hash = ""
	return json.Marshal(&c)
}

// ComputeHash returns hex(SHA-256(PrevHash || body)).
func (e *Entry) ComputeHash() (string, error) {
	b, err := e.body()
	if err != nil {
		return "", fmt.Errorf("journal: encode entry %d: %w", e.Seq, err)
	}
	h := sha256.New()
	h.Write([]byte(e.PrevHash))
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Seal links e after prev (nil for the first entry) and stamps its hash.
func (e *Entry) Seal(prev *Entry) error {
	if prev == nil {
		e.Seq = 1
		e.PrevHash = GenesisPrevHash
	} else {
		e.Seq = prev.Seq + 1
		e.PrevHash = prev.Hash
	}
	e.Timestamp = e.Timestamp.UTC()

	hash, err := e.ComputeHash()
	if err != nil {
		return err
	}
	e.Hash = hash
	return nil
}

// Verify checks that entries form one contiguous chain starting at sequence 1.
func Verify(entries []*Entry) error {
	prevHash := GenesisPrevHash
	for i, e := range entries {
		want := uint64(i + 1)
		if e.Seq != want {
			return fmt.Errorf("%w: entry %d has sequence %d", ErrBrokenChain, want, e.Seq)
		}
		if e.PrevHash != prevHash {
			return fmt.Errorf("%w: entry %d does not link to its predecessor", ErrBrokenChain, e.Seq)
		}
		got, err := e.ComputeHash()
		if err != nil {
			return err
		}
		if got != e.Hash {
			return fmt.Errorf("%w: entry %d hash mismatch", ErrBrokenChain, e.Seq)
		}
		prevHash = e.Hash
	}
	return nil
}

// Encode renders e as the JSON payload persisted by the store backends.
func Encode(e *Entry) ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a persisted payload.
func Decode(b []byte) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("journal: decode entry: %w", err)
	}
	return &e, nil
}
