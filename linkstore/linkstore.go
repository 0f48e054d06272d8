// Package linkstore is the off-chain index that maps shareable frontend codes
// to voucher metadata. It is eventually consistent with the escrow engine and
// never sits on the engine's commit path.
//
// The wire contract is a small record store:
//
//	GET  /data         list records
//	GET  /data/{key}   one record, 404 if absent
//	POST /data         create a record
//	PUT  /data/{key}   update recipient, send and status
package linkstore

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/xraph/escrow/types"
)

var (
	ErrNotFound      = errors.New("linkstore: record not found")
	ErrAlreadyExists = errors.New("linkstore: record already exists")
	ErrInvalidRecord = errors.New("linkstore: invalid record")
)

// Record is one indexed voucher. ID is the frontend code; Code is the voucher
// code on the ledger. The two are unrelated.
type Record struct {
	ID              string       `json:"id"`
	Code            string       `json:"code"`
	Amount          types.Amount `json:"amount"`
	ContractAddress string       `json:"contractAddress"`
	Pledger         string       `json:"pledger"`
	Recipient       string       `json:"recipient,omitempty"`
	Send            bool         `json:"send,omitempty"`
	Status          string       `json:"status,omitempty"`
}

// Validate checks the fields required on create.
func (r *Record) Validate() error {
	switch {
	case r.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidRecord)
	case r.Code == "":
		return fmt.Errorf("%w: code is required", ErrInvalidRecord)
	case r.Amount <= 0:
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRecord)
	}
	return nil
}

// Patch is a partial update. Nil fields are left alone.
type Patch struct {
	Recipient *string `json:"recipient,omitempty"`
	Send      *bool   `json:"send,omitempty"`
	Status    *string `json:"status,omitempty"`
}

// Apply copies the set fields of p onto r.
func (p Patch) Apply(r *Record) {
	if p.Recipient != nil {
		r.Recipient = *p.Recipient
	}
	if p.Send != nil {
		r.Send = *p.Send
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
}

// Store is the record store contract shared by the HTTP client, the in-memory
// implementation and the server.
type Store interface {
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context) ([]*Record, error)
	Create(ctx context.Context, r *Record) error
	Update(ctx context.Context, id string, p Patch) (*Record, error)
}

// FrontendCodeLength is the length of generated frontend codes.
const FrontendCodeLength = 8

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewFrontendCode returns FrontendCodeLength random alphanumeric characters.
func NewFrontendCode() (string, error) {
	radix := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, FrontendCodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, radix)
		if err != nil {
			return "", fmt.Errorf("linkstore: read entropy: %w", err)
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}
