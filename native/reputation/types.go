package reputation

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	// InitialScore is assigned to every participant at registration.
	InitialScore = 500
	// MaxScore is the upper bound of the reputation scale.
	MaxScore = 1000
	// MinScore is the floor of the reputation scale.
	MinScore = 0

	// CompletionDelta is added to a participant's score when a transaction
	// completes successfully.
	CompletionDelta = 10
	// IncompleteDelta is applied when a transaction update does not carry the
	// completed flag.
	IncompleteDelta = -5
	// DisputeDelta is applied to each party when a dispute is filed.
	DisputeDelta = -15
)

// ErrInvalidRecord describes malformed reputation payloads.
var ErrInvalidRecord = errors.New("reputation: invalid record")

// Record tracks the trust profile of a single participant. Records are created
// on explicit registration and never deleted.
type Record struct {
	Address               [20]byte
	Contact               string
	IsVendor              bool
	Score                 uint32
	TotalTransactions     uint64
	CompletedTransactions uint64
	DisputeCount          uint64
	TotalVolume           *big.Int
	RegisteredAt          int64
}

// Clone returns a deep copy of the record so callers can safely mutate the
// copy without affecting the stored instance.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	if r.TotalVolume != nil {
		clone.TotalVolume = new(big.Int).Set(r.TotalVolume)
	} else {
		clone.TotalVolume = big.NewInt(0)
	}
	return &clone
}

// Validate ensures the record fields are sane prior to persistence.
func (r *Record) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidRecord)
	}
	if r.Address == ([20]byte{}) {
		return fmt.Errorf("%w: address required", ErrInvalidRecord)
	}
	if strings.TrimSpace(r.Contact) == "" {
		return fmt.Errorf("%w: contact required", ErrInvalidRecord)
	}
	if r.Score > MaxScore {
		return fmt.Errorf("%w: score above %d", ErrInvalidRecord, MaxScore)
	}
	return nil
}

// ClampScore bounds the supplied signed score into the [MinScore, MaxScore]
// range.
func ClampScore(score int64) uint32 {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return uint32(score)
}
