package escrow

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Status represents the lifecycle states of a custodial hold. Transitions are
// one-way; no state is ever revisited.
type Status uint8

const (
	StatusPending Status = iota
	StatusFunded
	StatusCompleted
	StatusDisputed
	StatusExpired
	StatusCancelled
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusFunded, StatusCompleted, StatusDisputed, StatusExpired, StatusCancelled:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFunded:
		return "funded"
	case StatusCompleted:
		return "completed"
	case StatusDisputed:
		return "disputed"
	case StatusExpired:
		return "expired"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// ErrInvalidEscrow describes malformed escrow definitions.
var ErrInvalidEscrow = errors.New("escrow: invalid escrow")

// Milestone is a partial, ordered release unit within a single escrow. The
// milestone list is fixed at creation and releases strictly in list order.
type Milestone struct {
	Amount      *big.Int
	Description string
	Completed   bool
	CompletedAt int64
}

// Clone returns a deep copy of the milestone.
func (m *Milestone) Clone() *Milestone {
	if m == nil {
		return nil
	}
	clone := *m
	if m.Amount != nil {
		clone.Amount = new(big.Int).Set(m.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// Validate ensures the milestone definition is sane prior to persistence.
func (m *Milestone) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil milestone", ErrInvalidEscrow)
	}
	if m.Amount == nil || m.Amount.Sign() <= 0 {
		return fmt.Errorf("%w: milestone amount must be positive", ErrInvalidEscrow)
	}
	return nil
}

// Escrow captures a single custodial hold managed by the settlement core.
// Identifiers are assigned monotonically starting at 1 and never reused;
// terminal escrows are retained for audit.
type Escrow struct {
	ID          uint64
	Buyer       [20]byte
	Seller      [20]byte
	Asset       [20]byte
	Amount      *big.Int
	PlatformFee *big.Int
	Status      Status
	CreatedAt   int64
	FundedAt    int64
	Deadline    int64
	Description string
	MetaHash    [32]byte
	Milestones  []*Milestone

	// Resolved records the terminal arbitration outcome of a disputed escrow.
	// The status stays Disputed; the case outcome is the source of truth.
	Resolved       bool
	ResolveOutcome string
}

// Clone returns a deep copy of the escrow so callers can safely mutate the
// copy without affecting the stored instance.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Amount != nil {
		clone.Amount = new(big.Int).Set(e.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	if e.PlatformFee != nil {
		clone.PlatformFee = new(big.Int).Set(e.PlatformFee)
	} else {
		clone.PlatformFee = big.NewInt(0)
	}
	if len(e.Milestones) > 0 {
		clone.Milestones = make([]*Milestone, len(e.Milestones))
		for i, m := range e.Milestones {
			clone.Milestones[i] = m.Clone()
		}
	}
	return &clone
}

// ReleasedAmount sums the amounts of completed milestones. A completed escrow
// with no milestones has released the full principal.
func (e *Escrow) ReleasedAmount() *big.Int {
	released := big.NewInt(0)
	if e == nil {
		return released
	}
	if len(e.Milestones) == 0 {
		if e.Status == StatusCompleted {
			return new(big.Int).Set(e.Amount)
		}
		return released
	}
	for _, m := range e.Milestones {
		if m != nil && m.Completed && m.Amount != nil {
			released.Add(released, m.Amount)
		}
	}
	return released
}

// RemainingAmount is the principal still held in custody.
func (e *Escrow) RemainingAmount() *big.Int {
	if e == nil || e.Amount == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Sub(e.Amount, e.ReleasedAmount())
}

// SanitizeEscrow validates and normalises the supplied escrow definition,
// returning a cloned instance with non-nil amount fields. The function does
// not mutate the original value.
func SanitizeEscrow(e *Escrow) (*Escrow, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil escrow", ErrInvalidEscrow)
	}
	clone := e.Clone()
	if clone.ID == 0 {
		return nil, fmt.Errorf("%w: id required", ErrInvalidEscrow)
	}
	if clone.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidEscrow)
	}
	if clone.PlatformFee.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative platform fee", ErrInvalidEscrow)
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("%w: status %d", ErrInvalidEscrow, clone.Status)
	}
	clone.Description = strings.TrimSpace(clone.Description)
	if len(clone.Milestones) > 0 {
		sum := big.NewInt(0)
		for _, m := range clone.Milestones {
			if err := m.Validate(); err != nil {
				return nil, err
			}
			sum.Add(sum, m.Amount)
		}
		if sum.Cmp(clone.Amount) != 0 {
			return nil, fmt.Errorf("%w: milestone amounts must sum to the principal", ErrInvalidEscrow)
		}
	}
	return clone, nil
}
