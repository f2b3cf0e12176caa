package dispute

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// CaseOutcome tracks the resolution state of a dispute case.
type CaseOutcome uint8

const (
	// OutcomePending marks cases awaiting arbitration.
	OutcomePending CaseOutcome = iota
	// OutcomeReleased marks cases resolved in favour of the seller.
	OutcomeReleased
	// OutcomeRefunded marks cases resolved in favour of the buyer.
	OutcomeRefunded
)

// Valid reports whether the outcome value is within the supported range.
func (o CaseOutcome) Valid() bool {
	switch o {
	case OutcomePending, OutcomeReleased, OutcomeRefunded:
		return true
	default:
		return false
	}
}

func (o CaseOutcome) String() string {
	switch o {
	case OutcomeReleased:
		return "released"
	case OutcomeRefunded:
		return "refunded"
	default:
		return "pending"
	}
}

// ErrInvalidCase describes malformed dispute case payloads.
var ErrInvalidCase = errors.New("dispute: invalid case")

// Case records a contested escrow. At most one case exists per escrow.
type Case struct {
	EscrowID   uint64
	Initiator  [20]byte
	Reason     string
	FiledAt    int64
	Outcome    CaseOutcome
	ResolvedAt int64
	Arbitrator [20]byte
}

// Clone returns a copy safe for the caller to mutate.
func (c *Case) Clone() *Case {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Validate ensures the case fields are sane prior to persistence.
func (c *Case) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil case", ErrInvalidCase)
	}
	if c.EscrowID == 0 {
		return fmt.Errorf("%w: escrow id required", ErrInvalidCase)
	}
	if c.Initiator == ([20]byte{}) {
		return fmt.Errorf("%w: initiator required", ErrInvalidCase)
	}
	if strings.TrimSpace(c.Reason) == "" {
		return fmt.Errorf("%w: reason required", ErrInvalidCase)
	}
	if !c.Outcome.Valid() {
		return fmt.Errorf("%w: outcome %d", ErrInvalidCase, c.Outcome)
	}
	return nil
}

// Arbitrator tracks a stake-backed dispute adjudicator. Deactivation refunds
// the stake but retains case history for accountability.
type Arbitrator struct {
	Address         [20]byte
	Stake           *big.Int
	Active          bool
	TotalCases      uint64
	SuccessfulCases uint64
	RegisteredAt    int64
}

// Clone returns a deep copy of the arbitrator record.
func (a *Arbitrator) Clone() *Arbitrator {
	if a == nil {
		return nil
	}
	clone := *a
	if a.Stake != nil {
		clone.Stake = new(big.Int).Set(a.Stake)
	} else {
		clone.Stake = big.NewInt(0)
	}
	return &clone
}

// Stats summarises an arbitrator's track record.
type Stats struct {
	TotalCases      uint64
	SuccessfulCases uint64
	SuccessRate     float64
	Active          bool
}
