package dispute

import (
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"clearhold/core/events"
)

var (
	// ErrUnauthorized marks case mutations from a caller other than the
	// registered escrow manager.
	ErrUnauthorized = errors.New("dispute: caller is not the escrow manager")
	// ErrInsufficientStake rejects arbitrator registrations below the minimum.
	ErrInsufficientStake = errors.New("dispute: stake below minimum")
	// ErrAlreadyRegistered marks duplicate arbitrator registrations.
	ErrAlreadyRegistered = errors.New("dispute: arbitrator already registered")
	// ErrArbitratorNotFound marks lookups for unknown arbitrators.
	ErrArbitratorNotFound = errors.New("dispute: arbitrator not registered")
	// ErrArbitratorInactive marks resolutions assigned to a deactivated
	// arbitrator.
	ErrArbitratorInactive = errors.New("dispute: arbitrator inactive")
	// ErrCaseExists marks a second dispute filed against the same escrow.
	ErrCaseExists = errors.New("dispute: case already filed for escrow")
	// ErrCaseNotFound marks resolutions against escrows with no open case.
	ErrCaseNotFound = errors.New("dispute: case not found")
	// ErrCaseResolved marks repeat resolutions of a settled case.
	ErrCaseResolved = errors.New("dispute: case already resolved")
	// ErrNilLedger is returned when staking is attempted before the ledger has
	// been wired.
	ErrNilLedger = errors.New("dispute: ledger not configured")
)

// Ledger is the value-transfer primitive used to custody arbitrator stakes.
type Ledger interface {
	Transfer(from, to [20]byte, asset [20]byte, amount *big.Int) error
}

// Engine owns arbitrator registration, staking and dispute case records. Case
// creation and resolution are driven by the escrow manager; staking is open to
// any identity meeting the minimum.
type Engine struct {
	mu          sync.Mutex
	manager     [20]byte
	vault       [20]byte
	minStake    *big.Int
	ledger      Ledger
	arbitrators map[[20]byte]*Arbitrator
	cases       map[uint64]*Case
	emitter     events.Emitter
	nowFn       func() int64
}

// NewEngine constructs an engine holding stakes at the supplied vault address
// with the given minimum stake requirement.
func NewEngine(vault [20]byte, minStake *big.Int) *Engine {
	min := big.NewInt(0)
	if minStake != nil {
		min = new(big.Int).Set(minStake)
	}
	return &Engine{
		vault:       vault,
		minStake:    min,
		arbitrators: make(map[[20]byte]*Arbitrator),
		cases:       make(map[uint64]*Case),
		emitter:     events.NoopEmitter{},
		nowFn:       func() int64 { return time.Now().Unix() },
	}
}

// SetManager registers the escrow manager address authorized to file and
// resolve cases.
func (e *Engine) SetManager(addr [20]byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.manager = addr
}

// SetLedger wires the value-transfer primitive used for stake custody.
func (e *Engine) SetLedger(ledger Ledger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ledger = ledger
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// RegisterArbitrator stakes the caller as a dispute adjudicator. The stake is
// pulled into the module vault and refunded on deactivation.
func (e *Engine) RegisterArbitrator(caller [20]byte, stake *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if stake == nil || stake.Cmp(e.minStake) < 0 {
		return ErrInsufficientStake
	}
	if existing, ok := e.arbitrators[caller]; ok && existing.Active {
		return ErrAlreadyRegistered
	}
	if e.ledger == nil {
		return ErrNilLedger
	}
	amount := new(big.Int).Set(stake)
	if err := e.ledger.Transfer(caller, e.vault, [20]byte{}, amount); err != nil {
		return err
	}
	record, ok := e.arbitrators[caller]
	if !ok {
		record = &Arbitrator{Address: caller, RegisteredAt: e.nowFn()}
		e.arbitrators[caller] = record
	}
	record.Stake = amount
	record.Active = true
	e.emitter.Emit(newArbitratorRegisteredEvent(record.Clone()))
	return nil
}

// DeactivateArbitrator refunds the stake and clears the active flag. Case
// history is retained.
func (e *Engine) DeactivateArbitrator(caller [20]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	record, ok := e.arbitrators[caller]
	if !ok || !record.Active {
		return ErrArbitratorNotFound
	}
	if e.ledger == nil {
		return ErrNilLedger
	}
	refund := new(big.Int).Set(record.Stake)
	if refund.Sign() > 0 {
		if err := e.ledger.Transfer(e.vault, caller, [20]byte{}, refund); err != nil {
			return err
		}
	}
	record.Stake = big.NewInt(0)
	record.Active = false
	e.emitter.Emit(newArbitratorDeactivatedEvent(record.Clone()))
	return nil
}

// FileCase records a dispute for the escrow. Only the escrow manager may file;
// at most one case may exist per escrow.
func (e *Engine) FileCase(caller [20]byte, escrowID uint64, initiator [20]byte, reason string) (*Case, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.manager {
		return nil, ErrUnauthorized
	}
	if _, ok := e.cases[escrowID]; ok {
		return nil, ErrCaseExists
	}
	c := &Case{
		EscrowID:  escrowID,
		Initiator: initiator,
		Reason:    strings.TrimSpace(reason),
		FiledAt:   e.nowFn(),
		Outcome:   OutcomePending,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	e.cases[escrowID] = c
	clone := c.Clone()
	e.emitter.Emit(newCaseFiledEvent(clone))
	return clone, nil
}

// ResolveCase records the arbitrated outcome for an open case and credits the
// arbitrator's counters. Assignment and voting mechanics beyond this
// bookkeeping are left to the operator's resolution policy.
func (e *Engine) ResolveCase(caller [20]byte, escrowID uint64, arbitrator [20]byte, outcome CaseOutcome, successful bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.manager {
		return ErrUnauthorized
	}
	c, ok := e.cases[escrowID]
	if !ok {
		return ErrCaseNotFound
	}
	if c.Outcome != OutcomePending {
		return ErrCaseResolved
	}
	if outcome == OutcomePending || !outcome.Valid() {
		return ErrInvalidCase
	}
	record, ok := e.arbitrators[arbitrator]
	if !ok {
		return ErrArbitratorNotFound
	}
	if !record.Active {
		return ErrArbitratorInactive
	}
	c.Outcome = outcome
	c.ResolvedAt = e.nowFn()
	c.Arbitrator = arbitrator
	record.TotalCases++
	if successful {
		record.SuccessfulCases++
	}
	e.emitter.Emit(newCaseResolvedEvent(c.Clone()))
	return nil
}

// GetCase returns the dispute case recorded for the escrow, if any.
func (e *Engine) GetCase(escrowID uint64) (*Case, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.cases[escrowID]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// GetArbitratorStats summarises the arbitrator's track record. The success
// rate is zero when no cases have been handled.
func (e *Engine) GetArbitratorStats(addr [20]byte) (Stats, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	record, ok := e.arbitrators[addr]
	if !ok {
		return Stats{}, false
	}
	stats := Stats{
		TotalCases:      record.TotalCases,
		SuccessfulCases: record.SuccessfulCases,
		Active:          record.Active,
	}
	if record.TotalCases > 0 {
		stats.SuccessRate = float64(record.SuccessfulCases) / float64(record.TotalCases)
	}
	return stats, true
}

// IsArbitratorActive reports whether the identity is an active arbitrator.
func (e *Engine) IsArbitratorActive(addr [20]byte) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	record, ok := e.arbitrators[addr]
	return ok && record.Active
}
