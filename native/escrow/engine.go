package escrow

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"clearhold/core/events"
	"clearhold/native/common"
	"clearhold/native/dispute"
)

// DefaultExpiryWindow is the funding-anchored deadline after which anyone may
// expire a funded escrow and return the held funds to the buyer.
const DefaultExpiryWindow = 30 * 24 * time.Hour

// PauseModule is the module name checked by the pause guard. Pause blocks
// escrow creation only; in-flight escrows keep progressing.
const PauseModule = "escrow"

var (
	errNilState  = errors.New("escrow: state not configured")
	errNilLedger = errors.New("escrow: ledger not configured")
	errNilFees   = errors.New("escrow: payment processor not configured")

	// ErrEscrowNotFound marks lookups for identifiers never assigned.
	ErrEscrowNotFound = errors.New("escrow: escrow not found")
	// ErrInvalidParty rejects creation where the seller is the buyer or the
	// zero identity.
	ErrInvalidParty = errors.New("escrow: invalid party")
	// ErrUnsupportedAsset rejects settlement assets that are not the native
	// marker or an active registry entry.
	ErrUnsupportedAsset = errors.New("escrow: unsupported settlement asset")
	// ErrMilestoneMismatch rejects milestone lists that do not sum to the
	// principal.
	ErrMilestoneMismatch = errors.New("escrow: milestone amounts must sum to principal")
	// ErrPaused is returned by Create while the manager is administratively
	// paused.
	ErrPaused = common.ErrModulePaused
	// ErrNotPending marks funding or cancellation of an escrow that has left
	// the pending state.
	ErrNotPending = errors.New("escrow: escrow not pending")
	// ErrIncorrectAmount rejects funding amounts that are not exactly the
	// principal plus the platform fee.
	ErrIncorrectAmount = errors.New("escrow: incorrect funding amount")
	// ErrUnauthorized marks calls from an identity that is not permitted to
	// drive the requested transition.
	ErrUnauthorized = errors.New("escrow: unauthorized caller")
	// ErrNotFunded marks release, dispute or expiry against an escrow that is
	// not in the funded state.
	ErrNotFunded = errors.New("escrow: escrow not funded")
	// ErrMilestoneOutOfOrder rejects releasing a milestone while an earlier
	// one is incomplete.
	ErrMilestoneOutOfOrder = errors.New("escrow: earlier milestone incomplete")
	// ErrMilestoneNotFound marks release requests for indexes outside the
	// milestone list.
	ErrMilestoneNotFound = errors.New("escrow: milestone index out of range")
	// ErrAlreadyCompleted marks release of a milestone that was already paid.
	ErrAlreadyCompleted = errors.New("escrow: milestone already completed")
	// ErrDisputeExists marks a second dispute filed against the same escrow.
	ErrDisputeExists = errors.New("escrow: dispute already filed")
	// ErrCannotCancelFunded marks cancellation of an escrow that is no longer
	// pending.
	ErrCannotCancelFunded = errors.New("escrow: cannot cancel funded escrow")
	// ErrNotExpired marks expiry requested before the deadline.
	ErrNotExpired = errors.New("escrow: deadline not reached")
	// ErrDisputeNotResolvable marks resolution of an escrow that is not
	// disputed or whose case has already been settled.
	ErrDisputeNotResolvable = errors.New("escrow: dispute not resolvable")
	// ErrPartyNotRegistered marks transitions requiring a reputation record
	// that does not exist. Checked before any funds move.
	ErrPartyNotRegistered = errors.New("escrow: party not registered")
	// ErrArbitratorNotEligible marks resolution assigned to an unknown or
	// inactive arbitrator. Checked before any funds move.
	ErrArbitratorNotEligible = errors.New("escrow: arbitrator not eligible")
	// ErrInvalidOutcome rejects resolution outcomes other than release or
	// refund.
	ErrInvalidOutcome = errors.New("escrow: invalid resolution outcome")
)

// ManagerState is the persistence backend for escrow records and the
// monotonic identifier counter. EscrowGet must return a defensive copy so a
// failed transition never leaks partial mutations into stored state.
type ManagerState interface {
	EscrowPut(*Escrow) error
	EscrowGet(id uint64) (*Escrow, bool)
	NextEscrowID() (uint64, error)
}

// Ledger is the value-transfer primitive consumed from the environment. Calls
// are synchronous and atomic; a failed transfer aborts the whole transition.
type Ledger interface {
	Transfer(from, to [20]byte, asset [20]byte, amount *big.Int) error
}

// FeeCalculator computes the platform fee frozen on the escrow at creation.
type FeeCalculator interface {
	PlatformFee(amount *big.Int) *big.Int
}

// ReputationUpdater is the slice of the reputation registry driven by
// settlement outcomes. IsRegistered lets the manager validate parties before
// moving funds so a missing record never aborts a transition halfway.
type ReputationUpdater interface {
	IsRegistered(addr [20]byte) bool
	RecordTransaction(caller [20]byte, addr [20]byte, completed bool, volume *big.Int) error
	RecordDispute(caller [20]byte, addr [20]byte) error
}

// DisputeRecorder is the slice of the dispute resolution engine invoked when a
// hold is contested. IsArbitratorActive lets the manager validate the assigned
// arbitrator before moving funds.
type DisputeRecorder interface {
	FileCase(caller [20]byte, escrowID uint64, initiator [20]byte, reason string) (*dispute.Case, error)
	ResolveCase(caller [20]byte, escrowID uint64, arbitrator [20]byte, outcome dispute.CaseOutcome, successful bool) error
	IsArbitratorActive(addr [20]byte) bool
}

// TokenView reports whether a settlement asset is eligible for new escrows.
type TokenView interface {
	IsActive(asset [20]byte) bool
}

// Manager owns the escrow records and drives the settlement state machine. It
// is the sole writer into the payment processor, reputation registry and
// dispute resolution engine. All public entry points serialize on a single
// lock so each call executes as an atomic transaction.
type Manager struct {
	mu sync.Mutex

	state      ManagerState
	ledger     Ledger
	fees       FeeCalculator
	reputation ReputationUpdater
	disputes   DisputeRecorder
	tokens     TokenView

	admin       [20]byte
	moduleAddr  [20]byte
	vault       [20]byte
	feeTreasury [20]byte

	paused       bool
	expiryWindow time.Duration
	emitter      events.Emitter
	nowFn        func() int64
}

// NewManager constructs a manager administered by admin. The module address
// identifies the manager to its sibling components; the vault custodies held
// funds and the treasury receives platform fees.
func NewManager(admin, moduleAddr, vault, feeTreasury [20]byte) *Manager {
	return &Manager{
		admin:        admin,
		moduleAddr:   moduleAddr,
		vault:        vault,
		feeTreasury:  feeTreasury,
		expiryWindow: DefaultExpiryWindow,
		emitter:      events.NoopEmitter{},
		nowFn:        func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the persistence backend.
func (m *Manager) SetState(state ManagerState) { m.state = state }

// SetLedger wires the value-transfer primitive.
func (m *Manager) SetLedger(ledger Ledger) { m.ledger = ledger }

// SetContracts points the manager at its sibling components. Only the
// administrator may rewire a live manager.
func (m *Manager) SetContracts(caller [20]byte, fees FeeCalculator, reputation ReputationUpdater, disputes DisputeRecorder, tokens TokenView) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if caller != m.admin {
		return ErrUnauthorized
	}
	m.fees = fees
	m.reputation = reputation
	m.disputes = disputes
	m.tokens = tokens
	return nil
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (m *Manager) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		m.emitter = events.NoopEmitter{}
		return
	}
	m.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (m *Manager) SetNowFunc(now func() int64) {
	if now == nil {
		m.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	m.nowFn = now
}

// SetExpiryWindow overrides the funding-anchored expiry window.
func (m *Manager) SetExpiryWindow(window time.Duration) {
	if window <= 0 {
		window = DefaultExpiryWindow
	}
	m.expiryWindow = window
}

// Pause blocks escrow creation. In-flight escrows continue to progress so
// buyer funds are never stranded.
func (m *Manager) Pause(caller [20]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if caller != m.admin {
		return ErrUnauthorized
	}
	m.paused = true
	return nil
}

// Unpause re-enables escrow creation.
func (m *Manager) Unpause(caller [20]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if caller != m.admin {
		return ErrUnauthorized
	}
	m.paused = false
	return nil
}

// IsPaused implements common.PauseView.
func (m *Manager) IsPaused(module string) bool {
	if module != PauseModule {
		return false
	}
	return m.paused
}

func (m *Manager) now() int64 {
	if m == nil || m.nowFn == nil {
		return time.Now().Unix()
	}
	return m.nowFn()
}

func (m *Manager) emit(evt escrowEvent) {
	if m == nil || m.emitter == nil {
		return
	}
	m.emitter.Emit(evt)
}

func (m *Manager) loadEscrow(id uint64) (*Escrow, error) {
	if m.state == nil {
		return nil, errNilState
	}
	esc, ok := m.state.EscrowGet(id)
	if !ok {
		return nil, ErrEscrowNotFound
	}
	return esc, nil
}

func (m *Manager) storeEscrow(esc *Escrow) error {
	if m.state == nil {
		return errNilState
	}
	return m.state.EscrowPut(esc)
}

func (m *Manager) transfer(from, to [20]byte, asset [20]byte, amount *big.Int) error {
	if m.ledger == nil {
		return errNilLedger
	}
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("escrow: negative transfer amount")
	}
	return m.ledger.Transfer(from, to, asset, amount)
}

// Create initialises and persists a new escrow in favour of seller. Non-native
// asset escrows pull the principal and platform fee from the buyer immediately
// and are created already funded; native-asset escrows await an explicit
// funding step.
func (m *Manager) Create(buyer, seller [20]byte, description string, metaHash [32]byte, milestones []*Milestone, asset [20]byte, amount *big.Int) (*Escrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := common.Guard(m, PauseModule); err != nil {
		return nil, err
	}
	if m.state == nil {
		return nil, errNilState
	}
	if m.fees == nil {
		return nil, errNilFees
	}
	if buyer == ([20]byte{}) || seller == ([20]byte{}) || seller == buyer {
		return nil, ErrInvalidParty
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidEscrow)
	}
	if m.tokens == nil || !m.tokens.IsActive(asset) {
		return nil, ErrUnsupportedAsset
	}
	cloned := make([]*Milestone, len(milestones))
	if len(milestones) > 0 {
		sum := big.NewInt(0)
		for i, ms := range milestones {
			if err := ms.Validate(); err != nil {
				return nil, err
			}
			cloned[i] = ms.Clone()
			cloned[i].Completed = false
			cloned[i].CompletedAt = 0
			sum.Add(sum, cloned[i].Amount)
		}
		if sum.Cmp(amount) != 0 {
			return nil, ErrMilestoneMismatch
		}
	}
	fee := m.fees.PlatformFee(amount)
	id, err := m.state.NextEscrowID()
	if err != nil {
		return nil, err
	}
	now := m.now()
	esc := &Escrow{
		ID:          id,
		Buyer:       buyer,
		Seller:      seller,
		Asset:       asset,
		Amount:      new(big.Int).Set(amount),
		PlatformFee: fee,
		Status:      StatusPending,
		CreatedAt:   now,
		Description: strings.TrimSpace(description),
		MetaHash:    metaHash,
		Milestones:  cloned,
	}
	autoFunded := asset != ([20]byte{})
	if autoFunded {
		total := new(big.Int).Add(esc.Amount, esc.PlatformFee)
		if err := m.transfer(buyer, m.vault, asset, total); err != nil {
			return nil, err
		}
		esc.Status = StatusFunded
		esc.FundedAt = now
		esc.Deadline = now + int64(m.expiryWindow/time.Second)
	}
	if err := m.storeEscrow(esc); err != nil {
		return nil, err
	}
	m.emit(newCreatedEvent(esc))
	if autoFunded {
		m.emit(newFundedEvent(esc))
	}
	return esc.Clone(), nil
}

// Fund moves the principal plus the platform fee from the buyer into custody
// and anchors the expiry deadline. Only the original buyer may fund, and the
// supplied amount must match exactly.
func (m *Manager) Fund(id uint64, caller [20]byte, supplied *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	esc, err := m.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Status != StatusPending {
		return ErrNotPending
	}
	if caller != esc.Buyer {
		return ErrUnauthorized
	}
	required := new(big.Int).Add(esc.Amount, esc.PlatformFee)
	if supplied == nil || supplied.Cmp(required) != 0 {
		return ErrIncorrectAmount
	}
	if err := m.transfer(esc.Buyer, m.vault, esc.Asset, required); err != nil {
		return err
	}
	now := m.now()
	esc.Status = StatusFunded
	esc.FundedAt = now
	esc.Deadline = now + int64(m.expiryWindow/time.Second)
	if err := m.storeEscrow(esc); err != nil {
		return err
	}
	m.emit(newFundedEvent(esc))
	return nil
}

// Release pays one milestone (or the full principal when the escrow has no
// milestones) to the seller. Milestones release strictly in list order; the
// final release completes the escrow, forwards the platform fee to the
// treasury and credits the seller's reputation.
func (m *Manager) Release(id uint64, caller [20]byte, milestoneIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	esc, err := m.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Status != StatusFunded {
		return ErrNotFunded
	}
	if caller != esc.Buyer && caller != esc.Seller {
		return ErrUnauthorized
	}
	var payout *big.Int
	completing := false
	if len(esc.Milestones) == 0 {
		if milestoneIndex != 0 {
			return ErrMilestoneNotFound
		}
		payout = new(big.Int).Set(esc.Amount)
		completing = true
	} else {
		if milestoneIndex < 0 || milestoneIndex >= len(esc.Milestones) {
			return ErrMilestoneNotFound
		}
		target := esc.Milestones[milestoneIndex]
		if target.Completed {
			return ErrAlreadyCompleted
		}
		for i := 0; i < milestoneIndex; i++ {
			if !esc.Milestones[i].Completed {
				return ErrMilestoneOutOfOrder
			}
		}
		payout = new(big.Int).Set(target.Amount)
		completing = milestoneIndex == len(esc.Milestones)-1
	}
	// A completing release credits the seller's reputation; verify the record
	// exists before any funds move so a failure never strands a payout.
	if completing && m.reputation != nil && !m.reputation.IsRegistered(esc.Seller) {
		return ErrPartyNotRegistered
	}
	if err := m.transfer(m.vault, esc.Seller, esc.Asset, payout); err != nil {
		return err
	}
	now := m.now()
	if len(esc.Milestones) > 0 {
		esc.Milestones[milestoneIndex].Completed = true
		esc.Milestones[milestoneIndex].CompletedAt = now
	}
	if completing {
		if esc.PlatformFee.Sign() > 0 {
			if err := m.transfer(m.vault, m.feeTreasury, esc.Asset, esc.PlatformFee); err != nil {
				return err
			}
		}
		if m.reputation != nil {
			if err := m.reputation.RecordTransaction(m.moduleAddr, esc.Seller, true, esc.Amount); err != nil {
				return err
			}
		}
		esc.Status = StatusCompleted
	}
	if err := m.storeEscrow(esc); err != nil {
		return err
	}
	m.emit(newReleasedEvent(esc, payout, milestoneIndex))
	if completing {
		m.emit(newCompletedEvent(esc))
	}
	return nil
}

// FileDispute contests a funded escrow. A single dispute may be recorded per
// escrow; both parties' dispute counters are incremented.
func (m *Manager) FileDispute(id uint64, caller [20]byte, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	esc, err := m.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Status != StatusFunded {
		return ErrNotFunded
	}
	if caller != esc.Buyer && caller != esc.Seller {
		return ErrUnauthorized
	}
	if m.disputes == nil {
		return fmt.Errorf("escrow: dispute resolution not configured")
	}
	// Both parties take the dispute penalty; verify their records exist before
	// the case is filed so a missing record never leaves an orphan case.
	if m.reputation != nil && (!m.reputation.IsRegistered(esc.Buyer) || !m.reputation.IsRegistered(esc.Seller)) {
		return ErrPartyNotRegistered
	}
	if _, err := m.disputes.FileCase(m.moduleAddr, id, caller, reason); err != nil {
		if errors.Is(err, dispute.ErrCaseExists) {
			return ErrDisputeExists
		}
		return err
	}
	if m.reputation != nil {
		if err := m.reputation.RecordDispute(m.moduleAddr, esc.Buyer); err != nil {
			return err
		}
		if err := m.reputation.RecordDispute(m.moduleAddr, esc.Seller); err != nil {
			return err
		}
	}
	esc.Status = StatusDisputed
	if err := m.storeEscrow(esc); err != nil {
		return err
	}
	m.emit(newDisputedEvent(esc, caller))
	return nil
}

// ResolveDispute settles a disputed escrow per the arbitrated outcome. A
// release pays the seller the remaining principal and credits their
// reputation; a refund returns the held funds to the buyer. The assigned
// arbitrator must hold an active stake. The escrow status stays Disputed and
// the recorded case outcome is the source of truth.
func (m *Manager) ResolveDispute(id uint64, caller [20]byte, arbitrator [20]byte, outcome string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if caller != m.admin {
		return ErrUnauthorized
	}
	esc, err := m.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Status != StatusDisputed || esc.Resolved {
		return ErrDisputeNotResolvable
	}
	if m.disputes == nil {
		return fmt.Errorf("escrow: dispute resolution not configured")
	}
	remaining := esc.RemainingAmount()
	normalized := strings.ToLower(strings.TrimSpace(outcome))
	var caseOutcome dispute.CaseOutcome
	switch normalized {
	case "release":
		caseOutcome = dispute.OutcomeReleased
	case "refund":
		caseOutcome = dispute.OutcomeRefunded
	default:
		return ErrInvalidOutcome
	}
	// Validate every fallible precondition before funds move: an ineligible
	// arbitrator or missing seller record must reject the call with the held
	// balances untouched.
	if !m.disputes.IsArbitratorActive(arbitrator) {
		return ErrArbitratorNotEligible
	}
	if caseOutcome == dispute.OutcomeReleased && m.reputation != nil && !m.reputation.IsRegistered(esc.Seller) {
		return ErrPartyNotRegistered
	}
	switch caseOutcome {
	case dispute.OutcomeReleased:
		if err := m.transfer(m.vault, esc.Seller, esc.Asset, remaining); err != nil {
			return err
		}
		if esc.PlatformFee.Sign() > 0 {
			if err := m.transfer(m.vault, m.feeTreasury, esc.Asset, esc.PlatformFee); err != nil {
				return err
			}
		}
		if m.reputation != nil {
			if err := m.reputation.RecordTransaction(m.moduleAddr, esc.Seller, true, remaining); err != nil {
				return err
			}
		}
	case dispute.OutcomeRefunded:
		refund := new(big.Int).Add(remaining, esc.PlatformFee)
		if err := m.transfer(m.vault, esc.Buyer, esc.Asset, refund); err != nil {
			return err
		}
	}
	if err := m.disputes.ResolveCase(m.moduleAddr, id, arbitrator, caseOutcome, true); err != nil {
		return err
	}
	esc.Resolved = true
	esc.ResolveOutcome = normalized
	if err := m.storeEscrow(esc); err != nil {
		return err
	}
	m.emit(newResolvedEvent(esc))
	return nil
}

// Cancel voids a pending escrow. Only the buyer may cancel, and only before
// funding; no funds are held yet for a pending escrow.
func (m *Manager) Cancel(id uint64, caller [20]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	esc, err := m.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Status != StatusPending {
		return ErrCannotCancelFunded
	}
	if caller != esc.Buyer {
		return ErrUnauthorized
	}
	esc.Status = StatusCancelled
	if err := m.storeEscrow(esc); err != nil {
		return err
	}
	m.emit(newCancelledEvent(esc))
	return nil
}

// Expire refunds a funded escrow to the buyer once the deadline has elapsed.
// Anyone may invoke the transition; it is a lazy check against the stored
// deadline, not a timer.
func (m *Manager) Expire(id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	esc, err := m.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Status != StatusFunded {
		return ErrNotFunded
	}
	if m.now() < esc.Deadline {
		return ErrNotExpired
	}
	refund := new(big.Int).Add(esc.RemainingAmount(), esc.PlatformFee)
	if err := m.transfer(m.vault, esc.Buyer, esc.Asset, refund); err != nil {
		return err
	}
	esc.Status = StatusExpired
	if err := m.storeEscrow(esc); err != nil {
		return err
	}
	m.emit(newExpiredEvent(esc))
	return nil
}

// GetEscrow returns a copy of the escrow record.
func (m *Manager) GetEscrow(id uint64) (*Escrow, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, false
	}
	esc, ok := m.state.EscrowGet(id)
	if !ok {
		return nil, false
	}
	return esc.Clone(), true
}

// GetMilestones returns a copy of the escrow's milestone list.
func (m *Manager) GetMilestones(id uint64) ([]*Milestone, bool) {
	esc, ok := m.GetEscrow(id)
	if !ok {
		return nil, false
	}
	return esc.Milestones, true
}
