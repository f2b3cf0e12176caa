package reputation

import (
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"clearhold/core/events"
)

var (
	// ErrUnauthorized marks calls from an identity that is neither the
	// administrator nor the registered escrow manager as required.
	ErrUnauthorized = errors.New("reputation: unauthorized caller")
	// ErrAlreadyRegistered marks duplicate registrations for one address.
	ErrAlreadyRegistered = errors.New("reputation: user already registered")
	// ErrDuplicateContact marks a contact identifier already bound to another
	// participant.
	ErrDuplicateContact = errors.New("reputation: contact already registered")
	// ErrNotRegistered marks updates against unknown participants.
	ErrNotRegistered = errors.New("reputation: user not registered")
	// ErrScoreOutOfBounds rejects administrative overrides above MaxScore.
	ErrScoreOutOfBounds = errors.New("reputation: score out of bounds")
)

// Registry owns participant identity records and reputation scores. Score
// mutations driven by settlement flow through the registered escrow manager;
// registration and corrections are administrator-only.
type Registry struct {
	mu        sync.RWMutex
	admin     [20]byte
	manager   [20]byte
	records   map[[20]byte]*Record
	byContact map[string][20]byte
	emitter   events.Emitter
	nowFn     func() int64
}

// NewRegistry constructs an empty registry owned by the supplied admin.
func NewRegistry(admin [20]byte) *Registry {
	return &Registry{
		admin:     admin,
		records:   make(map[[20]byte]*Record),
		byContact: make(map[string][20]byte),
		emitter:   events.NoopEmitter{},
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// SetManager registers the escrow manager address authorized to record
// transaction and dispute outcomes.
func (r *Registry) SetManager(addr [20]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.manager = addr
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (r *Registry) SetNowFunc(now func() int64) {
	if now == nil {
		r.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	r.nowFn = now
}

func normalizeContact(contact string) string {
	return strings.ToLower(strings.TrimSpace(contact))
}

// RegisterUser creates a reputation record with the initial score. The contact
// identifier must be unique across all participants.
func (r *Registry) RegisterUser(caller [20]byte, addr [20]byte, contact string, isVendor bool) error {
	if caller != r.admin {
		return ErrUnauthorized
	}
	normalized := normalizeContact(contact)
	record := &Record{
		Address:     addr,
		Contact:     normalized,
		IsVendor:    isVendor,
		Score:       InitialScore,
		TotalVolume: big.NewInt(0),
	}
	if err := record.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	if _, ok := r.records[addr]; ok {
		r.mu.Unlock()
		return ErrAlreadyRegistered
	}
	if _, ok := r.byContact[normalized]; ok {
		r.mu.Unlock()
		return ErrDuplicateContact
	}
	record.RegisteredAt = r.nowFn()
	r.records[addr] = record
	r.byContact[normalized] = addr
	clone := record.Clone()
	r.mu.Unlock()
	r.emitter.Emit(newUserRegisteredEvent(clone))
	return nil
}

// SetScore is the administrator-only direct override of a participant score.
// The floor is enforced by the unsigned type; values above MaxScore fail.
func (r *Registry) SetScore(caller [20]byte, addr [20]byte, score uint32) error {
	if caller != r.admin {
		return ErrUnauthorized
	}
	if score > MaxScore {
		return ErrScoreOutOfBounds
	}
	r.mu.Lock()
	record, ok := r.records[addr]
	if !ok {
		r.mu.Unlock()
		return ErrNotRegistered
	}
	record.Score = score
	clone := record.Clone()
	r.mu.Unlock()
	r.emitter.Emit(newScoreUpdatedEvent(clone))
	return nil
}

// RecordTransaction is the settlement entry point invoked by the escrow
// manager. It increments the transaction counters, accumulates settled volume
// and moves the score by the documented delta, clamped to the score bounds.
func (r *Registry) RecordTransaction(caller [20]byte, addr [20]byte, completed bool, volume *big.Int) error {
	r.mu.Lock()
	if caller != r.manager {
		r.mu.Unlock()
		return ErrUnauthorized
	}
	record, ok := r.records[addr]
	if !ok {
		r.mu.Unlock()
		return ErrNotRegistered
	}
	record.TotalTransactions++
	delta := int64(IncompleteDelta)
	if completed {
		record.CompletedTransactions++
		delta = CompletionDelta
	}
	if volume != nil && volume.Sign() > 0 {
		record.TotalVolume = new(big.Int).Add(record.TotalVolume, volume)
	}
	record.Score = ClampScore(int64(record.Score) + delta)
	clone := record.Clone()
	r.mu.Unlock()
	r.emitter.Emit(newScoreUpdatedEvent(clone))
	return nil
}

// RecordDispute bumps the dispute counter for a party and applies the dispute
// score penalty. Invoked by the escrow manager when a hold is contested.
func (r *Registry) RecordDispute(caller [20]byte, addr [20]byte) error {
	r.mu.Lock()
	if caller != r.manager {
		r.mu.Unlock()
		return ErrUnauthorized
	}
	record, ok := r.records[addr]
	if !ok {
		r.mu.Unlock()
		return ErrNotRegistered
	}
	record.DisputeCount++
	record.Score = ClampScore(int64(record.Score) + DisputeDelta)
	clone := record.Clone()
	r.mu.Unlock()
	r.emitter.Emit(newScoreUpdatedEvent(clone))
	return nil
}

// UpdateTransactionStats is the administrator-only bulk correction entry point
// used for backfills and migrations.
func (r *Registry) UpdateTransactionStats(caller [20]byte, addr [20]byte, total, completed, disputes uint64, volume *big.Int) error {
	if caller != r.admin {
		return ErrUnauthorized
	}
	r.mu.Lock()
	record, ok := r.records[addr]
	if !ok {
		r.mu.Unlock()
		return ErrNotRegistered
	}
	record.TotalTransactions = total
	record.CompletedTransactions = completed
	record.DisputeCount = disputes
	if volume != nil {
		record.TotalVolume = new(big.Int).Set(volume)
	}
	r.mu.Unlock()
	return nil
}

// GetReputationData returns the full record for the participant.
func (r *Registry) GetReputationData(addr [20]byte) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[addr]
	if !ok {
		return nil, false
	}
	return record.Clone(), true
}

// GetReputation returns only the bounded score for the participant.
func (r *Registry) GetReputation(addr [20]byte) (uint32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[addr]
	if !ok {
		return 0, false
	}
	return record.Score, true
}

// IsRegistered reports whether the participant has a record.
func (r *Registry) IsRegistered(addr [20]byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[addr]
	return ok
}

// IsVendor reports the vendor flag for the participant.
func (r *Registry) IsVendor(addr [20]byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[addr]
	return ok && record.IsVendor
}

// GetUserByContact resolves the participant bound to the contact identifier.
func (r *Registry) GetUserByContact(contact string) ([20]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addr, ok := r.byContact[normalizeContact(contact)]
	return addr, ok
}
