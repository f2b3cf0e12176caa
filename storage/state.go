package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"clearhold/native/escrow"
)

var (
	escrowKeyPrefix  = []byte("escrow/record/")
	escrowCounterKey = []byte("escrow/nextId")
)

func escrowKey(id uint64) []byte {
	key := make([]byte, len(escrowKeyPrefix)+8)
	copy(key, escrowKeyPrefix)
	binary.BigEndian.PutUint64(key[len(escrowKeyPrefix):], id)
	return key
}

// State persists escrow records and the monotonic identifier counter as JSON
// documents over a Database. It implements escrow.ManagerState.
type State struct {
	mu sync.Mutex
	db Database
}

// NewState binds a state store to the supplied database backend.
func NewState(db Database) *State {
	return &State{db: db}
}

// EscrowPut sanitizes and persists the escrow record.
func (s *State) EscrowPut(esc *escrow.Escrow) error {
	sanitized, err := escrow.SanitizeEscrow(esc)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(sanitized)
	if err != nil {
		return fmt.Errorf("storage: encode escrow %d: %w", sanitized.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Put(escrowKey(sanitized.ID), raw)
}

// EscrowGet loads the escrow record. The returned value is a fresh copy; the
// caller may mutate it freely.
func (s *State) EscrowGet(id uint64) (*escrow.Escrow, bool) {
	s.mu.Lock()
	raw, err := s.db.Get(escrowKey(id))
	s.mu.Unlock()
	if err != nil {
		return nil, false
	}
	var esc escrow.Escrow
	if err := json.Unmarshal(raw, &esc); err != nil {
		return nil, false
	}
	return &esc, true
}

// NextEscrowID assigns the next monotonic identifier, starting at 1.
// Identifiers are never reused, including for escrows that later reach a
// terminal state.
func (s *State) NextEscrowID() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := uint64(1)
	raw, err := s.db.Get(escrowCounterKey)
	switch {
	case err == nil:
		if len(raw) != 8 {
			return 0, fmt.Errorf("storage: corrupt escrow counter")
		}
		next = binary.BigEndian.Uint64(raw) + 1
	case errors.Is(err, ErrKeyNotFound):
	default:
		return 0, err
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	if err := s.db.Put(escrowCounterKey, buf); err != nil {
		return 0, err
	}
	return next, nil
}
