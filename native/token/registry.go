package token

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"clearhold/core/events"
)

var (
	// ErrUnauthorized marks registry mutations from a caller other than the
	// configured administrator.
	ErrUnauthorized = errors.New("token: caller is not the registry admin")
	// ErrTokenNotFound marks lookups for assets that were never registered.
	ErrTokenNotFound = errors.New("token: token not registered")
	// ErrTokenExists marks duplicate registrations for the same asset address.
	ErrTokenExists = errors.New("token: token already registered")
	// ErrInvalidToken describes malformed token definitions.
	ErrInvalidToken = errors.New("token: invalid token definition")
)

// NativeAsset is the zero address marker for the chain-native settlement
// asset. It is never present in the registry and is always considered active.
var NativeAsset = [20]byte{}

// Info describes a registered settlement asset.
type Info struct {
	Address  [20]byte
	ChainID  uint64
	Symbol   string
	Decimals uint8
	Active   bool
	AddedAt  int64
}

// Clone returns a copy safe for the caller to mutate.
func (i *Info) Clone() *Info {
	if i == nil {
		return nil
	}
	clone := *i
	return &clone
}

// Validate ensures the token definition is sane prior to persistence.
func (i *Info) Validate() error {
	if i == nil {
		return fmt.Errorf("%w: nil token", ErrInvalidToken)
	}
	if i.Address == NativeAsset {
		return fmt.Errorf("%w: zero address is reserved for the native asset", ErrInvalidToken)
	}
	if strings.TrimSpace(i.Symbol) == "" {
		return fmt.Errorf("%w: symbol required", ErrInvalidToken)
	}
	if i.ChainID == 0 {
		return fmt.Errorf("%w: chain id required", ErrInvalidToken)
	}
	return nil
}

// Registry maintains the allow-list of settlement assets eligible for new
// escrows. Mutations are restricted to the configured administrator; reads are
// open to any caller.
type Registry struct {
	mu      sync.RWMutex
	admin   [20]byte
	tokens  map[[20]byte]*Info
	emitter events.Emitter
	nowFn   func() int64
}

// NewRegistry constructs an empty registry owned by the supplied admin.
func NewRegistry(admin [20]byte) *Registry {
	return &Registry{
		admin:   admin,
		tokens:  make(map[[20]byte]*Info),
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
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

// AddToken registers a new settlement asset. Only the administrator may add
// tokens; duplicate addresses are rejected.
func (r *Registry) AddToken(caller [20]byte, info *Info) error {
	if caller != r.admin {
		return ErrUnauthorized
	}
	if err := info.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	if _, ok := r.tokens[info.Address]; ok {
		r.mu.Unlock()
		return ErrTokenExists
	}
	stored := info.Clone()
	stored.Symbol = strings.ToUpper(strings.TrimSpace(stored.Symbol))
	stored.AddedAt = r.nowFn()
	r.tokens[stored.Address] = stored
	r.mu.Unlock()
	r.emitter.Emit(newTokenAddedEvent(stored))
	return nil
}

// UpdateTokenStatus flips the active flag for a registered asset. Deactivated
// tokens are rejected for new escrows but existing escrows keep settling.
func (r *Registry) UpdateTokenStatus(caller [20]byte, addr [20]byte, active bool) error {
	if caller != r.admin {
		return ErrUnauthorized
	}
	r.mu.Lock()
	stored, ok := r.tokens[addr]
	if !ok {
		r.mu.Unlock()
		return ErrTokenNotFound
	}
	stored.Active = active
	clone := stored.Clone()
	r.mu.Unlock()
	r.emitter.Emit(newTokenStatusEvent(clone))
	return nil
}

// GetTokenInfo returns the registered definition for the supplied address.
func (r *Registry) GetTokenInfo(addr [20]byte) (*Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.tokens[addr]
	if !ok {
		return nil, false
	}
	return stored.Clone(), true
}

// IsActive reports whether the asset may be used for new escrows. The native
// asset is implicitly active.
func (r *Registry) IsActive(addr [20]byte) bool {
	if addr == NativeAsset {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.tokens[addr]
	return ok && stored.Active
}
