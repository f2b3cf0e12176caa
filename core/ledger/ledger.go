package ledger

import (
	"errors"
	"math/big"
	"sync"
)

var (
	// ErrInsufficientBalance marks transfers exceeding the sender's balance.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	// ErrInvalidAmount marks nil or negative transfer amounts.
	ErrInvalidAmount = errors.New("ledger: invalid amount")
)

// Ledger is an in-memory value-transfer substrate tracking per-asset account
// balances. Each transfer is atomic: it either fully succeeds or fails with no
// balance change. Production deployments substitute the real settlement layer
// behind the same Transfer signature.
type Ledger struct {
	mu       sync.Mutex
	balances map[[20]byte]map[[20]byte]*big.Int
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{balances: make(map[[20]byte]map[[20]byte]*big.Int)}
}

func (l *Ledger) balance(addr [20]byte, asset [20]byte) *big.Int {
	assets, ok := l.balances[addr]
	if !ok {
		return big.NewInt(0)
	}
	bal, ok := assets[asset]
	if !ok || bal == nil {
		return big.NewInt(0)
	}
	return bal
}

func (l *Ledger) setBalance(addr [20]byte, asset [20]byte, amount *big.Int) {
	assets, ok := l.balances[addr]
	if !ok {
		assets = make(map[[20]byte]*big.Int)
		l.balances[addr] = assets
	}
	assets[asset] = amount
}

// Mint credits the account with new units of the asset. Used to seed the
// substrate in tests and local deployments.
func (l *Ledger) Mint(addr [20]byte, asset [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setBalance(addr, asset, new(big.Int).Add(l.balance(addr, asset), amount))
	return nil
}

// Transfer atomically moves amount of asset between accounts.
func (l *Ledger) Transfer(from, to [20]byte, asset [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fromBal := l.balance(from, asset)
	if fromBal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	l.setBalance(from, asset, new(big.Int).Sub(fromBal, amount))
	l.setBalance(to, asset, new(big.Int).Add(l.balance(to, asset), amount))
	return nil
}

// Balance returns the account's balance for the asset.
func (l *Ledger) Balance(addr [20]byte, asset [20]byte) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balance(addr, asset))
}
