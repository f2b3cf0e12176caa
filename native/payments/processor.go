package payments

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
)

const (
	// DefaultProtocolFeeBps is the protocol share applied by CalculateFees.
	DefaultProtocolFeeBps uint32 = 200
	// DefaultReferrerFeeBps is the referrer share applied when a referrer is
	// supplied to CalculateFees.
	DefaultReferrerFeeBps uint32 = 50
	// DefaultPlatformFeeBps is the escrow platform fee retained at funding
	// time. It is a separate schedule from the protocol/referrer split.
	DefaultPlatformFeeBps uint32 = 250

	bpsDenominator = 10_000
)

var (
	// ErrUnauthorized marks mutating calls from a caller other than the
	// registered escrow manager.
	ErrUnauthorized = errors.New("payments: caller is not the escrow manager")
	// ErrFeeBpsOutOfRange rejects fee configurations above 100%.
	ErrFeeBpsOutOfRange = errors.New("payments: fee bps out of range")
	// ErrNilLedger is returned when a transfer is requested before the ledger
	// has been wired.
	ErrNilLedger = errors.New("payments: ledger not configured")
)

// Ledger is the value-transfer primitive consumed from the environment. A call
// either fully succeeds or fails with no balance change.
type Ledger interface {
	Transfer(from, to [20]byte, asset [20]byte, amount *big.Int) error
}

// FeeBreakdown is the result of CalculateFees. Referrer echoes the input when
// a referrer was supplied and is the zero address otherwise.
type FeeBreakdown struct {
	ProtocolFee *big.Int
	ReferrerFee *big.Int
	Referrer    [20]byte
}

// Processor performs fee computation and executes transfers on behalf of the
// escrow manager. It is stateless aside from the supported-token allow-list
// and the authorized manager address.
type Processor struct {
	mu             sync.RWMutex
	manager        [20]byte
	ledger         Ledger
	supported      map[[20]byte]bool
	protocolFeeBps uint32
	referrerFeeBps uint32
	platformFeeBps uint32
}

// NewProcessor constructs a processor with the default fee schedules.
func NewProcessor() *Processor {
	return &Processor{
		supported:      make(map[[20]byte]bool),
		protocolFeeBps: DefaultProtocolFeeBps,
		referrerFeeBps: DefaultReferrerFeeBps,
		platformFeeBps: DefaultPlatformFeeBps,
	}
}

// SetManager registers the escrow manager address authorized to call mutating
// entry points.
func (p *Processor) SetManager(addr [20]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.manager = addr
}

// SetLedger wires the value-transfer primitive.
func (p *Processor) SetLedger(ledger Ledger) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ledger = ledger
}

// SetFeeBps overrides the protocol and referrer fee schedules.
func (p *Processor) SetFeeBps(protocolBps, referrerBps uint32) error {
	if protocolBps > bpsDenominator || referrerBps > bpsDenominator {
		return ErrFeeBpsOutOfRange
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.protocolFeeBps = protocolBps
	p.referrerFeeBps = referrerBps
	return nil
}

// SetPlatformFeeBps overrides the escrow platform fee schedule.
func (p *Processor) SetPlatformFeeBps(bps uint32) error {
	if bps > bpsDenominator {
		return ErrFeeBpsOutOfRange
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.platformFeeBps = bps
	return nil
}

// CalculateFees returns the protocol/referrer fee split for the supplied gross
// amount. The function is pure: it never mutates processor state and is
// deterministic given its inputs.
func (p *Processor) CalculateFees(amount *big.Int, referrer [20]byte) FeeBreakdown {
	p.mu.RLock()
	protocolBps := p.protocolFeeBps
	referrerBps := p.referrerFeeBps
	p.mu.RUnlock()
	result := FeeBreakdown{ProtocolFee: big.NewInt(0), ReferrerFee: big.NewInt(0)}
	if amount == nil || amount.Sign() <= 0 {
		return result
	}
	result.ProtocolFee = feeportion(amount, protocolBps)
	if referrer != ([20]byte{}) {
		result.Referrer = referrer
		result.ReferrerFee = feeportion(amount, referrerBps)
	}
	return result
}

// PlatformFee computes the platform fee retained by the escrow manager at
// funding time. It uses the platform schedule, not the protocol split.
func (p *Processor) PlatformFee(amount *big.Int) *big.Int {
	p.mu.RLock()
	bps := p.platformFeeBps
	p.mu.RUnlock()
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	return feeportion(amount, bps)
}

func feeportion(amount *big.Int, bps uint32) *big.Int {
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(bps)))
	return fee.Div(fee, big.NewInt(bpsDenominator))
}

// SetSupportedToken toggles an asset on the processor allow-list. Restricted
// to the registered escrow manager.
func (p *Processor) SetSupportedToken(caller [20]byte, asset [20]byte, supported bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if caller != p.manager {
		return ErrUnauthorized
	}
	if supported {
		p.supported[asset] = true
	} else {
		delete(p.supported, asset)
	}
	return nil
}

// IsTokenSupported reports whether the asset is on the allow-list. The native
// zero asset is always implicitly supported.
func (p *Processor) IsTokenSupported(asset [20]byte) bool {
	if asset == ([20]byte{}) {
		return true
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.supported[asset]
}

// ExecuteTransfer moves funds over the wired ledger on behalf of the escrow
// manager. The transfer either fully succeeds or the call fails with no
// balance change.
func (p *Processor) ExecuteTransfer(caller [20]byte, from, to [20]byte, asset [20]byte, amount *big.Int) error {
	p.mu.RLock()
	manager := p.manager
	ledger := p.ledger
	p.mu.RUnlock()
	if caller != manager {
		return ErrUnauthorized
	}
	if ledger == nil {
		return ErrNilLedger
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("payments: invalid transfer amount")
	}
	if amount.Sign() == 0 {
		return nil
	}
	return ledger.Transfer(from, to, asset, amount)
}
