package escrow

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"clearhold/core/types"
)

const (
	EventTypeEscrowCreated   = "escrow.created"
	EventTypeEscrowFunded    = "escrow.funded"
	EventTypeEscrowReleased  = "escrow.released"
	EventTypeEscrowCompleted = "escrow.completed"
	EventTypeEscrowDisputed  = "escrow.disputed"
	EventTypeEscrowResolved  = "escrow.resolved"
	EventTypeEscrowCancelled = "escrow.cancelled"
	EventTypeEscrowExpired   = "escrow.expired"
)

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

// Event returns the underlying typed payload.
func (e escrowEvent) Event() *types.Event { return e.evt }

func newCreatedEvent(esc *Escrow) escrowEvent {
	return escrowEvent{evt: baseEvent(EventTypeEscrowCreated, esc)}
}

func newFundedEvent(esc *Escrow) escrowEvent {
	return escrowEvent{evt: baseEvent(EventTypeEscrowFunded, esc)}
}

func newReleasedEvent(esc *Escrow, payout *big.Int, milestoneIndex int) escrowEvent {
	evt := baseEvent(EventTypeEscrowReleased, esc)
	if evt.Attributes != nil {
		if payout != nil {
			evt.Attributes["payout"] = payout.String()
		}
		if len(esc.Milestones) > 0 {
			evt.Attributes["milestone"] = strconv.Itoa(milestoneIndex)
		}
	}
	return escrowEvent{evt: evt}
}

func newCompletedEvent(esc *Escrow) escrowEvent {
	return escrowEvent{evt: baseEvent(EventTypeEscrowCompleted, esc)}
}

func newDisputedEvent(esc *Escrow, initiator [20]byte) escrowEvent {
	evt := baseEvent(EventTypeEscrowDisputed, esc)
	if evt.Attributes != nil {
		evt.Attributes["initiator"] = hex.EncodeToString(initiator[:])
	}
	return escrowEvent{evt: evt}
}

func newResolvedEvent(esc *Escrow) escrowEvent {
	evt := baseEvent(EventTypeEscrowResolved, esc)
	if evt.Attributes != nil && esc != nil {
		evt.Attributes["outcome"] = esc.ResolveOutcome
	}
	return escrowEvent{evt: evt}
}

func newCancelledEvent(esc *Escrow) escrowEvent {
	return escrowEvent{evt: baseEvent(EventTypeEscrowCancelled, esc)}
}

func newExpiredEvent(esc *Escrow) escrowEvent {
	return escrowEvent{evt: baseEvent(EventTypeEscrowExpired, esc)}
}

func baseEvent(eventType string, esc *Escrow) *types.Event {
	attrs := make(map[string]string)
	if esc == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(esc.ID, 10)
	attrs["buyer"] = hex.EncodeToString(esc.Buyer[:])
	attrs["seller"] = hex.EncodeToString(esc.Seller[:])
	attrs["asset"] = hex.EncodeToString(esc.Asset[:])
	if esc.Amount != nil {
		attrs["amount"] = esc.Amount.String()
	}
	if esc.PlatformFee != nil {
		attrs["platformFee"] = esc.PlatformFee.String()
	}
	attrs["status"] = esc.Status.String()
	return &types.Event{Type: eventType, Attributes: attrs}
}
