package dispute

import (
	"encoding/hex"
	"strconv"

	"clearhold/core/types"
)

const (
	// EventTypeCaseFiled is emitted when an escrow is contested.
	EventTypeCaseFiled = "dispute.caseFiled"
	// EventTypeCaseResolved is emitted when an arbitrated outcome is recorded.
	EventTypeCaseResolved = "dispute.caseResolved"
	// EventTypeArbitratorRegistered is emitted when a stake is posted.
	EventTypeArbitratorRegistered = "dispute.arbitratorRegistered"
	// EventTypeArbitratorDeactivated is emitted when a stake is withdrawn.
	EventTypeArbitratorDeactivated = "dispute.arbitratorDeactivated"
)

type disputeEvent struct {
	evt *types.Event
}

func (e disputeEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

// Event returns the underlying typed payload.
func (e disputeEvent) Event() *types.Event { return e.evt }

func newCaseFiledEvent(c *Case) disputeEvent {
	return disputeEvent{evt: newCaseEvent(EventTypeCaseFiled, c)}
}

func newCaseResolvedEvent(c *Case) disputeEvent {
	return disputeEvent{evt: newCaseEvent(EventTypeCaseResolved, c)}
}

func newCaseEvent(eventType string, c *Case) *types.Event {
	attrs := make(map[string]string)
	if c == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["escrowId"] = strconv.FormatUint(c.EscrowID, 10)
	attrs["initiator"] = hex.EncodeToString(c.Initiator[:])
	attrs["outcome"] = c.Outcome.String()
	attrs["filedAt"] = strconv.FormatInt(c.FiledAt, 10)
	if c.Arbitrator != ([20]byte{}) {
		attrs["arbitrator"] = hex.EncodeToString(c.Arbitrator[:])
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newArbitratorRegisteredEvent(a *Arbitrator) disputeEvent {
	return disputeEvent{evt: newArbitratorEvent(EventTypeArbitratorRegistered, a)}
}

func newArbitratorDeactivatedEvent(a *Arbitrator) disputeEvent {
	return disputeEvent{evt: newArbitratorEvent(EventTypeArbitratorDeactivated, a)}
}

func newArbitratorEvent(eventType string, a *Arbitrator) *types.Event {
	attrs := make(map[string]string)
	if a == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["arbitrator"] = hex.EncodeToString(a.Address[:])
	attrs["active"] = strconv.FormatBool(a.Active)
	attrs["totalCases"] = strconv.FormatUint(a.TotalCases, 10)
	if a.Stake != nil {
		attrs["stake"] = a.Stake.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
