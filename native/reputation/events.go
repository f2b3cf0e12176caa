package reputation

import (
	"encoding/hex"
	"strconv"

	"clearhold/core/types"
)

const (
	// EventTypeUserRegistered is emitted when a participant record is created.
	EventTypeUserRegistered = "reputation.userRegistered"
	// EventTypeScoreUpdated is emitted on every score mutation.
	EventTypeScoreUpdated = "reputation.scoreUpdated"
)

type reputationEvent struct {
	evt *types.Event
}

func (e reputationEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

// Event returns the underlying typed payload.
func (e reputationEvent) Event() *types.Event { return e.evt }

func newUserRegisteredEvent(record *Record) reputationEvent {
	return reputationEvent{evt: newRecordEvent(EventTypeUserRegistered, record)}
}

func newScoreUpdatedEvent(record *Record) reputationEvent {
	return reputationEvent{evt: newRecordEvent(EventTypeScoreUpdated, record)}
}

func newRecordEvent(eventType string, record *Record) *types.Event {
	attrs := make(map[string]string)
	if record == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["address"] = hex.EncodeToString(record.Address[:])
	attrs["score"] = strconv.FormatUint(uint64(record.Score), 10)
	attrs["totalTransactions"] = strconv.FormatUint(record.TotalTransactions, 10)
	attrs["completedTransactions"] = strconv.FormatUint(record.CompletedTransactions, 10)
	attrs["disputeCount"] = strconv.FormatUint(record.DisputeCount, 10)
	if record.TotalVolume != nil {
		attrs["totalVolume"] = record.TotalVolume.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
