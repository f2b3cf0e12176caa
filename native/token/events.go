package token

import (
	"encoding/hex"
	"strconv"

	"clearhold/core/types"
)

const (
	// EventTypeTokenAdded is emitted when a settlement asset joins the registry.
	EventTypeTokenAdded = "token.added"
	// EventTypeTokenStatusUpdated is emitted when an asset's active flag flips.
	EventTypeTokenStatusUpdated = "token.statusUpdated"
)

type tokenEvent struct {
	evt *types.Event
}

func (e tokenEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

// Event returns the underlying typed payload.
func (e tokenEvent) Event() *types.Event { return e.evt }

func newTokenAddedEvent(info *Info) tokenEvent {
	return tokenEvent{evt: newTokenEvent(EventTypeTokenAdded, info)}
}

func newTokenStatusEvent(info *Info) tokenEvent {
	return tokenEvent{evt: newTokenEvent(EventTypeTokenStatusUpdated, info)}
}

func newTokenEvent(eventType string, info *Info) *types.Event {
	attrs := make(map[string]string)
	if info == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["address"] = hex.EncodeToString(info.Address[:])
	attrs["chainId"] = strconv.FormatUint(info.ChainID, 10)
	attrs["symbol"] = info.Symbol
	attrs["decimals"] = strconv.FormatUint(uint64(info.Decimals), 10)
	attrs["active"] = strconv.FormatBool(info.Active)
	return &types.Event{Type: eventType, Attributes: attrs}
}
