package engine

import (
	"time"

	"partpicker/ledger"
	"partpicker/store"
)

const (
	EventPickRecorded EventType = iota + 1
	EventPickUndone
	EventOverPick
	EventLedgerRefreshed
	EventRefreshFailed
	EventMessagingConnected
	EventMessagingDisconnected
)

var eventNames = map[EventType]string{
	EventPickRecorded:          "pick-recorded",
	EventPickUndone:            "pick-undone",
	EventOverPick:              "over-pick",
	EventLedgerRefreshed:       "ledger-refreshed",
	EventRefreshFailed:         "refresh-failed",
	EventMessagingConnected:    "messaging-connected",
	EventMessagingDisconnected: "messaging-disconnected",
}

// String returns the name used on the SSE stream.
func (t EventType) String() string {
	if n, ok := eventNames[t]; ok {
		return n
	}
	return "unknown"
}

type PickRecordedEvent struct {
	Event *store.PickEvent `json:"event"`
}

type PickUndoneEvent struct {
	Record *store.UndoRecord `json:"record"`
}

type OverPickEvent struct {
	Warning ledger.OverPickWarning `json:"warning"`
	Actor   string                 `json:"actor"`
}

type LedgerRefreshedEvent struct {
	Parts    int       `json:"parts"`
	Picks    int       `json:"picks"`
	LoadedAt time.Time `json:"loaded_at"`

	snapshot *ledger.Snapshot
}

type RefreshFailedEvent struct {
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

type ConnectionEvent struct {
	Detail string `json:"detail"`
}
