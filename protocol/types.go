package protocol

// Message types. Notices carry only enough to decide whether to refresh;
// receivers always reload state from the shared store.
const (
	TypeLedgerChanged = "ledger.changed"
	TypeDemandChanged = "demand.changed"
)

// Roles for Address.Role.
const (
	RoleStation = "station"
	RoleTool    = "tool" // command-line tools that write to the shared store
)

// Protocol version.
const Version = 1

// Change reasons carried in LedgerChanged.
const (
	ReasonPickRecorded = "pick.recorded"
	ReasonPickUndone   = "pick.undone"
	ReasonUndoQuantity = "pick.undo_quantity"
	ReasonBatch        = "pick.batch"
)

// LedgerChanged announces committed pick writes.
type LedgerChanged struct {
	Reason        string  `json:"reason"`
	DemandLineIDs []int64 `json:"demand_line_ids,omitempty"`
	ToolIDs       []int64 `json:"tool_ids,omitempty"`
	EventIDs      []int64 `json:"event_ids,omitempty"`
}

// DemandChanged announces edits to orders, tools or demand lines made by
// the surrounding application.
type DemandChanged struct {
	OrderIDs []int64 `json:"order_ids,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}
