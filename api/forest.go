package api

import "encoding/json"

// NodeRecord is the boundary shape of one hierarchy item, as read from a
// snapshot provider or written by an importer.
type NodeRecord struct {
	ID string `json:"id"`
	// ParentID is empty for roots.
	ParentID string          `json:"parent_id,omitempty"`
	Level    int             `json:"level"`
	Order    float64         `json:"order"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Fields is a partial update. Nil fields are unchanged.
// A non-nil ParentID pointing at "" means "make this a root".
type Fields struct {
	ParentID *string  `json:"parent_id,omitempty"`
	Level    *int     `json:"level,omitempty"`
	Order    *float64 `json:"order,omitempty"`
}

// Empty reports whether no field is set.
func (f Fields) Empty() bool {
	return f.ParentID == nil && f.Level == nil && f.Order == nil
}

// Change is the set of changed fields for a single node.
type Change struct {
	ID     string `json:"id"`
	Fields Fields `json:"fields"`
}

// Reason values reported in an Outcome.
const (
	ReasonCycleDetected    = "CycleDetected"
	ReasonInvalidDemotion  = "InvalidDemotion"
	ReasonPersistenceError = "PersistenceError"
	ReasonNoOp             = "NoOp"
	ReasonNotFound         = "NotFound"
	ReasonOrderExhausted   = "OrderExhausted"
	ReasonInternalError    = "InternalError"
)

// Outcome is the discriminated result handed back to a UI layer.
//
//	{applied: true, changed_ids: [...]}
//	{applied: false, reason: "CycleDetected" | "InvalidDemotion" | "NoOp" | "NotFound"}
//	{applied: false, reason: "PersistenceError", kind: "NetworkFailure" | "ServerRejected", detail: "..."}
//	{applied: false, reason: "OrderExhausted", detail: "..."}
//	{applied: false, reason: "InternalError", detail: "..."}
//
// OrderExhausted means the sibling gap at the drop point is too narrow for
// another float key; nothing was changed. InternalError covers anything
// else and is always carries a detail.
type Outcome struct {
	Applied    bool     `json:"applied"`
	ChangedIDs []string `json:"changed_ids,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Kind       string   `json:"kind,omitempty"`
	Detail     string   `json:"detail,omitempty"`
}
