package lifecycle

// Status is the lifecycle state of an operation instance.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether no further transitions are accepted from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// PauseReason categorises why an operation was halted.
type PauseReason string

const (
	ReasonMaterialWait     PauseReason = "material_wait"
	ReasonEquipmentFailure PauseReason = "equipment_failure"
	ReasonBreak            PauseReason = "break"
	ReasonOther            PauseReason = "other"
)

// ValidReason reports whether r is one of the enumerated pause reasons.
func ValidReason(r PauseReason) bool {
	switch r {
	case ReasonMaterialWait, ReasonEquipmentFailure, ReasonBreak, ReasonOther:
		return true
	default:
		return false
	}
}
