package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	SubjectOperationCreated   = "caravand.operations.created"
	SubjectOperationStarted   = "caravand.operations.started"
	SubjectOperationPaused    = "caravand.operations.paused"
	SubjectOperationResumed   = "caravand.operations.resumed"
	SubjectOperationCompleted = "caravand.operations.completed"
	SubjectOperationProgress  = "caravand.operations.progress"
)

// Publisher abstracts the event bus so the controller can be exercised
// without a broker. pkg/bus satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// Event is emitted after every applied transition. The journal service
// projects these into the audit table.
type Event struct {
	EventID     uuid.UUID   `json:"event_id"`
	Action      string      `json:"action"`
	OperationID int64       `json:"operation_id"`
	StationID   int64       `json:"station_id"`
	Status      Status      `json:"status"`
	WorkerIDs   []int64     `json:"worker_ids,omitempty"`
	ActorID     int64       `json:"actor_id,omitempty"`
	Reason      PauseReason `json:"reason,omitempty"`
	Progress    *int        `json:"progress,omitempty"`
	OccurredAt  time.Time   `json:"occurred_at"`
}
