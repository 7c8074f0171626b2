package journal

import (
	"testing"

	"github.com/google/uuid"

	"caravand/services/lifecycle"
)

func TestAuditRow(t *testing.T) {
	eventID := uuid.New()

	tests := []struct {
		name       string
		evt        lifecycle.Event
		wantActor  string
		wantAction string
		wantObj    string
	}{
		{
			name: "pause attributed to the acting worker",
			evt: lifecycle.Event{
				EventID:     eventID,
				Action:      "paused",
				OperationID: 7,
				StationID:   2,
				Status:      lifecycle.StatusPaused,
				ActorID:     14,
				WorkerIDs:   []int64{14, 15},
				Reason:      lifecycle.ReasonMaterialWait,
			},
			wantActor:  "worker/14",
			wantAction: "paused",
			wantObj:    "operation/7",
		},
		{
			name: "start attributed to the assigned crew",
			evt: lifecycle.Event{
				EventID:     eventID,
				Action:      "started",
				OperationID: 7,
				StationID:   2,
				Status:      lifecycle.StatusInProgress,
				WorkerIDs:   []int64{14, 15},
			},
			wantActor:  "workers/14,15",
			wantAction: "started",
			wantObj:    "operation/7",
		},
		{
			name: "create falls back to the system actor",
			evt: lifecycle.Event{
				EventID:     eventID,
				Action:      "created",
				OperationID: 9,
				StationID:   2,
				Status:      lifecycle.StatusPending,
			},
			wantActor:  "system",
			wantAction: "created",
			wantObj:    "operation/9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := auditRow(tt.evt)
			if row.Actor != tt.wantActor {
				t.Errorf("actor = %q, want %q", row.Actor, tt.wantActor)
			}
			if row.Action != tt.wantAction {
				t.Errorf("action = %q, want %q", row.Action, tt.wantAction)
			}
			if row.Obj != tt.wantObj {
				t.Errorf("obj = %q, want %q", row.Obj, tt.wantObj)
			}
			if row.Details["event_id"] != eventID.String() {
				t.Errorf("details event_id = %v, want %s", row.Details["event_id"], eventID)
			}
		})
	}
}

func TestAuditRowOptionalDetails(t *testing.T) {
	progress := 40
	evt := lifecycle.Event{
		EventID:     uuid.New(),
		Action:      "progress",
		OperationID: 3,
		StationID:   1,
		Status:      lifecycle.StatusInProgress,
		Progress:    &progress,
	}

	row := auditRow(evt)
	if got, ok := row.Details["progress"]; !ok || got != 40 {
		t.Fatalf("details progress = %v, want 40", got)
	}
	if _, ok := row.Details["reason"]; ok {
		t.Fatalf("details should not carry a reason for progress events")
	}

	evt.Reason = lifecycle.ReasonBreak
	row = auditRow(evt)
	if got := row.Details["reason"]; got != string(lifecycle.ReasonBreak) {
		t.Fatalf("details reason = %v, want %s", got, lifecycle.ReasonBreak)
	}
}
