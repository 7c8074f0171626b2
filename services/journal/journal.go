package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"caravand/pkg/bus"
	"caravand/pkg/db"
	"caravand/services/lifecycle"
)

const (
	operationsSubject = "caravand.operations.>"
	durableName       = "journal-operations"
	systemActor       = "system"
)

// Journal consumes lifecycle events from the bus and projects them into the
// audit table read by the dashboard's activity feed.
type Journal struct {
	pool *pgxpool.Pool
	bus  *bus.Bus

	subMu sync.Mutex
	sub   io.Closer
}

// New constructs a Journal for the provided dependencies.
func New(pool *pgxpool.Pool, bus *bus.Bus) (*Journal, error) {
	if pool == nil {
		return nil, errors.New("database pool is required")
	}
	if bus == nil {
		return nil, errors.New("bus is required")
	}
	return &Journal{pool: pool, bus: bus}, nil
}

// Start subscribes to operation lifecycle events and processes them until ctx
// is cancelled.
func (j *Journal) Start(ctx context.Context) error {
	if j == nil {
		return errors.New("nil journal")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	sub, err := j.bus.Subscribe(ctx, operationsSubject, durableName, j.handleEvent)
	if err != nil {
		return err
	}

	j.subMu.Lock()
	j.sub = sub
	j.subMu.Unlock()

	return nil
}

// Close stops the underlying subscription if it was created.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}

	j.subMu.Lock()
	defer j.subMu.Unlock()

	if j.sub == nil {
		return nil
	}
	err := j.sub.Close()
	j.sub = nil
	return err
}

func (j *Journal) handleEvent(ctx context.Context, subject string, data []byte) error {
	var evt lifecycle.Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return err
	}
	if evt.OperationID == 0 {
		return errors.New("operation_id missing from lifecycle event")
	}

	row := auditRow(evt)
	details, err := json.Marshal(row.Details)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO audit (actor, action, obj, details, at)
        VALUES ($1, $2, $3, $4::jsonb, $5)`
	_, err = db.Exec(ctx, j.pool, query, row.Actor, row.Action, row.Obj, string(details), evt.OccurredAt)
	return err
}

type entry struct {
	Actor   string
	Action  string
	Obj     string
	Details map[string]any
}

// auditRow shapes one lifecycle event into an audit entry. The actor is the
// pausing worker when known, otherwise the assigned workers, otherwise the
// system.
func auditRow(evt lifecycle.Event) entry {
	actor := systemActor
	switch {
	case evt.ActorID > 0:
		actor = "worker/" + strconv.FormatInt(evt.ActorID, 10)
	case len(evt.WorkerIDs) > 0:
		parts := make([]string, 0, len(evt.WorkerIDs))
		for _, id := range evt.WorkerIDs {
			parts = append(parts, strconv.FormatInt(id, 10))
		}
		actor = "workers/" + strings.Join(parts, ",")
	}

	details := map[string]any{
		"event_id":   evt.EventID.String(),
		"station_id": evt.StationID,
		"status":     string(evt.Status),
	}
	if evt.Reason != "" {
		details["reason"] = string(evt.Reason)
	}
	if evt.Progress != nil {
		details["progress"] = *evt.Progress
	}

	return entry{
		Actor:   actor,
		Action:  evt.Action,
		Obj:     fmt.Sprintf("operation/%d", evt.OperationID),
		Details: details,
	}
}
