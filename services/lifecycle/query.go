package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"caravand/pkg/db"
)

// Queries serves the read-optimised projections the dashboards poll. It reads
// the same tables the controller writes; staleness is bounded by the caller's
// polling interval, the store stays the single source of truth.
type Queries struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewQueries creates the read-side view over the provided pool.
func NewQueries(pool *pgxpool.Pool) (*Queries, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &Queries{pool: pool, now: func() time.Time { return time.Now().UTC() }}, nil
}

// ActiveFilter narrows the active-operations view to one worker or station.
type ActiveFilter struct {
	WorkerID  int64
	StationID int64
}

// ActiveRow is one row of the active-operations projection.
type ActiveRow struct {
	ID             int64      `db:"id" json:"id"`
	StationID      int64      `db:"station_id" json:"station_id"`
	DefinitionID   int64      `db:"definition_id" json:"definition_id"`
	Status         string     `db:"status" json:"status"`
	TargetMinutes  int        `db:"target_minutes" json:"target_minutes"`
	ElapsedSeconds int64      `db:"elapsed_seconds" json:"-"`
	Progress       int        `db:"progress" json:"progress"`
	StartedAt      *time.Time `db:"started_at" json:"started_at"`
	ResumedAt      *time.Time `db:"resumed_at" json:"-"`
	ElapsedMinutes float64    `db:"-" json:"elapsed_minutes"`
}

// Active lists operations currently in progress or paused, optionally scoped
// to a worker or a station.
func (q *Queries) Active(ctx context.Context, f ActiveFilter) ([]ActiveRow, error) {
	query, args := activeQuery(f)

	var rows []ActiveRow
	if err := db.Select(ctx, q.pool, &rows, query, args...); err != nil {
		return nil, err
	}

	now := q.now()
	for i := range rows {
		rows[i].ElapsedMinutes = liveElapsed(Status(rows[i].Status), rows[i].ElapsedSeconds, rows[i].ResumedAt, now).Minutes()
	}
	return rows, nil
}

func activeQuery(f ActiveFilter) (string, []any) {
	query := `
        SELECT o.id, o.station_id, o.definition_id, o.status, o.target_minutes,
               o.elapsed_seconds, o.progress, o.started_at, o.resumed_at
        FROM operations o`
	where := ` WHERE o.status IN ('in_progress', 'paused')`

	var args []any
	if f.WorkerID > 0 {
		args = append(args, f.WorkerID)
		query += ` JOIN operation_assignments a ON a.operation_id = o.id`
		where += fmt.Sprintf(` AND a.worker_id = $%d`, len(args))
	}
	if f.StationID > 0 {
		args = append(args, f.StationID)
		where += fmt.Sprintf(` AND o.station_id = $%d`, len(args))
	}

	return query + where + ` ORDER BY o.started_at ASC NULLS LAST, o.id ASC`, args
}

// liveElapsed extends the frozen accumulated duration with the currently open
// interval when the operation is running.
func liveElapsed(status Status, elapsedSeconds int64, resumedAt *time.Time, now time.Time) time.Duration {
	d := time.Duration(elapsedSeconds) * time.Second
	if status == StatusInProgress && resumedAt != nil {
		d += now.Sub(*resumedAt)
	}
	return d
}

// StationReportRow aggregates execution totals for one station.
type StationReportRow struct {
	StationID       int64   `db:"station_id" json:"station_id"`
	StationCode     string  `db:"station_code" json:"station_code"`
	StationName     string  `db:"station_name" json:"station_name"`
	TotalOperations int64   `db:"total_operations" json:"total_operations"`
	Completed       int64   `db:"completed" json:"completed"`
	Active          int64   `db:"active" json:"active"`
	ElapsedMinutes  float64 `db:"elapsed_minutes" json:"elapsed_minutes"`
	PausedMinutes   float64 `db:"paused_minutes" json:"paused_minutes"`
}

// StationReport aggregates operation counts and durations per station.
func (q *Queries) StationReport(ctx context.Context) ([]StationReportRow, error) {
	query := `
        SELECT s.id AS station_id,
               s.code AS station_code,
               s.name AS station_name,
               COUNT(o.id) AS total_operations,
               COUNT(o.id) FILTER (WHERE o.status = 'completed') AS completed,
               COUNT(o.id) FILTER (WHERE o.status IN ('in_progress', 'paused')) AS active,
               COALESCE(SUM(o.elapsed_seconds), 0) / 60.0 AS elapsed_minutes,
               COALESCE((
                   SELECT SUM(EXTRACT(EPOCH FROM (COALESCE(p.resumed_at, now()) - p.paused_at)))
                   FROM operation_pauses p
                   JOIN operations po ON po.id = p.operation_id
                   WHERE po.station_id = s.id
               ), 0) / 60.0 AS paused_minutes
        FROM stations s
        LEFT JOIN operations o ON o.station_id = s.id
        GROUP BY s.id, s.code, s.name
        ORDER BY s.code ASC`

	var rows []StationReportRow
	if err := db.Select(ctx, q.pool, &rows, query); err != nil {
		return nil, err
	}
	return rows, nil
}
