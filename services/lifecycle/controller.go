package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Controller is the sole authority for operation state transitions. Each
// transition is applied atomically inside a database transaction, and
// transitions for the same operation id are serialised by a per-id lock so a
// losing concurrent request is evaluated against the post-winner state.
type Controller struct {
	orm   *gorm.DB
	bus   Publisher
	now   func() time.Time
	locks opLocks
}

// NewController creates a controller bound to the provided dependencies. The
// bus may be nil, in which case no events are published.
func NewController(orm *gorm.DB, bus Publisher) (*Controller, error) {
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	return &Controller{
		orm: orm,
		bus: bus,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// CreateInput describes a new operation instance to enqueue at a station.
type CreateInput struct {
	StationID     int64
	DefinitionID  int64
	TargetMinutes int
	QualityCheck  bool
}

// Create instantiates a pending operation at a station. This is the point
// where a production plan becomes a tracked execution.
func (c *Controller) Create(ctx context.Context, in CreateInput) (Operation, error) {
	if in.StationID <= 0 {
		return Operation{}, &ValidationError{Field: "station_id", Detail: "must be a positive id"}
	}
	if in.DefinitionID <= 0 {
		return Operation{}, &ValidationError{Field: "definition_id", Detail: "must be a positive id"}
	}
	if in.TargetMinutes <= 0 {
		return Operation{}, &ValidationError{Field: "target_minutes", Detail: "must be positive"}
	}

	model := operationModel{
		StationID:     in.StationID,
		DefinitionID:  in.DefinitionID,
		Status:        string(StatusPending),
		TargetMinutes: in.TargetMinutes,
		QualityCheck:  in.QualityCheck,
	}
	if err := c.orm.WithContext(ctx).Create(&model).Error; err != nil {
		return Operation{}, err
	}

	out := model.toAPI(c.now(), nil)
	c.publish(ctx, SubjectOperationCreated, "created", out, 0, "", nil)
	return out, nil
}

// Get returns one operation with its worker assignments and live elapsed time.
func (c *Controller) Get(ctx context.Context, operationID int64) (Operation, error) {
	orm := c.orm.WithContext(ctx)

	op, err := loadOperation(orm, operationID)
	if err != nil {
		return Operation{}, err
	}
	workers, err := assignedWorkers(orm, operationID)
	if err != nil {
		return Operation{}, err
	}
	return op.toAPI(c.now(), workers), nil
}

// Start begins a pending operation, or resumes a paused one. Starting from
// pending requires at least one worker; from paused the open pause entry is
// closed and accumulation continues from the frozen value.
func (c *Controller) Start(ctx context.Context, operationID int64, workerIDs []int64) (Operation, error) {
	ids, err := normalizeWorkerIDs(workerIDs)
	if err != nil {
		return Operation{}, err
	}

	unlock := c.locks.acquire(operationID)
	defer unlock()

	var (
		out     Operation
		subject string
		action  string
	)
	err = c.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		op, err := loadOperation(tx, operationID)
		if err != nil {
			return err
		}

		now := c.now()
		switch Status(op.Status) {
		case StatusPending:
			if len(ids) == 0 {
				return &ValidationError{Field: "worker_ids", Detail: "at least one worker is required to start"}
			}
			op.Status = string(StatusInProgress)
			op.StartedAt = &now
			op.ResumedAt = &now
			subject, action = SubjectOperationStarted, "started"
		case StatusPaused:
			if err := closePause(tx, operationID, now); err != nil {
				return err
			}
			op.Status = string(StatusInProgress)
			op.ResumedAt = &now
			subject, action = SubjectOperationResumed, "resumed"
		default:
			return &InvalidTransitionError{OperationID: operationID, Current: Status(op.Status), Action: "start"}
		}

		if err := assignWorkers(tx, operationID, ids, now); err != nil {
			return err
		}
		if err := tx.Save(&op).Error; err != nil {
			return err
		}

		all, err := assignedWorkers(tx, operationID)
		if err != nil {
			return err
		}
		out = op.toAPI(now, all)
		return nil
	})
	if err != nil {
		return Operation{}, err
	}

	c.publish(ctx, subject, action, out, 0, "", nil)
	return out, nil
}

// Pause halts a running operation, freezing elapsed time and opening a ledger
// entry with the given reason.
func (c *Controller) Pause(ctx context.Context, operationID int64, reason PauseReason, description string, actorID int64) (Operation, error) {
	if reason == "" {
		return Operation{}, &ValidationError{Field: "reason", Detail: "reason is required"}
	}
	if !ValidReason(reason) {
		return Operation{}, &ValidationError{Field: "reason", Detail: fmt.Sprintf("unknown pause reason %q", reason)}
	}

	unlock := c.locks.acquire(operationID)
	defer unlock()

	var out Operation
	err := c.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		op, err := loadOperation(tx, operationID)
		if err != nil {
			return err
		}
		if Status(op.Status) != StatusInProgress {
			return &InvalidTransitionError{OperationID: operationID, Current: Status(op.Status), Action: "pause"}
		}

		now := c.now()
		op.ElapsedSeconds += accruedSeconds(op.ResumedAt, now)
		op.ResumedAt = nil
		op.Status = string(StatusPaused)

		if _, err := openPause(tx, operationID, reason, description, actorID, now); err != nil {
			return err
		}
		if err := tx.Save(&op).Error; err != nil {
			return err
		}

		all, err := assignedWorkers(tx, operationID)
		if err != nil {
			return err
		}
		out = op.toAPI(now, all)
		return nil
	})
	if err != nil {
		return Operation{}, err
	}

	c.publish(ctx, SubjectOperationPaused, "paused", out, actorID, reason, nil)
	return out, nil
}

// Resume continues a paused operation, closing the open pause entry.
func (c *Controller) Resume(ctx context.Context, operationID int64) (Operation, error) {
	unlock := c.locks.acquire(operationID)
	defer unlock()

	var out Operation
	err := c.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		op, err := loadOperation(tx, operationID)
		if err != nil {
			return err
		}
		if Status(op.Status) != StatusPaused {
			return &InvalidTransitionError{OperationID: operationID, Current: Status(op.Status), Action: "resume"}
		}

		now := c.now()
		if err := closePause(tx, operationID, now); err != nil {
			return err
		}
		op.Status = string(StatusInProgress)
		op.ResumedAt = &now
		if err := tx.Save(&op).Error; err != nil {
			return err
		}

		all, err := assignedWorkers(tx, operationID)
		if err != nil {
			return err
		}
		out = op.toAPI(now, all)
		return nil
	})
	if err != nil {
		return Operation{}, err
	}

	c.publish(ctx, SubjectOperationResumed, "resumed", out, 0, "", nil)
	return out, nil
}

// Complete finishes a running or paused operation, closing any open pause
// entry, finalising elapsed time and forcing progress to 100.
func (c *Controller) Complete(ctx context.Context, operationID int64) (Operation, error) {
	unlock := c.locks.acquire(operationID)
	defer unlock()

	var out Operation
	err := c.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		op, err := loadOperation(tx, operationID)
		if err != nil {
			return err
		}

		now := c.now()
		switch Status(op.Status) {
		case StatusInProgress:
			op.ElapsedSeconds += accruedSeconds(op.ResumedAt, now)
		case StatusPaused:
			if err := closePause(tx, operationID, now); err != nil {
				return err
			}
		default:
			return &InvalidTransitionError{OperationID: operationID, Current: Status(op.Status), Action: "complete"}
		}

		op.ResumedAt = nil
		op.Status = string(StatusCompleted)
		op.CompletedAt = &now
		op.Progress = 100
		if err := tx.Save(&op).Error; err != nil {
			return err
		}

		all, err := assignedWorkers(tx, operationID)
		if err != nil {
			return err
		}
		out = op.toAPI(now, all)
		return nil
	})
	if err != nil {
		return Operation{}, err
	}

	c.publish(ctx, SubjectOperationCompleted, "completed", out, 0, "", nil)
	return out, nil
}

// UpdateProgress records a progress percentage, clamped to [0,100]. Legal in
// any non-terminal state; the status is not altered.
func (c *Controller) UpdateProgress(ctx context.Context, operationID int64, progress int) (Operation, error) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	unlock := c.locks.acquire(operationID)
	defer unlock()

	var out Operation
	err := c.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		op, err := loadOperation(tx, operationID)
		if err != nil {
			return err
		}
		if Status(op.Status).Terminal() {
			return &InvalidTransitionError{OperationID: operationID, Current: Status(op.Status), Action: "update_progress"}
		}

		op.Progress = progress
		if err := tx.Save(&op).Error; err != nil {
			return err
		}

		all, err := assignedWorkers(tx, operationID)
		if err != nil {
			return err
		}
		out = op.toAPI(c.now(), all)
		return nil
	})
	if err != nil {
		return Operation{}, err
	}

	c.publish(ctx, SubjectOperationProgress, "progress", out, 0, "", &progress)
	return out, nil
}

func (c *Controller) publish(ctx context.Context, subject, action string, op Operation, actorID int64, reason PauseReason, progress *int) {
	if c.bus == nil || subject == "" {
		return
	}

	evt := Event{
		EventID:     uuid.New(),
		Action:      action,
		OperationID: op.ID,
		StationID:   op.StationID,
		Status:      op.Status,
		WorkerIDs:   op.WorkerIDs,
		ActorID:     actorID,
		Reason:      reason,
		Progress:    progress,
		OccurredAt:  c.now(),
	}
	if err := c.bus.Publish(ctx, subject, evt); err != nil {
		log.Warn().Err(err).Str("subject", subject).Int64("operation_id", op.ID).Msg("publish lifecycle event")
	}
}

func loadOperation(tx *gorm.DB, id int64) (operationModel, error) {
	var op operationModel
	if err := tx.First(&op, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return operationModel{}, &NotFoundError{Kind: "operation", ID: id}
		}
		return operationModel{}, err
	}
	return op, nil
}

func assignWorkers(tx *gorm.DB, operationID int64, workerIDs []int64, at time.Time) error {
	for _, id := range workerIDs {
		row := assignmentModel{OperationID: operationID, WorkerID: id, AssignedAt: at}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

func assignedWorkers(tx *gorm.DB, operationID int64) ([]int64, error) {
	var rows []assignmentModel
	if err := tx.Where("operation_id = ?", operationID).Find(&rows).Error; err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(rows))
	for i := range rows {
		ids = append(ids, rows[i].WorkerID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func normalizeWorkerIDs(ids []int64) ([]int64, error) {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return nil, &ValidationError{Field: "worker_ids", Detail: fmt.Sprintf("invalid worker id %d", id)}
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func accruedSeconds(since *time.Time, now time.Time) int64 {
	if since == nil {
		return 0
	}
	return int64(now.Sub(*since) / time.Second)
}

// opLocks hands out one mutex per operation id so transitions for the same
// operation are strictly serialised while distinct operations proceed in
// parallel.
type opLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func (l *opLocks) acquire(id int64) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[int64]*sync.Mutex)
	}
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
