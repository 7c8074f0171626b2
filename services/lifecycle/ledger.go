package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Ledger is the append-mostly history of why and for how long operations were
// halted. The "at most one open entry per operation" invariant lives here, not
// in any caller.
type Ledger struct {
	orm *gorm.DB
	now func() time.Time
}

// NewLedger creates a ledger bound to the provided database handle.
func NewLedger(orm *gorm.DB) (*Ledger, error) {
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	return &Ledger{orm: orm, now: func() time.Time { return time.Now().UTC() }}, nil
}

// OpenPause appends a new open entry for the operation. Fails with
// ConflictError if an open entry already exists.
func (l *Ledger) OpenPause(ctx context.Context, operationID int64, reason PauseReason, description string, actorID int64) (PauseEntry, error) {
	if !ValidReason(reason) {
		return PauseEntry{}, &ValidationError{Field: "reason", Detail: fmt.Sprintf("unknown pause reason %q", reason)}
	}

	var entry pauseModel
	err := l.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = openPause(tx, operationID, reason, description, actorID, l.now())
		return err
	})
	if err != nil {
		return PauseEntry{}, err
	}
	return entry.toAPI(), nil
}

// ClosePause stamps the resume time on the operation's open entry. Closing
// when no entry is open is a no-op, so the call is idempotent.
func (l *Ledger) ClosePause(ctx context.Context, operationID int64) error {
	return closePause(l.orm.WithContext(ctx), operationID, l.now())
}

// ListPauses returns all entries for the operation ordered by pause timestamp
// ascending. Repeated calls with no intervening writes return identical
// sequences.
func (l *Ledger) ListPauses(ctx context.Context, operationID int64) ([]PauseEntry, error) {
	var rows []pauseModel
	err := l.orm.WithContext(ctx).
		Where("operation_id = ?", operationID).
		Order("paused_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]PauseEntry, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toAPI())
	}
	return out, nil
}

func openPause(tx *gorm.DB, operationID int64, reason PauseReason, description string, actorID int64, at time.Time) (pauseModel, error) {
	var open int64
	err := tx.Model(&pauseModel{}).
		Where("operation_id = ? AND resumed_at IS NULL", operationID).
		Count(&open).Error
	if err != nil {
		return pauseModel{}, err
	}
	if open > 0 {
		return pauseModel{}, &ConflictError{OperationID: operationID, Detail: "an open pause entry already exists"}
	}

	entry := pauseModel{
		OperationID: operationID,
		Reason:      string(reason),
		Description: description,
		ActorID:     actorID,
		PausedAt:    at,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return pauseModel{}, err
	}
	return entry, nil
}

func closePause(tx *gorm.DB, operationID int64, at time.Time) error {
	return tx.Model(&pauseModel{}).
		Where("operation_id = ? AND resumed_at IS NULL", operationID).
		Update("resumed_at", at).Error
}
