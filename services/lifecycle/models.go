package lifecycle

import (
	"time"

	"gorm.io/gorm"
)

// Migrate creates the lifecycle tables. Production databases are migrated by
// the embedded goose migrations; this covers embedded and test databases.
func Migrate(orm *gorm.DB) error {
	return orm.AutoMigrate(&operationModel{}, &pauseModel{}, &assignmentModel{})
}

type operationModel struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	StationID      int64  `gorm:"not null;index"`
	DefinitionID   int64  `gorm:"not null;index"`
	Status         string `gorm:"type:text;not null;index"`
	TargetMinutes  int    `gorm:"not null"`
	ElapsedSeconds int64  `gorm:"not null;default:0"`
	Progress       int    `gorm:"not null;default:0"`
	QualityCheck   bool   `gorm:"not null;default:false"`
	StartedAt      *time.Time
	// ResumedAt anchors the current accumulation interval; nil unless the
	// operation is in progress.
	ResumedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (operationModel) TableName() string { return "operations" }

// elapsedAt returns accumulated working time, extended by the open interval
// when the operation is running. Frozen while paused.
func (m *operationModel) elapsedAt(now time.Time) time.Duration {
	d := time.Duration(m.ElapsedSeconds) * time.Second
	if Status(m.Status) == StatusInProgress && m.ResumedAt != nil {
		d += now.Sub(*m.ResumedAt)
	}
	return d
}

func (m *operationModel) toAPI(now time.Time, workerIDs []int64) Operation {
	if workerIDs == nil {
		workerIDs = []int64{}
	}
	return Operation{
		ID:             m.ID,
		StationID:      m.StationID,
		DefinitionID:   m.DefinitionID,
		Status:         Status(m.Status),
		WorkerIDs:      workerIDs,
		TargetMinutes:  m.TargetMinutes,
		ElapsedMinutes: m.elapsedAt(now).Minutes(),
		Progress:       m.Progress,
		QualityCheck:   m.QualityCheck,
		StartedAt:      m.StartedAt,
		CompletedAt:    m.CompletedAt,
	}
}

type pauseModel struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	OperationID int64     `gorm:"not null;index"`
	Reason      string    `gorm:"type:text;not null"`
	Description string    `gorm:"type:text"`
	ActorID     int64     `gorm:"not null;default:0"`
	PausedAt    time.Time `gorm:"not null"`
	ResumedAt   *time.Time
}

func (pauseModel) TableName() string { return "operation_pauses" }

func (m *pauseModel) toAPI() PauseEntry {
	return PauseEntry{
		ID:          m.ID,
		OperationID: m.OperationID,
		Reason:      PauseReason(m.Reason),
		Description: m.Description,
		ActorID:     m.ActorID,
		PausedAt:    m.PausedAt,
		ResumedAt:   m.ResumedAt,
	}
}

type assignmentModel struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	OperationID int64     `gorm:"not null;uniqueIndex:idx_assignments_op_worker"`
	WorkerID    int64     `gorm:"not null;uniqueIndex:idx_assignments_op_worker"`
	AssignedAt  time.Time `gorm:"not null"`
}

func (assignmentModel) TableName() string { return "operation_assignments" }

// Operation is the API-facing view of an operation instance.
type Operation struct {
	ID             int64      `json:"id"`
	StationID      int64      `json:"station_id"`
	DefinitionID   int64      `json:"definition_id"`
	Status         Status     `json:"status"`
	WorkerIDs      []int64    `json:"worker_ids"`
	TargetMinutes  int        `json:"target_minutes"`
	ElapsedMinutes float64    `json:"elapsed_minutes"`
	Progress       int        `json:"progress"`
	QualityCheck   bool       `json:"quality_check"`
	StartedAt      *time.Time `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at"`
}

// PauseEntry is one halt/resume interval from the pause ledger.
type PauseEntry struct {
	ID          int64       `json:"id"`
	OperationID int64       `json:"operation_id"`
	Reason      PauseReason `json:"reason"`
	Description string      `json:"description,omitempty"`
	ActorID     int64       `json:"actor_id"`
	PausedAt    time.Time   `json:"paused_at"`
	ResumedAt   *time.Time  `json:"resumed_at"`
}
