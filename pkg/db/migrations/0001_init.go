package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

type Station struct {
	ID        int64             `gorm:"primaryKey;autoIncrement"`
	Code      string            `gorm:"type:text;uniqueIndex;not null"`
	Name      string            `gorm:"type:text;not null"`
	Meta      datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt time.Time         `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

type Worker struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"type:text;not null"`
	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

type OperationDefinition struct {
	ID            int64             `gorm:"primaryKey;autoIncrement"`
	Name          string            `gorm:"type:text;uniqueIndex;not null"`
	TargetMinutes int               `gorm:"not null"`
	QualityCheck  bool              `gorm:"not null;default:false"`
	Spec          datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt     time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (OperationDefinition) TableName() string { return "operation_definitions" }

type Operation struct {
	ID             int64               `gorm:"primaryKey;autoIncrement"`
	StationID      int64               `gorm:"not null;index"`
	DefinitionID   int64               `gorm:"not null;index"`
	Status         string              `gorm:"type:text;not null;index"`
	TargetMinutes  int                 `gorm:"not null"`
	ElapsedSeconds int64               `gorm:"not null;default:0"`
	Progress       int                 `gorm:"not null;default:0"`
	QualityCheck   bool                `gorm:"not null;default:false"`
	StartedAt      *time.Time          `gorm:"type:timestamptz"`
	ResumedAt      *time.Time          `gorm:"type:timestamptz"`
	CompletedAt    *time.Time          `gorm:"type:timestamptz"`
	CreatedAt      time.Time           `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
	Station        Station             `gorm:"foreignKey:StationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Definition     OperationDefinition `gorm:"foreignKey:DefinitionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

type OperationPause struct {
	ID          int64      `gorm:"primaryKey;autoIncrement"`
	OperationID int64      `gorm:"not null;index"`
	Reason      string     `gorm:"type:text;not null"`
	Description string     `gorm:"type:text"`
	ActorID     int64      `gorm:"not null;default:0"`
	PausedAt    time.Time  `gorm:"type:timestamptz;not null"`
	ResumedAt   *time.Time `gorm:"type:timestamptz"`
	Operation   Operation  `gorm:"foreignKey:OperationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (OperationPause) TableName() string { return "operation_pauses" }

type OperationAssignment struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	OperationID int64     `gorm:"not null;uniqueIndex:idx_assignments_op_worker"`
	WorkerID    int64     `gorm:"not null;uniqueIndex:idx_assignments_op_worker"`
	AssignedAt  time.Time `gorm:"type:timestamptz;not null"`
	Operation   Operation `gorm:"foreignKey:OperationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Worker      Worker    `gorm:"foreignKey:WorkerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (OperationAssignment) TableName() string { return "operation_assignments" }

type Audit struct {
	ID      int64             `gorm:"type:bigserial;primaryKey"`
	Actor   string            `gorm:"type:text;not null"`
	Action  string            `gorm:"type:text;not null"`
	Obj     string            `gorm:"type:text"`
	Details datatypes.JSONMap `gorm:"type:jsonb"`
	At      time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func (Audit) TableName() string { return "audit" }

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).AutoMigrate(
		&Station{},
		&Worker{},
		&OperationDefinition{},
		&Operation{},
		&OperationPause{},
		&OperationAssignment{},
		&Audit{},
	); err != nil {
		return err
	}

	m := gormDB.WithContext(ctx).Migrator()
	if err := m.CreateConstraint(&Operation{}, "Station"); err != nil {
		return err
	}
	if err := m.CreateConstraint(&Operation{}, "Definition"); err != nil {
		return err
	}
	if err := m.CreateConstraint(&OperationPause{}, "Operation"); err != nil {
		return err
	}
	if err := m.CreateConstraint(&OperationAssignment{}, "Operation"); err != nil {
		return err
	}
	if err := m.CreateConstraint(&OperationAssignment{}, "Worker"); err != nil {
		return err
	}

	return nil
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().DropTable(
		&Audit{},
		&OperationAssignment{},
		&OperationPause{},
		&Operation{},
		&OperationDefinition{},
		&Worker{},
		&Station{},
	)
}
