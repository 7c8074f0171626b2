// Package seed loads a YAML catalog of stations, workers and operation
// definitions and upserts it, used to bootstrap dev and demo environments.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Catalog is the on-disk seed format.
type Catalog struct {
	Stations    []StationSeed    `yaml:"stations"`
	Workers     []WorkerSeed     `yaml:"workers"`
	Definitions []DefinitionSeed `yaml:"definitions"`
}

type StationSeed struct {
	Code string         `yaml:"code"`
	Name string         `yaml:"name"`
	Meta map[string]any `yaml:"meta"`
}

type WorkerSeed struct {
	Name   string `yaml:"name"`
	Active *bool  `yaml:"active"`
}

type DefinitionSeed struct {
	Name          string         `yaml:"name"`
	TargetMinutes int            `yaml:"target_minutes"`
	QualityCheck  bool           `yaml:"quality_check"`
	Spec          map[string]any `yaml:"spec"`
}

type stationModel struct {
	ID        int64             `gorm:"primaryKey;autoIncrement"`
	Code      string            `gorm:"type:text;uniqueIndex;not null"`
	Name      string            `gorm:"type:text;not null"`
	Meta      datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt time.Time         `gorm:"autoCreateTime"`
	UpdatedAt time.Time         `gorm:"autoUpdateTime"`
}

func (stationModel) TableName() string { return "stations" }

type workerModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"type:text;not null"`
	Active    bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (workerModel) TableName() string { return "workers" }

type definitionModel struct {
	ID            int64             `gorm:"primaryKey;autoIncrement"`
	Name          string            `gorm:"type:text;uniqueIndex;not null"`
	TargetMinutes int               `gorm:"not null"`
	QualityCheck  bool              `gorm:"not null;default:false"`
	Spec          datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt     time.Time         `gorm:"autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"autoUpdateTime"`
}

func (definitionModel) TableName() string { return "operation_definitions" }

// Load parses a catalog file.
func Load(path string) (Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, err
	}

	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, nil
}

// Apply upserts the catalog. Stations and definitions are keyed by their
// unique code/name so re-applying the same file is idempotent; workers are
// matched by name.
func Apply(ctx context.Context, orm *gorm.DB, c Catalog) error {
	orm = orm.WithContext(ctx)

	for _, s := range c.Stations {
		if s.Code == "" || s.Name == "" {
			return fmt.Errorf("station seed requires code and name (got code=%q)", s.Code)
		}
		model := stationModel{Code: s.Code, Name: s.Name, Meta: datatypes.JSONMap(s.Meta)}
		err := orm.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "meta", "updated_at"}),
		}).Create(&model).Error
		if err != nil {
			return fmt.Errorf("seed station %s: %w", s.Code, err)
		}
	}

	for _, d := range c.Definitions {
		if d.Name == "" || d.TargetMinutes <= 0 {
			return fmt.Errorf("definition seed requires name and positive target_minutes (got name=%q)", d.Name)
		}
		model := definitionModel{
			Name:          d.Name,
			TargetMinutes: d.TargetMinutes,
			QualityCheck:  d.QualityCheck,
			Spec:          datatypes.JSONMap(d.Spec),
		}
		err := orm.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"target_minutes", "quality_check", "spec", "updated_at"}),
		}).Create(&model).Error
		if err != nil {
			return fmt.Errorf("seed definition %s: %w", d.Name, err)
		}
	}

	for _, w := range c.Workers {
		if w.Name == "" {
			return fmt.Errorf("worker seed requires a name")
		}
		active := true
		if w.Active != nil {
			active = *w.Active
		}

		var existing workerModel
		err := orm.Where("name = ?", w.Name).First(&existing).Error
		switch {
		case err == nil:
			if existing.Active != active {
				if err := orm.Model(&existing).Update("active", active).Error; err != nil {
					return fmt.Errorf("seed worker %s: %w", w.Name, err)
				}
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			model := workerModel{Name: w.Name, Active: active}
			if err := orm.Create(&model).Error; err != nil {
				return fmt.Errorf("seed worker %s: %w", w.Name, err)
			}
		default:
			return fmt.Errorf("seed worker %s: %w", w.Name, err)
		}
	}

	return nil
}
