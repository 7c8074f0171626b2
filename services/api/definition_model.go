package api

import (
	"time"

	"gorm.io/datatypes"
)

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

// Definition describes one catalog entry of manufacturing work, with its
// default target duration.
type Definition struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	TargetMinutes int            `json:"target_minutes"`
	QualityCheck  bool           `json:"quality_check"`
	Spec          map[string]any `json:"spec"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (m *definitionModel) toAPI() Definition {
	spec := map[string]any(m.Spec)
	if spec == nil {
		spec = map[string]any{}
	}
	return Definition{
		ID:            m.ID,
		Name:          m.Name,
		TargetMinutes: m.TargetMinutes,
		QualityCheck:  m.QualityCheck,
		Spec:          spec,
		CreatedAt:     m.CreatedAt,
	}
}
