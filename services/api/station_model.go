package api

import (
	"time"

	"gorm.io/datatypes"
)

type stationModel struct {
	ID        int64             `gorm:"primaryKey;autoIncrement"`
	Code      string            `gorm:"type:text;uniqueIndex;not null"`
	Name      string            `gorm:"type:text;not null"`
	Meta      datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt time.Time         `gorm:"autoCreateTime"`
	UpdatedAt time.Time         `gorm:"autoUpdateTime"`
}

func (stationModel) TableName() string { return "stations" }

// Station models a physical work location where operations are performed.
type Station struct {
	ID        int64          `json:"id"`
	Code      string         `json:"code"`
	Name      string         `json:"name"`
	Meta      map[string]any `json:"meta"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (m *stationModel) toAPI() Station {
	meta := map[string]any(m.Meta)
	if meta == nil {
		meta = map[string]any{}
	}
	return Station{
		ID:        m.ID,
		Code:      m.Code,
		Name:      m.Name,
		Meta:      meta,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
