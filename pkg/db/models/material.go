package models

import (
	"time"

	"github.com/tepworks/tepcatalog/pkg/enums"
)

// Material is a component line under a TEP code. MatPartname is unique per
// TEP code by allocation, not by constraint.
type Material struct {
	ID          int64              `gorm:"column:id;primaryKey;autoIncrement"`
	TEPCodeID   int64              `gorm:"column:tep_code_id;not null;uniqueIndex:idx_materials_tep_partcode,priority:1"`
	MatPartcode string             `gorm:"column:mat_partcode;type:varchar(128);not null;uniqueIndex:idx_materials_tep_partcode,priority:2"`
	MatPartname string             `gorm:"column:mat_partname;type:varchar(255);not null"`
	MatMaker    string             `gorm:"column:mat_maker;type:varchar(255);not null"`
	Unit        enums.MaterialUnit `gorm:"column:unit;type:varchar(8);not null"`
	DimQty      float64            `gorm:"column:dim_qty;type:numeric(14,4);not null"`
	LossPercent float64            `gorm:"column:loss_percent;type:numeric(7,4);not null"`
	Total       float64            `gorm:"column:total;type:numeric(14,4);not null"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (Material) TableName() string { return "materials" }
