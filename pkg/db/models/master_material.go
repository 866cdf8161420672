package models

import (
	"time"

	"github.com/tepworks/tepcatalog/pkg/enums"
)

// MasterMaterial is the reference entry for a material partcode.
type MasterMaterial struct {
	ID          int64              `gorm:"column:id;primaryKey;autoIncrement"`
	MatPartcode string             `gorm:"column:mat_partcode;type:varchar(128);not null;uniqueIndex:idx_master_materials_partcode"`
	MatPartname string             `gorm:"column:mat_partname;type:varchar(255);not null"`
	MatMaker    string             `gorm:"column:mat_maker;type:varchar(255);not null"`
	Unit        enums.MaterialUnit `gorm:"column:unit;type:varchar(8);not null"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (MasterMaterial) TableName() string { return "master_materials" }
