package models

import "time"

// TEPCode is a TEP identifier registered for one of a customer's parts.
type TEPCode struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	CustomerID int64     `gorm:"column:customer_id;not null;uniqueIndex:idx_tep_codes_customer_part_tep,priority:1"`
	PartCode   string    `gorm:"column:part_code;type:varchar(128);not null;uniqueIndex:idx_tep_codes_customer_part_tep,priority:2"`
	TEPCode    string    `gorm:"column:tep_code;type:varchar(128);not null;uniqueIndex:idx_tep_codes_customer_part_tep,priority:3"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (TEPCode) TableName() string { return "tep_codes" }
