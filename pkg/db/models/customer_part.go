package models

import "time"

// CustomerPart is one entry of a customer's part list. Position preserves
// append order; (customer_id, code) is unique.
type CustomerPart struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	CustomerID int64     `gorm:"column:customer_id;not null;uniqueIndex:idx_customer_parts_customer_code,priority:1;index:idx_customer_parts_position,priority:1"`
	Code       string    `gorm:"column:code;type:varchar(128);not null;uniqueIndex:idx_customer_parts_customer_code,priority:2"`
	Name       string    `gorm:"column:name;type:varchar(255);not null"`
	Position   int       `gorm:"column:position;not null;index:idx_customer_parts_position,priority:2"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (CustomerPart) TableName() string { return "customer_parts" }
