package models

import "time"

// Customer owns an ordered set of parts and the TEP codes registered under them.
type Customer struct {
	ID           int64          `gorm:"column:id;primaryKey;autoIncrement"`
	CustomerName string         `gorm:"column:customer_name;type:varchar(255);not null;uniqueIndex:idx_customers_name"`
	Parts        []CustomerPart `gorm:"foreignKey:CustomerID"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (Customer) TableName() string { return "customers" }
