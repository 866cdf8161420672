package tepcodes

import (
	"time"

	"github.com/tepworks/tepcatalog/pkg/db/models"
)

// TEPCodeDTO is the API shape of a TEP code.
type TEPCodeDTO struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	PartCode   string    `json:"part_code"`
	TEPCode    string    `json:"tep_code"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FindOrCreateResult reports whether the TEP code was created by the call.
type FindOrCreateResult struct {
	TEPCode *TEPCodeDTO `json:"tep_code"`
	Created bool        `json:"created"`
}

// FromModel maps the persisted row into a DTO.
func FromModel(t *models.TEPCode) *TEPCodeDTO {
	if t == nil {
		return nil
	}
	return &TEPCodeDTO{
		ID:         t.ID,
		CustomerID: t.CustomerID,
		PartCode:   t.PartCode,
		TEPCode:    t.TEPCode,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}
