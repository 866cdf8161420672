package customers

import (
	"time"

	"github.com/tepworks/tepcatalog/pkg/db/models"
)

// PartDTO is one entry of a customer's part list.
type PartDTO struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// CustomerDTO is the API shape of a customer and its ordered part list.
type CustomerDTO struct {
	ID           int64     `json:"id"`
	CustomerName string    `json:"customer_name"`
	Parts        []PartDTO `json:"parts"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FindOrCreateResult reports whether the customer was created by the call.
type FindOrCreateResult struct {
	Customer *CustomerDTO `json:"customer"`
	Created  bool         `json:"created"`
}

// PartEntryResult is the outcome of registering a part code.
type PartEntryResult struct {
	CustomerID int64  `json:"customer_id"`
	Code       string `json:"code"`
	UsedName   string `json:"used_name"`
	Changed    bool   `json:"changed"`
}

// ListResult is one page of customers.
type ListResult struct {
	Items      []CustomerDTO `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// FromModel maps a customer row plus its loaded parts into a DTO.
func FromModel(c *models.Customer) *CustomerDTO {
	if c == nil {
		return nil
	}
	parts := make([]PartDTO, 0, len(c.Parts))
	for _, p := range c.Parts {
		parts = append(parts, PartDTO{Code: p.Code, Name: p.Name, Position: p.Position})
	}
	return &CustomerDTO{
		ID:           c.ID,
		CustomerName: c.CustomerName,
		Parts:        parts,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}
