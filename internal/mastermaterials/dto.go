package mastermaterials

import (
	"time"

	"github.com/tepworks/tepcatalog/pkg/db/models"
	"github.com/tepworks/tepcatalog/pkg/enums"
)

// MasterMaterialDTO is the API shape of a master list entry.
type MasterMaterialDTO struct {
	ID          int64              `json:"id"`
	MatPartcode string             `json:"mat_partcode"`
	MatPartname string             `json:"mat_partname"`
	MatMaker    string             `json:"mat_maker"`
	Unit        enums.MaterialUnit `json:"unit"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// UpsertResult pairs the stored entry with what the upsert did.
type UpsertResult struct {
	Material *MasterMaterialDTO  `json:"material"`
	Outcome  enums.UpsertOutcome `json:"outcome"`
}

// ListResult is one page of master materials.
type ListResult struct {
	Items      []MasterMaterialDTO `json:"items"`
	NextCursor string              `json:"next_cursor,omitempty"`
}

// FromModel maps the persisted entry into a DTO.
func FromModel(m *models.MasterMaterial) *MasterMaterialDTO {
	if m == nil {
		return nil
	}
	return &MasterMaterialDTO{
		ID:          m.ID,
		MatPartcode: m.MatPartcode,
		MatPartname: m.MatPartname,
		MatMaker:    m.MatMaker,
		Unit:        m.Unit,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
