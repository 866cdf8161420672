package materials

import (
	"time"

	"github.com/tepworks/tepcatalog/internal/naming"
	"github.com/tepworks/tepcatalog/pkg/db/models"
	"github.com/tepworks/tepcatalog/pkg/enums"
)

// MaterialDTO is the API shape of a material line.
type MaterialDTO struct {
	ID          int64              `json:"id"`
	TEPCodeID   int64              `json:"tep_code_id"`
	MatPartcode string             `json:"mat_partcode"`
	MatPartname string             `json:"mat_partname"`
	MatMaker    string             `json:"mat_maker"`
	Unit        enums.MaterialUnit `json:"unit"`
	DimQty      float64            `json:"dim_qty"`
	LossPercent float64            `json:"loss_percent"`
	Total       float64            `json:"total"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// RenameDTO describes an existing line renamed by name allocation.
type RenameDTO struct {
	ID   int64  `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
}

// CreateResult is the outcome of CreateOrGet. Outcome and Renamed are only
// set when a new line was inserted.
type CreateResult struct {
	Material *MaterialDTO   `json:"material"`
	Created  bool           `json:"created"`
	Outcome  naming.Outcome `json:"name_outcome,omitempty"`
	Renamed  *RenameDTO     `json:"renamed,omitempty"`
}

// RecomputeResult reports how many stored totals were corrected.
type RecomputeResult struct {
	TEPCodeID int64 `json:"tep_code_id"`
	Checked   int   `json:"checked"`
	Updated   int   `json:"updated"`
}

// FromModel maps the persisted row into a DTO.
func FromModel(m *models.Material) *MaterialDTO {
	if m == nil {
		return nil
	}
	return &MaterialDTO{
		ID:          m.ID,
		TEPCodeID:   m.TEPCodeID,
		MatPartcode: m.MatPartcode,
		MatPartname: m.MatPartname,
		MatMaker:    m.MatMaker,
		Unit:        m.Unit,
		DimQty:      m.DimQty,
		LossPercent: m.LossPercent,
		Total:       m.Total,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// FromModels maps rows in order.
func FromModels(rows []models.Material) []MaterialDTO {
	out := make([]MaterialDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}
