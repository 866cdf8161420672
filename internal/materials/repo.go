package materials

import (
	"context"
	"fmt"

	"github.com/tepworks/tepcatalog/internal/naming"
	"github.com/tepworks/tepcatalog/pkg/db"
	"github.com/tepworks/tepcatalog/pkg/db/models"
	"gorm.io/gorm"
)

// Repository handles material persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to material operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// LockTEPCode loads and row-locks the owning TEP code. Every write that
// allocates or checks names under a TEP code takes this lock first.
func (r *Repository) LockTEPCode(ctx context.Context, tepCodeID int64) (*models.TEPCode, error) {
	var t models.TEPCode
	if err := db.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", tepCodeID).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// TEPCodeExists reports whether the TEP code row exists.
func (r *Repository) TEPCodeExists(ctx context.Context, tepCodeID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.TEPCode{}).Where("id = ?", tepCodeID).Count(&count).Error
	return count > 0, err
}

// FindByID loads a material by id.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Material, error) {
	var m models.Material
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// FindByPartcode loads the line for partcode under a TEP code.
func (r *Repository) FindByPartcode(ctx context.Context, tepCodeID int64, partcode string) (*models.Material, error) {
	var m models.Material
	if err := r.db.WithContext(ctx).
		Where("tep_code_id = ? AND mat_partcode = ?", tepCodeID, partcode).
		First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// FindMaster loads the master entry for partcode.
func (r *Repository) FindMaster(ctx context.Context, partcode string) (*models.MasterMaterial, error) {
	var m models.MasterMaterial
	if err := r.db.WithContext(ctx).Where("mat_partcode = ?", partcode).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListByTEPCode returns a TEP code's lines ordered by name.
func (r *Repository) ListByTEPCode(ctx context.Context, tepCodeID int64) ([]models.Material, error) {
	var rows []models.Material
	if err := r.db.WithContext(ctx).
		Where("tep_code_id = ?", tepCodeID).
		Order("mat_partname ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// NamedRows returns the id, partcode and name of every line under a TEP code.
func (r *Repository) NamedRows(ctx context.Context, tepCodeID int64) ([]naming.NamedRow, error) {
	var rows []models.Material
	if err := r.db.WithContext(ctx).
		Select("id", "mat_partcode", "mat_partname").
		Where("tep_code_id = ?", tepCodeID).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]naming.NamedRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, naming.NamedRow{ID: row.ID, Partcode: row.MatPartcode, Name: row.MatPartname})
	}
	return out, nil
}

// RenameIfNamed sets the name of row id when it still carries from, and
// returns the number of rows changed.
func (r *Repository) RenameIfNamed(ctx context.Context, tepCodeID, id int64, from, to string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Material{}).
		Where("id = ? AND tep_code_id = ? AND mat_partname = ?", id, tepCodeID, from).
		Update("mat_partname", to)
	return res.RowsAffected, res.Error
}

// Create inserts a material line.
func (r *Repository) Create(ctx context.Context, m *models.Material) error {
	if m == nil {
		return fmt.Errorf("material is required")
	}
	return r.db.WithContext(ctx).Create(m).Error
}

// UpdateQuantities writes the maker, unit and quantity columns of m. The name
// is left alone; only the allocator and Rename change it.
func (r *Repository) UpdateQuantities(ctx context.Context, m *models.Material) error {
	if m == nil {
		return fmt.Errorf("material is required")
	}
	return r.db.WithContext(ctx).Model(&models.Material{}).
		Where("id = ?", m.ID).
		Updates(map[string]any{
			"mat_maker":    m.MatMaker,
			"unit":         m.Unit,
			"dim_qty":      m.DimQty,
			"loss_percent": m.LossPercent,
			"total":        m.Total,
		}).Error
}

// UpdateTotal stores a recomputed total.
func (r *Repository) UpdateTotal(ctx context.Context, id int64, total float64) error {
	return r.db.WithContext(ctx).Model(&models.Material{}).
		Where("id = ?", id).
		Update("total", total).Error
}

// Delete removes a line; it reports whether a row was removed.
func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Material{})
	return res.RowsAffected > 0, res.Error
}
