package mastermaterials

import (
	"context"
	"fmt"

	"github.com/tepworks/tepcatalog/pkg/db"
	"github.com/tepworks/tepcatalog/pkg/db/models"
	"gorm.io/gorm"
)

// Repository handles master material persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to master material operations.
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

// FindByID loads a master material by id.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.MasterMaterial, error) {
	var m models.MasterMaterial
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// FindByPartcode loads a master material by its unique partcode.
func (r *Repository) FindByPartcode(ctx context.Context, partcode string) (*models.MasterMaterial, error) {
	var m models.MasterMaterial
	if err := r.db.WithContext(ctx).Where("mat_partcode = ?", partcode).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// FindByPartcodeForUpdate loads and row-locks a master material by partcode.
func (r *Repository) FindByPartcodeForUpdate(ctx context.Context, partcode string) (*models.MasterMaterial, error) {
	var m models.MasterMaterial
	if err := db.ForUpdate(r.db.WithContext(ctx)).Where("mat_partcode = ?", partcode).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts a new master material.
func (r *Repository) Create(ctx context.Context, m *models.MasterMaterial) error {
	if m == nil {
		return fmt.Errorf("master material is required")
	}
	return r.db.WithContext(ctx).Create(m).Error
}

// Save persists every column of m.
func (r *Repository) Save(ctx context.Context, m *models.MasterMaterial) error {
	if m == nil {
		return fmt.Errorf("master material is required")
	}
	return r.db.WithContext(ctx).Save(m).Error
}

// Delete removes a master material; it reports whether a row was removed.
func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.MasterMaterial{})
	return res.RowsAffected > 0, res.Error
}

// List returns up to limit entries after afterID, optionally filtered by a
// case-insensitive substring over partcode, name and maker.
func (r *Repository) List(ctx context.Context, query string, afterID int64, limit int) ([]models.MasterMaterial, error) {
	q := r.db.WithContext(ctx).Model(&models.MasterMaterial{})
	if query != "" {
		pattern := db.ContainsPattern(query)
		q = q.Where(
			`LOWER(mat_partcode) LIKE ? ESCAPE '\' OR LOWER(mat_partname) LIKE ? ESCAPE '\' OR LOWER(mat_maker) LIKE ? ESCAPE '\'`,
			pattern, pattern, pattern,
		)
	}
	if afterID > 0 {
		q = q.Where("id > ?", afterID)
	}
	var rows []models.MasterMaterial
	if err := q.Order("id ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
