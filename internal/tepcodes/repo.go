package tepcodes

import (
	"context"
	"fmt"

	"github.com/tepworks/tepcatalog/pkg/db/models"
	"gorm.io/gorm"
)

// Repository handles TEP code persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to TEP code operations.
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

// FindByID loads a TEP code by id.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.TEPCode, error) {
	var t models.TEPCode
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// FindByTriple loads the TEP code identified by customer, part code and label.
func (r *Repository) FindByTriple(ctx context.Context, customerID int64, partCode, tepCode string) (*models.TEPCode, error) {
	var t models.TEPCode
	if err := r.db.WithContext(ctx).
		Where("customer_id = ? AND part_code = ? AND tep_code = ?", customerID, partCode, tepCode).
		First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// ListByCustomer returns a customer's TEP codes ordered by part code, label and id.
func (r *Repository) ListByCustomer(ctx context.Context, customerID int64) ([]models.TEPCode, error) {
	var rows []models.TEPCode
	if err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("part_code ASC, tep_code ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListIDsAfter returns up to limit TEP code ids greater than afterID in
// ascending order.
func (r *Repository) ListIDsAfter(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).Model(&models.TEPCode{}).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// CustomerExists reports whether the customer row exists.
func (r *Repository) CustomerExists(ctx context.Context, customerID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Customer{}).Where("id = ?", customerID).Count(&count).Error
	return count > 0, err
}

// PartRegistered reports whether code is in the customer's part list.
func (r *Repository) PartRegistered(ctx context.Context, customerID int64, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CustomerPart{}).
		Where("customer_id = ? AND code = ?", customerID, code).
		Count(&count).Error
	return count > 0, err
}

// Create inserts a TEP code.
func (r *Repository) Create(ctx context.Context, t *models.TEPCode) error {
	if t == nil {
		return fmt.Errorf("tep code is required")
	}
	return r.db.WithContext(ctx).Create(t).Error
}

// Save persists every column of t.
func (r *Repository) Save(ctx context.Context, t *models.TEPCode) error {
	if t == nil {
		return fmt.Errorf("tep code is required")
	}
	return r.db.WithContext(ctx).Save(t).Error
}

// DeleteCascade removes the TEP code and its materials, reporting whether
// the TEP code existed.
func (r *Repository) DeleteCascade(ctx context.Context, id int64) (bool, error) {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("tep_code_id = ?", id).Delete(&models.Material{}).Error; err != nil {
		return false, err
	}
	res := tx.Where("id = ?", id).Delete(&models.TEPCode{})
	return res.RowsAffected > 0, res.Error
}
