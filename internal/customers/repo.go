package customers

import (
	"context"
	"fmt"

	"github.com/tepworks/tepcatalog/pkg/db"
	"github.com/tepworks/tepcatalog/pkg/db/models"
	"gorm.io/gorm"
)

// Repository handles customer and part list persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to customer operations.
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

func orderedParts(tx *gorm.DB) *gorm.DB {
	return tx.Order("position ASC, id ASC")
}

// FindByID loads a customer with its parts in list order.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Customer, error) {
	var c models.Customer
	if err := r.db.WithContext(ctx).
		Preload("Parts", orderedParts).
		Where("id = ?", id).
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// FindByIDForUpdate loads and row-locks a customer without its parts.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id int64) (*models.Customer, error) {
	var c models.Customer
	if err := db.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// FindByName performs a case-sensitive exact lookup.
func (r *Repository) FindByName(ctx context.Context, name string) (*models.Customer, error) {
	var c models.Customer
	if err := r.db.WithContext(ctx).
		Preload("Parts", orderedParts).
		Where("customer_name = ?", name).
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a customer row. Parts are not inserted by this call.
func (r *Repository) Create(ctx context.Context, c *models.Customer) error {
	if c == nil {
		return fmt.Errorf("customer is required")
	}
	return r.db.WithContext(ctx).Omit("Parts").Create(c).Error
}

// UpdateName sets the customer's name.
func (r *Repository) UpdateName(ctx context.Context, id int64, name string) error {
	return r.db.WithContext(ctx).Model(&models.Customer{}).
		Where("id = ?", id).
		Update("customer_name", name).Error
}

// DeleteCascade removes the customer together with its parts, TEP codes and
// their materials. It reports whether the customer row existed.
func (r *Repository) DeleteCascade(ctx context.Context, id int64) (bool, error) {
	tx := r.db.WithContext(ctx)
	tepIDs := tx.Model(&models.TEPCode{}).Select("id").Where("customer_id = ?", id)
	if err := tx.Where("tep_code_id IN (?)", tepIDs).Delete(&models.Material{}).Error; err != nil {
		return false, err
	}
	if err := tx.Where("customer_id = ?", id).Delete(&models.TEPCode{}).Error; err != nil {
		return false, err
	}
	if err := tx.Where("customer_id = ?", id).Delete(&models.CustomerPart{}).Error; err != nil {
		return false, err
	}
	res := tx.Where("id = ?", id).Delete(&models.Customer{})
	return res.RowsAffected > 0, res.Error
}

// ListParts returns a customer's parts in list order.
func (r *Repository) ListParts(ctx context.Context, customerID int64) ([]models.CustomerPart, error) {
	var parts []models.CustomerPart
	if err := orderedParts(r.db.WithContext(ctx)).
		Where("customer_id = ?", customerID).
		Find(&parts).Error; err != nil {
		return nil, err
	}
	return parts, nil
}

// FindPart loads one part entry by its exact code.
func (r *Repository) FindPart(ctx context.Context, customerID int64, code string) (*models.CustomerPart, error) {
	var p models.CustomerPart
	if err := r.db.WithContext(ctx).
		Where("customer_id = ? AND code = ?", customerID, code).
		First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePart appends a part entry.
func (r *Repository) CreatePart(ctx context.Context, p *models.CustomerPart) error {
	if p == nil {
		return fmt.Errorf("customer part is required")
	}
	return r.db.WithContext(ctx).Create(p).Error
}

// DeletePart removes a part entry by id.
func (r *Repository) DeletePart(ctx context.Context, partID int64) error {
	return r.db.WithContext(ctx).Where("id = ?", partID).Delete(&models.CustomerPart{}).Error
}

// CountTEPCodesForPart counts TEP codes registered under the part code.
func (r *Repository) CountTEPCodesForPart(ctx context.Context, customerID int64, code string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.TEPCode{}).
		Where("customer_id = ? AND part_code = ?", customerID, code).
		Count(&count).Error
	return count, err
}

// List returns up to limit customers after afterID with their parts,
// optionally filtered by a case-insensitive substring of the name.
func (r *Repository) List(ctx context.Context, query string, afterID int64, limit int) ([]models.Customer, error) {
	q := r.db.WithContext(ctx).Model(&models.Customer{}).Preload("Parts", orderedParts)
	if query != "" {
		q = q.Where(`LOWER(customer_name) LIKE ? ESCAPE '\'`, db.ContainsPattern(query))
	}
	if afterID > 0 {
		q = q.Where("id > ?", afterID)
	}
	var rows []models.Customer
	if err := q.Order("id ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
