package catalog

import (
	"context"

	"github.com/tepworks/tepcatalog/pkg/db"
	"github.com/tepworks/tepcatalog/pkg/db/models"
	"gorm.io/gorm"
)

// Repository runs the read queries behind the catalog tree.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to catalog reads.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// MatchingCustomerIDs returns the ids of customers whose name, part list,
// TEP codes or materials contain query, case-insensitively.
func (r *Repository) MatchingCustomerIDs(ctx context.Context, query string) ([]int64, error) {
	pattern := db.ContainsPattern(query)
	tx := r.db.WithContext(ctx)
	seen := map[int64]struct{}{}
	var ids []int64
	collect := func(q *gorm.DB, column string) error {
		var found []int64
		if err := q.Distinct().Pluck(column, &found).Error; err != nil {
			return err
		}
		for _, id := range found {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
		return nil
	}

	if err := collect(tx.Model(&models.Customer{}).
		Where(`LOWER(customer_name) LIKE ? ESCAPE '\'`, pattern), "id"); err != nil {
		return nil, err
	}
	if err := collect(tx.Model(&models.CustomerPart{}).
		Where(`LOWER(code) LIKE ? ESCAPE '\' OR LOWER(name) LIKE ? ESCAPE '\'`, pattern, pattern), "customer_id"); err != nil {
		return nil, err
	}
	if err := collect(tx.Model(&models.TEPCode{}).
		Where(`LOWER(tep_code) LIKE ? ESCAPE '\' OR LOWER(part_code) LIKE ? ESCAPE '\'`, pattern, pattern), "customer_id"); err != nil {
		return nil, err
	}
	if err := collect(tx.Model(&models.Material{}).
		Joins("JOIN tep_codes ON tep_codes.id = materials.tep_code_id").
		Where(`LOWER(materials.mat_partcode) LIKE ? ESCAPE '\' OR LOWER(materials.mat_partname) LIKE ? ESCAPE '\' OR LOWER(materials.mat_maker) LIKE ? ESCAPE '\'`,
			pattern, pattern, pattern), "tep_codes.customer_id"); err != nil {
		return nil, err
	}
	return ids, nil
}

// LoadCustomers returns customers ordered by name with their parts. A nil ids
// slice loads every customer; an empty one loads none.
func (r *Repository) LoadCustomers(ctx context.Context, ids []int64) ([]models.Customer, error) {
	if ids != nil && len(ids) == 0 {
		return nil, nil
	}
	q := r.db.WithContext(ctx).Preload("Parts", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("position ASC, id ASC")
	})
	if ids != nil {
		q = q.Where("id IN ?", ids)
	}
	var rows []models.Customer
	if err := q.Order("customer_name ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// LoadTEPCodes returns the TEP codes of the given customers ordered by label.
func (r *Repository) LoadTEPCodes(ctx context.Context, customerIDs []int64) ([]models.TEPCode, error) {
	if len(customerIDs) == 0 {
		return nil, nil
	}
	var rows []models.TEPCode
	if err := r.db.WithContext(ctx).
		Where("customer_id IN ?", customerIDs).
		Order("tep_code ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// LoadMaterials returns the materials of the given TEP codes ordered by name.
func (r *Repository) LoadMaterials(ctx context.Context, tepCodeIDs []int64) ([]models.Material, error) {
	if len(tepCodeIDs) == 0 {
		return nil, nil
	}
	var rows []models.Material
	if err := r.db.WithContext(ctx).
		Where("tep_code_id IN ?", tepCodeIDs).
		Order("mat_partname ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
