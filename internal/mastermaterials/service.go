package mastermaterials

import (
	"context"
	"errors"
	"fmt"

	"github.com/tepworks/tepcatalog/internal/naming"
	"github.com/tepworks/tepcatalog/pkg/db"
	"github.com/tepworks/tepcatalog/pkg/db/models"
	"github.com/tepworks/tepcatalog/pkg/enums"
	pkgerrors "github.com/tepworks/tepcatalog/pkg/errors"
	"github.com/tepworks/tepcatalog/pkg/logger"
	"github.com/tepworks/tepcatalog/pkg/pagination"
	"gorm.io/gorm"
)

// DefaultMaker is stored when no maker is known for a partcode.
const DefaultMaker = "Unknown"

// Service exposes master material list operations.
type Service interface {
	Upsert(ctx context.Context, partcode string, fields Fields) (*UpsertResult, error)
	Get(ctx context.Context, id int64) (*MasterMaterialDTO, error)
	GetByPartcode(ctx context.Context, partcode string) (*MasterMaterialDTO, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
	Update(ctx context.Context, id int64, input UpdateInput) (*MasterMaterialDTO, error)
	Delete(ctx context.Context, id int64) error
}

// Fields carries incoming master values; blank strings mean "not provided".
type Fields struct {
	Name  string
	Maker string
	Unit  string
}

// UpdateInput replaces every field of an entry. Blank name falls back to the
// partcode and blank maker to DefaultMaker.
type UpdateInput struct {
	Partcode string
	Name     string
	Maker    string
	Unit     string
}

// ListInput filters and pages the master list.
type ListInput struct {
	Query string
	pagination.Params
}

type service struct {
	repo     *Repository
	dbClient db.TxRunner
	logg     *logger.Logger
}

// NewService constructs a master material service.
func NewService(repo *Repository, dbClient db.TxRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("master material repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{repo: repo, dbClient: dbClient, logg: logg}, nil
}

func normalizeUnit(raw string) enums.MaterialUnit {
	return enums.MaterialUnitOrDefault(raw)
}

// Upsert inserts the partcode when absent. Otherwise every non-blank incoming
// field that differs from the stored value is merged, and the row is written
// only when something changed.
func (s *service) Upsert(ctx context.Context, partcode string, fields Fields) (*UpsertResult, error) {
	partcode = naming.Normalize(partcode)
	if partcode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mat_partcode is required").
			WithDetails(map[string]string{"mat_partcode": "is required"})
	}
	name := naming.Normalize(fields.Name)
	maker := naming.Normalize(fields.Maker)
	unitRaw := naming.Normalize(fields.Unit)

	var result UpsertResult
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		existing, err := txRepo.FindByPartcodeForUpdate(ctx, partcode)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load master material")
		}

		if existing == nil {
			entry := &models.MasterMaterial{
				MatPartcode: partcode,
				MatPartname: firstNonEmpty(name, partcode),
				MatMaker:    firstNonEmpty(maker, DefaultMaker),
				Unit:        normalizeUnit(unitRaw),
			}
			if err := txRepo.Create(ctx, entry); err != nil {
				if db.IsUniqueViolation(err, "") {
					return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "master material created concurrently").
						WithDetails(map[string]string{"mat_partcode": partcode})
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert master material")
			}
			result = UpsertResult{Material: FromModel(entry), Outcome: enums.UpsertOutcomeInserted}
			return nil
		}

		changed := false
		if name != "" && name != existing.MatPartname {
			existing.MatPartname = name
			changed = true
		}
		if maker != "" && maker != existing.MatMaker {
			existing.MatMaker = maker
			changed = true
		}
		if unitRaw != "" {
			if unit := normalizeUnit(unitRaw); unit != existing.Unit {
				existing.Unit = unit
				changed = true
			}
		}
		if !changed {
			result = UpsertResult{Material: FromModel(existing), Outcome: enums.UpsertOutcomeUnchanged}
			return nil
		}
		if err := txRepo.Save(ctx, existing); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update master material")
		}
		result = UpsertResult{Material: FromModel(existing), Outcome: enums.UpsertOutcomeUpdated}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil && result.Outcome != enums.UpsertOutcomeUnchanged {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"mat_partcode": partcode,
			"outcome":      result.Outcome.String(),
		})
		s.logg.Debug(logCtx, "master_material.upserted")
	}
	return &result, nil
}

func (s *service) Get(ctx context.Context, id int64) (*MasterMaterialDTO, error) {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLoadError(err)
	}
	return FromModel(m), nil
}

func (s *service) GetByPartcode(ctx context.Context, partcode string) (*MasterMaterialDTO, error) {
	partcode = naming.Normalize(partcode)
	if partcode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mat_partcode is required")
	}
	m, err := s.repo.FindByPartcode(ctx, partcode)
	if err != nil {
		return nil, mapLoadError(err)
	}
	return FromModel(m), nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	var afterID int64
	if cursor != nil {
		afterID = cursor.AfterID
	}

	rows, err := s.repo.List(ctx, naming.Normalize(input.Query), afterID, pagination.LimitWithBuffer(input.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list master materials")
	}
	page, next := pagination.Page(rows, input.Limit, func(m models.MasterMaterial) int64 { return m.ID })

	items := make([]MasterMaterialDTO, 0, len(page))
	for i := range page {
		items = append(items, *FromModel(&page[i]))
	}
	return &ListResult{Items: items, NextCursor: next}, nil
}

// Update replaces an entry's fields. Changing the partcode to one owned by
// another entry is a conflict.
func (s *service) Update(ctx context.Context, id int64, input UpdateInput) (*MasterMaterialDTO, error) {
	partcode := naming.Normalize(input.Partcode)
	if partcode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mat_partcode is required").
			WithDetails(map[string]string{"mat_partcode": "is required"})
	}

	var updated *models.MasterMaterial
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		entry, err := txRepo.FindByID(ctx, id)
		if err != nil {
			return mapLoadError(err)
		}

		if partcode != entry.MatPartcode {
			other, err := txRepo.FindByPartcode(ctx, partcode)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check partcode")
			}
			if other != nil && other.ID != entry.ID {
				return pkgerrors.New(pkgerrors.CodeConflict, "mat_partcode already exists").
					WithDetails(map[string]string{"mat_partcode": partcode})
			}
		}

		entry.MatPartcode = partcode
		entry.MatPartname = firstNonEmpty(naming.Normalize(input.Name), partcode)
		entry.MatMaker = firstNonEmpty(naming.Normalize(input.Maker), DefaultMaker)
		entry.Unit = normalizeUnit(input.Unit)

		if err := txRepo.Save(ctx, entry); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "mat_partcode already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update master material")
		}
		updated = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(updated), nil
}

func (s *service) Delete(ctx context.Context, id int64) error {
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete master material")
	}
	if !removed {
		return pkgerrors.New(pkgerrors.CodeNotFound, "master material not found")
	}
	return nil
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "master material not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load master material")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
