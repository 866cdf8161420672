package materials

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
	"github.com/tepworks/tepcatalog/pkg/quantity"
	"gorm.io/gorm"
)

// DefaultMaker is stored when neither the request nor the master list names
// a maker.
const DefaultMaker = "Unknown"

// Service exposes material line operations under TEP codes.
type Service interface {
	CreateOrGet(ctx context.Context, tepCodeID int64, partcode string, defaults Defaults) (*CreateResult, error)
	Create(ctx context.Context, tepCodeID int64, partcode string, defaults Defaults) (*CreateResult, error)
	Get(ctx context.Context, id int64) (*MaterialDTO, error)
	ListByTEPCode(ctx context.Context, tepCodeID int64) ([]MaterialDTO, error)
	Update(ctx context.Context, id int64, input UpdateInput) (*MaterialDTO, error)
	Rename(ctx context.Context, id int64, name string) (*MaterialDTO, error)
	Recompute(ctx context.Context, tepCodeID int64) (*RecomputeResult, error)
	Delete(ctx context.Context, id int64) error
}

// Metrics records name allocation outcomes.
type Metrics interface {
	IncMaterialName(outcome string)
}

// UpdateInput changes an existing line in place. It never reallocates the
// name; the total is recomputed from the resulting quantities.
type UpdateInput struct {
	Maker       *string
	Unit        *enums.MaterialUnit
	DimQty      *float64
	LossPercent *float64
}

type service struct {
	repo     *Repository
	dbClient db.TxRunner
	metrics  Metrics
	logg     *logger.Logger
}

// NewService constructs a material service. metrics may be nil.
func NewService(repo *Repository, dbClient db.TxRunner, metrics Metrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("material repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{repo: repo, dbClient: dbClient, metrics: metrics, logg: logg}, nil
}

// CreateOrGet returns the line for (tepCodeID, partcode), inserting it when
// absent. Insertion allocates the name first and inserts second inside one
// transaction holding the TEP code lock. A concurrent insert of the same pair
// surfaces as a conflict and rolls back any rename.
func (s *service) CreateOrGet(ctx context.Context, tepCodeID int64, partcode string, defaults Defaults) (*CreateResult, error) {
	return s.createOrGet(ctx, tepCodeID, partcode, defaults, false)
}

// Create behaves like CreateOrGet but reports an existing pair as a conflict.
func (s *service) Create(ctx context.Context, tepCodeID int64, partcode string, defaults Defaults) (*CreateResult, error) {
	return s.createOrGet(ctx, tepCodeID, partcode, defaults, true)
}

func (s *service) createOrGet(ctx context.Context, tepCodeID int64, partcode string, defaults Defaults, mustCreate bool) (*CreateResult, error) {
	partcode = naming.Normalize(partcode)
	if partcode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mat_partcode is required").
			WithDetails(map[string]string{"mat_partcode": "is required"})
	}
	loss := quantity.DefaultLossPercent
	if defaults.LossPercent != nil {
		loss = *defaults.LossPercent
	}
	if err := checkQuantities(defaults.DimQty, loss); err != nil {
		return nil, err
	}

	var result CreateResult
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if _, err := txRepo.LockTEPCode(ctx, tepCodeID); err != nil {
			return mapTEPError(err)
		}

		existing, err := txRepo.FindByPartcode(ctx, tepCodeID, partcode)
		if err == nil {
			if mustCreate {
				return pkgerrors.New(pkgerrors.CodeConflict, "material already exists under tep code").
					WithDetails(map[string]any{"tep_code_id": tepCodeID, "mat_partcode": partcode})
			}
			result = CreateResult{Material: FromModel(existing)}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load material")
		}

		row, err := s.newRow(ctx, txRepo, tepCodeID, partcode, defaults)
		if err != nil {
			return err
		}

		plan, err := AllocateName(ctx, tx, tepCodeID, row.MatPartname, partcode)
		if err != nil {
			return err
		}
		row.MatPartname = plan.Name

		if err := txRepo.Create(ctx, row); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "material inserted concurrently").
					WithDetails(map[string]any{"tep_code_id": tepCodeID, "mat_partcode": partcode})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert material")
		}

		result = CreateResult{Material: FromModel(row), Created: true, Outcome: plan.Outcome}
		if plan.Rename != nil {
			result.Renamed = &RenameDTO{ID: plan.Rename.RowID, From: plan.Rename.From, To: plan.Rename.To}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Created {
		if s.metrics != nil {
			s.metrics.IncMaterialName(string(result.Outcome))
		}
		if s.logg != nil {
			logCtx := s.logg.WithTEPCodeID(ctx, tepCodeID)
			fields := map[string]any{
				"mat_partcode": partcode,
				"mat_partname": result.Material.MatPartname,
				"outcome":      string(result.Outcome),
			}
			if result.Renamed != nil {
				fields["renamed_id"] = result.Renamed.ID
				fields["renamed_to"] = result.Renamed.To
			}
			s.logg.Info(s.logg.WithFields(logCtx, fields), "material.created")
		}
	}
	return &result, nil
}

// newRow fills a new line from defaults, falling back to the master entry.
// Without a master entry the caller must provide the name.
func (s *service) newRow(ctx context.Context, repo *Repository, tepCodeID int64, partcode string, defaults Defaults) (*models.Material, error) {
	master, err := repo.FindMaster(ctx, partcode)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load master material")
	}
	name := naming.Normalize(defaults.Name)
	maker := naming.Normalize(defaults.Maker)
	unit := defaults.Unit
	if master != nil {
		name = firstNonEmpty(name, master.MatPartname)
		maker = firstNonEmpty(maker, master.MatMaker)
		if unit == "" {
			unit = master.Unit
		}
	} else if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "master material not found").
			WithDetails(map[string]string{"mat_partcode": partcode})
	}

	loss := quantity.DefaultLossPercent
	if defaults.LossPercent != nil {
		loss = *defaults.LossPercent
	}
	dim := quantity.Round(defaults.DimQty)
	loss = quantity.Round(loss)

	return &models.Material{
		TEPCodeID:   tepCodeID,
		MatPartcode: partcode,
		MatPartname: name,
		MatMaker:    firstNonEmpty(maker, DefaultMaker),
		Unit:        enums.MaterialUnitOrDefault(string(unit)),
		DimQty:      dim,
		LossPercent: loss,
		Total:       quantity.Total(dim, loss),
	}, nil
}

func (s *service) Get(ctx context.Context, id int64) (*MaterialDTO, error) {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLoadError(err)
	}
	return FromModel(m), nil
}

func (s *service) ListByTEPCode(ctx context.Context, tepCodeID int64) ([]MaterialDTO, error) {
	exists, err := s.repo.TEPCodeExists(ctx, tepCodeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tep code")
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tep code not found")
	}
	rows, err := s.repo.ListByTEPCode(ctx, tepCodeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list materials")
	}
	return FromModels(rows), nil
}

func (s *service) Update(ctx context.Context, id int64, input UpdateInput) (*MaterialDTO, error) {
	var updated *models.Material
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		row, err := txRepo.FindByID(ctx, id)
		if err != nil {
			return mapLoadError(err)
		}
		if _, err := txRepo.LockTEPCode(ctx, row.TEPCodeID); err != nil {
			return mapTEPError(err)
		}
		// reload under the lock so a rename committed meanwhile is seen
		if row, err = txRepo.FindByID(ctx, id); err != nil {
			return mapLoadError(err)
		}
		if input.Maker != nil {
			row.MatMaker = firstNonEmpty(naming.Normalize(*input.Maker), DefaultMaker)
		}
		if input.Unit != nil {
			row.Unit = enums.MaterialUnitOrDefault(string(*input.Unit))
		}
		if input.DimQty != nil {
			row.DimQty = quantity.Round(*input.DimQty)
		}
		if input.LossPercent != nil {
			row.LossPercent = quantity.Round(*input.LossPercent)
		}
		if err := checkQuantities(row.DimQty, row.LossPercent); err != nil {
			return err
		}
		row.Total = quantity.Total(row.DimQty, row.LossPercent)

		if err := txRepo.UpdateQuantities(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update material")
		}
		updated = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(updated), nil
}

// Rename sets a line's name by hand. A name equal, case-insensitively, to
// another line's name under the same TEP code is a conflict.
func (s *service) Rename(ctx context.Context, id int64, name string) (*MaterialDTO, error) {
	name = naming.Normalize(name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mat_partname is required").
			WithDetails(map[string]string{"mat_partname": "is required"})
	}

	var renamed *models.Material
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		row, err := txRepo.FindByID(ctx, id)
		if err != nil {
			return mapLoadError(err)
		}
		if _, err := txRepo.LockTEPCode(ctx, row.TEPCodeID); err != nil {
			return mapTEPError(err)
		}
		siblings, err := txRepo.NamedRows(ctx, row.TEPCodeID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load material names")
		}
		key := naming.NameKey(name)
		for _, sibling := range siblings {
			if sibling.ID != row.ID && naming.NameKey(sibling.Name) == key {
				return pkgerrors.New(pkgerrors.CodeConflict, "material name already used under tep code").
					WithDetails(map[string]any{"mat_partname": name, "material_id": sibling.ID})
			}
		}
		if row.MatPartname != name {
			affected, err := txRepo.RenameIfNamed(ctx, row.TEPCodeID, row.ID, row.MatPartname, name)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rename material")
			}
			if affected != 1 {
				return pkgerrors.New(pkgerrors.CodeInternal, "material changed during rename")
			}
		}
		renamed, err = txRepo.FindByID(ctx, id)
		if err != nil {
			return mapLoadError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(renamed), nil
}

// Recompute rewrites stored totals under a TEP code that no longer match
// their quantities.
func (s *service) Recompute(ctx context.Context, tepCodeID int64) (*RecomputeResult, error) {
	result := RecomputeResult{TEPCodeID: tepCodeID}
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if _, err := txRepo.LockTEPCode(ctx, tepCodeID); err != nil {
			return mapTEPError(err)
		}
		rows, err := txRepo.ListByTEPCode(ctx, tepCodeID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list materials")
		}
		result.Checked = len(rows)
		for _, row := range rows {
			total := quantity.Total(row.DimQty, row.LossPercent)
			if total == row.Total {
				continue
			}
			if err := txRepo.UpdateTotal(ctx, row.ID, total); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update material total")
			}
			result.Updated++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Updated > 0 && s.logg != nil {
		logCtx := s.logg.WithTEPCodeID(ctx, tepCodeID)
		s.logg.Info(s.logg.WithField(logCtx, "updated", result.Updated), "material.totals_recomputed")
	}
	return &result, nil
}

func (s *service) Delete(ctx context.Context, id int64) error {
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete material")
	}
	if !removed {
		return pkgerrors.New(pkgerrors.CodeNotFound, "material not found")
	}
	return nil
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "material not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load material")
}

func checkQuantities(dimQty, lossPercent float64) error {
	if details := quantity.Check(dimQty, lossPercent); details != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantities out of range").WithDetails(details)
	}
	return nil
}

func mapTEPError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "tep code not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock tep code")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
