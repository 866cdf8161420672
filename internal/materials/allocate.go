package materials

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/tepworks/tepcatalog/internal/naming"
	pkgerrors "github.com/tepworks/tepcatalog/pkg/errors"
	"gorm.io/gorm"
)

// AllocateName computes the name for a new line under tepCodeID and persists
// the rename of a colliding bare line when the plan calls for one. tx must be
// the transaction that inserts the new line, with the TEP code row already
// locked; a failed insert must roll the rename back with it.
func AllocateName(ctx context.Context, tx *gorm.DB, tepCodeID int64, base, excludePartcode string) (*naming.MaterialNamePlan, error) {
	repo := NewRepository(tx)

	rows, err := repo.NamedRows(ctx, tepCodeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load material names")
	}
	plan := naming.PlanMaterialName(base, rows, naming.Normalize(excludePartcode))
	if err := checkNameLength(plan); err != nil {
		return nil, err
	}

	if plan.Rename != nil {
		affected, err := repo.RenameIfNamed(ctx, tepCodeID, plan.Rename.RowID, plan.Rename.From, plan.Rename.To)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rename material")
		}
		if affected != 1 {
			return nil, pkgerrors.New(pkgerrors.CodeInternal,
				fmt.Sprintf("material rename affected %d rows, want 1", affected)).
				WithDetails(map[string]any{"material_id": plan.Rename.RowID, "to": plan.Rename.To})
		}
	}
	return &plan, nil
}

// checkNameLength rejects a plan whose numbered names no longer fit the
// column, before any row is renamed.
func checkNameLength(plan naming.MaterialNamePlan) error {
	names := []string{plan.Name}
	if plan.Rename != nil {
		names = append(names, plan.Rename.To)
	}
	for _, name := range names {
		if utf8.RuneCountInString(name) > naming.MaxNameLength {
			return pkgerrors.New(pkgerrors.CodeValidation, "material name too long once numbered").
				WithDetails(map[string]any{"mat_partname": name, "max_length": naming.MaxNameLength})
		}
	}
	return nil
}
