package controllers

import (
	"net/http"
	"strings"

	"github.com/tepworks/tepcatalog/api/responses"
	"github.com/tepworks/tepcatalog/api/validators"
	"github.com/tepworks/tepcatalog/internal/mastermaterials"
	"github.com/tepworks/tepcatalog/pkg/enums"
	pkgerrors "github.com/tepworks/tepcatalog/pkg/errors"
	"github.com/tepworks/tepcatalog/pkg/logger"
	"github.com/tepworks/tepcatalog/pkg/pagination"
)

type masterMaterialRequest struct {
	MatPartcode string `json:"mat_partcode" validate:"required,max=128"`
	MatPartname string `json:"mat_partname" validate:"max=255"`
	MatMaker    string `json:"mat_maker" validate:"max=255"`
	Unit        string `json:"unit" validate:"max=16"`
}

func (r masterMaterialRequest) checkUnit() error {
	if strings.TrimSpace(r.Unit) == "" {
		return nil
	}
	if _, err := enums.ParseMaterialUnit(r.Unit); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed").
			WithDetails(map[string]string{"unit": "must be one of pc, pcs, m, g, kg"})
	}
	return nil
}

// UpsertMasterMaterial inserts the partcode or merges non-blank fields into
// the existing entry. Responds 201 only on insert.
func UpsertMasterMaterial(svc mastermaterials.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "master material service unavailable"))
			return
		}

		var payload masterMaterialRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := payload.checkUnit(); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Upsert(r.Context(), payload.MatPartcode, mastermaterials.Fields{
			Name:  payload.MatPartname,
			Maker: payload.MatMaker,
			Unit:  payload.Unit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusOK
		if result.Outcome == enums.UpsertOutcomeInserted {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

func ListMasterMaterials(svc mastermaterials.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "master material service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), mastermaterials.ListInput{
			Query: validators.SanitizeString(r.URL.Query().Get("q"), maxSearchLength),
			Params: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func GetMasterMaterial(svc mastermaterials.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "master material service unavailable"))
			return
		}

		id, err := validators.ParseIDParam(r, "masterMaterialId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entry)
	}
}

// GetMasterMaterialByPartcode looks an entry up by its exact partcode.
func GetMasterMaterialByPartcode(svc mastermaterials.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "master material service unavailable"))
			return
		}

		partcode, err := validators.PathParam(r, "partcode")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.GetByPartcode(r.Context(), partcode)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entry)
	}
}

// UpdateMasterMaterial replaces every field of the entry.
func UpdateMasterMaterial(svc mastermaterials.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "master material service unavailable"))
			return
		}

		id, err := validators.ParseIDParam(r, "masterMaterialId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload masterMaterialRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := payload.checkUnit(); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.Update(r.Context(), id, mastermaterials.UpdateInput{
			Partcode: payload.MatPartcode,
			Name:     payload.MatPartname,
			Maker:    payload.MatMaker,
			Unit:     payload.Unit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entry)
	}
}

func DeleteMasterMaterial(svc mastermaterials.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "master material service unavailable"))
			return
		}

		id, err := validators.ParseIDParam(r, "masterMaterialId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
