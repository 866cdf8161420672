package controllers

import (
	"net/http"

	"github.com/tepworks/tepcatalog/api/responses"
	"github.com/tepworks/tepcatalog/api/validators"
	"github.com/tepworks/tepcatalog/internal/catalog"
	"github.com/tepworks/tepcatalog/internal/materials"
	pkgerrors "github.com/tepworks/tepcatalog/pkg/errors"
	"github.com/tepworks/tepcatalog/pkg/logger"
)

// orderRequest is a full catalog record. Material fields sit at the top level
// next to the customer, part and TEP code.
type orderRequest struct {
	CustomerName string `json:"customer_name"`
	PartCode     string `json:"part_code"`
	PartName     string `json:"part_name,omitempty"`
	TEPCode      string `json:"tep_code"`
	materials.MaterialPayload
}

// CatalogTree returns customers with their parts, TEP codes and materials.
// q filters customers by any matching level.
func CatalogTree(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		query := validators.SanitizeString(r.URL.Query().Get("q"), maxSearchLength)
		tree, err := svc.Tree(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tree)
	}
}

// PlaceOrder records customer, part, TEP code and material in one call.
func PlaceOrder(svc catalog.Service, v *materials.Validator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || v == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		var payload orderRequest
		if err := validators.DecodeJSON(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		material, err := v.Validate(payload.MaterialPayload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.PlaceOrder(r.Context(), catalog.OrderInput{
			CustomerName: payload.CustomerName,
			PartCode:     payload.PartCode,
			PartName:     payload.PartName,
			TEPCode:      payload.TEPCode,
			Material:     *material,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusOK
		if result.Material != nil && result.Material.Created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}
