package controllers

import (
	"net/http"

	"github.com/tepworks/tepcatalog/api/responses"
	"github.com/tepworks/tepcatalog/api/validators"
	"github.com/tepworks/tepcatalog/internal/imports"
	pkgerrors "github.com/tepworks/tepcatalog/pkg/errors"
	"github.com/tepworks/tepcatalog/pkg/logger"
)

// multipartOverhead leaves room for boundaries and form headers on top of
// the file size cap.
const multipartOverhead = 1 << 20

// ImportFile accepts a CSV or XLSX file in the multipart field "file" and
// applies it in one transaction.
func ImportFile(svc imports.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "import service unavailable"))
			return
		}

		limit := int64(0)
		if maxBytes > 0 {
			limit = maxBytes + multipartOverhead
		}
		file, header, err := validators.MultipartFile(w, r, "file", limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer file.Close()

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithField(ctx, "file", header.Filename)
		}
		summary, err := svc.Import(ctx, header.Filename, file)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
