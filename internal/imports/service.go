package imports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/tepworks/tepcatalog/internal/catalog"
	"github.com/tepworks/tepcatalog/internal/mastermaterials"
	"github.com/tepworks/tepcatalog/internal/materials"
	"github.com/tepworks/tepcatalog/internal/tepcodes"
	"github.com/tepworks/tepcatalog/pkg/db"
	"github.com/tepworks/tepcatalog/pkg/enums"
	pkgerrors "github.com/tepworks/tepcatalog/pkg/errors"
	"github.com/tepworks/tepcatalog/pkg/logger"
	"github.com/tepworks/tepcatalog/pkg/metrics"
)

var errTooLarge = errors.New("upload exceeds size limit")

// Service imports master material and catalog rows from CSV or XLSX files.
type Service interface {
	Import(ctx context.Context, name string, r io.Reader) (*Summary, error)
}

// Summary counts what one file import did. Issues lists rows that were
// skipped or only partly applied.
type Summary struct {
	File             string   `json:"file"`
	Format           Format   `json:"format"`
	Rows             int      `json:"rows"`
	MasterInserted   int      `json:"master_inserted"`
	MasterUpdated    int      `json:"master_updated"`
	MasterUnchanged  int      `json:"master_unchanged"`
	MaterialsCreated int      `json:"materials_created"`
	MaterialsSkipped int      `json:"materials_skipped"`
	RowsSkipped      int      `json:"rows_skipped"`
	Issues           []string `json:"issues,omitempty"`
}

// RowError ties a problem to its 1-based line number, header included.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	if typed := pkgerrors.As(e.Err); typed != nil {
		if details := typed.Details(); details != nil {
			return fmt.Sprintf("line %d: %s %v", e.Line, typed.Message(), details)
		}
		return fmt.Sprintf("line %d: %s", e.Line, typed.Message())
	}
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

type service struct {
	client    *db.Client
	validator *materials.Validator
	metrics   *metrics.CatalogMetrics
	maxBytes  int64
	logg      *logger.Logger
}

// NewService constructs the importer. maxBytes <= 0 disables the size check.
func NewService(client *db.Client, m *metrics.CatalogMetrics, maxBytes int64, logg *logger.Logger) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{
		client:    client,
		validator: materials.NewLenientValidator(),
		metrics:   m,
		maxBytes:  maxBytes,
		logg:      logg,
	}, nil
}

// Import applies every row of the file inside one transaction. Row-level
// validation problems and conflicts skip the row and are reported; any other
// failure rolls the whole file back.
func (s *service) Import(ctx context.Context, name string, r io.Reader) (*Summary, error) {
	data, err := readAllLimited(r, s.maxBytes)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			return nil, pkgerrors.New(pkgerrors.CodeTooLarge, "upload exceeds size limit").
				WithDetails(map[string]any{"max_bytes": s.maxBytes})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload")
	}
	table, err := ReadTable(name, data)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable upload").
			WithDetails(map[string]string{"file": err.Error()})
	}
	cols := indexColumns(table.Header)
	if !cols.hasAny(colMatPartcode) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "missing material part code column").
			WithDetails(map[string]any{"accepted": colMatPartcode, "header": table.Header})
	}

	summary := Summary{File: name, Format: DetectFormat(name, data), Rows: len(table.Rows)}
	var issues error
	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		svcs, err := catalog.NewServices(db.Wrap(tx), s.metrics, s.logg)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "wire catalog services")
		}
		for i, row := range table.Rows {
			line := i + 2
			rowErr := s.applyRow(ctx, svcs, cols, row, &summary)
			if rowErr == nil {
				continue
			}
			if !skippable(rowErr) {
				return &RowError{Line: line, Err: rowErr}
			}
			issues = multierr.Append(issues, &RowError{Line: line, Err: rowErr})
		}
		return nil
	})
	if err != nil {
		var rowErr *RowError
		if errors.As(err, &rowErr) {
			if typed := pkgerrors.As(rowErr.Err); typed != nil {
				return nil, pkgerrors.Wrap(typed.Code(), err, "import aborted").
					WithDetails(map[string]any{"line": rowErr.Line, "error": rowErr.Err.Error()})
			}
		}
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "import aborted")
	}

	for _, issue := range multierr.Errors(issues) {
		summary.Issues = append(summary.Issues, issue.Error())
	}
	s.record(ctx, &summary)
	return &summary, nil
}

var errMissingPartcode = errors.New("missing mat_partcode")

func (s *service) applyRow(ctx context.Context, svcs *catalog.Services, cols columns, row []string, summary *Summary) error {
	if isBlank(row) {
		summary.RowsSkipped++
		return nil
	}
	payload := materials.MaterialPayload{
		MatPartcode: cols.value(row, colMatPartcode),
		MatPartname: cols.value(row, colMatPartname),
		MatMaker:    cols.value(row, colMatMaker),
		Unit:        cols.value(row, colUnit),
	}
	if payload.MatPartcode == "" {
		summary.RowsSkipped++
		return errMissingPartcode
	}
	var err error
	if payload.DimQty, err = parseNumber(cols.value(row, colDimQty), "dim_qty"); err != nil {
		summary.RowsSkipped++
		return err
	}
	if payload.LossPercent, err = parseNumber(cols.value(row, colLossPercent), "loss_percent"); err != nil {
		summary.RowsSkipped++
		return err
	}
	valid, err := s.validator.Validate(payload)
	if err != nil {
		summary.RowsSkipped++
		return err
	}

	master, err := svcs.MasterMaterials.Upsert(ctx, valid.Partcode, mastermaterials.Fields{
		Name:  valid.Name,
		Maker: valid.Maker,
		Unit:  string(valid.Unit),
	})
	if err != nil {
		summary.RowsSkipped++
		return err
	}
	switch master.Outcome {
	case enums.UpsertOutcomeInserted:
		summary.MasterInserted++
	case enums.UpsertOutcomeUpdated:
		summary.MasterUpdated++
	default:
		summary.MasterUnchanged++
	}

	customerName := cols.value(row, colCustomer)
	partCode := cols.value(row, colPartCode)
	tepCode := cols.value(row, colTEPCode)
	if customerName == "" && partCode == "" && tepCode == "" {
		return nil
	}
	if customerName == "" || partCode == "" || tepCode == "" {
		summary.MaterialsSkipped++
		return pkgerrors.New(pkgerrors.CodeValidation, "catalog columns need customer, part code and tep code together")
	}

	customer, err := svcs.Customers.FindOrCreate(ctx, customerName)
	if err != nil {
		return err
	}
	part, err := svcs.Customers.EnsurePartEntry(ctx, customer.Customer.ID, partCode, cols.value(row, colPartName))
	if err != nil {
		return err
	}
	tep, err := svcs.TEPCodes.FindOrCreate(ctx, customer.Customer.ID, tepcodes.Input{PartCode: part.Code, TEPCode: tepCode})
	if err != nil {
		return err
	}
	material, err := svcs.Materials.CreateOrGet(ctx, tep.TEPCode.ID, valid.Partcode, valid.Defaults)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			summary.MaterialsSkipped++
		}
		return err
	}
	if !material.Created {
		summary.MaterialsSkipped++
		return fmt.Errorf("material %s already exists under tep code %s", valid.Partcode, tep.TEPCode.TEPCode)
	}
	summary.MaterialsCreated++
	return nil
}

func (s *service) record(ctx context.Context, summary *Summary) {
	s.metrics.AddImportRows("master_inserted", summary.MasterInserted)
	s.metrics.AddImportRows("master_updated", summary.MasterUpdated)
	s.metrics.AddImportRows("master_unchanged", summary.MasterUnchanged)
	s.metrics.AddImportRows("materials_created", summary.MaterialsCreated)
	s.metrics.AddImportRows("materials_skipped", summary.MaterialsSkipped)
	s.metrics.AddImportRows("rows_skipped", summary.RowsSkipped)

	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"file":              summary.File,
		"format":            string(summary.Format),
		"rows":              summary.Rows,
		"master_inserted":   summary.MasterInserted,
		"master_updated":    summary.MasterUpdated,
		"master_unchanged":  summary.MasterUnchanged,
		"materials_created": summary.MaterialsCreated,
		"materials_skipped": summary.MaterialsSkipped,
		"rows_skipped":      summary.RowsSkipped,
		"issues":            len(summary.Issues),
	})
	s.logg.Info(logCtx, "import.completed")
}

// skippable reports row problems that skip the row instead of aborting.
func skippable(err error) bool {
	if errors.Is(err, errMissingPartcode) {
		return true
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		// Plain errors come from applyRow itself and describe skipped rows.
		return true
	}
	return typed.Code() == pkgerrors.CodeValidation || typed.Code() == pkgerrors.CodeConflict
}

func parseNumber(raw, field string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s must be numeric, got %q", field, raw)).
			WithDetails(map[string]string{field: "must be numeric"})
	}
	return &v, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
