package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/tepworks/tepcatalog/internal/naming"
	"github.com/tepworks/tepcatalog/pkg/db"
	"github.com/tepworks/tepcatalog/pkg/db/models"
	pkgerrors "github.com/tepworks/tepcatalog/pkg/errors"
	"github.com/tepworks/tepcatalog/pkg/logger"
	"github.com/tepworks/tepcatalog/pkg/pagination"
	"gorm.io/gorm"
)

// Service exposes customer and part list operations.
type Service interface {
	FindOrCreate(ctx context.Context, name string) (*FindOrCreateResult, error)
	Create(ctx context.Context, name string) (*CustomerDTO, error)
	Get(ctx context.Context, id int64) (*CustomerDTO, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
	Rename(ctx context.Context, id int64, name string) (*CustomerDTO, error)
	Delete(ctx context.Context, id int64) error
	EnsurePartEntry(ctx context.Context, customerID int64, code, name string) (*PartEntryResult, error)
	RemovePart(ctx context.Context, customerID int64, code string) error
}

// Metrics records part entry requests.
type Metrics interface {
	IncPartEntry(appended bool)
}

// ListInput filters and pages customers.
type ListInput struct {
	Query string
	pagination.Params
}

type service struct {
	repo     *Repository
	dbClient db.TxRunner
	metrics  Metrics
	logg     *logger.Logger
}

// NewService constructs a customer service. metrics may be nil.
func NewService(repo *Repository, dbClient db.TxRunner, metrics Metrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("customer repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{repo: repo, dbClient: dbClient, metrics: metrics, logg: logg}, nil
}

func requireName(name string) (string, error) {
	name = naming.Normalize(name)
	if name == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "customer_name is required").
			WithDetails(map[string]string{"customer_name": "is required"})
	}
	return name, nil
}

// FindOrCreate looks the customer up by exact name and creates it, with an
// empty part list, when absent.
func (s *service) FindOrCreate(ctx context.Context, name string) (*FindOrCreateResult, error) {
	name, err := requireName(name)
	if err != nil {
		return nil, err
	}

	var result FindOrCreateResult
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		existing, err := txRepo.FindByName(ctx, name)
		if err == nil {
			result = FindOrCreateResult{Customer: FromModel(existing)}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
		}

		created := &models.Customer{CustomerName: name}
		insertErr := db.Wrap(tx).WithTx(ctx, func(inner *gorm.DB) error {
			return txRepo.WithTx(inner).Create(ctx, created)
		})
		if insertErr == nil {
			result = FindOrCreateResult{Customer: FromModel(created), Created: true}
			return nil
		}
		if !db.IsUniqueViolation(insertErr, "") {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, insertErr, "insert customer")
		}
		// Lost a concurrent create; the winner's row is the answer.
		existing, err = txRepo.FindByName(ctx, name)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload customer")
		}
		result = FindOrCreateResult{Customer: FromModel(existing)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Created && s.logg != nil {
		logCtx := s.logg.WithCustomerID(ctx, result.Customer.ID)
		s.logg.Info(logCtx, "customer.created")
	}
	return &result, nil
}

func (s *service) Create(ctx context.Context, name string) (*CustomerDTO, error) {
	name, err := requireName(name)
	if err != nil {
		return nil, err
	}
	c := &models.Customer{CustomerName: name}
	if err := s.repo.Create(ctx, c); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "customer already exists").
				WithDetails(map[string]string{"customer_name": name})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert customer")
	}
	return FromModel(c), nil
}

func (s *service) Get(ctx context.Context, id int64) (*CustomerDTO, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLoadError(err)
	}
	return FromModel(c), nil
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list customers")
	}
	page, next := pagination.Page(rows, input.Limit, func(c models.Customer) int64 { return c.ID })

	items := make([]CustomerDTO, 0, len(page))
	for i := range page {
		items = append(items, *FromModel(&page[i]))
	}
	return &ListResult{Items: items, NextCursor: next}, nil
}

// Rename changes the customer's name; a name held by another customer is a
// conflict.
func (s *service) Rename(ctx context.Context, id int64, name string) (*CustomerDTO, error) {
	name, err := requireName(name)
	if err != nil {
		return nil, err
	}

	var renamed *models.Customer
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		current, err := txRepo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return mapLoadError(err)
		}
		if current.CustomerName != name {
			other, err := txRepo.FindByName(ctx, name)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check customer name")
			}
			if other != nil && other.ID != id {
				return pkgerrors.New(pkgerrors.CodeConflict, "customer already exists").
					WithDetails(map[string]string{"customer_name": name})
			}
			if err := txRepo.UpdateName(ctx, id, name); err != nil {
				if db.IsUniqueViolation(err, "") {
					return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "customer already exists")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rename customer")
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

// Delete removes the customer and everything registered under it.
func (s *service) Delete(ctx context.Context, id int64) error {
	return s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		removed, err := s.repo.WithTx(tx).DeleteCascade(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete customer")
		}
		if !removed {
			return pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil
	})
}

// EnsurePartEntry registers code in the customer's part list. A code that is
// already present keeps its stored name; a new code gets a name that is
// unique, case-insensitively, among the customer's part names.
func (s *service) EnsurePartEntry(ctx context.Context, customerID int64, code, name string) (*PartEntryResult, error) {
	code = naming.Normalize(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "part_code is required").
			WithDetails(map[string]string{"part_code": "is required"})
	}

	result := PartEntryResult{CustomerID: customerID, Code: code}
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if _, err := txRepo.FindByIDForUpdate(ctx, customerID); err != nil {
			return mapLoadError(err)
		}
		parts, err := txRepo.ListParts(ctx, customerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer parts")
		}

		existing, usedName := naming.UniquePartName(toEntries(parts), code, name)
		if existing {
			result.UsedName = usedName
			return nil
		}

		part := &models.CustomerPart{
			CustomerID: customerID,
			Code:       code,
			Name:       usedName,
			Position:   nextPosition(parts),
		}
		insertErr := db.Wrap(tx).WithTx(ctx, func(inner *gorm.DB) error {
			return txRepo.WithTx(inner).CreatePart(ctx, part)
		})
		if insertErr == nil {
			result.UsedName = usedName
			result.Changed = true
			return nil
		}
		if !db.IsUniqueViolation(insertErr, "") {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, insertErr, "insert customer part")
		}
		stored, err := txRepo.FindPart(ctx, customerID, code)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload customer part")
		}
		result.UsedName = stored.Name
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncPartEntry(result.Changed)
	}
	if result.Changed && s.logg != nil {
		logCtx := s.logg.WithCustomerID(ctx, customerID)
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"part_code": code,
			"part_name": result.UsedName,
		})
		s.logg.Info(logCtx, "customer.part_registered")
	}
	return &result, nil
}

// RemovePart drops a part entry. Parts still referenced by TEP codes cannot
// be removed.
func (s *service) RemovePart(ctx context.Context, customerID int64, code string) error {
	code = naming.Normalize(code)
	if code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "part_code is required")
	}
	return s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if _, err := txRepo.FindByIDForUpdate(ctx, customerID); err != nil {
			return mapLoadError(err)
		}
		part, err := txRepo.FindPart(ctx, customerID, code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "part not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer part")
		}
		refs, err := txRepo.CountTEPCodesForPart(ctx, customerID, code)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count tep codes")
		}
		if refs > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "part is referenced by tep codes").
				WithDetails(map[string]any{"part_code": code, "tep_codes": refs})
		}
		if err := txRepo.DeletePart(ctx, part.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete customer part")
		}
		return nil
	})
}

func toEntries(parts []models.CustomerPart) []naming.PartEntry {
	entries := make([]naming.PartEntry, 0, len(parts))
	for _, p := range parts {
		entries = append(entries, naming.PartEntry{Code: p.Code, Name: p.Name})
	}
	return entries
}

func nextPosition(parts []models.CustomerPart) int {
	next := 0
	for _, p := range parts {
		if p.Position >= next {
			next = p.Position + 1
		}
	}
	return next
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
}
