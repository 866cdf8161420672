package tepcodes

import (
	"context"
	"errors"
	"fmt"

	"github.com/tepworks/tepcatalog/internal/naming"
	"github.com/tepworks/tepcatalog/pkg/db"
	"github.com/tepworks/tepcatalog/pkg/db/models"
	pkgerrors "github.com/tepworks/tepcatalog/pkg/errors"
	"github.com/tepworks/tepcatalog/pkg/logger"
	"gorm.io/gorm"
)

// Service exposes TEP code operations. Every write requires the part code to
// be registered in the owning customer's part list.
type Service interface {
	FindOrCreate(ctx context.Context, customerID int64, input Input) (*FindOrCreateResult, error)
	Create(ctx context.Context, customerID int64, input Input) (*TEPCodeDTO, error)
	Get(ctx context.Context, id int64) (*TEPCodeDTO, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]TEPCodeDTO, error)
	Relabel(ctx context.Context, id int64, input Input) (*TEPCodeDTO, error)
	Delete(ctx context.Context, id int64) error
}

// Input identifies a TEP code under a customer.
type Input struct {
	PartCode string
	TEPCode  string
}

func (in Input) normalized() (Input, error) {
	out := Input{PartCode: naming.Normalize(in.PartCode), TEPCode: naming.Normalize(in.TEPCode)}
	details := map[string]string{}
	if out.PartCode == "" {
		details["part_code"] = "is required"
	}
	if out.TEPCode == "" {
		details["tep_code"] = "is required"
	}
	if len(details) > 0 {
		return out, pkgerrors.New(pkgerrors.CodeValidation, "invalid tep code").WithDetails(details)
	}
	return out, nil
}

type service struct {
	repo     *Repository
	dbClient db.TxRunner
	logg     *logger.Logger
}

// NewService constructs a TEP code service.
func NewService(repo *Repository, dbClient db.TxRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tep code repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{repo: repo, dbClient: dbClient, logg: logg}, nil
}

func requireRegisteredPart(ctx context.Context, repo *Repository, customerID int64, partCode string) error {
	exists, err := repo.CustomerExists(ctx, customerID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	if !exists {
		return pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	registered, err := repo.PartRegistered(ctx, customerID, partCode)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer part")
	}
	if !registered {
		return pkgerrors.New(pkgerrors.CodeNotFound, "part code is not registered for customer").
			WithDetails(map[string]string{"part_code": partCode})
	}
	return nil
}

// FindOrCreate returns the TEP code for the (customer, part code, label)
// triple, creating it when absent.
func (s *service) FindOrCreate(ctx context.Context, customerID int64, input Input) (*FindOrCreateResult, error) {
	input, err := input.normalized()
	if err != nil {
		return nil, err
	}

	var result FindOrCreateResult
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := requireRegisteredPart(ctx, txRepo, customerID, input.PartCode); err != nil {
			return err
		}
		existing, err := txRepo.FindByTriple(ctx, customerID, input.PartCode, input.TEPCode)
		if err == nil {
			result = FindOrCreateResult{TEPCode: FromModel(existing)}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tep code")
		}

		created := &models.TEPCode{CustomerID: customerID, PartCode: input.PartCode, TEPCode: input.TEPCode}
		insertErr := db.Wrap(tx).WithTx(ctx, func(inner *gorm.DB) error {
			return txRepo.WithTx(inner).Create(ctx, created)
		})
		if insertErr == nil {
			result = FindOrCreateResult{TEPCode: FromModel(created), Created: true}
			return nil
		}
		if !db.IsUniqueViolation(insertErr, "") {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, insertErr, "insert tep code")
		}
		existing, err = txRepo.FindByTriple(ctx, customerID, input.PartCode, input.TEPCode)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload tep code")
		}
		result = FindOrCreateResult{TEPCode: FromModel(existing)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Created && s.logg != nil {
		logCtx := s.logg.WithCustomerID(ctx, customerID)
		logCtx = s.logg.WithTEPCodeID(logCtx, result.TEPCode.ID)
		s.logg.Info(logCtx, "tep_code.created")
	}
	return &result, nil
}

func (s *service) Create(ctx context.Context, customerID int64, input Input) (*TEPCodeDTO, error) {
	input, err := input.normalized()
	if err != nil {
		return nil, err
	}

	var created *models.TEPCode
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := requireRegisteredPart(ctx, txRepo, customerID, input.PartCode); err != nil {
			return err
		}
		row := &models.TEPCode{CustomerID: customerID, PartCode: input.PartCode, TEPCode: input.TEPCode}
		if err := txRepo.Create(ctx, row); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "tep code already exists").
					WithDetails(map[string]string{"part_code": input.PartCode, "tep_code": input.TEPCode})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert tep code")
		}
		created = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(created), nil
}

func (s *service) Get(ctx context.Context, id int64) (*TEPCodeDTO, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLoadError(err)
	}
	return FromModel(t), nil
}

func (s *service) ListByCustomer(ctx context.Context, customerID int64) ([]TEPCodeDTO, error) {
	exists, err := s.repo.CustomerExists(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	rows, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tep codes")
	}
	items := make([]TEPCodeDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *FromModel(&rows[i]))
	}
	return items, nil
}

// Relabel moves a TEP code to another registered part code or label. The
// target triple must be free.
func (s *service) Relabel(ctx context.Context, id int64, input Input) (*TEPCodeDTO, error) {
	input, err := input.normalized()
	if err != nil {
		return nil, err
	}

	var updated *models.TEPCode
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		row, err := txRepo.FindByID(ctx, id)
		if err != nil {
			return mapLoadError(err)
		}
		if row.PartCode == input.PartCode && row.TEPCode == input.TEPCode {
			updated = row
			return nil
		}
		if err := requireRegisteredPart(ctx, txRepo, row.CustomerID, input.PartCode); err != nil {
			return err
		}
		row.PartCode = input.PartCode
		row.TEPCode = input.TEPCode
		if err := txRepo.Save(ctx, row); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "tep code already exists").
					WithDetails(map[string]string{"part_code": input.PartCode, "tep_code": input.TEPCode})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update tep code")
		}
		updated = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(updated), nil
}

// Delete removes the TEP code and its materials.
func (s *service) Delete(ctx context.Context, id int64) error {
	return s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		removed, err := s.repo.WithTx(tx).DeleteCascade(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete tep code")
		}
		if !removed {
			return pkgerrors.New(pkgerrors.CodeNotFound, "tep code not found")
		}
		return nil
	})
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "tep code not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tep code")
}
