package catalog

import (
	"context"
	"fmt"

	"github.com/tepworks/tepcatalog/internal/naming"
	"github.com/tepworks/tepcatalog/internal/tepcodes"
	"github.com/tepworks/tepcatalog/pkg/db"
	"github.com/tepworks/tepcatalog/pkg/db/models"
	pkgerrors "github.com/tepworks/tepcatalog/pkg/errors"
	"github.com/tepworks/tepcatalog/pkg/logger"
	"github.com/tepworks/tepcatalog/pkg/metrics"
	"gorm.io/gorm"
)

// Service reads the catalog tree and records full orders.
type Service interface {
	Tree(ctx context.Context, query string) (*Tree, error)
	PlaceOrder(ctx context.Context, input OrderInput) (*OrderResult, error)
}

type service struct {
	client  *db.Client
	repo    *Repository
	metrics *metrics.CatalogMetrics
	logg    *logger.Logger
}

// NewService constructs the catalog service. m may be nil.
func NewService(client *db.Client, m *metrics.CatalogMetrics, logg *logger.Logger) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{client: client, repo: NewRepository(client.DB()), metrics: m, logg: logg}, nil
}

// Tree returns customers, their parts, each part's TEP codes and each TEP
// code's materials. With a query, only customers with at least one match
// anywhere in their subtree are returned, each with its full subtree.
func (s *service) Tree(ctx context.Context, query string) (*Tree, error) {
	query = naming.Normalize(query)

	var ids []int64
	if query != "" {
		found, err := s.repo.MatchingCustomerIDs(ctx, query)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search catalog")
		}
		ids = append([]int64{}, found...)
	}

	customerRows, err := s.repo.LoadCustomers(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customers")
	}
	customerIDs := make([]int64, 0, len(customerRows))
	for _, c := range customerRows {
		customerIDs = append(customerIDs, c.ID)
	}

	tepRows, err := s.repo.LoadTEPCodes(ctx, customerIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tep codes")
	}
	tepIDs := make([]int64, 0, len(tepRows))
	for _, t := range tepRows {
		tepIDs = append(tepIDs, t.ID)
	}

	materialRows, err := s.repo.LoadMaterials(ctx, tepIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load materials")
	}

	return buildTree(query, customerRows, tepRows, materialRows), nil
}

func buildTree(query string, customerRows []models.Customer, tepRows []models.TEPCode, materialRows []models.Material) *Tree {
	materialsByTEP := make(map[int64][]TreeMaterial, len(tepRows))
	for _, m := range materialRows {
		materialsByTEP[m.TEPCodeID] = append(materialsByTEP[m.TEPCodeID], treeMaterial(m))
	}

	type partKey struct {
		customerID int64
		code       string
	}
	tepsByPart := map[partKey][]TreeTEPCode{}
	for _, t := range tepRows {
		mats := materialsByTEP[t.ID]
		if mats == nil {
			mats = []TreeMaterial{}
		}
		key := partKey{customerID: t.CustomerID, code: t.PartCode}
		tepsByPart[key] = append(tepsByPart[key], TreeTEPCode{
			ID:        t.ID,
			PartCode:  t.PartCode,
			TEPCode:   t.TEPCode,
			Materials: mats,
		})
	}

	tree := &Tree{Query: query, Customers: make([]TreeCustomer, 0, len(customerRows))}
	for _, c := range customerRows {
		node := TreeCustomer{ID: c.ID, CustomerName: c.CustomerName, Parts: make([]TreePart, 0, len(c.Parts))}
		for _, p := range c.Parts {
			key := partKey{customerID: c.ID, code: p.Code}
			teps := tepsByPart[key]
			if teps == nil {
				teps = []TreeTEPCode{}
			}
			node.Parts = append(node.Parts, TreePart{Code: p.Code, Name: p.Name, TEPCodes: teps})
			delete(tepsByPart, key)
		}
		for _, t := range tepRows {
			if t.CustomerID != c.ID {
				continue
			}
			if _, orphan := tepsByPart[partKey{customerID: c.ID, code: t.PartCode}]; orphan {
				node.Unregistered = append(node.Unregistered, TreeTEPCode{
					ID:        t.ID,
					PartCode:  t.PartCode,
					TEPCode:   t.TEPCode,
					Materials: orEmpty(materialsByTEP[t.ID]),
				})
			}
		}
		tree.Customers = append(tree.Customers, node)
	}
	return tree
}

func orEmpty(rows []TreeMaterial) []TreeMaterial {
	if rows == nil {
		return []TreeMaterial{}
	}
	return rows
}

// PlaceOrder records a full catalog record in one transaction: it finds or
// creates the customer, registers the part code, finds or creates the TEP
// code and creates or returns the material line.
func (s *service) PlaceOrder(ctx context.Context, input OrderInput) (*OrderResult, error) {
	if details := input.missingFields(); len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}

	var result OrderResult
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		svcs, err := NewServices(db.Wrap(tx), s.metrics, s.logg)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "wire catalog services")
		}

		customer, err := svcs.Customers.FindOrCreate(ctx, input.CustomerName)
		if err != nil {
			return err
		}
		result.CustomerID = customer.Customer.ID
		result.CustomerCreated = customer.Created

		part, err := svcs.Customers.EnsurePartEntry(ctx, customer.Customer.ID, input.PartCode, input.PartName)
		if err != nil {
			return err
		}
		result.Part = part

		tep, err := svcs.TEPCodes.FindOrCreate(ctx, customer.Customer.ID, tepcodes.Input{
			PartCode: part.Code,
			TEPCode:  input.TEPCode,
		})
		if err != nil {
			return err
		}
		result.TEPCode = tep.TEPCode
		result.TEPCodeCreated = tep.Created

		material, err := svcs.Materials.CreateOrGet(ctx, tep.TEPCode.ID, input.Material.Partcode, input.Material.Defaults)
		if err != nil {
			return err
		}
		result.Material = material
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (in OrderInput) missingFields() map[string]string {
	details := map[string]string{}
	if naming.Normalize(in.CustomerName) == "" {
		details["customer_name"] = "is required"
	}
	if naming.Normalize(in.PartCode) == "" {
		details["part_code"] = "is required"
	}
	if naming.Normalize(in.TEPCode) == "" {
		details["tep_code"] = "is required"
	}
	if naming.Normalize(in.Material.Partcode) == "" {
		details["mat_partcode"] = "is required"
	}
	return details
}
