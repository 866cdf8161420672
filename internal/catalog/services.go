package catalog

import (
	"github.com/tepworks/tepcatalog/internal/customers"
	"github.com/tepworks/tepcatalog/internal/mastermaterials"
	"github.com/tepworks/tepcatalog/internal/materials"
	"github.com/tepworks/tepcatalog/internal/tepcodes"
	"github.com/tepworks/tepcatalog/pkg/db"
	"github.com/tepworks/tepcatalog/pkg/logger"
	"github.com/tepworks/tepcatalog/pkg/metrics"
)

// Services bundles the catalog store services over one client. Built over a
// client wrapping an open transaction, every write they perform joins it.
type Services struct {
	Customers       customers.Service
	TEPCodes        tepcodes.Service
	Materials       materials.Service
	MasterMaterials mastermaterials.Service
}

// NewServices wires the store services to client. m may be nil.
func NewServices(client *db.Client, m *metrics.CatalogMetrics, logg *logger.Logger) (*Services, error) {
	conn := client.DB()

	customerSvc, err := customers.NewService(customers.NewRepository(conn), client, m, logg)
	if err != nil {
		return nil, err
	}
	tepSvc, err := tepcodes.NewService(tepcodes.NewRepository(conn), client, logg)
	if err != nil {
		return nil, err
	}
	materialSvc, err := materials.NewService(materials.NewRepository(conn), client, m, logg)
	if err != nil {
		return nil, err
	}
	masterSvc, err := mastermaterials.NewService(mastermaterials.NewRepository(conn), client, logg)
	if err != nil {
		return nil, err
	}
	return &Services{
		Customers:       customerSvc,
		TEPCodes:        tepSvc,
		Materials:       materialSvc,
		MasterMaterials: masterSvc,
	}, nil
}
