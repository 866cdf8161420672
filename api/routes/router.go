package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tepworks/tepcatalog/api/controllers"
	"github.com/tepworks/tepcatalog/api/middleware"
	"github.com/tepworks/tepcatalog/internal/catalog"
	"github.com/tepworks/tepcatalog/internal/imports"
	"github.com/tepworks/tepcatalog/internal/materials"
	"github.com/tepworks/tepcatalog/pkg/config"
	"github.com/tepworks/tepcatalog/pkg/logger"
	"github.com/tepworks/tepcatalog/pkg/metrics"
	"github.com/tepworks/tepcatalog/pkg/redis"
)

// Observability bundles the request metrics recorder and the gatherer served
// on /metrics. Either may be nil.
type Observability struct {
	HTTP     *metrics.HTTPMetrics
	Gatherer prometheus.Gatherer
}

// Cache is the redis surface the router needs: idempotency records and the
// readiness ping. A nil Cache disables both.
type Cache interface {
	redis.IdempotencyStore
	redis.Pinger
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	cache Cache,
	stores *catalog.Services,
	catalogService catalog.Service,
	importService imports.Service,
	obs Observability,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, obs.HTTP),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var (
		idempotencyStore redis.IdempotencyStore
		redisPinger      controllers.Pinger
	)
	if cache != nil {
		idempotencyStore = cache
		redisPinger = cache
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisPinger))
	})

	if obs.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(obs.Gatherer, promhttp.HandlerOpts{}))
	}

	strict := materials.NewValidator()

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(idempotencyStore, cfg.Import.IdempotencyTTL, logg))

		r.Get("/catalog", controllers.CatalogTree(catalogService, logg))
		r.Post("/orders", controllers.PlaceOrder(catalogService, strict, logg))
		r.Post("/imports", controllers.ImportFile(importService, cfg.Import.MaxUploadBytes(), logg))

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", controllers.ListCustomers(stores.Customers, logg))
			r.Post("/", controllers.CreateCustomer(stores.Customers, logg))
			r.Route("/{customerId}", func(r chi.Router) {
				r.Get("/", controllers.GetCustomer(stores.Customers, logg))
				r.Patch("/", controllers.RenameCustomer(stores.Customers, logg))
				r.Delete("/", controllers.DeleteCustomer(stores.Customers, logg))
				r.Post("/parts", controllers.EnsurePartEntry(stores.Customers, logg))
				r.Delete("/parts/{partCode}", controllers.RemovePart(stores.Customers, logg))
				r.Get("/tep-codes", controllers.ListTEPCodes(stores.TEPCodes, logg))
				r.Post("/tep-codes", controllers.CreateTEPCode(stores.TEPCodes, logg))
			})
		})

		r.Route("/tep-codes/{tepCodeId}", func(r chi.Router) {
			r.Get("/", controllers.GetTEPCode(stores.TEPCodes, logg))
			r.Patch("/", controllers.RelabelTEPCode(stores.TEPCodes, logg))
			r.Delete("/", controllers.DeleteTEPCode(stores.TEPCodes, logg))
			r.Get("/materials", controllers.ListMaterials(stores.Materials, logg))
			r.Post("/materials", controllers.CreateMaterial(stores.Materials, strict, logg))
			r.Post("/materials/recompute", controllers.RecomputeMaterials(stores.Materials, logg))
		})

		r.Route("/materials/{materialId}", func(r chi.Router) {
			r.Get("/", controllers.GetMaterial(stores.Materials, logg))
			r.Patch("/", controllers.UpdateMaterial(stores.Materials, strict, logg))
			r.Delete("/", controllers.DeleteMaterial(stores.Materials, logg))
			r.Patch("/name", controllers.RenameMaterial(stores.Materials, logg))
		})

		r.Route("/master-materials", func(r chi.Router) {
			r.Get("/", controllers.ListMasterMaterials(stores.MasterMaterials, logg))
			r.Post("/", controllers.UpsertMasterMaterial(stores.MasterMaterials, logg))
			r.Get("/by-partcode/{partcode}", controllers.GetMasterMaterialByPartcode(stores.MasterMaterials, logg))
			r.Route("/{masterMaterialId}", func(r chi.Router) {
				r.Get("/", controllers.GetMasterMaterial(stores.MasterMaterials, logg))
				r.Patch("/", controllers.UpdateMasterMaterial(stores.MasterMaterials, logg))
				r.Delete("/", controllers.DeleteMasterMaterial(stores.MasterMaterials, logg))
			})
		})
	})

	return r
}
