package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CatalogMetrics counts allocator decisions and import row results.
type CatalogMetrics struct {
	materialNames *prometheus.CounterVec
	partNames     *prometheus.CounterVec
	importRows    *prometheus.CounterVec
}

// NewCatalogMetrics registers the catalog metrics on the provided registerer.
// A nil registerer yields a recorder whose methods are no-ops.
func NewCatalogMetrics(reg prometheus.Registerer) *CatalogMetrics {
	if reg == nil {
		return &CatalogMetrics{}
	}
	materialNames := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_material_name_allocations_total",
		Help: "Material name allocations by outcome (bare, renamed, numbered).",
	}, []string{"outcome"})
	partNames := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_part_entries_total",
		Help: "Part entry requests by result (existing, appended).",
	}, []string{"result"})
	importRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_import_rows_total",
		Help: "Bulk import rows by result.",
	}, []string{"result"})
	reg.MustRegister(materialNames, partNames, importRows)
	return &CatalogMetrics{
		materialNames: materialNames,
		partNames:     partNames,
		importRows:    importRows,
	}
}

// IncMaterialName records one material name allocation.
func (c *CatalogMetrics) IncMaterialName(outcome string) {
	if c == nil || c.materialNames == nil {
		return
	}
	c.materialNames.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncPartEntry records one part entry request.
func (c *CatalogMetrics) IncPartEntry(appended bool) {
	if c == nil || c.partNames == nil {
		return
	}
	result := "existing"
	if appended {
		result = "appended"
	}
	c.partNames.WithLabelValues(result).Inc()
}

// AddImportRows adds n rows with the given result.
func (c *CatalogMetrics) AddImportRows(result string, n int) {
	if c == nil || c.importRows == nil || n <= 0 {
		return
	}
	c.importRows.WithLabelValues(normalizeLabel(result)).Add(float64(n))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
