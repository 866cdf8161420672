package metrics

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCatalogMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCatalogMetrics(reg)
	metrics.IncMaterialName("renamed")
	metrics.IncMaterialName("renamed")
	metrics.IncMaterialName("")
	metrics.IncPartEntry(true)
	metrics.IncPartEntry(false)
	metrics.AddImportRows("master_inserted", 3)
	metrics.AddImportRows("master_inserted", 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	checks := []struct {
		name, label, value string
		want               float64
	}{
		{"catalog_material_name_allocations_total", "outcome", "renamed", 2},
		{"catalog_material_name_allocations_total", "outcome", "unknown", 1},
		{"catalog_part_entries_total", "result", "appended", 1},
		{"catalog_part_entries_total", "result", "existing", 1},
		{"catalog_import_rows_total", "result", "master_inserted", 3},
	}
	for _, c := range checks {
		got, err := fetchCounterValue(mfs, c.name, c.label, c.value)
		if err != nil {
			t.Fatalf("fetch %s: %v", c.name, err)
		}
		if got != c.want {
			t.Fatalf("%s{%s=%s} expected %v got %v", c.name, c.label, c.value, c.want, got)
		}
	}
}

func TestHTTPMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewHTTPMetrics(reg)
	metrics.Observe(http.MethodGet, "/api/v1/catalog", http.StatusOK, 120*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchHistogramSum(mfs, "http_request_duration_seconds", "route", "/api/v1/catalog"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestCronJobMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	metrics.IncSuccess("material-totals")
	metrics.IncFailure("material-totals")
	metrics.AddRepaired("material-totals", 4)
	metrics.AddRepaired("material-totals", 0)
	metrics.ObserveDuration("material-totals", 2*time.Second)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for name, want := range map[string]float64{
		"cron_job_success_total":       1,
		"cron_job_failure_total":       1,
		"cron_job_rows_repaired_total": 4,
	} {
		got, err := fetchCounterValue(mfs, name, "job", "material-totals")
		if err != nil {
			t.Fatalf("fetch %s: %v", name, err)
		}
		if got != want {
			t.Fatalf("%s expected %v got %v", name, want, got)
		}
	}
	if got, err := fetchHistogramSum(mfs, "cron_job_duration_seconds", "job", "material-totals"); err != nil || got != 2 {
		t.Fatalf("expected duration sum 2, got %v (%v)", got, err)
	}
}

func TestNilRecordersAreNoops(t *testing.T) {
	var catalog *CatalogMetrics
	catalog.IncMaterialName("bare")
	catalog.IncPartEntry(true)
	catalog.AddImportRows("x", 1)
	NewCatalogMetrics(nil).IncMaterialName("bare")

	var cron *CronJobMetrics
	cron.IncSuccess("job")
	cron.AddRepaired("job", 3)

	var httpMetrics *HTTPMetrics
	httpMetrics.Observe(http.MethodGet, "/", http.StatusOK, time.Millisecond)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
