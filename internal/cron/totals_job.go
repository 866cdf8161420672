package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/tepworks/tepcatalog/internal/materials"
	pkgerrors "github.com/tepworks/tepcatalog/pkg/errors"
	"github.com/tepworks/tepcatalog/pkg/logger"
	"github.com/tepworks/tepcatalog/pkg/metrics"
)

const (
	totalsJobName        = "material-totals"
	defaultTotalsBatch   = 200
	maxTotalsBatchErrors = 50
)

type tepCodeIDLister interface {
	ListIDsAfter(ctx context.Context, afterID int64, limit int) ([]int64, error)
}

type totalsRecomputer interface {
	Recompute(ctx context.Context, tepCodeID int64) (*materials.RecomputeResult, error)
}

type TotalsJobParams struct {
	Logger    *logger.Logger
	TEPCodes  tepCodeIDLister
	Materials totalsRecomputer
	Metrics   *metrics.CronJobMetrics
	BatchSize int
}

// NewTotalsJob builds the job that walks every TEP code and rewrites material
// totals that drifted from dim_qty and loss_percent.
func NewTotalsJob(params TotalsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.TEPCodes == nil {
		return nil, fmt.Errorf("tep code repository required")
	}
	if params.Materials == nil {
		return nil, fmt.Errorf("material service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultTotalsBatch
	}
	return &totalsJob{
		logg:      params.Logger,
		tepCodes:  params.TEPCodes,
		materials: params.Materials,
		metrics:   params.Metrics,
		batch:     batch,
	}, nil
}

type totalsJob struct {
	logg      *logger.Logger
	tepCodes  tepCodeIDLister
	materials totalsRecomputer
	metrics   *metrics.CronJobMetrics
	batch     int
}

func (j *totalsJob) Name() string { return totalsJobName }

func (j *totalsJob) Run(ctx context.Context) error {
	var (
		afterID          int64
		scanned, checked int
		updated, failed  int
		errs             error
	)
	for {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		ids, err := j.tepCodes.ListIDsAfter(ctx, afterID, j.batch)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list tep codes after %d: %w", afterID, err))
		}
		for _, id := range ids {
			result, err := j.materials.Recompute(ctx, id)
			if err != nil {
				// deleted between the page read and the recompute
				if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
					continue
				}
				failed++
				if failed <= maxTotalsBatchErrors {
					errs = multierr.Append(errs, fmt.Errorf("tep code %d: %w", id, err))
				}
				continue
			}
			scanned++
			checked += result.Checked
			updated += result.Updated
		}
		if len(ids) < j.batch {
			break
		}
		afterID = ids[len(ids)-1]
	}

	j.metrics.AddRepaired(totalsJobName, updated)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"tep_codes":         scanned,
		"materials_checked": checked,
		"totals_updated":    updated,
		"failures":          failed,
	})
	j.logg.Info(logCtx, "material totals reconcile complete")
	return errs
}
