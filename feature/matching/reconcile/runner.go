package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"matchmaker/core/metrics"
	"matchmaker/core/reconcile"
	"matchmaker/core/storage"
	"matchmaker/feature/matching/models"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// Report summarizes one reconciliation pass of a category.
type Report struct {
	Category           string                   `json:"category"`
	DryRun             bool                     `json:"dryRun"`
	GeneratedAt        time.Time                `json:"generatedAt"`
	AddedToCache       int                      `json:"addedToCache"`
	RemovedFromCache   int                      `json:"removedFromCache"`
	AddedToStore       int                      `json:"addedToStore"`
	DeactivatedInStore int                      `json:"deactivatedInStore"`
	Failed             []reconcile.ActionError  `json:"failed,omitempty"`
	Plan               *reconcile.ReconcilePlan `json:"plan"`
}

// Archive is where reports are written. A nil client disables archiving.
type Archive struct {
	Client storage.Client
	Bucket string
}

// Runner reconciles the queue cache against the waiting store.
type Runner struct {
	adapter *WaitingAdapter
	archive Archive
	metrics metrics.Recorder
	logger  *zap.Logger
}

// NewRunner creates a runner.
func NewRunner(adapter *WaitingAdapter, archive Archive, m metrics.Recorder, logger *zap.Logger) *Runner {
	if m == nil {
		m = metrics.NewNop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{adapter: adapter, archive: archive, metrics: m, logger: logger}
}

// Reconcile brings the cache of category in line with the store. With dryRun the plan
// is computed and reported but nothing is written. Action failures are reported and
// returned; the remaining actions still run.
func (r *Runner) Reconcile(ctx context.Context, category string, dryRun bool) (*Report, error) {
	if _, ok := models.ParseCategory(category); !ok {
		return nil, fmt.Errorf("invalid category %q", category)
	}

	spec := &reconcile.Spec{Adapter: r.adapter, Scope: category}
	plan, applied, err := reconcile.ReconcileAndApply(ctx, spec, reconcile.ReconcileOptions{DryRun: dryRun})
	if plan == nil {
		return nil, err
	}

	report := &Report{
		Category:           category,
		DryRun:             dryRun,
		GeneratedAt:        time.Now().UTC(),
		AddedToCache:       applied.Executed[reconcile.ActionAddCache],
		RemovedFromCache:   applied.Executed[reconcile.ActionRemoveCache],
		AddedToStore:       applied.Executed[reconcile.ActionAddStore],
		DeactivatedInStore: applied.Executed[reconcile.ActionDeactivateStore],
		Failed:             applied.Failed,
		Plan:               plan,
	}

	for action, count := range applied.Executed {
		r.metrics.ReconcileActions(category, string(action), count)
	}

	if len(plan.Actions) > 0 {
		r.logger.Info("Reconciled waiting users",
			zap.String("category", category),
			zap.Bool("dry_run", dryRun),
			zap.Int("planned", len(plan.Actions)),
			zap.Int("executed", applied.Total()),
			zap.Int("failed", len(applied.Failed)),
		)
		r.store(ctx, report)
	}

	return report, err
}

// ReconcileAll reconciles both categories.
func (r *Runner) ReconcileAll(ctx context.Context) error {
	var firstErr error
	for _, c := range models.Categories {
		if _, err := r.Reconcile(ctx, c.String(), false); err != nil {
			r.logger.Warn("Reconciliation failed", zap.String("category", c.String()), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// store archives the report as JSON. Failures are logged only.
func (r *Runner) store(ctx context.Context, report *Report) {
	if r.archive.Client == nil {
		return
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		r.logger.Warn("Failed to encode reconcile report", zap.Error(err))
		return
	}

	name := ReportObjectName(report.Category, report.GeneratedAt)
	_, err = r.archive.Client.PutObject(ctx, r.archive.Bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		r.logger.Warn("Failed to archive reconcile report", zap.String("object", name), zap.Error(err))
	}
}

// ReportObjectName is the object key a report generated at is archived under.
func ReportObjectName(category string, at time.Time) string {
	return fmt.Sprintf("reports/reconcile/%s/%s.json", category, at.UTC().Format("20060102T150405.000Z"))
}
