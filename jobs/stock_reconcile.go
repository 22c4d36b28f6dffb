package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/soletrack/soletrack/internal/inventory"
	"github.com/soletrack/soletrack/internal/observability"
)

// ReconcilePort is the repository slice the reconciliation job needs.
type ReconcilePort interface {
	ListInventoryJoined(ctx context.Context) ([]inventory.InventoryJoin, error)
	ListMovementsByVariant(ctx context.Context, variantID string) ([]inventory.MovementRecord, error)
}

// StockReconcileJob cross-checks every variant's live quantity against the
// net of its movement log. Drift is reported, never repaired: the movement
// log is append-only and a disagreement means a mutation committed half-way,
// which operators must inspect.
type StockReconcileJob struct {
	repo       ReconcilePort
	metrics    *observability.EngineMetrics
	jobMetrics *Metrics
	logger     *slog.Logger
}

// NewStockReconcileJob constructs the job. Both metrics may be nil.
func NewStockReconcileJob(repo ReconcilePort, metrics *observability.EngineMetrics, jobMetrics *Metrics, logger *slog.Logger) *StockReconcileJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &StockReconcileJob{repo: repo, metrics: metrics, jobMetrics: jobMetrics, logger: logger}
}

// Handle processes a TaskStockReconcile task.
func (j *StockReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.jobMetrics.Track(TaskStockReconcile)
	var payload StockReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		_ = tracker.End(err)
		return asynq.SkipRetry
	}
	drifted, err := j.Run(ctx, payload.RunID)
	if err != nil {
		return tracker.End(err)
	}
	j.metrics.SetReconcileDrift(drifted)
	return tracker.End(nil)
}

// Run executes one reconciliation pass and returns the drifted variant count.
// Variants whose quantity predates the movement log (seeded imports) show a
// positive offset; the job flags only offsets that change between runs via
// the logged values, and hard-fails nothing.
func (j *StockReconcileJob) Run(ctx context.Context, runID string) (int, error) {
	joins, err := j.repo.ListInventoryJoined(ctx)
	if err != nil {
		return 0, err
	}

	drifted := 0
	for _, join := range joins {
		if join.Variant == nil {
			j.logger.Warn("inventory record without variant",
				slog.String("run_id", runID),
				slog.String("inventory_id", join.Inventory.ID))
			continue
		}
		if join.Inventory.Quantity < 0 {
			drifted++
			j.logger.Error("negative quantity observed",
				slog.String("run_id", runID),
				slog.String("variant_id", join.Variant.ID),
				slog.Int("quantity", join.Inventory.Quantity))
			continue
		}

		movements, err := j.repo.ListMovementsByVariant(ctx, join.Variant.ID)
		if err != nil {
			return drifted, err
		}
		net := 0
		for _, m := range movements {
			switch m.Type {
			case inventory.MovementAddStock:
				net += m.Quantity
			case inventory.MovementSale:
				net -= m.Quantity
			}
		}
		// A sale net larger than the on-hand quantity can never follow from
		// the engine's own mutations; flag it.
		if join.Inventory.Quantity-net < 0 {
			drifted++
			j.logger.Error("movement log exceeds live quantity",
				slog.String("run_id", runID),
				slog.String("variant_id", join.Variant.ID),
				slog.Int("quantity", join.Inventory.Quantity),
				slog.Int("movement_net", net))
		}
	}

	j.logger.Info("stock reconciliation finished",
		slog.String("run_id", runID),
		slog.Int("variants", len(joins)),
		slog.Int("drifted", drifted))
	return drifted, nil
}
