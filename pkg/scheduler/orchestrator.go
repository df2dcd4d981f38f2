package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/iye-ms/msec-feedback/pkg/common/logger"
	"github.com/iye-ms/msec-feedback/pkg/common/models"
	"github.com/iye-ms/msec-feedback/pkg/feedback"
)

// RunStore reads ingestion history to enforce the per-product cooldown.
type RunStore interface {
	LastRun(ctx context.Context, product models.Product) (*feedback.IngestionRun, error)
}

// IngestRunner is one source's runner, see feedback.Runner.
type IngestRunner interface {
	Name() string
	Run(ctx context.Context, product models.Product) (models.IngestResult, error)
}

// ProductResult is the outcome of one product's scheduled pass.
type ProductResult struct {
	Product  models.Product                 `json:"product"`
	Skipped  bool                           `json:"skipped"`
	Reason   string                         `json:"reason,omitempty"`
	Sources  map[string]models.IngestResult `json:"sources,omitempty"`
	Failures map[string]string              `json:"failures,omitempty"`
}

// Orchestrator runs every configured adapter for every product, strictly
// sequentially with delays between calls so upstream rate limits stay happy.
// One product failing never stops the pass.
type Orchestrator struct {
	runners  []IngestRunner
	runs     RunStore
	products []models.Product

	adapterDelay time.Duration
	productDelay time.Duration
	cooldown     time.Duration

	sleep func(time.Duration)
	now   func() time.Time
}

func NewOrchestrator(runners []IngestRunner, runs RunStore, adapterDelay, productDelay, cooldown time.Duration) *Orchestrator {
	return &Orchestrator{
		runners:      runners,
		runs:         runs,
		products:     models.Products,
		adapterDelay: adapterDelay,
		productDelay: productDelay,
		cooldown:     cooldown,
		sleep:        time.Sleep,
		now:          time.Now,
	}
}

// RunAll executes one full scheduled pass over the product set.
func (o *Orchestrator) RunAll(ctx context.Context) map[models.Product]ProductResult {
	logger.Log.WithField("products", len(o.products)).Info("Starting scheduled ingestion pass")
	results := make(map[models.Product]ProductResult, len(o.products))

	for i, product := range o.products {
		if i > 0 {
			o.sleep(o.productDelay)
		}
		results[product] = o.runProduct(ctx, product)
	}

	logger.Log.Info("Scheduled ingestion pass complete")
	return results
}

func (o *Orchestrator) runProduct(ctx context.Context, product models.Product) ProductResult {
	result := ProductResult{Product: product}

	if skip, reason := o.inCooldown(ctx, product); skip {
		result.Skipped = true
		result.Reason = reason
		logger.Log.WithFields(map[string]interface{}{
			"product": product,
			"reason":  reason,
		}).Info("Skipping product, cooldown active")
		return result
	}

	result.Sources = make(map[string]models.IngestResult)
	result.Failures = make(map[string]string)

	for i, runner := range o.runners {
		if i > 0 {
			o.sleep(o.adapterDelay)
		}

		runResult, err := runner.Run(ctx, product)
		if err != nil {
			result.Failures[runner.Name()] = err.Error()
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"source":  runner.Name(),
				"product": product,
			}).Error("scheduled ingestion run failed")
			continue
		}
		result.Sources[runner.Name()] = runResult
	}
	return result
}

// inCooldown reports whether the product was ingested too recently. The
// check reads persisted run metadata, so restarts cannot reset it.
func (o *Orchestrator) inCooldown(ctx context.Context, product models.Product) (bool, string) {
	if o.cooldown <= 0 {
		return false, ""
	}

	last, err := o.runs.LastRun(ctx, product)
	if errors.Is(err, feedback.ErrNotFound) {
		return false, ""
	}
	if err != nil {
		logger.Log.WithError(err).WithField("product", product).Warn("cooldown lookup failed, running anyway")
		return false, ""
	}

	age := o.now().Sub(last.LastIngestionTime)
	if age < o.cooldown {
		return true, "last ingestion " + age.Round(time.Second).String() + " ago"
	}
	return false, ""
}

// Register exposes a manual trigger for one scheduled pass.
func (o *Orchestrator) Register(router *mux.Router) {
	router.HandleFunc("/ingest/scheduled", o.handleTrigger).Methods(http.MethodPost)
}

func (o *Orchestrator) handleTrigger(w http.ResponseWriter, r *http.Request) {
	results := o.RunAll(r.Context())

	byName := make(map[string]ProductResult, len(results))
	for product, result := range results {
		byName[string(product)] = result
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(byName)
}
