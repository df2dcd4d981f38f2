package feedback

import (
	"context"
	"errors"

	"github.com/iye-ms/msec-feedback/pkg/common/logger"
	"github.com/iye-ms/msec-feedback/pkg/common/models"
	"github.com/iye-ms/msec-feedback/pkg/sources"
)

// Fetcher is the contract every source adapter satisfies.
type Fetcher interface {
	Fetch(ctx context.Context, product models.Product, windowDays int) ([]models.RawPost, error)
}

// Runner binds one adapter to the ingestion pipeline. Both the HTTP handlers
// and the scheduler drive ingestion through runners so that failure handling
// is identical on every path.
type Runner struct {
	Source      models.Source
	Fetcher     Fetcher
	Service     *Service
	WindowDays  int
	DefaultType models.FeedbackType
	Topic       string
	Classify    bool

	// OnNewData fires after a run that inserted at least one post,
	// typically wired to weekly report generation.
	OnNewData func(ctx context.Context, product models.Product)
}

func (r *Runner) Name() string {
	return string(r.Source)
}

// Run fetches from the adapter and ingests the batch. Parse drift degrades
// to an empty batch; auth and network failures are recorded as a failed run
// and returned to the caller.
func (r *Runner) Run(ctx context.Context, product models.Product) (models.IngestResult, error) {
	posts, err := r.Fetcher.Fetch(ctx, product, r.WindowDays)
	if err != nil {
		var parseErr *sources.ParseError
		if errors.As(err, &parseErr) {
			logger.Log.WithFields(map[string]interface{}{
				"source":  parseErr.Source,
				"product": product,
				"sample":  parseErr.Sample,
			}).Error("adapter parse failure, continuing with empty batch")
			posts = nil
		} else {
			run := &IngestionRun{
				Product: product,
				Source:  r.Source,
				Status:  StatusFailure,
				Errors:  1,
			}
			if recordErr := r.Service.store.RecordRun(ctx, run); recordErr != nil {
				logger.Log.WithError(recordErr).Error("failed to record failed run")
			}
			return models.IngestResult{Success: false, Message: err.Error()}, err
		}
	}

	result, err := r.Service.IngestBatch(ctx, BatchOptions{
		Product:      product,
		Source:       r.Source,
		DefaultType:  r.DefaultType,
		DefaultTopic: r.Topic,
		Classify:     r.Classify,
	}, posts)
	if err != nil {
		return result, err
	}

	if result.NewPosts > 0 && r.OnNewData != nil {
		r.OnNewData(ctx, product)
	}
	return result, nil
}
