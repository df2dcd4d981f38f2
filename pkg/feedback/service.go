package feedback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iye-ms/msec-feedback/pkg/classifier"
	"github.com/iye-ms/msec-feedback/pkg/common/logger"
	"github.com/iye-ms/msec-feedback/pkg/common/models"
)

// Store is the persistence surface the ingestion pipeline needs.
type Store interface {
	Exists(ctx context.Context, source models.Source, naturalKey, url string) (bool, error)
	Insert(ctx context.Context, entry *Entry) error
	RecordRun(ctx context.Context, run *IngestionRun) error
}

// Classifier labels one piece of feedback.
type Classifier interface {
	Classify(ctx context.Context, content string) (classifier.Classification, error)
}

// Publisher emits platform events; publishing is best-effort.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType, source string, data map[string]interface{}) error
}

// BatchOptions configures how one adapter batch is processed.
type BatchOptions struct {
	Product models.Product
	Source  models.Source

	// DefaultType and DefaultTopic fill in when classification is skipped
	// or fails: question for Q&A-style sources, feature_request for
	// portal ideas.
	DefaultType  models.FeedbackType
	DefaultTopic string

	// Classify disables LLM calls when false (Sprinklr and CSV rows carry
	// their own sentiment labels).
	Classify bool
}

// Service drives the per-post pipeline for a fetched batch: dedup check
// first (never spend an LLM call on a row that will be discarded), then
// classification, then insert. Row-level failures are counted, not fatal.
type Service struct {
	store      Store
	classifier Classifier
	publisher  Publisher
	now        func() time.Time
}

func NewService(store Store, cls Classifier, publisher Publisher) *Service {
	return &Service{
		store:      store,
		classifier: cls,
		publisher:  publisher,
		now:        time.Now,
	}
}

// IngestBatch processes one adapter batch and records the run unconditionally.
func (s *Service) IngestBatch(ctx context.Context, opts BatchOptions, posts []models.RawPost) (models.IngestResult, error) {
	startedAt := s.now().UTC()

	var (
		newPosts   int
		duplicates int
		rowErrors  int
		limitErr   error
	)

	for _, post := range posts {
		if !post.HasKey() {
			logger.Log.WithField("source", opts.Source).Warn("skipping post with no dedup key")
			rowErrors++
			continue
		}

		naturalKey := post.ExternalID
		if naturalKey == "" {
			naturalKey = post.URL
		}

		exists, err := s.store.Exists(ctx, opts.Source, naturalKey, post.URL)
		if err != nil {
			logger.Log.WithError(err).Error("dedup check failed")
			rowErrors++
			continue
		}
		if exists {
			duplicates++
			continue
		}

		cls := s.classifyPost(ctx, opts, post, &limitErr)

		product := opts.Product
		if post.Product != "" {
			product = post.Product
		}

		entry := &Entry{
			Product:         product,
			Source:          opts.Source,
			Author:          post.Author,
			Title:           post.Title,
			Content:         post.Content(),
			URL:             post.URL,
			Timestamp:       post.CreatedAt,
			Sentiment:       cls.Sentiment,
			Topic:           cls.Topic,
			FeedbackType:    cls.FeedbackType,
			EngagementScore: post.EngagementScore,
			Score:           post.Score,
			NaturalKey:      naturalKey,
		}
		if entry.Timestamp.IsZero() {
			entry.Timestamp = startedAt
		}

		if err := s.store.Insert(ctx, entry); err != nil {
			// A parallel ingest for the same source can win the race
			// between the Exists check and this insert; the unique
			// index reports it as a duplicate, not a failure.
			if errors.Is(err, ErrDuplicate) {
				duplicates++
				continue
			}
			logger.Log.WithError(err).WithField("url", post.URL).Error("insert failed")
			rowErrors++
			continue
		}
		newPosts++
	}

	status := StatusSuccess
	if rowErrors > 0 {
		status = StatusPartialSuccess
	}

	run := &IngestionRun{
		Product:           opts.Product,
		Source:            opts.Source,
		LastIngestionTime: startedAt,
		Status:            status,
		NewPosts:          newPosts,
		TotalProcessed:    len(posts),
		Errors:            rowErrors,
	}
	if err := s.store.RecordRun(ctx, run); err != nil {
		logger.Log.WithError(err).Error("failed to record ingestion run")
	}

	s.publishRun(ctx, run)

	message := fmt.Sprintf("Processed %d posts: %d new, %d duplicates, %d errors", len(posts), newPosts, duplicates, rowErrors)
	if limitErr != nil {
		message += "; classification degraded: " + limitErr.Error()
	}

	return models.IngestResult{
		Success:        true,
		NewPosts:       newPosts,
		Duplicates:     duplicates,
		Errors:         rowErrors,
		TotalProcessed: len(posts),
		Message:        message,
	}, nil
}

// classifyPost labels a post, substituting defaults on any failure. Once the
// classifier reports a rate limit or exhausted quota, the rest of the batch
// skips LLM calls entirely; ingestion itself is never blocked.
func (s *Service) classifyPost(ctx context.Context, opts BatchOptions, post models.RawPost, limitErr *error) classifier.Classification {
	if opts.Classify && s.classifier != nil && *limitErr == nil {
		content := post.Content()
		if post.Title != "" && post.Title != content {
			content = post.Title + "\n\n" + content
		}

		cls, err := s.classifier.Classify(ctx, content)
		if err == nil {
			return cls
		}
		if errors.Is(err, classifier.ErrRateLimited) || errors.Is(err, classifier.ErrQuotaExhausted) {
			*limitErr = err
			logger.Log.WithError(err).Warn("classifier unavailable, applying defaults for remainder of batch")
		} else {
			logger.Log.WithError(err).Warn("classification failed, applying defaults")
		}
	}

	cls := classifier.Default(opts.DefaultType)
	if opts.DefaultTopic != "" {
		cls.Topic = opts.DefaultTopic
	}
	if post.SentimentHint != "" {
		cls.Sentiment = post.SentimentHint
	}
	return cls
}

func (s *Service) publishRun(ctx context.Context, run *IngestionRun) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishEvent(ctx, "ingestion-run", string(run.Source), map[string]interface{}{
		"product":         run.Product,
		"status":          run.Status,
		"new_posts":       run.NewPosts,
		"total_processed": run.TotalProcessed,
		"errors":          run.Errors,
	})
	if err != nil {
		logger.Log.WithError(err).Warn("failed to publish ingestion run event")
	}
}
