package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/iye-ms/msec-feedback/pkg/analytics"
	"github.com/iye-ms/msec-feedback/pkg/classifier"
	"github.com/iye-ms/msec-feedback/pkg/common/logger"
	"github.com/iye-ms/msec-feedback/pkg/common/models"
	"github.com/iye-ms/msec-feedback/pkg/feedback"
)

// ErrNoData means the reporting window contained no feedback for the
// product, so there is nothing to report on.
var ErrNoData = errors.New("no feedback in reporting window")

const (
	reportWindowDays = 7
	maxTopTopics     = 5
	maxEmerging      = 3
	maxSamples       = 20
	maxSnippetLen    = 200
)

// EntrySource reads persisted feedback for a reporting window.
type EntrySource interface {
	EntriesInWindow(ctx context.Context, product models.Product, from, to time.Time) ([]feedback.Entry, error)
}

// Store persists generated reports.
type Store interface {
	Upsert(ctx context.Context, report *WeeklyReport) error
}

// Summarizer produces the narrative executive summary.
type Summarizer interface {
	Summarize(ctx context.Context, req classifier.SummaryRequest) (string, error)
}

// Reconciler keeps issue lifecycle state in step with each report's
// emerging set.
type Reconciler interface {
	Reconcile(ctx context.Context, product models.Product, emergingTopics []string) (opened, resolved []string, err error)
}

type Generator struct {
	entries    EntrySource
	store      Store
	summarizer Summarizer
	tracker    Reconciler
	now        func() time.Time
}

func NewGenerator(entries EntrySource, store Store, summarizer Summarizer, tracker Reconciler) *Generator {
	return &Generator{
		entries:    entries,
		store:      store,
		summarizer: summarizer,
		tracker:    tracker,
		now:        time.Now,
	}
}

// Generate builds, persists, and returns the weekly report for a product.
// The window is the trailing seven days ending now. Summarizer failures
// degrade to a statistics-only summary; they never block the report.
func (g *Generator) Generate(ctx context.Context, product models.Product) (*WeeklyReport, error) {
	to := g.now()
	from := to.AddDate(0, 0, -reportWindowDays)

	entries, err := g.entries.EntriesInWindow(ctx, product, from, to)
	if err != nil {
		return nil, fmt.Errorf("loading feedback window: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrNoData
	}

	aggregates := analytics.Aggregate(entries)
	topTopics := analytics.TopTopics(aggregates, maxTopTopics)
	emerging := analytics.Emerging(aggregates, maxEmerging)
	positive, neutral, negative := analytics.SentimentCounts(entries)

	topicNames := make([]string, len(topTopics))
	for i, agg := range topTopics {
		topicNames[i] = agg.Topic
	}
	emergingStrings := make([]string, len(emerging))
	emergingTopics := make([]string, len(emerging))
	for i, agg := range emerging {
		emergingStrings[i] = analytics.FormatIssue(agg)
		emergingTopics[i] = agg.Topic
	}

	if g.tracker != nil {
		opened, resolved, err := g.tracker.Reconcile(ctx, product, emergingTopics)
		if err != nil {
			logger.Log.WithError(err).WithField("product", product).Error("issue lifecycle reconcile failed")
		} else if len(opened) > 0 || len(resolved) > 0 {
			logger.Log.WithFields(map[string]interface{}{
				"product":  product,
				"opened":   opened,
				"resolved": resolved,
			}).Info("issue lifecycle updated")
		}
	}

	summary := g.summarize(ctx, product, from, to, entries, topicNames, positive, neutral, negative)

	topicsJSON, err := json.Marshal(emptyAsList(topicNames))
	if err != nil {
		return nil, err
	}
	emergingJSON, err := json.Marshal(emptyAsList(emergingStrings))
	if err != nil {
		return nil, err
	}

	report := &WeeklyReport{
		ID:             uuid.New().String(),
		Product:        product,
		ReportDate:     to.UTC().Format("2006-01-02"),
		WeekStart:      from,
		WeekEnd:        to,
		TotalFeedback:  len(entries),
		PositiveCount:  positive,
		NeutralCount:   neutral,
		NegativeCount:  negative,
		TopTopics:      topicsJSON,
		EmergingIssues: emergingJSON,
		Summary:        summary,
		GeneratedAt:    to,
	}

	if err := g.store.Upsert(ctx, report); err != nil {
		return nil, fmt.Errorf("persisting report: %w", err)
	}
	return report, nil
}

func (g *Generator) summarize(ctx context.Context, product models.Product, from, to time.Time, entries []feedback.Entry, topTopics []string, positive, neutral, negative int) string {
	total := len(entries)
	fallback := fmt.Sprintf(
		"Weekly report for %s (%s to %s): %d feedback items (%d positive, %d neutral, %d negative).",
		product, from.UTC().Format("2006-01-02"), to.UTC().Format("2006-01-02"),
		total, positive, neutral, negative,
	)
	if g.summarizer == nil {
		return fallback
	}

	req := classifier.SummaryRequest{
		Product:       product,
		WeekStart:     from.UTC().Format("2006-01-02"),
		WeekEnd:       to.UTC().Format("2006-01-02"),
		TotalFeedback: total,
		SentimentPercent: map[string]int{
			"positive": percent(positive, total),
			"neutral":  percent(neutral, total),
			"negative": percent(negative, total),
		},
		TopTopics: topTopics,
		Samples:   sampleEntries(entries),
	}

	summary, err := g.summarizer.Summarize(ctx, req)
	if err != nil {
		logger.Log.WithError(err).WithField("product", product).Warn("summary generation failed, using statistics-only summary")
		return fallback
	}
	return summary
}

func sampleEntries(entries []feedback.Entry) []classifier.Sample {
	n := len(entries)
	if n > maxSamples {
		n = maxSamples
	}
	samples := make([]classifier.Sample, 0, n)
	for _, entry := range entries[:n] {
		// Truncate on rune boundaries; a split UTF-8 sequence garbles the
		// LLM prompt.
		snippet := entry.Content
		if utf8.RuneCountInString(snippet) > maxSnippetLen {
			snippet = string([]rune(snippet)[:maxSnippetLen])
		}
		samples = append(samples, classifier.Sample{
			Topic:     entry.Topic,
			Sentiment: string(entry.Sentiment),
			Type:      string(entry.FeedbackType),
			Snippet:   snippet,
		})
	}
	return samples
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return part * 100 / total
}

// emptyAsList keeps empty slices serializing as [] instead of null.
func emptyAsList(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
