package analytics

import (
	"fmt"
	"math"
	"sort"

	"github.com/iye-ms/msec-feedback/pkg/common/models"
	"github.com/iye-ms/msec-feedback/pkg/feedback"
)

// The emerging-issue rule. These constants are evaluated in exactly one
// place (IsEmerging); the dashboard, report generator, and lifecycle tracker
// all go through it, so the thresholds cannot drift between surfaces.
const (
	emergingNegativeRatio = 0.3
	emergingMinMentions   = 3
)

const maxSampleEntries = 3

// TopicAggregate is the per-topic rollup of a feedback window. Derived on
// demand, never persisted.
type TopicAggregate struct {
	Topic         string           `json:"topic"`
	MentionCount  int              `json:"mention_count"`
	PositiveCount int              `json:"positive_count"`
	NeutralCount  int              `json:"neutral_count"`
	NegativeCount int              `json:"negative_count"`
	NegativeRatio float64          `json:"negative_ratio"`
	SampleEntries []feedback.Entry `json:"sample_entries,omitempty"`
}

// IsEmerging applies the emerging-issue rule: strictly more negative than
// the ratio threshold AND strictly more mentions than the volume floor.
// Boundary values (ratio exactly 0.3, exactly 3 mentions) do not qualify.
func (t TopicAggregate) IsEmerging() bool {
	return t.NegativeRatio > emergingNegativeRatio && t.MentionCount > emergingMinMentions
}

// Aggregate groups entries by topic, preserving first-seen topic order.
func Aggregate(entries []feedback.Entry) []TopicAggregate {
	index := make(map[string]int)
	var aggregates []TopicAggregate

	for _, entry := range entries {
		i, ok := index[entry.Topic]
		if !ok {
			i = len(aggregates)
			index[entry.Topic] = i
			aggregates = append(aggregates, TopicAggregate{Topic: entry.Topic})
		}

		agg := &aggregates[i]
		agg.MentionCount++
		switch entry.Sentiment {
		case models.SentimentPositive:
			agg.PositiveCount++
		case models.SentimentNegative:
			agg.NegativeCount++
		default:
			agg.NeutralCount++
		}
		if len(agg.SampleEntries) < maxSampleEntries {
			agg.SampleEntries = append(agg.SampleEntries, entry)
		}
	}

	for i := range aggregates {
		aggregates[i].NegativeRatio = float64(aggregates[i].NegativeCount) / float64(aggregates[i].MentionCount)
	}
	return aggregates
}

// Emerging filters aggregates down to qualifying topics, sorted by negative
// ratio descending. The sort is stable so ties keep first-seen order.
func Emerging(aggregates []TopicAggregate, limit int) []TopicAggregate {
	var emerging []TopicAggregate
	for _, agg := range aggregates {
		if agg.IsEmerging() {
			emerging = append(emerging, agg)
		}
	}

	sort.SliceStable(emerging, func(i, j int) bool {
		return emerging[i].NegativeRatio > emerging[j].NegativeRatio
	})

	if limit > 0 && len(emerging) > limit {
		emerging = emerging[:limit]
	}
	return emerging
}

// TopTopics returns the highest-volume aggregates, stable on ties.
func TopTopics(aggregates []TopicAggregate, limit int) []TopicAggregate {
	top := make([]TopicAggregate, len(aggregates))
	copy(top, aggregates)

	sort.SliceStable(top, func(i, j int) bool {
		return top[i].MentionCount > top[j].MentionCount
	})

	if limit > 0 && len(top) > limit {
		top = top[:limit]
	}
	return top
}

// FormatIssue renders an emerging issue as the human-readable string used in
// reports and on the dashboard.
func FormatIssue(agg TopicAggregate) string {
	pct := int(math.Round(agg.NegativeRatio * 100))
	return fmt.Sprintf("%s (%d mentions, %d%% negative)", agg.Topic, agg.MentionCount, pct)
}

// SentimentCounts tallies a window's entries per sentiment.
func SentimentCounts(entries []feedback.Entry) (positive, neutral, negative int) {
	for _, entry := range entries {
		switch entry.Sentiment {
		case models.SentimentPositive:
			positive++
		case models.SentimentNegative:
			negative++
		default:
			neutral++
		}
	}
	return positive, neutral, negative
}
