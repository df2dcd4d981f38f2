package sources

import (
	"errors"
	"fmt"
	"time"

	"github.com/iye-ms/msec-feedback/pkg/common/models"
)

// ErrSourceUnavailable marks auth or network failures against an upstream
// source. Retryable by re-running the ingestion later.
var ErrSourceUnavailable = errors.New("source unavailable")

// ParseError marks structural drift in scraped content. Adapters degrade to
// partial (or zero) results instead of failing the run; the error carries a
// sample of the unparseable content for the logs.
type ParseError struct {
	Source models.Source
	Sample string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: response structure did not match expected shape", e.Source)
}

// NewParseError trims the offending content to a loggable sample.
func NewParseError(source models.Source, content string) *ParseError {
	const sampleLen = 200
	if len(content) > sampleLen {
		content = content[:sampleLen]
	}
	return &ParseError{Source: source, Sample: content}
}

// FilterRecent drops posts older than the recency window. Posts with a zero
// CreatedAt are kept; their timestamp is unknown, not old.
func FilterRecent(posts []models.RawPost, windowDays int, now time.Time) []models.RawPost {
	if windowDays <= 0 {
		return posts
	}
	cutoff := now.AddDate(0, 0, -windowDays)
	recent := make([]models.RawPost, 0, len(posts))
	for _, post := range posts {
		if post.CreatedAt.IsZero() || !post.CreatedAt.Before(cutoff) {
			recent = append(recent, post)
		}
	}
	return recent
}
