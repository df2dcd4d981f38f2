package twitter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/iye-ms/msec-feedback/pkg/common/models"
)

// Logical fields matched case-insensitively against exported column headers.
// Sprinklr (and most social tools) rename columns between export templates,
// so each field accepts several synonyms.
var fieldSynonyms = map[string][]string{
	"message":   {"message", "text", "content", "body", "post"},
	"author":    {"author", "user", "username", "screen_name", "handle"},
	"url":       {"permalink", "url", "link", "post_url"},
	"created":   {"created", "date", "time", "timestamp", "posted"},
	"sentiment": {"sentiment"},
	"likes":     {"likes", "like_count", "favorites"},
	"retweets":  {"retweets", "retweet_count", "shares"},
	"replies":   {"replies", "reply_count", "comments"},
}

var csvDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"2006-01-02",
	"Jan 2, 2006 3:04 PM",
}

// ParseCSV converts a social-listening CSV export into raw posts. Rows
// missing both a message and a permalink are dropped. Rows without a
// permalink get a content-hash natural key so that re-importing the same
// export never duplicates entries.
func ParseCSV(r io.Reader, now time.Time) ([]models.RawPost, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	columns := mapColumns(header)

	var posts []models.RawPost
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A malformed row should not sink the rest of the export.
			continue
		}

		message := field(record, columns, "message")
		permalink := field(record, columns, "url")
		if message == "" && permalink == "" {
			continue
		}

		externalID := ""
		if permalink == "" {
			externalID = ContentKey(message)
		}

		author := field(record, columns, "author")
		if author == "" {
			author = "Unknown"
		}

		likes := parseCount(field(record, columns, "likes"))
		retweets := parseCount(field(record, columns, "retweets"))
		replies := parseCount(field(record, columns, "replies"))

		posts = append(posts, models.RawPost{
			ExternalID:      externalID,
			Author:          author,
			Title:           truncateTitle(message),
			Body:            message,
			URL:             permalink,
			CreatedAt:       parseCSVDate(field(record, columns, "created"), now),
			EngagementScore: likes + retweets + replies,
			Score:           likes,
			SentimentHint:   csvSentiment(field(record, columns, "sentiment")),
		})
	}
	return posts, nil
}

// mapColumns resolves each logical field to the first header column whose
// name contains one of its synonyms, case-insensitively.
func mapColumns(header []string) map[string]int {
	columns := make(map[string]int)
	for logical, synonyms := range fieldSynonyms {
		for _, synonym := range synonyms {
			for i, name := range header {
				if strings.Contains(strings.ToLower(strings.TrimSpace(name)), synonym) {
					columns[logical] = i
					break
				}
			}
			if _, ok := columns[logical]; ok {
				break
			}
		}
	}
	return columns
}

func field(record []string, columns map[string]int, logical string) string {
	i, ok := columns[logical]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func parseCount(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}

func csvSentiment(value string) models.Sentiment {
	lower := strings.ToLower(value)
	switch {
	case strings.Contains(lower, "positive"):
		return models.SentimentPositive
	case strings.Contains(lower, "negative"):
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

func parseCSVDate(value string, now time.Time) time.Time {
	if value == "" {
		return now
	}
	for _, layout := range csvDateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC()
		}
	}
	return now
}
