package feedback

import (
	"time"

	"github.com/iye-ms/msec-feedback/pkg/common/models"
)

const (
	StatusSuccess        = "success"
	StatusPartialSuccess = "partial_success"
	StatusFailure        = "failure"
)

// Entry is one persisted piece of feedback. Entries are append-only: never
// mutated after insert, never deleted. NaturalKey is always populated (the
// source's external id, falling back to the URL), so the composite unique
// index on (source, natural_key) is the store-level dedup guarantee even when
// ingest calls race.
type Entry struct {
	ID              string              `json:"id" gorm:"primaryKey;column:id"`
	Product         models.Product      `json:"product" gorm:"column:product;index:idx_feedback_product_time,priority:1"`
	Source          models.Source       `json:"source" gorm:"column:source;uniqueIndex:idx_feedback_source_key,priority:1"`
	Author          string              `json:"author" gorm:"column:author"`
	Title           string              `json:"title,omitempty" gorm:"column:title"`
	Content         string              `json:"content" gorm:"column:content"`
	URL             string              `json:"url" gorm:"column:url;index"`
	Timestamp       time.Time           `json:"timestamp" gorm:"column:timestamp;index:idx_feedback_product_time,priority:2"`
	Sentiment       models.Sentiment    `json:"sentiment" gorm:"column:sentiment"`
	Topic           string              `json:"topic" gorm:"column:topic"`
	FeedbackType    models.FeedbackType `json:"feedback_type" gorm:"column:feedback_type"`
	EngagementScore int                 `json:"engagement_score" gorm:"column:engagement_score"`
	Score           int                 `json:"score" gorm:"column:score"`
	NaturalKey      string              `json:"natural_key,omitempty" gorm:"column:natural_key;uniqueIndex:idx_feedback_source_key,priority:2"`
	CreatedAt       time.Time           `json:"created_at" gorm:"column:created_at"`
}

func (Entry) TableName() string {
	return "feedback_entries"
}

// IngestionRun is the immutable audit record written after every adapter
// invocation, successful or not.
type IngestionRun struct {
	ID                string         `json:"id" gorm:"primaryKey;column:id"`
	Product           models.Product `json:"product" gorm:"column:product;index"`
	Source            models.Source  `json:"source" gorm:"column:source"`
	LastIngestionTime time.Time      `json:"last_ingestion_time" gorm:"column:last_ingestion_time;index"`
	Status            string         `json:"status" gorm:"column:status"`
	NewPosts          int            `json:"new_posts" gorm:"column:new_posts"`
	TotalProcessed    int            `json:"total_processed" gorm:"column:total_processed"`
	Errors            int            `json:"errors" gorm:"column:errors"`
}

func (IngestionRun) TableName() string {
	return "ingestion_metadata"
}
