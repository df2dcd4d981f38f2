package models

import (
	"time"
)

// Product identifies one of the tracked Microsoft security products.
type Product string

const (
	ProductIntune   Product = "intune"
	ProductEntra    Product = "entra"
	ProductDefender Product = "defender"
	ProductAzure    Product = "azure"
	ProductPurview  Product = "purview"
)

// Products is the fixed set iterated by the scheduler, in ingestion order.
var Products = []Product{ProductIntune, ProductEntra, ProductDefender, ProductAzure, ProductPurview}

func (p Product) Valid() bool {
	for _, known := range Products {
		if p == known {
			return true
		}
	}
	return false
}

// Source identifies the external origin of a feedback entry.
type Source string

const (
	SourceReddit         Source = "Reddit"
	SourceLinkedIn       Source = "LinkedIn"
	SourceTechCommunity  Source = "TechCommunity"
	SourceFeedbackPortal Source = "FeedbackPortal"
	SourceTwitter        Source = "Twitter"
)

// Sentiment is the classifier's three-way sentiment label. All components share
// this single definition; per-file string literals for sentiment are a defect.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// FeedbackType categorizes what kind of feedback a post is.
type FeedbackType string

const (
	TypeBug            FeedbackType = "bug"
	TypeFeatureRequest FeedbackType = "feature_request"
	TypePraise         FeedbackType = "praise"
	TypeQuestion       FeedbackType = "question"
)

// RawPost is the common shape every source adapter produces. It is consumed
// immediately by the ingestion pipeline and never persisted as-is.
//
// Either ExternalID or URL must be non-empty; whichever is present becomes the
// deduplication key.
type RawPost struct {
	ExternalID      string    `json:"external_id,omitempty"`
	Author          string    `json:"author"`
	Title           string    `json:"title,omitempty"`
	Body            string    `json:"body"`
	URL             string    `json:"url"`
	CreatedAt       time.Time `json:"created_at"`
	EngagementScore int       `json:"engagement_score"`
	Score           int       `json:"score"`
	Tags            []string  `json:"tags,omitempty"`

	// Product is set only by adapters that infer the product themselves
	// (bulk Q&A scraping); empty otherwise.
	Product Product `json:"product,omitempty"`

	// SentimentHint carries a source-provided sentiment (Sprinklr labels,
	// portal status heuristics). Used when classification is skipped or fails.
	SentimentHint Sentiment `json:"sentiment_hint,omitempty"`
}

// Content returns the classifiable text of the post, falling back to the
// title when the body is empty.
func (p RawPost) Content() string {
	if p.Body != "" {
		return p.Body
	}
	return p.Title
}

// HasKey reports whether the post carries a usable deduplication key.
func (p RawPost) HasKey() bool {
	return p.ExternalID != "" || p.URL != ""
}

// IngestResult is the aggregate outcome of one adapter batch, returned to
// callers instead of per-row detail.
type IngestResult struct {
	Success        bool   `json:"success"`
	NewPosts       int    `json:"new_posts"`
	Duplicates     int    `json:"duplicates"`
	Errors         int    `json:"errors"`
	TotalProcessed int    `json:"total_processed"`
	Message        string `json:"message,omitempty"`
}

// Event is the payload published to the event bus after each ingestion run.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // ingestion-run, report-generated
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}
