package analytics

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iye-ms/msec-feedback/pkg/common/models"
)

// IssueRecord tracks one emerging issue from first detection to resolution.
// At most one active record exists per (product, topic) pair.
type IssueRecord struct {
	ID               string         `gorm:"primaryKey" json:"id"`
	Product          models.Product `gorm:"index:idx_issue_product_topic;not null" json:"product"`
	Topic            string         `gorm:"index:idx_issue_product_topic;not null" json:"topic"`
	BecameEmergingAt time.Time      `gorm:"not null" json:"became_emerging_at"`
	ResolvedAt       *time.Time     `json:"resolved_at,omitempty"`
	IsActive         bool           `gorm:"index;not null" json:"is_active"`
}

func (IssueRecord) TableName() string { return "issue_lifecycle" }

// LifespanDays reports how long the issue stayed emerging, in whole days,
// floored at 1 so same-day resolutions still count.
func (r IssueRecord) LifespanDays() int {
	if r.ResolvedAt == nil {
		return 0
	}
	days := int(r.ResolvedAt.Sub(r.BecameEmergingAt).Hours() / 24)
	if days < 1 {
		days = 1
	}
	return days
}

// LifecycleStore persists issue lifecycle state.
type LifecycleStore interface {
	ActiveIssues(ctx context.Context, product models.Product) ([]IssueRecord, error)
	ResolvedIssues(ctx context.Context, product models.Product) ([]IssueRecord, error)
	Open(ctx context.Context, record IssueRecord) error
	Resolve(ctx context.Context, id string, at time.Time) error
}

type LifecycleRepository struct {
	db *gorm.DB
}

func NewLifecycleRepository(db *gorm.DB) (*LifecycleRepository, error) {
	if err := db.AutoMigrate(&IssueRecord{}); err != nil {
		return nil, err
	}
	return &LifecycleRepository{db: db}, nil
}

func (r *LifecycleRepository) ActiveIssues(ctx context.Context, product models.Product) ([]IssueRecord, error) {
	var records []IssueRecord
	err := r.db.WithContext(ctx).
		Where("product = ? AND is_active = ?", product, true).
		Order("became_emerging_at ASC").
		Find(&records).Error
	return records, err
}

func (r *LifecycleRepository) ResolvedIssues(ctx context.Context, product models.Product) ([]IssueRecord, error) {
	var records []IssueRecord
	err := r.db.WithContext(ctx).
		Where("product = ? AND is_active = ?", product, false).
		Order("resolved_at ASC").
		Find(&records).Error
	return records, err
}

func (r *LifecycleRepository) Open(ctx context.Context, record IssueRecord) error {
	return r.db.WithContext(ctx).Create(&record).Error
}

func (r *LifecycleRepository) Resolve(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&IssueRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": false, "resolved_at": at}).Error
}

// Tracker reconciles the stored issue lifecycle against each new emerging
// snapshot.
type Tracker struct {
	store LifecycleStore
	now   func() time.Time
}

func NewTracker(store LifecycleStore) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// Reconcile compares the currently emerging topics against the active
// records. Topics not yet tracked are opened; active records whose topic is
// no longer emerging are resolved. The active set is snapshotted before any
// mutation so a topic opened this cycle is never resolved in the same cycle.
func (t *Tracker) Reconcile(ctx context.Context, product models.Product, emergingTopics []string) (opened, resolved []string, err error) {
	active, err := t.store.ActiveIssues(ctx, product)
	if err != nil {
		return nil, nil, err
	}

	activeByTopic := make(map[string]IssueRecord, len(active))
	for _, record := range active {
		activeByTopic[record.Topic] = record
	}
	emergingSet := make(map[string]bool, len(emergingTopics))
	for _, topic := range emergingTopics {
		emergingSet[topic] = true
	}

	now := t.now()

	for _, topic := range emergingTopics {
		if _, tracked := activeByTopic[topic]; tracked {
			continue
		}
		record := IssueRecord{
			ID:               uuid.New().String(),
			Product:          product,
			Topic:            topic,
			BecameEmergingAt: now,
			IsActive:         true,
		}
		if err := t.store.Open(ctx, record); err != nil {
			return opened, resolved, err
		}
		opened = append(opened, topic)
	}

	for _, record := range active {
		if emergingSet[record.Topic] {
			continue
		}
		if err := t.store.Resolve(ctx, record.ID, now); err != nil {
			return opened, resolved, err
		}
		resolved = append(resolved, record.Topic)
	}

	return opened, resolved, nil
}

// AverageLifespanDays reports the mean lifespan across resolved issues for a
// product, rounded to one decimal place. Zero when nothing has resolved yet.
func (t *Tracker) AverageLifespanDays(ctx context.Context, product models.Product) (float64, error) {
	records, err := t.store.ResolvedIssues(ctx, product)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	var total int
	for _, record := range records {
		total += record.LifespanDays()
	}
	mean := float64(total) / float64(len(records))
	return math.Round(mean*10) / 10, nil
}
