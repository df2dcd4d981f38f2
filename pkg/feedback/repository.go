package feedback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/iye-ms/msec-feedback/pkg/common/logger"
	"github.com/iye-ms/msec-feedback/pkg/common/models"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("feedback record not found")

	// ErrDuplicate surfaces a unique-index violation on (source, natural_key).
	ErrDuplicate = errors.New("feedback entry already stored")
)

// Repository persists entries and run metadata in Postgres, with an optional
// redis cache in front of the dedup existence check. The cache only ever
// holds positive hits, so a cache outage degrades to extra DB lookups.
type Repository struct {
	db       *gorm.DB
	cache    *redis.Client
	cacheTTL time.Duration
}

func NewRepository(db *gorm.DB, cache *redis.Client, cacheTTL time.Duration) *Repository {
	return &Repository{db: db, cache: cache, cacheTTL: cacheTTL}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Entry{}, &IngestionRun{})
}

func dedupCacheKey(source models.Source, naturalKey, url string) string {
	if naturalKey != "" {
		return fmt.Sprintf("feedback:key:%s:%s", source, naturalKey)
	}
	return "feedback:url:" + url
}

// Exists reports whether an entry with the given identity is already stored.
// The natural key wins when the source supplies one; the URL is the fallback.
func (r *Repository) Exists(ctx context.Context, source models.Source, naturalKey, url string) (bool, error) {
	if naturalKey == "" && url == "" {
		return false, errors.New("dedup check requires a natural key or URL")
	}

	cacheKey := dedupCacheKey(source, naturalKey, url)
	if r.cache != nil {
		hit, err := r.cache.Exists(ctx, cacheKey).Result()
		if err == nil && hit > 0 {
			return true, nil
		}
		if err != nil {
			logger.Log.WithError(err).Debug("dedup cache lookup failed, falling through to DB")
		}
	}

	query := r.db.WithContext(ctx).Model(&Entry{})
	if naturalKey != "" {
		query = query.Where("source = ? AND natural_key = ?", source, naturalKey)
	} else {
		query = query.Where("url = ?", url)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}

	if count > 0 && r.cache != nil {
		if err := r.cache.Set(ctx, cacheKey, "1", r.cacheTTL).Err(); err != nil {
			logger.Log.WithError(err).Debug("dedup cache set failed")
		}
	}
	return count > 0, nil
}

func (r *Repository) Insert(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.CreatedAt = time.Now().UTC()

	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return err
	}

	if r.cache != nil {
		cacheKey := dedupCacheKey(entry.Source, entry.NaturalKey, entry.URL)
		if err := r.cache.Set(ctx, cacheKey, "1", r.cacheTTL).Err(); err != nil {
			logger.Log.WithError(err).Debug("dedup cache set failed")
		}
	}
	return nil
}

// RecordRun writes the audit row for one adapter invocation. Runs are
// recorded even when every row in the batch failed.
func (r *Repository) RecordRun(ctx context.Context, run *IngestionRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.LastIngestionTime.IsZero() {
		run.LastIngestionTime = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(run).Error
}

// LastRun returns the most recent ingestion run for a product, used by the
// scheduler's persisted cooldown check.
func (r *Repository) LastRun(ctx context.Context, product models.Product) (*IngestionRun, error) {
	var run IngestionRun
	result := r.db.WithContext(ctx).
		Where("product = ?", product).
		Order("last_ingestion_time DESC").
		First(&run)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &run, nil
}

// EntriesInWindow returns a product's entries with timestamps inside
// [from, to], newest first.
func (r *Repository) EntriesInWindow(ctx context.Context, product models.Product, from, to time.Time) ([]Entry, error) {
	var entries []Entry
	err := r.db.WithContext(ctx).
		Where("product = ? AND timestamp >= ? AND timestamp <= ?", product, from, to).
		Order("timestamp DESC").
		Find(&entries).Error
	return entries, err
}

// RecentEntries returns the newest entries for a product, for the raw feed view.
func (r *Repository) RecentEntries(ctx context.Context, product models.Product, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []Entry
	err := r.db.WithContext(ctx).
		Where("product = ?", product).
		Order("timestamp DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
