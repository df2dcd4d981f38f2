package report

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/iye-ms/msec-feedback/pkg/common/models"
)

var ErrNotFound = errors.New("report not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&WeeklyReport{})
}

// Upsert writes a report, replacing any existing row for the same product
// and report date.
func (r *Repository) Upsert(ctx context.Context, report *WeeklyReport) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "product"}, {Name: "report_date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"week_start", "week_end", "total_feedback",
				"positive_count", "neutral_count", "negative_count",
				"top_topics", "emerging_issues", "summary", "generated_at",
			}),
		}).
		Create(report).Error
}

// Latest returns the most recent report for a product.
func (r *Repository) Latest(ctx context.Context, product models.Product) (*WeeklyReport, error) {
	var report WeeklyReport
	result := r.db.WithContext(ctx).
		Where("product = ?", product).
		Order("report_date DESC").
		First(&report)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &report, nil
}

// Recent lists a product's report history, newest first.
func (r *Repository) Recent(ctx context.Context, product models.Product, limit int) ([]WeeklyReport, error) {
	if limit <= 0 {
		limit = 10
	}
	var reports []WeeklyReport
	err := r.db.WithContext(ctx).
		Where("product = ?", product).
		Order("report_date DESC").
		Limit(limit).
		Find(&reports).Error
	return reports, err
}
