package report

import (
	"time"

	"gorm.io/datatypes"

	"github.com/iye-ms/msec-feedback/pkg/common/models"
)

// WeeklyReport is one generated report for a product week. Regenerating for
// the same (product, report date) replaces the stored row rather than
// appending a duplicate.
type WeeklyReport struct {
	ID             string         `json:"id" gorm:"primaryKey;column:id"`
	Product        models.Product `json:"product" gorm:"column:product;uniqueIndex:idx_report_product_date,priority:1"`
	ReportDate     string         `json:"report_date" gorm:"column:report_date;uniqueIndex:idx_report_product_date,priority:2"`
	WeekStart      time.Time      `json:"week_start" gorm:"column:week_start"`
	WeekEnd        time.Time      `json:"week_end" gorm:"column:week_end"`
	TotalFeedback  int            `json:"total_feedback" gorm:"column:total_feedback"`
	PositiveCount  int            `json:"positive_count" gorm:"column:positive_count"`
	NeutralCount   int            `json:"neutral_count" gorm:"column:neutral_count"`
	NegativeCount  int            `json:"negative_count" gorm:"column:negative_count"`
	TopTopics      datatypes.JSON `json:"top_topics" gorm:"column:top_topics"`
	EmergingIssues datatypes.JSON `json:"emerging_issues" gorm:"column:emerging_issues"`
	Summary        string         `json:"summary" gorm:"column:summary;type:text"`
	GeneratedAt    time.Time      `json:"generated_at" gorm:"column:generated_at"`
}

func (WeeklyReport) TableName() string {
	return "weekly_reports"
}
