package msqa

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/iye-ms/msec-feedback/pkg/catalog"
	"github.com/iye-ms/msec-feedback/pkg/common/config"
	"github.com/iye-ms/msec-feedback/pkg/common/httpclient"
	"github.com/iye-ms/msec-feedback/pkg/common/logger"
	"github.com/iye-ms/msec-feedback/pkg/common/models"
	"github.com/iye-ms/msec-feedback/pkg/sources"
)

const (
	// Listing pages are served to browsers; a bare client UA gets blocked.
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	maxBulkPages = 30
	pageDelay    = 500 * time.Millisecond
)

// Adapter scrapes question listings from Microsoft Q&A. Single-tag mode reads
// one page of a product's own tag; bulk mode paginates the general security
// tag and attributes each question to a product via the catalog heuristic.
type Adapter struct {
	catalog catalog.Catalog
	client  *http.Client
	baseURL string
	sleep   func(time.Duration)
	now     func() time.Time
}

func NewAdapter(cfg *config.Config, cat catalog.Catalog) *Adapter {
	return &Adapter{
		catalog: cat,
		client:  httpclient.New(cfg.FetchTimeout),
		baseURL: "https://learn.microsoft.com",
		sleep:   time.Sleep,
		now:     time.Now,
	}
}

// Fetch reads one page of the product's dedicated tag listing.
func (a *Adapter) Fetch(ctx context.Context, product models.Product, windowDays int) ([]models.RawPost, error) {
	entry, ok := a.catalog.Lookup(product)
	if !ok || entry.QATagID == "" {
		return nil, fmt.Errorf("no Q&A tag configured for product %q", product)
	}

	html, err := a.fetchPage(ctx, entry.QATagID, entry.QATagName, 1)
	if err != nil {
		return nil, err
	}

	questions, err := ParseQuestions(html)
	if err != nil {
		return nil, sources.NewParseError(models.SourceTechCommunity, html)
	}
	if len(questions) == 0 {
		return nil, sources.NewParseError(models.SourceTechCommunity, html)
	}

	posts := make([]models.RawPost, 0, len(questions))
	for _, q := range questions {
		posts = append(posts, q.toRawPost())
	}
	return sources.FilterRecent(posts, windowDays, a.now()), nil
}

// FetchBulk paginates the general security tag, stops once a page starts
// returning questions outside the recency window, and tags each post with
// its inferred product.
func (a *Adapter) FetchBulk(ctx context.Context, windowDays, pages int) ([]models.RawPost, error) {
	general, ok := a.catalog.Lookup(models.ProductAzure)
	if !ok {
		return nil, fmt.Errorf("no general security tag in catalog")
	}

	if pages <= 0 || pages > maxBulkPages {
		pages = maxBulkPages
	}
	cutoff := a.now().AddDate(0, 0, -windowDays)

	var all []models.RawPost
	for page := 1; page <= pages; page++ {
		html, err := a.fetchPage(ctx, general.QATagID, general.QATagName, page)
		if err != nil {
			logger.Log.WithError(err).WithField("page", page).Error("bulk Q&A page fetch failed, stopping pagination")
			break
		}

		questions, err := ParseQuestions(html)
		if err != nil || len(questions) == 0 {
			logger.Log.WithFields(map[string]interface{}{
				"page":   page,
				"sample": sources.NewParseError(models.SourceTechCommunity, html).Sample,
			}).Warn("bulk Q&A page yielded no parseable questions")
			break
		}

		sawStale := false
		for _, q := range questions {
			if !q.CreatedAt.IsZero() && q.CreatedAt.Before(cutoff) {
				sawStale = true
				continue
			}
			post := q.toRawPost()
			post.Product = a.catalog.InferProduct(q.Tags, q.Title+" "+q.Content)
			all = append(all, post)
		}

		// Listings are ordered by creation time, so the first stale item
		// means every later page is older still.
		if sawStale {
			logger.Log.WithField("page", page).Info("reached questions outside recency window, stopping bulk scrape")
			break
		}

		if page < pages {
			a.sleep(pageDelay)
		}
	}

	return all, nil
}

func (a *Adapter) fetchPage(ctx context.Context, tagID, tagName string, page int) (string, error) {
	url := fmt.Sprintf("%s/en-us/answers/tags/%s/%s?orderby=createdat&page=%d", a.baseURL, tagID, tagName, page)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: Q&A page fetch: %v", sources.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: Q&A page returned %d", sources.ErrSourceUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading Q&A page: %v", sources.ErrSourceUnavailable, err)
	}
	return string(body), nil
}

func (q Question) toRawPost() models.RawPost {
	return models.RawPost{
		ExternalID:      q.ID,
		Author:          q.Author,
		Title:           q.Title,
		Body:            q.Content,
		URL:             q.URL,
		CreatedAt:       q.CreatedAt,
		EngagementScore: q.AnswersCount,
		Score:           q.AnswersCount,
		Tags:            q.Tags,
	}
}
