package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/iye-ms/msec-feedback/pkg/catalog"
	"github.com/iye-ms/msec-feedback/pkg/common/config"
	"github.com/iye-ms/msec-feedback/pkg/common/httpclient"
	"github.com/iye-ms/msec-feedback/pkg/common/logger"
	"github.com/iye-ms/msec-feedback/pkg/common/models"
	"github.com/iye-ms/msec-feedback/pkg/sources"
)

// Adapter scrapes the Microsoft Feedback Portal. The portal is fully
// client-rendered, so raw HTML fetches return an empty shell; pages go
// through a scraping proxy that returns the rendered page as markdown.
type Adapter struct {
	catalog catalog.Catalog
	client  *http.Client
	apiKey  string
	baseURL string
	now     func() time.Time
}

func NewAdapter(cfg *config.Config, cat catalog.Catalog) *Adapter {
	return &Adapter{
		catalog: cat,
		client:  httpclient.New(cfg.FetchTimeout + 10*time.Second), // rendered scrapes are slow
		apiKey:  cfg.FirecrawlAPIKey,
		baseURL: cfg.FirecrawlBaseURL,
		now:     time.Now,
	}
}

// ErrNoForum is returned for products without a dedicated portal forum.
var ErrNoForum = fmt.Errorf("product has no feedback portal forum")

// Fetch scrapes the product's forum page and parses its idea cards.
func (a *Adapter) Fetch(ctx context.Context, product models.Product, windowDays int) ([]models.RawPost, error) {
	entry, ok := a.catalog.Lookup(product)
	if !ok || entry.ForumID == "" {
		return nil, fmt.Errorf("%w: %q", ErrNoForum, product)
	}
	if a.apiKey == "" {
		return nil, fmt.Errorf("%w: scraping proxy not configured", sources.ErrSourceUnavailable)
	}

	forumURL := fmt.Sprintf("https://feedbackportal.microsoft.com/feedback/forum/%s", entry.ForumID)
	markdown, err := a.scrape(ctx, forumURL)
	if err != nil {
		return nil, err
	}

	items := ParseFeedback(markdown, a.now())
	if len(items) == 0 {
		return nil, sources.NewParseError(models.SourceFeedbackPortal, markdown)
	}

	logger.Log.WithFields(map[string]interface{}{
		"product": product,
		"forum":   entry.ForumName,
		"items":   len(items),
	}).Info("Parsed feedback portal page")

	posts := make([]models.RawPost, 0, len(items))
	for _, item := range items {
		posts = append(posts, models.RawPost{
			ExternalID:      item.ID,
			Author:          item.Author,
			Title:           item.Title,
			Body:            item.Content,
			URL:             item.URL,
			CreatedAt:       item.CreatedAt,
			EngagementScore: item.Votes,
			Score:           item.Votes,
			SentimentHint:   statusSentiment(item),
		})
	}
	return sources.FilterRecent(posts, windowDays, a.now()), nil
}

// statusSentiment maps an item's portal status to a fallback sentiment used
// when classification is unavailable. Resolved ideas read as positive;
// heavily-voted open ones are usually pain points.
func statusSentiment(item FeedbackItem) models.Sentiment {
	switch {
	case item.Status == "Closed" || item.Status == "Completed":
		return models.SentimentPositive
	case item.Votes > 50:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

type scrapeRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
	WaitFor int      `json:"waitFor"`
}

type scrapeResponse struct {
	Data struct {
		Markdown string `json:"markdown"`
	} `json:"data"`
	Markdown string `json:"markdown"`
	Error    string `json:"error"`
}

func (a *Adapter) scrape(ctx context.Context, target string) (string, error) {
	payload, err := json.Marshal(scrapeRequest{
		URL:     target,
		Formats: []string{"markdown"},
		WaitFor: 3000,
	})
	if err != nil {
		return "", err
	}

	// Rendered scrapes time out routinely under load; a couple of retries
	// usually gets through.
	var out scrapeResponse
	err = httpclient.Retry(ctx, 3, 500*time.Millisecond, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/scrape", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := a.client.Do(req)
		if err != nil {
			if httpclient.IsRetriable(err) {
				return err
			}
			return fmt.Errorf("%w: scrape request: %v", sources.ErrSourceUnavailable, err)
		}
		defer resp.Body.Close()

		out = scrapeResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("%w: decoding scrape response: %v", sources.ErrSourceUnavailable, err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%w: scrape returned %d: %s", sources.ErrSourceUnavailable, resp.StatusCode, out.Error)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if out.Data.Markdown != "" {
		return out.Data.Markdown, nil
	}
	return out.Markdown, nil
}
