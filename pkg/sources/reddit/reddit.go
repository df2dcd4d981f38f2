package reddit

import (
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
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const permalinkBase = "https://www.reddit.com"

// Adapter fetches the newest posts from each product's subreddit through the
// Reddit OAuth listing API.
type Adapter struct {
	catalog   catalog.Catalog
	client    *http.Client
	tokens    oauth2.TokenSource
	userAgent string
	baseURL   string
	now       func() time.Time
}

func NewAdapter(cfg *config.Config, cat catalog.Catalog) *Adapter {
	client := httpclient.New(cfg.FetchTimeout)

	creds := &clientcredentials.Config{
		ClientID:     cfg.RedditClientID,
		ClientSecret: cfg.RedditClientSecret,
		TokenURL:     "https://www.reddit.com/api/v1/access_token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, client)

	return &Adapter{
		catalog:   cat,
		client:    client,
		tokens:    creds.TokenSource(tokenCtx),
		userAgent: cfg.RedditUserAgent,
		baseURL:   "https://oauth.reddit.com",
		now:       time.Now,
	}
}

type listingPost struct {
	ID         string  `json:"id"`
	Author     string  `json:"author"`
	Title      string  `json:"title"`
	Selftext   string  `json:"selftext"`
	CreatedUTC float64 `json:"created_utc"`
	Score      int     `json:"score"`
	Permalink  string  `json:"permalink"`
}

type listingResponse struct {
	Data struct {
		Children []struct {
			Data listingPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Fetch lists the 50 newest posts from the product's subreddit and filters
// them down to the recency window.
func (a *Adapter) Fetch(ctx context.Context, product models.Product, windowDays int) ([]models.RawPost, error) {
	entry, ok := a.catalog.Lookup(product)
	if !ok || entry.Subreddit == "" {
		return nil, fmt.Errorf("no subreddit configured for product %q", product)
	}

	token, err := a.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: reddit auth: %v", sources.ErrSourceUnavailable, err)
	}

	url := fmt.Sprintf("%s/r/%s/new.json?limit=50", a.baseURL, entry.Subreddit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	token.SetAuthHeader(req)
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: reddit listing: %v", sources.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: reddit listing returned %d", sources.ErrSourceUnavailable, resp.StatusCode)
	}

	var listing listingResponse
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, sources.NewParseError(models.SourceReddit, err.Error())
	}

	posts := make([]models.RawPost, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		post := child.Data
		if post.ID == "" {
			continue
		}
		posts = append(posts, models.RawPost{
			ExternalID:      post.ID,
			Author:          "u/" + post.Author,
			Title:           post.Title,
			Body:            post.Selftext,
			URL:             permalinkBase + post.Permalink,
			CreatedAt:       time.Unix(int64(post.CreatedUTC), 0).UTC(),
			EngagementScore: post.Score,
			Score:           post.Score,
		})
	}

	logger.Log.WithFields(map[string]interface{}{
		"product":   product,
		"subreddit": entry.Subreddit,
		"fetched":   len(posts),
	}).Info("Fetched reddit listing")

	return sources.FilterRecent(posts, windowDays, a.now()), nil
}
