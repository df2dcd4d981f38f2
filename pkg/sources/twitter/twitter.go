package twitter

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iye-ms/msec-feedback/pkg/common/config"
	"github.com/iye-ms/msec-feedback/pkg/common/httpclient"
	"github.com/iye-ms/msec-feedback/pkg/common/logger"
	"github.com/iye-ms/msec-feedback/pkg/common/models"
	"github.com/iye-ms/msec-feedback/pkg/sources"
	"golang.org/x/oauth2/clientcredentials"
)

// Adapter ingests Twitter/X feedback through three interchangeable paths:
// the Sprinklr social-listening search API, the native platform timeline API
// with signed requests, or pre-exported CSV files.
type Adapter struct {
	client *http.Client
	now    func() time.Time

	sprinklrKey     string
	sprinklrSecret  string
	sprinklrBaseURL string

	signer     *Signer
	twitterAPI string
}

func NewAdapter(cfg *config.Config) *Adapter {
	return &Adapter{
		client:          httpclient.New(cfg.FetchTimeout),
		now:             time.Now,
		sprinklrKey:     cfg.SprinklrAPIKey,
		sprinklrSecret:  cfg.SprinklrAPISecret,
		sprinklrBaseURL: cfg.SprinklrBaseURL,
		signer: &Signer{
			ConsumerKey:    cfg.TwitterConsumerKey,
			ConsumerSecret: cfg.TwitterConsumerSecret,
			Token:          cfg.TwitterAccessToken,
			TokenSecret:    cfg.TwitterAccessSecret,
		},
		twitterAPI: "https://api.twitter.com/1.1",
	}
}

type sprinklrMessage struct {
	ID            string `json:"id"`
	SnCreatedTime int64  `json:"snCreatedTime"`
	MessageText   string `json:"messageText"`
	AuthorName    string `json:"authorName"`
	Permalink     string `json:"permalink"`
	Sentiment     string `json:"sentiment"`
	Likes         int    `json:"likes"`
	Comments      int    `json:"comments"`
	Shares        int    `json:"shares"`
}

// FetchSprinklr searches Sprinklr for Twitter messages newer than the
// recency window. Sprinklr carries its own sentiment labels, so these posts
// skip LLM classification downstream.
func (a *Adapter) FetchSprinklr(ctx context.Context, windowDays int) ([]models.RawPost, error) {
	if a.sprinklrKey == "" || a.sprinklrSecret == "" {
		return nil, fmt.Errorf("%w: sprinklr credentials not configured", sources.ErrSourceUnavailable)
	}

	creds := &clientcredentials.Config{
		ClientID:     a.sprinklrKey,
		ClientSecret: a.sprinklrSecret,
		TokenURL:     a.sprinklrBaseURL + "/oauth/token",
	}
	token, err := creds.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: sprinklr auth: %v", sources.ErrSourceUnavailable, err)
	}

	since := a.now().AddDate(0, 0, -windowDays).UnixMilli()
	search := map[string]interface{}{
		"page": 0,
		"size": 100,
		"sort": map[string]string{"field": "snCreatedTime", "order": "DESC"},
		"filters": []map[string]interface{}{
			{"field": "snType", "operator": "IN", "values": []string{"TWITTER"}},
			{"field": "snCreatedTime", "operator": "GTE", "values": []int64{since}},
		},
	}
	payload, err := json.Marshal(search)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.sprinklrBaseURL+"/api/v2/message/search", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	token.SetAuthHeader(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Key", a.sprinklrKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sprinklr search: %v", sources.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: sprinklr search returned %d", sources.ErrSourceUnavailable, resp.StatusCode)
	}

	var out struct {
		Data []sprinklrMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, sources.NewParseError(models.SourceTwitter, err.Error())
	}

	logger.Log.WithField("messages", len(out.Data)).Info("Fetched Sprinklr Twitter messages")

	posts := make([]models.RawPost, 0, len(out.Data))
	for _, msg := range out.Data {
		posts = append(posts, msg.toRawPost())
	}
	return posts, nil
}

// Fetch satisfies the ingestion runner contract. Sprinklr search is not
// product-scoped, so the product only tags the resulting posts.
func (a *Adapter) Fetch(ctx context.Context, product models.Product, windowDays int) ([]models.RawPost, error) {
	posts, err := a.FetchSprinklr(ctx, windowDays)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		posts[i].Product = product
	}
	return posts, nil
}

func (m sprinklrMessage) toRawPost() models.RawPost {
	tweetURL := m.Permalink
	if tweetURL == "" {
		tweetURL = "https://twitter.com/i/status/" + m.ID
	}
	author := m.AuthorName
	if author == "" {
		author = "Unknown"
	}
	return models.RawPost{
		ExternalID:      m.ID,
		Author:          author,
		Title:           truncateTitle(m.MessageText),
		Body:            m.MessageText,
		URL:             tweetURL,
		CreatedAt:       time.UnixMilli(m.SnCreatedTime).UTC(),
		EngagementScore: m.Likes + m.Comments + m.Shares,
		Score:           m.Likes,
		SentimentHint:   MapSprinklrSentiment(m.Sentiment),
	}
}

// MapSprinklrSentiment converts Sprinklr's uppercase labels into the shared
// sentiment enum. MIXED and anything unknown collapse to neutral.
func MapSprinklrSentiment(label string) models.Sentiment {
	switch strings.ToUpper(label) {
	case "POSITIVE":
		return models.SentimentPositive
	case "NEGATIVE":
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

type timelineTweet struct {
	IDStr     string `json:"id_str"`
	CreatedAt string `json:"created_at"`
	FullText  string `json:"full_text"`
	Text      string `json:"text"`
	User      struct {
		ScreenName string `json:"screen_name"`
	} `json:"user"`
	FavoriteCount int `json:"favorite_count"`
	RetweetCount  int `json:"retweet_count"`
}

// FetchTimeline lists an account's recent tweets through the native platform
// API, authenticating with signed requests.
func (a *Adapter) FetchTimeline(ctx context.Context, account string, windowDays int) ([]models.RawPost, error) {
	if a.signer.ConsumerKey == "" {
		return nil, fmt.Errorf("%w: twitter API credentials not configured", sources.ErrSourceUnavailable)
	}

	params := url.Values{}
	params.Set("screen_name", account)
	params.Set("count", "50")
	params.Set("tweet_mode", "extended")

	endpoint := a.twitterAPI + "/statuses/user_timeline.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", a.signer.AuthorizationHeader(http.MethodGet, endpoint, params))

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: twitter timeline: %v", sources.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: twitter timeline returned %d", sources.ErrSourceUnavailable, resp.StatusCode)
	}

	var tweets []timelineTweet
	if err := json.NewDecoder(resp.Body).Decode(&tweets); err != nil {
		return nil, sources.NewParseError(models.SourceTwitter, err.Error())
	}

	posts := make([]models.RawPost, 0, len(tweets))
	for _, tweet := range tweets {
		text := tweet.FullText
		if text == "" {
			text = tweet.Text
		}
		createdAt := time.Time{}
		if parsed, err := time.Parse(time.RubyDate, tweet.CreatedAt); err == nil {
			createdAt = parsed.UTC()
		}
		posts = append(posts, models.RawPost{
			ExternalID:      tweet.IDStr,
			Author:          "@" + tweet.User.ScreenName,
			Title:           truncateTitle(text),
			Body:            text,
			URL:             fmt.Sprintf("https://x.com/%s/status/%s", tweet.User.ScreenName, tweet.IDStr),
			CreatedAt:       createdAt,
			EngagementScore: tweet.FavoriteCount + tweet.RetweetCount,
			Score:           tweet.FavoriteCount,
		})
	}
	return sources.FilterRecent(posts, windowDays, a.now()), nil
}

func truncateTitle(text string) string {
	if text == "" {
		return "Twitter Post"
	}
	runes := []rune(text)
	if len(runes) > 100 {
		return string(runes[:100]) + "..."
	}
	return text
}

// ContentKey derives a stable natural key from tweet text for rows with no
// permalink. Re-importing the same export must map each tweet to the same
// key, so the key is a content hash rather than anything time-derived.
func ContentKey(content string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(content)))
	return "sha256:" + hex.EncodeToString(sum[:])
}
