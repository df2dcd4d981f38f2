package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/iye-ms/msec-feedback/pkg/common/models"
	"github.com/iye-ms/msec-feedback/pkg/sources"
)

var postIDPattern = regexp.MustCompile(`/comments/([a-zA-Z0-9]+)`)

// Comment is a single top-level reply on a reddit post.
type Comment struct {
	Author string `json:"author"`
	Body   string `json:"body"`
	Score  int    `json:"score"`
}

// PostIDFromURL extracts the reddit post id from a permalink.
func PostIDFromURL(redditURL string) (string, error) {
	match := postIDPattern.FindStringSubmatch(redditURL)
	if match == nil {
		return "", fmt.Errorf("invalid reddit URL format: %q", redditURL)
	}
	return match[1], nil
}

// FetchComments returns up to 20 top-voted top-level comments on a post,
// for feeding into the comment summarizer.
func (a *Adapter) FetchComments(ctx context.Context, redditURL string) ([]Comment, error) {
	postID, err := PostIDFromURL(redditURL)
	if err != nil {
		return nil, err
	}

	token, err := a.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: reddit auth: %v", sources.ErrSourceUnavailable, err)
	}

	url := fmt.Sprintf("%s/comments/%s.json?limit=20&depth=1&sort=top", a.baseURL, postID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	token.SetAuthHeader(req)
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: reddit comments: %v", sources.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: reddit comments returned %d", sources.ErrSourceUnavailable, resp.StatusCode)
	}

	// The comments endpoint returns a two-element array: the post listing,
	// then the comment listing.
	var payload []struct {
		Data struct {
			Children []struct {
				Kind string `json:"kind"`
				Data struct {
					Author string `json:"author"`
					Body   string `json:"body"`
					Score  int    `json:"score"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, sources.NewParseError(models.SourceReddit, err.Error())
	}
	if len(payload) < 2 {
		return nil, nil
	}

	var comments []Comment
	for _, child := range payload[1].Data.Children {
		if child.Kind != "t1" || child.Data.Body == "" {
			continue
		}
		comments = append(comments, Comment{
			Author: child.Data.Author,
			Body:   child.Data.Body,
			Score:  child.Data.Score,
		})
	}
	return comments, nil
}
