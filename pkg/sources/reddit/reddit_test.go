package reddit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/iye-ms/msec-feedback/pkg/catalog"
	"github.com/iye-ms/msec-feedback/pkg/common/models"
)

var fetchNow = time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

func staticToken() oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"})
}

const listingFixture = `{
  "data": {
    "children": [
      {"data": {"id": "abc1", "author": "frustrated_admin", "title": "Sync broken again",
        "selftext": "Third outage this week.", "created_utc": 1741824000,
        "score": 42, "permalink": "/r/Intune/comments/abc1/sync_broken_again/"}},
      {"data": {"id": "old9", "author": "archivist", "title": "Ancient thread",
        "selftext": "from another era", "created_utc": 1609459200,
        "score": 3, "permalink": "/r/Intune/comments/old9/ancient/"}},
      {"data": {"id": "", "author": "ghost", "title": "no id"}}
    ]
  }
}`

func TestFetchListsSubredditPosts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/r/Intune/new.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("missing bearer token")
		}
		if r.Header.Get("User-Agent") != "feedback-agent/1.0" {
			t.Errorf("missing user agent")
		}
		w.Write([]byte(listingFixture))
	}))
	defer server.Close()

	adapter := &Adapter{
		catalog:   catalog.Default(),
		client:    server.Client(),
		tokens:    staticToken(),
		userAgent: "feedback-agent/1.0",
		baseURL:   server.URL,
		now:       func() time.Time { return fetchNow },
	}

	posts, err := adapter.Fetch(context.Background(), models.ProductIntune, 30)
	if err != nil {
		t.Fatal(err)
	}
	// The 2021 post falls outside the window; the id-less row is dropped.
	if len(posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(posts))
	}

	post := posts[0]
	if post.ExternalID != "abc1" {
		t.Errorf("ExternalID = %q", post.ExternalID)
	}
	if post.Author != "u/frustrated_admin" {
		t.Errorf("Author = %q", post.Author)
	}
	if post.URL != "https://www.reddit.com/r/Intune/comments/abc1/sync_broken_again/" {
		t.Errorf("URL = %q", post.URL)
	}
	if post.Score != 42 {
		t.Errorf("Score = %d", post.Score)
	}
}

func TestFetchUnknownSubreddit(t *testing.T) {
	adapter := &Adapter{catalog: catalog.Catalog{}, tokens: staticToken()}
	if _, err := adapter.Fetch(context.Background(), models.ProductIntune, 30); err == nil {
		t.Error("expected an error for a product with no subreddit")
	}
}

func TestPostIDFromURL(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://www.reddit.com/r/Intune/comments/1abc2d/sync_broken/", "1abc2d", false},
		{"https://reddit.com/comments/zz99", "zz99", false},
		{"https://www.reddit.com/r/Intune/", "", true},
		{"not a url", "", true},
	}

	for _, tt := range tests {
		got, err := PostIDFromURL(tt.url)
		if tt.wantErr {
			if err == nil {
				t.Errorf("PostIDFromURL(%q) expected error", tt.url)
			}
			continue
		}
		if err != nil {
			t.Errorf("PostIDFromURL(%q) unexpected error: %v", tt.url, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PostIDFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
