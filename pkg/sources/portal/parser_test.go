package portal

import (
	"testing"
	"time"

	"github.com/iye-ms/msec-feedback/pkg/common/models"
)

var parserNow = time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

const strictFixture = `Some page chrome here.
__42\[Vote](https://feedbackportal.microsoft.com/vote)
JD
John Doe
2 weeks ago
**Allow app deployment scheduling**
It would be great to schedule app deployments during maintenance windows.
Open
__5 comments
[Read more](https://feedbackportal.microsoft.com/feedback/idea/ab12cd34-ef56)
`

func TestParseFeedbackStrict(t *testing.T) {
	items := ParseFeedback(strictFixture, parserNow)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}

	item := items[0]
	if item.ID != "ab12cd34-ef56" {
		t.Errorf("ID = %q", item.ID)
	}
	if item.Votes != 42 {
		t.Errorf("Votes = %d", item.Votes)
	}
	if item.Author != "John Doe" {
		t.Errorf("Author = %q", item.Author)
	}
	if item.Title != "Allow app deployment scheduling" {
		t.Errorf("Title = %q", item.Title)
	}
	if item.Status != "Open" {
		t.Errorf("Status = %q", item.Status)
	}
	if item.Comments != 5 {
		t.Errorf("Comments = %d", item.Comments)
	}
	want := parserNow.AddDate(0, 0, -14)
	if !item.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v", item.CreatedAt, want)
	}
}

const lenientFixture = `__17

Vote
Mary Jane
3 days ago
**Fix enrollment timeout**
The enrollment process times out on slow networks and must be restarted manually.
Planned
__2 comments
[link](https://feedbackportal.microsoft.com/feedback/idea/0f3a2b1c-4d5e)
`

func TestParseFeedbackLenientFallback(t *testing.T) {
	items := ParseFeedback(lenientFixture, parserNow)
	if len(items) != 1 {
		t.Fatalf("expected 1 item from lenient scan, got %d", len(items))
	}

	item := items[0]
	if item.ID != "0f3a2b1c-4d5e" {
		t.Errorf("ID = %q", item.ID)
	}
	if item.Votes != 17 {
		t.Errorf("Votes = %d", item.Votes)
	}
	if item.Author != "Mary Jane" {
		t.Errorf("Author = %q", item.Author)
	}
	if item.Title != "Fix enrollment timeout" {
		t.Errorf("Title = %q", item.Title)
	}
	if item.Content == "" {
		t.Error("expected content captured from the line after the title")
	}
	if item.Status != "Planned" {
		t.Errorf("Status = %q", item.Status)
	}
	if item.Comments != 2 {
		t.Errorf("Comments = %d", item.Comments)
	}
}

func TestParseFeedbackUnparseable(t *testing.T) {
	if items := ParseFeedback("completely redesigned page with no idea cards", parserNow); len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}
}

func TestDedupeItems(t *testing.T) {
	items := []FeedbackItem{
		{Title: "Allow Scheduling", URL: "https://feedbackportal.microsoft.com/feedback/idea/a1"},
		{Title: "allow  scheduling", URL: "https://feedbackportal.microsoft.com/feedback/idea/b2"},
		{Title: "Different idea", URL: "https://feedbackportal.microsoft.com/feedback/idea/a1"},
		{Title: "Different idea again", URL: "https://feedbackportal.microsoft.com/feedback/idea/c3"},
	}

	out := dedupeItems(items)
	if len(out) != 2 {
		t.Fatalf("expected 2 items after dedup, got %d", len(out))
	}
	if out[0].URL != "https://feedbackportal.microsoft.com/feedback/idea/a1" ||
		out[1].URL != "https://feedbackportal.microsoft.com/feedback/idea/c3" {
		t.Errorf("unexpected survivors: %+v", out)
	}
}

func TestParseRelativeDate(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"3 days ago", parserNow.AddDate(0, 0, -3)},
		{"2 weeks ago", parserNow.AddDate(0, 0, -14)},
		{"1 month ago", parserNow.AddDate(0, -1, 0)},
		{"2 years ago", parserNow.AddDate(-2, 0, 0)},
		{"yesterday-ish", parserNow},
	}

	for _, tt := range tests {
		if got := parseRelativeDate(tt.input, parserNow); !got.Equal(tt.want) {
			t.Errorf("parseRelativeDate(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestStatusSentiment(t *testing.T) {
	tests := []struct {
		name string
		item FeedbackItem
		want models.Sentiment
	}{
		{"completed is positive", FeedbackItem{Status: "Completed"}, models.SentimentPositive},
		{"closed is positive", FeedbackItem{Status: "Closed"}, models.SentimentPositive},
		{"high votes negative", FeedbackItem{Status: "Open", Votes: 80}, models.SentimentNegative},
		{"default neutral", FeedbackItem{Status: "Open", Votes: 3}, models.SentimentNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusSentiment(tt.item); got != tt.want {
				t.Errorf("statusSentiment() = %s, want %s", got, tt.want)
			}
		})
	}
}
