package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iye-ms/msec-feedback/pkg/common/httpclient"
	"github.com/iye-ms/msec-feedback/pkg/common/models"
)

func testClient(baseURL string) *Client {
	return &Client{
		apiKey:  "test-key",
		baseURL: baseURL,
		model:   "gpt-4o-mini",
		client:  httpclient.New(5 * time.Second),
	}
}

func toolCallResponse(arguments string) string {
	resp := map[string]interface{}{
		"choices": []map[string]interface{}{
			{
				"message": map[string]interface{}{
					"tool_calls": []map[string]interface{}{
						{
							"function": map[string]interface{}{
								"name":      "classify_feedback",
								"arguments": arguments,
							},
						},
					},
				},
			},
		},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func TestClassify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing auth header")
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.ToolChoice == nil {
			t.Error("expected a forced tool choice")
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(toolCallResponse(`{"sentiment":"negative","topic":"Device Enrollment","feedback_type":"bug"}`)))
	}))
	defer server.Close()

	c := testClient(server.URL)
	got, err := c.Classify(context.Background(), "enrollment is broken again")
	if err != nil {
		t.Fatal(err)
	}
	if got.Sentiment != models.SentimentNegative || got.Topic != "Device Enrollment" || got.FeedbackType != models.TypeBug {
		t.Errorf("unexpected classification %+v", got)
	}
}

func TestClassifyEmptyTopicDefaultsToGeneral(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(toolCallResponse(`{"sentiment":"neutral","topic":"","feedback_type":"question"}`)))
	}))
	defer server.Close()

	got, err := testClient(server.URL).Classify(context.Background(), "how do I enroll")
	if err != nil {
		t.Fatal(err)
	}
	if got.Topic != "General" {
		t.Errorf("Topic = %q, want General", got.Topic)
	}
}

func TestClassifyEmptyContent(t *testing.T) {
	if _, err := testClient("http://unused").Classify(context.Background(), ""); err == nil {
		t.Error("expected an error for empty content")
	}
}

func TestClassifyRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := testClient(server.URL).Classify(context.Background(), "content")
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestClassifyQuotaExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer server.Close()

	_, err := testClient(server.URL).Classify(context.Background(), "content")
	if !errors.Is(err, ErrQuotaExhausted) {
		t.Errorf("expected ErrQuotaExhausted, got %v", err)
	}
}

func TestDefaultClassification(t *testing.T) {
	got := Default(models.TypeFeatureRequest)
	if got.Sentiment != models.SentimentNeutral || got.Topic != "General" || got.FeedbackType != models.TypeFeatureRequest {
		t.Errorf("unexpected defaults %+v", got)
	}
}

func TestSummarize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if len(req.Tools) != 0 {
			t.Error("summaries should be free-text completions, not tool calls")
		}

		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"content": "# Weekly Report\nSentiment held steady."}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	summary, err := testClient(server.URL).Summarize(context.Background(), SummaryRequest{
		Product:       models.ProductIntune,
		WeekStart:     "2025-03-03",
		WeekEnd:       "2025-03-10",
		TotalFeedback: 12,
	})
	if err != nil {
		t.Fatal(err)
	}
	if summary != "# Weekly Report\nSentiment held steady." {
		t.Errorf("summary = %q", summary)
	}
}

func TestSummarizeComments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"content": "Commenters report the same sync failure."}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	summary, err := testClient(server.URL).SummarizeComments(context.Background(), []CommentSnippet{
		{Author: "adminjane", Body: "same issue here", Score: 11},
	})
	if err != nil {
		t.Fatal(err)
	}
	if summary == "" {
		t.Error("expected a non-empty summary")
	}
}
