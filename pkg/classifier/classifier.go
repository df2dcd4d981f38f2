package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/iye-ms/msec-feedback/pkg/common/config"
	"github.com/iye-ms/msec-feedback/pkg/common/httpclient"
	"github.com/iye-ms/msec-feedback/pkg/common/logger"
	"github.com/iye-ms/msec-feedback/pkg/common/models"
)

// ErrRateLimited means the LLM gateway returned 429; the call can be retried
// later. ErrQuotaExhausted means 402 and needs operator action before any
// retry will succeed.
var (
	ErrRateLimited    = errors.New("classifier rate limited")
	ErrQuotaExhausted = errors.New("classifier quota exhausted")
)

// Classification is the structured label set the LLM produces for one post.
type Classification struct {
	Sentiment    models.Sentiment    `json:"sentiment"`
	Topic        string              `json:"topic"`
	FeedbackType models.FeedbackType `json:"feedback_type"`
}

// Default returns the fallback classification applied when the LLM call
// fails; classification failure must never block ingestion of a post.
func Default(feedbackType models.FeedbackType) Classification {
	return Classification{
		Sentiment:    models.SentimentNeutral,
		Topic:        "General",
		FeedbackType: feedbackType,
	}
}

const classifySystemPrompt = `You are an AI assistant that classifies customer feedback about Microsoft security products.
For each piece of feedback, analyze and return a JSON object with:
- sentiment: "positive", "neutral", or "negative"
- topic: the main product area mentioned (e.g., "macOS Deployment", "Android Management", "Conditional Access", "Device Enrollment", "App Install Issues", "iOS Management", "Windows Autopilot", "Security Features", "Compliance Policies", "Policy Management", "Reporting", "Company Portal", "Script Deployment", "Remote Actions")
- feedback_type: "bug", "feature_request", "praise", or "question"

Only return valid JSON, no additional text.`

// Client talks to an OpenAI-compatible chat completions endpoint in two
// modes: a forced tool call with a strict JSON schema for per-post labels,
// and free-text completion for narrative report summaries.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		apiKey:  cfg.LLMAPIKey,
		baseURL: cfg.LLMBaseURL,
		model:   cfg.LLMModelName,
		client:  httpclient.New(cfg.LLMTimeout),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string                   `json:"model"`
	Messages    []chatMessage            `json:"messages"`
	Temperature float64                  `json:"temperature,omitempty"`
	Tools       []map[string]interface{} `json:"tools,omitempty"`
	ToolChoice  map[string]interface{}   `json:"tool_choice,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// Classify labels one piece of feedback through a forced tool call.
func (c *Client) Classify(ctx context.Context, content string) (Classification, error) {
	if content == "" {
		return Classification{}, errors.New("content is required for classification")
	}

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: classifySystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Classify this feedback: %q", content)},
		},
		Tools: []map[string]interface{}{
			{
				"type": "function",
				"function": map[string]interface{}{
					"name":        "classify_feedback",
					"description": "Classify customer feedback about Microsoft security products",
					"parameters": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"sentiment": map[string]interface{}{
								"type":        "string",
								"enum":        []string{"positive", "neutral", "negative"},
								"description": "The overall sentiment of the feedback",
							},
							"topic": map[string]interface{}{
								"type":        "string",
								"description": "The main product area or topic discussed",
							},
							"feedback_type": map[string]interface{}{
								"type":        "string",
								"enum":        []string{"bug", "feature_request", "praise", "question"},
								"description": "The type of feedback",
							},
						},
						"required":             []string{"sentiment", "topic", "feedback_type"},
						"additionalProperties": false,
					},
				},
			},
		},
		ToolChoice: map[string]interface{}{
			"type":     "function",
			"function": map[string]interface{}{"name": "classify_feedback"},
		},
	}

	body, err := c.complete(ctx, req)
	if err != nil {
		return Classification{}, err
	}

	if len(body.Choices) == 0 || len(body.Choices[0].Message.ToolCalls) == 0 {
		return Classification{}, errors.New("no classification returned from LLM")
	}

	var result Classification
	args := body.Choices[0].Message.ToolCalls[0].Function.Arguments
	if err := json.Unmarshal([]byte(args), &result); err != nil {
		return Classification{}, fmt.Errorf("parsing classification arguments: %w", err)
	}
	if result.Topic == "" {
		result.Topic = "General"
	}
	return result, nil
}

// SummaryRequest carries the aggregate statistics fed to the narrative
// summarizer alongside up to 20 content snippets.
type SummaryRequest struct {
	Product          models.Product `json:"product"`
	WeekStart        string         `json:"week_start"`
	WeekEnd          string         `json:"week_end"`
	TotalFeedback    int            `json:"total_feedback"`
	SentimentPercent map[string]int `json:"sentiment_breakdown"`
	TopTopics        []string       `json:"top_topics"`
	Samples          []Sample       `json:"sample_feedback"`
}

// Sample is one trimmed feedback snippet in a summary request.
type Sample struct {
	Topic     string `json:"topic"`
	Sentiment string `json:"sentiment"`
	Type      string `json:"type"`
	Snippet   string `json:"snippet"`
}

// Summarize produces the markdown executive summary for a weekly report.
func (c *Client) Summarize(ctx context.Context, req SummaryRequest) (string, error) {
	data, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return "", err
	}

	system := fmt.Sprintf(`You are an AI assistant that generates executive summaries of customer feedback for Microsoft %s product managers.
Generate a comprehensive weekly report in markdown format that includes:
- Overall sentiment trend
- Key highlights (positive feedback and praise)
- Critical issues requiring immediate attention (with specific details)
- Emerging patterns or spikes in mentions
- Top feature requests
- Actionable recommendations for the product team

Use professional business language. Be specific and data-driven. Highlight urgent issues clearly.
IMPORTANT: Include the reporting period dates (%s - %s) at the start of the summary.`, req.Product, req.WeekStart, req.WeekEnd)

	body, err := c.complete(ctx, chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: fmt.Sprintf("Generate a weekly report for the period %s to %s based on this data:\n%s", req.WeekStart, req.WeekEnd, data)},
		},
	})
	if err != nil {
		return "", err
	}
	if len(body.Choices) == 0 || body.Choices[0].Message.Content == "" {
		return "", errors.New("no summary returned from LLM")
	}
	return body.Choices[0].Message.Content, nil
}

// CommentSnippet is one community reply fed to the comment summarizer.
type CommentSnippet struct {
	Author string
	Body   string
	Score  int
}

// SummarizeComments condenses a post's discussion thread into a short
// summary of community sentiment and themes.
func (c *Client) SummarizeComments(ctx context.Context, comments []CommentSnippet) (string, error) {
	if len(comments) == 0 {
		return "No comments found on this post yet.", nil
	}

	const maxComments = 15
	if len(comments) > maxComments {
		comments = comments[:maxComments]
	}

	var sb strings.Builder
	for i, comment := range comments {
		fmt.Fprintf(&sb, "[%d] u/%s (%d upvotes): %s\n\n", i+1, comment.Author, comment.Score, comment.Body)
	}

	body, err := c.complete(ctx, chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You summarize community discussion threads about Microsoft security products. Produce a concise summary of the main themes, overall sentiment, and any workarounds mentioned. Three to five sentences."},
			{Role: "user", Content: sb.String()},
		},
	})
	if err != nil {
		return "", err
	}
	if len(body.Choices) == 0 || body.Choices[0].Message.Content == "" {
		return "", errors.New("no summary returned from LLM")
	}
	return body.Choices[0].Message.Content, nil
}

func (c *Client) complete(ctx context.Context, payload chatRequest) (*chatResponse, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case http.StatusPaymentRequired:
		return nil, ErrQuotaExhausted
	default:
		errorText, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logger.Log.WithFields(map[string]interface{}{
			"status": resp.StatusCode,
			"body":   string(errorText),
		}).Error("LLM gateway error")
		return nil, fmt.Errorf("LLM gateway returned %d", resp.StatusCode)
	}

	var body chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding LLM response: %w", err)
	}
	return &body, nil
}
