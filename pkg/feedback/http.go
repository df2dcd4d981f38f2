package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/iye-ms/msec-feedback/pkg/classifier"
	"github.com/iye-ms/msec-feedback/pkg/common/logger"
	"github.com/iye-ms/msec-feedback/pkg/common/models"
	"github.com/iye-ms/msec-feedback/pkg/sources"
	"github.com/iye-ms/msec-feedback/pkg/sources/msqa"
	"github.com/iye-ms/msec-feedback/pkg/sources/reddit"
	"github.com/iye-ms/msec-feedback/pkg/sources/twitter"
)

const maxCSVUpload = 10 << 20

// CommentSummarizer condenses a reddit discussion thread.
type CommentSummarizer interface {
	SummarizeComments(ctx context.Context, comments []classifier.CommentSnippet) (string, error)
}

// HandlerDeps wires the ingestion endpoints to the adapters and pipeline.
type HandlerDeps struct {
	Service    *Service
	Repo       *Repository
	Reddit     *reddit.Adapter
	MSQA       *msqa.Adapter
	Portal     Fetcher
	Twitter    *twitter.Adapter
	Comments   CommentSummarizer
	WindowDays int

	// OnNewData propagates to every runner built by the handler.
	OnNewData func(ctx context.Context, product models.Product)
}

type HTTPHandler struct {
	deps HandlerDeps
}

func NewHTTPHandler(deps HandlerDeps) *HTTPHandler {
	return &HTTPHandler{deps: deps}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/ingest/reddit/{product}", h.handleReddit).Methods(http.MethodPost)
	router.HandleFunc("/ingest/msqa/bulk", h.handleMSQABulk).Methods(http.MethodPost)
	router.HandleFunc("/ingest/msqa/{product}", h.handleMSQA).Methods(http.MethodPost)
	router.HandleFunc("/ingest/portal/{product}", h.handlePortal).Methods(http.MethodPost)
	router.HandleFunc("/ingest/twitter/timeline/{account}", h.handleTimeline).Methods(http.MethodPost)
	router.HandleFunc("/ingest/twitter/{product}", h.handleSprinklr).Methods(http.MethodPost)
	router.HandleFunc("/ingest/csv", h.handleCSV).Methods(http.MethodPost)
	router.HandleFunc("/reddit/summarize-comments", h.handleSummarizeComments).Methods(http.MethodPost)
	router.HandleFunc("/feed/{product}", h.handleFeed).Methods(http.MethodGet)
}

func productFromRequest(r *http.Request) (models.Product, error) {
	raw := mux.Vars(r)["product"]
	if raw == "" {
		raw = r.URL.Query().Get("product")
	}
	for _, product := range models.Products {
		if string(product) == raw {
			return product, nil
		}
	}
	return "", fmt.Errorf("unknown product %q", raw)
}

func (h *HTTPHandler) runner(source models.Source, fetcher Fetcher, defaultType models.FeedbackType, classify bool) *Runner {
	return &Runner{
		Source:      source,
		Fetcher:     fetcher,
		Service:     h.deps.Service,
		WindowDays:  h.deps.WindowDays,
		DefaultType: defaultType,
		Classify:    classify,
		OnNewData:   h.deps.OnNewData,
	}
}

func (h *HTTPHandler) runAndRespond(w http.ResponseWriter, r *http.Request, runner *Runner) {
	product, err := productFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := runner.Run(r.Context(), product)
	if err != nil {
		if errors.Is(err, sources.ErrSourceUnavailable) {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"source":  runner.Source,
			"product": product,
		}).Error("ingestion run failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) handleReddit(w http.ResponseWriter, r *http.Request) {
	h.runAndRespond(w, r, h.runner(models.SourceReddit, h.deps.Reddit, models.TypeQuestion, true))
}

func (h *HTTPHandler) handleMSQA(w http.ResponseWriter, r *http.Request) {
	h.runAndRespond(w, r, h.runner(models.SourceTechCommunity, h.deps.MSQA, models.TypeQuestion, true))
}

func (h *HTTPHandler) handlePortal(w http.ResponseWriter, r *http.Request) {
	h.runAndRespond(w, r, h.runner(models.SourceFeedbackPortal, h.deps.Portal, models.TypeFeatureRequest, true))
}

func (h *HTTPHandler) handleSprinklr(w http.ResponseWriter, r *http.Request) {
	// Sprinklr messages carry their own sentiment labels.
	h.runAndRespond(w, r, h.runner(models.SourceTwitter, h.deps.Twitter, models.TypeQuestion, false))
}

// handleMSQABulk crawls the general listing, infers a product per question,
// and ingests one batch per product so run metadata stays per-product.
func (h *HTTPHandler) handleMSQABulk(w http.ResponseWriter, r *http.Request) {
	pages := 0
	if raw := r.URL.Query().Get("pages"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "pages must be a positive integer", http.StatusBadRequest)
			return
		}
		pages = n
	}

	posts, err := h.deps.MSQA.FetchBulk(r.Context(), h.deps.WindowDays, pages)
	if err != nil {
		var parseErr *sources.ParseError
		if errors.As(err, &parseErr) {
			logger.Log.WithField("sample", parseErr.Sample).Error("bulk listing parse failure")
			posts = nil
		} else if errors.Is(err, sources.ErrSourceUnavailable) {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		} else {
			logger.Log.WithError(err).Error("bulk ingestion failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	byProduct := make(map[models.Product][]models.RawPost)
	for _, post := range posts {
		byProduct[post.Product] = append(byProduct[post.Product], post)
	}

	results := make(map[string]models.IngestResult)
	for _, product := range models.Products {
		batch, ok := byProduct[product]
		if !ok {
			continue
		}
		result, err := h.deps.Service.IngestBatch(r.Context(), BatchOptions{
			Product:     product,
			Source:      models.SourceTechCommunity,
			DefaultType: models.TypeQuestion,
			Classify:    true,
		}, batch)
		if err != nil {
			logger.Log.WithError(err).WithField("product", product).Error("bulk batch ingestion failed")
			continue
		}
		results[string(product)] = result
		if result.NewPosts > 0 && h.deps.OnNewData != nil {
			h.deps.OnNewData(r.Context(), product)
		}
	}

	writeJSON(w, http.StatusOK, results)
}

func (h *HTTPHandler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]
	product, err := productFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	posts, err := h.deps.Twitter.FetchTimeline(r.Context(), account, h.deps.WindowDays)
	if err != nil {
		if errors.Is(err, sources.ErrSourceUnavailable) {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		logger.Log.WithError(err).WithField("account", account).Error("timeline fetch failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	result, err := h.deps.Service.IngestBatch(r.Context(), BatchOptions{
		Product:     product,
		Source:      models.SourceTwitter,
		DefaultType: models.TypeQuestion,
		Classify:    true,
	}, posts)
	if err != nil {
		logger.Log.WithError(err).Error("timeline ingestion failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) handleCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCSVUpload)
	if err := r.ParseMultipartForm(maxCSVUpload); err != nil {
		http.Error(w, "invalid multipart upload", http.StatusBadRequest)
		return
	}

	product, err := productFromRequest(r)
	if err != nil {
		if raw := r.FormValue("product"); raw != "" {
			product, err = parseProductValue(raw)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	posts, err := twitter.ParseCSV(file, h.deps.Service.now())
	if err != nil {
		var parseErr *sources.ParseError
		if errors.As(err, &parseErr) {
			http.Error(w, parseErr.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "invalid CSV payload", http.StatusBadRequest)
		return
	}

	result, err := h.deps.Service.IngestBatch(r.Context(), BatchOptions{
		Product:     product,
		Source:      models.SourceTwitter,
		DefaultType: models.TypeQuestion,
		Classify:    false,
	}, posts)
	if err != nil {
		logger.Log.WithError(err).Error("CSV ingestion failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if result.NewPosts > 0 && h.deps.OnNewData != nil {
		h.deps.OnNewData(r.Context(), product)
	}

	writeJSON(w, http.StatusOK, result)
}

func parseProductValue(raw string) (models.Product, error) {
	for _, product := range models.Products {
		if string(product) == raw {
			return product, nil
		}
	}
	return "", fmt.Errorf("unknown product %q", raw)
}

func (h *HTTPHandler) handleSummarizeComments(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		http.Error(w, "request body must include a reddit post url", http.StatusBadRequest)
		return
	}

	comments, err := h.deps.Reddit.FetchComments(r.Context(), req.URL)
	if err != nil {
		if errors.Is(err, sources.ErrSourceUnavailable) {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if len(comments) == 0 {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"summary":       "No comments found on this post.",
			"comment_count": 0,
		})
		return
	}

	snippets := make([]classifier.CommentSnippet, len(comments))
	for i, c := range comments {
		snippets[i] = classifier.CommentSnippet{Author: c.Author, Body: c.Body, Score: c.Score}
	}

	summary, err := h.deps.Comments.SummarizeComments(r.Context(), snippets)
	if err != nil {
		if errors.Is(err, classifier.ErrRateLimited) || errors.Is(err, classifier.ErrQuotaExhausted) {
			http.Error(w, err.Error(), http.StatusTooManyRequests)
			return
		}
		logger.Log.WithError(err).Error("comment summarization failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary":       summary,
		"comment_count": len(comments),
	})
}

func (h *HTTPHandler) handleFeed(w http.ResponseWriter, r *http.Request) {
	product, err := productFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := h.deps.Repo.RecentEntries(r.Context(), product, limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to load feed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
