package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/iye-ms/msec-feedback/pkg/analytics"
	"github.com/iye-ms/msec-feedback/pkg/common/logger"
	"github.com/iye-ms/msec-feedback/pkg/common/models"
)

type HTTPHandler struct {
	generator *Generator
	reports   *Repository
	entries   EntrySource
	lifecycle analytics.LifecycleStore
	tracker   *analytics.Tracker
}

func NewHTTPHandler(generator *Generator, reports *Repository, entries EntrySource, lifecycle analytics.LifecycleStore, tracker *analytics.Tracker) *HTTPHandler {
	return &HTTPHandler{
		generator: generator,
		reports:   reports,
		entries:   entries,
		lifecycle: lifecycle,
		tracker:   tracker,
	}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/reports/{product}/generate", h.handleGenerate).Methods(http.MethodPost)
	router.HandleFunc("/reports/{product}/latest", h.handleLatest).Methods(http.MethodGet)
	router.HandleFunc("/reports/{product}", h.handleHistory).Methods(http.MethodGet)
	router.HandleFunc("/dashboard/{product}", h.handleDashboard).Methods(http.MethodGet)
}

func parseProduct(r *http.Request) (models.Product, error) {
	raw := mux.Vars(r)["product"]
	for _, product := range models.Products {
		if string(product) == raw {
			return product, nil
		}
	}
	return "", fmt.Errorf("unknown product %q", raw)
}

func (h *HTTPHandler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	product, err := parseProduct(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := h.generator.Generate(r.Context(), product)
	if err != nil {
		if errors.Is(err, ErrNoData) {
			http.Error(w, "no feedback in reporting window", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).WithField("product", product).Error("report generation failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(report)
}

func (h *HTTPHandler) handleLatest(w http.ResponseWriter, r *http.Request) {
	product, err := parseProduct(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := h.reports.Latest(r.Context(), product)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "no report generated yet", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to load latest report")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

func (h *HTTPHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	product, err := parseProduct(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	reports, err := h.reports.Recent(r.Context(), product, limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to load report history")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(reports)
}

type dashboardResponse struct {
	Product             models.Product             `json:"product"`
	WindowDays          int                        `json:"window_days"`
	TotalFeedback       int                        `json:"total_feedback"`
	PositiveCount       int                        `json:"positive_count"`
	NeutralCount        int                        `json:"neutral_count"`
	NegativeCount       int                        `json:"negative_count"`
	Topics              []analytics.TopicAggregate `json:"topics"`
	EmergingIssues      []analytics.TopicAggregate `json:"emerging_issues"`
	ActiveIssues        []analytics.IssueRecord    `json:"active_issues"`
	AverageLifespanDays float64                    `json:"average_lifespan_days"`
}

// handleDashboard computes live aggregates over the trailing week without
// generating or persisting a report.
func (h *HTTPHandler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	product, err := parseProduct(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	to := time.Now()
	from := to.AddDate(0, 0, -reportWindowDays)
	entries, err := h.entries.EntriesInWindow(r.Context(), product, from, to)
	if err != nil {
		logger.Log.WithError(err).Error("failed to load dashboard window")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	aggregates := analytics.Aggregate(entries)
	positive, neutral, negative := analytics.SentimentCounts(entries)

	resp := dashboardResponse{
		Product:        product,
		WindowDays:     reportWindowDays,
		TotalFeedback:  len(entries),
		PositiveCount:  positive,
		NeutralCount:   neutral,
		NegativeCount:  negative,
		Topics:         analytics.TopTopics(aggregates, maxTopTopics),
		EmergingIssues: analytics.Emerging(aggregates, maxEmerging),
	}

	if h.lifecycle != nil {
		active, err := h.lifecycle.ActiveIssues(r.Context(), product)
		if err != nil {
			logger.Log.WithError(err).Warn("failed to load active issues")
		} else {
			resp.ActiveIssues = active
		}
	}
	if h.tracker != nil {
		mean, err := h.tracker.AverageLifespanDays(r.Context(), product)
		if err != nil {
			logger.Log.WithError(err).Warn("failed to compute average lifespan")
		} else {
			resp.AverageLifespanDays = mean
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
