package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fraudshield/fraudshield/internal/analysis"
	"github.com/fraudshield/fraudshield/internal/domain"
	"github.com/fraudshield/fraudshield/internal/rules"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	svc            *analysis.Service
	repo           domain.Repository
	cache          domain.Cache
	bus            domain.EventBus
	engine         *rules.Engine
	version        string
	maxUploadBytes int64
}

// NewHandler creates a new API handler.
func NewHandler(svc *analysis.Service, repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, version string, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &Handler{
		svc:            svc,
		repo:           repo,
		cache:          cache,
		bus:            bus,
		engine:         engine,
		version:        version,
		maxUploadBytes: maxUploadBytes,
	}
}

// AnalyzeAcceptedResponse is the response for asynchronous POST /analyze.
type AnalyzeAcceptedResponse struct {
	RequestID string `json:"requestId"`
	Status    string `json:"status"`
}

// Analyze handles POST /analyze requests. The upload arrives as a multipart
// form with the CSV under the "file" field. By default the analysis runs
// synchronously and the report is the response body; with async=true (or
// ?mode=async) the upload is queued on the event bus and a 202 is returned
// immediately.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "multipart form with a 'file' field is required",
		})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "file field is required",
		})
		return
	}
	defer file.Close()

	if header.Filename == "" || !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "only .csv files are accepted",
		})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "failed to read uploaded file",
		})
		return
	}
	if len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "uploaded file is empty",
		})
		return
	}

	opts := analysis.Options{}
	if raw := r.FormValue("detectionThreshold"); raw != "" {
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil || threshold <= 0 || threshold > 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "detectionThreshold must be a number in (0, 1]",
			})
			return
		}
		opts.Threshold = threshold
	}
	if raw := r.FormValue("generateReport"); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "generateReport must be a boolean",
			})
			return
		}
		opts.IncludePrevention = include
	}

	// Asynchronous mode queues the upload for the worker.
	if r.URL.Query().Get("mode") == "async" {
		h.enqueue(w, r, data, opts)
		return
	}
	if raw := r.FormValue("async"); raw != "" {
		async, err := strconv.ParseBool(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "async must be a boolean",
			})
			return
		}
		if async {
			h.enqueue(w, r, data, opts)
			return
		}
	}

	report, err := h.svc.AnalyzeCSV(ctx, data, opts)
	if err != nil {
		if errors.Is(err, analysis.ErrInvalidCSV) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("analysis failed", "error", err, "filename", header.Filename)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "analysis failed",
		})
		return
	}

	slog.Info("upload analyzed",
		"filename", header.Filename,
		"report_id", report.ID,
		"transactions", report.TotalTransactions,
		"flagged", report.FraudCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request, data []byte, opts analysis.Options) {
	req := analysis.Request{
		RequestID:         uuid.NewString(),
		CSV:               data,
		Threshold:         opts.Threshold,
		IncludePrevention: opts.IncludePrevention,
	}

	payload, err := json.Marshal(req)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to queue analysis",
		})
		return
	}

	if err := h.bus.Publish(r.Context(), domain.TopicAnalysisRequested, payload); err != nil {
		slog.Error("failed to publish analysis request", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to queue analysis",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, AnalyzeAcceptedResponse{
		RequestID: req.RequestID,
		Status:    "accepted",
	})
}

// GetReport retrieves a stored report by ID.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	reportID := chi.URLParam(r, "id")
	if reportID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "report id is required",
		})
		return
	}

	report, err := h.svc.GetReport(r.Context(), reportID)
	if err != nil {
		slog.Error("failed to get report", "id", reportID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "report not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":     status,
		"version":    h.version,
		"classifier": h.svc.ClassifierName(),
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListRules returns all loaded rules from the engine.
// Rules are loaded from the database at startup and can be reloaded via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves a rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.engine.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a rule.
type CreateRuleRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Expression  string  `json:"expression"`
	Weight      float64 `json:"weight"`
	Override    bool    `json:"override"`
	Enabled     bool    `json:"enabled"`
}

// CreateRule creates a new rule and saves it to the database.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	ruleConfig := &domain.RuleConfig{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Weight:      req.Weight,
		Override:    req.Override,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression by attempting to load
	if err := h.engine.LoadRule(ruleConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveRuleConfig(ctx, ruleConfig); err != nil {
			slog.Error("failed to save rule config", "id", ruleConfig.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("rule created", "id", ruleConfig.ID, "name", ruleConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    ruleConfig,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads all rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListRuleConfigs(ctx)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
