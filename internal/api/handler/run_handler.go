package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-metadata-extractor/internal/config"
	"go-metadata-extractor/internal/model"
	"go-metadata-extractor/internal/pipeline"
	"go-metadata-extractor/internal/publish"
	"go-metadata-extractor/internal/store"
	"go-metadata-extractor/pkg/utils"
)

const runsPrefix = "/api/v1/runs/"

// RunStore is the part of the run history the handlers need
type RunStore interface {
	pipeline.RunRecorder
	SaveRun(runID string, opts model.Options) error
	ListRuns(limit int) ([]model.RunRecord, error)
	GetRun(runID string) (model.RunRecord, error)
	GetRunErrors(runID string) ([]model.ErrorDetail, error)
}

// PublisherFactory builds an uploader for a container
type PublisherFactory func(container string, logger *zap.Logger) (publish.Uploader, error)

// Handler serves the run API. Runs execute in background goroutines owned by
// the handler; Wait blocks until they finish.
type Handler struct {
	store     RunStore
	logger    *zap.Logger
	publisher PublisherFactory
	outputs   *utils.OutputManager

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func New(s RunStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:  s,
		logger: logger,
		publisher: func(container string, logger *zap.Logger) (publish.Uploader, error) {
			return publish.FromEnv(container, logger)
		},
		cancels: make(map[string]context.CancelFunc),
	}
}

// WithPublisherFactory replaces how uploaders are built, e.g. in tests.
func (h *Handler) WithPublisherFactory(f PublisherFactory) *Handler {
	h.publisher = f
	return h
}

// WithOutputDir places relative run outputs under dir/<run id>.
func (h *Handler) WithOutputDir(dir string) *Handler {
	if dir != "" {
		h.outputs = utils.NewOutputManager(dir)
	}
	return h
}

// Wait blocks until every background run has finished.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// CancelAll cancels every in-flight run.
func (h *Handler) CancelAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, cancel := range h.cancels {
		cancel()
	}
}

// CreateRun starts a new extraction run
// @Summary Start an extraction run
// @Description Validate the options and start an extraction run in the background
// @Tags runs
// @Accept json
// @Produce json
// @Param run body model.RunRequest true "Run configuration"
// @Success 202 {object} map[string]interface{} "Run accepted"
// @Failure 400 {object} map[string]interface{} "Invalid request payload"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [post]
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	req := model.RunRequest{Options: model.DefaultOptions()}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload: "+err.Error())
		return
	}

	// 1. Validate options
	runID := uuid.NewString()
	opts := req.Options
	if req.Tool != "" {
		opts.Tool = req.Tool
	}
	if h.outputs != nil {
		opts.Output = h.outputs.OutputPath(runID, opts.Output, opts.Organize)
	}
	if opts.Output == "" || opts.Output == "-" {
		writeError(w, http.StatusBadRequest, "An output path is required for API runs")
		return
	}
	if err := config.Validate(opts); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var timeout time.Duration
	if req.Timeout != "" {
		d, err := utils.ParseDuration(req.Timeout)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		timeout = d
	}

	var uploader publish.Uploader
	if opts.UploadContainer != "" {
		up, err := h.publisher(opts.UploadContainer, h.logger)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Upload unavailable: "+err.Error())
			return
		}
		uploader = up
	}

	// 2. Save the run
	if err := h.store.SaveRun(runID, opts); err != nil {
		h.logger.Error("Failed to save run", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to save run")
		return
	}

	// 3. Start the run asynchronously
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	h.mu.Lock()
	h.cancels[runID] = cancel
	h.mu.Unlock()

	engine := pipeline.New(opts,
		pipeline.WithRunID(runID),
		pipeline.WithRecorder(h.store),
		pipeline.WithLogger(h.logger),
		pipeline.WithPublisher(uploader),
	)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer func() {
			h.mu.Lock()
			delete(h.cancels, runID)
			h.mu.Unlock()
			cancel()
		}()
		summary, err := engine.Run(ctx)
		if err != nil {
			h.logger.Warn("Run failed", zap.String("run_id", runID), zap.Error(err))
			return
		}
		h.logger.Info("Run completed",
			zap.String("run_id", runID),
			zap.Int64("rows", summary.RowsEmitted),
			zap.Duration("duration", summary.Duration))
	}()

	// 4. Return response
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message":   "Run started",
		"run_id":    runID,
		"status":    model.RunPending,
		"createdAt": time.Now().UTC(),
	})
}

// ListRuns retrieves the run history
// @Summary List runs
// @Description Get the most recent runs with their status and summary
// @Tags runs
// @Produce json
// @Param limit query int false "Maximum number of runs" default(50)
// @Success 200 {array} model.RunRecord "List of runs"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	runs, err := h.store.ListRuns(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch runs")
		return
	}
	if runs == nil {
		runs = []model.RunRecord{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun retrieves a single run
// @Summary Get run
// @Description Retrieve options, status and summary of a run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} model.RunRecord "Run details"
// @Failure 400 {object} map[string]interface{} "Invalid run ID"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id} [get]
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r.URL.Path, "")
	if !ok {
		return
	}

	run, err := h.store.GetRun(runID)
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetRunErrors retrieves errors recorded for a run
// @Summary Get run errors
// @Description Retrieve the errors recorded while a run executed
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run errors"
// @Failure 400 {object} map[string]interface{} "Invalid run ID"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id}/errors [get]
func (h *Handler) GetRunErrors(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r.URL.Path, "/errors")
	if !ok {
		return
	}
	if _, err := h.store.GetRun(runID); err != nil {
		h.storeError(w, err)
		return
	}

	details, err := h.store.GetRunErrors(runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve errors")
		return
	}
	if details == nil {
		details = []model.ErrorDetail{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"errors": details,
		"count":  len(details),
	})
}

// CancelRun cancels a running extraction
// @Summary Cancel run
// @Description Cancel an in-flight run; rows already produced are still written
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Cancellation requested"
// @Failure 400 {object} map[string]interface{} "Run is not running"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id}/cancel [patch]
func (h *Handler) CancelRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r.URL.Path, "/cancel")
	if !ok {
		return
	}

	h.mu.Lock()
	cancel, running := h.cancels[runID]
	h.mu.Unlock()
	if running {
		cancel()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message": "Cancellation requested",
			"run_id":  runID,
			"status":  "cancelling",
		})
		return
	}

	run, err := h.store.GetRun(runID)
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeError(w, http.StatusBadRequest, fmt.Sprintf("Run is %s and cannot be cancelled", run.Status))
}

func (h *Handler) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "Run not found")
		return
	}
	h.logger.Error("Run store failure", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Failed to retrieve run")
}

// runIDFromPath extracts the run ID between runsPrefix and suffix.
func runIDFromPath(w http.ResponseWriter, path, suffix string) (string, bool) {
	if !strings.HasPrefix(path, runsPrefix) || !strings.HasSuffix(path, suffix) ||
		len(path)-len(suffix) < len(runsPrefix) {
		writeError(w, http.StatusBadRequest, "Invalid path")
		return "", false
	}
	runID := strings.Trim(path[len(runsPrefix):len(path)-len(suffix)], "/")
	if runID == "" || strings.Contains(runID, "/") {
		writeError(w, http.StatusBadRequest, "Run ID is required")
		return "", false
	}
	return runID, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"error": message})
}
