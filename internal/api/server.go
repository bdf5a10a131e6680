package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"papersearch/internal/config"
	"papersearch/internal/models"
	"papersearch/internal/providers"
	"papersearch/internal/search"
	"papersearch/internal/storage"
	"papersearch/internal/util"
	"papersearch/internal/workflows"

	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
)

const (
	defaultAPIMaxPapers = 50
	defaultAPISnippets  = 10
)

type Server struct {
	cfg       config.Config
	store     storage.Store
	engine    *search.Engine
	providers *providers.Manager
	temporal  tclient.Client
	logger    *slog.Logger
}

// NewServer wires the HTTP surface. tc may be nil, in which case the job
// endpoints answer 503.
func NewServer(cfg config.Config, store storage.Store, engine *search.Engine, pm *providers.Manager, tc tclient.Client, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:       cfg,
		store:     store,
		engine:    engine,
		providers: pm,
		temporal:  tc,
		logger:    logger,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/search/keyword", s.handleKeywordSearch)
	mux.HandleFunc("/search/embedding", s.handleEmbeddingSearch)
	mux.HandleFunc("/title", s.handleTitle)
	mux.HandleFunc("/abstract", s.handleAbstract)
	mux.HandleFunc("/page", s.handlePage)
	mux.HandleFunc("/paper", s.handlePaper)
	mux.HandleFunc("/jobs/", s.handleJobs)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleKeywordSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	q := r.URL.Query()
	if !q.Has("keyword") {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("keyword is required"))
		return
	}
	keyword := q.Get("keyword")
	maxPapers, err := positiveParam(q.Get("maxPapers"), defaultAPIMaxPapers)
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("maxPapers: %w", err))
		return
	}
	maxSnippets, err := positiveParam(q.Get("maxSnippetsPerPaper"), defaultAPISnippets)
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("maxSnippetsPerPaper: %w", err))
		return
	}
	minDate, err := dateParam(q.Get("minPublicationDate"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := s.storeContext(r.Context())
	defer cancel()
	results, err := s.engine.SearchByKeyword(ctx, keyword, search.KeywordOptions{
		MaxPapers:           maxPapers,
		MaxSnippetsPerPaper: maxSnippets,
		MinPublicationDate:  minDate,
	})
	if err != nil {
		s.writeSearchErr(w, err)
		return
	}
	if wantsText(r) {
		writeText(w, util.FormatKeywordResults(keyword, results))
		return
	}
	total := 0
	for _, p := range results {
		total += len(p.Occurrences)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results":          results,
		"totalPapers":      len(results),
		"totalOccurrences": total,
	})
}

type embeddingSearchRequest struct {
	Vector             []float32  `json:"vector"`
	Query              string     `json:"query"`
	Limit              int        `json:"limit"`
	MinPublicationDate *time.Time `json:"minPublicationDate"`
}

func (s *Server) handleEmbeddingSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req embeddingSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	switch {
	case len(req.Vector) > 0 && req.Query != "":
		writeErr(w, http.StatusBadRequest, fmt.Errorf("vector and query are mutually exclusive"))
		return
	case len(req.Vector) == 0 && req.Query == "":
		writeErr(w, http.StatusBadRequest, fmt.Errorf("vector or query is required"))
		return
	}

	vec := req.Vector
	if req.Query != "" {
		if s.providers == nil {
			writeErr(w, http.StatusServiceUnavailable, fmt.Errorf("no embedding provider configured"))
			return
		}
		var err error
		vec, err = s.providers.EmbedQuery(r.Context(), req.Query)
		if err != nil {
			s.logger.Error("query embedding failed", "err", err)
			writeErr(w, http.StatusBadGateway, err)
			return
		}
	}

	ctx, cancel := s.storeContext(r.Context())
	defer cancel()
	results, err := s.engine.SearchByEmbedding(ctx, vec, search.EmbeddingOptions{
		Limit:              req.Limit,
		MinPublicationDate: req.MinPublicationDate,
	})
	if err != nil {
		s.writeSearchErr(w, err)
		return
	}
	if wantsText(r) {
		writeText(w, util.FormatSimilarPapers(results))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleTitle(w http.ResponseWriter, r *http.Request) {
	universalID, ok := requireUniversalID(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.storeContext(r.Context())
	defer cancel()
	p, found, err := s.store.GetPaperByUniversalID(ctx, universalID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		writeErr(w, http.StatusNotFound, fmt.Errorf("paper not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"title":           p.Title,
		"publicationDate": p.PublicationDate.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleAbstract(w http.ResponseWriter, r *http.Request) {
	universalID, ok := requireUniversalID(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.storeContext(r.Context())
	defer cancel()
	a, found, err := s.store.GetPaperAbstract(ctx, universalID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		writeErr(w, http.StatusNotFound, fmt.Errorf("paper not found"))
		return
	}
	if wantsText(r) {
		writeText(w, util.FormatAbstract(a))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	universalID, ok := requireUniversalID(w, r)
	if !ok {
		return
	}
	pageNumber, err := strconv.Atoi(r.URL.Query().Get("pageNumber"))
	if err != nil || pageNumber < 1 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("pageNumber must be a positive integer"))
		return
	}
	ctx, cancel := s.storeContext(r.Context())
	defer cancel()
	page, found, err := s.store.GetPage(ctx, universalID, pageNumber)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		writeErr(w, http.StatusNotFound, fmt.Errorf("page not found"))
		return
	}
	if wantsText(r) {
		writeText(w, util.FormatPage(universalID, page.PageNumber, page.Text))
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handlePaper(w http.ResponseWriter, r *http.Request) {
	universalID, ok := requireUniversalID(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.storeContext(r.Context())
	defer cancel()
	paper, found, err := s.store.GetFullPaper(ctx, universalID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		writeErr(w, http.StatusNotFound, fmt.Errorf("paper not found"))
		return
	}
	if wantsText(r) {
		writeText(w, util.FormatFullPaper(paper))
		return
	}
	if paper.Pages == nil {
		paper.Pages = []models.PageText{}
	}
	writeJSON(w, http.StatusOK, paper)
}

type jobRequest struct {
	InputDir      string `json:"inputDir"`
	MaxConcurrent int    `json:"maxConcurrent"`
	BatchSize     int    `json:"batchSize"`
	DryRun        bool   `json:"dryRun"`
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/jobs/"), "/"), "/")
	if len(parts) == 0 || parts[0] == "" || len(parts) > 2 {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	workflowID, ok := jobWorkflowIDs[parts[0]]
	if !ok {
		writeErr(w, http.StatusNotFound, fmt.Errorf("unknown job %q", parts[0]))
		return
	}
	if s.temporal == nil {
		writeErr(w, http.StatusServiceUnavailable, fmt.Errorf("workflow engine not configured"))
		return
	}

	if len(parts) == 2 {
		if parts[1] != "progress" {
			writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
			return
		}
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.jobProgress(w, r, workflowID)
		return
	}

	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req jobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}

	var (
		wf    any
		input any
	)
	switch parts[0] {
	case "ingest":
		dir := strings.TrimSpace(req.InputDir)
		if dir == "" {
			dir = s.cfg.IngestDir
		}
		wf, input = workflows.CorpusIngestWorkflow, workflows.CorpusIngestInput{InputDir: dir, MaxConcurrent: req.MaxConcurrent}
	case "backfill-embeddings":
		batch := req.BatchSize
		if batch <= 0 {
			batch = s.cfg.BackfillBatchSize
		}
		wf, input = workflows.EmbeddingBackfillWorkflow, workflows.EmbeddingBackfillInput{BatchSize: batch}
	case "repair-dates":
		wf, input = workflows.PublicationDateRepairWorkflow, workflows.PublicationDateRepairInput{DryRun: req.DryRun}
	case "reindex":
		batch := req.BatchSize
		if batch <= 0 {
			batch = s.cfg.ReindexBatchSize
		}
		wf, input = workflows.SearchIndexBackfillWorkflow, workflows.SearchIndexBackfillInput{BatchSize: batch}
	}

	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                                       workflowID,
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, wf, input)
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	s.logger.Info("job started", "job", parts[0], "workflow_id", we.GetID(), "run_id", we.GetRunID())
	writeJSON(w, http.StatusAccepted, map[string]any{"workflow_id": we.GetID(), "run_id": we.GetRunID()})
}

var jobWorkflowIDs = map[string]string{
	"ingest":              workflows.IngestWorkflowID,
	"backfill-embeddings": workflows.EmbeddingBackfillWorkflowID,
	"repair-dates":        workflows.DateRepairWorkflowID,
	"reindex":             workflows.SearchIndexWorkflowID,
}

func (s *Server) jobProgress(w http.ResponseWriter, r *http.Request, workflowID string) {
	if workflowID == workflows.DateRepairWorkflowID {
		// The repair job runs as a single activity and has no progress query.
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	resp, err := s.temporal.QueryWorkflow(r.Context(), workflowID, "", workflows.QueryGetProgress)
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	var prog map[string]any
	if err := resp.Get(&prog); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, prog)
}

func (s *Server) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}

func (s *Server) writeSearchErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, search.ErrValidation):
		writeErr(w, http.StatusBadRequest, err)
	default:
		s.logger.Error("search failed", "err", err)
		writeErr(w, http.StatusInternalServerError, err)
	}
}

func requireUniversalID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return "", false
	}
	id := strings.TrimSpace(r.URL.Query().Get("universalId"))
	if id == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("universalId is required"))
		return "", false
	}
	return id, true
}

func positiveParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("must be a positive integer, got %q", raw)
	}
	return n, nil
}

func dateParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("minPublicationDate must be an ISO 8601 datetime: %w", err)
	}
	return &t, nil
}

func wantsText(r *http.Request) bool {
	return r.URL.Query().Get("format") == "text"
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "PS-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status == http.StatusBadGateway:
		return apiError{Code: "PS-API-5020", Message: "Embedding provider unavailable. Retry shortly."}
	case status == http.StatusServiceUnavailable:
		return apiError{Code: "PS-API-5030", Message: "Service dependency is not configured."}
	case status >= 500:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"),
			strings.Contains(raw, "no such table"):
			return apiError{
				Code:    "PS-DB-5001",
				Message: "Database schema is not initialized. Run migrations and retry.",
			}
		case strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "PS-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		case strings.Contains(raw, "deadline exceeded"):
			return apiError{
				Code:    "PS-DB-5003",
				Message: "Corpus store timed out. Retry with a narrower query.",
			}
		default:
			return apiError{
				Code:    "PS-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "PS-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "PS-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "PS-API-4009"
		msg = "Job is already running. Check its progress and retry later."
	case status == http.StatusMethodNotAllowed:
		code = "PS-API-4005"
		msg = "This endpoint does not support the requested method."
	}

	// For 4xx, keep user-safe validation context only.
	if status >= 400 && status < 500 && err != nil {
		switch {
		case strings.Contains(raw, "paper not found"):
			msg = "Paper not found"
		case strings.Contains(raw, "page not found"):
			msg = "Page not found"
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		case errors.Is(err, search.ErrValidation), strings.Contains(raw, "required"),
			strings.Contains(raw, "must be"), strings.Contains(raw, "mutually exclusive"):
			msg = err.Error()
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
