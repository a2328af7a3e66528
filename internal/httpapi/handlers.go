package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thoughtd/internal/graph"
	"github.com/fyrsmithlabs/thoughtd/internal/pipeline"
	"github.com/fyrsmithlabs/thoughtd/internal/prompt"
	"github.com/fyrsmithlabs/thoughtd/internal/reflection"
	"github.com/fyrsmithlabs/thoughtd/internal/store"
	"github.com/fyrsmithlabs/thoughtd/internal/tagparse"
	"github.com/fyrsmithlabs/thoughtd/internal/thought"
)

// retrieveAlpha is the service-level default blend between semantic
// similarity and recency for /retrieve.
const retrieveAlpha = 0.95

// ParseRequest is the request body for POST /api/v1/parse.
type ParseRequest struct {
	Text   string `json:"text"`
	Tag    string `json:"tag"`
	Engine string `json:"engine"`
}

// ParseResponse is the response body for POST /api/v1/parse.
type ParseResponse struct {
	Thoughts    tagparse.ThoughtMap `json:"thoughts"`
	CleanedText string              `json:"cleaned_text"`
	Count       int                 `json:"count"`
	Engine      string              `json:"engine"`
}

// handleParse extracts annotations from raw text without persisting
// anything.
func (s *Server) handleParse(c echo.Context) error {
	var req ParseRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid parse request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text field is required")
	}
	tag := req.Tag
	if tag == "" {
		tag = tagparse.DefaultTag
	}

	var linear bool
	switch req.Engine {
	case "", "lazy":
		linear = false
	case "linear":
		linear = true
	default:
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown engine: %q", req.Engine))
	}

	result, err := tagparse.ParseAndClean(req.Text, tag, linear)
	if err != nil {
		return httpError(err)
	}

	engine := "lazy"
	if linear {
		engine = "linear"
	}
	return c.JSON(http.StatusOK, ParseResponse{
		Thoughts:    result.Thoughts,
		CleanedText: result.CleanedText,
		Count:       result.Thoughts.Len(),
		Engine:      engine,
	})
}

// StoreRequest is the request body for POST /api/v1/store.
type StoreRequest struct {
	RawOutput  string   `json:"raw_output"`
	SessionID  string   `json:"session_id"`
	Category   string   `json:"category"`
	Confidence float64  `json:"confidence"`
	Tags       []string `json:"tags"`
}

// StoreResponse is the response body for POST /api/v1/store.
type StoreResponse struct {
	SessionID     string   `json:"session_id"`
	StoredCount   int      `json:"stored_count"`
	ThoughtIDs    []string `json:"thought_ids"`
	CleanedOutput string   `json:"cleaned_output"`
	Engine        string   `json:"engine"`
	LatencyMS     float64  `json:"latency_ms"`
}

// handleStore ingests tagged model output through the pipeline.
func (s *Server) handleStore(c echo.Context) error {
	var req StoreRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid store request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.RawOutput == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "raw_output field is required")
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "confidence must be between 0.0 and 1.0")
	}

	result, err := s.svc.Pipeline.Ingest(c.Request().Context(), req.RawOutput, pipeline.IngestOptions{
		SessionID:  req.SessionID,
		Category:   req.Category,
		Confidence: req.Confidence,
		Tags:       req.Tags,
	})
	if err != nil {
		return httpError(err)
	}

	ids := make([]string, 0, len(result.Thoughts))
	for _, t := range result.Thoughts {
		ids = append(ids, t.ID)
	}
	return c.JSON(http.StatusCreated, StoreResponse{
		SessionID:     result.SessionID,
		StoredCount:   len(result.Thoughts),
		ThoughtIDs:    ids,
		CleanedOutput: result.CleanedOutput,
		Engine:        result.Engine,
		LatencyMS:     result.LatencyMS,
	})
}

// RetrieveRequest is the request body for POST /api/v1/retrieve.
type RetrieveRequest struct {
	Query         string  `json:"query"`
	SessionID     string  `json:"session_id"`
	Category      string  `json:"category"`
	MinConfidence float64 `json:"min_confidence"`
	Limit         int     `json:"limit"`
	Alpha         float64 `json:"alpha"`

	// CrossSession recalls from the session's ancestor lineage instead
	// of filtering the whole store.
	CrossSession bool `json:"cross_session"`
	Hops         int  `json:"hops"`
}

// RetrievedThought is one scored hit in a RetrieveResponse.
type RetrievedThought struct {
	ID         string  `json:"id"`
	SessionID  string  `json:"session_id"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// RetrieveResponse is the response body for POST /api/v1/retrieve.
type RetrieveResponse struct {
	Count int                `json:"count"`
	Items []RetrievedThought `json:"items"`
}

// handleRetrieve runs scored search, either filtered over the whole store
// or recalled from the session's prior-session lineage.
func (s *Server) handleRetrieve(c echo.Context) error {
	var req RetrieveRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid retrieve request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	if req.Limit < 0 || req.Limit > 100 {
		return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 100")
	}
	if req.Limit == 0 {
		req.Limit = 10
	}
	if req.MinConfidence < 0 || req.MinConfidence > 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "min_confidence must be between 0.0 and 1.0")
	}
	if req.Alpha < 0 || req.Alpha > 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "alpha must be between 0.0 and 1.0")
	}
	if req.Alpha == 0 {
		req.Alpha = retrieveAlpha
	}

	ctx := c.Request().Context()
	var (
		hits []thought.Scored
		err  error
	)
	if req.CrossSession {
		if req.SessionID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "session_id is required for cross-session recall")
		}
		hits, err = s.svc.Store.RecallFromPriorSessions(ctx, req.Query, req.SessionID, store.RecallOptions{
			Limit: req.Limit,
			Alpha: req.Alpha,
			Graph: s.svc.Graph,
			Hops:  req.Hops,
		})
	} else {
		hits, err = s.svc.Store.Search(ctx, req.Query, store.SearchOptions{
			Filters: thought.Filters{
				SessionID:     req.SessionID,
				Category:      req.Category,
				MinConfidence: req.MinConfidence,
			},
			Limit: req.Limit,
			Alpha: req.Alpha,
		})
	}
	if err != nil {
		return httpError(err)
	}

	items := make([]RetrievedThought, 0, len(hits))
	for _, h := range hits {
		items = append(items, RetrievedThought{
			ID:         h.Thought.ID,
			SessionID:  h.Thought.SessionID,
			Category:   h.Thought.Category,
			Confidence: h.Thought.Confidence,
			Text:       h.Thought.CleanedText,
			Score:      h.Score,
		})
	}
	return c.JSON(http.StatusOK, RetrieveResponse{Count: len(items), Items: items})
}

// ReflectRequest is the request body for POST /api/v1/reflect.
type ReflectRequest struct {
	Query               string `json:"query"`
	SessionID           string `json:"session_id"`
	Mode                string `json:"mode"`
	TopK                int    `json:"top_k"`
	ReflectionSessionID string `json:"reflection_session_id"`
}

// ReflectResponse is the response body for POST /api/v1/reflect.
type ReflectResponse struct {
	StoredReflections int      `json:"stored_reflections"`
	ThoughtIDs        []string `json:"thought_ids"`
	ReflectionText    string   `json:"reflection_text"`
	LatencyMS         float64  `json:"latency_ms"`
}

// handleReflect runs one reflection cycle over the session's memory.
func (s *Server) handleReflect(c echo.Context) error {
	var req ReflectRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid reflect request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.TopK < 0 || req.TopK > 50 {
		return echo.NewHTTPError(http.StatusBadRequest, "top_k must be between 1 and 50")
	}

	result, err := s.svc.Reflector.Reflect(c.Request().Context(), reflection.Request{
		Query:               req.Query,
		SessionID:           req.SessionID,
		Mode:                req.Mode,
		TopK:                req.TopK,
		ReflectionSessionID: req.ReflectionSessionID,
	})
	if err != nil {
		return httpError(err)
	}

	ids := make([]string, 0, len(result.Stored))
	for _, t := range result.Stored {
		ids = append(ids, t.ID)
	}
	return c.JSON(http.StatusOK, ReflectResponse{
		StoredReflections: len(result.Stored),
		ThoughtIDs:        ids,
		ReflectionText:    result.ReflectionText,
		LatencyMS:         result.LatencyMS,
	})
}

// PathsResponse is the response body for GET /api/v1/graph/paths.
type PathsResponse struct {
	Count int        `json:"count"`
	Paths [][]string `json:"paths"`
}

// handleGraphPaths finds directed paths between two thoughts.
func (s *Server) handleGraphPaths(c echo.Context) error {
	sourceID := c.QueryParam("source_id")
	targetID := c.QueryParam("target_id")
	if sourceID == "" || targetID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "source_id and target_id are required")
	}
	maxDepth, err := intQueryParam(c, "max_depth")
	if err != nil {
		return err
	}
	limit, err := intQueryParam(c, "limit")
	if err != nil {
		return err
	}

	paths, err := s.svc.Graph.Paths(c.Request().Context(), sourceID, targetID, graph.PathOptions{
		MaxDepth: maxDepth,
		Limit:    limit,
	})
	if err != nil {
		return httpError(err)
	}
	if paths == nil {
		paths = [][]string{}
	}
	return c.JSON(http.StatusOK, PathsResponse{Count: len(paths), Paths: paths})
}

// intQueryParam reads an optional integer query parameter; absent means 0.
func intQueryParam(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid %s: %q", name, raw))
	}
	return v, nil
}

// httpError maps service sentinels onto HTTP status codes. Unrecognized
// errors become 500s.
func httpError(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	switch {
	case errors.Is(err, tagparse.ErrInvalidTag),
		errors.Is(err, thought.ErrEmptySessionID),
		errors.Is(err, thought.ErrInvalidConfidence),
		errors.Is(err, prompt.ErrUnsupportedMode):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, thought.ErrNotFound),
		errors.Is(err, store.ErrSessionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
