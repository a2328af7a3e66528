package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/thoughtd/internal/pipeline"
	"github.com/fyrsmithlabs/thoughtd/internal/reflection"
	"github.com/fyrsmithlabs/thoughtd/internal/store"
	"github.com/fyrsmithlabs/thoughtd/internal/tagparse"
	"github.com/fyrsmithlabs/thoughtd/internal/thought"
)

// defaultRetrieveAlpha matches the HTTP retrieve surface: recall leans almost
// entirely on semantic similarity, with a small recency component.
const defaultRetrieveAlpha = 0.95

func (s *Server) registerTools() {
	// Parse tools
	s.registerParseTools()

	// Memory tools (store/retrieve)
	s.registerMemoryTools()

	// Reflection tools
	s.registerReflectionTools()
}

// ===== PARSE TOOLS =====

type parseThoughtsInput struct {
	Text   string `json:"text" jsonschema:"required,Raw model output to scan for thought annotations"`
	Tag    string `json:"tag,omitempty" jsonschema:"Annotation tag name (default: thought)"`
	Engine string `json:"engine,omitempty" jsonschema:"Parse engine: lazy or linear (default: lazy)"`
}

type parsedThought struct {
	Key     string `json:"key" jsonschema:"Positional key in {tag}_{index} form"`
	Content string `json:"content" jsonschema:"Extracted annotation content"`
}

type parseThoughtsOutput struct {
	Thoughts    []parsedThought `json:"thoughts" jsonschema:"Extracted thoughts in document order"`
	CleanedText string          `json:"cleaned_text" jsonschema:"Input with annotations removed"`
	Count       int             `json:"count" jsonschema:"Number of thoughts extracted"`
	Engine      string          `json:"engine" jsonschema:"Parse engine used"`
}

func (s *Server) registerParseTools() {
	// parse_thoughts - extract annotations without persisting anything
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "parse_thoughts",
		Description: "Extract /thought[...] annotations from raw model output and return them alongside the cleaned text. Nothing is persisted; use store_thoughts to write to memory.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args parseThoughtsInput) (*mcp.CallToolResult, parseThoughtsOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "parse_thoughts")
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, "parse_thoughts")
			s.metrics.RecordInvocation(ctx, "parse_thoughts", time.Since(start), toolErr)
		}()

		if args.Text == "" {
			toolErr = fmt.Errorf("text is required")
			return nil, parseThoughtsOutput{}, toolErr
		}
		tag := args.Tag
		if tag == "" {
			tag = tagparse.DefaultTag
		}

		var linear bool
		switch args.Engine {
		case "", "lazy":
			linear = false
		case "linear":
			linear = true
		default:
			toolErr = fmt.Errorf("unknown engine: %q", args.Engine)
			return nil, parseThoughtsOutput{}, toolErr
		}

		result, err := tagparse.ParseAndClean(args.Text, tag, linear)
		if err != nil {
			toolErr = fmt.Errorf("parse failed: %w", err)
			return nil, parseThoughtsOutput{}, toolErr
		}

		engine := "lazy"
		if linear {
			engine = "linear"
		}
		thoughts := make([]parsedThought, 0, result.Thoughts.Len())
		for _, e := range result.Thoughts {
			thoughts = append(thoughts, parsedThought{Key: e.Key, Content: e.Content})
		}

		output := parseThoughtsOutput{
			Thoughts:    thoughts,
			CleanedText: result.CleanedText,
			Count:       len(thoughts),
			Engine:      engine,
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Extracted %d thought(s) with the %s engine", output.Count, engine)},
			},
		}, output, nil
	})
}

// ===== MEMORY TOOLS =====

type storeThoughtsInput struct {
	RawOutput  string   `json:"raw_output" jsonschema:"required,Raw model output containing thought annotations"`
	SessionID  string   `json:"session_id" jsonschema:"required,Session the thoughts belong to"`
	Category   string   `json:"category,omitempty" jsonschema:"Category for the stored thoughts (default: reasoning)"`
	Confidence float64  `json:"confidence,omitempty" jsonschema:"Confidence score between 0.0 and 1.0 (default: 0.9)"`
	Tags       []string `json:"tags,omitempty" jsonschema:"Free-form labels attached to every stored thought"`
}

type storeThoughtsOutput struct {
	SessionID     string   `json:"session_id" jsonschema:"Session the thoughts were stored under"`
	StoredCount   int      `json:"stored_count" jsonschema:"Number of thoughts persisted"`
	ThoughtIDs    []string `json:"thought_ids" jsonschema:"IDs of the persisted thoughts"`
	CleanedOutput string   `json:"cleaned_output" jsonschema:"Input with annotations removed"`
	Engine        string   `json:"engine" jsonschema:"Parse engine whose result was stored"`
	LatencyMS     float64  `json:"latency_ms" jsonschema:"Wall-clock cost of the ingest"`
}

type retrieveThoughtsInput struct {
	Query         string  `json:"query" jsonschema:"required,Natural-language query to match against stored thoughts"`
	SessionID     string  `json:"session_id,omitempty" jsonschema:"Restrict results to one session, or anchor cross-session recall"`
	Category      string  `json:"category,omitempty" jsonschema:"Restrict results to one category"`
	MinConfidence float64 `json:"min_confidence,omitempty" jsonschema:"Minimum confidence score between 0.0 and 1.0"`
	Limit         int     `json:"limit,omitempty" jsonschema:"Maximum results to return, 1-100 (default: 10)"`
	CrossSession  bool    `json:"cross_session,omitempty" jsonschema:"Recall from the session's parent lineage instead of filtering (requires session_id)"`
	Hops          int     `json:"hops,omitempty" jsonschema:"Graph neighbor hops to expand during cross-session recall (default: 1)"`
}

type retrievedThought struct {
	ID         string  `json:"id" jsonschema:"Thought ID"`
	SessionID  string  `json:"session_id" jsonschema:"Session the thought belongs to"`
	Category   string  `json:"category" jsonschema:"Thought category"`
	Confidence float64 `json:"confidence" jsonschema:"Confidence score"`
	Text       string  `json:"text" jsonschema:"Cleaned thought text"`
	Score      float64 `json:"score" jsonschema:"Combined semantic and recency score"`
}

type retrieveThoughtsOutput struct {
	Count    int                `json:"count" jsonschema:"Number of thoughts returned"`
	Thoughts []retrievedThought `json:"thoughts" jsonschema:"Scored thoughts, best match first"`
}

func (s *Server) registerMemoryTools() {
	// store_thoughts - ingest tagged output through the pipeline
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "store_thoughts",
		Description: "Parse thought annotations out of raw model output, embed them, and persist them to session memory. Returns the cleaned output safe to show users.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args storeThoughtsInput) (*mcp.CallToolResult, storeThoughtsOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "store_thoughts")
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, "store_thoughts")
			s.metrics.RecordInvocation(ctx, "store_thoughts", time.Since(start), toolErr)
		}()

		if args.RawOutput == "" {
			toolErr = fmt.Errorf("raw_output is required")
			return nil, storeThoughtsOutput{}, toolErr
		}
		if args.Confidence < 0 || args.Confidence > 1 {
			toolErr = fmt.Errorf("confidence must be between 0.0 and 1.0")
			return nil, storeThoughtsOutput{}, toolErr
		}

		result, err := s.pipe.Ingest(ctx, args.RawOutput, pipeline.IngestOptions{
			SessionID:  args.SessionID,
			Category:   args.Category,
			Confidence: args.Confidence,
			Tags:       args.Tags,
		})
		if err != nil {
			toolErr = fmt.Errorf("store failed: %w", err)
			return nil, storeThoughtsOutput{}, toolErr
		}

		ids := make([]string, 0, len(result.Thoughts))
		for _, t := range result.Thoughts {
			ids = append(ids, t.ID)
		}
		output := storeThoughtsOutput{
			SessionID:     args.SessionID,
			StoredCount:   len(result.Thoughts),
			ThoughtIDs:    ids,
			CleanedOutput: result.CleanedOutput,
			Engine:        result.Engine,
			LatencyMS:     result.LatencyMS,
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Stored %d thought(s) in session %s", output.StoredCount, args.SessionID)},
			},
		}, output, nil
	})

	// retrieve_thoughts - scored search over the memory
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "retrieve_thoughts",
		Description: "Search stored thoughts by semantic similarity with a recency tiebreak. Filter by session, category, or confidence, or set cross_session to recall from the session's parent lineage.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args retrieveThoughtsInput) (*mcp.CallToolResult, retrieveThoughtsOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "retrieve_thoughts")
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, "retrieve_thoughts")
			s.metrics.RecordInvocation(ctx, "retrieve_thoughts", time.Since(start), toolErr)
		}()

		if args.Query == "" {
			toolErr = fmt.Errorf("query is required")
			return nil, retrieveThoughtsOutput{}, toolErr
		}
		if args.Limit < 0 || args.Limit > 100 {
			toolErr = fmt.Errorf("limit must be between 1 and 100")
			return nil, retrieveThoughtsOutput{}, toolErr
		}
		limit := args.Limit
		if limit == 0 {
			limit = 10
		}
		if args.MinConfidence < 0 || args.MinConfidence > 1 {
			toolErr = fmt.Errorf("min_confidence must be between 0.0 and 1.0")
			return nil, retrieveThoughtsOutput{}, toolErr
		}

		var (
			hits []thought.Scored
			err  error
		)
		if args.CrossSession {
			if args.SessionID == "" {
				toolErr = fmt.Errorf("session_id is required for cross-session recall")
				return nil, retrieveThoughtsOutput{}, toolErr
			}
			hits, err = s.store.RecallFromPriorSessions(ctx, args.Query, args.SessionID, store.RecallOptions{
				Limit: limit,
				Alpha: defaultRetrieveAlpha,
				Graph: s.graph,
				Hops:  args.Hops,
			})
		} else {
			hits, err = s.store.Search(ctx, args.Query, store.SearchOptions{
				Filters: thought.Filters{
					SessionID:     args.SessionID,
					Category:      args.Category,
					MinConfidence: args.MinConfidence,
				},
				Limit: limit,
				Alpha: defaultRetrieveAlpha,
			})
		}
		if err != nil {
			toolErr = fmt.Errorf("retrieve failed: %w", err)
			return nil, retrieveThoughtsOutput{}, toolErr
		}

		thoughts := make([]retrievedThought, 0, len(hits))
		for _, h := range hits {
			thoughts = append(thoughts, retrievedThought{
				ID:         h.Thought.ID,
				SessionID:  h.Thought.SessionID,
				Category:   h.Thought.Category,
				Confidence: h.Thought.Confidence,
				Text:       h.Thought.CleanedText,
				Score:      h.Score,
			})
		}
		output := retrieveThoughtsOutput{
			Count:    len(thoughts),
			Thoughts: thoughts,
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Found %d thought(s)", output.Count)},
			},
		}, output, nil
	})
}

// ===== REFLECTION TOOLS =====

type reflectInput struct {
	Query               string `json:"query,omitempty" jsonschema:"Focus question steering which thoughts are recalled for the reflection"`
	SessionID           string `json:"session_id" jsonschema:"required,Session whose memory to reflect over"`
	Mode                string `json:"mode,omitempty" jsonschema:"Reflection mode: reasoning, summarization, contradiction_detection, or planning (default: reasoning)"`
	TopK                int    `json:"top_k,omitempty" jsonschema:"Number of recalled thoughts to reflect over, 1-50 (default: 8)"`
	ReflectionSessionID string `json:"reflection_session_id,omitempty" jsonschema:"Child session to store the reflections under (default: the session itself)"`
}

type reflectOutput struct {
	StoredReflections int      `json:"stored_reflections" jsonschema:"Number of reflections persisted"`
	ThoughtIDs        []string `json:"thought_ids" jsonschema:"IDs of the persisted reflections"`
	ReflectionText    string   `json:"reflection_text" jsonschema:"Raw reflection output"`
	LatencyMS         float64  `json:"latency_ms" jsonschema:"Wall-clock cost of the cycle"`
}

func (s *Server) registerReflectionTools() {
	// reflect - run one reflection cycle over a session's memory
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "reflect",
		Description: "Recall a session's most relevant thoughts, distill them into higher-level reflections, and store those back as durable memory.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args reflectInput) (*mcp.CallToolResult, reflectOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "reflect")
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, "reflect")
			s.metrics.RecordInvocation(ctx, "reflect", time.Since(start), toolErr)
		}()

		if args.TopK < 0 || args.TopK > 50 {
			toolErr = fmt.Errorf("top_k must be between 1 and 50")
			return nil, reflectOutput{}, toolErr
		}

		result, err := s.reflector.Reflect(ctx, reflection.Request{
			Query:               args.Query,
			SessionID:           args.SessionID,
			Mode:                args.Mode,
			TopK:                args.TopK,
			ReflectionSessionID: args.ReflectionSessionID,
		})
		if err != nil {
			toolErr = fmt.Errorf("reflect failed: %w", err)
			return nil, reflectOutput{}, toolErr
		}

		ids := make([]string, 0, len(result.Stored))
		for _, t := range result.Stored {
			ids = append(ids, t.ID)
		}
		output := reflectOutput{
			StoredReflections: len(result.Stored),
			ThoughtIDs:        ids,
			ReflectionText:    result.ReflectionText,
			LatencyMS:         result.LatencyMS,
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Stored %d reflection(s) for session %s", output.StoredReflections, args.SessionID)},
			},
		}, output, nil
	})
}
