// Package http provides the HTTP server infrastructure.
// Clean Architecture: Framework/driver layer - outermost circle.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"forumrag/internal/domain/entities"
	"forumrag/internal/domain/usecases"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Server exposes the RAG query pipeline over HTTP.
type Server struct {
	engine *usecases.QueryEngine
	logger *zap.Logger
	addr   string

	defaultMaxTokens   int
	defaultTemperature float64
}

// NewServer creates a new HTTP server.
func NewServer(engine *usecases.QueryEngine, addr string, defaultMaxTokens int, defaultTemperature float64, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:             engine,
		logger:             logger,
		addr:               addr,
		defaultMaxTokens:   defaultMaxTokens,
		defaultTemperature: defaultTemperature,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ask", s.handleAsk)
	mux.HandleFunc("/search", s.handleSearch)
	mux.HandleFunc("/health", s.handleHealth)
	return corsMiddleware(s.loggingMiddleware(mux))
}

// Start runs the HTTP server until the context is canceled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	s.logger.Info("server starting", zap.String("addr", s.addr))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type askRequest struct {
	Query       string   `json:"query"`
	TopK        *int     `json:"top_k"`
	MaxTokens   *int     `json:"max_tokens"`
	Temperature *float64 `json:"temperature"`
}

// handleAsk runs the full RAG pipeline.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON in request body", "")
		return
	}

	q := entities.Query{
		Text:        req.Query,
		TopK:        entities.DefaultTopK,
		MaxTokens:   s.defaultMaxTokens,
		Temperature: s.defaultTemperature,
	}
	if req.TopK != nil {
		q.TopK = *req.TopK
	}
	if req.MaxTokens != nil {
		q.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		q.Temperature = *req.Temperature
	}

	resp, err := s.engine.Answer(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  *int   `json:"top_k"`
}

type searchResult struct {
	Text       string             `json:"text"`
	Similarity float64            `json:"similarity"`
	ChunkID    string             `json:"chunk_id,omitempty"`
	Meta       entities.ChunkMeta `json:"meta"`
}

type searchResponse struct {
	Query   string         `json:"query"`
	Results []searchResult `json:"results"`
	Count   int            `json:"count"`
}

// handleSearch exercises retrieval only, bypassing generation.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON in request body", "")
		return
	}

	q := entities.Query{Text: req.Query, TopK: entities.DefaultTopK}
	if req.TopK != nil {
		q.TopK = *req.TopK
	}

	chunks, err := s.engine.Search(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	results := make([]searchResult, len(chunks))
	for i, c := range chunks {
		results[i] = searchResult{
			Text:       c.Text,
			Similarity: c.Similarity,
			ChunkID:    c.ChunkID,
			Meta:       c.Meta,
		}
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Query:   q.Text,
		Results: results,
		Count:   len(results),
	})
}

type healthVectorStore struct {
	Type      string `json:"type"`
	Count     int    `json:"count"`
	Available bool   `json:"available"`
}

type healthResponse struct {
	Status      string            `json:"status"`
	Ready       bool              `json:"ready"`
	VectorStore healthVectorStore `json:"vector_store"`
	Errors      []string          `json:"errors,omitempty"`
}

// handleHealth reports readiness using the cheap index stats check only.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	stats, ready, err := s.engine.Ready(r.Context())
	resp := healthResponse{
		Status: "healthy",
		Ready:  ready,
		VectorStore: healthVectorStore{
			Type:      stats.Backend,
			Count:     stats.Count,
			Available: stats.Available,
		},
	}

	status := http.StatusOK
	switch {
	case err != nil:
		resp.Status = "not_ready"
		resp.Errors = append(resp.Errors, "vector store unavailable")
		status = http.StatusServiceUnavailable
	case !ready:
		resp.Status = "not_ready"
		resp.Errors = append(resp.Errors, "no data indexed in vector store")
	}

	writeJSON(w, status, resp)
}

type errorResponse struct {
	Error           string `json:"error"`
	Detail          string `json:"detail,omitempty"`
	ChunksRetrieved *int   `json:"chunks_retrieved,omitempty"`
}

// writeDomainError maps the error taxonomy onto HTTP status codes
// without leaking internals. Generation failures after a successful
// retrieval still report how many chunks were retrieved.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal server error"

	var de *entities.DomainError
	if errors.As(err, &de) {
		msg = de.Message
		switch de.Type {
		case entities.ErrTypeValidation:
			status = http.StatusBadRequest
		case entities.ErrTypeNotReady:
			status = http.StatusServiceUnavailable
		case entities.ErrTypeEmbedding, entities.ErrTypeGeneration:
			status = http.StatusBadGateway
		case entities.ErrTypeRetrieval, entities.ErrTypeConfig:
			status = http.StatusInternalServerError
		case entities.ErrTypeRateLimit:
			status = http.StatusTooManyRequests
		case entities.ErrTypeAuth, entities.ErrTypeTimeout, entities.ErrTypeProvider:
			status = http.StatusBadGateway
		}
	}

	resp := errorResponse{Error: msg}
	if details := entities.ErrorDetails(err); details != nil {
		if n, ok := details["chunks_retrieved"].(int); ok {
			resp.ChunksRetrieved = &n
		}
	}
	if status >= 500 || status == http.StatusBadGateway {
		s.logger.Error("request failed", zap.Error(err))
	}

	writeJSON(w, status, resp)
}

func writeError(w http.ResponseWriter, status int, msg, detail string) {
	writeJSON(w, status, errorResponse{Error: msg, Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// loggingMiddleware logs each request with a generated request id.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.NewString()
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			zap.String("request_id", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
