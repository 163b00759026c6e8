// Package chi is the HTTP transport for the search surface: a thin
// adapter over the query use case with JSON request/response encoding
// and sentinel-to-status error mapping.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/embedload/internal/domain"
	logpkg "github.com/kailas-cloud/embedload/internal/logger"
)

// SearchService is the consumer interface onto the query use case.
type SearchService interface {
	Search(ctx context.Context, table, queryText string, topK int, embedColumn string) ([]domain.SearchResult, error)
}

// SearchRequest is the POST search body.
type SearchRequest struct {
	Query       string `json:"query"`
	TopK        int    `json:"top_k,omitempty"`
	EmbedColumn string `json:"embed_column,omitempty"`
}

// SearchResultItem is one search hit on the wire.
type SearchResultItem struct {
	ID       string         `json:"id"`
	Document string         `json:"document,omitempty"`
	Distance float64        `json:"distance"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SearchResponse is the POST search response body.
type SearchResponse struct {
	Items []SearchResultItem `json:"items"`
	Total int                `json:"total"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Server is the HTTP API server.
type Server struct {
	search SearchService
	logger *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(search SearchService, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{search: search, logger: logger}
}

// Router builds the chi router with middleware and routes.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))

	r.Post("/api/v1/tables/{table}/search", s.SearchTable)
	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	return r
}

// SearchTable handles POST /api/v1/tables/{table}/search.
func (s *Server) SearchTable(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}

	results, err := s.search.Search(r.Context(), table, req.Query, req.TopK, req.EmbedColumn)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]SearchResultItem, len(results))
	for i, res := range results {
		items[i] = SearchResultItem{
			ID:       res.ID,
			Document: res.Document,
			Distance: res.Distance,
			Metadata: res.Metadata,
		}
	}

	writeJSON(w, http.StatusOK, SearchResponse{Items: items, Total: len(items)})
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sentinel-to-status mapping; everything unmatched is a 500.
var errorStatuses = []struct {
	sentinel error
	status   int
	code     string
}{
	{domain.ErrTableNotFound, http.StatusNotFound, "table_not_found"},
	{domain.ErrDataValidation, http.StatusBadRequest, "validation_failed"},
	{domain.ErrDimensionMismatch, http.StatusBadRequest, "dimension_mismatch"},
	{domain.ErrEmbeddingProvider, http.StatusBadGateway, "embedding_provider_error"},
	{domain.ErrDBOperation, http.StatusInternalServerError, "db_operation_failed"},
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	for _, m := range errorStatuses {
		if errors.Is(err, m.sentinel) {
			writeError(w, m.status, m.code, m.sentinel.Error())
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
