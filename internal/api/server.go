package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"TrinoEventPump/internal/config"
	"TrinoEventPump/internal/models"
)

// Queries — чтение представлений запросов
type Queries interface {
	View(queryID string) (models.QueryView, bool)
	Views() []models.QueryView
	QueryIDs() []string
	QueriesByCatalog(name string) []models.QueryView
	QueriesBySchema(key string) []models.QueryView
	QueriesByTable(key string) []models.QueryView
	Summary() models.Summary
}

// Catalogs — проекция каталогов с ручным обновлением
type Catalogs interface {
	All() []models.Catalog
	Get(id string) (models.Catalog, bool)
	Refresh()
	Invalidate()
	RefreshedAt() time.Time
}

// Registry — живой реестр каталогов: ручное добавление, удаление и детализация
type Registry interface {
	Add(c models.Catalog)
	Remove(name string)
	Exists(name string) bool
	QueryCounts() map[string]int64
	Schema(catalog, schema string) (models.Schema, error)
	Tables(catalog, schema string) ([]models.Table, error)
	Table(catalog, schema, table string) (models.Table, error)
}

// Stream — источник push-уведомлений для SSE
type Stream interface {
	Subscribe(buffer int) (<-chan models.QueryView, func())
}

type Server struct {
	queries  Queries
	catalogs Catalogs
	registry Registry
	stream   Stream
	cfg      config.APIConfig
	logger   *zap.Logger
}

func NewServer(cfg config.APIConfig, queries Queries, catalogs Catalogs, registry Registry, stream Stream, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		queries:  queries,
		catalogs: catalogs,
		registry: registry,
		stream:   stream,
		cfg:      cfg,
		logger:   logger,
	}
}

// Router собирает маршруты API
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(RequestLogger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		// поток без ограничителя: соединение долгоживущее
		r.Get("/stream", s.streamViews)

		r.Group(func(r chi.Router) {
			r.Use(RateLimiter(RateLimitConfig{RequestsPerSecond: s.cfg.RateLimit, Burst: s.cfg.RateBurst}))

			r.Route("/queries", func(r chi.Router) {
				r.Get("/", s.listQueries)
				r.Get("/ids", s.listQueryIDs)
				r.Get("/summary", s.summary)
				r.Get("/{queryId}", s.getQuery)
			})
			r.Route("/databases", func(r chi.Router) {
				r.Get("/", s.listCatalogs)
				r.Post("/", s.addCatalog)
				r.Get("/query-counts", s.queryCounts)
				r.Post("/refresh", s.refreshCatalogs)
				r.Post("/invalidate", s.invalidateCatalogs)
				r.Get("/{id}", s.getCatalog)
				r.Delete("/{id}", s.removeCatalog)
				r.Get("/{id}/schemas", s.getSchemas)
				r.Get("/{id}/schemas/{schema}", s.getSchema)
				r.Get("/{id}/schemas/{schema}/tables", s.getTables)
				r.Get("/{id}/schemas/{schema}/tables/{table}", s.getTable)
				r.Get("/{id}/collections", s.getCollections)
			})
		})
	})
	return r
}

// ListenAndServe обслуживает API до отмены ctx
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP API запущен", zap.String("addr", s.cfg.ListenAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("Останавливаем HTTP API")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"code":    status,
		"message": msg,
	})
}
