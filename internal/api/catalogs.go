package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"TrinoEventPump/internal/catalog"
	"TrinoEventPump/internal/models"
)

func (s *Server) listCatalogs(w http.ResponseWriter, _ *http.Request) {
	all := s.catalogs.All()
	if all == nil {
		all = []models.Catalog{}
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) catalogOr404(w http.ResponseWriter, r *http.Request) (models.Catalog, bool) {
	id := chi.URLParam(r, "id")
	c, ok := s.catalogs.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "database not found: "+id)
	}
	return c, ok
}

func (s *Server) getCatalog(w http.ResponseWriter, r *http.Request) {
	if c, ok := s.catalogOr404(w, r); ok {
		writeJSON(w, http.StatusOK, c)
	}
}

func (s *Server) getSchemas(w http.ResponseWriter, r *http.Request) {
	c, ok := s.catalogOr404(w, r)
	if !ok {
		return
	}
	schemas := c.Schemas()
	if schemas == nil {
		schemas = []models.Schema{}
	}
	writeJSON(w, http.StatusOK, schemas)
}

func (s *Server) getCollections(w http.ResponseWriter, r *http.Request) {
	c, ok := s.catalogOr404(w, r)
	if !ok {
		return
	}
	collections := c.Collections()
	if collections == nil {
		collections = []models.Collection{}
	}
	writeJSON(w, http.StatusOK, collections)
}

type refreshResponse struct {
	Status      string    `json:"status"`
	Databases   int       `json:"databases"`
	RefreshedAt time.Time `json:"refreshedAt"`
}

func (s *Server) refreshCatalogs(w http.ResponseWriter, _ *http.Request) {
	s.catalogs.Refresh()
	writeJSON(w, http.StatusOK, refreshResponse{
		Status:      "refreshed",
		Databases:   len(s.catalogs.All()),
		RefreshedAt: s.catalogs.RefreshedAt(),
	})
}

func (s *Server) invalidateCatalogs(w http.ResponseWriter, _ *http.Request) {
	s.catalogs.Invalidate()
	writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// addCatalogRequest — каталог, заданный вручную; пустые kind и type выводятся из имени
type addCatalogRequest struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	Type string `json:"type"`
}

// addCatalog регистрирует каталог до того, как его упомянут события.
// Существующий каталог заменяется вместе со статистикой.
func (s *Server) addCatalog(w http.ResponseWriter, r *http.Request) {
	var req addCatalogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id must not be empty")
		return
	}
	kind := models.CatalogKind(strings.ToUpper(req.Kind))
	switch kind {
	case "", models.KindRelational, models.KindDocument, models.KindUnknown:
	default:
		writeError(w, http.StatusBadRequest, "unknown kind: "+req.Kind)
		return
	}

	status := http.StatusCreated
	if s.registry.Exists(req.ID) {
		status = http.StatusOK
	}
	now := time.Now().UTC()
	s.registry.Add(models.Catalog{ID: req.ID, Kind: kind, Type: req.Type, FirstSeen: now, LastSeen: now})
	s.catalogs.Invalidate()
	s.logger.Info("Каталог добавлен через API", zap.String("catalog", req.ID))

	c, ok := s.catalogs.Get(req.ID)
	if !ok {
		writeError(w, http.StatusInternalServerError, "database not visible after add: "+req.ID)
		return
	}
	writeJSON(w, status, c)
}

// removeCatalog удаляет каталог из реестра и сразу сбрасывает проекцию
func (s *Server) removeCatalog(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.registry.Exists(id) {
		writeError(w, http.StatusNotFound, "database not found: "+id)
		return
	}
	s.registry.Remove(id)
	s.catalogs.Invalidate()
	s.logger.Info("Каталог удалён через API", zap.String("catalog", id))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) queryCounts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.QueryCounts())
}

// registryError: ErrNotFound -> 404, остальное -> 500
func (s *Server) registryError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, what+" not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) getSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := s.registry.Schema(chi.URLParam(r, "id"), chi.URLParam(r, "schema"))
	if err != nil {
		s.registryError(w, err, "schema")
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

func (s *Server) getTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.registry.Tables(chi.URLParam(r, "id"), chi.URLParam(r, "schema"))
	if err != nil {
		s.registryError(w, err, "schema")
		return
	}
	if tables == nil {
		tables = []models.Table{}
	}
	writeJSON(w, http.StatusOK, tables)
}

func (s *Server) getTable(w http.ResponseWriter, r *http.Request) {
	table, err := s.registry.Table(chi.URLParam(r, "id"), chi.URLParam(r, "schema"), chi.URLParam(r, "table"))
	if err != nil {
		s.registryError(w, err, "table")
		return
	}
	writeJSON(w, http.StatusOK, table)
}
