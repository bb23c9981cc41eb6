package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"TrinoEventPump/internal/models"
)

// listQueries: все запросы или отбор по ?catalog=, ?schema=cat.schema, ?table=cat.schema.table
func (s *Server) listQueries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var views []models.QueryView
	switch {
	case q.Get("table") != "":
		views = s.queries.QueriesByTable(q.Get("table"))
	case q.Get("schema") != "":
		views = s.queries.QueriesBySchema(q.Get("schema"))
	case q.Get("catalog") != "":
		views = s.queries.QueriesByCatalog(q.Get("catalog"))
	default:
		views = s.queries.Views()
	}
	if views == nil {
		views = []models.QueryView{}
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) listQueryIDs(w http.ResponseWriter, _ *http.Request) {
	ids := s.queries.QueryIDs()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) getQuery(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "queryId")
	view, ok := s.queries.View(id)
	if !ok {
		writeError(w, http.StatusNotFound, "query not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) summary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.queries.Summary())
}
