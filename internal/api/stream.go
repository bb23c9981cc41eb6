package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const keepAlive = 15 * time.Second

// streamViews отдаёт обновлённые представления запросов как Server-Sent Events
func (s *Server) streamViews(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	views, cancel := s.stream.Subscribe(s.cfg.StreamBuffer)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case view, ok := <-views:
			if !ok {
				return
			}
			data, err := json.Marshal(view)
			if err != nil {
				s.logger.Warn("Не удалось сериализовать представление", zap.String("queryId", view.QueryID), zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: query\nid: %s\ndata: %s\n\n", view.QueryID, data)
			flusher.Flush()
		}
	}
}
