package correlator

import (
	"sort"
	"sync"

	"TrinoEventPump/internal/models"
)

// aggregate — события одного запроса в порядке поступления
type aggregate struct {
	mu     sync.Mutex
	events []models.Event
}

// Store хранит агрегаты запросов. Блокировка берётся только на один
// агрегат, запросы друг друга не ждут.
type Store struct {
	aggregates sync.Map // queryId -> *aggregate
}

func NewStore() *Store {
	return &Store{}
}

// Append добавляет событие; возвращает true, если агрегат создан этим вызовом.
func (s *Store) Append(ev models.Event) bool {
	v, loaded := s.aggregates.LoadOrStore(ev.QueryID, &aggregate{})
	agg := v.(*aggregate)

	agg.mu.Lock()
	agg.events = append(agg.events, ev)
	agg.mu.Unlock()
	return !loaded
}

// Events возвращает копию событий запроса в порядке поступления.
func (s *Store) Events(queryID string) ([]models.Event, bool) {
	v, ok := s.aggregates.Load(queryID)
	if !ok {
		return nil, false
	}
	agg := v.(*aggregate)

	agg.mu.Lock()
	out := make([]models.Event, len(agg.events))
	copy(out, agg.events)
	agg.mu.Unlock()
	return out, true
}

// IDs — отсортированный список известных queryId
func (s *Store) IDs() []string {
	var ids []string
	s.aggregates.Range(func(k, _ any) bool {
		ids = append(ids, k.(string))
		return true
	})
	sort.Strings(ids)
	return ids
}

func (s *Store) Len() int {
	n := 0
	s.aggregates.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
