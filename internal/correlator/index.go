package correlator

import (
	"sort"
	"sync"

	"TrinoEventPump/internal/models"
)

// idSet — множество queryId под своей блокировкой
type idSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func (s *idSet) add(id string) {
	s.mu.Lock()
	s.ids[id] = struct{}{}
	s.mu.Unlock()
}

func (s *idSet) list() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out
}

func (s *idSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// Index связывает каталоги, схемы и таблицы из основных полей событий
// с запросами, которые к ним обращались.
// Ключи: "catalog", "catalog.schema", "catalog.schema.table".
type Index struct {
	catalogs sync.Map
	schemas  sync.Map
	tables   sync.Map
}

func NewIndex() *Index {
	return &Index{}
}

func (x *Index) add(ev models.Event) {
	if ev.Catalog == "" {
		return
	}
	put(&x.catalogs, ev.Catalog, ev.QueryID)
	if ev.Schema == "" {
		return
	}
	schemaKey := ev.Catalog + "." + ev.Schema
	put(&x.schemas, schemaKey, ev.QueryID)
	if ev.TableName == "" {
		return
	}
	put(&x.tables, schemaKey+"."+ev.TableName, ev.QueryID)
}

func put(m *sync.Map, key, queryID string) {
	v, _ := m.LoadOrStore(key, &idSet{ids: make(map[string]struct{})})
	v.(*idSet).add(queryID)
}

func keys(m *sync.Map) []string {
	var out []string
	m.Range(func(k, _ any) bool {
		out = append(out, k.(string))
		return true
	})
	sort.Strings(out)
	return out
}

func lookup(m *sync.Map, key string) []string {
	v, ok := m.Load(key)
	if !ok {
		return nil
	}
	return v.(*idSet).list()
}

func (x *Index) Catalogs() []string { return keys(&x.catalogs) }
func (x *Index) Schemas() []string  { return keys(&x.schemas) }
func (x *Index) Tables() []string   { return keys(&x.tables) }

func (x *Index) QueriesByCatalog(catalog string) []string { return lookup(&x.catalogs, catalog) }
func (x *Index) QueriesBySchema(key string) []string      { return lookup(&x.schemas, key) }
func (x *Index) QueriesByTable(key string) []string       { return lookup(&x.tables, key) }

// catalogCounts — число разных запросов на каталог
func (x *Index) catalogCounts() map[string]int {
	out := make(map[string]int)
	x.catalogs.Range(func(k, v any) bool {
		out[k.(string)] = v.(*idSet).len()
		return true
	})
	return out
}
