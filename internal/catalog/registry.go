package catalog

import (
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"TrinoEventPump/internal/models"
)

var ErrNotFound = errors.New("not found")

// Источники ссылок на каталог внутри события
const (
	SourcePrimary  = "primary"
	SourceMetadata = "metadata"
	SourceInputs   = "inputs"
	SourcePlan     = "plan"
)

// Reference — ссылка на каталог/схему/таблицу, извлечённая из события
type Reference struct {
	Catalog string
	Schema  string
	Table   string
	Columns []models.Column
	Source  string
}

// Registry — реестр обнаруженных каталогов в памяти процесса.
// Каждый каталог изменяется в собственной критической секции; общей блокировки нет.
type Registry struct {
	catalogs sync.Map // name -> *catalogEntry
	logger   *zap.Logger
}

type catalogEntry struct {
	mu   sync.Mutex
	name string
	kind models.CatalogKind
	typ  string
	usage
	tree hierarchy
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{logger: logger}
}

func newEntry(name string, at time.Time) *catalogEntry {
	kind, typ := Classify(name)
	e := &catalogEntry{name: name, kind: kind, typ: typ, usage: newUsage(at)}
	if kind == models.KindDocument {
		e.tree = newDocumentTree()
	} else {
		e.tree = newRelationalTree()
	}
	return e
}

// entry возвращает каталог по имени, создавая его при первом упоминании.
// Вид каталога определяется только здесь и больше не меняется.
func (r *Registry) entry(name string, at time.Time) *catalogEntry {
	if v, ok := r.catalogs.Load(name); ok {
		return v.(*catalogEntry)
	}
	v, loaded := r.catalogs.LoadOrStore(name, newEntry(name, at))
	e := v.(*catalogEntry)
	if !loaded {
		r.logger.Info("Обнаружен новый каталог",
			zap.String("catalog", name), zap.String("kind", string(e.kind)), zap.String("type", e.typ))
	}
	return e
}

// Record применяет ссылки одного события. Счётчики каталога и вложенных сущностей
// увеличиваются не более одного раза на событие, сколько бы источников их ни называли.
func (r *Registry) Record(refs []Reference, at time.Time) {
	var order []string
	grouped := make(map[string][]Reference)
	for _, ref := range refs {
		if ref.Catalog == "" {
			continue
		}
		if _, ok := grouped[ref.Catalog]; !ok {
			order = append(order, ref.Catalog)
		}
		grouped[ref.Catalog] = append(grouped[ref.Catalog], ref)
	}

	for _, name := range order {
		e := r.entry(name, at)
		lg := r.logger.With(zap.String("catalog", name))
		e.mu.Lock()
		e.touch(at)
		seen := make(visit)
		for _, ref := range grouped[name] {
			e.tree.apply(ref, at, seen, lg)
		}
		e.mu.Unlock()
	}
}

func (e *catalogEntry) snapshot() models.Catalog {
	e.mu.Lock()
	defer e.mu.Unlock()
	return models.Catalog{
		ID:           e.name,
		Name:         e.name,
		Kind:         e.kind,
		Type:         e.typ,
		Status:       models.StatusActive,
		FirstSeen:    e.firstSeen,
		LastSeen:     e.lastSeen,
		TotalQueries: e.totalQueries,
		Namespaces:   e.tree.snapshot(),
	}
}

// Catalogs возвращает снимок всех каталогов, упорядоченный по имени.
func (r *Registry) Catalogs() []models.Catalog {
	var entries []*catalogEntry
	r.catalogs.Range(func(_, v any) bool {
		entries = append(entries, v.(*catalogEntry))
		return true
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	out := make([]models.Catalog, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.snapshot())
	}
	return out
}

func (r *Registry) Catalog(name string) (models.Catalog, error) {
	v, ok := r.catalogs.Load(name)
	if !ok {
		return models.Catalog{}, ErrNotFound
	}
	return v.(*catalogEntry).snapshot(), nil
}

// Schemas — схемы каталога; у документного каталога список всегда пуст.
func (r *Registry) Schemas(catalog string) ([]models.Schema, error) {
	c, err := r.Catalog(catalog)
	if err != nil {
		return nil, err
	}
	return c.Schemas(), nil
}

func (r *Registry) Schema(catalog, schema string) (models.Schema, error) {
	schemas, err := r.Schemas(catalog)
	if err != nil {
		return models.Schema{}, err
	}
	for _, s := range schemas {
		if s.Name == schema {
			return s, nil
		}
	}
	return models.Schema{}, ErrNotFound
}

func (r *Registry) Tables(catalog, schema string) ([]models.Table, error) {
	s, err := r.Schema(catalog, schema)
	if err != nil {
		return nil, err
	}
	return s.Tables, nil
}

func (r *Registry) Table(catalog, schema, table string) (models.Table, error) {
	tables, err := r.Tables(catalog, schema)
	if err != nil {
		return models.Table{}, err
	}
	for _, t := range tables {
		if t.Name == table {
			return t, nil
		}
	}
	return models.Table{}, ErrNotFound
}

func (r *Registry) Collections(catalog string) ([]models.Collection, error) {
	c, err := r.Catalog(catalog)
	if err != nil {
		return nil, err
	}
	return c.Collections(), nil
}

// QueryCounts — число запросов по каждому каталогу
func (r *Registry) QueryCounts() map[string]int64 {
	counts := make(map[string]int64)
	r.catalogs.Range(func(k, v any) bool {
		e := v.(*catalogEntry)
		e.mu.Lock()
		counts[k.(string)] = e.totalQueries
		e.mu.Unlock()
		return true
	})
	return counts
}

// Add импортирует готовый каталог (например, заранее известный), заменяя существующий.
// Вид каталога согласуется с переданной иерархией.
func (r *Registry) Add(c models.Catalog) {
	if c.ID == "" {
		return
	}
	kind, typ := Classify(c.ID)
	if c.Kind != "" {
		kind = c.Kind
	}
	if c.Type != "" {
		typ = c.Type
	}
	var tree hierarchy
	switch ns := c.Namespaces.(type) {
	case models.DocumentNamespaces:
		kind = models.KindDocument
		tree = documentFromModel(ns)
	case models.RelationalNamespaces:
		if kind == models.KindDocument {
			kind = models.KindUnknown
		}
		tree = relationalFromModel(ns)
	default:
		if kind == models.KindDocument {
			tree = newDocumentTree()
		} else {
			tree = newRelationalTree()
		}
	}
	r.catalogs.Store(c.ID, &catalogEntry{
		name:  c.ID,
		kind:  kind,
		typ:   typ,
		usage: usage{firstSeen: c.FirstSeen, lastSeen: c.LastSeen, totalQueries: c.TotalQueries},
		tree:  tree,
	})
	r.logger.Info("Добавлен каталог", zap.String("catalog", c.ID))
}

func (r *Registry) Remove(name string) {
	r.catalogs.Delete(name)
	r.logger.Info("Удалён каталог", zap.String("catalog", name))
}

func (r *Registry) Exists(name string) bool {
	_, ok := r.catalogs.Load(name)
	return ok
}

func (r *Registry) Len() int {
	n := 0
	r.catalogs.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func relationalFromModel(ns models.RelationalNamespaces) *relationalTree {
	t := newRelationalTree()
	for _, s := range ns.Schemas {
		se := &schemaEntry{
			name:   s.Name,
			usage:  usage{firstSeen: s.FirstSeen, lastSeen: s.LastSeen, totalQueries: s.TotalQueries},
			byName: make(map[string]*tableEntry),
		}
		for _, tb := range s.Tables {
			te := &tableEntry{
				name:  tb.Name,
				usage: usage{firstSeen: tb.FirstSeen, lastSeen: tb.LastSeen, totalQueries: tb.TotalQueries},
			}
			te.columns.merge(tb.Columns)
			se.byName[tb.Name] = te
			se.tables = append(se.tables, te)
		}
		t.byName[s.Name] = se
		t.schemas = append(t.schemas, se)
	}
	return t
}

func documentFromModel(ns models.DocumentNamespaces) *documentTree {
	t := newDocumentTree()
	for _, c := range ns.Collections {
		ce := &collectionEntry{
			name:  c.Name,
			usage: usage{firstSeen: c.FirstSeen, lastSeen: c.LastSeen, totalQueries: c.TotalQueries},
		}
		cols := make([]models.Column, 0, len(c.Fields))
		for _, f := range c.Fields {
			cols = append(cols, models.Column{Name: f.Name, Type: f.Type})
		}
		ce.fields.merge(cols)
		t.byName[c.Name] = ce
		t.collections = append(t.collections, ce)
	}
	return t
}
