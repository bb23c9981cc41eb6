package catalog

import (
	"time"

	"go.uber.org/zap"

	"TrinoEventPump/internal/models"
)

// usage — счётчики сущности каталога. Изменяется только под мьютексом каталога.
type usage struct {
	firstSeen    time.Time
	lastSeen     time.Time
	totalQueries int64
}

func newUsage(at time.Time) usage {
	return usage{firstSeen: at, lastSeen: at}
}

// touch отмечает одно обращение: lastSeen только растёт, firstSeen только убывает.
func (u *usage) touch(at time.Time) {
	if at.Before(u.firstSeen) {
		u.firstSeen = at
	}
	if at.After(u.lastSeen) {
		u.lastSeen = at
	}
	u.totalQueries++
}

// visit — множество сущностей, уже учтённых в текущем событии.
// Одно событие увеличивает счётчик каждой сущности не более одного раза.
type visit map[string]struct{}

func (v visit) touch(key string, u *usage, at time.Time) {
	if _, ok := v[key]; ok {
		return
	}
	v[key] = struct{}{}
	u.touch(at)
}

// hierarchy — дочернее дерево каталога. Реализации: *relationalTree и *documentTree.
type hierarchy interface {
	apply(ref Reference, at time.Time, seen visit, lg *zap.Logger)
	snapshot() models.Namespaces
}

// --- реляционная иерархия: схема -> таблица -> столбец ---

type relationalTree struct {
	schemas []*schemaEntry
	byName  map[string]*schemaEntry
}

type schemaEntry struct {
	name string
	usage
	tables []*tableEntry
	byName map[string]*tableEntry
}

type tableEntry struct {
	name string
	usage
	columns columnSet
}

func newRelationalTree() *relationalTree {
	return &relationalTree{byName: make(map[string]*schemaEntry)}
}

func (t *relationalTree) apply(ref Reference, at time.Time, seen visit, lg *zap.Logger) {
	if ref.Schema == "" {
		return
	}
	// public всегда сохраняем, остальные служебные схемы пропускаем целиком
	if ref.Schema != "public" && isSystemSchema(ref.Schema) {
		lg.Debug("Пропущена служебная схема", zap.String("schema", ref.Schema))
		return
	}
	s, ok := t.byName[ref.Schema]
	if !ok {
		s = &schemaEntry{name: ref.Schema, usage: newUsage(at), byName: make(map[string]*tableEntry)}
		t.byName[ref.Schema] = s
		t.schemas = append(t.schemas, s)
		lg.Info("Создана схема", zap.String("schema", ref.Schema))
	}
	seen.touch("s\x00"+ref.Schema, &s.usage, at)

	if ref.Table == "" {
		return
	}
	if isSystemTable(ref.Table) {
		lg.Debug("Пропущена служебная таблица", zap.String("table", ref.Table))
		return
	}
	tb, ok := s.byName[ref.Table]
	if !ok {
		tb = &tableEntry{name: ref.Table, usage: newUsage(at)}
		s.byName[ref.Table] = tb
		s.tables = append(s.tables, tb)
		lg.Info("Создана таблица", zap.String("schema", ref.Schema), zap.String("table", ref.Table))
	}
	seen.touch("t\x00"+ref.Schema+"\x00"+ref.Table, &tb.usage, at)
	tb.columns.merge(ref.Columns)
}

func (t *relationalTree) snapshot() models.Namespaces {
	out := make([]models.Schema, 0, len(t.schemas))
	for _, s := range t.schemas {
		out = append(out, s.snapshot())
	}
	return models.RelationalNamespaces{Schemas: out}
}

func (s *schemaEntry) snapshot() models.Schema {
	tables := make([]models.Table, 0, len(s.tables))
	for _, tb := range s.tables {
		tables = append(tables, tb.snapshot())
	}
	return models.Schema{
		Name:         s.name,
		FirstSeen:    s.firstSeen,
		LastSeen:     s.lastSeen,
		TotalQueries: s.totalQueries,
		Tables:       tables,
	}
}

func (tb *tableEntry) snapshot() models.Table {
	return models.Table{
		Name:         tb.name,
		FirstSeen:    tb.firstSeen,
		LastSeen:     tb.lastSeen,
		TotalQueries: tb.totalQueries,
		Columns:      tb.columns.list(),
	}
}

// --- документная иерархия: коллекция -> поле ---

type documentTree struct {
	collections []*collectionEntry
	byName      map[string]*collectionEntry
}

type collectionEntry struct {
	name string
	usage
	fields columnSet
}

func newDocumentTree() *documentTree {
	return &documentTree{byName: make(map[string]*collectionEntry)}
}

// apply для документного каталога: коллекция = таблица, иначе схема
// (если это не системная база Mongo). Схемы не создаются никогда.
func (t *documentTree) apply(ref Reference, at time.Time, seen visit, lg *zap.Logger) {
	name := ref.Table
	if name == "" && ref.Schema != "" && !isMongoSystemDatabase(ref.Schema) {
		name = ref.Schema
	}
	lg.Debug("Разрешение коллекции",
		zap.String("schema", ref.Schema), zap.String("table", ref.Table), zap.String("collection", name))
	if name == "" {
		return
	}
	c, ok := t.byName[name]
	if !ok {
		c = &collectionEntry{name: name, usage: newUsage(at)}
		t.byName[name] = c
		t.collections = append(t.collections, c)
		lg.Info("Создана коллекция", zap.String("collection", name))
	}
	seen.touch("c\x00"+name, &c.usage, at)
	c.fields.merge(ref.Columns)
}

func (t *documentTree) snapshot() models.Namespaces {
	out := make([]models.Collection, 0, len(t.collections))
	for _, c := range t.collections {
		cols := c.fields.list()
		fields := make([]models.Field, 0, len(cols))
		for _, col := range cols {
			fields = append(fields, models.Field{Name: col.Name, Type: col.Type, Nested: isNestedType(col.Type)})
		}
		out = append(out, models.Collection{
			Name:         c.name,
			FirstSeen:    c.firstSeen,
			LastSeen:     c.lastSeen,
			TotalQueries: c.totalQueries,
			Fields:       fields,
		})
	}
	return models.DocumentNamespaces{Collections: out}
}

// columnSet — упорядоченный набор столбцов; при совпадении имени побеждает первый тип.
type columnSet struct {
	order []models.Column
	names map[string]struct{}
}

func (cs *columnSet) merge(cols []models.Column) {
	for _, c := range cols {
		if c.Name == "" {
			continue
		}
		if cs.names == nil {
			cs.names = make(map[string]struct{})
		}
		if _, ok := cs.names[c.Name]; ok {
			continue
		}
		cs.names[c.Name] = struct{}{}
		cs.order = append(cs.order, c)
	}
}

func (cs *columnSet) list() []models.Column {
	return append([]models.Column{}, cs.order...)
}
