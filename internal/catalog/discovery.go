package catalog

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"TrinoEventPump/internal/models"
)

// Discovery извлекает ссылки на каталоги из событий и применяет их к реестру.
type Discovery struct {
	registry *Registry
	logger   *zap.Logger
}

func NewDiscovery(registry *Registry, logger *zap.Logger) *Discovery {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discovery{registry: registry, logger: logger}
}

// extractor — один независимый источник ссылок внутри события
type extractor struct {
	name    string
	extract func(ev models.Event) ([]Reference, error)
}

var extractors = []extractor{
	{name: SourcePrimary, extract: fromPrimary},
	{name: SourceMetadata, extract: fromMetadata},
	{name: SourceInputs, extract: fromInputs},
	{name: SourcePlan, extract: fromPlanText},
}

// RecordReferences собирает ссылки из всех источников события и применяет их к реестру.
// Источник с неверной формой данных пропускается целиком, остальные применяются.
// Возвращает применённые ссылки.
func (d *Discovery) RecordReferences(ev models.Event) []Reference {
	var refs []Reference
	for _, ex := range extractors {
		got, err := ex.extract(ev)
		if err != nil {
			d.logger.Warn("Источник ссылок пропущен",
				zap.String("queryId", ev.QueryID), zap.String("source", ex.name), zap.Error(err))
			continue
		}
		refs = append(refs, got...)
	}
	if len(refs) == 0 {
		return nil
	}
	d.registry.Record(refs, ev.Timestamp)
	d.logger.Debug("Ссылки на каталоги применены", zap.String("queryId", ev.QueryID), zap.Int("count", len(refs)))
	return refs
}

// fromPrimary — основные поля catalog/schema/tableName события
func fromPrimary(ev models.Event) ([]Reference, error) {
	if ev.Catalog == "" {
		return nil, nil
	}
	return []Reference{{
		Catalog: ev.Catalog,
		Schema:  ev.Schema,
		Table:   ev.TableName,
		Source:  SourcePrimary,
	}}, nil
}

// fromMetadata — вложенный список metadata["inputs"]
func fromMetadata(ev models.Event) ([]Reference, error) {
	raw, ok := ev.Metadata["inputs"]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("metadata.inputs: expected list, got %T", raw)
	}
	var refs []Reference
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("metadata.inputs[%d]: expected object, got %T", i, item)
		}
		cols, err := parseColumns(m["columns"])
		if err != nil {
			return nil, fmt.Errorf("metadata.inputs[%d]: %w", i, err)
		}
		name := stringValue(m, "catalogName", "connectorName")
		if name == "" {
			continue
		}
		refs = append(refs, Reference{
			Catalog: name,
			Schema:  stringValue(m, "schema"),
			Table:   stringValue(m, "table"),
			Columns: cols,
			Source:  SourceMetadata,
		})
	}
	return refs, nil
}

// fromInputs — структурированный ioMetadata.inputs исходного сообщения
func fromInputs(ev models.Event) ([]Reference, error) {
	var refs []Reference
	for i, in := range ev.Inputs {
		cols, err := parseColumns(in.Columns)
		if err != nil {
			return nil, fmt.Errorf("inputs[%d]: %w", i, err)
		}
		name := in.CatalogName
		if name == "" {
			name = in.ConnectorName
		}
		if name == "" {
			continue
		}
		refs = append(refs, Reference{
			Catalog: name,
			Schema:  in.Schema,
			Table:   in.Table,
			Columns: cols,
			Source:  SourceInputs,
		})
	}
	return refs, nil
}

var planMarkers = []string{"FROM ", "JOIN ", "TABLE: "}

// fromPlanText — поиск catalog:schema.table после маркеров в текстовом плане
func fromPlanText(ev models.Event) ([]Reference, error) {
	if ev.Plan == "" {
		return nil, nil
	}
	var refs []Reference
	for _, line := range strings.Split(ev.Plan, "\n") {
		if len(line) < 5 {
			continue
		}
		for _, marker := range planMarkers {
			idx := strings.Index(line, marker)
			if idx < 0 {
				continue
			}
			ident := leadingIdentifier(line[idx+len(marker):])
			parts := strings.FieldsFunc(ident, func(r rune) bool { return r == ':' || r == '.' })
			if len(parts) < 2 {
				continue
			}
			ref := Reference{Catalog: parts[0], Schema: parts[1], Source: SourcePlan}
			if len(parts) > 2 {
				ref.Table = parts[2]
			}
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// leadingIdentifier отрезает хвост строки после имени: пробелы, запятые, скобки
func leadingIdentifier(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " \t,;()[]"); i >= 0 {
		s = s[:i]
	}
	return s
}

// parseColumns понимает обе формы: [{name|column, type}] и {name: type}.
func parseColumns(v any) ([]models.Column, error) {
	switch cols := v.(type) {
	case nil:
		return nil, nil
	case []models.Column:
		return cols, nil
	case []any:
		out := make([]models.Column, 0, len(cols))
		for i, item := range cols {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("columns[%d]: expected object, got %T", i, item)
			}
			name := anyString(m["name"])
			if name == "" {
				name = anyString(m["column"])
			}
			if name == "" {
				continue
			}
			out = append(out, models.Column{Name: name, Type: anyString(m["type"])})
		}
		return out, nil
	case map[string]any:
		names := make([]string, 0, len(cols))
		for k := range cols {
			names = append(names, k)
		}
		sort.Strings(names)
		out := make([]models.Column, 0, len(names))
		for _, name := range names {
			out = append(out, models.Column{Name: name, Type: anyString(cols[name])})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("columns: unexpected type %T", v)
	}
}

// stringValue возвращает первое строковое значение по списку ключей
func stringValue(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func anyString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}
