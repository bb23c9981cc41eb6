package correlator

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"TrinoEventPump/internal/catalog"
	"TrinoEventPump/internal/models"
	"TrinoEventPump/internal/plantree"
)

// Recorder извлекает ссылки на каталоги из события и применяет их к реестру.
type Recorder interface {
	RecordReferences(ev models.Event) []catalog.Reference
}

// Publisher получает обновлённое представление после каждого события.
// Реализация не должна блокироваться.
type Publisher interface {
	Publish(view models.QueryView)
}

// Archiver — необязательный архив событий (ClickHouse).
type Archiver interface {
	Archive(ev models.Event, refs []catalog.Reference)
}

type Correlator struct {
	store     *Store
	index     *Index
	recorder  Recorder
	publisher Publisher
	archiver  Archiver
	logger    *zap.Logger
}

type Option func(*Correlator)

func WithPublisher(p Publisher) Option {
	return func(c *Correlator) { c.publisher = p }
}

func WithArchiver(a Archiver) Option {
	return func(c *Correlator) { c.archiver = a }
}

func New(recorder Recorder, logger *zap.Logger, opts ...Option) *Correlator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Correlator{
		store:    NewStore(),
		index:    NewIndex(),
		recorder: recorder,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ingest принимает событие. События без queryId отбрасываются с предупреждением.
func (c *Correlator) Ingest(ev models.Event) {
	if strings.TrimSpace(ev.QueryID) == "" {
		c.logger.Warn("Событие без queryId отброшено",
			zap.String("eventType", ev.EventType),
			zap.Time("timestamp", ev.Timestamp))
		return
	}

	if c.store.Append(ev) {
		c.logger.Debug("Новый запрос", zap.String("queryId", ev.QueryID))
	}
	c.index.add(ev)

	var refs []catalog.Reference
	if c.recorder != nil {
		refs = c.recorder.RecordReferences(ev)
	}
	if c.archiver != nil {
		c.archiver.Archive(ev, refs)
	}
	if c.publisher != nil {
		if view, ok := c.View(ev.QueryID); ok {
			c.publisher.Publish(view)
		}
	}

	c.logger.Debug("Событие обработано",
		zap.String("queryId", ev.QueryID),
		zap.String("eventType", ev.EventType),
		zap.Int("references", len(refs)))
}

// View строит представление запроса по текущим событиям.
func (c *Correlator) View(queryID string) (models.QueryView, bool) {
	events, ok := c.store.Events(queryID)
	if !ok {
		return models.QueryView{}, false
	}
	return DeriveView(queryID, events, c.logger), true
}

// QueryIDs — все известные queryId по возрастанию
func (c *Correlator) QueryIDs() []string {
	return c.store.IDs()
}

// Views — представления всех запросов в порядке QueryIDs
func (c *Correlator) Views() []models.QueryView {
	return c.views(c.store.IDs())
}

func (c *Correlator) views(ids []string) []models.QueryView {
	out := make([]models.QueryView, 0, len(ids))
	for _, id := range ids {
		if v, ok := c.View(id); ok {
			out = append(out, v)
		}
	}
	return out
}

func (c *Correlator) QueriesByCatalog(name string) []models.QueryView {
	return c.views(c.index.QueriesByCatalog(name))
}

func (c *Correlator) QueriesBySchema(key string) []models.QueryView {
	return c.views(c.index.QueriesBySchema(key))
}

func (c *Correlator) QueriesByTable(key string) []models.QueryView {
	return c.views(c.index.QueriesByTable(key))
}

func (c *Correlator) Summary() models.Summary {
	return models.Summary{
		Catalogs:           len(c.index.Catalogs()),
		Schemas:            len(c.index.Schemas()),
		Tables:             len(c.index.Tables()),
		TotalQueries:       c.store.Len(),
		CatalogQueryCounts: c.index.catalogCounts(),
	}
}

// DeriveView — чистая функция над событиями одного запроса.
// events не изменяются; порядок: время события, при равенстве — порядок поступления.
func DeriveView(queryID string, events []models.Event, lg *zap.Logger) models.QueryView {
	sorted := make([]models.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	view := models.QueryView{QueryID: queryID, Events: sorted}
	if len(sorted) == 0 {
		return view
	}

	first, last := sorted[0], sorted[len(sorted)-1]
	view.StartTime = first.Timestamp
	view.EndTime = last.Timestamp
	view.TotalExecutionTime = last.ExecutionTime
	view.ErrorMessage = last.ErrorMessage

	// текст, пользователь и состояние — последние непустые
	for i := len(sorted) - 1; i >= 0; i-- {
		ev := sorted[i]
		if view.Query == "" {
			view.Query = ev.Query
		}
		if view.User == "" {
			view.User = ev.User
		}
		if view.State == "" {
			view.State = ev.State
		}
	}

	view.Root = plantree.Select(sorted, lg)
	return view
}
