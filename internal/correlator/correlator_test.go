package correlator

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrinoEventPump/internal/catalog"
	"TrinoEventPump/internal/models"
	"TrinoEventPump/internal/notify"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func int64p(v int64) *int64 { return &v }

func newCorrelator(opts ...Option) (*Correlator, *catalog.Registry) {
	reg := catalog.NewRegistry(nil)
	return New(catalog.NewDiscovery(reg, nil), nil, opts...), reg
}

type archiveSpy struct {
	mu   sync.Mutex
	refs map[string]int
}

func (a *archiveSpy) Archive(ev models.Event, refs []catalog.Reference) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.refs == nil {
		a.refs = make(map[string]int)
	}
	a.refs[ev.QueryID] += len(refs)
}

func TestCorrelator_EndToEndTableScan(t *testing.T) {
	c, _ := newCorrelator()
	c.Ingest(models.Event{
		QueryID:   "q1",
		Timestamp: t0,
		JSONPlan:  `{"0":{"id":"0","name":"TableScan","descriptor":{"table":"postgres:public.customers"},"children":[]}}`,
	})

	view, ok := c.View("q1")
	require.True(t, ok)
	require.NotNil(t, view.Root)
	assert.Equal(t, "TableScan", view.Root.OperatorType)
	assert.Equal(t, "postgres:public.customers", view.Root.Metadata["table"])
	assert.Equal(t, "q1", view.Root.QueryID)
}

func TestCorrelator_CatalogClassificationScenario(t *testing.T) {
	c, reg := newCorrelator()
	c.Ingest(models.Event{
		QueryID:   "q2",
		Timestamp: t0,
		Inputs: []models.InputMetadata{
			{CatalogName: "postgres_main", Schema: "public", Table: "orders"},
		},
	})

	cat, err := reg.Catalog("postgres_main")
	require.NoError(t, err)
	assert.Equal(t, models.KindRelational, cat.Kind)
	assert.Equal(t, "postgresql", cat.Type)
	assert.Equal(t, int64(1), cat.TotalQueries)

	schema, err := reg.Schema("postgres_main", "public")
	require.NoError(t, err)
	assert.Equal(t, int64(1), schema.TotalQueries)

	table, err := reg.Table("postgres_main", "public", "orders")
	require.NoError(t, err)
	assert.Equal(t, int64(1), table.TotalQueries)
}

func TestCorrelator_MissingQueryIDDropped(t *testing.T) {
	spy := &archiveSpy{}
	c, reg := newCorrelator(WithArchiver(spy))
	c.Ingest(models.Event{Timestamp: t0, Catalog: "mysql"})
	c.Ingest(models.Event{QueryID: "   ", Timestamp: t0, Catalog: "mysql"})

	assert.Empty(t, c.QueryIDs())
	assert.Equal(t, 0, reg.Len())
	assert.Empty(t, spy.refs)
}

func TestCorrelator_UnknownQuery(t *testing.T) {
	c, _ := newCorrelator()
	_, ok := c.View("missing")
	assert.False(t, ok)
	assert.Empty(t, c.Views())
}

func TestCorrelator_ViewOrderingAndLatestFields(t *testing.T) {
	c, _ := newCorrelator()
	c.Ingest(models.Event{QueryID: "q3", EventType: "COMPLETED", Timestamp: t0.Add(2 * time.Second), State: "FINISHED", ExecutionTime: int64p(2000)})
	c.Ingest(models.Event{QueryID: "q3", EventType: "CREATED", Timestamp: t0, State: "QUEUED", Query: "select 1", User: "alice", ErrorMessage: "old"})
	c.Ingest(models.Event{QueryID: "q3", EventType: "RUNNING", Timestamp: t0.Add(time.Second), State: "RUNNING"})

	view, ok := c.View("q3")
	require.True(t, ok)
	require.Len(t, view.Events, 3)
	assert.Equal(t, []string{"CREATED", "RUNNING", "COMPLETED"},
		[]string{view.Events[0].EventType, view.Events[1].EventType, view.Events[2].EventType})
	assert.Equal(t, t0, view.StartTime)
	assert.Equal(t, t0.Add(2*time.Second), view.EndTime)
	assert.Equal(t, "FINISHED", view.State)
	assert.Equal(t, "select 1", view.Query)
	assert.Equal(t, "alice", view.User)
	assert.Equal(t, int64(2000), *view.TotalExecutionTime)
	assert.Empty(t, view.ErrorMessage)
}

func TestCorrelator_TiesKeepArrivalOrder(t *testing.T) {
	c, _ := newCorrelator()
	for i := 0; i < 5; i++ {
		c.Ingest(models.Event{QueryID: "q4", EventType: fmt.Sprintf("E%d", i), Timestamp: t0})
	}
	view, _ := c.View("q4")
	for i, ev := range view.Events {
		assert.Equal(t, fmt.Sprintf("E%d", i), ev.EventType)
	}
}

func TestCorrelator_Deterministic(t *testing.T) {
	c, _ := newCorrelator()
	c.Ingest(models.Event{
		QueryID: "q5", EventType: "RUNNING", Timestamp: t0,
		OperatorStats: map[string]any{"children": []any{
			map[string]any{"operatorType": "Exchange", "children": []any{map[string]any{"operatorType": "TableScan"}}},
		}},
	})
	c.Ingest(models.Event{
		QueryID: "q5", EventType: "COMPLETED", Timestamp: t0.Add(time.Second),
		JSONPlan: `{"2":{"id":"x","name":"Values"},"1":{"id":"y","name":"Output","estimates":[{"cpuCost":"NaN"}]}}`,
	})
	c.Ingest(models.Event{QueryID: "q6", EventType: "RUNNING", Timestamp: t0,
		OperatorStats: map[string]any{"children": []any{map[string]any{"operatorType": "Limit"}}}})

	for _, id := range c.QueryIDs() {
		a, _ := c.View(id)
		b, _ := c.View(id)
		ja, err := json.Marshal(a)
		require.NoError(t, err)
		jb, err := json.Marshal(b)
		require.NoError(t, err)
		assert.Equal(t, string(ja), string(jb), id)
	}

	v, _ := c.View("q5")
	assert.Equal(t, "Output", v.Root.OperatorType)
}

func TestCorrelator_ConcurrentAppends(t *testing.T) {
	c, reg := newCorrelator()
	const n = 300

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Ingest(models.Event{
				QueryID:   fmt.Sprintf("q%d", i%3),
				Timestamp: t0.Add(time.Duration(i) * time.Millisecond),
				Catalog:   "hive",
			})
		}(i)
	}
	wg.Wait()

	total := 0
	for _, id := range c.QueryIDs() {
		v, _ := c.View(id)
		total += len(v.Events)
	}
	assert.Equal(t, n, total)
	assert.Equal(t, []string{"q0", "q1", "q2"}, c.QueryIDs())

	cat, err := reg.Catalog("hive")
	require.NoError(t, err)
	assert.Equal(t, int64(n), cat.TotalQueries)
}

func TestCorrelator_PublishesAndArchives(t *testing.T) {
	hub := notify.NewHub(nil)
	ch, cancel := hub.Subscribe(8)
	defer cancel()
	spy := &archiveSpy{}

	c, _ := newCorrelator(WithPublisher(hub), WithArchiver(spy))
	c.Ingest(models.Event{QueryID: "q7", Timestamp: t0, Catalog: "mysql", Schema: "shop", TableName: "orders"})

	select {
	case v := <-ch:
		assert.Equal(t, "q7", v.QueryID)
		assert.Len(t, v.Events, 1)
	case <-time.After(time.Second):
		t.Fatal("нет уведомления")
	}
	assert.Equal(t, 1, spy.refs["q7"])
}

func TestCorrelator_IndexAndSummary(t *testing.T) {
	c, _ := newCorrelator()
	c.Ingest(models.Event{QueryID: "a", Timestamp: t0, Catalog: "mysql", Schema: "shop", TableName: "orders"})
	c.Ingest(models.Event{QueryID: "a", Timestamp: t0.Add(time.Second), Catalog: "mysql", Schema: "shop", TableName: "orders"})
	c.Ingest(models.Event{QueryID: "b", Timestamp: t0, Catalog: "mysql", Schema: "shop", TableName: "items"})
	c.Ingest(models.Event{QueryID: "c", Timestamp: t0, Catalog: "hive"})
	c.Ingest(models.Event{QueryID: "d", Timestamp: t0})

	idx := c.index
	assert.Equal(t, []string{"hive", "mysql"}, idx.Catalogs())
	assert.Equal(t, []string{"mysql.shop"}, idx.Schemas())
	assert.Equal(t, []string{"mysql.shop.items", "mysql.shop.orders"}, idx.Tables())

	byCatalog := c.QueriesByCatalog("mysql")
	require.Len(t, byCatalog, 2)
	assert.Equal(t, "a", byCatalog[0].QueryID)
	assert.Equal(t, "b", byCatalog[1].QueryID)
	assert.Len(t, c.QueriesBySchema("mysql.shop"), 2)
	assert.Len(t, c.QueriesByTable("mysql.shop.orders"), 1)
	assert.Empty(t, c.QueriesByTable("nope"))

	s := c.Summary()
	assert.Equal(t, 2, s.Catalogs)
	assert.Equal(t, 1, s.Schemas)
	assert.Equal(t, 2, s.Tables)
	assert.Equal(t, 4, s.TotalQueries)
	assert.Equal(t, map[string]int{"mysql": 2, "hive": 1}, s.CatalogQueryCounts)
}

func TestDeriveView_DoesNotReorderInput(t *testing.T) {
	events := []models.Event{
		{QueryID: "q", EventType: "B", Timestamp: t0.Add(time.Second)},
		{QueryID: "q", EventType: "A", Timestamp: t0},
	}
	view := DeriveView("q", events, nil)
	assert.Equal(t, "A", view.Events[0].EventType)
	assert.Equal(t, "B", events[0].EventType)
}
