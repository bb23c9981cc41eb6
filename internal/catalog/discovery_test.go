package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrinoEventPump/internal/models"
)

func TestDiscovery_PrimaryFields(t *testing.T) {
	r := NewRegistry(nil)
	d := NewDiscovery(r, nil)

	refs := d.RecordReferences(models.Event{
		QueryID: "q1", Timestamp: t0,
		Catalog: "postgres_main", Schema: "public", TableName: "orders",
	})
	require.Len(t, refs, 1)
	assert.Equal(t, SourcePrimary, refs[0].Source)

	c, err := r.Catalog("postgres_main")
	require.NoError(t, err)
	assert.Equal(t, "postgresql", c.Type)
	assert.Equal(t, int64(1), c.TotalQueries)
	tb, err := r.Table("postgres_main", "public", "orders")
	require.NoError(t, err)
	assert.Equal(t, int64(1), tb.TotalQueries)
}

func TestDiscovery_AllSourcesOneEvent(t *testing.T) {
	r := NewRegistry(nil)
	d := NewDiscovery(r, nil)

	ev := models.Event{
		QueryID:   "q1",
		Timestamp: t0,
		Catalog:   "postgres",
		Schema:    "public",
		TableName: "orders",
		Metadata: map[string]any{
			"inputs": []any{
				map[string]any{
					"catalogName": "postgres", "schema": "public", "table": "orders",
					"columns": []any{map[string]any{"name": "amount", "type": "decimal(10,2)"}},
				},
			},
		},
		Inputs: []models.InputMetadata{{
			ConnectorName: "mysql", Schema: "inventory", Table: "products",
			Columns: map[string]any{"price": "decimal(10,2)", "id": "int"},
		}},
		Plan: "Fragment 1\n    TableScan\n        TABLE: hive:web.clicks, grouped = false\n",
	}
	refs := d.RecordReferences(ev)
	assert.Len(t, refs, 4)

	assert.Equal(t, 3, r.Len())
	c, err := r.Catalog("postgres")
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.TotalQueries)

	tb, err := r.Table("postgres", "public", "orders")
	require.NoError(t, err)
	assert.Equal(t, []models.Column{{Name: "amount", Type: "decimal(10,2)"}}, tb.Columns)

	products, err := r.Table("mysql", "inventory", "products")
	require.NoError(t, err)
	assert.Equal(t, []models.Column{{Name: "id", Type: "int"}, {Name: "price", Type: "decimal(10,2)"}}, products.Columns)

	clicks, err := r.Table("hive", "web", "clicks")
	require.NoError(t, err)
	assert.Equal(t, int64(1), clicks.TotalQueries)
}

func TestDiscovery_MalformedSourceSkipped(t *testing.T) {
	r := NewRegistry(nil)
	d := NewDiscovery(r, nil)

	d.RecordReferences(models.Event{
		QueryID:   "q1",
		Timestamp: t0,
		Metadata:  map[string]any{"inputs": "not-a-list"},
		Inputs: []models.InputMetadata{
			{CatalogName: "postgres", Schema: "public", Table: "good"},
			{CatalogName: "postgres", Schema: "public", Table: "bad", Columns: 42},
		},
		Catalog: "mysql", Schema: "shop", TableName: "orders",
	})

	assert.True(t, r.Exists("mysql"))
	assert.False(t, r.Exists("postgres"))
}

func TestFromPlanText(t *testing.T) {
	plan := `Output[columnNames = [name]]
    ScanFilter FROM postgres:public.customers WHERE id > 1
    InnerJoin JOIN mysql.inventory.products
    x
    TABLE: tpch
    TableScan TABLE: mongodb:sample_db`

	refs, err := fromPlanText(models.Event{Plan: plan})
	require.NoError(t, err)
	assert.Equal(t, []Reference{
		{Catalog: "postgres", Schema: "public", Table: "customers", Source: SourcePlan},
		{Catalog: "mysql", Schema: "inventory", Table: "products", Source: SourcePlan},
		{Catalog: "mongodb", Schema: "sample_db", Source: SourcePlan},
	}, refs)
}

func TestParseColumns(t *testing.T) {
	cols, err := parseColumns([]any{
		map[string]any{"name": "id", "type": "integer"},
		map[string]any{"column": "email"},
		map[string]any{"type": "orphan"},
	})
	require.NoError(t, err)
	assert.Equal(t, []models.Column{{Name: "id", Type: "integer"}, {Name: "email"}}, cols)

	cols, err = parseColumns(map[string]any{"b": "varchar", "a": nil})
	require.NoError(t, err)
	assert.Equal(t, []models.Column{{Name: "a"}, {Name: "b", Type: "varchar"}}, cols)

	_, err = parseColumns([]any{"id"})
	assert.Error(t, err)
	_, err = parseColumns(3.14)
	assert.Error(t, err)
}

func TestDirectory_RefreshAndInvalidate(t *testing.T) {
	r := NewRegistry(nil)
	d := NewDirectory(r, time.Hour, nil)
	now := t0
	d.now = func() time.Time { return now }

	r.Record([]Reference{{Catalog: "postgres"}}, t0)
	require.Len(t, d.All(), 1)

	// свежий снимок не видит новых каталогов до Refresh
	r.Record([]Reference{{Catalog: "mysql"}}, t0)
	assert.Len(t, d.All(), 1)
	_, ok := d.Get("mysql")
	assert.False(t, ok)

	d.Refresh()
	assert.Len(t, d.All(), 2)

	r.Record([]Reference{{Catalog: "hive"}}, t0)
	d.Invalidate()
	got, ok := d.Get("hive")
	require.True(t, ok)
	assert.Equal(t, "hive", got.Name)

	r.Record([]Reference{{Catalog: "kafka"}}, t0)
	now = now.Add(2 * time.Hour)
	assert.Len(t, d.All(), 4)
	assert.Equal(t, now, d.RefreshedAt())
}
