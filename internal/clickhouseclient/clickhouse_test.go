package clickhouseclient

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Число колонок в INSERT должно совпадать с числом аргументов Append.
func TestInsertColumns(t *testing.T) {
	cols := func(sql string) int {
		inner := sql[strings.Index(sql, "(")+1 : strings.LastIndex(sql, ")")]
		return len(strings.Split(inner, ","))
	}
	assert.Equal(t, 20, cols(insertEventsSQL("query_events")))
	assert.Equal(t, 10, cols(insertReferencesSQL("catalog_references")))
}

func TestCreateTableSQL(t *testing.T) {
	ev := createEventsSQL("trino.query_events")
	assert.True(t, strings.HasPrefix(ev, "CREATE TABLE IF NOT EXISTS trino.query_events ("))
	assert.Contains(t, ev, "Operators Array(String)")
	assert.Contains(t, createReferencesSQL("refs"), "Columns Array(String)")
}
