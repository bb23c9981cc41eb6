package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const replayEvents = `{"queryId":"q1","state":"QUEUED","timestamp":"2025-03-01T12:00:00Z","query":"SELECT * FROM orders","catalog":"postgres_main","schema":"public","tableName":"orders"}
{"queryId":"q1","state":"FINISHED","timestamp":"2025-03-01T12:00:02Z","executionTime":2000,"jsonPlan":"{\"0\":{\"id\":\"0\",\"name\":\"TableScan\",\"descriptor\":{\"table\":\"postgres:public.orders\"}}}"}
{"queryId":"q2","state":"FINISHED","timestamp":"2025-03-01T12:00:05Z","catalog":"mongodb","schema":"sample_db","tableName":"products"}
`

func runRoot(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		replayQueryID = ""
		replayCatalogs = false
	})
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(replayEvents), 0o644))

	var got replayOutput
	require.NoError(t, json.Unmarshal([]byte(runRoot(t, "replay", "--catalogs", path)), &got))

	require.Len(t, got.Queries, 2)
	q1 := got.Queries[0]
	assert.Equal(t, "q1", q1.QueryID)
	assert.Equal(t, "FINISHED", q1.State)
	assert.Equal(t, "SELECT * FROM orders", q1.Query)
	require.NotNil(t, q1.Root)
	assert.Equal(t, "TableScan", q1.Root.OperatorType)
	assert.Len(t, q1.Events, 2)

	assert.Equal(t, 2, got.Summary.TotalQueries)
	assert.Equal(t, 2, got.Summary.Catalogs)
	assert.Len(t, got.Databases, 2)
}

func TestReplay_SingleQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(replayEvents), 0o644))

	var got replayOutput
	require.NoError(t, json.Unmarshal([]byte(runRoot(t, "replay", "-q", "q2", path)), &got))
	require.Len(t, got.Queries, 1)
	assert.Equal(t, "q2", got.Queries[0].QueryID)
	assert.Empty(t, got.Databases)
}

func TestConfigCommand_MasksSecrets(t *testing.T) {
	t.Setenv("TEP_CLICKHOUSE_PASSWORD", "s3cret")
	out := runRoot(t, "config")
	assert.Contains(t, out, "ClickHouse:")
	assert.False(t, strings.Contains(out, "s3cret"))
}
