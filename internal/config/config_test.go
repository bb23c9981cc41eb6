package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "*.jsonl", cfg.Events.FilePattern)
	assert.Equal(t, 4, cfg.Events.Workers)
	assert.Equal(t, "file", cfg.ProcessedStorage)
	assert.Equal(t, ":8080", cfg.API.ListenAddr)
	assert.False(t, cfg.ClickHouse.Enabled)
	assert.Equal(t, 60, cfg.Catalog.RefreshInterval)
}

func TestLoadConfig_BOMAndTabs(t *testing.T) {
	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte(
		"Events:\n"+
			"\tDirectories:\n"+
			"\t\t- /var/trino/events\n"+
			"\tWorkers: 8\n"+
			"ClickHouse:\n"+
			"\tEnabled: true\n"+
			"\tAddress: ch:9000\n"+
			"\tProtocol: http\n"+
			"API:\n"+
			"\tListenAddr: \":9090\"\n"+
			"Catalog:\n"+
			"\tSeed:\n"+
			"\t\t- ID: mongodb\n"+
			"\t\t\tKind: DOCUMENT\n"+
			"\t\t- ID: postgres_main\n")...)

	cfg, err := LoadConfig(writeConfig(t, content))
	require.NoError(t, err)

	assert.Equal(t, []string{"/var/trino/events"}, cfg.Events.Directories)
	assert.Equal(t, 8, cfg.Events.Workers)
	assert.True(t, cfg.ClickHouse.Enabled)
	assert.Equal(t, "ch:9000", cfg.ClickHouse.Address)
	assert.Equal(t, "http", cfg.ClickHouse.Protocol)
	assert.Equal(t, "query_events", cfg.ClickHouse.EventsTable)
	assert.Equal(t, ":9090", cfg.API.ListenAddr)
	assert.Equal(t, []CatalogSeed{{ID: "mongodb", Kind: "DOCUMENT"}, {ID: "postgres_main"}}, cfg.Catalog.Seed)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("TEP_API_LISTENADDR", ":7070")
	t.Setenv("TEP_EVENTS_WORKERS", "2")

	cfg, err := LoadConfig(writeConfig(t, []byte("API:\n  ListenAddr: \":9090\"\n")))
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.API.ListenAddr)
	assert.Equal(t, 2, cfg.Events.Workers)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, []byte("Events: [unclosed\n")))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, []byte("ProcessedStorage: etcd\n")))
	assert.ErrorContains(t, err, "ProcessedStorage")
}

func TestValidate(t *testing.T) {
	base, err := LoadConfig("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"workers", func(c *Config) { c.Events.Workers = 0 }, "Events.Workers"},
		{"batch", func(c *Config) { c.Batch.Size = -1 }, "Batch.Size"},
		{"clickhouse address", func(c *Config) { c.ClickHouse.Enabled = true; c.ClickHouse.Address = "" }, "ClickHouse.Address"},
		{"clickhouse protocol", func(c *Config) { c.ClickHouse.Enabled = true; c.ClickHouse.Protocol = "grpc" }, "ClickHouse.Protocol"},
		{"redis", func(c *Config) { c.ProcessedStorage = "redis"; c.Redis.Host = "" }, "Redis.Host"},
		{"listen", func(c *Config) { c.API.ListenAddr = "" }, "API.ListenAddr"},
		{"refresh", func(c *Config) { c.Catalog.RefreshInterval = 0 }, "Catalog.RefreshInterval"},
		{"seed id", func(c *Config) { c.Catalog.Seed = []CatalogSeed{{Kind: "DOCUMENT"}} }, "Catalog.Seed[0].ID"},
		{"seed kind", func(c *Config) { c.Catalog.Seed = []CatalogSeed{{ID: "mongo", Kind: "GRAPH"}} }, "Catalog.Seed[0].Kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *base
			tt.mutate(&c)
			assert.ErrorContains(t, c.Validate(), tt.want)
		})
	}

	// выключенный ClickHouse не проверяется
	c := *base
	c.ClickHouse.Address = ""
	assert.NoError(t, c.Validate())
}

func TestDump_MasksSecrets(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.ClickHouse.Password = "secret"
	cfg.Logging.SentryDSN = "https://key@sentry.example/1"

	out, err := Dump(cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "secret")
	assert.NotContains(t, string(out), "sentry.example")

	var back Config
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, "***", back.ClickHouse.Password)
	assert.Empty(t, back.Redis.Password)
	assert.Equal(t, cfg.API.ListenAddr, back.API.ListenAddr)

	// исходная структура не изменилась
	assert.Equal(t, "secret", cfg.ClickHouse.Password)
}
