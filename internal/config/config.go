package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const envPrefix = "TEP"

// EventsConfig — откуда читать события (*.jsonl, одна строка — одно сообщение)
type EventsConfig struct {
	Directories    []string `mapstructure:"Directories" yaml:"Directories"`
	FilePattern    string   `mapstructure:"FilePattern" yaml:"FilePattern"`
	RescanInterval int      `mapstructure:"RescanInterval" yaml:"RescanInterval"` // секунды
	SaveInterval   int      `mapstructure:"SaveInterval" yaml:"SaveInterval"`     // секунды между сохранениями смещений
	Workers        int      `mapstructure:"Workers" yaml:"Workers"`
	QueueSize      int      `mapstructure:"QueueSize" yaml:"QueueSize"`
}

// BatchConfig — пачки для архива в ClickHouse
type BatchConfig struct {
	Size     int `mapstructure:"Size" yaml:"Size"`
	Interval int `mapstructure:"Interval" yaml:"Interval"` // секунды
}

// ClickHouseConfig — архив событий и ссылок на каталоги. Необязателен.
// Protocol: "native" или "http"
type ClickHouseConfig struct {
	Enabled         bool   `mapstructure:"Enabled" yaml:"Enabled"`
	Address         string `mapstructure:"Address" yaml:"Address"`
	Username        string `mapstructure:"Username" yaml:"Username"`
	Password        string `mapstructure:"Password" yaml:"Password"`
	Database        string `mapstructure:"Database" yaml:"Database"`
	EventsTable     string `mapstructure:"EventsTable" yaml:"EventsTable"`
	ReferencesTable string `mapstructure:"ReferencesTable" yaml:"ReferencesTable"`
	Protocol        string `mapstructure:"Protocol" yaml:"Protocol"`
}

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Host     string `mapstructure:"Host" yaml:"Host"`
	Port     int    `mapstructure:"Port" yaml:"Port"`
	DB       int    `mapstructure:"DB" yaml:"DB"`
	Password string `mapstructure:"Password" yaml:"Password"`
	Key      string `mapstructure:"Key" yaml:"Key"`
}

// APIConfig — HTTP API
type APIConfig struct {
	ListenAddr   string   `mapstructure:"ListenAddr" yaml:"ListenAddr"`
	StreamBuffer int      `mapstructure:"StreamBuffer" yaml:"StreamBuffer"`
	RateLimit    float64  `mapstructure:"RateLimit" yaml:"RateLimit"` // запросов в секунду на клиента
	RateBurst    int      `mapstructure:"RateBurst" yaml:"RateBurst"`
	CORSOrigins  []string `mapstructure:"CORSOrigins" yaml:"CORSOrigins"` // пусто — любой источник
}

// CatalogConfig — проекция каталогов для API
type CatalogConfig struct {
	RefreshInterval int           `mapstructure:"RefreshInterval" yaml:"RefreshInterval"` // секунды
	Seed            []CatalogSeed `mapstructure:"Seed" yaml:"Seed"`                       // каталоги, известные до первых событий
}

// CatalogSeed — заранее известный каталог. Пустые Kind и Type выводятся из имени.
type CatalogSeed struct {
	ID   string `mapstructure:"ID" yaml:"ID"`
	Kind string `mapstructure:"Kind" yaml:"Kind"` // RELATIONAL, DOCUMENT или UNKNOWN
	Type string `mapstructure:"Type" yaml:"Type"`
}

// LoggingConfig содержит настройки логирования и интеграции с Sentry
type LoggingConfig struct {
	LogFile      string `mapstructure:"LogFile" yaml:"LogFile"`           // путь к файлу логов
	SentryDSN    string `mapstructure:"SentryDSN" yaml:"SentryDSN"`       // DSN для Sentry
	EnableSentry bool   `mapstructure:"EnableSentry" yaml:"EnableSentry"` // включить отправку ошибок в Sentry
}

// Config описывает основные настройки сервиса.
// Значения берутся из YAML, переопределяются переменными окружения TEP_*
// (TEP_API_LISTENADDR, TEP_CLICKHOUSE_PASSWORD), для остальных — значения по умолчанию.
type Config struct {
	Events           EventsConfig     `mapstructure:"Events" yaml:"Events"`
	Batch            BatchConfig      `mapstructure:"Batch" yaml:"Batch"`
	ClickHouse       ClickHouseConfig `mapstructure:"ClickHouse" yaml:"ClickHouse"`
	ProcessedStorage string           `mapstructure:"ProcessedStorage" yaml:"ProcessedStorage"` // "file" или "redis"
	ProcessedFile    string           `mapstructure:"ProcessedFile" yaml:"ProcessedFile"`
	Redis            RedisConfig      `mapstructure:"Redis" yaml:"Redis"`
	API              APIConfig        `mapstructure:"API" yaml:"API"`
	Catalog          CatalogConfig    `mapstructure:"Catalog" yaml:"Catalog"`
	Logging          LoggingConfig    `mapstructure:"Logging" yaml:"Logging"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Events.Directories", []string{})
	v.SetDefault("Events.FilePattern", "*.jsonl")
	v.SetDefault("Events.RescanInterval", 30)
	v.SetDefault("Events.SaveInterval", 30)
	v.SetDefault("Events.Workers", 4)
	v.SetDefault("Events.QueueSize", 1024)

	v.SetDefault("Batch.Size", 500)
	v.SetDefault("Batch.Interval", 5)

	v.SetDefault("ClickHouse.Enabled", false)
	v.SetDefault("ClickHouse.Address", "localhost:9000")
	v.SetDefault("ClickHouse.Username", "default")
	v.SetDefault("ClickHouse.Password", "")
	v.SetDefault("ClickHouse.Database", "trino")
	v.SetDefault("ClickHouse.EventsTable", "query_events")
	v.SetDefault("ClickHouse.ReferencesTable", "catalog_references")
	v.SetDefault("ClickHouse.Protocol", "native")

	v.SetDefault("ProcessedStorage", "file")
	v.SetDefault("ProcessedFile", "processed_offsets.json")

	v.SetDefault("Redis.Host", "localhost")
	v.SetDefault("Redis.Port", 6379)
	v.SetDefault("Redis.DB", 0)
	v.SetDefault("Redis.Password", "")
	v.SetDefault("Redis.Key", "trino_event_pump:offsets")

	v.SetDefault("API.ListenAddr", ":8080")
	v.SetDefault("API.StreamBuffer", 64)
	v.SetDefault("API.RateLimit", 50.0)
	v.SetDefault("API.RateBurst", 100)
	v.SetDefault("API.CORSOrigins", []string{"*"})

	v.SetDefault("Catalog.RefreshInterval", 60)

	v.SetDefault("Logging.LogFile", "")
	v.SetDefault("Logging.SentryDSN", "")
	v.SetDefault("Logging.EnableSentry", false)
}

// LoadConfig читает конфиг. Шаги:
// 1. Чтение сырого файла (пустой path — только значения по умолчанию и окружение)
// 2. Очистка данных: удаление BOM, замена табуляций
// 3. Разбор YAML через viper с переопределением из окружения
// 4. Валидация
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := v.ReadConfig(bytes.NewReader(sanitize(raw))); err != nil {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// sanitize удаляет BOM и табуляции
func sanitize(data []byte) []byte {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	data = bytes.ReplaceAll(data, []byte("\t"), []byte("  "))
	return data
}

// Validate проверяет обязательные поля конфигурации
func (c *Config) Validate() error {
	if c.Events.FilePattern == "" {
		return fmt.Errorf("Events.FilePattern must not be empty")
	}
	if c.Events.Workers <= 0 {
		return fmt.Errorf("Events.Workers must be positive")
	}
	if c.Events.QueueSize <= 0 {
		return fmt.Errorf("Events.QueueSize must be positive")
	}
	if c.Events.RescanInterval <= 0 || c.Events.SaveInterval <= 0 {
		return fmt.Errorf("Events.RescanInterval and Events.SaveInterval must be positive")
	}
	if c.Batch.Size <= 0 {
		return fmt.Errorf("Batch.Size must be positive")
	}
	if c.Batch.Interval <= 0 {
		return fmt.Errorf("Batch.Interval must be positive")
	}
	if c.ClickHouse.Enabled {
		if c.ClickHouse.Address == "" {
			return fmt.Errorf("ClickHouse.Address must not be empty")
		}
		if c.ClickHouse.Database == "" {
			return fmt.Errorf("ClickHouse.Database must not be empty")
		}
		if c.ClickHouse.EventsTable == "" || c.ClickHouse.ReferencesTable == "" {
			return fmt.Errorf("ClickHouse.EventsTable and ClickHouse.ReferencesTable must not be empty")
		}
		if p := c.ClickHouse.Protocol; p != "native" && p != "http" {
			return fmt.Errorf("ClickHouse.Protocol must be native or http, got %q", p)
		}
	}
	switch c.ProcessedStorage {
	case "file":
		if c.ProcessedFile == "" {
			return fmt.Errorf("ProcessedFile must not be empty")
		}
	case "redis":
		if c.Redis.Host == "" || c.Redis.Key == "" {
			return fmt.Errorf("Redis.Host and Redis.Key must not be empty")
		}
	default:
		return fmt.Errorf("ProcessedStorage must be file or redis, got %q", c.ProcessedStorage)
	}
	if c.API.ListenAddr == "" {
		return fmt.Errorf("API.ListenAddr must not be empty")
	}
	if c.API.StreamBuffer <= 0 {
		return fmt.Errorf("API.StreamBuffer must be positive")
	}
	if c.API.RateLimit <= 0 || c.API.RateBurst <= 0 {
		return fmt.Errorf("API.RateLimit and API.RateBurst must be positive")
	}
	if c.Catalog.RefreshInterval <= 0 {
		return fmt.Errorf("Catalog.RefreshInterval must be positive")
	}
	for i, s := range c.Catalog.Seed {
		if s.ID == "" {
			return fmt.Errorf("Catalog.Seed[%d].ID must not be empty", i)
		}
		switch s.Kind {
		case "", "RELATIONAL", "DOCUMENT", "UNKNOWN":
		default:
			return fmt.Errorf("Catalog.Seed[%d].Kind must be RELATIONAL, DOCUMENT or UNKNOWN, got %q", i, s.Kind)
		}
	}
	return nil
}

func (c BatchConfig) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

func (c EventsConfig) RescanDuration() time.Duration {
	return time.Duration(c.RescanInterval) * time.Second
}

func (c EventsConfig) SaveDuration() time.Duration {
	return time.Duration(c.SaveInterval) * time.Second
}

func (c CatalogConfig) RefreshDuration() time.Duration {
	return time.Duration(c.RefreshInterval) * time.Second
}

const masked = "***"

// Dump возвращает действующую конфигурацию в YAML; секреты скрыты.
func Dump(c *Config) ([]byte, error) {
	cp := *c
	if cp.ClickHouse.Password != "" {
		cp.ClickHouse.Password = masked
	}
	if cp.Redis.Password != "" {
		cp.Redis.Password = masked
	}
	if cp.Logging.SentryDSN != "" {
		cp.Logging.SentryDSN = masked
	}
	out, err := yaml.Marshal(&cp)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}
