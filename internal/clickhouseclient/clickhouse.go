package clickhouseclient

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"TrinoEventPump/internal/batch"
	"TrinoEventPump/internal/config"
	"TrinoEventPump/internal/models"
	"TrinoEventPump/internal/transform"
)

const opTimeout = 60 * time.Second

// Client пишет архив событий и ссылок на каталоги в ClickHouse
type Client struct {
	conn            driver.Conn
	EventsTable     string
	ReferencesTable string
	Logger          *zap.Logger
}

// New создает клиента ClickHouse
func New(cfg config.ClickHouseConfig, logger *zap.Logger) (*Client, error) {
	protocol := clickhouse.Native
	if cfg.Protocol == "http" {
		protocol = clickhouse.HTTP
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Address},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
		Protocol:    protocol,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	return &Client{
		conn:            conn,
		EventsTable:     cfg.EventsTable,
		ReferencesTable: cfg.ReferencesTable,
		Logger:          logger,
	}, nil
}

func createEventsSQL(table string) string {
	return "CREATE TABLE IF NOT EXISTS " + table + " (" +
		"EventDate Date, EventTime DateTime64(3, 'UTC'), QueryID String, EventType LowCardinality(String), " +
		"State LowCardinality(String), User String, Query String, Catalog String, Schema String, TableName String, " +
		"ExecutionTimeMs Nullable(Int64), CPUTimeMs Nullable(Int64), WallTimeMs Nullable(Int64), QueuedTimeMs Nullable(Int64), " +
		"PeakMemoryBytes Nullable(Int64), TotalBytes Nullable(Int64), TotalRows Nullable(Int64), " +
		"ErrorCode Nullable(String), ErrorMessage Nullable(String), Operators Array(String)" +
		") ENGINE = MergeTree PARTITION BY toYYYYMM(EventDate) ORDER BY (EventDate, QueryID, EventTime)"
}

func createReferencesSQL(table string) string {
	return "CREATE TABLE IF NOT EXISTS " + table + " (" +
		"EventDate Date, EventTime DateTime64(3, 'UTC'), QueryID String, Catalog String, " +
		"CatalogKind LowCardinality(String), CatalogType LowCardinality(String), Schema String, TableName String, " +
		"Source LowCardinality(String), Columns Array(String)" +
		") ENGINE = MergeTree PARTITION BY toYYYYMM(EventDate) ORDER BY (EventDate, Catalog, Schema, TableName)"
}

func insertEventsSQL(table string) string {
	return "INSERT INTO " + table + " (" +
		"EventDate, EventTime, QueryID, EventType, State, User, Query, Catalog, Schema, TableName, " +
		"ExecutionTimeMs, CPUTimeMs, WallTimeMs, QueuedTimeMs, PeakMemoryBytes, TotalBytes, TotalRows, " +
		"ErrorCode, ErrorMessage, Operators)"
}

func insertReferencesSQL(table string) string {
	return "INSERT INTO " + table + " (" +
		"EventDate, EventTime, QueryID, Catalog, CatalogKind, CatalogType, Schema, TableName, Source, Columns)"
}

// EnsureSchema создаёт таблицы архива, если их нет
func (c *Client) EnsureSchema(ctx context.Context) error {
	for _, ddl := range []string{createEventsSQL(c.EventsTable), createReferencesSQL(c.ReferencesTable)} {
		if err := c.conn.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// InsertBatch конвертирует записи через transform и отправляет две пачки:
// события и ссылки на каталоги.
func (c *Client) InsertBatch(ctx context.Context, records []batch.Record) error {
	var (
		events []models.EventRow
		refs   []models.ReferenceRow
	)
	for _, rec := range records {
		row, err := transform.TransformEvent(rec.Event)
		if err != nil {
			c.Logger.Warn("Некорректное событие, запись пропущена", zap.Error(err), zap.String("queryId", rec.Event.QueryID))
			continue
		}
		events = append(events, row)
		refs = append(refs, transform.TransformReferences(rec.Event, rec.References)...)
	}

	if err := c.sendEvents(ctx, events); err != nil {
		return err
	}
	return c.sendReferences(ctx, refs)
}

func (c *Client) sendEvents(ctx context.Context, rows []models.EventRow) error {
	if len(rows) == 0 {
		return nil
	}
	dbCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	b, err := c.conn.PrepareBatch(dbCtx, insertEventsSQL(c.EventsTable))
	if err != nil {
		c.Logger.Error("prepare batch", zap.Error(err), zap.String("table", c.EventsTable))
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, r := range rows {
		if err := b.Append(
			r.EventDate, r.EventTime, r.QueryID, r.EventType, r.State, r.User, r.Query,
			r.Catalog, r.Schema, r.TableName,
			r.ExecutionTimeMs, r.CPUTimeMs, r.WallTimeMs, r.QueuedTimeMs,
			r.PeakMemoryBytes, r.TotalBytes, r.TotalRows,
			r.ErrorCode, r.ErrorMessage, r.Operators,
		); err != nil {
			_ = b.Abort()
			return fmt.Errorf("append event: %w", err)
		}
	}
	if err := b.Send(); err != nil {
		c.Logger.Error("send batch", zap.Error(err), zap.String("table", c.EventsTable))
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

func (c *Client) sendReferences(ctx context.Context, rows []models.ReferenceRow) error {
	if len(rows) == 0 {
		return nil
	}
	dbCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	b, err := c.conn.PrepareBatch(dbCtx, insertReferencesSQL(c.ReferencesTable))
	if err != nil {
		c.Logger.Error("prepare batch", zap.Error(err), zap.String("table", c.ReferencesTable))
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, r := range rows {
		if err := b.Append(
			r.EventDate, r.EventTime, r.QueryID, r.Catalog, r.CatalogKind, r.CatalogType,
			r.Schema, r.TableName, r.Source, r.Columns,
		); err != nil {
			_ = b.Abort()
			return fmt.Errorf("append reference: %w", err)
		}
	}
	if err := b.Send(); err != nil {
		c.Logger.Error("send batch", zap.Error(err), zap.String("table", c.ReferencesTable))
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// Close закрывает соединение с ClickHouse
func (c *Client) Close() error {
	return c.conn.Close()
}
