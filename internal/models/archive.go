package models

import "time"

// EventRow — строка таблицы архива событий в ClickHouse.
// Указатели соответствуют Nullable-колонкам.
type EventRow struct {
	EventDate       string
	EventTime       time.Time
	QueryID         string
	EventType       string
	State           string
	User            string
	Query           string
	Catalog         string
	Schema          string
	TableName       string
	ExecutionTimeMs *int64
	CPUTimeMs       *int64
	WallTimeMs      *int64
	QueuedTimeMs    *int64
	PeakMemoryBytes *int64
	TotalBytes      *int64
	TotalRows       *int64
	ErrorCode       *string
	ErrorMessage    *string
	Operators       []string
}

// ReferenceRow — одна ссылка на каталог, извлечённая из события
type ReferenceRow struct {
	EventDate   string
	EventTime   time.Time
	QueryID     string
	Catalog     string
	CatalogKind string
	CatalogType string
	Schema      string
	TableName   string
	Source      string
	Columns     []string
}
