package models

import "time"

// Event — один снимок состояния запроса Trino в момент времени.
// Все поля, кроме QueryID, необязательны: отсутствующая статистика
// хранится как nil, а не как ноль.
type Event struct {
	QueryID   string    `json:"queryId"`
	EventType string    `json:"eventType,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Query     string    `json:"query,omitempty"`
	State     string    `json:"state,omitempty"`
	User      string    `json:"user,omitempty"`
	Source    string    `json:"source,omitempty"`

	// Основная ссылка на каталог (первый вход из ioMetadata)
	Catalog   string `json:"catalog,omitempty"`
	Schema    string `json:"schema,omitempty"`
	TableName string `json:"tableName,omitempty"`

	// Вторичные ссылки: все имена из ioMetadata
	Catalogs []string `json:"catalogs,omitempty"`
	Schemas  []string `json:"schemas,omitempty"`
	Tables   []string `json:"tables,omitempty"`

	CreateTime string `json:"createTime,omitempty"`
	EndTime    string `json:"endTime,omitempty"`

	// Времена в миллисекундах
	ExecutionTime *int64 `json:"executionTime,omitempty"`
	CPUTime       *int64 `json:"cpuTimeMs,omitempty"`
	WallTime      *int64 `json:"wallTimeMs,omitempty"`
	QueuedTime    *int64 `json:"queuedTimeMs,omitempty"`

	PeakMemoryBytes *int64 `json:"peakMemoryBytes,omitempty"`
	TotalBytes      *int64 `json:"totalBytes,omitempty"`
	TotalRows       *int64 `json:"totalRows,omitempty"`
	CompletedSplits *int   `json:"completedSplits,omitempty"`

	// Plan — текстовый план, JSONPlan — план по фрагментам {"0": {...}, "1": {...}}
	Plan     string `json:"plan,omitempty"`
	JSONPlan string `json:"jsonPlan,omitempty"`

	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`

	StageStats    map[string]any `json:"stageStats,omitempty"`
	OperatorStats map[string]any `json:"operatorStats,omitempty"`

	// Inputs — структурированные входы из исходного сообщения (ioMetadata.inputs)
	Inputs []InputMetadata `json:"inputs,omitempty"`

	// Metadata — произвольная карта; может содержать вложенный список "inputs"
	Metadata   map[string]any `json:"metadata,omitempty"`
	Statistics map[string]any `json:"statistics,omitempty"`
}

// InputMetadata — описание одного входа запроса.
// Columns приходит либо списком объектов {name, type}, либо картой name -> type.
type InputMetadata struct {
	CatalogName        string `json:"catalogName,omitempty"`
	ConnectorName      string `json:"connectorName,omitempty"`
	Schema             string `json:"schema,omitempty"`
	Table              string `json:"table,omitempty"`
	Columns            any    `json:"columns,omitempty"`
	PhysicalInputBytes *int64 `json:"physicalInputBytes,omitempty"`
	PhysicalInputRows  *int64 `json:"physicalInputRows,omitempty"`
}
