package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"TrinoEventPump/internal/models"
)

// ErrMissingPayload — в конверте eventPayload нет блока metadata
var ErrMissingPayload = errors.New("event payload has no metadata")

// Parser превращает строку сообщения в models.Event.
// Поддерживаются конверт event listener'а Trino ({"eventPayload": {...}})
// и плоская запись события.
type Parser struct {
	now func() time.Time
}

// NewParser создаёт парсер; now используется, когда у события нет времени.
func NewParser(now func() time.Time) *Parser {
	if now == nil {
		now = time.Now
	}
	return &Parser{now: now}
}

type envelope struct {
	EventPayload *payload `json:"eventPayload"`
}

type payload struct {
	Metadata    *queryMetadata  `json:"metadata"`
	Context     *queryContext   `json:"context"`
	CreateTime  string          `json:"createTime"`
	EndTime     string          `json:"endTime"`
	Statistics  json.RawMessage `json:"statistics"`
	IOMetadata  *ioMetadata     `json:"ioMetadata"`
	FailureInfo *failureInfo    `json:"failureInfo"`
}

type queryMetadata struct {
	QueryID    string `json:"queryId"`
	Query      string `json:"query"`
	QueryState string `json:"queryState"`
	URI        string `json:"uri"`
	Plan       string `json:"plan"`
	JSONPlan   string `json:"jsonPlan"`
}

type queryContext struct {
	User          string `json:"user"`
	Source        string `json:"source"`
	ServerVersion string `json:"serverVersion"`
	Environment   string `json:"environment"`
}

type queryStatistics struct {
	CPUTime         string `json:"cpuTime"`
	WallTime        string `json:"wallTime"`
	QueuedTime      string `json:"queuedTime"`
	ExecutionTime   string `json:"executionTime"`
	PeakMemoryBytes *int64 `json:"peakMemoryBytes"`
	TotalBytes      *int64 `json:"totalBytes"`
	TotalRows       *int64 `json:"totalRows"`
	CompletedSplits *int   `json:"completedSplits"`
}

type ioMetadata struct {
	Inputs []models.InputMetadata `json:"inputs"`
}

type failureInfo struct {
	ErrorCode *struct {
		Name string `json:"name"`
	} `json:"errorCode"`
	FailureMessage string `json:"failureMessage"`
}

// ParseMessage разбирает одно сообщение.
func (p *Parser) ParseMessage(data []byte) (models.Event, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return models.Event{}, errors.New("empty message")
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return models.Event{}, fmt.Errorf("decode message: %w", err)
	}
	if env.EventPayload != nil {
		return p.fromPayload(env.EventPayload)
	}
	return p.fromFlat(data)
}

func (p *Parser) fromPayload(pl *payload) (models.Event, error) {
	if pl.Metadata == nil {
		return models.Event{}, ErrMissingPayload
	}
	md := pl.Metadata

	ev := models.Event{
		QueryID:    md.QueryID,
		Query:      md.Query,
		State:      md.QueryState,
		EventType:  EventType(md.QueryState),
		Plan:       md.Plan,
		JSONPlan:   md.JSONPlan,
		CreateTime: pl.CreateTime,
		EndTime:    pl.EndTime,
		Timestamp:  p.timestamp(pl.CreateTime),
	}
	if pl.Context != nil {
		ev.User = pl.Context.User
		ev.Source = pl.Context.Source
	}

	if len(pl.Statistics) > 0 && !bytes.Equal(pl.Statistics, []byte("null")) {
		var st queryStatistics
		if err := json.Unmarshal(pl.Statistics, &st); err != nil {
			return models.Event{}, fmt.Errorf("decode statistics: %w", err)
		}
		ev.CPUTime = ParseDuration(st.CPUTime)
		ev.WallTime = ParseDuration(st.WallTime)
		ev.QueuedTime = ParseDuration(st.QueuedTime)
		ev.ExecutionTime = ParseDuration(st.ExecutionTime)
		ev.PeakMemoryBytes = st.PeakMemoryBytes
		ev.TotalBytes = st.TotalBytes
		ev.TotalRows = st.TotalRows
		ev.CompletedSplits = st.CompletedSplits

		var raw map[string]any
		if err := json.Unmarshal(pl.Statistics, &raw); err == nil {
			ev.Statistics = raw
		}
	}

	if pl.IOMetadata != nil && len(pl.IOMetadata.Inputs) > 0 {
		applyInputs(&ev, pl.IOMetadata.Inputs)
	}

	if fi := pl.FailureInfo; fi != nil {
		if fi.ErrorCode != nil {
			ev.ErrorCode = fi.ErrorCode.Name
		}
		ev.ErrorMessage = fi.FailureMessage
	}
	return ev, nil
}

// applyInputs заполняет основную ссылку первым непустым значением каждого уровня,
// списки имён и metadata["inputs"] в общем виде.
func applyInputs(ev *models.Event, inputs []models.InputMetadata) {
	ev.Inputs = inputs
	list := make([]any, 0, len(inputs))
	for _, in := range inputs {
		if in.CatalogName != "" {
			ev.Catalogs = append(ev.Catalogs, in.CatalogName)
			if ev.Catalog == "" {
				ev.Catalog = in.CatalogName
			}
		}
		if in.Schema != "" {
			ev.Schemas = append(ev.Schemas, in.Schema)
			if ev.Schema == "" {
				ev.Schema = in.Schema
			}
		}
		if in.Table != "" {
			ev.Tables = append(ev.Tables, in.Table)
			if ev.TableName == "" {
				ev.TableName = in.Table
			}
		}
		item := map[string]any{
			"catalogName":   in.CatalogName,
			"connectorName": in.ConnectorName,
			"schema":        in.Schema,
			"table":         in.Table,
		}
		if in.Columns != nil {
			item["columns"] = in.Columns
		}
		list = append(list, item)
	}
	ev.Metadata = map[string]any{"inputs": list}
}

// flatEvent — плоская запись; timestamp бывает строкой RFC 3339 или числом
type flatEvent struct {
	models.Event
	Timestamp json.RawMessage `json:"timestamp"`
}

func (p *Parser) fromFlat(data []byte) (models.Event, error) {
	var fe flatEvent
	if err := json.Unmarshal(data, &fe); err != nil {
		return models.Event{}, fmt.Errorf("decode event: %w", err)
	}
	ev := fe.Event

	ts, ok := rawTimestamp(fe.Timestamp)
	if !ok {
		ts = p.timestamp(ev.CreateTime)
	}
	ev.Timestamp = ts

	if ev.EventType == "" {
		ev.EventType = EventType(ev.State)
	}
	return ev, nil
}

func (p *Parser) timestamp(s string) time.Time {
	if s != "" {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.UTC()
		}
	}
	return p.now().UTC()
}

// rawTimestamp понимает строку RFC 3339, epoch в миллисекундах и
// epoch в секундах с дробной частью.
func rawTimestamp(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return time.Time{}, false
	}
	if n > 1e12 {
		return time.UnixMilli(int64(n)).UTC(), true
	}
	sec := int64(n)
	nsec := int64((n - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC(), true
}
