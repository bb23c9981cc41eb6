package transform

import (
	"fmt"

	"TrinoEventPump/internal/catalog"
	"TrinoEventPump/internal/models"
	"TrinoEventPump/internal/plantree"
)

const dateLayout = "2006-01-02"

// TransformEvent готовит строку архива событий. Операторы плана берутся
// из jsonPlan; неразбираемый план даёт пустой список, а не ошибку.
func TransformEvent(ev models.Event) (models.EventRow, error) {
	if ev.QueryID == "" {
		return models.EventRow{}, fmt.Errorf("event has no query id")
	}
	if ev.Timestamp.IsZero() {
		return models.EventRow{}, fmt.Errorf("event %s has no timestamp", ev.QueryID)
	}
	ts := ev.Timestamp.UTC()

	row := models.EventRow{
		EventDate:       ts.Format(dateLayout),
		EventTime:       ts,
		QueryID:         ev.QueryID,
		EventType:       ev.EventType,
		State:           ev.State,
		User:            ev.User,
		Query:           ev.Query,
		Catalog:         ev.Catalog,
		Schema:          ev.Schema,
		TableName:       ev.TableName,
		ExecutionTimeMs: ev.ExecutionTime,
		CPUTimeMs:       ev.CPUTime,
		WallTimeMs:      ev.WallTime,
		QueuedTimeMs:    ev.QueuedTime,
		PeakMemoryBytes: ev.PeakMemoryBytes,
		TotalBytes:      ev.TotalBytes,
		TotalRows:       ev.TotalRows,
		ErrorCode:       nullable(ev.ErrorCode),
		ErrorMessage:    nullable(ev.ErrorMessage),
		Operators:       []string{},
	}
	if ev.JSONPlan != "" {
		if ops, err := plantree.Operators(ev.JSONPlan); err == nil {
			row.Operators = ops
		}
	}
	return row, nil
}

// TransformReferences превращает ссылки события в строки архива.
// Тип каталога определяется по имени так же, как при создании в реестре.
func TransformReferences(ev models.Event, refs []catalog.Reference) []models.ReferenceRow {
	if len(refs) == 0 {
		return nil
	}
	ts := ev.Timestamp.UTC()
	rows := make([]models.ReferenceRow, 0, len(refs))
	for _, ref := range refs {
		kind, typ := catalog.Classify(ref.Catalog)
		cols := make([]string, 0, len(ref.Columns))
		for _, c := range ref.Columns {
			cols = append(cols, c.Name)
		}
		rows = append(rows, models.ReferenceRow{
			EventDate:   ts.Format(dateLayout),
			EventTime:   ts,
			QueryID:     ev.QueryID,
			Catalog:     ref.Catalog,
			CatalogKind: string(kind),
			CatalogType: typ,
			Schema:      ref.Schema,
			TableName:   ref.Table,
			Source:      ref.Source,
			Columns:     cols,
		})
	}
	return rows
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
