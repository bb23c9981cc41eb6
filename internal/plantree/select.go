package plantree

import (
	"strings"

	"go.uber.org/zap"

	"TrinoEventPump/internal/models"
)

// Enrich проставляет queryId, state и источник события на все узлы дерева.
func Enrich(root *models.OperatorNode, ev models.Event) {
	root.Walk(func(n *models.OperatorNode) {
		n.QueryID = ev.QueryID
		n.State = ev.State
		n.SourceSystem = ev.Catalog
	})
}

// Select выбирает дерево для представления запроса. events должны быть
// упорядочены по времени. Берётся первый план, который удалось разобрать;
// если таких нет, дерево собирается резервным путём.
func Select(events []models.Event, lg *zap.Logger) *models.OperatorNode {
	if lg == nil {
		lg = zap.NewNop()
	}
	for _, ev := range events {
		if strings.TrimSpace(ev.JSONPlan) == "" {
			continue
		}
		root, err := Parse(ev.JSONPlan)
		if err != nil {
			lg.Debug("план не разобран, пропускаем",
				zap.String("queryId", ev.QueryID),
				zap.Time("timestamp", ev.Timestamp),
				zap.Error(err))
			continue
		}
		Enrich(root, ev)
		return root
	}
	return BuildLegacy(events)
}
