package plantree

import (
	"fmt"
	"maps"
	"strconv"

	"github.com/google/uuid"

	"TrinoEventPump/internal/models"
)

const unknownOperator = "UNKNOWN"

// legacyNamespace — пространство имён для детерминированных id дочерних узлов
var legacyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("trino-event-pump/legacy-operator"))

// legacyBuilder собирает дерево из stageStats/operatorStats, когда плана нет.
// nodes — индекс id -> узел, нужен только на этом пути.
type legacyBuilder struct {
	nodes map[string]*models.OperatorNode
}

// BuildLegacy строит дерево по событиям без плана: один узел на тройку
// (queryId, eventType, timestamp). Корнем становится узел первого события.
// Результат приблизительный и зависит от формы operatorStats.
func BuildLegacy(events []models.Event) *models.OperatorNode {
	b := &legacyBuilder{nodes: make(map[string]*models.OperatorNode)}

	var root *models.OperatorNode
	for _, ev := range events {
		id := legacyNodeID(ev)
		node, ok := b.nodes[id]
		if !ok {
			node = newLegacyNode(id, ev)
			b.nodes[id] = node
		}
		if ev.StageStats != nil {
			node.NodeType = models.NodeTypeStage
			node.OperatorType = operatorType(ev.StageStats)
		}
		if ev.OperatorStats != nil {
			b.expand(node, ev.OperatorStats)
		}
		if root == nil {
			root = node
		}
	}
	return root
}

func legacyNodeID(ev models.Event) string {
	return ev.QueryID + "-" + ev.EventType + "-" + strconv.FormatInt(ev.Timestamp.UnixMilli(), 10)
}

func newLegacyNode(id string, ev models.Event) *models.OperatorNode {
	return &models.OperatorNode{
		ID:            id,
		QueryID:       ev.QueryID,
		NodeType:      models.NodeTypeOperator,
		OperatorType:  unknownOperator,
		SourceSystem:  ev.Catalog,
		State:         ev.State,
		ExecutionTime: ev.ExecutionTime,
		CPUTime:       ev.CPUTime,
		WallTime:      ev.WallTime,
		InputRows:     ev.TotalRows,
		InputBytes:    ev.TotalBytes,
		MemoryBytes:   ev.PeakMemoryBytes,
		ErrorMessage:  ev.ErrorMessage,
		Metadata:      maps.Clone(ev.Metadata),
		Children:      []*models.OperatorNode{},
	}
}

// expand разворачивает ключ "children" из operatorStats в дочерние узлы.
// Элементы, не являющиеся объектами, пропускаются.
func (b *legacyBuilder) expand(parent *models.OperatorNode, stats map[string]any) {
	children, ok := stats["children"].([]any)
	if !ok {
		return
	}
	for _, c := range children {
		childStats, ok := c.(map[string]any)
		if !ok {
			continue
		}
		id := childNodeID(parent.ID, len(parent.Children))
		child := &models.OperatorNode{
			ID:           id,
			QueryID:      parent.QueryID,
			NodeType:     models.NodeTypeOperator,
			OperatorType: operatorType(childStats),
			State:        parent.State,
			Metadata:     maps.Clone(childStats),
			Children:     []*models.OperatorNode{},
			ParentID:     parent.ID,
		}
		b.nodes[id] = child
		parent.Children = append(parent.Children, child)
		b.expand(child, childStats)
	}
}

func childNodeID(parentID string, index int) string {
	key := parentID + "/" + strconv.Itoa(index)
	return parentID + "-child-" + uuid.NewSHA1(legacyNamespace, []byte(key)).String()
}

func operatorType(stats map[string]any) string {
	v, ok := stats["operatorType"]
	if !ok || v == nil {
		return unknownOperator
	}
	if s, ok := v.(string); ok {
		if s == "" {
			return unknownOperator
		}
		return s
	}
	return fmt.Sprint(v)
}
