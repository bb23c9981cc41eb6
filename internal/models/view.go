package models

import "time"

// QueryView — сводное представление всех событий одного запроса.
// Пересчитывается при каждом чтении и никогда не кэшируется.
type QueryView struct {
	QueryID            string        `json:"queryId"`
	Query              string        `json:"query,omitempty"`
	User               string        `json:"user,omitempty"`
	State              string        `json:"state,omitempty"`
	StartTime          time.Time     `json:"startTime"`
	EndTime            time.Time     `json:"endTime"`
	TotalExecutionTime *int64        `json:"totalExecutionTime,omitempty"`
	ErrorMessage       string        `json:"errorMessage,omitempty"`
	Root               *OperatorNode `json:"root,omitempty"`
	Events             []Event       `json:"events"`
}

// Типы узлов дерева выполнения
const (
	NodeTypeOperator = "OPERATOR"
	NodeTypeStage    = "STAGE"
)

// OperatorNode — узел дерева выполнения. Каждый узел принадлежит только
// своему родителю; ParentID заполняется лишь в резервной сборке.
type OperatorNode struct {
	ID           string `json:"id"`
	QueryID      string `json:"queryId,omitempty"`
	NodeType     string `json:"nodeType,omitempty"`
	OperatorType string `json:"operatorType,omitempty"`
	SourceSystem string `json:"sourceSystem,omitempty"`
	State        string `json:"state,omitempty"`

	ExecutionTime *int64 `json:"executionTime,omitempty"`
	CPUTime       *int64 `json:"cpuTime,omitempty"`
	WallTime      *int64 `json:"wallTime,omitempty"`
	InputRows     *int64 `json:"inputRows,omitempty"`
	OutputRows    *int64 `json:"outputRows,omitempty"`
	InputBytes    *int64 `json:"inputBytes,omitempty"`
	OutputBytes   *int64 `json:"outputBytes,omitempty"`
	MemoryBytes   *int64 `json:"memoryBytes,omitempty"`

	ErrorMessage string          `json:"errorMessage,omitempty"`
	Warnings     []string        `json:"warnings,omitempty"`
	Metadata     map[string]any  `json:"metadata,omitempty"`
	Children     []*OperatorNode `json:"children"`
	ParentID     string          `json:"parentId,omitempty"`
}

// Walk обходит дерево в глубину, начиная с n.
func (n *OperatorNode) Walk(fn func(*OperatorNode)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// PlanOutput — выходной столбец узла плана
type PlanOutput struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Summary — сводка по всем известным запросам
type Summary struct {
	Catalogs           int            `json:"catalogs"`
	Schemas            int            `json:"schemas"`
	Tables             int            `json:"tables"`
	TotalQueries       int            `json:"totalQueries"`
	CatalogQueryCounts map[string]int `json:"catalogQueryCounts"`
}
