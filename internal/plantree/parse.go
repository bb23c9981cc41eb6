package plantree

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"TrinoEventPump/internal/models"
)

var (
	ErrMalformedPlan = errors.New("malformed plan")
	ErrEmptyPlan     = errors.New("empty plan")
)

// rawNode — узел JSON-плана Trino
type rawNode struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Descriptor map[string]any      `json:"descriptor"`
	Outputs    []models.PlanOutput `json:"outputs"`
	Details    []string            `json:"details"`
	Estimates  []rawEstimate       `json:"estimates"`
	Children   []rawNode           `json:"children"`
}

// rawEstimate — оценка стоимости. Значения приходят числом или строкой "NaN"
// и сохраняются как есть (json.Number или string), без приведения к float64.
type rawEstimate struct {
	OutputRowCount    any `json:"outputRowCount"`
	OutputSizeInBytes any `json:"outputSizeInBytes"`
	CPUCost           any `json:"cpuCost"`
	MemoryCost        any `json:"memoryCost"`
	NetworkCost       any `json:"networkCost"`
}

// decodeFragments разбирает план вида {"0": {...}, "1": {...}}
func decodeFragments(planJSON string) (map[string]rawNode, error) {
	dec := json.NewDecoder(strings.NewReader(planJSON))
	dec.UseNumber()

	var fragments map[string]rawNode
	if err := dec.Decode(&fragments); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPlan, err)
	}
	// после объекта плана допустимы только пробельные символы
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after plan", ErrMalformedPlan)
	}
	if len(fragments) == 0 {
		return nil, ErrEmptyPlan
	}
	return fragments, nil
}

// Parse строит дерево операторов из корневого фрагмента JSON-плана.
func Parse(planJSON string) (*models.OperatorNode, error) {
	fragments, err := decodeFragments(planJSON)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(fragments))
	for id := range fragments {
		ids = append(ids, id)
	}
	rootID := RootFragment(ids)
	return convert(fragments[rootID], rootID), nil
}

// Operators — плоский список имён операторов всех фрагментов, в глубину.
func Operators(planJSON string) ([]string, error) {
	fragments, err := decodeFragments(planJSON)
	if err != nil {
		return nil, err
	}
	var ops []string
	var collect func(n rawNode)
	collect = func(n rawNode) {
		ops = append(ops, n.Name)
		for _, c := range n.Children {
			collect(c)
		}
	}
	for _, id := range fragmentOrder(fragments) {
		collect(fragments[id])
	}
	return ops, nil
}

// RootFragment выбирает корневой фрагмент: "0", если он есть, иначе наименьший id.
func RootFragment(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	sorted := append([]string(nil), ids...)
	sortFragmentIDs(sorted)
	return sorted[0]
}

func fragmentOrder(fragments map[string]rawNode) []string {
	ids := make([]string, 0, len(fragments))
	for id := range fragments {
		ids = append(ids, id)
	}
	sortFragmentIDs(ids)
	return ids
}

func sortFragmentIDs(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		if ids[i] == "0" || ids[j] == "0" {
			return ids[i] == "0" && ids[j] != "0"
		}
		return fragmentLess(ids[i], ids[j])
	})
}

// fragmentLess: числовые id по значению и раньше нечисловых, остальные лексикографически
func fragmentLess(a, b string) bool {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	switch {
	case aerr == nil && berr == nil:
		if ai != bi {
			return ai < bi
		}
		return a < b
	case aerr == nil:
		return true
	case berr == nil:
		return false
	default:
		return a < b
	}
}

func convert(n rawNode, fragmentID string) *models.OperatorNode {
	meta := map[string]any{"fragmentId": fragmentID}
	if len(n.Descriptor) > 0 {
		meta["descriptor"] = n.Descriptor
		if n.Name == "TableScan" {
			if t, ok := n.Descriptor["table"]; ok {
				meta["table"] = tableName(t)
			}
		}
	}
	if len(n.Outputs) > 0 {
		meta["outputs"] = n.Outputs
	}
	if len(n.Details) > 0 {
		meta["details"] = n.Details
	}
	if len(n.Estimates) > 0 {
		e := n.Estimates[0]
		meta["estimates"] = map[string]any{
			"outputRowCount":    e.OutputRowCount,
			"outputSizeInBytes": e.OutputSizeInBytes,
			"cpuCost":           e.CPUCost,
			"memoryCost":        e.MemoryCost,
			"networkCost":       e.NetworkCost,
		}
	}

	node := &models.OperatorNode{
		ID:           n.ID,
		NodeType:     models.NodeTypeOperator,
		OperatorType: n.Name,
		Metadata:     meta,
		Children:     make([]*models.OperatorNode, 0, len(n.Children)),
	}
	for _, c := range n.Children {
		node.Children = append(node.Children, convert(c, fragmentID))
	}
	return node
}

func tableName(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
