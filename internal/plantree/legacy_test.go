package plantree

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrinoEventPump/internal/models"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func int64p(v int64) *int64 { return &v }

func legacyEvents() []models.Event {
	return []models.Event{
		{
			QueryID:       "q7",
			EventType:     "CREATED",
			Timestamp:     t0,
			State:         "QUEUED",
			Catalog:       "postgres",
			ExecutionTime: int64p(10),
			StageStats:    map[string]any{"operatorType": "Stage0"},
			Metadata:      map[string]any{"source": "cli"},
		},
		{
			QueryID:   "q7",
			EventType: "COMPLETED",
			Timestamp: t0.Add(time.Second),
			State:     "FINISHED",
			OperatorStats: map[string]any{
				"children": []any{
					map[string]any{"operatorType": "HashJoin", "children": []any{
						map[string]any{"operatorType": "TableScan"},
					}},
					"garbage",
					map[string]any{"rows": 5},
				},
			},
		},
	}
}

func TestBuildLegacy_Shape(t *testing.T) {
	root := BuildLegacy(legacyEvents())
	require.NotNil(t, root)

	assert.Equal(t, "q7-CREATED-"+itoa(t0.UnixMilli()), root.ID)
	assert.Equal(t, models.NodeTypeStage, root.NodeType)
	assert.Equal(t, "Stage0", root.OperatorType)
	assert.Equal(t, "postgres", root.SourceSystem)
	assert.Equal(t, int64(10), *root.ExecutionTime)
	assert.Nil(t, root.CPUTime)
	assert.Equal(t, "cli", root.Metadata["source"])

	// Узел второго события не присоединяется к корню
	assert.Empty(t, root.Children)
}

func TestBuildLegacy_OperatorChildren(t *testing.T) {
	events := legacyEvents()
	root := BuildLegacy(events[1:])
	require.NotNil(t, root)

	assert.Equal(t, models.NodeTypeOperator, root.NodeType)
	assert.Equal(t, "UNKNOWN", root.OperatorType)
	require.Len(t, root.Children, 2)

	join := root.Children[0]
	assert.Equal(t, "HashJoin", join.OperatorType)
	assert.Equal(t, root.ID, join.ParentID)
	assert.True(t, strings.HasPrefix(join.ID, root.ID+"-child-"))
	require.Len(t, join.Children, 1)
	assert.Equal(t, "TableScan", join.Children[0].OperatorType)
	assert.Equal(t, join.ID, join.Children[0].ParentID)

	assert.Equal(t, "UNKNOWN", root.Children[1].OperatorType)
	assert.NotEqual(t, root.Children[0].ID, root.Children[1].ID)
}

func TestBuildLegacy_RepeatedTripleMerges(t *testing.T) {
	ev := models.Event{
		QueryID:       "q8",
		EventType:     "RUNNING",
		Timestamp:     t0,
		OperatorStats: map[string]any{"children": []any{map[string]any{"operatorType": "A"}}},
	}
	again := ev
	again.OperatorStats = map[string]any{"children": []any{map[string]any{"operatorType": "B"}}}

	root := BuildLegacy([]models.Event{ev, again})
	require.Len(t, root.Children, 2)
	assert.Equal(t, "A", root.Children[0].OperatorType)
	assert.Equal(t, "B", root.Children[1].OperatorType)
	assert.NotEqual(t, root.Children[0].ID, root.Children[1].ID)
}

func TestBuildLegacy_Deterministic(t *testing.T) {
	a, err := json.Marshal(BuildLegacy(legacyEvents()[1:]))
	require.NoError(t, err)
	b, err := json.Marshal(BuildLegacy(legacyEvents()[1:]))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestBuildLegacy_DoesNotMutateEvents(t *testing.T) {
	events := legacyEvents()
	root := BuildLegacy(events)
	root.Metadata["extra"] = true
	_, ok := events[0].Metadata["extra"]
	assert.False(t, ok)
}

func TestBuildLegacy_Empty(t *testing.T) {
	assert.Nil(t, BuildLegacy(nil))
}

func TestSelect(t *testing.T) {
	good := `{"0":{"id":"0","name":"TableScan","descriptor":{"table":"postgres:public.customers"}}}`
	events := []models.Event{
		{QueryID: "q1", EventType: "CREATED", Timestamp: t0, State: "QUEUED"},
		{QueryID: "q1", EventType: "RUNNING", Timestamp: t0.Add(time.Second), JSONPlan: "{broken"},
		{QueryID: "q1", EventType: "COMPLETED", Timestamp: t0.Add(2 * time.Second), JSONPlan: good, State: "FINISHED", Catalog: "postgres"},
	}

	root := Select(events, nil)
	require.NotNil(t, root)
	assert.Equal(t, "TableScan", root.OperatorType)
	root.Walk(func(n *models.OperatorNode) {
		assert.Equal(t, "q1", n.QueryID)
		assert.Equal(t, "FINISHED", n.State)
		assert.Equal(t, "postgres", n.SourceSystem)
	})
}

func TestSelect_FallsBackToLegacy(t *testing.T) {
	events := []models.Event{
		{QueryID: "q2", EventType: "CREATED", Timestamp: t0, JSONPlan: "   "},
		{QueryID: "q2", EventType: "RUNNING", Timestamp: t0.Add(time.Second), JSONPlan: "[]"},
	}
	root := Select(events, nil)
	require.NotNil(t, root)
	assert.Equal(t, "q2-CREATED-"+itoa(t0.UnixMilli()), root.ID)
}

func TestEnrich(t *testing.T) {
	root := &models.OperatorNode{ID: "a", Children: []*models.OperatorNode{
		{ID: "b", Children: []*models.OperatorNode{{ID: "c"}}},
	}}
	Enrich(root, models.Event{QueryID: "q3", State: "RUNNING", Catalog: "hive"})

	var seen []string
	root.Walk(func(n *models.OperatorNode) {
		seen = append(seen, n.ID)
		assert.Equal(t, "q3", n.QueryID)
		assert.Equal(t, "RUNNING", n.State)
		assert.Equal(t, "hive", n.SourceSystem)
	})
	assert.Equal(t, []string{"a", "b", "c"}, seen)
}

func itoa(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
