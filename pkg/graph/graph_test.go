package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapfy/botflow/pkg/graph"
	"github.com/zapfy/botflow/pkg/models"
)

func linearFlow() *models.Flow {
	return &models.Flow{
		ID:          "flow-1",
		Version:     1,
		EntryNodeID: "hello",
		Nodes: []*models.FlowNode{
			{ID: "hello", Type: models.NodeTypeSendMessage, Data: map[string]any{"content": "oi"}},
			{ID: "end", Type: models.NodeTypeStop},
		},
		Edges: []*models.Edge{
			{ID: "e1", FromNode: "hello", Outcome: models.OutcomeDefault, ToNode: "end"},
		},
	}
}

func branchingFlow() *models.Flow {
	return &models.Flow{
		ID:          "flow-2",
		Version:     3,
		EntryNodeID: "check",
		Nodes: []*models.FlowNode{
			{ID: "check", Type: models.NodeTypeCondition, Data: map[string]any{"field": "message", "operator": "contains", "value": "x"}},
			{ID: "yes", Type: models.NodeTypeSendMessage, Data: map[string]any{"content": "sim"}},
			{ID: "no", Type: models.NodeTypeSendMessage, Data: map[string]any{"content": "não"}},
			{ID: "end", Type: models.NodeTypeStop},
		},
		Edges: []*models.Edge{
			{ID: "e1", FromNode: "check", Outcome: models.OutcomeTrue, ToNode: "yes"},
			{ID: "e2", FromNode: "check", Outcome: models.OutcomeFalse, ToNode: "no"},
			{ID: "e3", FromNode: "yes", Outcome: models.OutcomeDefault, ToNode: "end"},
			{ID: "e4", FromNode: "no", Outcome: models.OutcomeDefault, ToNode: "end"},
		},
	}
}

func TestCompile_LinearFlow(t *testing.T) {
	t.Parallel()

	g, err := graph.Compile(linearFlow())
	require.NoError(t, err)

	assert.Equal(t, "flow-1", g.FlowID())
	assert.Equal(t, 1, g.Version())
	assert.Equal(t, "hello", g.Entry())
	require.NotNil(t, g.Node("hello"))
	assert.Nil(t, g.Node("missing"))

	next, ok := g.Next("hello", models.OutcomeDefault)
	require.True(t, ok)
	assert.Equal(t, "end", next)

	_, ok = g.Next("end", models.OutcomeDefault)
	assert.False(t, ok)
}

func TestCompile_BranchingFlow(t *testing.T) {
	t.Parallel()

	g, err := graph.Compile(branchingFlow())
	require.NoError(t, err)

	yes, ok := g.Next("check", models.OutcomeTrue)
	require.True(t, ok)
	assert.Equal(t, "yes", yes)

	no, ok := g.Next("check", models.OutcomeFalse)
	require.True(t, ok)
	assert.Equal(t, "no", no)
}

func TestCompile_UnknownEntryNode(t *testing.T) {
	t.Parallel()

	flow := linearFlow()
	flow.EntryNodeID = "nowhere"

	_, err := graph.Compile(flow)
	assert.ErrorIs(t, err, graph.ErrUnknownEntryNode)
}

func TestCompile_DanglingEdges(t *testing.T) {
	t.Parallel()

	flow := linearFlow()
	flow.Edges = append(flow.Edges, &models.Edge{ID: "e2", FromNode: "end", Outcome: models.OutcomeDefault, ToNode: "ghost"})

	_, err := graph.Compile(flow)
	assert.ErrorIs(t, err, graph.ErrDanglingEdge)

	flow = linearFlow()
	flow.Edges[0].FromNode = "ghost"

	_, err = graph.Compile(flow)
	assert.ErrorIs(t, err, graph.ErrDanglingEdge)
}

func TestCompile_MissingBranches(t *testing.T) {
	t.Parallel()

	flow := branchingFlow()
	flow.Edges = flow.Edges[1:] // drop the true edge

	_, err := graph.Compile(flow)
	assert.ErrorIs(t, err, graph.ErrMissingBranch)

	flow = linearFlow()
	flow.Edges = nil // message node loses its default successor

	_, err = graph.Compile(flow)
	assert.ErrorIs(t, err, graph.ErrMissingBranch)
}

func TestCompile_BranchingNodeRejectsDefaultEdge(t *testing.T) {
	t.Parallel()

	flow := branchingFlow()
	flow.Edges = append(flow.Edges, &models.Edge{ID: "e5", FromNode: "check", Outcome: models.OutcomeDefault, ToNode: "end"})

	_, err := graph.Compile(flow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot have a default successor")
}

func TestCompile_StopNodeRejectsSuccessors(t *testing.T) {
	t.Parallel()

	flow := linearFlow()
	flow.Edges = append(flow.Edges, &models.Edge{ID: "e2", FromNode: "end", Outcome: models.OutcomeDefault, ToNode: "hello"})

	_, err := graph.Compile(flow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop node cannot have successors")
}

func TestCompile_DuplicateNodeAndEdge(t *testing.T) {
	t.Parallel()

	flow := linearFlow()
	flow.Nodes = append(flow.Nodes, &models.FlowNode{ID: "hello", Type: models.NodeTypeStop})

	_, err := graph.Compile(flow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate node id")

	flow = linearFlow()
	flow.Edges = append(flow.Edges, &models.Edge{ID: "e2", FromNode: "hello", Outcome: models.OutcomeDefault, ToNode: "end"})

	_, err = graph.Compile(flow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate default edge")
}

func TestCompile_UnknownNodeType(t *testing.T) {
	t.Parallel()

	flow := linearFlow()
	flow.Nodes[0].Type = "carrier_pigeon"

	_, err := graph.Compile(flow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")
}

func TestCompile_CyclicDefaultPath(t *testing.T) {
	t.Parallel()

	flow := &models.Flow{
		ID:          "flow-cycle",
		Version:     1,
		EntryNodeID: "a",
		Nodes: []*models.FlowNode{
			{ID: "a", Type: models.NodeTypeSendMessage, Data: map[string]any{"content": "a"}},
			{ID: "b", Type: models.NodeTypeSendMessage, Data: map[string]any{"content": "b"}},
		},
		Edges: []*models.Edge{
			{ID: "e1", FromNode: "a", Outcome: models.OutcomeDefault, ToNode: "b"},
			{ID: "e2", FromNode: "b", Outcome: models.OutcomeDefault, ToNode: "a"},
		},
	}

	_, err := graph.Compile(flow)
	assert.ErrorIs(t, err, graph.ErrCyclicDefaultPath)
}

func TestCompile_GotoCycleIsAllowed(t *testing.T) {
	t.Parallel()

	flow := &models.Flow{
		ID:          "flow-goto",
		Version:     1,
		EntryNodeID: "ask",
		Nodes: []*models.FlowNode{
			{ID: "ask", Type: models.NodeTypeSendMessage, Data: map[string]any{"content": "tente de novo"}},
			{ID: "again", Type: models.NodeTypeGoto, Data: map[string]any{"target_node_id": "ask"}},
		},
		Edges: []*models.Edge{
			{ID: "e1", FromNode: "ask", Outcome: models.OutcomeDefault, ToNode: "again"},
		},
	}

	_, err := graph.Compile(flow)
	assert.NoError(t, err, "cycles through goto targets are a runtime concern")
}

func TestCompile_GotoTargetMustExist(t *testing.T) {
	t.Parallel()

	flow := &models.Flow{
		ID:          "flow-goto",
		Version:     1,
		EntryNodeID: "again",
		Nodes: []*models.FlowNode{
			{ID: "again", Type: models.NodeTypeGoto, Data: map[string]any{"target_node_id": "ghost"}},
		},
	}

	_, err := graph.Compile(flow)
	assert.ErrorIs(t, err, graph.ErrDanglingEdge)
}
