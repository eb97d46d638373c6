// Package graph compiles a flow definition into the validated,
// immutable representation the interpreter executes against.
package graph

import (
	"errors"
	"fmt"

	"github.com/zapfy/botflow/pkg/models"
)

// Validation error categories reported at publish time. The interpreter
// never re-validates: it trusts a compiled graph.
var (
	ErrMissingBranch     = errors.New("missing branch")
	ErrDanglingEdge      = errors.New("dangling edge")
	ErrCyclicDefaultPath = errors.New("cyclic default path")
	ErrUnknownEntryNode  = errors.New("unknown entry node")
)

type successorKey struct {
	nodeID  string
	outcome models.Outcome
}

// Graph is the compiled, read-only form of a published flow. It is
// shared across all executions referencing that flow version.
type Graph struct {
	flowID     string
	version    int
	entry      string
	nodes      map[string]*models.FlowNode
	successors map[successorKey]string
}

// Compile validates the flow and builds the O(1) successor lookup.
func Compile(flow *models.Flow) (*Graph, error) {
	g := &Graph{
		flowID:     flow.ID,
		version:    flow.Version,
		entry:      flow.EntryNodeID,
		nodes:      make(map[string]*models.FlowNode, len(flow.Nodes)),
		successors: make(map[successorKey]string, len(flow.Edges)),
	}

	for _, node := range flow.Nodes {
		if node.ID == "" {
			return nil, errors.New("found node with empty id")
		}

		if !node.Type.Known() {
			return nil, fmt.Errorf("node %s: unknown type %q", node.ID, node.Type)
		}

		if _, dup := g.nodes[node.ID]; dup {
			return nil, fmt.Errorf("duplicate node id %s", node.ID)
		}

		g.nodes[node.ID] = node
	}

	if _, ok := g.nodes[flow.EntryNodeID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntryNode, flow.EntryNodeID)
	}

	for _, edge := range flow.Edges {
		if _, ok := g.nodes[edge.FromNode]; !ok {
			return nil, fmt.Errorf("%w: edge %s from unknown node %s", ErrDanglingEdge, edge.ID, edge.FromNode)
		}

		if _, ok := g.nodes[edge.ToNode]; !ok {
			return nil, fmt.Errorf("%w: edge %s to unknown node %s", ErrDanglingEdge, edge.ID, edge.ToNode)
		}

		key := successorKey{nodeID: edge.FromNode, outcome: edge.Outcome}
		if _, dup := g.successors[key]; dup {
			return nil, fmt.Errorf("node %s: duplicate %s edge", edge.FromNode, edge.Outcome)
		}

		g.successors[key] = edge.ToNode
	}

	if err := g.checkBranches(); err != nil {
		return nil, err
	}

	if err := g.checkDefaultAcyclic(); err != nil {
		return nil, err
	}

	return g, nil
}

// checkBranches enforces the successor invariant per node type:
// branching nodes own exactly true and false, stop owns nothing, and
// every other node has a default successor (goto's jump target is
// carried in its data, not as an edge).
func (g *Graph) checkBranches() error {
	for id, node := range g.nodes {
		hasDefault := g.has(id, models.OutcomeDefault)
		hasTrue := g.has(id, models.OutcomeTrue)
		hasFalse := g.has(id, models.OutcomeFalse)

		switch {
		case node.Type.Branching():
			if !hasTrue || !hasFalse {
				return fmt.Errorf("%w: node %s needs true and false successors", ErrMissingBranch, id)
			}

			if hasDefault {
				return fmt.Errorf("node %s: branching node cannot have a default successor", id)
			}
		case node.Type.Terminal():
			if hasDefault || hasTrue || hasFalse {
				return fmt.Errorf("node %s: stop node cannot have successors", id)
			}
		case node.Type == models.NodeTypeGoto:
			var data models.GotoData
			if err := models.DecodeNodeData(node, &data); err != nil {
				return err
			}

			if _, ok := g.nodes[data.TargetNodeID]; !ok {
				return fmt.Errorf("%w: goto %s targets unknown node %s", ErrDanglingEdge, id, data.TargetNodeID)
			}
		default:
			if !hasDefault {
				return fmt.Errorf("%w: node %s has no default successor", ErrMissingBranch, id)
			}
		}
	}

	return nil
}

// checkDefaultAcyclic rejects cycles over default/true/false edges.
// Goto jumps are exempt: cycles through them are a deliberate feature
// guarded at runtime by the loop limit.
func (g *Graph) checkDefaultAcyclic() error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)

	state := make(map[string]int, len(g.nodes))

	var visit func(id string) error

	visit = func(id string) error {
		switch state[id] {
		case visiting:
			return fmt.Errorf("%w: through node %s", ErrCyclicDefaultPath, id)
		case done:
			return nil
		}

		state[id] = visiting

		for _, outcome := range []models.Outcome{models.OutcomeDefault, models.OutcomeTrue, models.OutcomeFalse} {
			if next, ok := g.successors[successorKey{nodeID: id, outcome: outcome}]; ok {
				if err := visit(next); err != nil {
					return err
				}
			}
		}

		state[id] = done

		return nil
	}

	for id := range g.nodes {
		if err := visit(id); err != nil {
			return err
		}
	}

	return nil
}

func (g *Graph) has(nodeID string, outcome models.Outcome) bool {
	_, ok := g.successors[successorKey{nodeID: nodeID, outcome: outcome}]

	return ok
}

// FlowID returns the id of the flow this graph was compiled from.
func (g *Graph) FlowID() string { return g.flowID }

// Version returns the flow version this graph was compiled from.
func (g *Graph) Version() int { return g.version }

// Entry returns the designated entry node id.
func (g *Graph) Entry() string { return g.entry }

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *models.FlowNode {
	return g.nodes[id]
}

// Next resolves the successor of (nodeID, outcome) in O(1).
func (g *Graph) Next(nodeID string, outcome models.Outcome) (string, bool) {
	next, ok := g.successors[successorKey{nodeID: nodeID, outcome: outcome}]

	return next, ok
}
