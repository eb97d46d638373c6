package models

// NodeType identifies the behavior of a flow node. The set is closed:
// the interpreter dispatches exhaustively over these values.
type NodeType string

const (
	NodeTypeSendMessage       NodeType = "send_message"
	NodeTypeReact             NodeType = "react"
	NodeTypeComment           NodeType = "comment"
	NodeTypeWhatsAppList      NodeType = "whatsapp_list"
	NodeTypeCondition         NodeType = "condition"
	NodeTypeAction            NodeType = "action"
	NodeTypeRoundRobin        NodeType = "round_robin"
	NodeTypeWait              NodeType = "wait"
	NodeTypeTag               NodeType = "tag"
	NodeTypeMoveStage         NodeType = "move_stage"
	NodeTypeValidate          NodeType = "validate"
	NodeTypeGoto              NodeType = "goto"
	NodeTypeStop              NodeType = "stop"
	NodeTypeChangeResponsible NodeType = "change_responsible"
	NodeTypeAddNote           NodeType = "add_note"
)

// NodeTypes lists every known node type, in declaration order.
var NodeTypes = []NodeType{
	NodeTypeSendMessage,
	NodeTypeReact,
	NodeTypeComment,
	NodeTypeWhatsAppList,
	NodeTypeCondition,
	NodeTypeAction,
	NodeTypeRoundRobin,
	NodeTypeWait,
	NodeTypeTag,
	NodeTypeMoveStage,
	NodeTypeValidate,
	NodeTypeGoto,
	NodeTypeStop,
	NodeTypeChangeResponsible,
	NodeTypeAddNote,
}

// Known returns whether t is one of the closed node types.
func (t NodeType) Known() bool {
	for _, known := range NodeTypes {
		if t == known {
			return true
		}
	}

	return false
}

// Branching reports whether the node type owns true/false outcomes
// instead of a single default successor.
func (t NodeType) Branching() bool {
	return t == NodeTypeCondition || t == NodeTypeValidate
}

// Terminal reports whether the node type has no successors at all.
func (t NodeType) Terminal() bool {
	return t == NodeTypeStop
}

// FlowNode is one typed step in a flow. Data is a variant payload keyed
// by Type; the pkg/models decode helpers turn it into the per-type
// structs the interpreter consumes.
type FlowNode struct {
	ID   string         `json:"id"   validate:"required"`
	Type NodeType       `json:"type" validate:"required"`
	Name string         `json:"name"`
	Data map[string]any `json:"data"`
}

// Outcome keys the successor lookup for a node. Most node types only
// emit OutcomeDefault; condition and validate emit true/false.
type Outcome string

const (
	OutcomeDefault Outcome = "default"
	OutcomeTrue    Outcome = "true"
	OutcomeFalse   Outcome = "false"
)

// Edge is a directed connection from one node's outcome to another node.
type Edge struct {
	ID       string  `json:"id"`
	FromNode string  `json:"from_node" validate:"required"`
	Outcome  Outcome `json:"outcome"   validate:"required"`
	ToNode   string  `json:"to_node"   validate:"required"`
}
