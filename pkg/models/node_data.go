package models

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ConditionField selects a value from the lead snapshot.
type ConditionField string

const (
	FieldMessage     ConditionField = "message"
	FieldLastMessage ConditionField = "last_message"
	FieldTag         ConditionField = "tag"
	FieldStage       ConditionField = "stage"
	FieldValue       ConditionField = "value"
	FieldName        ConditionField = "name"
	FieldPhone       ConditionField = "phone"
	FieldCurrentTime ConditionField = "current_time"
)

// ConditionOperator is a case-insensitive text predicate. FieldCurrentTime
// ignores the operator and uses the implicit between semantics over an
// "HH:MM-HH:MM" value.
type ConditionOperator string

const (
	OperatorContains    ConditionOperator = "contains"
	OperatorEquals      ConditionOperator = "equals"
	OperatorStartsWith  ConditionOperator = "starts_with"
	OperatorEndsWith    ConditionOperator = "ends_with"
	OperatorNotContains ConditionOperator = "not_contains"
)

// ConditionData configures a condition node.
type ConditionData struct {
	Field    ConditionField    `json:"field"    validate:"required,oneof=message last_message tag stage value name phone current_time"`
	Operator ConditionOperator `json:"operator" validate:"omitempty,oneof=contains equals starts_with ends_with not_contains"`
	Value    string            `json:"value"    validate:"required"`
}

// WaitMode selects how a wait node suspends.
type WaitMode string

const (
	WaitModeTimer         WaitMode = "timer"
	WaitModeMessage       WaitMode = "message"
	WaitModeBusinessHours WaitMode = "business_hours"
)

// Weekday names accepted in WaitData.Days.
var Weekdays = []string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// WaitData configures a wait node. Timer mode reads Hours/Minutes/Seconds;
// business_hours mode reads Days/Start/End (local "HH:MM" times).
type WaitData struct {
	Mode    WaitMode `json:"wait_mode" validate:"required,oneof=timer message business_hours"`
	Hours   int      `json:"hours"     validate:"min=0"`
	Minutes int      `json:"minutes"   validate:"min=0"`
	Seconds int      `json:"seconds"   validate:"min=0"`
	Days    []string `json:"days"      validate:"omitempty,dive,oneof=sun mon tue wed thu fri sat"`
	Start   string   `json:"start"     validate:"omitempty"`
	End     string   `json:"end"       validate:"omitempty"`
}

// AssignMode selects how an assignment node resolves its target user.
type AssignMode string

const (
	AssignModeSpecific   AssignMode = "specific"
	AssignModeRoundRobin AssignMode = "round_robin"
)

// AssignData configures action, round_robin and change_responsible nodes.
type AssignData struct {
	Mode   AssignMode `json:"mode"    validate:"required,oneof=specific round_robin"`
	UserID string     `json:"user_id" validate:"required_if=Mode specific"`
}

// TagData configures a tag node.
type TagData struct {
	TagID string `json:"tag_id" validate:"required"`
}

// StageData configures a move_stage node.
type StageData struct {
	StageID string `json:"stage_id" validate:"required"`
}

// ValidationType classifies the latest inbound message.
type ValidationType string

const (
	ValidationNumber ValidationType = "number"
	ValidationEmail  ValidationType = "email"
	ValidationCPF    ValidationType = "cpf"
	ValidationText   ValidationType = "text"
	ValidationAny    ValidationType = "any"
)

// ValidateData configures a validate node.
type ValidateData struct {
	ValidationType ValidationType `json:"validation_type" validate:"required,oneof=number email cpf text any"`
}

// GotoData configures a goto node. Target edges may legally form cycles.
type GotoData struct {
	TargetNodeID string `json:"target_node_id" validate:"required"`
}

// MessageData configures send_message, react, comment and whatsapp_list
// nodes. Content is passed to the messaging collaborator verbatim.
type MessageData struct {
	Content string `json:"content" validate:"required"`
}

// NoteData configures an add_note node.
type NoteData struct {
	Text string `json:"text" validate:"required"`
}

var nodeDataValidator = validator.New()

// DecodeNodeData unmarshals a node's variant payload into dst and runs
// struct validation. dst must be a pointer to one of the *Data structs.
func DecodeNodeData(node *FlowNode, dst any) error {
	raw, err := json.Marshal(node.Data)
	if err != nil {
		return fmt.Errorf("node %s: encode data: %w", node.ID, err)
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("node %s: decode data: %w", node.ID, err)
	}

	if err := nodeDataValidator.Struct(dst); err != nil {
		return fmt.Errorf("node %s: invalid data: %w", node.ID, err)
	}

	return nil
}
