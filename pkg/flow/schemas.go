package flow

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/zapfy/botflow/pkg/models"
)

var messageDataSchema = map[string]any{
	"type":                 "object",
	"required":             []string{"content"},
	"additionalProperties": false,
	"properties": map[string]any{
		"content": map[string]any{"type": "string", "minLength": 1},
	},
}

var assignDataSchema = map[string]any{
	"type":                 "object",
	"required":             []string{"mode"},
	"additionalProperties": false,
	"properties": map[string]any{
		"mode":    map[string]any{"type": "string", "enum": []string{"specific", "round_robin"}},
		"user_id": map[string]any{"type": "string"},
	},
}

// nodeDataSchemas holds the publish-time JSON schema for each node type's
// data payload. Stop nodes carry no data.
var nodeDataSchemas = map[models.NodeType]map[string]any{
	models.NodeTypeSendMessage:  messageDataSchema,
	models.NodeTypeReact:        messageDataSchema,
	models.NodeTypeComment:      messageDataSchema,
	models.NodeTypeWhatsAppList: messageDataSchema,
	models.NodeTypeCondition: {
		"type":                 "object",
		"required":             []string{"field", "value"},
		"additionalProperties": false,
		"properties": map[string]any{
			"field": map[string]any{
				"type": "string",
				"enum": []string{"message", "last_message", "tag", "stage", "value", "name", "phone", "current_time"},
			},
			"operator": map[string]any{
				"type": "string",
				"enum": []string{"contains", "equals", "starts_with", "ends_with", "not_contains"},
			},
			"value": map[string]any{"type": "string", "minLength": 1},
		},
	},
	models.NodeTypeAction:            assignDataSchema,
	models.NodeTypeRoundRobin:        assignDataSchema,
	models.NodeTypeChangeResponsible: assignDataSchema,
	models.NodeTypeWait: {
		"type":                 "object",
		"required":             []string{"wait_mode"},
		"additionalProperties": false,
		"properties": map[string]any{
			"wait_mode": map[string]any{"type": "string", "enum": []string{"timer", "message", "business_hours"}},
			"hours":     map[string]any{"type": "integer", "minimum": 0},
			"minutes":   map[string]any{"type": "integer", "minimum": 0},
			"seconds":   map[string]any{"type": "integer", "minimum": 0},
			"days": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string", "enum": models.Weekdays},
			},
			"start": map[string]any{"type": "string", "pattern": "^([01][0-9]|2[0-3]):[0-5][0-9]$"},
			"end":   map[string]any{"type": "string", "pattern": "^([01][0-9]|2[0-3]):[0-5][0-9]$"},
		},
	},
	models.NodeTypeTag: {
		"type":                 "object",
		"required":             []string{"tag_id"},
		"additionalProperties": false,
		"properties": map[string]any{
			"tag_id": map[string]any{"type": "string", "minLength": 1},
		},
	},
	models.NodeTypeMoveStage: {
		"type":                 "object",
		"required":             []string{"stage_id"},
		"additionalProperties": false,
		"properties": map[string]any{
			"stage_id": map[string]any{"type": "string", "minLength": 1},
		},
	},
	models.NodeTypeValidate: {
		"type":                 "object",
		"required":             []string{"validation_type"},
		"additionalProperties": false,
		"properties": map[string]any{
			"validation_type": map[string]any{"type": "string", "enum": []string{"number", "email", "cpf", "text", "any"}},
		},
	},
	models.NodeTypeGoto: {
		"type":                 "object",
		"required":             []string{"target_node_id"},
		"additionalProperties": false,
		"properties": map[string]any{
			"target_node_id": map[string]any{"type": "string", "minLength": 1},
		},
	},
	models.NodeTypeStop: {
		"type": "object",
	},
	models.NodeTypeAddNote: {
		"type":                 "object",
		"required":             []string{"text"},
		"additionalProperties": false,
		"properties": map[string]any{
			"text": map[string]any{"type": "string", "minLength": 1},
		},
	},
}

// validateNodeData checks a node's data payload against the schema for
// its type.
func validateNodeData(node *models.FlowNode) error {
	schema, ok := nodeDataSchemas[node.Type]
	if !ok {
		return fmt.Errorf("node %s: %w: unknown node type %q", node.ID, ErrInvalidNodeData, node.Type)
	}

	data := node.Data
	if data == nil {
		data = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("node %s: %w", node.ID, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, resultError := range result.Errors() {
			messages = append(messages, resultError.String())
		}

		return fmt.Errorf("node %s: %w: %s", node.ID, ErrInvalidNodeData, strings.Join(messages, "; "))
	}

	return nil
}
