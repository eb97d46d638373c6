package condition_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zapfy/botflow/pkg/condition"
	"github.com/zapfy/botflow/pkg/models"
)

func at(hour, minute int) time.Time {
	return time.Date(2025, 3, 10, hour, minute, 0, 0, time.UTC)
}

func TestEvaluate_TextOperators(t *testing.T) {
	t.Parallel()

	snapshot := &models.LeadSnapshot{Message: "Qual o PREÇO do plano?"}

	tests := []struct {
		name     string
		operator models.ConditionOperator
		value    string
		expected bool
	}{
		{"contains matches case-insensitively", models.OperatorContains, "preço", true},
		{"contains miss", models.OperatorContains, "entrega", false},
		{"not_contains is the negation on a hit", models.OperatorNotContains, "preço", false},
		{"not_contains is the negation on a miss", models.OperatorNotContains, "entrega", true},
		{"equals requires the whole message", models.OperatorEquals, "qual o preço do plano?", true},
		{"equals rejects partial", models.OperatorEquals, "preço", false},
		{"starts_with", models.OperatorStartsWith, "qual", true},
		{"starts_with miss", models.OperatorStartsWith, "plano", false},
		{"ends_with", models.OperatorEndsWith, "plano?", true},
		{"ends_with miss", models.OperatorEndsWith, "qual", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data := models.ConditionData{Field: models.FieldMessage, Operator: tt.operator, Value: tt.value}
			assert.Equal(t, tt.expected, condition.Evaluate(data, snapshot, at(10, 0)))
		})
	}
}

func TestEvaluate_NegationPairing(t *testing.T) {
	t.Parallel()

	// contains and not_contains must disagree on every input.
	messages := []string{"", "preço", "PREÇO alto", "bom dia", "  preço  "}

	for _, message := range messages {
		snapshot := &models.LeadSnapshot{Message: message}
		contains := condition.Evaluate(models.ConditionData{
			Field: models.FieldMessage, Operator: models.OperatorContains, Value: "preço",
		}, snapshot, at(10, 0))
		notContains := condition.Evaluate(models.ConditionData{
			Field: models.FieldMessage, Operator: models.OperatorNotContains, Value: "preço",
		}, snapshot, at(10, 0))

		assert.NotEqual(t, contains, notContains, "message %q", message)
	}
}

func TestEvaluate_SnapshotFields(t *testing.T) {
	t.Parallel()

	snapshot := &models.LeadSnapshot{
		Name:        "Maria Silva",
		Phone:       "+5511999990000",
		Stage:       "negotiation",
		Value:       "1500",
		Tags:        []string{"vip", "inbound"},
		Message:     "oi",
		LastMessage: "qual o preço?",
	}

	tests := []struct {
		field    models.ConditionField
		value    string
		expected bool
	}{
		{models.FieldName, "maria", true},
		{models.FieldPhone, "11999", true},
		{models.FieldStage, "negotiation", true},
		{models.FieldValue, "1500", true},
		{models.FieldTag, "vip", true},
		{models.FieldTag, "outbound", false},
		{models.FieldLastMessage, "preço", true},
	}

	for _, tt := range tests {
		data := models.ConditionData{Field: tt.field, Operator: models.OperatorContains, Value: tt.value}
		assert.Equal(t, tt.expected, condition.Evaluate(data, snapshot, at(10, 0)), "field %s value %q", tt.field, tt.value)
	}
}

func TestEvaluate_FailsClosed(t *testing.T) {
	t.Parallel()

	data := models.ConditionData{Field: models.FieldMessage, Operator: models.OperatorContains, Value: "x"}
	assert.False(t, condition.Evaluate(data, nil, at(10, 0)), "nil snapshot")

	data = models.ConditionData{Field: "custom_field", Operator: models.OperatorContains, Value: "x"}
	assert.False(t, condition.Evaluate(data, &models.LeadSnapshot{}, at(10, 0)), "unknown field")

	data = models.ConditionData{Field: models.FieldMessage, Operator: "regex", Value: "x"}
	assert.False(t, condition.Evaluate(data, &models.LeadSnapshot{Message: "x"}, at(10, 0)), "unknown operator")
}

func TestEvaluate_CurrentTimeHalfOpen(t *testing.T) {
	t.Parallel()

	data := models.ConditionData{Field: models.FieldCurrentTime, Value: "09:00-18:00"}

	assert.True(t, condition.Evaluate(data, nil, at(9, 0)), "start is inclusive")
	assert.True(t, condition.Evaluate(data, nil, at(12, 30)))
	assert.True(t, condition.Evaluate(data, nil, at(17, 59)))
	assert.False(t, condition.Evaluate(data, nil, at(18, 0)), "end is exclusive")
	assert.False(t, condition.Evaluate(data, nil, at(8, 59)))
}

func TestEvaluate_CurrentTimeWrapsMidnight(t *testing.T) {
	t.Parallel()

	data := models.ConditionData{Field: models.FieldCurrentTime, Value: "22:00-06:00"}

	assert.True(t, condition.Evaluate(data, nil, at(23, 0)))
	assert.True(t, condition.Evaluate(data, nil, at(5, 0)))
	assert.True(t, condition.Evaluate(data, nil, at(22, 0)), "start is inclusive")
	assert.False(t, condition.Evaluate(data, nil, at(6, 0)), "end is exclusive")
	assert.False(t, condition.Evaluate(data, nil, at(12, 0)))
}

func TestEvaluate_CurrentTimeMalformedIsFalse(t *testing.T) {
	t.Parallel()

	for _, literal := range []string{"", "9-18", "09:00", "09:00-25:00", "ab:cd-ef:gh", "09:00-09:00"} {
		data := models.ConditionData{Field: models.FieldCurrentTime, Value: literal}
		assert.False(t, condition.Evaluate(data, nil, at(10, 0)), "literal %q", literal)
	}
}
