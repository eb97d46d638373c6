// Package condition evaluates a single node predicate against a lead
// snapshot. Evaluation is pure and fails closed: a missing field or a
// malformed value yields false instead of halting the flow.
package condition

import (
	"strings"
	"time"

	"github.com/zapfy/botflow/pkg/models"
)

// Evaluate applies the predicate in data to the snapshot. now is only
// consulted for the current_time field, which uses the implicit between
// operator over an "HH:MM-HH:MM" literal.
func Evaluate(data models.ConditionData, snapshot *models.LeadSnapshot, now time.Time) bool {
	if data.Field == models.FieldCurrentTime {
		return timeBetween(data.Value, now)
	}

	if snapshot == nil {
		return false
	}

	candidate, ok := snapshotField(snapshot, data.Field)
	if !ok {
		return false
	}

	return textMatch(data.Operator, candidate, data.Value)
}

func snapshotField(snapshot *models.LeadSnapshot, field models.ConditionField) (string, bool) {
	switch field {
	case models.FieldMessage:
		return snapshot.Message, true
	case models.FieldLastMessage:
		return snapshot.LastMessage, true
	case models.FieldTag:
		return strings.Join(snapshot.Tags, " "), true
	case models.FieldStage:
		return snapshot.Stage, true
	case models.FieldValue:
		return snapshot.Value, true
	case models.FieldName:
		return snapshot.Name, true
	case models.FieldPhone:
		return snapshot.Phone, true
	default:
		return "", false
	}
}

// textMatch compares case-insensitively; the snapshot value is lowered
// before matching, mirroring how rules are authored.
func textMatch(operator models.ConditionOperator, candidate, expected string) bool {
	candidate = strings.ToLower(strings.TrimSpace(candidate))
	expected = strings.ToLower(strings.TrimSpace(expected))

	switch operator {
	case models.OperatorContains:
		return strings.Contains(candidate, expected)
	case models.OperatorNotContains:
		return !strings.Contains(candidate, expected)
	case models.OperatorEquals:
		return candidate == expected
	case models.OperatorStartsWith:
		return strings.HasPrefix(candidate, expected)
	case models.OperatorEndsWith:
		return strings.HasSuffix(candidate, expected)
	default:
		return false
	}
}

// timeBetween parses "HH:MM-HH:MM" and tests whether now's local
// time-of-day falls within [start, end). When end precedes start the
// interval wraps midnight.
func timeBetween(literal string, now time.Time) bool {
	start, end, ok := parseRange(literal)
	if !ok {
		return false
	}

	minute := now.Hour()*60 + now.Minute()

	if start == end {
		return false
	}

	if start < end {
		return minute >= start && minute < end
	}

	// Wrapping interval, e.g. 22:00-06:00.
	return minute >= start || minute < end
}

func parseRange(literal string) (int, int, bool) {
	parts := strings.SplitN(literal, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}

	start, ok := ParseClock(parts[0])
	if !ok {
		return 0, 0, false
	}

	end, ok := ParseClock(parts[1])
	if !ok {
		return 0, 0, false
	}

	return start, end, true
}

// ParseClock parses "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, bool) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}

	return t.Hour()*60 + t.Minute(), true
}
