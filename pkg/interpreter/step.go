package interpreter

import (
	"context"
	"errors"
	"fmt"

	"github.com/zapfy/botflow/pkg/assign"
	"github.com/zapfy/botflow/pkg/condition"
	"github.com/zapfy/botflow/pkg/events"
	"github.com/zapfy/botflow/pkg/graph"
	"github.com/zapfy/botflow/pkg/models"
	"github.com/zapfy/botflow/pkg/protocol"
	"github.com/zapfy/botflow/pkg/validate"
	"github.com/zapfy/botflow/pkg/waits"
)

var messageKinds = map[models.NodeType]protocol.MessageKind{
	models.NodeTypeSendMessage:  protocol.MessageKindText,
	models.NodeTypeReact:        protocol.MessageKindReaction,
	models.NodeTypeComment:      protocol.MessageKindComment,
	models.NodeTypeWhatsAppList: protocol.MessageKindWhatsAppList,
}

// run steps the execution until it suspends, terminates or fails. Default
// edges execute synchronously within one dispatch; only wait nodes and
// terminal nodes end the loop.
func (e *Engine) run(ctx context.Context, execution *models.Execution, g *graph.Graph) error {
	for execution.Status == models.ExecutionStatusRunning {
		node := g.Node(execution.CurrentNodeID)
		if node == nil {
			return e.fail(ctx, execution, models.FailureConfiguration,
				fmt.Sprintf("current node %s is not in flow version %d", execution.CurrentNodeID, execution.FlowVersion))
		}

		done, err := e.step(ctx, execution, g, node)
		if err != nil || done {
			return err
		}
	}

	return nil
}

// step executes one node. A true return means the loop is over and the
// final state has been persisted.
func (e *Engine) step(ctx context.Context, execution *models.Execution, g *graph.Graph, node *models.FlowNode) (bool, error) {
	switch node.Type {
	case models.NodeTypeSendMessage, models.NodeTypeReact, models.NodeTypeComment, models.NodeTypeWhatsAppList:
		return e.stepMessage(ctx, execution, g, node)

	case models.NodeTypeCondition:
		return e.stepCondition(ctx, execution, g, node)

	case models.NodeTypeWait:
		return e.stepWait(ctx, execution, g, node)

	case models.NodeTypeTag:
		return e.stepTag(ctx, execution, g, node)

	case models.NodeTypeMoveStage:
		return e.stepMoveStage(ctx, execution, g, node)

	case models.NodeTypeValidate:
		return e.stepValidate(ctx, execution, g, node)

	case models.NodeTypeGoto:
		return e.stepGoto(ctx, execution, node)

	case models.NodeTypeAction, models.NodeTypeRoundRobin, models.NodeTypeChangeResponsible:
		return e.stepAssign(ctx, execution, g, node)

	case models.NodeTypeAddNote:
		return e.stepAddNote(ctx, execution, g, node)

	case models.NodeTypeStop:
		return e.stepStop(ctx, execution)
	}

	return true, e.fail(ctx, execution, models.FailureConfiguration,
		fmt.Sprintf("node %s: unknown type %q", node.ID, node.Type))
}

func (e *Engine) stepMessage(ctx context.Context, execution *models.Execution, g *graph.Graph, node *models.FlowNode) (bool, error) {
	var data models.MessageData
	if err := models.DecodeNodeData(node, &data); err != nil {
		return true, e.fail(ctx, execution, models.FailureConfiguration, err.Error())
	}

	messageID, err := e.messenger.Send(ctx, execution.ConversationID, data.Content, messageKinds[node.Type])
	if err != nil {
		return false, fmt.Errorf("node %s: failed to send message: %w", node.ID, err)
	}

	e.logger.DebugContext(ctx, "Message sent",
		"execution_id", execution.ID, "node_id", node.ID, "message_id", messageID)

	return e.follow(ctx, execution, g, node, models.OutcomeDefault)
}

func (e *Engine) stepCondition(ctx context.Context, execution *models.Execution, g *graph.Graph, node *models.FlowNode) (bool, error) {
	var data models.ConditionData
	if err := models.DecodeNodeData(node, &data); err != nil {
		return true, e.fail(ctx, execution, models.FailureConfiguration, err.Error())
	}

	outcome := models.OutcomeFalse
	if condition.Evaluate(data, execution.Snapshot, e.clock.Now()) {
		outcome = models.OutcomeTrue
	}

	return e.follow(ctx, execution, g, node, outcome)
}

func (e *Engine) stepWait(ctx context.Context, execution *models.Execution, g *graph.Graph, node *models.FlowNode) (bool, error) {
	var data models.WaitData
	if err := models.DecodeNodeData(node, &data); err != nil {
		return true, e.fail(ctx, execution, models.FailureConfiguration, err.Error())
	}

	now := e.clock.Now()

	resume, err := waits.ComputeResume(data, now)
	if err != nil {
		return true, e.fail(ctx, execution, models.FailureConfiguration, err.Error())
	}

	if resume.Immediate(now) {
		return e.follow(ctx, execution, g, node, models.OutcomeDefault)
	}

	switch resume.Kind {
	case waits.ResumeDeadline:
		at := resume.At
		execution.Suspend(models.WaitKindDeadline, &at)
	case waits.ResumeAwaitMessage:
		execution.Suspend(models.WaitKindMessage, nil)
	}

	if err := e.persist(ctx, execution); err != nil {
		return true, err
	}

	e.emit(ctx, execution, events.ExecutionSuspended{
		BaseEvent:   events.NewBaseEvent(events.ExecutionSuspendedEvent, execution.WorkspaceID),
		ExecutionID: execution.ID,
		NodeID:      node.ID,
		WaitKind:    execution.WaitKind,
		WaitUntil:   execution.WaitUntil,
	})

	return true, nil
}

func (e *Engine) stepTag(ctx context.Context, execution *models.Execution, g *graph.Graph, node *models.FlowNode) (bool, error) {
	var data models.TagData
	if err := models.DecodeNodeData(node, &data); err != nil {
		return true, e.fail(ctx, execution, models.FailureConfiguration, err.Error())
	}

	// Re-adding an existing tag is a CRM-side no-op.
	if err := e.crm.AddTag(ctx, execution.LeadID, data.TagID); err != nil {
		return false, fmt.Errorf("node %s: failed to add tag: %w", node.ID, err)
	}

	if execution.Snapshot != nil && !execution.Snapshot.HasTag(data.TagID) {
		execution.Snapshot.Tags = append(execution.Snapshot.Tags, data.TagID)
	}

	return e.follow(ctx, execution, g, node, models.OutcomeDefault)
}

func (e *Engine) stepMoveStage(ctx context.Context, execution *models.Execution, g *graph.Graph, node *models.FlowNode) (bool, error) {
	var data models.StageData
	if err := models.DecodeNodeData(node, &data); err != nil {
		return true, e.fail(ctx, execution, models.FailureConfiguration, err.Error())
	}

	if err := e.crm.SetStage(ctx, execution.LeadID, data.StageID); err != nil {
		return false, fmt.Errorf("node %s: failed to move stage: %w", node.ID, err)
	}

	if execution.Snapshot != nil {
		execution.Snapshot.Stage = data.StageID
	}

	return e.follow(ctx, execution, g, node, models.OutcomeDefault)
}

func (e *Engine) stepValidate(ctx context.Context, execution *models.Execution, g *graph.Graph, node *models.FlowNode) (bool, error) {
	var data models.ValidateData
	if err := models.DecodeNodeData(node, &data); err != nil {
		return true, e.fail(ctx, execution, models.FailureConfiguration, err.Error())
	}

	message := ""
	if execution.Snapshot != nil {
		message = execution.Snapshot.Message
	}

	outcome := models.OutcomeFalse
	if validate.Classify(data.ValidationType, message) {
		outcome = models.OutcomeTrue
	}

	return e.follow(ctx, execution, g, node, outcome)
}

func (e *Engine) stepGoto(ctx context.Context, execution *models.Execution, node *models.FlowNode) (bool, error) {
	var data models.GotoData
	if err := models.DecodeNodeData(node, &data); err != nil {
		return true, e.fail(ctx, execution, models.FailureConfiguration, err.Error())
	}

	execution.JumpCount++
	if execution.JumpCount > e.maxJumps {
		return true, e.fail(ctx, execution, models.FailureLoopLimitExceeded,
			fmt.Sprintf("goto %s exceeded the jump limit of %d", node.ID, e.maxJumps))
	}

	return false, e.advance(ctx, execution, data.TargetNodeID)
}

func (e *Engine) stepAssign(ctx context.Context, execution *models.Execution, g *graph.Graph, node *models.FlowNode) (bool, error) {
	var data models.AssignData
	if err := models.DecodeNodeData(node, &data); err != nil {
		return true, e.fail(ctx, execution, models.FailureConfiguration, err.Error())
	}

	members, err := e.crm.Members(ctx, execution.WorkspaceID)
	if err != nil {
		return false, fmt.Errorf("node %s: failed to list workspace members: %w", node.ID, err)
	}

	userID, err := e.resolver.Resolve(ctx, execution.WorkspaceID, data, members)
	if err != nil {
		switch {
		case errors.Is(err, assign.ErrUnassignedTarget):
			return true, e.fail(ctx, execution, models.FailureUnassignedTarget, err.Error())
		case errors.Is(err, assign.ErrNoEligibleAssignee):
			return true, e.fail(ctx, execution, models.FailureNoEligibleAssignee, err.Error())
		default:
			return false, fmt.Errorf("node %s: failed to resolve assignee: %w", node.ID, err)
		}
	}

	if err := e.crm.SetAssignee(ctx, execution.LeadID, userID); err != nil {
		return false, fmt.Errorf("node %s: failed to set assignee: %w", node.ID, err)
	}

	return e.follow(ctx, execution, g, node, models.OutcomeDefault)
}

func (e *Engine) stepAddNote(ctx context.Context, execution *models.Execution, g *graph.Graph, node *models.FlowNode) (bool, error) {
	var data models.NoteData
	if err := models.DecodeNodeData(node, &data); err != nil {
		return true, e.fail(ctx, execution, models.FailureConfiguration, err.Error())
	}

	if err := e.crm.AppendNote(ctx, execution.LeadID, data.Text); err != nil {
		return false, fmt.Errorf("node %s: failed to append note: %w", node.ID, err)
	}

	return e.follow(ctx, execution, g, node, models.OutcomeDefault)
}

func (e *Engine) stepStop(ctx context.Context, execution *models.Execution) (bool, error) {
	execution.Status = models.ExecutionStatusCompleted
	execution.StepSequence++

	if err := e.persist(ctx, execution); err != nil {
		return true, err
	}

	e.logger.InfoContext(ctx, "Execution completed",
		"execution_id", execution.ID, "steps", execution.StepSequence)

	e.emit(ctx, execution, events.ExecutionCompleted{
		BaseEvent:     events.NewBaseEvent(events.ExecutionCompletedEvent, execution.WorkspaceID),
		ExecutionID:   execution.ID,
		FlowID:        execution.FlowID,
		StepsExecuted: execution.StepSequence,
	})

	return true, nil
}

// follow resolves the successor for an outcome and commits the step.
func (e *Engine) follow(ctx context.Context, execution *models.Execution, g *graph.Graph, node *models.FlowNode, outcome models.Outcome) (bool, error) {
	next, ok := g.Next(node.ID, outcome)
	if !ok {
		return true, e.fail(ctx, execution, models.FailureConfiguration,
			fmt.Sprintf("node %s has no %s successor", node.ID, outcome))
	}

	return false, e.advance(ctx, execution, next)
}
