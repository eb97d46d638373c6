package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/zapfy/botflow/pkg/flow"
	"github.com/zapfy/botflow/pkg/graph"
	"github.com/zapfy/botflow/pkg/persistence"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func unprocessable(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(422).
		WithInstance(c.Path()).
		WithType("invalid_flow_definition").
		WithDetail(detail)

	return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

func isDefinitionError(err error) bool {
	return errors.Is(err, graph.ErrMissingBranch) ||
		errors.Is(err, graph.ErrDanglingEdge) ||
		errors.Is(err, graph.ErrCyclicDefaultPath) ||
		errors.Is(err, graph.ErrUnknownEntryNode) ||
		errors.Is(err, flow.ErrInvalidNodeData)
}

// handleFlowError maps flow service and persistence errors to problem
// responses.
func handleFlowError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsFlowNotFound(err):
		return notFound(c, "Flow not found")

	case persistence.IsPublishedFlowNotFound(err):
		return notFound(c, "No published version")

	case errors.Is(err, flow.ErrAlreadyPublished):
		return conflict(c, err.Error())

	case errors.Is(err, flow.ErrNoPublishedVersion):
		return conflict(c, err.Error())

	case isDefinitionError(err):
		return unprocessable(c, err.Error())

	default:
		return internalError(c, err)
	}
}
