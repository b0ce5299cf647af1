package web

import (
	"errors"

	"github.com/autometa/autometa/pkg/accesscontrol"
	"github.com/autometa/autometa/pkg/chain"
	"github.com/autometa/autometa/pkg/codec"
	"github.com/autometa/autometa/pkg/escrow"
	"github.com/autometa/autometa/pkg/executor"
	"github.com/autometa/autometa/pkg/price"
	"github.com/autometa/autometa/pkg/registry"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
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

func forbidden(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(403).
		WithInstance(c.Path()).
		WithType("forbidden").
		WithDetail(detail)

	return c.Status(fiber.StatusForbidden).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleProtocolError maps contract and service errors onto RFC 7807
// responses.
func handleProtocolError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, registry.ErrWorkflowNotFound):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("workflow_not_found").
			WithDetail("workflow not found")

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case errors.Is(err, price.ErrPriceNotFound):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("price_not_found").
			WithDetail(err.Error())

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case errors.Is(err, accesscontrol.ErrUnauthorized),
		errors.Is(err, registry.ErrNotOwner):
		return forbidden(c, err.Error())

	case errors.Is(err, escrow.ErrZeroDeposit),
		errors.Is(err, escrow.ErrInsufficientBalance),
		errors.Is(err, chain.ErrInsufficientFunds),
		errors.Is(err, chain.ErrInvalidAmount),
		errors.Is(err, codec.ErrInvalidActionType),
		errors.Is(err, codec.ErrInvalidTriggerType),
		errors.Is(err, codec.ErrMalformedPayload),
		errors.Is(err, codec.ErrValueOutOfRange),
		errors.Is(err, executor.ErrUnknownToken),
		errors.Is(err, executor.ErrUnknownTarget),
		errors.Is(err, executor.ErrTargetCallReverted):
		return badRequest(c, err.Error())

	default:
		return internalError(c, err)
	}
}
