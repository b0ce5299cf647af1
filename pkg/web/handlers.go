package web

import (
	"log/slog"
	"strconv"

	"github.com/autometa/autometa/pkg/executor"
	"github.com/autometa/autometa/pkg/node"
	"github.com/autometa/autometa/pkg/price"
	"github.com/autometa/autometa/pkg/registry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// APIHandlers exposes the protocol operations over HTTP. Callers are
// identified by the address in the request body; signature checking is the
// gateway's job.
type APIHandlers struct {
	node      *node.Node
	prices    *price.Service
	validator *validator.Validate
	logger    *slog.Logger
}

func NewAPIHandlers(
	protocolNode *node.Node,
	priceService *price.Service,
	validator *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		node:      protocolNode,
		prices:    priceService,
		validator: validator,
		logger:    logger,
	}
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	triggerType, triggerData, err := EncodeTriggerSpec(req.Trigger)
	if err != nil {
		return badRequest(c, err.Error())
	}

	actionType, actionData, err := EncodeActionSpec(req.Action)
	if err != nil {
		return badRequest(c, err.Error())
	}

	gasBudget, err := parseAmount(req.GasBudget)
	if err != nil {
		return badRequest(c, err.Error())
	}

	owner := common.HexToAddress(req.Owner)

	id, err := h.node.Registry().CreateWorkflow(c.Context(), owner, registry.CreateParams{
		TriggerType: triggerType,
		TriggerData: triggerData,
		ActionType:  actionType,
		ActionData:  actionData,
		NextRun:     req.NextRun,
		Interval:    req.Interval,
		GasBudget:   gasBudget,
	})
	if err != nil {
		return handleProtocolError(c, err)
	}

	workflow, err := h.node.Registry().GetWorkflow(c.Context(), id)
	if err != nil {
		return handleProtocolError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(NewWorkflowResponse(workflow))
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	reg := h.node.Registry()

	if owner := c.Query("owner"); owner != "" {
		if !common.IsHexAddress(owner) {
			return badRequest(c, "Invalid owner address: "+owner)
		}

		ids := reg.WorkflowsByOwner(c.Context(), common.HexToAddress(owner))
		workflows := make([]WorkflowResponse, 0, len(ids))

		for _, id := range ids {
			workflow, err := reg.GetWorkflow(c.Context(), id)
			if err != nil {
				continue
			}

			workflows = append(workflows, NewWorkflowResponse(workflow))
		}

		return c.JSON(workflows)
	}

	stored := reg.Workflows(c.Context())
	workflows := make([]WorkflowResponse, 0, len(stored))

	for _, workflow := range stored {
		workflows = append(workflows, NewWorkflowResponse(workflow))
	}

	return c.JSON(workflows)
}

func (h *APIHandlers) TotalWorkflows(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"total": h.node.Registry().TotalWorkflows(c.Context()),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id, err := workflowID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	workflow, err := h.node.Registry().GetWorkflow(c.Context(), id)
	if err != nil {
		return handleProtocolError(c, err)
	}

	return c.JSON(NewWorkflowResponse(workflow))
}

func (h *APIHandlers) GetWorkflowMeta(c fiber.Ctx) error {
	id, err := workflowID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	meta, err := h.node.Registry().GetWorkflowMeta(c.Context(), id)
	if err != nil {
		return handleProtocolError(c, err)
	}

	return c.JSON(fiber.Map{
		"owner":    meta.Owner.Hex(),
		"active":   meta.Active,
		"next_run": meta.NextRun,
	})
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id, err := workflowID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req UpdateWorkflowRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	triggerType, triggerData, err := EncodeTriggerSpec(req.Trigger)
	if err != nil {
		return badRequest(c, err.Error())
	}

	actionType, actionData, err := EncodeActionSpec(req.Action)
	if err != nil {
		return badRequest(c, err.Error())
	}

	reg := h.node.Registry()

	current, err := reg.GetWorkflow(c.Context(), id)
	if err != nil {
		return handleProtocolError(c, err)
	}

	if current.TriggerType != triggerType || current.ActionType != actionType {
		return badRequest(c, "trigger and action types are fixed at creation")
	}

	gasBudget, err := parseAmount(req.GasBudget)
	if err != nil {
		return badRequest(c, err.Error())
	}

	caller := common.HexToAddress(req.Caller)

	err = reg.UpdateWorkflow(c.Context(), caller, id, registry.UpdateParams{
		TriggerData: triggerData,
		ActionData:  actionData,
		NextRun:     req.NextRun,
		Interval:    req.Interval,
		GasBudget:   gasBudget,
	})
	if err != nil {
		return handleProtocolError(c, err)
	}

	workflow, err := reg.GetWorkflow(c.Context(), id)
	if err != nil {
		return handleProtocolError(c, err)
	}

	return c.JSON(NewWorkflowResponse(workflow))
}

func (h *APIHandlers) PauseWorkflow(c fiber.Ctx) error {
	id, err := workflowID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req CallerRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	caller := common.HexToAddress(req.Caller)

	if err := h.node.Registry().PauseWorkflow(c.Context(), caller, id); err != nil {
		return handleProtocolError(c, err)
	}

	workflow, err := h.node.Registry().GetWorkflow(c.Context(), id)
	if err != nil {
		return handleProtocolError(c, err)
	}

	return c.JSON(NewWorkflowResponse(workflow))
}

func (h *APIHandlers) ResumeWorkflow(c fiber.Ctx) error {
	id, err := workflowID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req ResumeWorkflowRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	caller := common.HexToAddress(req.Caller)

	if err := h.node.Registry().ResumeWorkflow(c.Context(), caller, id, req.NextRun); err != nil {
		return handleProtocolError(c, err)
	}

	workflow, err := h.node.Registry().GetWorkflow(c.Context(), id)
	if err != nil {
		return handleProtocolError(c, err)
	}

	return c.JSON(NewWorkflowResponse(workflow))
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id, err := workflowID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req CallerRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	caller := common.HexToAddress(req.Caller)

	if err := h.node.Registry().DeleteWorkflow(c.Context(), caller, id); err != nil {
		return handleProtocolError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	id, err := workflowID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req ExecuteWorkflowRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	actionData, err := hexutil.Decode(req.ActionData)
	if err != nil {
		return badRequest(c, "Invalid action data: "+err.Error())
	}

	gasCharge, err := parseAmount(req.GasCharge)
	if err != nil {
		return badRequest(c, err.Error())
	}

	caller := common.HexToAddress(req.Caller)

	result, err := h.node.Executor().ExecuteWorkflow(c.Context(), caller, executor.ExecuteParams{
		WorkflowID: id,
		ActionData: actionData,
		NewNextRun: req.NewNextRun,
		User:       common.HexToAddress(req.User),
		GasCharge:  gasCharge,
	})
	if err != nil {
		return handleProtocolError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflow_id": id,
		"success":     true,
		"result_data": hexutil.Encode(result),
	})
}

func (h *APIHandlers) Deposit(c fiber.Ctx) error {
	var req EscrowAmountRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		return badRequest(c, err.Error())
	}

	caller := common.HexToAddress(req.Caller)

	if err := h.node.Escrow().DepositGas(c.Context(), caller, amount); err != nil {
		return handleProtocolError(c, err)
	}

	return h.balanceResponse(c, caller)
}

func (h *APIHandlers) Withdraw(c fiber.Ctx) error {
	var req EscrowAmountRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		return badRequest(c, err.Error())
	}

	caller := common.HexToAddress(req.Caller)

	if err := h.node.Escrow().WithdrawGas(c.Context(), caller, amount); err != nil {
		return handleProtocolError(c, err)
	}

	return h.balanceResponse(c, caller)
}

func (h *APIHandlers) EscrowBalance(c fiber.Ctx) error {
	address := c.Params("address")
	if !common.IsHexAddress(address) {
		return badRequest(c, "Invalid address: "+address)
	}

	return h.balanceResponse(c, common.HexToAddress(address))
}

func (h *APIHandlers) GetPrice(c fiber.Ctx) error {
	if h.prices == nil {
		return notFound(c, "price feed is not configured")
	}

	symbol := c.Params("symbol")

	value, err := h.prices.Get(c.Context(), symbol)
	if err != nil {
		return handleProtocolError(c, err)
	}

	return c.JSON(fiber.Map{
		"symbol": symbol,
		"usd":    value,
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	if err := h.node.HealthCheck(c.Context()); err != nil {
		h.logger.ErrorContext(c.Context(), "Health check failed", "error", err)

		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
		})
	}

	return c.JSON(fiber.Map{
		"status": "healthy",
	})
}

func (h *APIHandlers) balanceResponse(c fiber.Ctx, user common.Address) error {
	balance := h.node.Escrow().BalanceOf(c.Context(), user)

	return c.JSON(fiber.Map{
		"user":    user.Hex(),
		"balance": balance.String(),
	})
}

func workflowID(c fiber.Ctx) (uint64, error) {
	return strconv.ParseUint(c.Params("id"), 10, 64)
}
