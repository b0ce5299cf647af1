// Package web provides HTTP request and response types for the protocol API.
package web

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/autometa/autometa/pkg/models"
)

// TriggerSpec is the typed trigger half of a create/update request. Params
// are schema-validated per type before encoding.
type TriggerSpec struct {
	Type   string          `json:"type"   validate:"required,oneof=TIME PRICE WALLET_EVENT"`
	Params json.RawMessage `json:"params" validate:"required"`
}

// ActionSpec is the typed action half of a create/update request.
type ActionSpec struct {
	Type   string          `json:"type"   validate:"required,oneof=NATIVE_TRANSFER ERC20_TRANSFER CONTRACT_CALL"`
	Params json.RawMessage `json:"params" validate:"required"`
}

// CreateWorkflowRequest is the request body for creating a workflow. The
// owner comes from the body; signature verification happens upstream.
type CreateWorkflowRequest struct {
	Owner     string      `json:"owner"      validate:"required,eth_addr"`
	Trigger   TriggerSpec `json:"trigger"    validate:"required"`
	Action    ActionSpec  `json:"action"     validate:"required"`
	NextRun   int64       `json:"next_run"   validate:"gte=0"`
	Interval  int64       `json:"interval"   validate:"gte=0"`
	GasBudget string      `json:"gas_budget" validate:"omitempty,number"`
}

// UpdateWorkflowRequest is the request body for updating a workflow's mutable
// fields. The trigger/action types must match the stored workflow; only the
// payloads change.
type UpdateWorkflowRequest struct {
	Caller    string      `json:"caller"     validate:"required,eth_addr"`
	Trigger   TriggerSpec `json:"trigger"    validate:"required"`
	Action    ActionSpec  `json:"action"     validate:"required"`
	NextRun   int64       `json:"next_run"   validate:"gte=0"`
	Interval  int64       `json:"interval"   validate:"gte=0"`
	GasBudget string      `json:"gas_budget" validate:"omitempty,number"`
}

// CallerRequest carries only the acting address.
type CallerRequest struct {
	Caller string `json:"caller" validate:"required,eth_addr"`
}

// ResumeWorkflowRequest reactivates a workflow with a fresh schedule.
type ResumeWorkflowRequest struct {
	Caller  string `json:"caller"   validate:"required,eth_addr"`
	NextRun int64  `json:"next_run" validate:"gte=0"`
}

// ExecuteWorkflowRequest is the scheduler's entry point for one due workflow.
type ExecuteWorkflowRequest struct {
	Caller     string `json:"caller"      validate:"required,eth_addr"`
	ActionData string `json:"action_data" validate:"required"`
	NewNextRun int64  `json:"new_next_run" validate:"gte=0"`
	User       string `json:"user"        validate:"required,eth_addr"`
	GasCharge  string `json:"gas_charge"  validate:"omitempty,number"`
}

// EscrowAmountRequest is the body for deposits and withdrawals.
type EscrowAmountRequest struct {
	Caller string `json:"caller" validate:"required,eth_addr"`
	Amount string `json:"amount" validate:"required,number"`
}

// WorkflowResponse is the wire form of a stored workflow.
type WorkflowResponse struct {
	ID          uint64 `json:"id"`
	Owner       string `json:"owner"`
	TriggerType string `json:"trigger_type"`
	TriggerData string `json:"trigger_data"`
	ActionType  string `json:"action_type"`
	ActionData  string `json:"action_data"`
	NextRun     int64  `json:"next_run"`
	Interval    int64  `json:"interval"`
	Active      bool   `json:"active"`
	GasBudget   string `json:"gas_budget"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// NewWorkflowResponse converts a workflow model into its wire form.
func NewWorkflowResponse(workflow *models.Workflow) WorkflowResponse {
	return WorkflowResponse{
		ID:          workflow.ID,
		Owner:       workflow.Owner.Hex(),
		TriggerType: workflow.TriggerType.String(),
		TriggerData: workflow.TriggerData.String(),
		ActionType:  workflow.ActionType.String(),
		ActionData:  workflow.ActionData.String(),
		NextRun:     workflow.NextRun,
		Interval:    workflow.Interval,
		Active:      workflow.Active,
		GasBudget:   workflow.GasBudget.String(),
		CreatedAt:   workflow.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:   workflow.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func parseAmount(value string) (*big.Int, error) {
	if value == "" {
		return new(big.Int), nil
	}

	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}

	return amount, nil
}
