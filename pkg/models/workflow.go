// Package models defines the core domain models for on-chain workflow automation.
package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TriggerType identifies the condition category that makes a workflow eligible
// to run. Triggers are evaluated by the off-chain scheduler, never by the core.
type TriggerType uint8

const (
	TriggerTime        TriggerType = 1
	TriggerPrice       TriggerType = 2
	TriggerWalletEvent TriggerType = 3
)

// Valid reports whether the trigger type is one of the known categories.
func (t TriggerType) Valid() bool {
	return t >= TriggerTime && t <= TriggerWalletEvent
}

func (t TriggerType) String() string {
	switch t {
	case TriggerTime:
		return "time"
	case TriggerPrice:
		return "price"
	case TriggerWalletEvent:
		return "wallet_event"
	default:
		return "unknown"
	}
}

// ActionType identifies the effect category a workflow performs when executed.
type ActionType uint8

const (
	ActionNativeTransfer ActionType = 1
	ActionERC20Transfer  ActionType = 2
	ActionContractCall   ActionType = 3
)

func (a ActionType) Valid() bool {
	return a >= ActionNativeTransfer && a <= ActionContractCall
}

func (a ActionType) String() string {
	switch a {
	case ActionNativeTransfer:
		return "native_transfer"
	case ActionERC20Transfer:
		return "erc20_transfer"
	case ActionContractCall:
		return "contract_call"
	default:
		return "unknown"
	}
}

// Workflow is a stored automation definition: who owns it, what condition
// triggers it, what effect it performs, and when it is next eligible to run.
//
// TriggerData and ActionData are opaque byte payloads; their shape depends on
// the corresponding type and is only interpreted at the system boundary (see
// pkg/codec). The registry stores them untouched.
type Workflow struct {
	ID          uint64         `json:"id"`
	Owner       common.Address `json:"owner"`
	TriggerType TriggerType    `json:"trigger_type" validate:"required,min=1,max=3"`
	TriggerData hexutil.Bytes  `json:"trigger_data"`
	ActionType  ActionType     `json:"action_type"  validate:"required,min=1,max=3"`
	ActionData  hexutil.Bytes  `json:"action_data"`

	// NextRun is the unix timestamp (seconds) at or after which the workflow
	// is eligible for execution. Zero means not scheduled.
	NextRun int64 `json:"next_run"`
	// Interval is added to NextRun after each execution. Zero means one-shot.
	Interval int64 `json:"interval"`
	Active   bool  `json:"active"`

	// GasBudget is the owner's declared per-execution spending cap in wei.
	// Informational: the executor charges the caller-supplied amount.
	GasBudget *big.Int `json:"gas_budget"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WorkflowMeta is the lightweight polling view of a workflow.
type WorkflowMeta struct {
	ID      uint64         `json:"id"`
	Owner   common.Address `json:"owner"`
	Active  bool           `json:"active"`
	NextRun int64          `json:"next_run"`
}

// Meta returns the polling view of the workflow.
func (w *Workflow) Meta() WorkflowMeta {
	return WorkflowMeta{
		ID:      w.ID,
		Owner:   w.Owner,
		Active:  w.Active,
		NextRun: w.NextRun,
	}
}

// DueAt reports whether the workflow is eligible for execution at t. Paused
// and unscheduled workflows are never due.
func (w *Workflow) DueAt(t time.Time) bool {
	return w.Active && w.NextRun > 0 && w.NextRun <= t.Unix()
}

// Clone returns a deep copy of the workflow.
func (w *Workflow) Clone() *Workflow {
	clone := *w
	clone.TriggerData = append(hexutil.Bytes(nil), w.TriggerData...)
	clone.ActionData = append(hexutil.Bytes(nil), w.ActionData...)

	if w.GasBudget != nil {
		clone.GasBudget = new(big.Int).Set(w.GasBudget)
	}

	return &clone
}
