// Package executor implements the trusted execution engine. It is the one
// component allowed to move funds, charge escrow balances, and force
// workflow schedules, so every entry point is gated on the WORKER role.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/autometa/autometa/pkg/accesscontrol"
	"github.com/autometa/autometa/pkg/chain"
	"github.com/autometa/autometa/pkg/codec"
	"github.com/autometa/autometa/pkg/escrow"
	"github.com/autometa/autometa/pkg/events"
	"github.com/autometa/autometa/pkg/models"
	"github.com/ethereum/go-ethereum/common"
)

// RoleWorker authorizes calling ExecuteWorkflow. Granted to scheduler worker
// addresses at deployment.
const RoleWorker accesscontrol.Role = "WORKER"

var (
	// ErrUnknownToken indicates an ERC-20 action naming a token address with
	// no deployed token.
	ErrUnknownToken = errors.New("unknown token")

	// ErrUnknownTarget indicates a contract-call action naming an address
	// with no deployed call target.
	ErrUnknownTarget = errors.New("unknown call target")

	// ErrTargetCallReverted wraps an error returned by a call target. The
	// whole execution reverts with it.
	ErrTargetCallReverted = errors.New("target call reverted")
)

// ExecuteParams carries the worker-supplied arguments of one execution
// attempt. ActionData is decoded fresh on every run; the registry stores it
// opaquely.
type ExecuteParams struct {
	WorkflowID uint64
	ActionData []byte
	NewNextRun int64
	User       common.Address
	GasCharge  *big.Int
}

// Executor performs workflow actions atomically: decode, dispatch, charge
// gas, reschedule. If any step fails the whole attempt reverts and no event
// is emitted.
type Executor struct {
	chain    *chain.Chain
	registry Registry
	escrow   *escrow.Escrow
	access   *accesscontrol.AccessControl
	address  common.Address
	logger   *slog.Logger
}

// Registry is the catalog surface the executor needs: schedule reads and
// admin schedule writes.
type Registry interface {
	GetWorkflow(ctx context.Context, id uint64) (*models.Workflow, error)
	AdminSetWorkflow(ctx context.Context, caller common.Address, id uint64, active bool, nextRun int64) error
}

// New creates an executor holding funds at address. The executor's address
// must be granted PROJECT_ADMIN on the registry and WORKER on the escrow by
// the deployer; New only wires its own role table.
func New(c *chain.Chain, reg Registry, esc *escrow.Escrow, address, admin common.Address, logger *slog.Logger) *Executor {
	access := accesscontrol.New("executor", admin)

	executor := &Executor{
		chain:    c,
		registry: reg,
		escrow:   esc,
		access:   access,
		address:  address,
		logger:   logger,
	}

	c.RegisterStore(access)

	return executor
}

// Address returns the executor's fund-holding address.
func (e *Executor) Address() common.Address {
	return e.address
}

// Access exposes the executor's role table for deployment-time grants.
func (e *Executor) Access() *accesscontrol.AccessControl {
	return e.access
}

// ExecuteWorkflow runs one execution attempt as a single atomic unit and
// returns the action's result data. On any failure every intermediate effect
// (dispatched transfers, gas charges, schedule writes) is rolled back.
//
// The schedule is always re-armed active with NewNextRun; pausing after a
// one-shot run is the scheduler's decision, made through the registry.
func (e *Executor) ExecuteWorkflow(ctx context.Context, caller common.Address, params ExecuteParams) ([]byte, error) {
	var result []byte

	err := e.chain.Transact(ctx, func(ctx context.Context) error {
		if err := e.access.Require(RoleWorker, caller); err != nil {
			return err
		}

		if _, err := e.registry.GetWorkflow(ctx, params.WorkflowID); err != nil {
			return err
		}

		action, err := codec.DecodeAction(params.ActionData)
		if err != nil {
			return err
		}

		result, err = e.dispatch(ctx, action)
		if err != nil {
			return err
		}

		charged := big.NewInt(0)
		if params.GasCharge != nil && params.GasCharge.Sign() > 0 {
			charged = new(big.Int).Set(params.GasCharge)

			if err := e.escrow.ChargeGas(ctx, e.address, params.User, charged); err != nil {
				return err
			}
		}

		if err := e.registry.AdminSetWorkflow(ctx, e.address, params.WorkflowID, true, params.NewNextRun); err != nil {
			return err
		}

		workflow, err := e.registry.GetWorkflow(ctx, params.WorkflowID)
		if err != nil {
			return err
		}

		e.logger.InfoContext(ctx, "Workflow executed",
			"workflow_id", params.WorkflowID, "user", params.User.Hex(),
			"worker", caller.Hex(), "gas_charged", charged.String())

		return e.chain.Emit(ctx, events.WorkflowExecuted{
			BaseEvent:  events.NewBase(events.WorkflowExecutedEvent),
			WorkflowID: params.WorkflowID,
			User:       params.User,
			Success:    true,
			GasCharged: charged,
			ResultData: append([]byte(nil), result...),
			Workflow:   workflow,
		})
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// dispatch performs the decoded action from the executor's own funds.
func (e *Executor) dispatch(ctx context.Context, action models.Action) ([]byte, error) {
	switch a := action.(type) {
	case models.NativeTransferAction:
		return nil, e.chain.Ledger().Transfer(ctx, e.address, a.Recipient, a.Amount)

	case models.ERC20TransferAction:
		token, ok := e.chain.TokenAt(a.Token)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownToken, a.Token.Hex())
		}

		return nil, token.Transfer(ctx, e.address, a.Recipient, a.Amount)

	case models.ContractCallAction:
		target, ok := e.chain.ContractAt(a.Target)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, a.Target.Hex())
		}

		if a.Value.Sign() > 0 {
			if err := e.chain.Ledger().Transfer(ctx, e.address, a.Target, a.Value); err != nil {
				return nil, err
			}
		}

		result, err := target.Call(ctx, e.address, a.Value, a.CallData)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTargetCallReverted, err)
		}

		return result, nil

	default:
		return nil, codec.ErrInvalidActionType
	}
}
