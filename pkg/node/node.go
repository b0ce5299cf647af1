// Package node wires the protocol components into one runnable unit: chain,
// registry, escrow, executor, role grants, event publication, and the
// write-behind persistence projection.
package node

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/autometa/autometa/pkg/chain"
	"github.com/autometa/autometa/pkg/escrow"
	"github.com/autometa/autometa/pkg/eventbus"
	"github.com/autometa/autometa/pkg/events"
	"github.com/autometa/autometa/pkg/executor"
	"github.com/autometa/autometa/pkg/models"
	"github.com/autometa/autometa/pkg/otelhelper"
	"github.com/autometa/autometa/pkg/persistence"
	"github.com/autometa/autometa/pkg/registry"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// GenesisBalance seeds one native ledger balance at wiring time.
type GenesisBalance struct {
	Address common.Address
	Amount  *big.Int
}

// Config carries the deployment-time addresses, role grants, and genesis
// funding.
type Config struct {
	Admin    common.Address
	Escrow   common.Address
	Executor common.Address

	// Workers may call ExecuteWorkflow, and through the executor, ChargeGas.
	Workers []common.Address

	// ProjectAdmins may force workflow schedules next to the executor.
	ProjectAdmins []common.Address

	// Genesis funds native ledger accounts at wiring time. Deposits and
	// executor value transfers draw on these balances; a real chain
	// deployment funds the accounts out-of-band instead.
	Genesis []GenesisBalance
}

// Node owns a fully wired protocol instance.
type Node struct {
	chain    *chain.Chain
	registry *registry.Registry
	escrow   *escrow.Escrow
	executor *executor.Executor

	persistence persistence.Persistence
	bus         eventbus.EventBus
	tracer      trace.Tracer
	logger      *slog.Logger
}

// New wires the components and installs the commit hook that publishes events
// and keeps the persistence projection current. The bus may be nil for
// projection-only deployments.
func New(cfg Config, p persistence.Persistence, bus eventbus.EventBus, logger *slog.Logger) *Node {
	c := chain.New(logger.With("module", "chain"))
	reg := registry.New(c, cfg.Admin, logger.With("module", "registry"))
	esc := escrow.New(c, cfg.Escrow, cfg.Admin, logger.With("module", "escrow"))
	exe := executor.New(c, reg, esc, cfg.Executor, cfg.Admin, logger.With("module", "executor"))

	reg.Access().MustGrant(registry.RoleProjectAdmin, cfg.Executor)
	esc.Access().MustGrant(escrow.RoleWorker, cfg.Executor)

	for _, worker := range cfg.Workers {
		exe.Access().MustGrant(executor.RoleWorker, worker)
	}

	for _, projectAdmin := range cfg.ProjectAdmins {
		reg.Access().MustGrant(registry.RoleProjectAdmin, projectAdmin)
	}

	for _, account := range cfg.Genesis {
		if err := c.Ledger().Mint(account.Address, account.Amount); err != nil {
			panic(fmt.Errorf("genesis mint for %s: %w", account.Address, err))
		}
	}

	node := &Node{
		chain:       c,
		registry:    reg,
		escrow:      esc,
		executor:    exe,
		persistence: p,
		bus:         bus,
		logger:      logger.With("module", "node"),
	}

	c.AfterCommit(node.onCommit)

	return node
}

// SetTracer enables a span per committed event. A nil tracer disables
// tracing.
func (n *Node) SetTracer(tracer trace.Tracer) {
	n.tracer = tracer
}

func (n *Node) Chain() *chain.Chain          { return n.chain }
func (n *Node) Registry() *registry.Registry { return n.registry }
func (n *Node) Escrow() *escrow.Escrow       { return n.escrow }
func (n *Node) Executor() *executor.Executor { return n.executor }

// Load seeds the in-memory state from the persisted projection. The escrow
// float is minted back to the escrow address so conservation holds from the
// first operation after a restart.
func (n *Node) Load(ctx context.Context) error {
	workflows, err := n.persistence.WorkflowRepository().GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load workflows: %w", err)
	}

	counter, err := n.persistence.WorkflowRepository().Counter(ctx)
	if err != nil {
		return fmt.Errorf("failed to load workflow counter: %w", err)
	}

	n.registry.Load(workflows, counter)

	balances, err := n.persistence.BalanceRepository().GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load escrow balances: %w", err)
	}

	n.escrow.LoadBalances(balances)

	float := new(big.Int)
	for _, balance := range balances {
		float.Add(float, balance.Amount)
	}

	if float.Sign() > 0 {
		err = n.chain.Ledger().Mint(n.escrow.Address(), float)
		if err != nil {
			return fmt.Errorf("failed to restore escrow float: %w", err)
		}
	}

	n.logger.InfoContext(ctx, "State loaded",
		"workflows", len(workflows), "counter", counter, "balances", len(balances))

	return nil
}

// HealthCheck reports whether the persistence projection is reachable.
func (n *Node) HealthCheck(ctx context.Context) error {
	return n.persistence.HealthCheck(ctx)
}

// onCommit receives the committed events of one transaction, in commit order.
// Projection failures are logged, not propagated; the chain state is
// authoritative and the projection catches up on the next write.
func (n *Node) onCommit(ctx context.Context, committed []events.Event) {
	for _, event := range committed {
		eventCtx := ctx

		var span trace.Span

		if n.tracer != nil {
			eventCtx, span = otelhelper.StartSpan(ctx, n.tracer, "node.commit_event",
				attribute.String(otelhelper.EventTypeKey, string(event.GetType())),
				attribute.String(otelhelper.EventIDKey, event.GetID()),
			)
		}

		n.publish(eventCtx, event)

		if err := n.project(eventCtx, event); err != nil {
			n.logger.ErrorContext(eventCtx, "Failed to project event",
				"event_type", event.GetType(), "error", err)

			if span != nil {
				otelhelper.SetError(span, err,
					attribute.String(otelhelper.EventTypeKey, string(event.GetType())))
			}
		}

		if span != nil {
			span.End()
		}
	}
}

func (n *Node) publish(ctx context.Context, event events.Event) {
	if n.bus == nil {
		return
	}

	err := n.bus.Publish(ctx, eventKey(event), event)
	if err != nil {
		n.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "error", err)
	}
}

func (n *Node) project(ctx context.Context, event events.Event) error {
	var err error

	switch e := event.(type) {
	case events.WorkflowCreated:
		err = n.saveWorkflow(ctx, e.Workflow)
		if err == nil {
			err = n.persistence.WorkflowRepository().SaveCounter(ctx, e.WorkflowID)
		}
	case events.WorkflowUpdated:
		err = n.saveWorkflow(ctx, e.Workflow)
	case events.WorkflowPaused:
		err = n.saveWorkflow(ctx, e.Workflow)
	case events.WorkflowResumed:
		err = n.saveWorkflow(ctx, e.Workflow)
	case events.WorkflowExecuted:
		err = n.saveWorkflow(ctx, e.Workflow)
	case events.WorkflowDeleted:
		err = n.persistence.WorkflowRepository().Delete(ctx, e.WorkflowID)
	case events.GasDeposited:
		err = n.saveBalance(ctx, e.User, e.Balance, e.Timestamp)
	case events.GasWithdrawn:
		err = n.saveBalance(ctx, e.User, e.Balance, e.Timestamp)
	case events.GasCharged:
		err = n.saveBalance(ctx, e.User, e.Balance, e.Timestamp)
	}

	return err
}

func (n *Node) saveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	if workflow == nil {
		return nil
	}

	return n.persistence.WorkflowRepository().Save(ctx, workflow)
}

func (n *Node) saveBalance(ctx context.Context, user common.Address, balance *big.Int, at time.Time) error {
	return n.persistence.BalanceRepository().Save(ctx, &models.EscrowBalance{
		User:      user,
		Amount:    new(big.Int).Set(balance),
		UpdatedAt: at,
	})
}

// eventKey picks the partition key: workflow id for registry/executor events,
// user address for escrow events.
func eventKey(event events.Event) string {
	switch e := event.(type) {
	case events.WorkflowCreated:
		return fmt.Sprintf("workflow-%d", e.WorkflowID)
	case events.WorkflowUpdated:
		return fmt.Sprintf("workflow-%d", e.WorkflowID)
	case events.WorkflowPaused:
		return fmt.Sprintf("workflow-%d", e.WorkflowID)
	case events.WorkflowResumed:
		return fmt.Sprintf("workflow-%d", e.WorkflowID)
	case events.WorkflowDeleted:
		return fmt.Sprintf("workflow-%d", e.WorkflowID)
	case events.WorkflowExecuted:
		return fmt.Sprintf("workflow-%d", e.WorkflowID)
	case events.GasDeposited:
		return e.User.Hex()
	case events.GasWithdrawn:
		return e.User.Hex()
	case events.GasCharged:
		return e.User.Hex()
	case events.EmergencyWithdrawn:
		return e.Admin.Hex()
	default:
		return string(event.GetType())
	}
}
