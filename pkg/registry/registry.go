// Package registry implements the workflow registry: the authoritative
// catalog and lifecycle state machine for workflow definitions.
//
// The registry treats trigger and action payloads as opaque bytes; shape is
// an executor-side concern at execution time. A workflow can therefore be
// created with data that will later fail to decode.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/autometa/autometa/pkg/accesscontrol"
	"github.com/autometa/autometa/pkg/chain"
	"github.com/autometa/autometa/pkg/events"
	"github.com/autometa/autometa/pkg/models"
	"github.com/ethereum/go-ethereum/common"
)

// RoleProjectAdmin may force-set any workflow's active flag and next run,
// regardless of owner. Granted to the executor at deployment, and to
// operators for pausing abusive workflows.
const RoleProjectAdmin accesscontrol.Role = "PROJECT_ADMIN"

var (
	// ErrWorkflowNotFound indicates no live workflow exists with the given id.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrNotOwner indicates an owner-gated operation by a different address.
	ErrNotOwner = errors.New("not the workflow owner")
)

// CreateParams carries the caller-supplied fields of a new workflow.
type CreateParams struct {
	TriggerType models.TriggerType
	TriggerData []byte
	ActionType  models.ActionType
	ActionData  []byte
	NextRun     int64
	Interval    int64
	GasBudget   *big.Int
}

// UpdateParams carries the mutable fields of an existing workflow. Owner and
// the trigger/action types are fixed at creation; switching categories
// requires delete and recreate.
type UpdateParams struct {
	TriggerData []byte
	ActionData  []byte
	NextRun     int64
	Interval    int64
	GasBudget   *big.Int
}

// Registry owns the workflow catalog. Ids are assigned monotonically from 1
// and never reused; deletion removes the record entirely.
type Registry struct {
	chain      *chain.Chain
	access     *accesscontrol.AccessControl
	workflows  map[uint64]*models.Workflow
	ownerIndex map[common.Address][]uint64
	created    uint64
	logger     *slog.Logger
}

// New creates an empty registry with admin holding DEFAULT_ADMIN and
// PROJECT_ADMIN, and enrolls its state in the chain's transaction rollback.
func New(c *chain.Chain, admin common.Address, logger *slog.Logger) *Registry {
	access := accesscontrol.New("registry", admin)
	access.MustGrant(RoleProjectAdmin, admin)

	registry := &Registry{
		chain:      c,
		access:     access,
		workflows:  make(map[uint64]*models.Workflow),
		ownerIndex: make(map[common.Address][]uint64),
		logger:     logger,
	}

	c.RegisterStore(registry)
	c.RegisterStore(access)

	return registry
}

// Access exposes the registry's role table for deployment-time grants.
func (r *Registry) Access() *accesscontrol.AccessControl {
	return r.access
}

// CreateWorkflow stores a new active workflow owned by the caller and returns
// its id. Payload bytes are stored untouched, with no shape validation.
func (r *Registry) CreateWorkflow(ctx context.Context, caller common.Address, params CreateParams) (uint64, error) {
	var id uint64

	err := r.chain.Transact(ctx, func(ctx context.Context) error {
		r.created++
		id = r.created

		now := time.Now().UTC()
		workflow := &models.Workflow{
			ID:          id,
			Owner:       caller,
			TriggerType: params.TriggerType,
			TriggerData: append([]byte(nil), params.TriggerData...),
			ActionType:  params.ActionType,
			ActionData:  append([]byte(nil), params.ActionData...),
			NextRun:     params.NextRun,
			Interval:    params.Interval,
			Active:      true,
			GasBudget:   cloneAmount(params.GasBudget),
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		r.workflows[id] = workflow
		r.ownerIndex[caller] = append(r.ownerIndex[caller], id)

		r.logger.InfoContext(ctx, "Workflow created",
			"workflow_id", id, "owner", caller.Hex(),
			"trigger_type", params.TriggerType.String(), "action_type", params.ActionType.String())

		return r.chain.Emit(ctx, events.WorkflowCreated{
			BaseEvent:  events.NewBase(events.WorkflowCreatedEvent),
			WorkflowID: id,
			Owner:      caller,
			Workflow:   workflow.Clone(),
		})
	})
	if err != nil {
		return 0, err
	}

	return id, nil
}

// GetWorkflow returns a copy of the workflow with the given id.
func (r *Registry) GetWorkflow(ctx context.Context, id uint64) (*models.Workflow, error) {
	var workflow *models.Workflow

	err := r.chain.View(ctx, func(context.Context) error {
		stored, ok := r.workflows[id]
		if !ok {
			return fmt.Errorf("%w: id %d", ErrWorkflowNotFound, id)
		}

		workflow = stored.Clone()

		return nil
	})
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

// GetWorkflowMeta returns the lightweight polling view of a workflow.
func (r *Registry) GetWorkflowMeta(ctx context.Context, id uint64) (models.WorkflowMeta, error) {
	workflow, err := r.GetWorkflow(ctx, id)
	if err != nil {
		return models.WorkflowMeta{}, err
	}

	return workflow.Meta(), nil
}

// WorkflowsByOwner returns the owner's workflow ids, possibly empty. The
// order is unspecified once any of the owner's workflows has been deleted.
func (r *Registry) WorkflowsByOwner(ctx context.Context, owner common.Address) []uint64 {
	var ids []uint64

	_ = r.chain.View(ctx, func(context.Context) error {
		ids = append([]uint64(nil), r.ownerIndex[owner]...)

		return nil
	})

	return ids
}

// UpdateWorkflow overwrites the mutable fields of the caller's workflow.
func (r *Registry) UpdateWorkflow(ctx context.Context, caller common.Address, id uint64, params UpdateParams) error {
	return r.chain.Transact(ctx, func(ctx context.Context) error {
		workflow, err := r.ownedWorkflow(caller, id)
		if err != nil {
			return err
		}

		workflow.TriggerData = append([]byte(nil), params.TriggerData...)
		workflow.ActionData = append([]byte(nil), params.ActionData...)
		workflow.NextRun = params.NextRun
		workflow.Interval = params.Interval
		workflow.GasBudget = cloneAmount(params.GasBudget)
		workflow.UpdatedAt = time.Now().UTC()

		r.logger.InfoContext(ctx, "Workflow updated", "workflow_id", id)

		return r.chain.Emit(ctx, events.WorkflowUpdated{
			BaseEvent:  events.NewBase(events.WorkflowUpdatedEvent),
			WorkflowID: id,
			Workflow:   workflow.Clone(),
		})
	})
}

// PauseWorkflow deactivates the caller's workflow. A paused workflow is never
// eligible for execution, whatever its next run says.
func (r *Registry) PauseWorkflow(ctx context.Context, caller common.Address, id uint64) error {
	return r.chain.Transact(ctx, func(ctx context.Context) error {
		workflow, err := r.ownedWorkflow(caller, id)
		if err != nil {
			return err
		}

		workflow.Active = false
		workflow.UpdatedAt = time.Now().UTC()

		r.logger.InfoContext(ctx, "Workflow paused", "workflow_id", id)

		return r.chain.Emit(ctx, events.WorkflowPaused{
			BaseEvent:  events.NewBase(events.WorkflowPausedEvent),
			WorkflowID: id,
			Workflow:   workflow.Clone(),
		})
	})
}

// ResumeWorkflow reactivates the caller's workflow with a fresh next run.
func (r *Registry) ResumeWorkflow(ctx context.Context, caller common.Address, id uint64, newNextRun int64) error {
	return r.chain.Transact(ctx, func(ctx context.Context) error {
		workflow, err := r.ownedWorkflow(caller, id)
		if err != nil {
			return err
		}

		workflow.Active = true
		workflow.NextRun = newNextRun
		workflow.UpdatedAt = time.Now().UTC()

		r.logger.InfoContext(ctx, "Workflow resumed", "workflow_id", id, "next_run", newNextRun)

		return r.chain.Emit(ctx, events.WorkflowResumed{
			BaseEvent:  events.NewBase(events.WorkflowResumedEvent),
			WorkflowID: id,
			Workflow:   workflow.Clone(),
		})
	})
}

// DeleteWorkflow removes the caller's workflow entirely. The id is never
// reused. The owner index is compacted with swap-and-pop, so the order of the
// remaining ids is not preserved.
func (r *Registry) DeleteWorkflow(ctx context.Context, caller common.Address, id uint64) error {
	return r.chain.Transact(ctx, func(ctx context.Context) error {
		workflow, err := r.ownedWorkflow(caller, id)
		if err != nil {
			return err
		}

		delete(r.workflows, id)
		r.removeFromOwnerIndex(workflow.Owner, id)

		r.logger.InfoContext(ctx, "Workflow deleted", "workflow_id", id, "owner", workflow.Owner.Hex())

		return r.chain.Emit(ctx, events.WorkflowDeleted{
			BaseEvent:  events.NewBase(events.WorkflowDeletedEvent),
			WorkflowID: id,
			Owner:      workflow.Owner,
		})
	})
}

// AdminSetWorkflow force-overwrites a workflow's active flag and next run
// without owner consent. PROJECT_ADMIN only; this is how the executor
// advances a schedule after a run.
func (r *Registry) AdminSetWorkflow(ctx context.Context, caller common.Address, id uint64, active bool, nextRun int64) error {
	return r.chain.Transact(ctx, func(ctx context.Context) error {
		if err := r.access.Require(RoleProjectAdmin, caller); err != nil {
			return err
		}

		workflow, ok := r.workflows[id]
		if !ok {
			return fmt.Errorf("%w: id %d", ErrWorkflowNotFound, id)
		}

		workflow.Active = active
		workflow.NextRun = nextRun
		workflow.UpdatedAt = time.Now().UTC()

		r.logger.InfoContext(ctx, "Workflow schedule set",
			"workflow_id", id, "active", active, "next_run", nextRun, "caller", caller.Hex())

		return r.chain.Emit(ctx, events.WorkflowUpdated{
			BaseEvent:  events.NewBase(events.WorkflowUpdatedEvent),
			WorkflowID: id,
			Workflow:   workflow.Clone(),
		})
	})
}

// TotalWorkflows returns the count of all ids ever created, not the number
// currently live.
func (r *Registry) TotalWorkflows(ctx context.Context) uint64 {
	var total uint64

	_ = r.chain.View(ctx, func(context.Context) error {
		total = r.created

		return nil
	})

	return total
}

// Workflows returns a copy of every live workflow, for projections and
// startup persistence.
func (r *Registry) Workflows(ctx context.Context) []*models.Workflow {
	var workflows []*models.Workflow

	_ = r.chain.View(ctx, func(context.Context) error {
		for _, workflow := range r.workflows {
			workflows = append(workflows, workflow.Clone())
		}

		return nil
	})

	return workflows
}

// Load seeds the catalog from persisted state. The creation counter must be
// at least as large as any persisted id so ids are never reused across
// restarts. Wiring-time only.
func (r *Registry) Load(workflows []*models.Workflow, created uint64) {
	r.created = created

	for _, workflow := range workflows {
		r.workflows[workflow.ID] = workflow.Clone()
		r.ownerIndex[workflow.Owner] = append(r.ownerIndex[workflow.Owner], workflow.ID)

		if workflow.ID > r.created {
			r.created = workflow.ID
		}
	}
}

func (r *Registry) ownedWorkflow(caller common.Address, id uint64) (*models.Workflow, error) {
	workflow, ok := r.workflows[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrWorkflowNotFound, id)
	}

	if workflow.Owner != caller {
		return nil, fmt.Errorf("%w: workflow %d belongs to %s", ErrNotOwner, id, workflow.Owner.Hex())
	}

	return workflow, nil
}

func (r *Registry) removeFromOwnerIndex(owner common.Address, id uint64) {
	ids := r.ownerIndex[owner]

	for i, candidate := range ids {
		if candidate == id {
			last := len(ids) - 1
			ids[i] = ids[last]
			r.ownerIndex[owner] = ids[:last]

			return
		}
	}
}

func cloneAmount(amount *big.Int) *big.Int {
	if amount == nil {
		return new(big.Int)
	}

	return new(big.Int).Set(amount)
}

type registrySnapshot struct {
	workflows  map[uint64]*models.Workflow
	ownerIndex map[common.Address][]uint64
	created    uint64
}

// Snapshot deep-copies the catalog for transaction rollback.
func (r *Registry) Snapshot() any {
	snapshot := registrySnapshot{
		workflows:  make(map[uint64]*models.Workflow, len(r.workflows)),
		ownerIndex: make(map[common.Address][]uint64, len(r.ownerIndex)),
		created:    r.created,
	}

	for id, workflow := range r.workflows {
		snapshot.workflows[id] = workflow.Clone()
	}

	for owner, ids := range r.ownerIndex {
		snapshot.ownerIndex[owner] = append([]uint64(nil), ids...)
	}

	return snapshot
}

// Restore replaces the catalog with an earlier snapshot.
func (r *Registry) Restore(snapshot any) {
	restored := snapshot.(registrySnapshot)
	r.workflows = restored.workflows
	r.ownerIndex = restored.ownerIndex
	r.created = restored.created
}
