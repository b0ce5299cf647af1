package registry

import (
	"context"
	"math/big"
	"testing"

	"github.com/autometa/autometa/pkg/accesscontrol"
	"github.com/autometa/autometa/pkg/chain"
	"github.com/autometa/autometa/pkg/events"
	"github.com/autometa/autometa/pkg/log"
	"github.com/autometa/autometa/pkg/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin    = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	executor = common.HexToAddress("0x00000000000000000000000000000000000000ec")
	alice    = common.HexToAddress("0x0000000000000000000000000000000000000a1c")
	bob      = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func newTestRegistry(t *testing.T) (*chain.Chain, *Registry) {
	t.Helper()

	c := chain.New(log.WithModule("chain"))
	r := New(c, admin, log.WithModule("registry"))
	r.Access().MustGrant(RoleProjectAdmin, executor)

	return c, r
}

func timeParams(nextRun, interval int64) CreateParams {
	return CreateParams{
		TriggerType: models.TriggerTime,
		TriggerData: []byte{0x01},
		ActionType:  models.ActionNativeTransfer,
		ActionData:  []byte{0x01, 0x02},
		NextRun:     nextRun,
		Interval:    interval,
		GasBudget:   big.NewInt(1_000_000),
	}
}

func TestCreateWorkflowAssignsMonotonicIDs(t *testing.T) {
	_, r := newTestRegistry(t)

	for want := uint64(1); want <= 3; want++ {
		id, err := r.CreateWorkflow(t.Context(), alice, timeParams(100, 60))
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}

	assert.Equal(t, uint64(3), r.TotalWorkflows(t.Context()))
}

func TestCreateWorkflowStoresFields(t *testing.T) {
	_, r := newTestRegistry(t)

	params := timeParams(100, 60)
	id, err := r.CreateWorkflow(t.Context(), alice, params)
	require.NoError(t, err)

	workflow, err := r.GetWorkflow(t.Context(), id)
	require.NoError(t, err)

	assert.Equal(t, alice, workflow.Owner)
	assert.Equal(t, models.TriggerTime, workflow.TriggerType)
	assert.EqualValues(t, params.TriggerData, workflow.TriggerData)
	assert.Equal(t, models.ActionNativeTransfer, workflow.ActionType)
	assert.EqualValues(t, params.ActionData, workflow.ActionData)
	assert.Equal(t, int64(100), workflow.NextRun)
	assert.Equal(t, int64(60), workflow.Interval)
	assert.True(t, workflow.Active)
	assert.Equal(t, 0, workflow.GasBudget.Cmp(big.NewInt(1_000_000)))
}

func TestGetWorkflowReturnsCopy(t *testing.T) {
	_, r := newTestRegistry(t)

	id, err := r.CreateWorkflow(t.Context(), alice, timeParams(100, 60))
	require.NoError(t, err)

	first, err := r.GetWorkflow(t.Context(), id)
	require.NoError(t, err)

	first.TriggerData[0] = 0xFF
	first.GasBudget.SetInt64(0)

	second, err := r.GetWorkflow(t.Context(), id)
	require.NoError(t, err)

	assert.EqualValues(t, []byte{0x01}, second.TriggerData)
	assert.Equal(t, 0, second.GasBudget.Cmp(big.NewInt(1_000_000)))
}

func TestGetWorkflowNotFound(t *testing.T) {
	_, r := newTestRegistry(t)

	_, err := r.GetWorkflow(t.Context(), 42)
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestGetWorkflowMeta(t *testing.T) {
	_, r := newTestRegistry(t)

	id, err := r.CreateWorkflow(t.Context(), alice, timeParams(100, 60))
	require.NoError(t, err)

	meta, err := r.GetWorkflowMeta(t.Context(), id)
	require.NoError(t, err)

	assert.Equal(t, models.WorkflowMeta{ID: id, Owner: alice, Active: true, NextRun: 100}, meta)
}

func TestWorkflowsByOwnerIsolation(t *testing.T) {
	_, r := newTestRegistry(t)

	id1, err := r.CreateWorkflow(t.Context(), alice, timeParams(100, 60))
	require.NoError(t, err)
	id2, err := r.CreateWorkflow(t.Context(), bob, timeParams(100, 60))
	require.NoError(t, err)
	id3, err := r.CreateWorkflow(t.Context(), alice, timeParams(100, 60))
	require.NoError(t, err)

	assert.Equal(t, []uint64{id1, id3}, r.WorkflowsByOwner(t.Context(), alice))
	assert.Equal(t, []uint64{id2}, r.WorkflowsByOwner(t.Context(), bob))
	assert.Empty(t, r.WorkflowsByOwner(t.Context(), executor))
}

func TestUpdateWorkflow(t *testing.T) {
	_, r := newTestRegistry(t)

	id, err := r.CreateWorkflow(t.Context(), alice, timeParams(100, 60))
	require.NoError(t, err)

	err = r.UpdateWorkflow(t.Context(), alice, id, UpdateParams{
		TriggerData: []byte{0x09},
		ActionData:  []byte{0x08, 0x07},
		NextRun:     200,
		Interval:    0,
		GasBudget:   big.NewInt(5),
	})
	require.NoError(t, err)

	workflow, err := r.GetWorkflow(t.Context(), id)
	require.NoError(t, err)

	assert.EqualValues(t, []byte{0x09}, workflow.TriggerData)
	assert.EqualValues(t, []byte{0x08, 0x07}, workflow.ActionData)
	assert.Equal(t, int64(200), workflow.NextRun)
	assert.Equal(t, int64(0), workflow.Interval)
	assert.Equal(t, 0, workflow.GasBudget.Cmp(big.NewInt(5)))
	assert.Equal(t, models.TriggerTime, workflow.TriggerType)
	assert.Equal(t, alice, workflow.Owner)
}

func TestUpdateWorkflowOwnerOnly(t *testing.T) {
	_, r := newTestRegistry(t)

	id, err := r.CreateWorkflow(t.Context(), alice, timeParams(100, 60))
	require.NoError(t, err)

	err = r.UpdateWorkflow(t.Context(), bob, id, UpdateParams{NextRun: 200})
	assert.ErrorIs(t, err, ErrNotOwner)

	workflow, err := r.GetWorkflow(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(100), workflow.NextRun)
}

func TestPauseAndResumeWorkflow(t *testing.T) {
	_, r := newTestRegistry(t)

	id, err := r.CreateWorkflow(t.Context(), alice, timeParams(100, 60))
	require.NoError(t, err)

	require.NoError(t, r.PauseWorkflow(t.Context(), alice, id))

	workflow, err := r.GetWorkflow(t.Context(), id)
	require.NoError(t, err)
	assert.False(t, workflow.Active)

	require.NoError(t, r.ResumeWorkflow(t.Context(), alice, id, 300))

	workflow, err = r.GetWorkflow(t.Context(), id)
	require.NoError(t, err)
	assert.True(t, workflow.Active)
	assert.Equal(t, int64(300), workflow.NextRun)
}

func TestPauseWorkflowOwnerOnly(t *testing.T) {
	_, r := newTestRegistry(t)

	id, err := r.CreateWorkflow(t.Context(), alice, timeParams(100, 60))
	require.NoError(t, err)

	assert.ErrorIs(t, r.PauseWorkflow(t.Context(), bob, id), ErrNotOwner)
	assert.ErrorIs(t, r.ResumeWorkflow(t.Context(), bob, id, 300), ErrNotOwner)
}

func TestDeleteWorkflowSwapAndPop(t *testing.T) {
	_, r := newTestRegistry(t)

	var ids []uint64
	for i := 0; i < 3; i++ {
		id, err := r.CreateWorkflow(t.Context(), alice, timeParams(100, 60))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.NoError(t, r.DeleteWorkflow(t.Context(), alice, ids[1]))

	remaining := r.WorkflowsByOwner(t.Context(), alice)
	assert.ElementsMatch(t, []uint64{ids[0], ids[2]}, remaining)

	_, err := r.GetWorkflow(t.Context(), ids[1])
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestDeleteWorkflowNeverReusesIDs(t *testing.T) {
	_, r := newTestRegistry(t)

	id, err := r.CreateWorkflow(t.Context(), alice, timeParams(100, 60))
	require.NoError(t, err)
	require.NoError(t, r.DeleteWorkflow(t.Context(), alice, id))

	next, err := r.CreateWorkflow(t.Context(), alice, timeParams(100, 60))
	require.NoError(t, err)

	assert.Equal(t, id+1, next)
	assert.Equal(t, uint64(2), r.TotalWorkflows(t.Context()))
}

func TestDeleteWorkflowOwnerOnly(t *testing.T) {
	_, r := newTestRegistry(t)

	id, err := r.CreateWorkflow(t.Context(), alice, timeParams(100, 60))
	require.NoError(t, err)

	assert.ErrorIs(t, r.DeleteWorkflow(t.Context(), bob, id), ErrNotOwner)

	_, err = r.GetWorkflow(t.Context(), id)
	assert.NoError(t, err)
}

func TestAdminSetWorkflow(t *testing.T) {
	_, r := newTestRegistry(t)

	id, err := r.CreateWorkflow(t.Context(), alice, timeParams(100, 60))
	require.NoError(t, err)

	require.NoError(t, r.AdminSetWorkflow(t.Context(), executor, id, true, 160))

	workflow, err := r.GetWorkflow(t.Context(), id)
	require.NoError(t, err)
	assert.True(t, workflow.Active)
	assert.Equal(t, int64(160), workflow.NextRun)
}

func TestAdminSetWorkflowRequiresRole(t *testing.T) {
	_, r := newTestRegistry(t)

	id, err := r.CreateWorkflow(t.Context(), alice, timeParams(100, 60))
	require.NoError(t, err)

	err = r.AdminSetWorkflow(t.Context(), alice, id, false, 0)
	assert.ErrorIs(t, err, accesscontrol.ErrUnauthorized)
}

func TestAdminSetWorkflowNotFound(t *testing.T) {
	_, r := newTestRegistry(t)

	err := r.AdminSetWorkflow(t.Context(), executor, 42, true, 100)
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestCreateWorkflowEmitsEvent(t *testing.T) {
	c, r := newTestRegistry(t)

	var committed []events.Event
	c.AfterCommit(func(_ context.Context, evts []events.Event) {
		committed = append(committed, evts...)
	})

	id, err := r.CreateWorkflow(t.Context(), alice, timeParams(100, 60))
	require.NoError(t, err)

	require.Len(t, committed, 1)
	created, ok := committed[0].(events.WorkflowCreated)
	require.True(t, ok)
	assert.Equal(t, id, created.WorkflowID)
	assert.Equal(t, alice, created.Owner)
	assert.Equal(t, events.WorkflowCreatedEvent, created.GetType())
	require.NotNil(t, created.Workflow)
	assert.True(t, created.Workflow.Active)
}

func TestFailedDeleteEmitsNothing(t *testing.T) {
	c, r := newTestRegistry(t)

	id, err := r.CreateWorkflow(t.Context(), alice, timeParams(100, 60))
	require.NoError(t, err)

	var committed []events.Event
	c.AfterCommit(func(_ context.Context, evts []events.Event) {
		committed = append(committed, evts...)
	})

	require.Error(t, r.DeleteWorkflow(t.Context(), bob, id))
	assert.Empty(t, committed)
}

func TestLoadSeedsCatalogAndCounter(t *testing.T) {
	c := chain.New(log.WithModule("chain"))
	r := New(c, admin, log.WithModule("registry"))

	seed := []*models.Workflow{
		{ID: 2, Owner: alice, TriggerType: models.TriggerTime, ActionType: models.ActionNativeTransfer, Active: true, NextRun: 100, GasBudget: big.NewInt(1)},
		{ID: 5, Owner: bob, TriggerType: models.TriggerPrice, ActionType: models.ActionERC20Transfer, Active: false, GasBudget: big.NewInt(1)},
	}
	r.Load(seed, 5)

	workflow, err := r.GetWorkflow(t.Context(), 2)
	require.NoError(t, err)
	assert.Equal(t, alice, workflow.Owner)

	assert.Equal(t, []uint64{5}, r.WorkflowsByOwner(t.Context(), bob))
	assert.Equal(t, uint64(5), r.TotalWorkflows(t.Context()))

	id, err := r.CreateWorkflow(t.Context(), alice, timeParams(100, 60))
	require.NoError(t, err)
	assert.Equal(t, uint64(6), id)
}

func TestWorkflowsReturnsAllLive(t *testing.T) {
	_, r := newTestRegistry(t)

	_, err := r.CreateWorkflow(t.Context(), alice, timeParams(100, 60))
	require.NoError(t, err)
	_, err = r.CreateWorkflow(t.Context(), bob, timeParams(200, 0))
	require.NoError(t, err)

	workflows := r.Workflows(t.Context())
	assert.Len(t, workflows, 2)
}
