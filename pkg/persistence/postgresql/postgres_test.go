package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/autometa/autometa/pkg/models"
	"github.com/autometa/autometa/pkg/persistence"
	"github.com/autometa/autometa/pkg/persistence/postgresql"
	"github.com/ethereum/go-ethereum/common"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDB(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"escrow_balances", "protocol_counters", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	require.NoError(t, db.Close())
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context) {
	t.Helper()

	if os.Getenv("SKIP_POSTGRES_TESTS") != "" {
		t.Skip("postgres integration tests disabled")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	t.Cleanup(cancel)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("autometa_test"),
			postgres.WithUsername("autometa"),
			postgres.WithPassword("autometa"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDB(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() { _ = p.Close(ctx) })

	return p, ctx
}

func testWorkflow(id uint64) *models.Workflow {
	now := time.Now().UTC().Truncate(time.Microsecond)

	return &models.Workflow{
		ID:          id,
		Owner:       common.HexToAddress("0x0000000000000000000000000000000000000a1c"),
		TriggerType: models.TriggerPrice,
		TriggerData: []byte{0x03, 0x42, 0x54, 0x43},
		ActionType:  models.ActionERC20Transfer,
		ActionData:  []byte{0x02, 0xAA},
		NextRun:     1700000000,
		Interval:    3600,
		Active:      true,
		GasBudget:   new(big.Int).Exp(big.NewInt(10), big.NewInt(20), nil),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestWorkflowRepositoryRoundTrip(t *testing.T) {
	p, ctx := setupTestDB(t)
	repo := p.WorkflowRepository()

	saved := testWorkflow(1)
	require.NoError(t, repo.Save(ctx, saved))

	loaded, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, saved.ID, loaded.ID)
	assert.Equal(t, saved.Owner, loaded.Owner)
	assert.Equal(t, saved.TriggerType, loaded.TriggerType)
	assert.EqualValues(t, saved.TriggerData, loaded.TriggerData)
	assert.Equal(t, saved.ActionType, loaded.ActionType)
	assert.Equal(t, saved.NextRun, loaded.NextRun)
	assert.Equal(t, saved.Interval, loaded.Interval)
	assert.Equal(t, 0, saved.GasBudget.Cmp(loaded.GasBudget))
}

func TestWorkflowRepositoryUpsert(t *testing.T) {
	p, ctx := setupTestDB(t)
	repo := p.WorkflowRepository()

	workflow := testWorkflow(1)
	require.NoError(t, repo.Save(ctx, workflow))

	workflow.NextRun = 1800000000
	workflow.Active = false
	require.NoError(t, repo.Save(ctx, workflow))

	loaded, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1800000000), loaded.NextRun)
	assert.False(t, loaded.Active)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestWorkflowRepositoryDelete(t *testing.T) {
	p, ctx := setupTestDB(t)
	repo := p.WorkflowRepository()

	require.NoError(t, repo.Save(ctx, testWorkflow(1)))
	require.NoError(t, repo.Delete(ctx, 1))

	_, err := repo.GetByID(ctx, 1)
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)

	assert.NoError(t, repo.Delete(ctx, 1))
}

func TestWorkflowCounter(t *testing.T) {
	p, ctx := setupTestDB(t)
	repo := p.WorkflowRepository()

	counter, err := repo.Counter(ctx)
	require.NoError(t, err)
	assert.Zero(t, counter)

	require.NoError(t, repo.SaveCounter(ctx, 9))
	require.NoError(t, repo.SaveCounter(ctx, 10))

	counter, err = repo.Counter(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), counter)
}

func TestBalanceRepository(t *testing.T) {
	p, ctx := setupTestDB(t)
	repo := p.BalanceRepository()

	user := common.HexToAddress("0x0000000000000000000000000000000000000021")
	now := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, repo.Save(ctx, &models.EscrowBalance{
		User:      user,
		Amount:    new(big.Int).Exp(big.NewInt(2), big.NewInt(200), nil),
		UpdatedAt: now,
	}))

	balances, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, user, balances[0].User)
	assert.Equal(t, 0, balances[0].Amount.Cmp(new(big.Int).Exp(big.NewInt(2), big.NewInt(200), nil)))

	require.NoError(t, repo.Save(ctx, &models.EscrowBalance{User: user, Amount: big.NewInt(0), UpdatedAt: now}))

	balances, err = repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Zero(t, balances[0].Amount.Sign())

	require.NoError(t, repo.Delete(ctx, user))

	balances, err = repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, balances)
}

func TestHealthCheck(t *testing.T) {
	p, ctx := setupTestDB(t)
	assert.NoError(t, p.HealthCheck(ctx))
}
