package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/autometa/autometa/pkg/models"
	"github.com/autometa/autometa/pkg/persistence"
	"github.com/ethereum/go-ethereum/common"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const workflowColumns = `
	id
  , owner
  , trigger_type
  , trigger_data
  , action_type
  , action_data
  , next_run
  , run_interval
  , active
  , gas_budget::text
  , created_at
  , updated_at
`

// GetAll returns all workflows from the database.
func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

// GetByID returns a workflow by its id.
func (r *WorkflowRepository) GetByID(ctx context.Context, id uint64) (*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = $1`

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, int64(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return workflow, nil
}

// Save upserts a workflow.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	query := `
		INSERT INTO workflows (
			id, owner, trigger_type, trigger_data, action_type, action_data,
			next_run, run_interval, active, gas_budget, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::numeric, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			trigger_data = EXCLUDED.trigger_data,
			action_data = EXCLUDED.action_data,
			next_run = EXCLUDED.next_run,
			run_interval = EXCLUDED.run_interval,
			active = EXCLUDED.active,
			gas_budget = EXCLUDED.gas_budget,
			updated_at = EXCLUDED.updated_at
	`

	gasBudget := "0"
	if workflow.GasBudget != nil {
		gasBudget = workflow.GasBudget.String()
	}

	_, err := r.db.ExecContext(ctx, query,
		int64(workflow.ID),
		workflow.Owner.Hex(),
		int16(workflow.TriggerType),
		[]byte(workflow.TriggerData),
		int16(workflow.ActionType),
		[]byte(workflow.ActionData),
		workflow.NextRun,
		workflow.Interval,
		workflow.Active,
		gasBudget,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

// Delete removes a workflow by its id. Deleting an absent workflow is not an
// error.
func (r *WorkflowRepository) Delete(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", int64(id))
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	return nil
}

// Counter returns the persisted creation counter, zero if never saved.
func (r *WorkflowRepository) Counter(ctx context.Context) (uint64, error) {
	var counter int64

	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(value), 0) FROM protocol_counters WHERE name = 'workflows'").Scan(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to query workflow counter: %w", err)
	}

	return uint64(counter), nil
}

// SaveCounter persists the creation counter.
func (r *WorkflowRepository) SaveCounter(ctx context.Context, counter uint64) error {
	query := `
		INSERT INTO protocol_counters (name, value) VALUES ('workflows', $1)
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value
	`

	_, err := r.db.ExecContext(ctx, query, int64(counter))
	if err != nil {
		return fmt.Errorf("failed to save workflow counter: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow    models.Workflow
		id          int64
		owner       string
		triggerType int16
		actionType  int16
		triggerData []byte
		actionData  []byte
		gasBudget   string
	)

	err := row.Scan(
		&id,
		&owner,
		&triggerType,
		&triggerData,
		&actionType,
		&actionData,
		&workflow.NextRun,
		&workflow.Interval,
		&workflow.Active,
		&gasBudget,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	budget, ok := new(big.Int).SetString(gasBudget, 10)
	if !ok {
		return nil, fmt.Errorf("invalid gas budget %q for workflow %d", gasBudget, id)
	}

	workflow.ID = uint64(id)
	workflow.Owner = common.HexToAddress(owner)
	workflow.TriggerType = models.TriggerType(triggerType)
	workflow.TriggerData = triggerData
	workflow.ActionType = models.ActionType(actionType)
	workflow.ActionData = actionData
	workflow.GasBudget = budget

	return &workflow, nil
}
