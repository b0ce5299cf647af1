package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/autometa/autometa/pkg/models"
	"github.com/autometa/autometa/pkg/persistence"
)

const counterFile = "counter"

// WorkflowRepository stores one JSON file per workflow under
// <root>/workflows, plus a counter file holding the highest id ever issued.
type WorkflowRepository struct {
	root string
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

// GetAll returns every stored workflow.
func (wr *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	dir := path.Join(wr.root, "workflows")

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return []*models.Workflow{}, nil
	}

	jsonFiles, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		id, err := strconv.ParseUint(strings.TrimSuffix(file, ".json"), 10, 64)
		if err != nil {
			continue
		}

		workflow, err := wr.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

// GetByID retrieves a workflow by its id.
func (wr *WorkflowRepository) GetByID(_ context.Context, id uint64) (*models.Workflow, error) {
	filePath := filepath.Clean(path.Join(wr.root, "workflows", workflowFileName(id)))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	var workflow models.Workflow

	err = json.Unmarshal(body, &workflow)
	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return &workflow, nil
}

// Save writes a workflow to the file system.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	dir := path.Join(wr.root, "workflows")

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	filePath := path.Join(dir, workflowFileName(workflow.ID))

	err = os.WriteFile(filePath, data, 0600)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

// Delete removes a workflow by its id. Deleting an absent workflow is not an
// error.
func (wr *WorkflowRepository) Delete(_ context.Context, id uint64) error {
	filePath := path.Join(wr.root, "workflows", workflowFileName(id))

	err := os.Remove(filePath)
	if err != nil && !os.IsNotExist(err) {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	return nil
}

// Counter returns the persisted creation counter, zero if never saved.
func (wr *WorkflowRepository) Counter(_ context.Context) (uint64, error) {
	body, err := os.ReadFile(path.Join(wr.root, counterFile))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}

		return 0, fmt.Errorf("failed to read workflow counter: %w", err)
	}

	counter, err := strconv.ParseUint(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse workflow counter: %w", err)
	}

	return counter, nil
}

// SaveCounter persists the creation counter.
func (wr *WorkflowRepository) SaveCounter(_ context.Context, counter uint64) error {
	err := os.MkdirAll(wr.root, 0750)
	if err != nil {
		return fmt.Errorf("failed to create persistence root: %w", err)
	}

	err = os.WriteFile(path.Join(wr.root, counterFile), []byte(strconv.FormatUint(counter, 10)), 0600)
	if err != nil {
		return fmt.Errorf("failed to write workflow counter: %w", err)
	}

	return nil
}

func workflowFileName(id uint64) string {
	return strconv.FormatUint(id, 10) + ".json"
}
