// Package file provides file-based persistence for workflows and escrow
// balances. Each record is one JSON file; good for development and tests.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/autometa/autometa/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface on the file
// system.
type Persistence struct {
	root         string
	workflowRepo *WorkflowRepository
	balanceRepo  *BalanceRepository
}

// NewPersistence creates a file persistence layer rooted at the given
// directory. A file:// prefix is stripped.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:         cleanRoot,
		workflowRepo: NewWorkflowRepository(cleanRoot),
		balanceRepo:  NewBalanceRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. Nothing to do for files.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) BalanceRepository() persistence.BalanceRepository {
	return fp.balanceRepo
}
