// Package persistence defines the storage abstraction behind the protocol
// state projection. The core runs entirely in memory; repositories hold the
// durable copy that seeds it on startup.
package persistence

import (
	"context"

	"github.com/autometa/autometa/pkg/models"
	"github.com/ethereum/go-ethereum/common"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	BalanceRepository() BalanceRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores the workflow catalog plus the creation counter.
// The counter is persisted separately from the catalog so that ids are never
// reused after the highest workflow is deleted and the process restarts.
type WorkflowRepository interface {
	GetAll(ctx context.Context) ([]*models.Workflow, error)
	GetByID(ctx context.Context, id uint64) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id uint64) error
	Counter(ctx context.Context) (uint64, error)
	SaveCounter(ctx context.Context, counter uint64) error
}

// BalanceRepository stores escrow balance entries keyed by user address.
type BalanceRepository interface {
	GetAll(ctx context.Context) ([]*models.EscrowBalance, error)
	Save(ctx context.Context, balance *models.EscrowBalance) error
	Delete(ctx context.Context, user common.Address) error
}
