// Package events defines the structured events emitted by the protocol
// components. Events are the only durable history beyond current state; off-
// chain consumers (the scheduler, indexers, the persistence projection)
// reconstruct everything from them.
package events

import (
	"math/big"
	"time"

	"github.com/autometa/autometa/pkg/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
)

type EventType string

// Kafka topic for all protocol events.
const Topic = "autometa.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Escrow events.
	GasDepositedEvent       EventType = "escrow.gas.deposited"
	GasWithdrawnEvent       EventType = "escrow.gas.withdrawn"
	GasChargedEvent         EventType = "escrow.gas.charged"
	EmergencyWithdrawnEvent EventType = "escrow.emergency.withdrawn"

	// Registry lifecycle events.
	WorkflowCreatedEvent EventType = "workflow.created"
	WorkflowUpdatedEvent EventType = "workflow.updated"
	WorkflowPausedEvent  EventType = "workflow.paused"
	WorkflowResumedEvent EventType = "workflow.resumed"
	WorkflowDeletedEvent EventType = "workflow.deleted"

	// Executor events.
	WorkflowExecutedEvent EventType = "workflow.executed"
)

// Event is implemented by every protocol event.
type Event interface {
	GetType() EventType
	GetID() string
}

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func (b BaseEvent) GetID() string { return b.ID }

// NewBase stamps a fresh event envelope.
func NewBase(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

// Escrow events. Each carries the user's post-operation balance so that
// projections never have to read back into the core.

type GasDeposited struct {
	BaseEvent

	User    common.Address `json:"user"`
	Amount  *big.Int       `json:"amount"`
	Balance *big.Int       `json:"balance"`
}

func (GasDeposited) GetType() EventType { return GasDepositedEvent }

type GasWithdrawn struct {
	BaseEvent

	User    common.Address `json:"user"`
	Amount  *big.Int       `json:"amount"`
	Balance *big.Int       `json:"balance"`
}

func (GasWithdrawn) GetType() EventType { return GasWithdrawnEvent }

type GasCharged struct {
	BaseEvent

	User    common.Address `json:"user"`
	Amount  *big.Int       `json:"amount"`
	Worker  common.Address `json:"worker"`
	Balance *big.Int       `json:"balance"`
}

func (GasCharged) GetType() EventType { return GasChargedEvent }

type EmergencyWithdrawn struct {
	BaseEvent

	Admin  common.Address `json:"admin"`
	Amount *big.Int       `json:"amount"`
}

func (EmergencyWithdrawn) GetType() EventType { return EmergencyWithdrawnEvent }

// Registry events. Mutating events carry the post-state workflow.

type WorkflowCreated struct {
	BaseEvent

	WorkflowID uint64           `json:"workflow_id"`
	Owner      common.Address   `json:"owner"`
	Workflow   *models.Workflow `json:"workflow"`
}

func (WorkflowCreated) GetType() EventType { return WorkflowCreatedEvent }

type WorkflowUpdated struct {
	BaseEvent

	WorkflowID uint64           `json:"workflow_id"`
	Workflow   *models.Workflow `json:"workflow"`
}

func (WorkflowUpdated) GetType() EventType { return WorkflowUpdatedEvent }

type WorkflowPaused struct {
	BaseEvent

	WorkflowID uint64           `json:"workflow_id"`
	Workflow   *models.Workflow `json:"workflow"`
}

func (WorkflowPaused) GetType() EventType { return WorkflowPausedEvent }

type WorkflowResumed struct {
	BaseEvent

	WorkflowID uint64           `json:"workflow_id"`
	Workflow   *models.Workflow `json:"workflow"`
}

func (WorkflowResumed) GetType() EventType { return WorkflowResumedEvent }

type WorkflowDeleted struct {
	BaseEvent

	WorkflowID uint64         `json:"workflow_id"`
	Owner      common.Address `json:"owner"`
}

func (WorkflowDeleted) GetType() EventType { return WorkflowDeletedEvent }

// WorkflowExecuted summarizes one execution attempt that committed. Failed
// attempts revert in full and therefore emit nothing.
type WorkflowExecuted struct {
	BaseEvent

	WorkflowID uint64           `json:"workflow_id"`
	User       common.Address   `json:"user"`
	Success    bool             `json:"success"`
	GasCharged *big.Int         `json:"gas_charged"`
	ResultData hexutil.Bytes    `json:"result_data"`
	Workflow   *models.Workflow `json:"workflow"`
}

func (WorkflowExecuted) GetType() EventType { return WorkflowExecutedEvent }
