package events

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBase(t *testing.T) {
	base := NewBase(GasDepositedEvent)

	assert.NotEmpty(t, base.ID)
	assert.Equal(t, GasDepositedEvent, base.Type)
	assert.False(t, base.Timestamp.IsZero())
}

func TestEventTypes(t *testing.T) {
	tests := []struct {
		event Event
		want  EventType
	}{
		{GasDeposited{}, GasDepositedEvent},
		{GasWithdrawn{}, GasWithdrawnEvent},
		{GasCharged{}, GasChargedEvent},
		{EmergencyWithdrawn{}, EmergencyWithdrawnEvent},
		{WorkflowCreated{}, WorkflowCreatedEvent},
		{WorkflowUpdated{}, WorkflowUpdatedEvent},
		{WorkflowPaused{}, WorkflowPausedEvent},
		{WorkflowResumed{}, WorkflowResumedEvent},
		{WorkflowDeleted{}, WorkflowDeletedEvent},
		{WorkflowExecuted{}, WorkflowExecutedEvent},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.event.GetType())
	}
}

func TestGasChargedMarshalling(t *testing.T) {
	event := GasCharged{
		BaseEvent: NewBase(GasChargedEvent),
		User:      common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Amount:    big.NewInt(200),
		Worker:    common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Balance:   big.NewInt(800),
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded GasCharged

	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, event.User, decoded.User)
	assert.Equal(t, 0, event.Amount.Cmp(decoded.Amount))
	assert.Equal(t, 0, event.Balance.Cmp(decoded.Balance))
}
