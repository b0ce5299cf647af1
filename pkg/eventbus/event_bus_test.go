package eventbus

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/autometa/autometa/pkg/channels/gochannel"
	"github.com/autometa/autometa/pkg/events"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestPublishAndSubscribe(t *testing.T) {
	bus := newTestBus(t)

	var (
		mu       sync.Mutex
		received []*events.GasDeposited
	)

	err := bus.Handle(events.GasDepositedEvent, func(_ context.Context, event interface{}) error {
		deposited, ok := event.(*events.GasDeposited)
		require.True(t, ok)

		mu.Lock()
		received = append(received, deposited)
		mu.Unlock()

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(t.Context()))

	user := common.HexToAddress("0x0000000000000000000000000000000000000021")
	err = bus.Publish(t.Context(), "user-21", events.GasDeposited{
		BaseEvent: events.NewBase(events.GasDepositedEvent),
		User:      user,
		Amount:    big.NewInt(100),
		Balance:   big.NewInt(100),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(received) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, user, received[0].User)
	assert.Equal(t, "100", received[0].Amount.String())
}

func TestUnhandledEventTypeIsAcked(t *testing.T) {
	bus := newTestBus(t)

	require.NoError(t, bus.Subscribe(t.Context()))

	err := bus.Publish(t.Context(), "wf-1", events.WorkflowDeleted{
		BaseEvent:  events.NewBase(events.WorkflowDeletedEvent),
		WorkflowID: 1,
	})
	assert.NoError(t, err)
}

func TestGenerateID(t *testing.T) {
	bus := newTestBus(t)

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
