package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/autometa/autometa/pkg/events"
	"github.com/autometa/autometa/pkg/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

func newTestChain() *Chain {
	return New(log.WithModule("chain-test"))
}

func TestTransactCommits(t *testing.T) {
	c := newTestChain()
	require.NoError(t, c.Ledger().Mint(alice, big.NewInt(100)))

	err := c.Transact(t.Context(), func(ctx context.Context) error {
		return c.Ledger().Transfer(ctx, alice, bob, big.NewInt(40))
	})
	require.NoError(t, err)

	assert.Equal(t, int64(60), c.Ledger().BalanceOf(alice).Int64())
	assert.Equal(t, int64(40), c.Ledger().BalanceOf(bob).Int64())
}

func TestTransactRollsBackOnError(t *testing.T) {
	c := newTestChain()
	require.NoError(t, c.Ledger().Mint(alice, big.NewInt(100)))

	boom := errors.New("boom")

	err := c.Transact(t.Context(), func(ctx context.Context) error {
		if err := c.Ledger().Transfer(ctx, alice, bob, big.NewInt(40)); err != nil {
			return err
		}

		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, int64(100), c.Ledger().BalanceOf(alice).Int64())
	assert.Equal(t, int64(0), c.Ledger().BalanceOf(bob).Int64())
}

func TestNestedTransactJoinsOuterUnit(t *testing.T) {
	c := newTestChain()
	require.NoError(t, c.Ledger().Mint(alice, big.NewInt(100)))

	boom := errors.New("inner failure")

	err := c.Transact(t.Context(), func(ctx context.Context) error {
		if err := c.Ledger().Transfer(ctx, alice, bob, big.NewInt(10)); err != nil {
			return err
		}

		// A nested operation joins the same unit, so its failure unwinds
		// the outer transfer as well.
		return c.Transact(ctx, func(ctx context.Context) error {
			if err := c.Ledger().Transfer(ctx, alice, bob, big.NewInt(10)); err != nil {
				return err
			}

			return boom
		})
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, int64(100), c.Ledger().BalanceOf(alice).Int64())
	assert.Equal(t, int64(0), c.Ledger().BalanceOf(bob).Int64())
}

func TestTransactRecoversPanicAndRollsBack(t *testing.T) {
	c := newTestChain()
	require.NoError(t, c.Ledger().Mint(alice, big.NewInt(100)))

	err := c.Transact(t.Context(), func(ctx context.Context) error {
		if err := c.Ledger().Transfer(ctx, alice, bob, big.NewInt(7)); err != nil {
			return err
		}

		panic("call target bug")
	})
	require.ErrorIs(t, err, ErrTransactionPanicked)
	require.ErrorContains(t, err, "call target bug")

	assert.Equal(t, int64(100), c.Ledger().BalanceOf(alice).Int64())
	assert.Equal(t, int64(0), c.Ledger().BalanceOf(bob).Int64())

	// The lock was released, so the chain keeps serving.
	err = c.Transact(t.Context(), func(ctx context.Context) error {
		return c.Ledger().Transfer(ctx, alice, bob, big.NewInt(7))
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.Ledger().BalanceOf(bob).Int64())
}

func TestTransactRecoversPanicInNestedUnit(t *testing.T) {
	c := newTestChain()
	require.NoError(t, c.Ledger().Mint(alice, big.NewInt(100)))

	err := c.Transact(t.Context(), func(ctx context.Context) error {
		if err := c.Ledger().Transfer(ctx, alice, bob, big.NewInt(10)); err != nil {
			return err
		}

		return c.Transact(ctx, func(ctx context.Context) error {
			panic("nested bug")
		})
	})
	require.ErrorIs(t, err, ErrTransactionPanicked)

	assert.Equal(t, int64(100), c.Ledger().BalanceOf(alice).Int64())
	assert.Equal(t, int64(0), c.Ledger().BalanceOf(bob).Int64())
}

func TestCommitHooksObserveCommitOrder(t *testing.T) {
	c := newTestChain()

	var (
		mu    sync.Mutex
		order []string
	)

	c.AfterCommit(func(_ context.Context, committed []events.Event) {
		for _, event := range committed {
			// Stall the first transaction's hook so a reordering bug
			// would let the second one record ahead of it.
			if event.GetID() == "first" {
				time.Sleep(50 * time.Millisecond)
			}

			mu.Lock()
			order = append(order, event.GetID())
			mu.Unlock()
		}
	})

	emit := func(ctx context.Context, id string) error {
		return c.Emit(ctx, events.GasDeposited{
			BaseEvent: events.BaseEvent{ID: id, Type: events.GasDepositedEvent},
		})
	}

	entered := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- c.Transact(context.Background(), func(ctx context.Context) error {
			close(entered)
			time.Sleep(10 * time.Millisecond)

			return emit(ctx, "first")
		})
	}()

	<-entered

	require.NoError(t, c.Transact(t.Context(), func(ctx context.Context) error {
		return emit(ctx, "second")
	}))
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestEventsOnlyPublishedOnCommit(t *testing.T) {
	c := newTestChain()

	var published []events.Event

	c.AfterCommit(func(_ context.Context, committed []events.Event) {
		published = append(published, committed...)
	})

	event := events.GasDeposited{BaseEvent: events.NewBase(events.GasDepositedEvent)}

	err := c.Transact(t.Context(), func(ctx context.Context) error {
		require.NoError(t, c.Emit(ctx, event))

		return errors.New("abort")
	})
	require.Error(t, err)
	assert.Empty(t, published)

	err = c.Transact(t.Context(), func(ctx context.Context) error {
		return c.Emit(ctx, event)
	})
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, events.GasDepositedEvent, published[0].GetType())
}

func TestEmitOutsideTransaction(t *testing.T) {
	c := newTestChain()

	err := c.Emit(t.Context(), events.GasDeposited{})
	require.ErrorIs(t, err, ErrNoTransaction)
}

func TestLedgerTransferInsufficientFunds(t *testing.T) {
	c := newTestChain()
	require.NoError(t, c.Ledger().Mint(alice, big.NewInt(5)))

	err := c.Transact(t.Context(), func(ctx context.Context) error {
		return c.Ledger().Transfer(ctx, alice, bob, big.NewInt(10))
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, int64(5), c.Ledger().BalanceOf(alice).Int64())
}

func TestLedgerReceiveHookErrorAborts(t *testing.T) {
	c := newTestChain()
	require.NoError(t, c.Ledger().Mint(alice, big.NewInt(50)))

	hookErr := errors.New("receiver rejected")
	c.Ledger().SetReceiver(bob, ReceiverFunc(func(context.Context, common.Address, *big.Int) error {
		return hookErr
	}))

	err := c.Transact(t.Context(), func(ctx context.Context) error {
		return c.Ledger().Transfer(ctx, alice, bob, big.NewInt(50))
	})
	require.ErrorIs(t, err, hookErr)

	assert.Equal(t, int64(50), c.Ledger().BalanceOf(alice).Int64())
	assert.Equal(t, int64(0), c.Ledger().BalanceOf(bob).Int64())
}

func TestStandardTokenTransferAndRollback(t *testing.T) {
	c := newTestChain()
	tokenAddr := common.HexToAddress("0x00000000000000000000000000000000000000e1")
	token := NewStandardToken("Mock Token", "MTK")

	c.RegisterToken(tokenAddr, token)
	require.NoError(t, token.Mint(alice, big.NewInt(100)))

	registered, ok := c.TokenAt(tokenAddr)
	require.True(t, ok)
	assert.Equal(t, token, registered)

	err := c.Transact(t.Context(), func(ctx context.Context) error {
		if err := token.Transfer(ctx, alice, bob, big.NewInt(30)); err != nil {
			return err
		}

		return errors.New("abort")
	})
	require.Error(t, err)

	// Token state joined the rollback because RegisterToken enrolled it.
	assert.Equal(t, int64(100), token.BalanceOf(alice).Int64())

	err = token.Transfer(t.Context(), alice, bob, big.NewInt(200))
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestMintValidation(t *testing.T) {
	c := newTestChain()

	require.ErrorIs(t, c.Ledger().Mint(alice, nil), ErrInvalidAmount)
	require.ErrorIs(t, c.Ledger().Mint(alice, big.NewInt(0)), ErrInvalidAmount)
	require.ErrorIs(t, c.Ledger().Mint(alice, big.NewInt(-3)), ErrInvalidAmount)
}

func TestCallTargetFunc(t *testing.T) {
	target := CallTargetFunc(func(_ context.Context, caller common.Address, value *big.Int, data []byte) ([]byte, error) {
		assert.Equal(t, alice, caller)
		assert.Equal(t, int64(1), value.Int64())
		assert.Equal(t, []byte{0x01}, data)

		return []byte("ok"), nil
	})

	result, err := target.Call(t.Context(), alice, big.NewInt(1), []byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), result)
}
