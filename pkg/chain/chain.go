// Package chain provides the deterministic execution environment the protocol
// components run in: a native-currency ledger, token and call-target
// registries, and a globally-serialized all-or-nothing transaction unit.
//
// Every state-mutating operation of the registry, escrow, and executor runs
// inside Transact. Re-entrant calls (a receive hook or call target invoking a
// component again) join the enclosing transaction, so a failure anywhere
// aborts the whole unit with no partial state visible to any observer.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/autometa/autometa/pkg/events"
	"github.com/ethereum/go-ethereum/common"
)

// ErrNoTransaction indicates an emit outside a transaction. It only occurs on
// programmer error; component operations always open one.
var ErrNoTransaction = errors.New("not inside a transaction")

// ErrTransactionPanicked indicates the transaction function panicked. The
// panic is recovered, every store is restored, and the panic value is carried
// in the error.
var ErrTransactionPanicked = errors.New("transaction panicked")

// Store is mutable state that participates in transaction rollback.
type Store interface {
	Snapshot() any
	Restore(snapshot any)
}

// CommitHook observes the events of a committed transaction. Hooks run in
// commit order while the serialization lock is still held, so observers never
// see transactions reordered. Hooks must not open transactions or views of
// their own.
type CommitHook func(ctx context.Context, committed []events.Event)

type txState struct {
	events []events.Event
}

type txKey struct{}

// Chain is the execution environment. A single mutex serializes transactions,
// matching the one-operation-at-a-time ledger the protocol is specified
// against.
type Chain struct {
	mu sync.Mutex

	ledger    *Ledger
	stores    []Store
	hooks     []CommitHook
	tokens    map[common.Address]Token
	contracts map[common.Address]CallTarget

	logger *slog.Logger
}

func New(logger *slog.Logger) *Chain {
	ledger := NewLedger()

	chain := &Chain{
		ledger:    ledger,
		tokens:    make(map[common.Address]Token),
		contracts: make(map[common.Address]CallTarget),
		logger:    logger,
	}
	chain.RegisterStore(ledger)

	return chain
}

// Ledger returns the native-currency ledger.
func (c *Chain) Ledger() *Ledger {
	return c.ledger
}

// RegisterStore adds a store to the transaction rollback set. Wiring-time
// only; not safe once transactions are flowing.
func (c *Chain) RegisterStore(store Store) {
	c.stores = append(c.stores, store)
}

// AfterCommit registers a hook observing committed transactions. Wiring-time
// only.
func (c *Chain) AfterCommit(hook CommitHook) {
	c.hooks = append(c.hooks, hook)
}

// RegisterToken deploys a token contract at the given address. Tokens that
// hold mutable state should also implement Store; they are then enrolled in
// rollback automatically.
func (c *Chain) RegisterToken(addr common.Address, token Token) {
	c.tokens[addr] = token

	if store, ok := token.(Store); ok {
		c.RegisterStore(store)
	}
}

// TokenAt returns the token registered at addr.
func (c *Chain) TokenAt(addr common.Address) (Token, bool) {
	token, ok := c.tokens[addr]

	return token, ok
}

// RegisterContract deploys a generic call target at the given address.
func (c *Chain) RegisterContract(addr common.Address, target CallTarget) {
	c.contracts[addr] = target

	if store, ok := target.(Store); ok {
		c.RegisterStore(store)
	}
}

// ContractAt returns the call target registered at addr.
func (c *Chain) ContractAt(addr common.Address) (CallTarget, bool) {
	target, ok := c.contracts[addr]

	return target, ok
}

// Transact runs fn as one atomic unit. If fn returns an error or panics,
// every store is restored to its pre-transaction snapshot and no events are
// published; a panic is recovered into ErrTransactionPanicked so the chain
// never stays wedged. On commit the hooks run before the lock is released.
// If the calling context is already inside a transaction, fn simply joins it.
func (c *Chain) Transact(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, nested := ctx.Value(txKey{}).(*txState); nested {
		return fn(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	snapshots := make([]any, len(c.stores))
	for i, store := range c.stores {
		snapshots[i] = store.Snapshot()
	}

	state := &txState{}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTransactionPanicked, r)
		}

		if err != nil {
			for i, store := range c.stores {
				store.Restore(snapshots[i])
			}

			return
		}

		for _, hook := range c.hooks {
			hook(ctx, state.events)
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, state))
}

// View runs fn under the serialization lock without snapshotting. fn must not
// mutate state.
func (c *Chain) View(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, nested := ctx.Value(txKey{}).(*txState); nested {
		return fn(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return fn(ctx)
}

// Emit records an event in the current transaction. Events are only handed to
// commit hooks if the transaction commits.
func (c *Chain) Emit(ctx context.Context, event events.Event) error {
	state, ok := ctx.Value(txKey{}).(*txState)
	if !ok {
		return ErrNoTransaction
	}

	state.events = append(state.events, event)

	return nil
}
