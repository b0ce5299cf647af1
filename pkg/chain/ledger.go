package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInsufficientFunds indicates a transfer exceeding the sender's
	// native balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount indicates a nil, negative, or otherwise unusable
	// amount.
	ErrInvalidAmount = errors.New("invalid amount")
)

// Receiver is notified when its address is credited. Contract-style accounts
// register one; a hook error aborts the enclosing transaction.
type Receiver interface {
	Receive(ctx context.Context, from common.Address, amount *big.Int) error
}

// ReceiverFunc adapts a function to the Receiver interface.
type ReceiverFunc func(ctx context.Context, from common.Address, amount *big.Int) error

func (f ReceiverFunc) Receive(ctx context.Context, from common.Address, amount *big.Int) error {
	return f(ctx, from, amount)
}

// Ledger holds native-currency balances per address. It is only mutated from
// inside chain transactions, which also give it rollback.
type Ledger struct {
	balances  map[common.Address]*big.Int
	receivers map[common.Address]Receiver
}

func NewLedger() *Ledger {
	return &Ledger{
		balances:  make(map[common.Address]*big.Int),
		receivers: make(map[common.Address]Receiver),
	}
}

// SetReceiver registers a credit hook for addr. Wiring-time only.
func (l *Ledger) SetReceiver(addr common.Address, receiver Receiver) {
	l.receivers[addr] = receiver
}

// BalanceOf returns a copy of addr's balance.
func (l *Ledger) BalanceOf(addr common.Address) *big.Int {
	if balance, ok := l.balances[addr]; ok {
		return new(big.Int).Set(balance)
	}

	return new(big.Int)
}

// Mint credits addr out of thin air. This is the out-of-band funding path
// (genesis balances, executor float top-ups); there is no corresponding burn.
func (l *Ledger) Mint(addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: mint amount must be positive", ErrInvalidAmount)
	}

	l.credit(addr, amount)

	return nil
}

// Transfer moves amount from one account to another, then runs the
// recipient's receive hook if one is registered. A hook error propagates and
// aborts the enclosing transaction.
func (l *Ledger) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: transfer amount must be non-negative", ErrInvalidAmount)
	}

	balance, ok := l.balances[from]
	if !ok || balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s, needs %s",
			ErrInsufficientFunds, from.Hex(), l.BalanceOf(from), amount)
	}

	balance.Sub(balance, amount)
	l.credit(to, amount)

	if receiver, ok := l.receivers[to]; ok {
		if err := receiver.Receive(ctx, from, amount); err != nil {
			return fmt.Errorf("receive hook for %s: %w", to.Hex(), err)
		}
	}

	return nil
}

func (l *Ledger) credit(addr common.Address, amount *big.Int) {
	if balance, ok := l.balances[addr]; ok {
		balance.Add(balance, amount)

		return
	}

	l.balances[addr] = new(big.Int).Set(amount)
}

// Snapshot deep-copies the balance table. Receiver registrations are wiring,
// not state, and are not part of the snapshot.
func (l *Ledger) Snapshot() any {
	copied := make(map[common.Address]*big.Int, len(l.balances))
	for addr, balance := range l.balances {
		copied[addr] = new(big.Int).Set(balance)
	}

	return copied
}

// Restore replaces the balance table with an earlier snapshot.
func (l *Ledger) Restore(snapshot any) {
	l.balances = snapshot.(map[common.Address]*big.Int)
}
