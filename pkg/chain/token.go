package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Token is the transfer surface the executor expects from an ERC20-style
// contract. Implementations either succeed or return an error; tokens that
// report failure through a false return value instead of an error are a known
// integration hazard and must be wrapped.
type Token interface {
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
	BalanceOf(addr common.Address) *big.Int
}

// StandardToken is an in-process mintable token ledger. It implements Store,
// so registering it on a chain enrolls its balances in transaction rollback.
type StandardToken struct {
	name     string
	symbol   string
	balances map[common.Address]*big.Int
}

func NewStandardToken(name, symbol string) *StandardToken {
	return &StandardToken{
		name:     name,
		symbol:   symbol,
		balances: make(map[common.Address]*big.Int),
	}
}

func (t *StandardToken) Name() string   { return t.name }
func (t *StandardToken) Symbol() string { return t.symbol }

// Mint credits amount to addr.
func (t *StandardToken) Mint(addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: mint amount must be positive", ErrInvalidAmount)
	}

	if balance, ok := t.balances[addr]; ok {
		balance.Add(balance, amount)
	} else {
		t.balances[addr] = new(big.Int).Set(amount)
	}

	return nil
}

func (t *StandardToken) BalanceOf(addr common.Address) *big.Int {
	if balance, ok := t.balances[addr]; ok {
		return new(big.Int).Set(balance)
	}

	return new(big.Int)
}

func (t *StandardToken) Transfer(_ context.Context, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: transfer amount must be non-negative", ErrInvalidAmount)
	}

	balance, ok := t.balances[from]
	if !ok || balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s balance of %s is %s, needs %s",
			ErrInsufficientFunds, t.symbol, from.Hex(), t.BalanceOf(from), amount)
	}

	balance.Sub(balance, amount)

	if toBalance, ok := t.balances[to]; ok {
		toBalance.Add(toBalance, amount)
	} else {
		t.balances[to] = new(big.Int).Set(amount)
	}

	return nil
}

func (t *StandardToken) Snapshot() any {
	copied := make(map[common.Address]*big.Int, len(t.balances))
	for addr, balance := range t.balances {
		copied[addr] = new(big.Int).Set(balance)
	}

	return copied
}

func (t *StandardToken) Restore(snapshot any) {
	t.balances = snapshot.(map[common.Address]*big.Int)
}
