// Package escrow implements the fee escrow: custody of prepaid gas balances
// and the only path by which execution costs flow out to a worker.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/autometa/autometa/pkg/accesscontrol"
	"github.com/autometa/autometa/pkg/chain"
	"github.com/autometa/autometa/pkg/events"
	"github.com/autometa/autometa/pkg/models"
	"github.com/ethereum/go-ethereum/common"
)

const (
	// RoleAdmin may perform emergency withdrawals of the contract float.
	RoleAdmin accesscontrol.Role = "ADMIN"

	// RoleWorker may charge any user's balance. Granted to the executor
	// component's address, not to individual human workers.
	RoleWorker accesscontrol.Role = "WORKER"
)

var (
	// ErrZeroDeposit indicates a deposit of zero or less.
	ErrZeroDeposit = errors.New("zero deposit")

	// ErrInsufficientBalance indicates a withdrawal or charge exceeding the
	// user's escrow balance.
	ErrInsufficientBalance = errors.New("not enough balance")
)

// Escrow keeps one prepaid balance per user, fully funded by the native
// currency it holds on its own ledger account. All balance checks are hard
// preconditions: no partial charges, no silent clamping.
type Escrow struct {
	chain    *chain.Chain
	access   *accesscontrol.AccessControl
	address  common.Address
	balances map[common.Address]*models.EscrowBalance
	logger   *slog.Logger
}

// New creates the escrow holding its float on the given ledger address, with
// admin granted DEFAULT_ADMIN and ADMIN, and enrolls its balance table in the
// chain's transaction rollback.
func New(c *chain.Chain, address, admin common.Address, logger *slog.Logger) *Escrow {
	access := accesscontrol.New("escrow", admin)
	access.MustGrant(RoleAdmin, admin)

	escrow := &Escrow{
		chain:    c,
		access:   access,
		address:  address,
		balances: make(map[common.Address]*models.EscrowBalance),
		logger:   logger,
	}

	c.RegisterStore(escrow)
	c.RegisterStore(access)

	return escrow
}

// Address returns the escrow's own ledger account.
func (e *Escrow) Address() common.Address {
	return e.address
}

// Access exposes the escrow's role table for deployment-time grants.
func (e *Escrow) Access() *accesscontrol.AccessControl {
	return e.access
}

// DepositGas credits the caller's balance with amount, moving the funds from
// the caller's ledger account into the escrow float.
func (e *Escrow) DepositGas(ctx context.Context, caller common.Address, amount *big.Int) error {
	return e.chain.Transact(ctx, func(ctx context.Context) error {
		if amount == nil || amount.Sign() <= 0 {
			return ErrZeroDeposit
		}

		if err := e.chain.Ledger().Transfer(ctx, caller, e.address, amount); err != nil {
			return fmt.Errorf("deposit transfer: %w", err)
		}

		entry := e.entry(caller)
		entry.Amount.Add(entry.Amount, amount)
		entry.UpdatedAt = time.Now().UTC()

		e.logger.InfoContext(ctx, "Gas deposited",
			"user", caller.Hex(), "amount", amount.String(), "balance", entry.Amount.String())

		return e.chain.Emit(ctx, events.GasDeposited{
			BaseEvent: events.NewBase(events.GasDepositedEvent),
			User:      caller,
			Amount:    new(big.Int).Set(amount),
			Balance:   new(big.Int).Set(entry.Amount),
		})
	})
}

// WithdrawGas returns amount of the caller's balance to their ledger account.
// The balance ledger is debited before the funds move out, so a re-entrant
// withdrawal attempt from a receive hook observes the already-decremented
// balance.
func (e *Escrow) WithdrawGas(ctx context.Context, caller common.Address, amount *big.Int) error {
	return e.chain.Transact(ctx, func(ctx context.Context) error {
		if amount == nil || amount.Sign() < 0 {
			return fmt.Errorf("%w: withdraw amount must be non-negative", chain.ErrInvalidAmount)
		}

		entry := e.entry(caller)
		if entry.Amount.Cmp(amount) < 0 {
			return fmt.Errorf("%w: balance %s, requested %s",
				ErrInsufficientBalance, entry.Amount, amount)
		}

		entry.Amount.Sub(entry.Amount, amount)
		entry.UpdatedAt = time.Now().UTC()

		if err := e.chain.Ledger().Transfer(ctx, e.address, caller, amount); err != nil {
			return fmt.Errorf("withdraw transfer: %w", err)
		}

		e.logger.InfoContext(ctx, "Gas withdrawn",
			"user", caller.Hex(), "amount", amount.String(), "balance", entry.Amount.String())

		return e.chain.Emit(ctx, events.GasWithdrawn{
			BaseEvent: events.NewBase(events.GasWithdrawnEvent),
			User:      caller,
			Amount:    new(big.Int).Set(amount),
			Balance:   new(big.Int).Set(entry.Amount),
		})
	})
}

// ChargeGas debits user's balance and pays the caller. Only WORKER-role
// holders may charge; this is how execution costs are recovered.
func (e *Escrow) ChargeGas(ctx context.Context, caller, user common.Address, amount *big.Int) error {
	return e.chain.Transact(ctx, func(ctx context.Context) error {
		if err := e.access.Require(RoleWorker, caller); err != nil {
			return err
		}

		if amount == nil || amount.Sign() < 0 {
			return fmt.Errorf("%w: charge amount must be non-negative", chain.ErrInvalidAmount)
		}

		entry := e.entry(user)
		if entry.Amount.Cmp(amount) < 0 {
			return fmt.Errorf("%w: balance %s, charge %s",
				ErrInsufficientBalance, entry.Amount, amount)
		}

		entry.Amount.Sub(entry.Amount, amount)
		entry.UpdatedAt = time.Now().UTC()

		if err := e.chain.Ledger().Transfer(ctx, e.address, caller, amount); err != nil {
			return fmt.Errorf("charge transfer: %w", err)
		}

		e.logger.InfoContext(ctx, "Gas charged",
			"user", user.Hex(), "worker", caller.Hex(), "amount", amount.String())

		return e.chain.Emit(ctx, events.GasCharged{
			BaseEvent: events.NewBase(events.GasChargedEvent),
			User:      user,
			Amount:    new(big.Int).Set(amount),
			Worker:    caller,
			Balance:   new(big.Int).Set(entry.Amount),
		})
	})
}

// EmergencyWithdraw moves amount of the contract's total float to the admin,
// bypassing per-user accounting. Incident response only: it does not adjust
// any user's ledger balance.
func (e *Escrow) EmergencyWithdraw(ctx context.Context, caller common.Address, amount *big.Int) error {
	return e.chain.Transact(ctx, func(ctx context.Context) error {
		if err := e.access.Require(RoleAdmin, caller); err != nil {
			return err
		}

		if err := e.chain.Ledger().Transfer(ctx, e.address, caller, amount); err != nil {
			return fmt.Errorf("emergency withdraw transfer: %w", err)
		}

		e.logger.WarnContext(ctx, "Emergency withdrawal",
			"admin", caller.Hex(), "amount", amount.String())

		return e.chain.Emit(ctx, events.EmergencyWithdrawn{
			BaseEvent: events.NewBase(events.EmergencyWithdrawnEvent),
			Admin:     caller,
			Amount:    new(big.Int).Set(amount),
		})
	})
}

// BalanceOf returns a copy of user's escrow balance; zero if never funded.
func (e *Escrow) BalanceOf(ctx context.Context, user common.Address) *big.Int {
	balance := new(big.Int)

	_ = e.chain.View(ctx, func(context.Context) error {
		if entry, ok := e.balances[user]; ok {
			balance.Set(entry.Amount)
		}

		return nil
	})

	return balance
}

// Balances returns a copy of every balance entry, for projections and
// startup persistence.
func (e *Escrow) Balances(ctx context.Context) []*models.EscrowBalance {
	var entries []*models.EscrowBalance

	_ = e.chain.View(ctx, func(context.Context) error {
		for _, entry := range e.balances {
			entries = append(entries, entry.Clone())
		}

		return nil
	})

	return entries
}

// LoadBalances seeds the balance table from persisted state. Wiring-time
// only, before transactions flow.
func (e *Escrow) LoadBalances(entries []*models.EscrowBalance) {
	for _, entry := range entries {
		e.balances[entry.User] = entry.Clone()
	}
}

func (e *Escrow) entry(user common.Address) *models.EscrowBalance {
	if entry, ok := e.balances[user]; ok {
		return entry
	}

	entry := &models.EscrowBalance{User: user, Amount: new(big.Int), UpdatedAt: time.Now().UTC()}
	e.balances[user] = entry

	return entry
}

// Snapshot deep-copies the balance table for transaction rollback.
func (e *Escrow) Snapshot() any {
	copied := make(map[common.Address]*models.EscrowBalance, len(e.balances))
	for user, entry := range e.balances {
		copied[user] = entry.Clone()
	}

	return copied
}

// Restore replaces the balance table with an earlier snapshot.
func (e *Escrow) Restore(snapshot any) {
	e.balances = snapshot.(map[common.Address]*models.EscrowBalance)
}
