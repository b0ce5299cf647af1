package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/autometa/autometa/pkg/models"
	"github.com/autometa/autometa/pkg/persistence"
	"github.com/ethereum/go-ethereum/common"
)

// BalanceRepository handles escrow balance database operations.
type BalanceRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewBalanceRepository creates a new balance repository.
func NewBalanceRepository(db *sql.DB, logger *slog.Logger) *BalanceRepository {
	return &BalanceRepository{db: db, logger: logger}
}

// GetAll returns every stored balance entry.
func (r *BalanceRepository) GetAll(ctx context.Context) ([]*models.EscrowBalance, error) {
	query := `SELECT user_address, amount::text, updated_at FROM escrow_balances ORDER BY user_address`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &persistence.BalanceError{Op: "GetAll", Err: err}
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	balances := make([]*models.EscrowBalance, 0)

	for rows.Next() {
		var (
			balance models.EscrowBalance
			user    string
			amount  string
		)

		err := rows.Scan(&user, &amount, &balance.UpdatedAt)
		if err != nil {
			return nil, &persistence.BalanceError{Op: "GetAll", User: user, Err: err}
		}

		parsed, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return nil, &persistence.BalanceError{
				Op: "GetAll", User: user,
				Err: fmt.Errorf("invalid amount %q", amount),
			}
		}

		balance.User = common.HexToAddress(user)
		balance.Amount = parsed
		balances = append(balances, &balance)
	}

	err = rows.Err()
	if err != nil {
		return nil, &persistence.BalanceError{Op: "GetAll", Err: err}
	}

	return balances, nil
}

// Save upserts a balance entry.
func (r *BalanceRepository) Save(ctx context.Context, balance *models.EscrowBalance) error {
	query := `
		INSERT INTO escrow_balances (user_address, amount, updated_at)
		VALUES ($1, $2::numeric, $3)
		ON CONFLICT (user_address) DO UPDATE SET
			amount = EXCLUDED.amount,
			updated_at = EXCLUDED.updated_at
	`

	amount := "0"
	if balance.Amount != nil {
		amount = balance.Amount.String()
	}

	_, err := r.db.ExecContext(ctx, query, balance.User.Hex(), amount, balance.UpdatedAt)
	if err != nil {
		return &persistence.BalanceError{Op: "Save", User: balance.User.Hex(), Err: err}
	}

	return nil
}

// Delete removes a user's balance entry. Deleting an absent entry is not an
// error.
func (r *BalanceRepository) Delete(ctx context.Context, user common.Address) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM escrow_balances WHERE user_address = $1", user.Hex())
	if err != nil {
		return &persistence.BalanceError{Op: "Delete", User: user.Hex(), Err: err}
	}

	return nil
}
