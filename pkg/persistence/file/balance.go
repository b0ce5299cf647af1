package file

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/autometa/autometa/pkg/models"
	"github.com/autometa/autometa/pkg/persistence"
	"github.com/ethereum/go-ethereum/common"
)

// BalanceRepository stores one JSON file per escrow balance entry under
// <root>/balances, named by the user's hex address.
type BalanceRepository struct {
	root string
}

// NewBalanceRepository creates a new balance repository.
func NewBalanceRepository(root string) *BalanceRepository {
	return &BalanceRepository{root: root}
}

// GetAll returns every stored balance entry.
func (br *BalanceRepository) GetAll(_ context.Context) ([]*models.EscrowBalance, error) {
	dir := path.Join(br.root, "balances")

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return []*models.EscrowBalance{}, nil
	}

	jsonFiles, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, &persistence.BalanceError{Op: "GetAll", Err: err}
	}

	balances := make([]*models.EscrowBalance, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		body, err := os.ReadFile(filepath.Clean(path.Join(dir, file)))
		if err != nil {
			return nil, &persistence.BalanceError{Op: "GetAll", User: file, Err: err}
		}

		var balance models.EscrowBalance

		err = json.Unmarshal(body, &balance)
		if err != nil {
			return nil, &persistence.BalanceError{Op: "GetAll", User: file, Err: err}
		}

		balances = append(balances, &balance)
	}

	return balances, nil
}

// Save writes a balance entry to the file system.
func (br *BalanceRepository) Save(_ context.Context, balance *models.EscrowBalance) error {
	dir := path.Join(br.root, "balances")

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return &persistence.BalanceError{Op: "Save", User: balance.User.Hex(), Err: err}
	}

	data, err := json.MarshalIndent(balance, "", "  ")
	if err != nil {
		return &persistence.BalanceError{Op: "Save", User: balance.User.Hex(), Err: err}
	}

	err = os.WriteFile(path.Join(dir, balanceFileName(balance.User)), data, 0600)
	if err != nil {
		return &persistence.BalanceError{Op: "Save", User: balance.User.Hex(), Err: err}
	}

	return nil
}

// Delete removes a user's balance entry. Deleting an absent entry is not an
// error.
func (br *BalanceRepository) Delete(_ context.Context, user common.Address) error {
	err := os.Remove(path.Join(br.root, "balances", balanceFileName(user)))
	if err != nil && !os.IsNotExist(err) {
		return &persistence.BalanceError{Op: "Delete", User: user.Hex(), Err: err}
	}

	return nil
}

func balanceFileName(user common.Address) string {
	return strings.ToLower(user.Hex()) + ".json"
}
