package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EscrowBalance is a user's prepaid gas balance in wei. Balances are created
// implicitly on first deposit and only ever decremented to zero, never
// destroyed.
type EscrowBalance struct {
	User      common.Address `json:"user"`
	Amount    *big.Int       `json:"amount"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Clone returns a deep copy of the balance.
func (b *EscrowBalance) Clone() *EscrowBalance {
	clone := *b
	if b.Amount != nil {
		clone.Amount = new(big.Int).Set(b.Amount)
	}

	return &clone
}
