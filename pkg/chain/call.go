package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// CallTarget is a generic callable contract. The executor forwards the
// attached value (already credited to the target's ledger account) and the
// raw calldata; any error aborts the enclosing transaction.
type CallTarget interface {
	Call(ctx context.Context, caller common.Address, value *big.Int, data []byte) ([]byte, error)
}

// CallTargetFunc adapts a function to the CallTarget interface.
type CallTargetFunc func(ctx context.Context, caller common.Address, value *big.Int, data []byte) ([]byte, error)

func (f CallTargetFunc) Call(ctx context.Context, caller common.Address, value *big.Int, data []byte) ([]byte, error) {
	return f(ctx, caller, value, data)
}
