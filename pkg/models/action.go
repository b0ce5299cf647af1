package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Action is the typed form of a workflow's action payload. Internal logic
// dispatches on these variants; raw bytes only exist at the codec boundary.
type Action interface {
	ActionType() ActionType
}

// NativeTransferAction moves Amount wei of the executor's own float to
// Recipient.
type NativeTransferAction struct {
	Recipient common.Address `json:"recipient"`
	Amount    *big.Int       `json:"amount"`
}

func (NativeTransferAction) ActionType() ActionType { return ActionNativeTransfer }

// ERC20TransferAction moves Amount of Token from the executor's own holdings
// to Recipient.
type ERC20TransferAction struct {
	Token     common.Address `json:"token"`
	Recipient common.Address `json:"recipient"`
	Amount    *big.Int       `json:"amount"`
}

func (ERC20TransferAction) ActionType() ActionType { return ActionERC20Transfer }

// ContractCallAction performs a generic call to Target with Value wei and
// CallData. No semantic validation is applied; the owner is trusted to have
// encoded something sane.
type ContractCallAction struct {
	Target   common.Address `json:"target"`
	Value    *big.Int       `json:"value"`
	CallData hexutil.Bytes  `json:"call_data"`
}

func (ContractCallAction) ActionType() ActionType { return ActionContractCall }
