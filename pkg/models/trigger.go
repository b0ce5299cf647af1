package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Trigger is the typed form of a workflow's trigger payload. The registry and
// executor treat trigger bytes as opaque; the typed variants exist for the API
// boundary and for the off-chain scheduler's convenience.
type Trigger interface {
	TriggerType() TriggerType
}

// PriceDirection selects which side of a price threshold fires a PRICE trigger.
type PriceDirection uint8

const (
	PriceAbove PriceDirection = 0
	PriceBelow PriceDirection = 1
)

// WalletEventKind selects which transfer direction fires a WALLET_EVENT trigger.
type WalletEventKind uint8

const (
	WalletTransferIn  WalletEventKind = 0
	WalletTransferOut WalletEventKind = 1
)

// TimeTrigger fires every Interval seconds.
type TimeTrigger struct {
	Interval *big.Int `json:"interval_seconds"`
}

func (TimeTrigger) TriggerType() TriggerType { return TriggerTime }

// PriceTrigger fires when the tracked symbol crosses Threshold (wei-scaled)
// in the given direction.
type PriceTrigger struct {
	Symbol    string         `json:"symbol"`
	Threshold *big.Int       `json:"threshold_wei"`
	Direction PriceDirection `json:"direction"`
}

func (PriceTrigger) TriggerType() TriggerType { return TriggerPrice }

// WalletEventTrigger fires on transfers of Token in or out of the owner's
// wallet. The zero token address means the native currency.
type WalletEventTrigger struct {
	Token common.Address  `json:"token_address"`
	Event WalletEventKind `json:"event_type"`
}

func (WalletEventTrigger) TriggerType() TriggerType { return TriggerWalletEvent }
