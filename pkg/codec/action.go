package codec

import (
	"fmt"

	"github.com/autometa/autometa/pkg/models"
)

// Action payload layout, byte 0 is the type discriminator:
//
//	0x01 NATIVE_TRANSFER  recipient(20) amount(32)
//	0x02 ERC20_TRANSFER   token(20) recipient(20) amount(32)
//	0x03 CONTRACT_CALL    target(20) value(32) callData(variable)

const (
	nativeTransferLen = 1 + addressLen + wordLen
	erc20TransferLen  = 1 + addressLen + addressLen + wordLen
	contractCallMin   = 1 + addressLen + wordLen
)

// EncodeAction serializes a typed action into its wire form.
func EncodeAction(action models.Action) ([]byte, error) {
	switch a := action.(type) {
	case models.NativeTransferAction:
		out := make([]byte, 0, nativeTransferLen)
		out = append(out, byte(models.ActionNativeTransfer))
		out = append(out, a.Recipient.Bytes()...)

		return appendUint256(out, a.Amount)

	case models.ERC20TransferAction:
		out := make([]byte, 0, erc20TransferLen)
		out = append(out, byte(models.ActionERC20Transfer))
		out = append(out, a.Token.Bytes()...)
		out = append(out, a.Recipient.Bytes()...)

		return appendUint256(out, a.Amount)

	case models.ContractCallAction:
		out := make([]byte, 0, contractCallMin+len(a.CallData))
		out = append(out, byte(models.ActionContractCall))
		out = append(out, a.Target.Bytes()...)

		out, err := appendUint256(out, a.Value)
		if err != nil {
			return nil, err
		}

		return append(out, a.CallData...), nil

	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidActionType, action)
	}
}

// DecodeAction parses a wire-form action payload back into its typed variant.
// An unknown discriminator fails with ErrInvalidActionType; a known
// discriminator with a short or oversized body fails with ErrMalformedPayload.
func DecodeAction(data []byte) (models.Action, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty action data", ErrMalformedPayload)
	}

	switch models.ActionType(data[0]) {
	case models.ActionNativeTransfer:
		if len(data) != nativeTransferLen {
			return nil, fmt.Errorf("%w: native transfer wants %d bytes, got %d",
				ErrMalformedPayload, nativeTransferLen, len(data))
		}

		body := data[1:]

		return models.NativeTransferAction{
			Recipient: readAddress(body),
			Amount:    readUint256(body[addressLen:]),
		}, nil

	case models.ActionERC20Transfer:
		if len(data) != erc20TransferLen {
			return nil, fmt.Errorf("%w: erc20 transfer wants %d bytes, got %d",
				ErrMalformedPayload, erc20TransferLen, len(data))
		}

		body := data[1:]

		return models.ERC20TransferAction{
			Token:     readAddress(body),
			Recipient: readAddress(body[addressLen:]),
			Amount:    readUint256(body[2*addressLen:]),
		}, nil

	case models.ActionContractCall:
		if len(data) < contractCallMin {
			return nil, fmt.Errorf("%w: contract call wants at least %d bytes, got %d",
				ErrMalformedPayload, contractCallMin, len(data))
		}

		body := data[1:]

		return models.ContractCallAction{
			Target:   readAddress(body),
			Value:    readUint256(body[addressLen:]),
			CallData: append([]byte(nil), body[addressLen+wordLen:]...),
		}, nil

	default:
		return nil, fmt.Errorf("%w: discriminator %d", ErrInvalidActionType, data[0])
	}
}
