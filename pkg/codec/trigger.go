package codec

import (
	"fmt"
	"math"

	"github.com/autometa/autometa/pkg/models"
)

// Trigger payload layout. Unlike actions, trigger bytes carry no leading
// discriminator: the registry stores the trigger type as a separate field.
//
//	TIME          interval(32)
//	PRICE         symbolLen(1) symbol(var) threshold(32) direction(1)
//	WALLET_EVENT  token(20) eventType(1)

// EncodeTrigger serializes a typed trigger into its wire form.
func EncodeTrigger(trigger models.Trigger) ([]byte, error) {
	switch t := trigger.(type) {
	case models.TimeTrigger:
		return appendUint256(nil, t.Interval)

	case models.PriceTrigger:
		if len(t.Symbol) == 0 || len(t.Symbol) > math.MaxUint8 {
			return nil, fmt.Errorf("%w: symbol length %d", ErrMalformedPayload, len(t.Symbol))
		}

		out := make([]byte, 0, 1+len(t.Symbol)+wordLen+1)
		out = append(out, byte(len(t.Symbol)))
		out = append(out, t.Symbol...)

		out, err := appendUint256(out, t.Threshold)
		if err != nil {
			return nil, err
		}

		return append(out, byte(t.Direction)), nil

	case models.WalletEventTrigger:
		out := make([]byte, 0, addressLen+1)
		out = append(out, t.Token.Bytes()...)

		return append(out, byte(t.Event)), nil

	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidTriggerType, trigger)
	}
}

// DecodeTrigger parses trigger bytes using the type stored alongside them in
// the registry.
func DecodeTrigger(triggerType models.TriggerType, data []byte) (models.Trigger, error) {
	switch triggerType {
	case models.TriggerTime:
		if len(data) != wordLen {
			return nil, fmt.Errorf("%w: time trigger wants %d bytes, got %d",
				ErrMalformedPayload, wordLen, len(data))
		}

		return models.TimeTrigger{Interval: readUint256(data)}, nil

	case models.TriggerPrice:
		if len(data) < 1 {
			return nil, fmt.Errorf("%w: empty price trigger", ErrMalformedPayload)
		}

		symbolLen := int(data[0])
		if symbolLen == 0 {
			return nil, fmt.Errorf("%w: empty price symbol", ErrMalformedPayload)
		}

		want := 1 + symbolLen + wordLen + 1

		if len(data) != want {
			return nil, fmt.Errorf("%w: price trigger wants %d bytes, got %d",
				ErrMalformedPayload, want, len(data))
		}

		direction := models.PriceDirection(data[want-1])
		if direction > models.PriceBelow {
			return nil, fmt.Errorf("%w: price direction %d", ErrMalformedPayload, direction)
		}

		return models.PriceTrigger{
			Symbol:    string(data[1 : 1+symbolLen]),
			Threshold: readUint256(data[1+symbolLen:]),
			Direction: direction,
		}, nil

	case models.TriggerWalletEvent:
		if len(data) != addressLen+1 {
			return nil, fmt.Errorf("%w: wallet event trigger wants %d bytes, got %d",
				ErrMalformedPayload, addressLen+1, len(data))
		}

		event := models.WalletEventKind(data[addressLen])
		if event > models.WalletTransferOut {
			return nil, fmt.Errorf("%w: wallet event type %d", ErrMalformedPayload, event)
		}

		return models.WalletEventTrigger{
			Token: readAddress(data),
			Event: event,
		}, nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidTriggerType, triggerType)
	}
}
