package web

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/autometa/autometa/pkg/codec"
	"github.com/autometa/autometa/pkg/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/xeipuuv/gojsonschema"
)

// Per-type JSON schemas for trigger and action params. Validation happens
// before any model is built, so encode failures past this point indicate a
// handler bug rather than bad input.
var paramSchemas = map[string]string{
	"TIME": `{
		"type": "object",
		"required": ["interval"],
		"additionalProperties": false,
		"properties": {
			"interval": {"type": "string", "pattern": "^[0-9]+$"}
		}
	}`,
	"PRICE": `{
		"type": "object",
		"required": ["symbol", "threshold", "direction"],
		"additionalProperties": false,
		"properties": {
			"symbol": {"type": "string", "minLength": 1, "maxLength": 255},
			"threshold": {"type": "string", "pattern": "^[0-9]+$"},
			"direction": {"type": "string", "enum": ["above", "below"]}
		}
	}`,
	"WALLET_EVENT": `{
		"type": "object",
		"required": ["token", "event"],
		"additionalProperties": false,
		"properties": {
			"token": {"type": "string", "pattern": "^0x[0-9a-fA-F]{40}$"},
			"event": {"type": "string", "enum": ["transfer_in", "transfer_out"]}
		}
	}`,
	"NATIVE_TRANSFER": `{
		"type": "object",
		"required": ["recipient", "amount"],
		"additionalProperties": false,
		"properties": {
			"recipient": {"type": "string", "pattern": "^0x[0-9a-fA-F]{40}$"},
			"amount": {"type": "string", "pattern": "^[0-9]+$"}
		}
	}`,
	"ERC20_TRANSFER": `{
		"type": "object",
		"required": ["token", "recipient", "amount"],
		"additionalProperties": false,
		"properties": {
			"token": {"type": "string", "pattern": "^0x[0-9a-fA-F]{40}$"},
			"recipient": {"type": "string", "pattern": "^0x[0-9a-fA-F]{40}$"},
			"amount": {"type": "string", "pattern": "^[0-9]+$"}
		}
	}`,
	"CONTRACT_CALL": `{
		"type": "object",
		"required": ["target"],
		"additionalProperties": false,
		"properties": {
			"target": {"type": "string", "pattern": "^0x[0-9a-fA-F]{40}$"},
			"value": {"type": "string", "pattern": "^[0-9]+$"},
			"calldata": {"type": "string", "pattern": "^0x([0-9a-fA-F]{2})*$"}
		}
	}`,
}

func validateParams(kind string, params json.RawMessage) error {
	schema, ok := paramSchemas[kind]
	if !ok {
		return fmt.Errorf("unknown params type %q", kind)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(params),
	)
	if err != nil {
		return fmt.Errorf("invalid %s params: %w", kind, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("invalid %s params: %s", kind, strings.Join(details, "; "))
	}

	return nil
}

// EncodeTriggerSpec validates and encodes the trigger half of a request.
func EncodeTriggerSpec(spec TriggerSpec) (models.TriggerType, []byte, error) {
	if err := validateParams(spec.Type, spec.Params); err != nil {
		return 0, nil, err
	}

	var trigger models.Trigger

	switch spec.Type {
	case "TIME":
		var params struct {
			Interval string `json:"interval"`
		}

		if err := json.Unmarshal(spec.Params, &params); err != nil {
			return 0, nil, err
		}

		interval, _ := new(big.Int).SetString(params.Interval, 10)
		trigger = models.TimeTrigger{Interval: interval}

	case "PRICE":
		var params struct {
			Symbol    string `json:"symbol"`
			Threshold string `json:"threshold"`
			Direction string `json:"direction"`
		}

		if err := json.Unmarshal(spec.Params, &params); err != nil {
			return 0, nil, err
		}

		threshold, _ := new(big.Int).SetString(params.Threshold, 10)

		direction := models.PriceAbove
		if params.Direction == "below" {
			direction = models.PriceBelow
		}

		trigger = models.PriceTrigger{Symbol: params.Symbol, Threshold: threshold, Direction: direction}

	case "WALLET_EVENT":
		var params struct {
			Token string `json:"token"`
			Event string `json:"event"`
		}

		if err := json.Unmarshal(spec.Params, &params); err != nil {
			return 0, nil, err
		}

		event := models.WalletTransferIn
		if params.Event == "transfer_out" {
			event = models.WalletTransferOut
		}

		trigger = models.WalletEventTrigger{Token: common.HexToAddress(params.Token), Event: event}

	default:
		return 0, nil, fmt.Errorf("unknown trigger type %q", spec.Type)
	}

	data, err := codec.EncodeTrigger(trigger)
	if err != nil {
		return 0, nil, err
	}

	return trigger.TriggerType(), data, nil
}

// EncodeActionSpec validates and encodes the action half of a request.
func EncodeActionSpec(spec ActionSpec) (models.ActionType, []byte, error) {
	if err := validateParams(spec.Type, spec.Params); err != nil {
		return 0, nil, err
	}

	var action models.Action

	switch spec.Type {
	case "NATIVE_TRANSFER":
		var params struct {
			Recipient string `json:"recipient"`
			Amount    string `json:"amount"`
		}

		if err := json.Unmarshal(spec.Params, &params); err != nil {
			return 0, nil, err
		}

		amount, _ := new(big.Int).SetString(params.Amount, 10)
		action = models.NativeTransferAction{Recipient: common.HexToAddress(params.Recipient), Amount: amount}

	case "ERC20_TRANSFER":
		var params struct {
			Token     string `json:"token"`
			Recipient string `json:"recipient"`
			Amount    string `json:"amount"`
		}

		if err := json.Unmarshal(spec.Params, &params); err != nil {
			return 0, nil, err
		}

		amount, _ := new(big.Int).SetString(params.Amount, 10)
		action = models.ERC20TransferAction{
			Token:     common.HexToAddress(params.Token),
			Recipient: common.HexToAddress(params.Recipient),
			Amount:    amount,
		}

	case "CONTRACT_CALL":
		var params struct {
			Target   string `json:"target"`
			Value    string `json:"value"`
			CallData string `json:"calldata"`
		}

		if err := json.Unmarshal(spec.Params, &params); err != nil {
			return 0, nil, err
		}

		value := new(big.Int)
		if params.Value != "" {
			value, _ = new(big.Int).SetString(params.Value, 10)
		}

		var callData []byte

		if params.CallData != "" {
			decoded, err := hexutil.Decode(params.CallData)
			if err != nil {
				return 0, nil, fmt.Errorf("invalid calldata: %w", err)
			}

			callData = decoded
		}

		action = models.ContractCallAction{
			Target:   common.HexToAddress(params.Target),
			Value:    value,
			CallData: callData,
		}

	default:
		return 0, nil, fmt.Errorf("unknown action type %q", spec.Type)
	}

	data, err := codec.EncodeAction(action)
	if err != nil {
		return 0, nil, err
	}

	return action.ActionType(), data, nil
}
