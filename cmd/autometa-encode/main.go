// Package main provides an operator CLI that encodes and inspects the packed
// trigger and action payloads accepted by the registry and executor.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/autometa/autometa/pkg/codec"
	"github.com/autometa/autometa/pkg/models"
	"github.com/autometa/autometa/pkg/web"
	"github.com/ethereum/go-ethereum/common/hexutil"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "autometa-encode",
		Usage:                 "Encode and decode workflow trigger and action payloads",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			{
				Name:  "trigger",
				Usage: "Encode a trigger payload",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "type",
						Usage:    "Trigger type (TIME, PRICE, WALLET_EVENT)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "params",
						Usage:    "Trigger params as JSON",
						Required: true,
					},
				},
				Action: encodeTrigger,
			},
			{
				Name:  "action",
				Usage: "Encode an action payload",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "type",
						Usage:    "Action type (NATIVE_TRANSFER, ERC20_TRANSFER, CONTRACT_CALL)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "params",
						Usage:    "Action params as JSON",
						Required: true,
					},
				},
				Action: encodeAction,
			},
			{
				Name:  "decode",
				Usage: "Decode a payload back into its typed form",
				Commands: []*cli.Command{
					{
						Name:  "trigger",
						Usage: "Decode a trigger payload",
						Flags: []cli.Flag{
							dataFlag(),
							&cli.StringFlag{
								Name:     "type",
								Usage:    "Trigger type (TIME, PRICE, WALLET_EVENT)",
								Required: true,
							},
						},
						Action: decodeTrigger,
					},
					{
						Name:   "action",
						Usage:  "Decode an action payload",
						Flags:  []cli.Flag{dataFlag()},
						Action: decodeAction,
					},
				},
			},
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func dataFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "data",
		Usage:    "Hex-encoded payload (0x-prefixed)",
		Required: true,
	}
}

func encodeTrigger(_ context.Context, command *cli.Command) error {
	_, data, err := web.EncodeTriggerSpec(web.TriggerSpec{
		Type:   command.String("type"),
		Params: json.RawMessage(command.String("params")),
	})
	if err != nil {
		return err
	}

	fmt.Println(hexutil.Encode(data))

	return nil
}

func encodeAction(_ context.Context, command *cli.Command) error {
	_, data, err := web.EncodeActionSpec(web.ActionSpec{
		Type:   command.String("type"),
		Params: json.RawMessage(command.String("params")),
	})
	if err != nil {
		return err
	}

	fmt.Println(hexutil.Encode(data))

	return nil
}

func decodeTrigger(_ context.Context, command *cli.Command) error {
	data, err := hexutil.Decode(command.String("data"))
	if err != nil {
		return err
	}

	triggerType, err := parseTriggerType(command.String("type"))
	if err != nil {
		return err
	}

	trigger, err := codec.DecodeTrigger(triggerType, data)
	if err != nil {
		return err
	}

	return printJSON(map[string]any{
		"type":   trigger.TriggerType().String(),
		"params": trigger,
	})
}

func decodeAction(_ context.Context, command *cli.Command) error {
	data, err := hexutil.Decode(command.String("data"))
	if err != nil {
		return err
	}

	action, err := codec.DecodeAction(data)
	if err != nil {
		return err
	}

	return printJSON(map[string]any{
		"type":   action.ActionType().String(),
		"params": action,
	})
}

func parseTriggerType(value string) (models.TriggerType, error) {
	switch value {
	case "TIME":
		return models.TriggerTime, nil
	case "PRICE":
		return models.TriggerPrice, nil
	case "WALLET_EVENT":
		return models.TriggerWalletEvent, nil
	default:
		return 0, fmt.Errorf("unknown trigger type %q", value)
	}
}

func printJSON(value any) error {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(encoded))

	return nil
}
