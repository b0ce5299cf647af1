package web_test

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/autometa/autometa/pkg/codec"
	"github.com/autometa/autometa/pkg/models"
	"github.com/autometa/autometa/pkg/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeTriggerSpecRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		spec     web.TriggerSpec
		expected models.Trigger
	}{
		{
			name: "time trigger",
			spec: web.TriggerSpec{
				Type:   "TIME",
				Params: json.RawMessage(`{"interval": "300"}`),
			},
			expected: models.TimeTrigger{Interval: bigInt("300")},
		},
		{
			name: "price trigger below",
			spec: web.TriggerSpec{
				Type:   "PRICE",
				Params: json.RawMessage(`{"symbol": "eth", "threshold": "2000000000000000000000", "direction": "below"}`),
			},
			expected: models.PriceTrigger{
				Symbol:    "eth",
				Threshold: bigInt("2000000000000000000000"),
				Direction: models.PriceBelow,
			},
		},
		{
			name: "wallet event trigger",
			spec: web.TriggerSpec{
				Type:   "WALLET_EVENT",
				Params: json.RawMessage(`{"token": "` + bobAddr.Hex() + `", "event": "transfer_out"}`),
			},
			expected: models.WalletEventTrigger{Token: bobAddr, Event: models.WalletTransferOut},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			triggerType, data, err := web.EncodeTriggerSpec(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.expected.TriggerType(), triggerType)

			decoded, err := codec.DecodeTrigger(triggerType, data)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, decoded)
		})
	}
}

func TestEncodeActionSpecRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		spec     web.ActionSpec
		expected models.Action
	}{
		{
			name: "native transfer",
			spec: web.ActionSpec{
				Type:   "NATIVE_TRANSFER",
				Params: json.RawMessage(`{"recipient": "` + bobAddr.Hex() + `", "amount": "1000"}`),
			},
			expected: models.NativeTransferAction{Recipient: bobAddr, Amount: bigInt("1000")},
		},
		{
			name: "erc20 transfer",
			spec: web.ActionSpec{
				Type:   "ERC20_TRANSFER",
				Params: json.RawMessage(`{"token": "` + aliceAddr.Hex() + `", "recipient": "` + bobAddr.Hex() + `", "amount": "5"}`),
			},
			expected: models.ERC20TransferAction{Token: aliceAddr, Recipient: bobAddr, Amount: bigInt("5")},
		},
		{
			name: "contract call with calldata",
			spec: web.ActionSpec{
				Type:   "CONTRACT_CALL",
				Params: json.RawMessage(`{"target": "` + bobAddr.Hex() + `", "value": "7", "calldata": "0xdeadbeef"}`),
			},
			expected: models.ContractCallAction{
				Target:   bobAddr,
				Value:    bigInt("7"),
				CallData: []byte{0xde, 0xad, 0xbe, 0xef},
			},
		},
		{
			name: "contract call defaults",
			spec: web.ActionSpec{
				Type:   "CONTRACT_CALL",
				Params: json.RawMessage(`{"target": "` + bobAddr.Hex() + `"}`),
			},
			expected: models.ContractCallAction{Target: bobAddr, Value: bigInt("0")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actionType, data, err := web.EncodeActionSpec(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.expected.ActionType(), actionType)

			// Compare on the wire form; big.Int zero values have more
			// than one in-memory representation.
			want, err := codec.EncodeAction(tt.expected)
			require.NoError(t, err)
			assert.Equal(t, want, data)
		})
	}
}

func TestEncodeSpecRejectsBadParams(t *testing.T) {
	triggerSpecs := []web.TriggerSpec{
		{Type: "TIME", Params: json.RawMessage(`{}`)},
		{Type: "TIME", Params: json.RawMessage(`{"interval": "soon"}`)},
		{Type: "TIME", Params: json.RawMessage(`{"interval": "300", "extra": true}`)},
		{Type: "PRICE", Params: json.RawMessage(`{"symbol": "eth", "threshold": "1", "direction": "sideways"}`)},
		{Type: "WALLET_EVENT", Params: json.RawMessage(`{"token": "tokenish", "event": "transfer_in"}`)},
		{Type: "WEATHER", Params: json.RawMessage(`{}`)},
	}

	for _, spec := range triggerSpecs {
		_, _, err := web.EncodeTriggerSpec(spec)
		assert.Error(t, err, "spec %s %s", spec.Type, spec.Params)
	}

	actionSpecs := []web.ActionSpec{
		{Type: "NATIVE_TRANSFER", Params: json.RawMessage(`{"recipient": "` + bobAddr.Hex() + `"}`)},
		{Type: "ERC20_TRANSFER", Params: json.RawMessage(`{"token": "x", "recipient": "` + bobAddr.Hex() + `", "amount": "1"}`)},
		{Type: "CONTRACT_CALL", Params: json.RawMessage(`{"target": "` + bobAddr.Hex() + `", "calldata": "0xabc"}`)},
		{Type: "SELF_DESTRUCT", Params: json.RawMessage(`{}`)},
	}

	for _, spec := range actionSpecs {
		_, _, err := web.EncodeActionSpec(spec)
		assert.Error(t, err, "spec %s %s", spec.Type, spec.Params)
	}
}

func bigInt(value string) *big.Int {
	v, _ := new(big.Int).SetString(value, 10)

	return v
}
