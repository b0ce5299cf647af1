// Package codec encodes and decodes workflow trigger and action payloads.
//
// Payloads cross the system boundary as tightly packed bytes: fixed-width
// big-endian integers, 20-byte addresses, no offset tables. Inside the system
// only the typed variants from pkg/models are used; nothing else branches on
// raw payload bytes.
package codec

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInvalidActionType indicates an unrecognized action discriminator byte.
	ErrInvalidActionType = errors.New("invalid action type")

	// ErrInvalidTriggerType indicates an unrecognized trigger type.
	ErrInvalidTriggerType = errors.New("invalid trigger type")

	// ErrMalformedPayload indicates a payload that does not match the wire
	// layout of its declared type.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrValueOutOfRange indicates an amount that cannot be represented as an
	// unsigned 256-bit integer.
	ErrValueOutOfRange = errors.New("value out of uint256 range")
)

const (
	addressLen = common.AddressLength
	wordLen    = 32
)

// appendUint256 appends v as a 32-byte big-endian word. A nil value encodes
// as zero.
func appendUint256(dst []byte, v *big.Int) ([]byte, error) {
	if v == nil {
		return append(dst, make([]byte, wordLen)...), nil
	}

	if v.Sign() < 0 || v.BitLen() > 256 {
		return nil, fmt.Errorf("%w: %s", ErrValueOutOfRange, v)
	}

	var word [wordLen]byte

	v.FillBytes(word[:])

	return append(dst, word[:]...), nil
}

func readUint256(src []byte) *big.Int {
	return new(big.Int).SetBytes(src[:wordLen])
}

func readAddress(src []byte) common.Address {
	return common.BytesToAddress(src[:addressLen])
}
