// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package address converts between lock scripts and their human readable
// bech32 addresses.
package address

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/netparams"
)

// Payload format tags.
const (
	formatFull     byte = 0x00
	formatShort    byte = 0x01
	formatFullData byte = 0x02
	formatFullType byte = 0x04
)

// Code indexes of the short format.
const (
	codeIndexSecp256k1    byte = 0x00
	codeIndexMultisig     byte = 0x01
	codeIndexAnyoneCanPay byte = 0x02
)

var (
	// ErrInvalidAddress is returned when a string is not a well formed
	// address.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrWrongNetwork is returned when an address belongs to another
	// network than the one expected.
	ErrWrongNetwork = errors.New("address is for another network")

	// ErrUnknownCodeIndex is returned for a short address whose code
	// index doesn't name a known script.
	ErrUnknownCodeIndex = errors.New("unknown short address code index")

	// ErrShortFormatUnsupported is returned when encoding a script that
	// has no short address form.
	ErrShortFormatUnsupported = errors.New("script has no short address")
)

// Decode parses an address of any format and returns its lock script along
// with the network it belongs to.
func Decode(addr string) (*cell.Script, *netparams.Params, error) {
	// Full addresses are longer than the 90 characters bech32.Decode
	// allows.
	hrp, data5, version, err := bech32.DecodeNoLimitWithVersion(addr)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}

	params, err := netparams.ForPrefix(hrp)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}

	payload, err := bech32.ConvertBits(data5, 5, 8, false)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}

	if len(payload) > 0 && version != checksumVersion(payload[0]) {
		return nil, nil, fmt.Errorf("%w: format 0x%02x with wrong "+
			"checksum variant", ErrInvalidAddress, payload[0])
	}

	script, err := decodePayload(payload, params)
	if err != nil {
		return nil, nil, err
	}

	return script, params, nil
}

// checksumVersion returns the checksum variant a payload format is encoded
// with. Only the full format uses bech32m.
func checksumVersion(format byte) bech32.Version {
	if format == formatFull {
		return bech32.VersionM
	}

	return bech32.Version0
}

// Parse decodes addr and checks that it belongs to the given network.
func Parse(addr string, params *netparams.Params) (*cell.Script, error) {
	script, got, err := Decode(addr)
	if err != nil {
		return nil, err
	}
	if got.AddressPrefix != params.AddressPrefix {
		return nil, fmt.Errorf("%w: %s address on %s", ErrWrongNetwork,
			got.Name, params.Name)
	}

	return script, nil
}

func decodePayload(payload []byte,
	params *netparams.Params) (*cell.Script, error) {

	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidAddress)
	}

	switch payload[0] {
	case formatFull:
		// code_hash | hash_type | args
		if len(payload) < 1+32+1 {
			return nil, fmt.Errorf("%w: full payload too short",
				ErrInvalidAddress)
		}

		var codeHash cell.Hash
		copy(codeHash[:], payload[1:33])

		hashType := cell.HashType(payload[33])
		if _, err := cell.ParseHashType(hashType.String()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
		}

		return &cell.Script{
			CodeHash: codeHash,
			HashType: hashType,
			Args:     append([]byte{}, payload[34:]...),
		}, nil

	case formatFullData, formatFullType:
		if len(payload) < 1+32 {
			return nil, fmt.Errorf("%w: full payload too short",
				ErrInvalidAddress)
		}

		var codeHash cell.Hash
		copy(codeHash[:], payload[1:33])

		hashType := cell.HashTypeData
		if payload[0] == formatFullType {
			hashType = cell.HashTypeType
		}

		return &cell.Script{
			CodeHash: codeHash,
			HashType: hashType,
			Args:     append([]byte{}, payload[33:]...),
		}, nil

	case formatShort:
		if len(payload) < 2 {
			return nil, fmt.Errorf("%w: short payload too short",
				ErrInvalidAddress)
		}

		info, err := shortCodeInfo(payload[1], params)
		if err != nil {
			return nil, err
		}

		script := info.Script(append([]byte{}, payload[2:]...))

		return &script, nil

	default:
		return nil, fmt.Errorf("%w: unknown format 0x%02x",
			ErrInvalidAddress, payload[0])
	}
}

func shortCodeInfo(index byte,
	params *netparams.Params) (netparams.ScriptInfo, error) {

	switch index {
	case codeIndexSecp256k1:
		return params.Secp256k1, nil
	case codeIndexMultisig:
		return params.Multisig, nil
	case codeIndexAnyoneCanPay:
		return params.AnyoneCanPay, nil
	default:
		return netparams.ScriptInfo{}, fmt.Errorf("%w: 0x%02x",
			ErrUnknownCodeIndex, index)
	}
}

// Encode returns the full format address of a lock script.
func Encode(script *cell.Script, params *netparams.Params) (string, error) {
	payload := make([]byte, 0, 1+32+1+len(script.Args))
	payload = append(payload, formatFull)
	payload = append(payload, script.CodeHash[:]...)
	payload = append(payload, byte(script.HashType))
	payload = append(payload, script.Args...)

	data5, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", err
	}

	return bech32.EncodeM(params.AddressPrefix, data5)
}

// EncodeShort returns the deprecated short format address, which only exists
// for the single key, multisig and anyone-can-pay locks.
func EncodeShort(script *cell.Script,
	params *netparams.Params) (string, error) {

	var index byte
	switch {
	case params.Secp256k1.Matches(script):
		index = codeIndexSecp256k1
	case params.Multisig.Matches(script):
		index = codeIndexMultisig
	case params.AnyoneCanPay.Matches(script):
		index = codeIndexAnyoneCanPay
	default:
		return "", ErrShortFormatUnsupported
	}

	payload := append([]byte{formatShort, index}, script.Args...)
	data5, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", err
	}

	return bech32.Encode(params.AddressPrefix, data5)
}
