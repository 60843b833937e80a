// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package netparams groups the per network constants the wallet needs: the
// address prefix, the deployed system and standard scripts and the extended
// key version bytes used when serializing HD keys.
package netparams

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ckbwallet/cellwallet/cell"
)

// ErrUnknownNetwork is returned when no params match a name or prefix.
var ErrUnknownNetwork = errors.New("unknown network")

// ScriptInfo describes a deployed script: how to reference its code and
// which cell dep makes it available to transactions.
type ScriptInfo struct {
	CodeHash cell.Hash
	HashType cell.HashType
	CellDep  cell.CellDep
}

// Script returns a script running this code with the given args.
func (s ScriptInfo) Script(args []byte) cell.Script {
	return cell.Script{
		CodeHash: s.CodeHash,
		HashType: s.HashType,
		Args:     args,
	}
}

// Matches reports whether script runs this code.
func (s ScriptInfo) Matches(script *cell.Script) bool {
	return script != nil && script.CodeHash == s.CodeHash &&
		script.HashType == s.HashType
}

// Params is used to group parameters for the networks the wallet can run on.
type Params struct {
	// HD holds the extended key version bytes. Keys are serialized with
	// the bitcoin versions of the matching network type.
	HD *chaincfg.Params

	// Name is the human readable network name.
	Name string

	// AddressPrefix is the human readable part of bech32 addresses.
	AddressPrefix string

	Secp256k1    ScriptInfo
	Multisig     ScriptInfo
	AnyoneCanPay ScriptInfo
	Cheque       ScriptInfo
	SUDT         ScriptInfo
	DAO          ScriptInfo
}

func mustHash(s string) cell.Hash {
	h, err := cell.HashFromHex(s)
	if err != nil {
		panic(fmt.Sprintf("invalid hash constant %q: %v", s, err))
	}

	return h
}

func dep(txHash string, index uint32, depType cell.DepType) cell.CellDep {
	return cell.CellDep{
		OutPoint: cell.OutPoint{TxHash: mustHash(txHash), Index: index},
		DepType:  depType,
	}
}

var (
	secp256k1CodeHash = mustHash("0x9bd7e06f3ecf4be0f2fcd2188b23f1b9" +
		"fcc88e5d4b65a8637b17723bbda3cce8")
	multisigCodeHash = mustHash("0x5c5069eb0857efc65e1bca0c07df34c3" +
		"1663b3622fd3876c876320fc9634e2a8")
	daoCodeHash = mustHash("0x82d76d1b75fe2fd9a27dfbaa65a03922" +
		"1a380d76c926f378d3f81cf3e7e13f2e")
)

// MainNetParams contains the parameters for the main network.
var MainNetParams = Params{
	HD:            &chaincfg.MainNetParams,
	Name:          "mainnet",
	AddressPrefix: "ckb",
	Secp256k1: ScriptInfo{
		CodeHash: secp256k1CodeHash,
		HashType: cell.HashTypeType,
		CellDep: dep("0x71a7ba8fc96349fea0ed3a5c47992e3b"+
			"4084b031a42264a018e0072e8172e46c", 0,
			cell.DepTypeDepGroup),
	},
	Multisig: ScriptInfo{
		CodeHash: multisigCodeHash,
		HashType: cell.HashTypeType,
		CellDep: dep("0x71a7ba8fc96349fea0ed3a5c47992e3b"+
			"4084b031a42264a018e0072e8172e46c", 1,
			cell.DepTypeDepGroup),
	},
	AnyoneCanPay: ScriptInfo{
		CodeHash: mustHash("0xd369597ff47f29fbc0d47d2e3775370d" +
			"1250b85140c670e4718af712983a2354"),
		HashType: cell.HashTypeType,
		CellDep: dep("0x4153a2014952d7cac45f285ce9a7c5c0"+
			"c0e1b21f2d378b82ac1433cb11c25c4d", 0,
			cell.DepTypeDepGroup),
	},
	Cheque: ScriptInfo{
		CodeHash: mustHash("0xe4d4ecc6e5f9a059bf2f7a82cca29208" +
			"3aebc0c421566a52484fe2ec51a9fb0c"),
		HashType: cell.HashTypeType,
		CellDep: dep("0x04632cc459459cf5c9d384b43fee3e36"+
			"f542a858b2af91e7f3fd8e83ac7c6ae7", 0,
			cell.DepTypeDepGroup),
	},
	SUDT: ScriptInfo{
		CodeHash: mustHash("0x5e7a36a77e68eecc013dfa2fe6a23f3b" +
			"6c344b04005808694ae6dd45eea4cfd5"),
		HashType: cell.HashTypeType,
		CellDep: dep("0xc7813f6a415144643970c2e88e0bb6ca"+
			"6a8edc5dd7c1022746f628284a9936d5", 0,
			cell.DepTypeCode),
	},
	DAO: ScriptInfo{
		CodeHash: daoCodeHash,
		HashType: cell.HashTypeType,
		CellDep: dep("0xe2fb199810d49a4d8beec56718ba2593"+
			"b665db9d52299a0f9e6e75416d73ff5c", 2,
			cell.DepTypeCode),
	},
}

// TestNetParams contains the parameters for the public test network.
var TestNetParams = Params{
	HD:            &chaincfg.TestNet3Params,
	Name:          "testnet",
	AddressPrefix: "ckt",
	Secp256k1: ScriptInfo{
		CodeHash: secp256k1CodeHash,
		HashType: cell.HashTypeType,
		CellDep: dep("0xf8de3bb47d055cdf460d93a2a6e1b05f"+
			"7432f9777c8c474abf4eec1d4aee5d37", 0,
			cell.DepTypeDepGroup),
	},
	Multisig: ScriptInfo{
		CodeHash: multisigCodeHash,
		HashType: cell.HashTypeType,
		CellDep: dep("0xf8de3bb47d055cdf460d93a2a6e1b05f"+
			"7432f9777c8c474abf4eec1d4aee5d37", 1,
			cell.DepTypeDepGroup),
	},
	AnyoneCanPay: ScriptInfo{
		CodeHash: mustHash("0x3419a1c09eb2567f6552ee7a8ecffd64" +
			"155cffe0f1796e6e61ec088d740c1356"),
		HashType: cell.HashTypeType,
		CellDep: dep("0xec26b0f85ed839ece5f11c4c4e837ec3"+
			"59f5adc4420410f6453b1f6b60fb96a6", 0,
			cell.DepTypeDepGroup),
	},
	Cheque: ScriptInfo{
		CodeHash: mustHash("0x60d5f39efce409c587cb9ea359cefdea" +
			"d650ca128f0bd9cb3855348f98c70d5b"),
		HashType: cell.HashTypeType,
		CellDep: dep("0x7f96858be0a9d584b4a9ea190e042083"+
			"5156a6010a5fde15ffcdc9d9c721ccab", 0,
			cell.DepTypeDepGroup),
	},
	SUDT: ScriptInfo{
		CodeHash: mustHash("0xc5e5dcf215925f7ef4dfaf5f4b4f105b" +
			"c321c02776d6e7d52a1db3fcd9d011a4"),
		HashType: cell.HashTypeType,
		CellDep: dep("0xe12877ebd2c3c364dc46c5c992bcfaf4"+
			"fee33fa13eebdf82c591fc9825aab769", 0,
			cell.DepTypeCode),
	},
	DAO: ScriptInfo{
		CodeHash: daoCodeHash,
		HashType: cell.HashTypeType,
		CellDep: dep("0x8f8c79eb6671709633fe6a46de93c0fe"+
			"dc9c1b8a6527a18d3983879542635c9f", 2,
			cell.DepTypeCode),
	},
}

// allParams lists every known network.
var allParams = []*Params{&MainNetParams, &TestNetParams}

// ForPrefix returns the params whose address prefix matches.
func ForPrefix(prefix string) (*Params, error) {
	for _, p := range allParams {
		if p.AddressPrefix == prefix {
			return p, nil
		}
	}

	return nil, fmt.Errorf("%w: address prefix %q", ErrUnknownNetwork,
		prefix)
}

// ForName returns the params for a network name.
func ForName(name string) (*Params, error) {
	for _, p := range allParams {
		if p.Name == name {
			return p, nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, name)
}
