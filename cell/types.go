// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package cell defines the on-chain data model of the cell based ledger:
// scripts, out points, cells and transactions, together with their canonical
// binary serialization and hashes.
package cell

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ckbwallet/cellwallet/pkg/ckbhash"
	"github.com/ckbwallet/cellwallet/pkg/ckbunit"
)

var (
	// ErrInvalidHex is returned when a hex string can't be decoded.
	ErrInvalidHex = errors.New("invalid hex string")

	// ErrInvalidHashType is returned for an unknown script hash type.
	ErrInvalidHashType = errors.New("invalid script hash type")

	// ErrInvalidDepType is returned for an unknown cell dep type.
	ErrInvalidDepType = errors.New("invalid cell dep type")
)

// Hash is a 32 byte blake2b digest.
type Hash [ckbhash.Size]byte

// HashFromHex decodes a 0x prefixed hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	var h Hash

	b, err := DecodeHex(s)
	if err != nil {
		return h, err
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidHex,
			len(h), len(b))
	}
	copy(h[:], b)

	return h, nil
}

// String returns the 0x prefixed hex encoding of the hash.
func (h Hash) String() string {
	return EncodeHex(h[:])
}

// IsZero reports whether all bytes of the hash are zero.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// HashType selects how a script's code hash is matched against cell deps.
type HashType byte

const (
	// HashTypeData matches the data hash of a dep cell.
	HashTypeData HashType = 0

	// HashTypeType matches the type script hash of a dep cell.
	HashTypeType HashType = 1

	// HashTypeData1 matches the data hash and runs on VM version 1.
	HashTypeData1 HashType = 2

	// HashTypeData2 matches the data hash and runs on VM version 2.
	HashTypeData2 HashType = 4
)

// String returns the name of the hash type as used in JSON.
func (t HashType) String() string {
	switch t {
	case HashTypeData:
		return "data"
	case HashTypeType:
		return "type"
	case HashTypeData1:
		return "data1"
	case HashTypeData2:
		return "data2"
	default:
		return fmt.Sprintf("HashType(%d)", byte(t))
	}
}

// ParseHashType parses the JSON name of a hash type.
func ParseHashType(s string) (HashType, error) {
	switch s {
	case "data":
		return HashTypeData, nil
	case "type":
		return HashTypeType, nil
	case "data1":
		return HashTypeData1, nil
	case "data2":
		return HashTypeData2, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidHashType, s)
	}
}

// Script is a lock or type script: a reference to code plus its arguments.
type Script struct {
	CodeHash Hash
	HashType HashType
	Args     []byte
}

// Hash returns the script hash, the digest of its serialization.
func (s *Script) Hash() Hash {
	return Hash(ckbhash.Blake2b256(SerializeScript(s)))
}

// Equal reports whether both scripts are identical.
func (s *Script) Equal(o *Script) bool {
	if s == nil || o == nil {
		return s == o
	}

	return s.CodeHash == o.CodeHash && s.HashType == o.HashType &&
		bytes.Equal(s.Args, o.Args)
}

// OccupiedBytes is the number of bytes the script occupies inside a cell.
func (s *Script) OccupiedBytes() uint64 {
	if s == nil {
		return 0
	}

	return uint64(len(s.CodeHash)) + 1 + uint64(len(s.Args))
}

// Clone returns a deep copy of the script.
func (s *Script) Clone() *Script {
	if s == nil {
		return nil
	}

	return &Script{
		CodeHash: s.CodeHash,
		HashType: s.HashType,
		Args:     bytes.Clone(s.Args),
	}
}

// OutPoint identifies a cell by the transaction that created it and its
// output index.
type OutPoint struct {
	TxHash Hash
	Index  uint32
}

// String returns a human readable form of the out point.
func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxHash, o.Index)
}

// CellInput spends a cell.
type CellInput struct {
	Since          uint64
	PreviousOutput OutPoint
}

// CellOutput describes a new cell. Type is nil when the cell carries no
// type script.
type CellOutput struct {
	Capacity ckbunit.Capacity
	Lock     Script
	Type     *Script
}

// OccupiedCapacity returns the minimum capacity the output must carry to
// hold itself and the given data.
func (o *CellOutput) OccupiedCapacity(data []byte) ckbunit.Capacity {
	n := 8 + o.Lock.OccupiedBytes() + o.Type.OccupiedBytes() +
		uint64(len(data))

	// A cell can't realistically be large enough for this to overflow.
	c, err := ckbunit.BytesToCapacity(n)
	if err != nil {
		return ckbunit.MaxCapacity
	}

	return c
}

// Clone returns a deep copy of the output.
func (o CellOutput) Clone() CellOutput {
	return CellOutput{
		Capacity: o.Capacity,
		Lock:     *o.Lock.Clone(),
		Type:     o.Type.Clone(),
	}
}

// DepType tells the VM whether a cell dep is code or a group of deps.
type DepType byte

const (
	// DepTypeCode references a single code cell.
	DepTypeCode DepType = 0

	// DepTypeDepGroup references a cell whose data lists more out points.
	DepTypeDepGroup DepType = 1
)

// String returns the JSON name of the dep type.
func (d DepType) String() string {
	switch d {
	case DepTypeCode:
		return "code"
	case DepTypeDepGroup:
		return "dep_group"
	default:
		return fmt.Sprintf("DepType(%d)", byte(d))
	}
}

// ParseDepType parses the JSON name of a dep type.
func ParseDepType(s string) (DepType, error) {
	switch s {
	case "code":
		return DepTypeCode, nil
	case "dep_group":
		return DepTypeDepGroup, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidDepType, s)
	}
}

// CellDep references code or a dep group needed to run a script.
type CellDep struct {
	OutPoint OutPoint
	DepType  DepType
}

// Cell is a live cell known to the wallet.
type Cell struct {
	OutPoint    OutPoint
	Output      CellOutput
	Data        []byte
	BlockNumber uint64
	BlockHash   Hash
}

// LockHash returns the hash of the cell's lock script.
func (c *Cell) LockHash() Hash {
	return c.Output.Lock.Hash()
}

// Transaction is a full transaction including witnesses.
type Transaction struct {
	Version     uint32
	CellDeps    []CellDep
	HeaderDeps  []Hash
	Inputs      []CellInput
	Outputs     []CellOutput
	OutputsData [][]byte
	Witnesses   [][]byte
}

// Hash returns the transaction hash. Witnesses are not committed to.
func (tx *Transaction) Hash() Hash {
	return Hash(ckbhash.Blake2b256(SerializeRawTransaction(tx)))
}

// SerializedSize returns the size counted for fees: the serialized
// transaction plus the 4 byte offset it takes inside a block.
func (tx *Transaction) SerializedSize() ckbunit.ByteSize {
	return ckbunit.NewByteSize(uint64(len(SerializeTransaction(tx))) + 4)
}

// AddCellDep appends dep unless an identical dep is already present.
func (tx *Transaction) AddCellDep(dep CellDep) {
	for _, d := range tx.CellDeps {
		if d == dep {
			return
		}
	}
	tx.CellDeps = append(tx.CellDeps, dep)
}

// AddOutput appends an output along with its data.
func (tx *Transaction) AddOutput(out CellOutput, data []byte) {
	tx.Outputs = append(tx.Outputs, out)
	tx.OutputsData = append(tx.OutputsData, data)
}

// Clone returns a deep copy of the transaction.
func (tx *Transaction) Clone() *Transaction {
	c := &Transaction{
		Version:    tx.Version,
		CellDeps:   append([]CellDep(nil), tx.CellDeps...),
		HeaderDeps: append([]Hash(nil), tx.HeaderDeps...),
		Inputs:     append([]CellInput(nil), tx.Inputs...),
	}
	for _, o := range tx.Outputs {
		c.Outputs = append(c.Outputs, o.Clone())
	}
	for _, d := range tx.OutputsData {
		c.OutputsData = append(c.OutputsData, bytes.Clone(d))
	}
	for _, w := range tx.Witnesses {
		c.Witnesses = append(c.Witnesses, bytes.Clone(w))
	}

	return c
}

// EncodeHex returns the 0x prefixed hex encoding of b.
func EncodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// DecodeHex decodes a 0x prefixed hex string.
func DecodeHex(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") {
		return nil, fmt.Errorf("%w: missing 0x prefix in %q",
			ErrInvalidHex, s)
	}

	b, err := hex.DecodeString(s[2:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHex, err)
	}

	return b, nil
}
