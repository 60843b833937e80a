// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cell

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ckbwallet/cellwallet/pkg/ckbunit"
)

// The JSON forms follow the node RPC conventions: integers and byte strings
// are 0x prefixed hex.

type hexUint64 uint64

func (h hexUint64) MarshalText() ([]byte, error) {
	return []byte("0x" + strconv.FormatUint(uint64(h), 16)), nil
}

func (h *hexUint64) UnmarshalText(b []byte) error {
	s := string(b)
	if !strings.HasPrefix(s, "0x") {
		return fmt.Errorf("%w: missing 0x prefix in %q", ErrInvalidHex, s)
	}

	v, err := strconv.ParseUint(s[2:], 16, 64)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidHex, err)
	}
	*h = hexUint64(v)

	return nil
}

type hexBytes []byte

func (h hexBytes) MarshalText() ([]byte, error) {
	return []byte(EncodeHex(h)), nil
}

func (h *hexBytes) UnmarshalText(b []byte) error {
	v, err := DecodeHex(string(b))
	if err != nil {
		return err
	}
	*h = v

	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(b []byte) error {
	v, err := HashFromHex(string(b))
	if err != nil {
		return err
	}
	*h = v

	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (t HashType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *HashType) UnmarshalText(b []byte) error {
	v, err := ParseHashType(string(b))
	if err != nil {
		return err
	}
	*t = v

	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d DepType) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DepType) UnmarshalText(b []byte) error {
	v, err := ParseDepType(string(b))
	if err != nil {
		return err
	}
	*d = v

	return nil
}

type jsonScript struct {
	CodeHash Hash     `json:"code_hash"`
	HashType HashType `json:"hash_type"`
	Args     hexBytes `json:"args"`
}

// MarshalJSON implements json.Marshaler.
func (s Script) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonScript{
		CodeHash: s.CodeHash,
		HashType: s.HashType,
		Args:     s.Args,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Script) UnmarshalJSON(b []byte) error {
	var j jsonScript
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	*s = Script{CodeHash: j.CodeHash, HashType: j.HashType, Args: j.Args}

	return nil
}

type jsonOutPoint struct {
	TxHash Hash      `json:"tx_hash"`
	Index  hexUint64 `json:"index"`
}

// MarshalJSON implements json.Marshaler.
func (o OutPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonOutPoint{
		TxHash: o.TxHash,
		Index:  hexUint64(o.Index),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *OutPoint) UnmarshalJSON(b []byte) error {
	var j jsonOutPoint
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	if j.Index > 0xffffffff {
		return fmt.Errorf("%w: index %d out of range", ErrMalformed,
			j.Index)
	}
	*o = OutPoint{TxHash: j.TxHash, Index: uint32(j.Index)}

	return nil
}

type jsonCellInput struct {
	Since          hexUint64 `json:"since"`
	PreviousOutput OutPoint  `json:"previous_output"`
}

// MarshalJSON implements json.Marshaler.
func (in CellInput) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonCellInput{
		Since:          hexUint64(in.Since),
		PreviousOutput: in.PreviousOutput,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (in *CellInput) UnmarshalJSON(b []byte) error {
	var j jsonCellInput
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	*in = CellInput{Since: uint64(j.Since), PreviousOutput: j.PreviousOutput}

	return nil
}

type jsonCellOutput struct {
	Capacity hexUint64 `json:"capacity"`
	Lock     Script    `json:"lock"`
	Type     *Script   `json:"type"`
}

// MarshalJSON implements json.Marshaler.
func (o CellOutput) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonCellOutput{
		Capacity: hexUint64(o.Capacity),
		Lock:     o.Lock,
		Type:     o.Type,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *CellOutput) UnmarshalJSON(b []byte) error {
	var j jsonCellOutput
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	*o = CellOutput{
		Capacity: ckbunit.Capacity(j.Capacity),
		Lock:     j.Lock,
		Type:     j.Type,
	}

	return nil
}

type jsonCellDep struct {
	OutPoint OutPoint `json:"out_point"`
	DepType  DepType  `json:"dep_type"`
}

// MarshalJSON implements json.Marshaler.
func (d CellDep) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonCellDep(d))
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *CellDep) UnmarshalJSON(b []byte) error {
	var j jsonCellDep
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	*d = CellDep(j)

	return nil
}

type jsonCell struct {
	OutPoint    OutPoint   `json:"out_point"`
	Output      CellOutput `json:"output"`
	Data        hexBytes   `json:"data"`
	BlockNumber hexUint64  `json:"block_number"`
	BlockHash   Hash       `json:"block_hash"`
}

// MarshalJSON implements json.Marshaler.
func (c Cell) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonCell{
		OutPoint:    c.OutPoint,
		Output:      c.Output,
		Data:        c.Data,
		BlockNumber: hexUint64(c.BlockNumber),
		BlockHash:   c.BlockHash,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Cell) UnmarshalJSON(b []byte) error {
	var j jsonCell
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	*c = Cell{
		OutPoint:    j.OutPoint,
		Output:      j.Output,
		Data:        j.Data,
		BlockNumber: uint64(j.BlockNumber),
		BlockHash:   j.BlockHash,
	}

	return nil
}

type jsonTransaction struct {
	Version     hexUint64    `json:"version"`
	CellDeps    []CellDep    `json:"cell_deps"`
	HeaderDeps  []Hash       `json:"header_deps"`
	Inputs      []CellInput  `json:"inputs"`
	Outputs     []CellOutput `json:"outputs"`
	OutputsData []hexBytes   `json:"outputs_data"`
	Witnesses   []hexBytes   `json:"witnesses"`
}

func toHexBytesSlice(in [][]byte) []hexBytes {
	out := make([]hexBytes, 0, len(in))
	for _, b := range in {
		out = append(out, b)
	}

	return out
}

func fromHexBytesSlice(in []hexBytes) [][]byte {
	out := make([][]byte, 0, len(in))
	for _, b := range in {
		out = append(out, b)
	}

	return out
}

// MarshalJSON implements json.Marshaler.
func (tx Transaction) MarshalJSON() ([]byte, error) {
	j := jsonTransaction{
		Version:     hexUint64(tx.Version),
		CellDeps:    tx.CellDeps,
		HeaderDeps:  tx.HeaderDeps,
		Inputs:      tx.Inputs,
		Outputs:     tx.Outputs,
		OutputsData: toHexBytesSlice(tx.OutputsData),
		Witnesses:   toHexBytesSlice(tx.Witnesses),
	}

	// Empty lists are emitted as [] rather than null.
	if j.CellDeps == nil {
		j.CellDeps = []CellDep{}
	}
	if j.HeaderDeps == nil {
		j.HeaderDeps = []Hash{}
	}
	if j.Inputs == nil {
		j.Inputs = []CellInput{}
	}
	if j.Outputs == nil {
		j.Outputs = []CellOutput{}
	}

	return json.Marshal(j)
}

// UnmarshalJSON implements json.Unmarshaler.
func (tx *Transaction) UnmarshalJSON(b []byte) error {
	var j jsonTransaction
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	if j.Version > 0xffffffff {
		return fmt.Errorf("%w: version %d out of range", ErrMalformed,
			j.Version)
	}

	*tx = Transaction{
		Version:     uint32(j.Version),
		CellDeps:    j.CellDeps,
		HeaderDeps:  j.HeaderDeps,
		Inputs:      j.Inputs,
		Outputs:     j.Outputs,
		OutputsData: fromHexBytesSlice(j.OutputsData),
		Witnesses:   fromHexBytesSlice(j.Witnesses),
	}

	return nil
}
