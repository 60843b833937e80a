// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cell

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// The canonical encoding uses four layouts: fixed size structs are plain
// concatenations, fixvecs prefix a u32 item count, while tables and dynvecs
// start with a u32 total size followed by one u32 offset per field. All
// integers are little endian.

// ErrMalformed is returned when decoding bytes that are not a valid
// encoding.
var ErrMalformed = errors.New("malformed serialization")

func putUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)

	return b
}

func putUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)

	return b
}

// serializeBytes encodes a byte fixvec.
func serializeBytes(b []byte) []byte {
	out := putUint32(uint32(len(b)))

	return append(out, b...)
}

// serializeFixVec encodes already serialized fixed size items.
func serializeFixVec(items [][]byte) []byte {
	out := putUint32(uint32(len(items)))
	for _, item := range items {
		out = append(out, item...)
	}

	return out
}

// serializeTable encodes a table or a dynvec; both share the same layout.
func serializeTable(fields [][]byte) []byte {
	headerSize := 4 * (1 + len(fields))
	total := headerSize
	for _, f := range fields {
		total += len(f)
	}

	out := make([]byte, 0, total)
	out = append(out, putUint32(uint32(total))...)

	offset := headerSize
	for _, f := range fields {
		out = append(out, putUint32(uint32(offset))...)
		offset += len(f)
	}
	for _, f := range fields {
		out = append(out, f...)
	}

	return out
}

// SerializeScript returns the canonical encoding of a script.
func SerializeScript(s *Script) []byte {
	return serializeTable([][]byte{
		s.CodeHash[:],
		{byte(s.HashType)},
		serializeBytes(s.Args),
	})
}

func serializeScriptOpt(s *Script) []byte {
	if s == nil {
		return nil
	}

	return SerializeScript(s)
}

func serializeOutPoint(o OutPoint) []byte {
	return append(o.TxHash[:len(o.TxHash):len(o.TxHash)],
		putUint32(o.Index)...)
}

func serializeCellInput(in CellInput) []byte {
	return append(putUint64(in.Since), serializeOutPoint(in.PreviousOutput)...)
}

func serializeCellOutput(o *CellOutput) []byte {
	return serializeTable([][]byte{
		putUint64(uint64(o.Capacity)),
		SerializeScript(&o.Lock),
		serializeScriptOpt(o.Type),
	})
}

func serializeCellDep(d CellDep) []byte {
	return append(serializeOutPoint(d.OutPoint), byte(d.DepType))
}

func serializeBytesVec(items [][]byte) []byte {
	fields := make([][]byte, 0, len(items))
	for _, item := range items {
		fields = append(fields, serializeBytes(item))
	}

	return serializeTable(fields)
}

// SerializeRawTransaction encodes the transaction without witnesses. Its
// digest is the transaction hash.
func SerializeRawTransaction(tx *Transaction) []byte {
	deps := make([][]byte, 0, len(tx.CellDeps))
	for _, d := range tx.CellDeps {
		deps = append(deps, serializeCellDep(d))
	}

	headers := make([][]byte, 0, len(tx.HeaderDeps))
	for i := range tx.HeaderDeps {
		headers = append(headers, tx.HeaderDeps[i][:])
	}

	inputs := make([][]byte, 0, len(tx.Inputs))
	for _, in := range tx.Inputs {
		inputs = append(inputs, serializeCellInput(in))
	}

	outputs := make([][]byte, 0, len(tx.Outputs))
	for i := range tx.Outputs {
		outputs = append(outputs, serializeCellOutput(&tx.Outputs[i]))
	}

	return serializeTable([][]byte{
		putUint32(tx.Version),
		serializeFixVec(deps),
		serializeFixVec(headers),
		serializeFixVec(inputs),
		serializeTable(outputs),
		serializeBytesVec(tx.OutputsData),
	})
}

// SerializeTransaction encodes the full transaction including witnesses.
func SerializeTransaction(tx *Transaction) []byte {
	return serializeTable([][]byte{
		SerializeRawTransaction(tx),
		serializeBytesVec(tx.Witnesses),
	})
}

// WitnessArgs is the structured witness consumed by the lock and type
// scripts of an input group. A nil field is absent.
type WitnessArgs struct {
	Lock       []byte
	InputType  []byte
	OutputType []byte
}

func serializeBytesOpt(b []byte) []byte {
	if b == nil {
		return nil
	}

	return serializeBytes(b)
}

// Serialize returns the canonical encoding of the witness.
func (w *WitnessArgs) Serialize() []byte {
	return serializeTable([][]byte{
		serializeBytesOpt(w.Lock),
		serializeBytesOpt(w.InputType),
		serializeBytesOpt(w.OutputType),
	})
}

// IsEmpty reports whether no field is set.
func (w *WitnessArgs) IsEmpty() bool {
	return w.Lock == nil && w.InputType == nil && w.OutputType == nil
}

// ParseWitnessArgs decodes a serialized WitnessArgs.
func ParseWitnessArgs(b []byte) (*WitnessArgs, error) {
	fields, err := parseTable(b, 3)
	if err != nil {
		return nil, err
	}

	opts := make([][]byte, 3)
	for i, f := range fields {
		if len(f) == 0 {
			continue
		}

		opts[i], err = parseBytes(f)
		if err != nil {
			return nil, err
		}
	}

	return &WitnessArgs{
		Lock:       opts[0],
		InputType:  opts[1],
		OutputType: opts[2],
	}, nil
}

// parseTable splits a table into its fields, checking the header is
// consistent and that it has exactly the expected number of fields.
func parseTable(b []byte, fieldCount int) ([][]byte, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("%w: table header too short", ErrMalformed)
	}

	total := int(binary.LittleEndian.Uint32(b))
	if total != len(b) {
		return nil, fmt.Errorf("%w: table size %d, have %d bytes",
			ErrMalformed, total, len(b))
	}

	if total == 4 {
		if fieldCount != 0 {
			return nil, fmt.Errorf("%w: empty table", ErrMalformed)
		}

		return nil, nil
	}
	if len(b) < 8 {
		return nil, fmt.Errorf("%w: missing first offset", ErrMalformed)
	}

	first := int(binary.LittleEndian.Uint32(b[4:]))
	if first%4 != 0 || first < 8 || first > total {
		return nil, fmt.Errorf("%w: bad first offset %d", ErrMalformed,
			first)
	}
	if first/4-1 != fieldCount {
		return nil, fmt.Errorf("%w: want %d fields, got %d",
			ErrMalformed, fieldCount, first/4-1)
	}

	offsets := make([]int, fieldCount+1)
	for i := 0; i < fieldCount; i++ {
		offsets[i] = int(binary.LittleEndian.Uint32(b[4+4*i:]))
	}
	offsets[fieldCount] = total

	fields := make([][]byte, fieldCount)
	for i := 0; i < fieldCount; i++ {
		start, end := offsets[i], offsets[i+1]
		if start > end || end > total {
			return nil, fmt.Errorf("%w: bad offsets", ErrMalformed)
		}
		fields[i] = b[start:end]
	}

	return fields, nil
}

func parseBytes(b []byte) ([]byte, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("%w: bytes header too short", ErrMalformed)
	}

	n := int(binary.LittleEndian.Uint32(b))
	if n != len(b)-4 {
		return nil, fmt.Errorf("%w: bytes length %d, have %d",
			ErrMalformed, n, len(b)-4)
	}

	return append([]byte{}, b[4:]...), nil
}
