package main

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/pkg/ckbunit"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// capacityFlag is a CKB amount given as a decimal number of CKB.
type capacityFlag struct {
	ckbunit.Capacity
}

// MarshalFlag satisfies the flags.Marshaler interface.
func (c *capacityFlag) MarshalFlag() (string, error) {
	return c.Capacity.String(), nil
}

// UnmarshalFlag satisfies the flags.Unmarshaler interface.
func (c *capacityFlag) UnmarshalFlag(value string) error {
	capacity, err := ckbunit.ParseCapacity(value)
	if err != nil {
		return err
	}
	c.Capacity = capacity

	return nil
}

// udtFlag is a token amount given as a decimal integer.
type udtFlag struct {
	ckbunit.UDTAmount
}

// MarshalFlag satisfies the flags.Marshaler interface.
func (u *udtFlag) MarshalFlag() (string, error) {
	return u.UDTAmount.String(), nil
}

// UnmarshalFlag satisfies the flags.Unmarshaler interface.
func (u *udtFlag) UnmarshalFlag(value string) error {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return fmt.Errorf("invalid token amount %q", value)
	}

	amount, err := ckbunit.UDTAmountFromBig(v)
	if err != nil {
		return err
	}
	u.UDTAmount = amount

	return nil
}

// outPointFlag is an out point given as <tx hash>:<index>.
type outPointFlag struct {
	cell.OutPoint
}

// MarshalFlag satisfies the flags.Marshaler interface.
func (o *outPointFlag) MarshalFlag() (string, error) {
	return o.OutPoint.String(), nil
}

// UnmarshalFlag satisfies the flags.Unmarshaler interface.
func (o *outPointFlag) UnmarshalFlag(value string) error {
	op, err := parseOutPoint(value)
	if err != nil {
		return err
	}
	o.OutPoint = op

	return nil
}

func parseOutPoint(value string) (cell.OutPoint, error) {
	txHash, index, ok := strings.Cut(value, ":")
	if !ok {
		return cell.OutPoint{}, fmt.Errorf("out point %q is not "+
			"<tx hash>:<index>", value)
	}

	hash, err := cell.HashFromHex(txHash)
	if err != nil {
		return cell.OutPoint{}, err
	}

	i, err := strconv.ParseUint(index, 10, 32)
	if err != nil {
		return cell.OutPoint{}, fmt.Errorf("out point index: %w", err)
	}

	return cell.OutPoint{TxHash: hash, Index: uint32(i)}, nil
}

// tokenFlag selects a token by its sUDT type args. Left empty it selects
// plain CKB.
type tokenFlag struct {
	token fn.Option[cell.Hash]
}

// MarshalFlag satisfies the flags.Marshaler interface.
func (t *tokenFlag) MarshalFlag() (string, error) {
	return fn.MapOptionZ(t.token, cell.Hash.String), nil
}

// UnmarshalFlag satisfies the flags.Unmarshaler interface.
func (t *tokenFlag) UnmarshalFlag(value string) error {
	if value == "" {
		t.token = fn.None[cell.Hash]()
		return nil
	}

	h, err := cell.HashFromHex(value)
	if err != nil {
		return err
	}
	t.token = fn.Some(h)

	return nil
}

// Token returns the selected token, None for plain CKB.
func (t *tokenFlag) Token() fn.Option[cell.Hash] {
	return t.token
}

// errMissingFlag is returned when a command is missing a required flag that
// go-flags can't enforce because its zero value is valid.
var errMissingFlag = errors.New("missing flag")
