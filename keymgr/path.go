// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

const (
	// Purpose is the BIP44 purpose level.
	Purpose = 44

	// CoinType is the registered coin type of the chain.
	CoinType = 309

	// Account is the single account every wallet uses.
	Account = 0
)

// ErrInvalidPath is returned for a derivation path outside the wallet's
// account.
var ErrInvalidPath = errors.New("invalid derivation path")

// Branch is the BIP44 change level of a path.
type Branch uint32

const (
	// BranchReceiving holds addresses handed out to payers.
	BranchReceiving Branch = 0

	// BranchChange holds addresses used for the wallet's own change.
	BranchChange Branch = 1
)

// String returns the branch name.
func (b Branch) String() string {
	switch b {
	case BranchReceiving:
		return "receiving"
	case BranchChange:
		return "change"
	default:
		return fmt.Sprintf("Branch(%d)", uint32(b))
	}
}

// Path locates a key under m/44'/309'/0'.
type Path struct {
	Branch Branch
	Index  uint32
}

// String returns the path in m/44'/309'/0'/branch/index form.
func (p Path) String() string {
	return fmt.Sprintf("m/%d'/%d'/%d'/%d/%d", Purpose, CoinType, Account,
		p.Branch, p.Index)
}

// ParsePath parses a path string. Only paths below the wallet's account are
// accepted.
func ParsePath(s string) (Path, error) {
	prefix := fmt.Sprintf("m/%d'/%d'/%d'/", Purpose, CoinType, Account)
	if !strings.HasPrefix(s, prefix) {
		return Path{}, fmt.Errorf("%w: %q", ErrInvalidPath, s)
	}

	parts := strings.Split(strings.TrimPrefix(s, prefix), "/")
	if len(parts) != 2 {
		return Path{}, fmt.Errorf("%w: %q", ErrInvalidPath, s)
	}

	branch, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return Path{}, fmt.Errorf("%w: bad branch in %q",
			ErrInvalidPath, s)
	}

	index, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return Path{}, fmt.Errorf("%w: bad index in %q",
			ErrInvalidPath, s)
	}

	p := Path{Branch: Branch(branch), Index: uint32(index)}
	if err := p.validate(); err != nil {
		return Path{}, err
	}

	return p, nil
}

// validate checks the path is a non-hardened key on a known branch.
func (p Path) validate() error {
	if p.Branch != BranchReceiving && p.Branch != BranchChange {
		return fmt.Errorf("%w: unknown branch %d", ErrInvalidPath,
			uint32(p.Branch))
	}

	if p.Index >= hdkeychain.HardenedKeyStart {
		return fmt.Errorf("%w: hardened index %d", ErrInvalidPath,
			p.Index)
	}

	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Path) UnmarshalText(b []byte) error {
	parsed, err := ParsePath(string(b))
	if err != nil {
		return err
	}
	*p = parsed

	return nil
}
