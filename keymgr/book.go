// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/ckbwallet/cellwallet/pkg/ckbhash"
)

const (
	// DefaultReceivingWindow is the number of unused receiving addresses
	// kept derived past the last used one.
	DefaultReceivingWindow = 20

	// DefaultChangeWindow is the number of unused change addresses kept
	// derived past the last used one.
	DefaultChangeWindow = 10
)

var (
	// ErrUnknownBranch is returned for a branch other than receiving or
	// change.
	ErrUnknownBranch = errors.New("unknown branch")

	// ErrBranchExhausted is returned when a branch has no unused address
	// derived, which only happens with a zero window.
	ErrBranchExhausted = errors.New("no unused address on branch")
)

// branchState maintains the lookahead window of one derivation branch.
//
// It supports operations for:
//   - Expanding the horizon based on which indexes have been used.
//   - Registering derived addresses with indexes within the horizon.
//   - Reporting an invalid child index that falls into the horizon.
//   - Reporting that an address has been used.
type branchState struct {
	// window is the number of unused addresses kept past the last used
	// one.
	window uint32

	// horizon records the next child index to derive on this branch.
	horizon uint32

	// nextUnused is the successor of the highest used index.
	nextUnused uint32

	// addresses maps child index to address for every derived address.
	addresses map[uint32]*AddressInfo

	// invalidChildren records the set of child indexes that derive to
	// invalid keys.
	invalidChildren map[uint32]struct{}
}

func newBranchState(window uint32) *branchState {
	return &branchState{
		window:          window,
		addresses:       make(map[uint32]*AddressInfo),
		invalidChildren: make(map[uint32]struct{}),
	}
}

// extendHorizon returns the current horizon and the number of addresses that
// must be derived in order to maintain the window.
func (b *branchState) extendHorizon() (uint32, uint32) {
	curHorizon := b.horizon

	minValidHorizon := b.nextUnused + b.window + b.numInvalidInHorizon()
	if curHorizon >= minValidHorizon {
		return curHorizon, 0
	}

	delta := minValidHorizon - curHorizon
	b.horizon = minValidHorizon

	return curHorizon, delta
}

// reportUsed updates the last used index if the reported index exceeds the
// current value.
func (b *branchState) reportUsed(index uint32) {
	if index >= b.nextUnused {
		b.nextUnused = index + 1

		// Prune all invalid child indexes that fall below our last
		// used index. We don't need to keep these entries any longer,
		// since they will not affect our required lookahead.
		for childIndex := range b.invalidChildren {
			if childIndex < index {
				delete(b.invalidChildren, childIndex)
			}
		}
	}

	if info, ok := b.addresses[index]; ok {
		info.Used = true
	}
}

// markInvalidChild records that a particular child index leads to an invalid
// key. The horizon is bumped so that a full window of valid keys remains.
func (b *branchState) markInvalidChild(index uint32) {
	b.invalidChildren[index] = struct{}{}
	b.horizon++
}

// numInvalidInHorizon counts the invalid children between the last used
// index and the horizon.
func (b *branchState) numInvalidInHorizon() uint32 {
	var nInvalid uint32
	for childIndex := range b.invalidChildren {
		if b.nextUnused <= childIndex && childIndex < b.horizon {
			nInvalid++
		}
	}

	return nInvalid
}

// AddressBook keeps the receiving and change branches of an account derived
// up to their lookahead windows and tracks which addresses have been used.
type AddressBook struct {
	mu sync.Mutex

	account  *AccountKey
	branches map[Branch]*branchState
	byHash   map[[ckbhash.Blake160Size]byte]*AddressInfo
}

// NewAddressBook derives the initial windows of both branches.
func NewAddressBook(account *AccountKey, receivingWindow,
	changeWindow uint32) (*AddressBook, error) {

	b := &AddressBook{
		account: account,
		branches: map[Branch]*branchState{
			BranchReceiving: newBranchState(receivingWindow),
			BranchChange:    newBranchState(changeWindow),
		},
		byHash: make(map[[ckbhash.Blake160Size]byte]*AddressInfo),
	}

	for _, branch := range []Branch{BranchReceiving, BranchChange} {
		if err := b.fill(branch); err != nil {
			return nil, err
		}
	}

	return b, nil
}

// fill derives addresses until the branch's window is satisfied. The caller
// must hold the mutex or own the book exclusively.
func (b *AddressBook) fill(branch Branch) error {
	state := b.branches[branch]

	curHorizon, toDerive := state.extendHorizon()
	count, childIndex := uint32(0), curHorizon
	for count < toDerive {
		info, err := b.account.DeriveAddress(Path{
			Branch: branch, Index: childIndex,
		})
		if err != nil {
			// Skip the invalid index and keep going so the window
			// still holds the full number of valid addresses.
			if errors.Is(err, hdkeychain.ErrInvalidChild) {
				state.markInvalidChild(childIndex)
				childIndex++

				continue
			}

			return fmt.Errorf("derive address: %w", err)
		}

		state.addresses[childIndex] = &info
		b.byHash[info.Blake160] = &info

		childIndex++
		count++
	}

	if toDerive > 0 {
		log.Debugf("Extended %v branch to horizon %d", branch,
			state.horizon)
	}

	return nil
}

// NextUnused returns the lowest index address of the branch that hasn't been
// used yet.
func (b *AddressBook) NextUnused(branch Branch) (AddressInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.branches[branch]
	if !ok {
		return AddressInfo{}, fmt.Errorf("%w: %d", ErrUnknownBranch,
			branch)
	}

	for i := uint32(0); i < state.horizon; i++ {
		info, ok := state.addresses[i]
		if ok && !info.Used {
			return *info, nil
		}
	}

	return AddressInfo{}, fmt.Errorf("%w: %v", ErrBranchExhausted, branch)
}

// MarkUsed records that the address with the given key hash was used and
// extends its branch's window. It reports whether the hash belongs to the
// book.
func (b *AddressBook) MarkUsed(blake160 [ckbhash.Blake160Size]byte) (bool,
	error) {

	b.mu.Lock()
	defer b.mu.Unlock()

	info, ok := b.byHash[blake160]
	if !ok {
		return false, nil
	}

	b.branches[info.Path.Branch].reportUsed(info.Path.Index)

	return true, b.fill(info.Path.Branch)
}

// Lookup returns the address with the given key hash.
func (b *AddressBook) Lookup(
	blake160 [ckbhash.Blake160Size]byte) (AddressInfo, bool) {

	b.mu.Lock()
	defer b.mu.Unlock()

	info, ok := b.byHash[blake160]
	if !ok {
		return AddressInfo{}, false
	}

	return *info, true
}

// All returns every derived address, receiving branch first, each branch in
// index order.
func (b *AddressBook) All() []AddressInfo {
	b.mu.Lock()
	defer b.mu.Unlock()

	var all []AddressInfo
	for _, branch := range []Branch{BranchReceiving, BranchChange} {
		state := b.branches[branch]
		for i := uint32(0); i < state.horizon; i++ {
			if info, ok := state.addresses[i]; ok {
				all = append(all, *info)
			}
		}
	}

	return all
}
