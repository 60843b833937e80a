// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package db

import "errors"

var (
	// ErrNilDB is returned when a store is created without a database
	// connection.
	ErrNilDB = errors.New("nil database connection")

	// ErrWalletNotFound is returned when no wallet is stored under an id.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrWalletExists is returned when creating a wallet under an id that
	// is already taken.
	ErrWalletExists = errors.New("wallet already exists")
)

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrDatabase indicates a database error.
	ErrDatabase ErrorCode = iota

	// ErrCorruptRow indicates a stored row could not be decoded.
	ErrCorruptRow
)

// Error identifies a store error. It has an error code and a descriptive
// message.
type Error struct {
	Code ErrorCode
	Desc string
	Err  error
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	if e.Err != nil {
		return e.Desc + ": " + e.Err.Error()
	}

	return e.Desc
}

// Unwrap returns the underlying error, if any.
func (e Error) Unwrap() error {
	return e.Err
}

// newError creates an Error given a set of arguments.
func newError(c ErrorCode, desc string, err error) Error {
	return Error{Code: c, Desc: desc, Err: err}
}
