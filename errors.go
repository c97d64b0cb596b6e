// Copyright 2023 zkrollup-labs. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package rsmt

import (
	"github.com/pkg/errors"
)

var (
	// ErrVersionOutOfOrder is returned by Commit when the supplied version
	// is not exactly one past the current head (or 0 for the genesis commit).
	ErrVersionOutOfOrder = errors.New("commit version is out of order")

	// ErrVersionNotFound is returned when the requested version has no root
	// index entry, either because it was never committed or because it was
	// reverted or pruned.
	ErrVersionNotFound = errors.New("version not found")

	// ErrTargetVersionNotFound is returned by RevertTo when the target
	// version has no root index entry.
	ErrTargetVersionNotFound = errors.New("revert target version not found")

	// ErrTargetAheadOfHead is returned by RevertTo when the target version
	// is not strictly below the last committed version.
	ErrTargetAheadOfHead = errors.New("revert target is not below the current head")

	ErrKeyNotFound = errors.New("key not found in this version")

	ErrInvalidKey = errors.New("invalid key size")

	// ErrCorruptNode is returned when stored bytes cannot be decoded into a
	// tree node or metadata record.
	ErrCorruptNode = errors.New("corrupt node encoding")

	// ErrMissingNode is returned when a node referenced by a live version is
	// absent from the backing store.
	ErrMissingNode = errors.New("referenced tree node is missing")

	// ErrHashMismatch is reported by the consistency checker when a node's
	// recomputed hash differs from the hash recorded by its parent.
	ErrHashMismatch = errors.New("node hash mismatch")
)
