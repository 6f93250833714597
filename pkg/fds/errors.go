// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package fds

import (
	"context"
	"errors"

	"github.com/zeebo/errs"
)

var (
	// ErrInvalidArg is returned for malformed ids and arguments.
	ErrInvalidArg = errs.Class("invalid argument")
	// ErrNotFound is returned when a volume, blob or object is absent.
	ErrNotFound = errs.Class("not found")
	// ErrInvalidVersion is returned when a volume generation does not match
	// the generation a peer assumed.
	ErrInvalidVersion = errs.Class("invalid version")
	// ErrProtocol is returned when a peer sent a message that breaks the
	// migration protocol.
	ErrProtocol = errs.Class("protocol violation")
	// ErrTimeout is returned when a peer or a migration made no progress in time.
	ErrTimeout = errs.Class("timeout")
	// ErrIO wraps failures of the catalog or disk layer.
	ErrIO = errs.Class("io failure")
	// ErrInProgress is returned when an operation is already running for the
	// same volume, token or disk.
	ErrInProgress = errs.Class("already in progress")
	// ErrMigrationAborted is returned when a volume migration was aborted.
	ErrMigrationAborted = errs.Class("dm migration aborted")
)

// Code is the transport safe form of an error kind.
type Code uint32

// Error codes carried in migration messages.
const (
	CodeOK Code = iota
	CodeInvalidArg
	CodeNotFound
	CodeInvalidVersion
	CodeProtocol
	CodeTimeout
	CodeIO
	CodeInProgress
	CodeMigrationAborted
	CodeUnknown
)

var codeClasses = map[Code]*errs.Class{
	CodeInvalidArg:       &ErrInvalidArg,
	CodeNotFound:         &ErrNotFound,
	CodeInvalidVersion:   &ErrInvalidVersion,
	CodeProtocol:         &ErrProtocol,
	CodeTimeout:          &ErrTimeout,
	CodeIO:               &ErrIO,
	CodeInProgress:       &ErrInProgress,
	CodeMigrationAborted: &ErrMigrationAborted,
}

// CodeOf returns the code describing err.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	// most specific classes first: an aborted migration often wraps the
	// cause that triggered the abort.
	for _, code := range []Code{
		CodeMigrationAborted,
		CodeInvalidVersion,
		CodeProtocol,
		CodeInProgress,
		CodeNotFound,
		CodeTimeout,
		CodeIO,
		CodeInvalidArg,
	} {
		if codeClasses[code].Has(err) {
			return code
		}
	}
	return CodeUnknown
}

// Err converts the code back into an error. CodeOK returns nil.
func (code Code) Err(format string, args ...interface{}) error {
	if code == CodeOK {
		return nil
	}
	if class, ok := codeClasses[code]; ok {
		return class.New(format, args...)
	}
	return errs.New(format, args...)
}

// String implements fmt.Stringer.
func (code Code) String() string {
	switch code {
	case CodeOK:
		return "ERR_OK"
	case CodeInvalidArg:
		return "ERR_INVALID_ARG"
	case CodeNotFound:
		return "ERR_NOT_FOUND"
	case CodeInvalidVersion:
		return "ERR_INVALID_VERSION"
	case CodeProtocol:
		return "ERR_PROTOCOL"
	case CodeTimeout:
		return "ERR_SVC_REQUEST_TIMEOUT"
	case CodeIO:
		return "ERR_IO"
	case CodeInProgress:
		return "ERR_MIGRATION_IN_PROGRESS"
	case CodeMigrationAborted:
		return "ERR_DM_MIGRATION_ABORTED"
	default:
		return "ERR_UNKNOWN"
	}
}
