// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package migration

import (
	"context"

	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
)

// Role is the side of a migration an executor runs.
type Role int

// Executor roles.
const (
	RoleSource Role = iota
	RoleDest
)

// String implements fmt.Stringer.
func (role Role) String() string {
	if role == RoleSource {
		return "source"
	}
	return "destination"
}

// Executor is the per volume migration state machine of one role.
type Executor interface {
	Start(ctx context.Context) error
	Abort(cause error)
	Status() ExecutorStatus
}

// ExecutorStatus describes an executor for operators.
type ExecutorStatus struct {
	Volume      fds.VolumeID
	Role        Role
	MigrationID fds.MigrationID
	Peer        fds.NodeUUID
	Progress    Progress
}

// DoneFunc is called once when an executor reaches a terminal state.
type DoneFunc func(volume fds.VolumeID, err error)
