// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package migration

import (
	"context"

	"go.uber.org/zap"

	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
)

// Endpoint dispatches inbound migration messages to a Manager.
type Endpoint struct {
	log       *zap.Logger
	manager   *Manager
	roundDone func(migration fds.MigrationID, err error)
}

// NewEndpoint returns the message handler of manager. roundDone receives the
// result of every StartMigration round started through the endpoint.
func NewEndpoint(log *zap.Logger, manager *Manager, roundDone func(fds.MigrationID, error)) *Endpoint {
	if log == nil {
		log = zap.NewNop()
	}
	return &Endpoint{log: log, manager: manager, roundDone: roundDone}
}

// Handle implements Handler.
func (endpoint *Endpoint) Handle(ctx context.Context, from fds.NodeUUID, msg Message) (err error) {
	defer mon.Task()(&ctx)(&err)

	switch msg := msg.(type) {
	case *StartMigration:
		id := msg.MigrationID
		return endpoint.manager.StartMigration(ctx, msg, func(err error) {
			if endpoint.roundDone != nil {
				endpoint.roundDone(id, err)
			}
		})
	case *InitialBlobFilterSet:
		return endpoint.manager.StartMigrationSource(ctx, from, msg)
	case *DeltaBlobs:
		return endpoint.manager.OnDeltaBlobs(ctx, msg)
	case *DeltaBlobDescs:
		return endpoint.manager.OnDeltaBlobDescs(ctx, msg)
	case *FinishStaticMigration:
		return endpoint.manager.OnFinishStaticMigration(ctx, msg)
	case *ForwardCatalogUpdate:
		return endpoint.manager.OnForwardCatalogUpdate(ctx, msg)
	default:
		endpoint.log.Warn("unexpected message", zap.Stringer("from", from), zap.Stringer("kind", msg.Kind()))
		return fds.ErrProtocol.New("unexpected message %v", msg.Kind())
	}
}
