// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package migration

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/vinaypunrao68/fds-src-sub016/dm/catalog"
	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
)

// Forwarder relays writes committed on a migrating source volume to the
// destination on a single ordered stream. A message that fails to send keeps
// its sequence number and is resent before any later one.
type Forwarder struct {
	log       *zap.Logger
	migration fds.MigrationID
	volume    fds.VolumeID
	dest      fds.NodeUUID
	send      func(ctx context.Context, to fds.NodeUUID, msg Message) error

	on atomic.Bool

	mu       sync.Mutex
	seq      uint64
	unsent   []*ForwardCatalogUpdate
	finished bool
}

func newForwarder(log *zap.Logger, migration fds.MigrationID, volume fds.VolumeID, dest fds.NodeUUID, send func(context.Context, fds.NodeUUID, Message) error) *Forwarder {
	return &Forwarder{
		log:       log,
		migration: migration,
		volume:    volume,
		dest:      dest,
		send:      send,
	}
}

// ShouldForwardIO reports whether committed writes must be forwarded.
func (fwd *Forwarder) ShouldForwardIO() bool { return fwd.on.Load() }

// TurnOnForwarding starts forwarding.
func (fwd *Forwarder) TurnOnForwarding() { fwd.on.Store(true) }

// TurnOffForwarding stops forwarding without ending the stream.
func (fwd *Forwarder) TurnOffForwarding() { fwd.on.Store(false) }

// Forward relays update if forwarding is on. Updates are numbered and sent
// one at a time in call order. When sending fails the update stays queued
// and the error is returned.
func (fwd *Forwarder) Forward(ctx context.Context, update *catalog.CatalogUpdate) (err error) {
	defer mon.Task()(&ctx)(&err)
	if !fwd.ShouldForwardIO() {
		return nil
	}

	fwd.mu.Lock()
	defer fwd.mu.Unlock()
	if fwd.finished {
		return nil
	}

	fwd.unsent = append(fwd.unsent, &ForwardCatalogUpdate{
		MigrationID: fwd.migration,
		Volume:      fwd.volume,
		SeqNum:      fwd.seq,
		Update:      *update,
	})
	fwd.seq++
	return fwd.flush(ctx)
}

// Finish turns forwarding off and ends the stream with the last forward
// sentinel after every queued update. A failed Finish can be retried;
// finishing a delivered stream is a no-op.
func (fwd *Forwarder) Finish(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)
	fwd.TurnOffForwarding()

	fwd.mu.Lock()
	defer fwd.mu.Unlock()
	if !fwd.finished {
		fwd.finished = true
		fwd.log.Info("finishing forwarding", zap.Uint64("seq", fwd.seq))
		fwd.unsent = append(fwd.unsent, &ForwardCatalogUpdate{
			MigrationID: fwd.migration,
			Volume:      fwd.volume,
			SeqNum:      fwd.seq,
			LastForward: true,
		})
	}
	return fwd.flush(ctx)
}

// flush sends queued messages in order, stopping at the first failure. It
// must be called with mu held.
func (fwd *Forwarder) flush(ctx context.Context) error {
	for len(fwd.unsent) > 0 {
		msg := fwd.unsent[0]
		err := fwd.send(ctx, fwd.dest, msg)
		if err != nil && fds.ErrNotFound.Has(err) {
			// the destination no longer syncs the volume
			if msg.IsSentinel() {
				err = nil
			} else {
				fwd.log.Warn("destination dropped the forward stream", zap.Uint64("seq", msg.SeqNum), zap.Error(err))
				fwd.TurnOffForwarding()
				fwd.finished = true
				fwd.unsent = nil
				return err
			}
		}
		if err != nil {
			mon.Counter("forwards_failed").Inc(1)
			fwd.log.Warn("forward failed, will resend",
				zap.Uint64("seq", msg.SeqNum),
				zap.Int("queued", len(fwd.unsent)),
				zap.Error(err),
			)
			return err
		}
		fwd.log.Debug("forwarded update", zap.Uint64("seq", msg.SeqNum), zap.String("blob", msg.Update.Blob.Name))
		mon.Counter("forwards_sent").Inc(1)
		fwd.unsent[0] = nil
		fwd.unsent = fwd.unsent[1:]
	}
	return nil
}

// Queued returns how many messages wait to be resent.
func (fwd *Forwarder) Queued() int {
	fwd.mu.Lock()
	defer fwd.mu.Unlock()
	return len(fwd.unsent)
}

// Sent returns how many updates were numbered, delivered or queued.
func (fwd *Forwarder) Sent() uint64 {
	fwd.mu.Lock()
	defer fwd.mu.Unlock()
	return fwd.seq
}
