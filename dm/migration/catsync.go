// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package migration

import (
	"context"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"go.uber.org/zap"

	"github.com/vinaypunrao68/fds-src-sub016/dm/catalog"
	fdssync "github.com/vinaypunrao68/fds-src-sub016/internal/sync2"
	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
)

// SyncState is the forwarding state of a destination volume.
type SyncState int

// Receiver states.
const (
	// RsyncInProgress buffers forwards until static migration completes.
	RsyncInProgress SyncState = iota
	// FwdInProgress applies forwards in sequence order.
	FwdInProgress
	// FwdFinishing saw the last forward and drains what is missing.
	FwdFinishing
	// SyncClosed no longer accepts forwards.
	SyncClosed
)

// String implements fmt.Stringer.
func (state SyncState) String() string {
	switch state {
	case RsyncInProgress:
		return "VSYNC_RECV_RSYNC_INPROG"
	case FwdInProgress:
		return "VSYNC_RECV_FWD_INPROG"
	case FwdFinishing:
		return "VSYNC_RECV_FWD_FINISHING"
	case SyncClosed:
		return "VSYNC_RECV_CLOSED"
	default:
		return "UNKNOWN"
	}
}

// CatSyncReceiver applies forwarded updates to a destination volume in the
// order the source committed them. Only forwards of its own migration are
// accepted.
type CatSyncReceiver struct {
	log       *zap.Logger
	migration fds.MigrationID
	volume    fds.VolumeID
	catalog   *catalog.VolumeCatalog
	clock     clock.Clock
	onClosed  func(volume fds.VolumeID)

	mu          sync.Mutex
	state       SyncState
	next        uint64
	terminal    uint64
	hasTerminal bool
	pending     map[uint64]*ForwardCatalogUpdate
	progressed  time.Time
	timer       *fdssync.Timer
}

func newCatSyncReceiver(log *zap.Logger, migration fds.MigrationID, vc *catalog.VolumeCatalog, clk clock.Clock, onClosed func(fds.VolumeID)) *CatSyncReceiver {
	if clk == nil {
		clk = clock.New()
	}
	return &CatSyncReceiver{
		log:        log,
		migration:  migration,
		volume:     vc.ID(),
		catalog:    vc,
		clock:      clk,
		onClosed:   onClosed,
		pending:    make(map[uint64]*ForwardCatalogUpdate),
		progressed: clk.Now(),
	}
}

// State returns the current state.
func (recv *CatSyncReceiver) State() SyncState {
	recv.mu.Lock()
	defer recv.mu.Unlock()
	return recv.state
}

// Receive accepts a forwarded update.
func (recv *CatSyncReceiver) Receive(ctx context.Context, msg *ForwardCatalogUpdate) (err error) {
	defer mon.Task()(&ctx)(&err)
	closed, err := recv.receive(ctx, msg)
	if closed && recv.onClosed != nil {
		recv.onClosed(recv.volume)
	}
	return err
}

func (recv *CatSyncReceiver) receive(ctx context.Context, msg *ForwardCatalogUpdate) (closed bool, err error) {
	recv.mu.Lock()
	defer recv.mu.Unlock()

	if recv.state == SyncClosed {
		return false, fds.ErrNotFound.New("volume %v is not syncing", recv.volume)
	}
	if msg.MigrationID != recv.migration {
		return false, fds.ErrProtocol.New("forward of migration %d, volume %v syncs migration %d",
			msg.MigrationID, recv.volume, recv.migration)
	}
	if msg.SeqNum < recv.next {
		return false, nil
	}
	if recv.hasTerminal && msg.SeqNum > recv.terminal {
		return false, fds.ErrProtocol.New("forward %d after last forward %d", msg.SeqNum, recv.terminal)
	}
	if msg.IsSentinel() {
		if recv.hasTerminal && recv.terminal != msg.SeqNum {
			return false, fds.ErrProtocol.New("second last forward %d, had %d", msg.SeqNum, recv.terminal)
		}
		recv.terminal, recv.hasTerminal = msg.SeqNum, true
		if recv.state == FwdInProgress {
			recv.state = FwdFinishing
		}
	}
	if len(recv.pending) == 0 {
		recv.progressed = recv.clock.Now()
	}
	recv.pending[msg.SeqNum] = msg

	if recv.state == RsyncInProgress {
		return false, nil
	}
	return recv.drain(ctx)
}

// SwitchToForwarding is called once static migration completed. Buffered
// forwards are applied.
func (recv *CatSyncReceiver) SwitchToForwarding(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)
	closed, err := recv.switchToForwarding(ctx)
	if closed && recv.onClosed != nil {
		recv.onClosed(recv.volume)
	}
	return err
}

func (recv *CatSyncReceiver) switchToForwarding(ctx context.Context) (bool, error) {
	recv.mu.Lock()
	defer recv.mu.Unlock()
	if recv.state != RsyncInProgress {
		return false, nil
	}
	recv.state = FwdInProgress
	recv.progressed = recv.clock.Now()
	if recv.hasTerminal {
		recv.state = FwdFinishing
	}
	recv.log.Info("applying forwarded updates", zap.Int("buffered", len(recv.pending)))
	return recv.drain(ctx)
}

// drain applies contiguous pending updates. It reports whether the stream
// ended.
func (recv *CatSyncReceiver) drain(ctx context.Context) (bool, error) {
	for {
		msg, ok := recv.pending[recv.next]
		if !ok {
			break
		}
		if !msg.IsSentinel() {
			if err := recv.catalog.ApplyUpdate(ctx, &msg.Update); err != nil {
				return false, err
			}
			mon.Counter("forwards_applied").Inc(1)
		}
		delete(recv.pending, recv.next)
		recv.next++
		recv.progressed = recv.clock.Now()
	}

	if recv.state == FwdFinishing && recv.next > recv.terminal {
		recv.closeLocked()
		recv.log.Info("forwarding finished", zap.Uint64("applied", recv.next))
		return true, nil
	}
	return false, nil
}

// watch closes the receiver once forwarding is stalled on a missing update
// for longer than timeout. It checks every interval.
func (recv *CatSyncReceiver) watch(ctx context.Context, timers *fdssync.TimerService, interval, timeout time.Duration) {
	timer := timers.Every(ctx, interval, func(ctx context.Context) {
		if recv.expire(timeout) && recv.onClosed != nil {
			recv.onClosed(recv.volume)
		}
	})

	recv.mu.Lock()
	defer recv.mu.Unlock()
	if recv.state == SyncClosed {
		timer.Cancel()
		return
	}
	recv.timer = timer
}

// stalled reports whether updates wait behind a missing one for longer than
// timeout. It must be called with mu held.
func (recv *CatSyncReceiver) stalled(timeout time.Duration) bool {
	if recv.state != FwdInProgress && recv.state != FwdFinishing {
		return false
	}
	if len(recv.pending) == 0 {
		return false
	}
	return recv.clock.Now().Sub(recv.progressed) > timeout
}

func (recv *CatSyncReceiver) expire(timeout time.Duration) bool {
	recv.mu.Lock()
	defer recv.mu.Unlock()
	if !recv.stalled(timeout) {
		return false
	}
	mon.Counter("forwards_stalled").Inc(1)
	recv.log.Warn("forwarding stalled, closing",
		zap.Uint64("missing", recv.next),
		zap.Int("buffered", len(recv.pending)),
		zap.Duration("timeout", timeout),
	)
	recv.closeLocked()
	return true
}

// Close stops accepting forwards and drops what is buffered.
func (recv *CatSyncReceiver) Close() {
	recv.mu.Lock()
	defer recv.mu.Unlock()
	recv.closeLocked()
}

func (recv *CatSyncReceiver) closeLocked() {
	recv.state = SyncClosed
	recv.pending = make(map[uint64]*ForwardCatalogUpdate)
	if recv.timer != nil {
		recv.timer.Cancel()
		recv.timer = nil
	}
}
