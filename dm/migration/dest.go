// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package migration

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/vinaypunrao68/fds-src-sub016/dm/catalog"
	fdssync "github.com/vinaypunrao68/fds-src-sub016/internal/sync2"
	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
)

// Dest receives a volume from a source and applies it to the local catalog.
// Message handlers must be called from the volume's serial queue.
type Dest struct {
	svc       *services
	log       *zap.Logger
	migration fds.MigrationID
	volume    fds.VolumeID
	source    fds.NodeUUID
	catalog   *catalog.VolumeCatalog
	receiver  *CatSyncReceiver
	done      DoneFunc

	lastProgress atomic.Int64

	mu            sync.Mutex
	progress      Progress
	timer         *fdssync.Timer
	volumeVersion int64

	blobsSeq     *SeqNumReceiver
	descsSeq     *SeqNumReceiver
	pendingDescs []*DeltaBlobDescs
	sourceMeta   *catalog.VolumeMetaDesc
	finished     bool
}

func newDest(svc *services, migration fds.MigrationID, source fds.NodeUUID, vc *catalog.VolumeCatalog, receiver *CatSyncReceiver, done DoneFunc) *Dest {
	return &Dest{
		svc: svc,
		log: svc.log.Named("dest").With(
			zap.Stringer("volume", vc.ID()),
			zap.Uint64("migration", uint64(migration)),
		),
		migration: migration,
		volume:    vc.ID(),
		source:    source,
		catalog:   vc,
		receiver:  receiver,
		done:      done,
		blobsSeq:  NewSeqNumReceiver(),
		descsSeq:  NewSeqNumReceiver(),
	}
}

// Start moves to static migration, sends the initial filter set to the
// source and arms the idle timer.
func (d *Dest) Start(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	d.mu.Lock()
	next, effects, ok := transition(d.progress, eventStart)
	if !ok {
		d.mu.Unlock()
		return fds.ErrInProgress.New("destination for volume %v is %v", d.volume, d.progress)
	}
	d.progress = next
	d.mu.Unlock()
	d.touch()

	for _, eff := range effects {
		switch eff {
		case effectBegin:
			if err := d.sendFilterSet(ctx); err != nil {
				d.Abort(err)
				return err
			}
		case effectArmIdleTimer:
			d.armIdleTimer()
		}
	}
	return nil
}

func (d *Dest) sendFilterSet(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	vol, err := d.catalog.VolumeMeta(ctx)
	if err != nil {
		return err
	}
	msg := &InitialBlobFilterSet{
		MigrationID:   d.migration,
		Volume:        d.volume,
		VolumeVersion: vol.Version,
	}
	err = d.catalog.ForEachBlob(ctx, func(ctx context.Context, meta *catalog.BlobMetaDesc) error {
		msg.Blobs = append(msg.Blobs, BlobFilter{Name: meta.Name, Version: meta.Version})
		return nil
	})
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.volumeVersion = vol.Version
	d.mu.Unlock()

	d.log.Info("sending initial blob filter set", zap.Stringer("source", d.source), zap.Int("blobs", len(msg.Blobs)))
	return d.svc.send(ctx, d.source, msg)
}

func (d *Dest) armIdleTimer() {
	timer := d.svc.timers.Every(d.svc.ctx, d.svc.config.IdleCheckInterval, func(ctx context.Context) {
		if d.isMigrationIdle(d.svc.timers.Clock().Now()) {
			d.Abort(fds.ErrTimeout.New("no progress for %v", d.svc.config.IdleTimeout))
		}
	})

	d.mu.Lock()
	if d.progress.Terminal() {
		d.mu.Unlock()
		timer.Cancel()
		return
	}
	d.timer = timer
	d.mu.Unlock()
}

func (d *Dest) touch() {
	d.lastProgress.Store(d.svc.timers.Clock().Now().UnixNano())
}

// isMigrationIdle reports whether nothing happened for the idle timeout.
func (d *Dest) isMigrationIdle(now time.Time) bool {
	last := time.Unix(0, d.lastProgress.Load())
	return now.Sub(last) > d.svc.config.IdleTimeout
}

// Abort moves to MigrationAborted and reports the abort to the manager
// asynchronously. Only the first call has an effect.
func (d *Dest) Abort(cause error) {
	d.mu.Lock()
	next, effects, ok := transition(d.progress, eventAbort)
	if !ok {
		d.mu.Unlock()
		return
	}
	d.progress = next
	timer := d.timer
	d.mu.Unlock()

	d.log.Warn("migration aborted", zap.Error(cause))
	mon.Counter("executors_aborted").Inc(1)
	d.receiver.Close()
	d.runEffects(effects, timer, abortError(d.volume, cause))
}

func (d *Dest) runEffects(effects []effect, timer *fdssync.Timer, result error) {
	for _, eff := range effects {
		switch eff {
		case effectCancelIdleTimer:
			if timer != nil {
				timer.Cancel()
			}
		case effectNotifyDone:
			d.svc.async(func() { d.done(d.volume, result) })
		}
	}
}

// Status implements Executor.
func (d *Dest) Status() ExecutorStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return ExecutorStatus{
		Volume:      d.volume,
		Role:        RoleDest,
		MigrationID: d.migration,
		Peer:        d.source,
		Progress:    d.progress,
	}
}

// Progress returns the current state.
func (d *Dest) Progress() Progress {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.progress
}

// checkVolmetaVersion verifies the source computed its deltas against the
// volume version this destination reported.
func (d *Dest) checkVolmetaVersion(version int64) error {
	if version == catalog.InvalidVersion {
		return fds.ErrProtocol.New("source sent invalid volume version")
	}
	d.mu.Lock()
	local := d.volumeVersion
	d.mu.Unlock()
	if version != local {
		return fds.ErrInvalidVersion.New("volume %v version %d, source assumed %d", d.volume, local, version)
	}
	return nil
}

// accept validates a delta. It returns false when the delta must be ignored.
func (d *Dest) accept(migration fds.MigrationID, version int64) (bool, error) {
	if migration != d.migration {
		return false, fds.ErrProtocol.New("migration %d, expected %d", migration, d.migration)
	}
	switch progress := d.Progress(); progress {
	case MigrationComplete:
		return false, nil
	case MigrationAborted:
		return false, abortError(d.volume, nil)
	case NotStarted:
		return false, fds.ErrProtocol.New("delta before start")
	}
	if err := d.checkVolmetaVersion(version); err != nil {
		d.Abort(err)
		return false, err
	}
	d.touch()
	return true, nil
}

// OnDeltaBlobs applies object lists.
func (d *Dest) OnDeltaBlobs(ctx context.Context, msg *DeltaBlobs) (err error) {
	defer mon.Task()(&ctx)(&err)
	if ok, err := d.accept(msg.MigrationID, msg.VolumeVersion); !ok {
		return err
	}

	for _, blob := range msg.Blobs {
		if err := d.catalog.PutBlobObjects(ctx, blob.Name, blob.Objects); err != nil {
			d.Abort(err)
			return err
		}
	}
	mon.Counter("delta_blobs_applied").Inc(int64(len(msg.Blobs)))
	d.log.Debug("applied delta blobs", zap.Uint64("seq", msg.SeqNum), zap.Bool("last", msg.Last), zap.Int("blobs", len(msg.Blobs)))

	complete, err := d.blobsSeq.Set(msg.SeqNum, msg.Last)
	if err != nil {
		d.Abort(err)
		return err
	}
	if complete {
		if err := d.applyPendingDescs(ctx); err != nil {
			d.Abort(err)
			return err
		}
	}
	_, err = d.testStaticMigrationComplete(ctx)
	return err
}

// OnDeltaBlobDescs applies blob descriptors once every object list arrived,
// buffering them until then.
func (d *Dest) OnDeltaBlobDescs(ctx context.Context, msg *DeltaBlobDescs) (err error) {
	defer mon.Task()(&ctx)(&err)
	if ok, err := d.accept(msg.MigrationID, msg.VolumeVersion); !ok {
		return err
	}

	if !d.blobsSeq.Complete() {
		d.pendingDescs = append(d.pendingDescs, msg)
		return nil
	}
	if err := d.applyDescs(ctx, msg); err != nil {
		d.Abort(err)
		return err
	}
	_, err = d.testStaticMigrationComplete(ctx)
	return err
}

func (d *Dest) applyPendingDescs(ctx context.Context) error {
	pending := d.pendingDescs
	d.pendingDescs = nil
	for _, msg := range pending {
		if err := d.applyDescs(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dest) applyDescs(ctx context.Context, msg *DeltaBlobDescs) error {
	for i := range msg.Descs {
		delta := &msg.Descs[i]
		if delta.Deleted {
			if err := d.catalog.DeleteBlob(ctx, delta.Desc.Name); err != nil && !fds.ErrNotFound.Has(err) {
				return err
			}
			continue
		}
		if err := d.catalog.PutBlobMeta(ctx, &delta.Desc); err != nil {
			return err
		}
	}
	mon.Counter("delta_blob_descs_applied").Inc(int64(len(msg.Descs)))
	if msg.VolumeMeta != nil {
		d.sourceMeta = msg.VolumeMeta
	}
	_, err := d.descsSeq.Set(msg.SeqNum, msg.Last)
	return err
}

// OnFinishStaticMigration handles the source's result. A failed source
// aborts the destination.
func (d *Dest) OnFinishStaticMigration(ctx context.Context, msg *FinishStaticMigration) (err error) {
	defer mon.Task()(&ctx)(&err)
	if msg.MigrationID != d.migration {
		return fds.ErrProtocol.New("migration %d, expected %d", msg.MigrationID, d.migration)
	}
	if msg.Code != fds.CodeOK {
		d.Abort(msg.Code.Err("source: %s", msg.Message))
		return nil
	}
	d.touch()
	d.finished = true
	_, err = d.testStaticMigrationComplete(ctx)
	return err
}

// testStaticMigrationComplete completes the migration once both delta
// streams were fully received and applied.
func (d *Dest) testStaticMigrationComplete(ctx context.Context) (bool, error) {
	if d.Progress() != StaticMigrationInProgress {
		return d.Progress() == MigrationComplete, nil
	}
	if !d.blobsSeq.Complete() || !d.descsSeq.Complete() || len(d.pendingDescs) > 0 {
		return false, nil
	}

	vol, err := d.catalog.VolumeMeta(ctx)
	if err != nil {
		d.Abort(err)
		return false, err
	}
	if d.sourceMeta != nil {
		vol.SequenceID = d.sourceMeta.SequenceID
	}
	d.mu.Lock()
	vol.Version = d.volumeVersion + 1
	d.mu.Unlock()
	if err := d.catalog.SetVolumeMeta(ctx, vol); err != nil {
		d.Abort(err)
		return false, err
	}

	d.mu.Lock()
	next, effects, ok := transition(d.progress, eventComplete)
	if !ok {
		d.mu.Unlock()
		return false, nil
	}
	d.progress = next
	timer := d.timer
	d.mu.Unlock()

	d.log.Info("static migration complete",
		zap.Uint64("sequence", vol.SequenceID),
		zap.Int64("version", vol.Version),
		zap.Bool("finish received", d.finished),
	)
	if err := d.receiver.SwitchToForwarding(ctx); err != nil {
		d.log.Error("applying buffered forwards", zap.Error(err))
	}
	d.runEffects(effects, timer, nil)
	return true, nil
}
