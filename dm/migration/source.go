// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package migration

import (
	"context"
	"encoding/binary"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"storj.io/common/sync2"

	"github.com/vinaypunrao68/fds-src-sub016/dm/catalog"
	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
	"github.com/vinaypunrao68/fds-src-sub016/storage"
)

// Source streams a volume snapshot to a destination.
type Source struct {
	svc       *services
	log       *zap.Logger
	migration fds.MigrationID
	volume    fds.VolumeID
	dest      fds.NodeUUID
	catalog   *catalog.VolumeCatalog
	forwarder *Forwarder
	filter    *InitialBlobFilterSet

	cleanup func(err error)
	done    DoneFunc

	aborted atomic.Bool

	mu            sync.Mutex
	progress      Progress
	workerStarted bool
	snapshot      *catalog.CatalogSnapshot
	released      bool
}

func newSource(svc *services, dest fds.NodeUUID, vc *catalog.VolumeCatalog, forwarder *Forwarder, filter *InitialBlobFilterSet, cleanup func(error), done DoneFunc) *Source {
	return &Source{
		svc: svc,
		log: svc.log.Named("source").With(
			zap.Stringer("volume", filter.Volume),
			zap.Uint64("migration", uint64(filter.MigrationID)),
		),
		migration: filter.MigrationID,
		volume:    filter.Volume,
		dest:      dest,
		catalog:   vc,
		forwarder: forwarder,
		filter:    filter,
		cleanup:   cleanup,
		done:      done,
	}
}

// Start schedules the worker on the migration pool.
func (src *Source) Start(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	src.mu.Lock()
	next, effects, ok := transition(src.progress, eventStart)
	if !ok {
		src.mu.Unlock()
		return fds.ErrInProgress.New("source for volume %v is %v", src.volume, src.progress)
	}
	src.progress = next
	src.workerStarted = true
	src.mu.Unlock()

	for _, eff := range effects {
		if eff != effectBegin {
			continue
		}
		src.log.Info("starting static migration", zap.Stringer("dest", src.dest), zap.Int("dest blobs", len(src.filter.Blobs)))
		if !src.svc.workers.Go(ctx, func() { src.run(src.svc.ctx) }) {
			err := fds.ErrMigrationAborted.New("worker pool closed")
			go src.finish(src.svc.ctx, err)
			return err
		}
	}
	return nil
}

// Abort asks the worker to stop. Messages already handed to the transport
// are not cancelled. Aborting twice is a no-op.
func (src *Source) Abort(cause error) {
	src.aborted.Store(true)

	src.mu.Lock()
	prev := src.progress
	next, _, ok := transition(src.progress, eventAbort)
	if ok {
		src.progress = next
	}
	started := src.workerStarted
	src.mu.Unlock()

	if !ok {
		return
	}
	src.log.Info("abort requested", zap.Stringer("progress", prev), zap.Error(cause))
	if !started {
		src.svc.async(func() {
			src.cleanup(abortError(src.volume, cause))
			src.done(src.volume, abortError(src.volume, cause))
		})
	}
}

// Status implements Executor.
func (src *Source) Status() ExecutorStatus {
	src.mu.Lock()
	defer src.mu.Unlock()
	return ExecutorStatus{
		Volume:      src.volume,
		Role:        RoleSource,
		MigrationID: src.migration,
		Peer:        src.dest,
		Progress:    src.progress,
	}
}

// ShouldForwardIO reports whether writes to the volume are forwarded.
func (src *Source) ShouldForwardIO() bool { return src.forwarder.ShouldForwardIO() }

// TurnOnForwarding starts forwarding writes to the destination.
func (src *Source) TurnOnForwarding() { src.forwarder.TurnOnForwarding() }

// TurnOffForwarding stops forwarding writes to the destination.
func (src *Source) TurnOffForwarding() { src.forwarder.TurnOffForwarding() }

func (src *Source) run(ctx context.Context) {
	err := src.runStatic(ctx)
	if err == nil && src.aborted.Load() {
		err = abortError(src.volume, nil)
	}
	src.finish(ctx, err)
}

// finish reports the result to the destination, then to the manager.
func (src *Source) finish(ctx context.Context, err error) {
	src.releaseSnapshot()

	code := fds.CodeOf(err)
	msg := &FinishStaticMigration{MigrationID: src.migration, Volume: src.volume, Code: code}
	if err != nil {
		msg.Message = err.Error()
	}
	if sendErr := src.svc.send(ctx, src.dest, msg); sendErr != nil {
		src.log.Warn("failed to send finish", zap.Error(sendErr))
		if err == nil {
			err = sendErr
		}
	}

	ev := eventComplete
	if err != nil {
		ev = eventAbort
		src.forwarder.TurnOffForwarding()
	}
	src.mu.Lock()
	if next, _, ok := transition(src.progress, ev); ok {
		src.progress = next
	}
	src.mu.Unlock()

	if err != nil {
		src.log.Warn("static migration failed", zap.Stringer("code", code), zap.Error(err))
	} else {
		src.log.Info("static migration sent")
	}
	src.cleanup(err)
	src.done(src.volume, err)
}

func (src *Source) runStatic(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)
	if src.aborted.Load() {
		return abortError(src.volume, nil)
	}

	// forwarding goes on in the same queue slot as the snapshot, so every
	// write is either in the snapshot or forwarded.
	err = src.svc.serial.Do(ctx, src.volume, func(ctx context.Context) error {
		src.forwarder.TurnOnForwarding()
		snap, err := src.catalog.Snapshot(ctx)
		if err != nil {
			src.forwarder.TurnOffForwarding()
			return err
		}
		src.mu.Lock()
		src.snapshot = snap
		src.mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}

	src.mu.Lock()
	snap := src.snapshot
	src.mu.Unlock()

	names, descs, err := src.processBlobFilterSet(ctx, snap)
	if err != nil {
		return err
	}
	return src.processBlobDiff(ctx, snap, names, descs)
}

func (src *Source) releaseSnapshot() {
	src.mu.Lock()
	defer src.mu.Unlock()
	if src.snapshot == nil || src.released {
		return
	}
	src.released = true
	src.snapshot.Release()
}

// processBlobFilterSet diffs the snapshot blob versions against the blobs
// the destination reported. It returns the blobs whose objects must be sent
// and the descriptor changes.
func (src *Source) processBlobFilterSet(ctx context.Context, snap *catalog.CatalogSnapshot) (names []string, descs []BlobDescDelta, err error) {
	defer mon.Task()(&ctx)(&err)

	metas := make(map[string]catalog.BlobMetaDesc)
	var local storage.Items
	err = snap.ForEachBlob(ctx, func(ctx context.Context, meta *catalog.BlobMetaDesc) error {
		metas[meta.Name] = *meta
		local = append(local, storage.ListItem{Key: catalog.BlobMetadataKey(meta.Name), Value: versionValue(meta.Version)})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	remote := make(storage.Items, 0, len(src.filter.Blobs))
	for _, blob := range src.filter.Blobs {
		remote = append(remote, storage.ListItem{Key: catalog.BlobMetadataKey(blob.Name), Value: versionValue(blob.Version)})
	}
	sort.SliceStable(remote, func(i, k int) bool { return catalog.KeyComparator(remote[i].Key, remote[k].Key) < 0 })

	differ := catalog.NewDiffer(catalog.SliceIterator(local), catalog.SliceIterator(remote), catalog.KeyComparator, nil)
	stats, err := catalog.DiffAll(ctx, differ, func(entry catalog.DiffEntry) error {
		name, err := catalog.DecodeBlobMetadataKey(entry.Key)
		if err != nil {
			return err
		}
		switch entry.Kind {
		case catalog.DiffAdditionalKey, catalog.DiffValueMismatch:
			names = append(names, name)
			descs = append(descs, BlobDescDelta{Desc: metas[name]})
		case catalog.DiffDeletedKey:
			descs = append(descs, BlobDescDelta{Desc: catalog.BlobMetaDesc{Name: name}, Deleted: true})
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	src.log.Debug("blob filter set processed",
		zap.Int("unchanged", stats.Match),
		zap.Int("changed", stats.ValueMismatch),
		zap.Int("new", stats.AdditionalKey),
		zap.Int("deleted", stats.DeletedKey),
	)
	return names, descs, nil
}

// processBlobDiff streams DeltaBlobs and then DeltaBlobDescs. Messages are
// sent concurrently; each stream is numbered from zero and its final message
// is marked last, so an empty stream is a single empty last message.
func (src *Source) processBlobDiff(ctx context.Context, snap *catalog.CatalogSnapshot, names []string, descs []BlobDescDelta) (err error) {
	defer mon.Task()(&ctx)(&err)

	sends := sync2.NewLimiter(src.svc.config.MaxInflightMessages)
	var failed firstError
	post := func(msg Message) bool {
		if src.aborted.Load() {
			failed.set(abortError(src.volume, nil))
			return false
		}
		if failed.get() != nil {
			return false
		}
		return sends.Go(ctx, func() {
			failed.set(src.svc.send(ctx, src.dest, msg))
		})
	}

	version := src.filter.VolumeVersion
	perMessage := src.svc.config.MaxDeltaBlobsPerMessage
	for seq, start := uint64(0), 0; ; seq++ {
		end := start + perMessage
		if end > len(names) {
			end = len(names)
		}
		msg := &DeltaBlobs{
			MigrationID:   src.migration,
			Volume:        src.volume,
			SeqNum:        seq,
			Last:          end == len(names),
			VolumeVersion: version,
		}
		for _, name := range names[start:end] {
			objs, err := snap.GetBlobObjects(ctx, name)
			if err != nil {
				failed.set(err)
				break
			}
			msg.Blobs = append(msg.Blobs, BlobDelta{Name: name, Objects: objs})
		}
		if failed.get() != nil || !post(msg) {
			break
		}
		mon.Counter("delta_blobs_sent").Inc(int64(len(msg.Blobs)))
		if msg.Last {
			break
		}
		start = end
	}

	if failed.get() == nil {
		vol, err := snap.VolumeMeta(ctx)
		if err != nil {
			failed.set(err)
		} else {
			src.postDescs(descs, vol, post)
		}
	}

	src.waitForAsyncMsgs(sends)
	return failed.get()
}

func (src *Source) postDescs(descs []BlobDescDelta, vol *catalog.VolumeMetaDesc, post func(Message) bool) {
	perMessage := src.svc.config.MaxDeltaBlobDescsPerMessage
	for seq, start := uint64(0), 0; ; seq++ {
		end := start + perMessage
		if end > len(descs) {
			end = len(descs)
		}
		msg := &DeltaBlobDescs{
			MigrationID:   src.migration,
			Volume:        src.volume,
			SeqNum:        seq,
			Last:          end == len(descs),
			VolumeVersion: src.filter.VolumeVersion,
			Descs:         descs[start:end],
		}
		if msg.Last {
			msg.VolumeMeta = vol
		}
		if !post(msg) {
			return
		}
		mon.Counter("delta_blob_descs_sent").Inc(int64(len(msg.Descs)))
		if msg.Last {
			return
		}
		start = end
	}
}

// waitForAsyncMsgs blocks until every posted message got its response.
func (src *Source) waitForAsyncMsgs(sends *sync2.Limiter) {
	sends.Wait()
}

func versionValue(version uint64) storage.Value {
	value := make(storage.Value, 8)
	binary.BigEndian.PutUint64(value, version)
	return value
}

func abortError(volume fds.VolumeID, cause error) error {
	if cause != nil {
		if fds.ErrMigrationAborted.Has(cause) {
			return cause
		}
		return fds.ErrMigrationAborted.Wrap(cause)
	}
	return fds.ErrMigrationAborted.New("volume %v", volume)
}
