// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package migration

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/facebookgo/clock"
	"github.com/spacemonkeygo/monkit/v3"
	"go.uber.org/zap"
	"storj.io/common/sync2"

	"github.com/vinaypunrao68/fds-src-sub016/dm/catalog"
	fdssync "github.com/vinaypunrao68/fds-src-sub016/internal/sync2"
	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
)

var mon = monkit.Package()

// Catalogs gives access to local volume catalogs.
type Catalogs interface {
	Get(ctx context.Context, id fds.VolumeID) (*catalog.VolumeCatalog, error)
}

// State is the node wide migration state.
type State int32

// Manager states.
const (
	MigrIdle State = iota
	MigrInProgress
	MigrAborted
)

// String implements fmt.Stringer.
func (state State) String() string {
	switch state {
	case MigrIdle:
		return "MIGR_IDLE"
	case MigrInProgress:
		return "MIGR_IN_PROGRESS"
	case MigrAborted:
		return "MIGR_ABORTED"
	default:
		return "UNKNOWN"
	}
}

// round is one StartMigration request of the coordinator.
type round struct {
	id          fds.MigrationID
	callback    func(error)
	outstanding int
	err         error
	// silent rounds failed synchronously and never call back.
	silent bool
}

// Manager runs the migration executors of a DM node. At most one executor
// exists per volume; different volumes migrate concurrently.
type Manager struct {
	log      *zap.Logger
	catalogs Catalogs
	svc      *services
	cancel   context.CancelFunc

	state atomic.Int32

	mu         sync.RWMutex
	sources    map[fds.VolumeID]*Source
	dests      map[fds.VolumeID]*Dest
	destRounds map[fds.VolumeID]*round
	forwarders map[fds.VolumeID]*Forwarder
	receivers  map[fds.VolumeID]*CatSyncReceiver
}

// NewManager returns the migration manager of node self. A nil clock uses
// the wall clock.
func NewManager(log *zap.Logger, self fds.NodeUUID, catalogs Catalogs, transport Transport, clk clock.Clock, config Config) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	config.normalize()

	ctx, cancel := context.WithCancel(context.Background())
	svc := &services{
		log:       log,
		config:    config,
		self:      self,
		transport: transport,
		ctx:       ctx,
		serial:    fdssync.NewSerializer[fds.VolumeID](),
		workers:   sync2.NewLimiter(config.Workers),
		timers:    fdssync.NewTimerService(log.Named("timers"), clk, config.Workers),
	}
	return &Manager{
		log:        log,
		catalogs:   catalogs,
		svc:        svc,
		cancel:     cancel,
		sources:    make(map[fds.VolumeID]*Source),
		dests:      make(map[fds.VolumeID]*Dest),
		destRounds: make(map[fds.VolumeID]*round),
		forwarders: make(map[fds.VolumeID]*Forwarder),
		receivers:  make(map[fds.VolumeID]*CatSyncReceiver),
	}
}

// State returns the node wide migration state.
func (manager *Manager) State() State { return State(manager.state.Load()) }

func (manager *Manager) activate() error {
	for {
		state := manager.State()
		switch state {
		case MigrAborted:
			return fds.ErrMigrationAborted.New("migration manager is aborting")
		case MigrInProgress:
			return nil
		}
		if manager.state.CompareAndSwap(int32(state), int32(MigrInProgress)) {
			return nil
		}
	}
}

// StartMigration creates a destination executor for every volume of msg and
// starts them. Either every executor is created and started, or the request
// fails as a whole: executors it created are aborted, the error is returned
// and callback is never called. Otherwise callback is called once with the
// first error after every volume finished.
func (manager *Manager) StartMigration(ctx context.Context, msg *StartMigration, callback func(error)) (err error) {
	defer mon.Task()(&ctx)(&err)

	if len(msg.Volumes) == 0 {
		if callback != nil {
			manager.svc.async(func() { callback(nil) })
		}
		return nil
	}

	// the request holds one reference to the round until every executor
	// started, so a volume finishing early cannot complete it.
	r := &round{id: msg.MigrationID, callback: callback, outstanding: len(msg.Volumes) + 1}
	created, err := manager.createDests(ctx, msg, r)
	if err != nil {
		return err
	}

	for _, dest := range created {
		dest := dest
		err := manager.svc.serial.Do(ctx, dest.volume, dest.Start)
		if err == nil {
			continue
		}

		manager.mu.Lock()
		r.silent = true
		manager.mu.Unlock()
		for _, other := range created {
			other.Abort(err)
		}
		manager.roundDone(r, nil)
		manager.log.Warn("start migration failed", zap.Uint64("migration", uint64(msg.MigrationID)), zap.Error(err))
		return err
	}
	manager.roundDone(r, nil)
	return nil
}

// roundDone releases one reference to r and calls back once the last one
// is released.
func (manager *Manager) roundDone(r *round, err error) {
	manager.mu.Lock()
	r.outstanding--
	if r.err == nil && err != nil {
		r.err = err
	}
	fire := r.outstanding == 0 && !r.silent
	manager.mu.Unlock()

	if fire && r.callback != nil {
		manager.log.Info("migration round done", zap.Uint64("migration", uint64(r.id)), zap.Error(r.err))
		r.callback(r.err)
	}
}

func (manager *Manager) createDests(ctx context.Context, msg *StartMigration, r *round) ([]*Dest, error) {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	if err := manager.activate(); err != nil {
		return nil, err
	}
	defer manager.idleIfEmpty()

	seen := make(map[fds.VolumeID]struct{}, len(msg.Volumes))
	catalogs := make([]*catalog.VolumeCatalog, 0, len(msg.Volumes))
	for _, vol := range msg.Volumes {
		if _, ok := seen[vol.Volume]; ok {
			return nil, fds.ErrInvalidArg.New("volume %v requested twice", vol.Volume)
		}
		seen[vol.Volume] = struct{}{}
		if err := manager.checkFree(vol.Volume); err != nil {
			return nil, err
		}
		vc, err := manager.catalogs.Get(ctx, vol.Volume)
		if err != nil {
			return nil, err
		}
		catalogs = append(catalogs, vc)
	}

	created := make([]*Dest, 0, len(msg.Volumes))
	for i, vol := range msg.Volumes {
		receiver := newCatSyncReceiver(manager.log.Named("catsync").With(zap.Stringer("volume", vol.Volume)),
			msg.MigrationID, catalogs[i], manager.svc.timers.Clock(), manager.receiverClosed)
		receiver.watch(manager.svc.ctx, manager.svc.timers, manager.svc.config.IdleCheckInterval, manager.svc.config.IdleTimeout)
		dest := newDest(manager.svc, msg.MigrationID, vol.Source, catalogs[i], receiver, manager.destDone)
		manager.dests[vol.Volume] = dest
		manager.destRounds[vol.Volume] = r
		manager.receivers[vol.Volume] = receiver
		created = append(created, dest)
		manager.log.Info("created destination executor",
			zap.Stringer("volume", vol.Volume),
			zap.Stringer("source", vol.Source),
			zap.Uint64("migration", uint64(msg.MigrationID)),
		)
	}
	return created, nil
}

// checkFree fails when volume already has an executor.
func (manager *Manager) checkFree(volume fds.VolumeID) error {
	if _, ok := manager.dests[volume]; ok {
		return fds.ErrInProgress.New("volume %v has a destination executor", volume)
	}
	if _, ok := manager.sources[volume]; ok {
		return fds.ErrInProgress.New("volume %v has a source executor", volume)
	}
	if _, ok := manager.receivers[volume]; ok {
		return fds.ErrInProgress.New("volume %v is still receiving forwards", volume)
	}
	return nil
}

// StartMigrationSource creates and starts the source executor answering a
// destination's filter set.
func (manager *Manager) StartMigrationSource(ctx context.Context, dest fds.NodeUUID, filter *InitialBlobFilterSet) (err error) {
	defer mon.Task()(&ctx)(&err)
	src, err := manager.createSource(ctx, dest, filter)
	if err != nil {
		return err
	}
	return src.Start(ctx)
}

func (manager *Manager) createSource(ctx context.Context, dest fds.NodeUUID, filter *InitialBlobFilterSet) (*Source, error) {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	if err := manager.activate(); err != nil {
		return nil, err
	}
	defer manager.idleIfEmpty()

	if err := manager.checkFree(filter.Volume); err != nil {
		return nil, err
	}
	if _, ok := manager.forwarders[filter.Volume]; ok {
		return nil, fds.ErrInProgress.New("volume %v is still forwarding", filter.Volume)
	}
	vc, err := manager.catalogs.Get(ctx, filter.Volume)
	if err != nil {
		return nil, err
	}

	volume := filter.Volume
	forwarder := newForwarder(manager.log.Named("forwarder").With(zap.Stringer("volume", volume)), filter.MigrationID, volume, dest, manager.svc.send)
	cleanup := func(err error) {
		if err == nil {
			return
		}
		manager.mu.Lock()
		defer manager.mu.Unlock()
		if manager.forwarders[volume] == forwarder {
			delete(manager.forwarders, volume)
		}
	}
	src := newSource(manager.svc, dest, vc, forwarder, filter, cleanup, manager.sourceDone)
	manager.sources[volume] = src
	manager.forwarders[volume] = forwarder
	manager.log.Info("created source executor", zap.Stringer("volume", volume), zap.Stringer("dest", dest))
	return src, nil
}

// destDone is the done callback of destination executors.
func (manager *Manager) destDone(volume fds.VolumeID, err error) {
	manager.mu.Lock()
	delete(manager.dests, volume)
	r := manager.destRounds[volume]
	delete(manager.destRounds, volume)
	if err != nil {
		if receiver, ok := manager.receivers[volume]; ok {
			receiver.Close()
			delete(manager.receivers, volume)
		}
	}

	manager.idleIfEmpty()
	manager.mu.Unlock()

	if err != nil {
		manager.log.Warn("destination executor failed", zap.Stringer("volume", volume), zap.Error(err))
	} else {
		manager.log.Info("destination executor completed", zap.Stringer("volume", volume))
	}
	if r != nil {
		manager.roundDone(r, err)
	}
}

// sourceDone is the done callback of source executors.
func (manager *Manager) sourceDone(volume fds.VolumeID, err error) {
	manager.mu.Lock()
	delete(manager.sources, volume)
	manager.idleIfEmpty()
	manager.mu.Unlock()

	if err != nil {
		mon.Counter("executors_aborted").Inc(1)
		manager.log.Warn("source executor failed", zap.Stringer("volume", volume), zap.Error(err))
	}
}

// receiverClosed drops a receiver once the forward stream ended.
func (manager *Manager) receiverClosed(volume fds.VolumeID) {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	delete(manager.receivers, volume)
	manager.log.Info("volume forwarding finished", zap.Stringer("volume", volume))
}

// idleIfEmpty returns to MigrIdle once no executor is left. It must be
// called with mu held.
func (manager *Manager) idleIfEmpty() {
	if len(manager.sources) == 0 && len(manager.dests) == 0 {
		manager.state.Store(int32(MigrIdle))
	}
}

func (manager *Manager) dest(volume fds.VolumeID) (*Dest, error) {
	manager.mu.RLock()
	defer manager.mu.RUnlock()
	dest, ok := manager.dests[volume]
	if !ok {
		return nil, fds.ErrNotFound.New("no destination executor for volume %v", volume)
	}
	return dest, nil
}

// OnDeltaBlobs dispatches a DeltaBlobs message to its destination.
func (manager *Manager) OnDeltaBlobs(ctx context.Context, msg *DeltaBlobs) error {
	dest, err := manager.dest(msg.Volume)
	if err != nil {
		return err
	}
	return manager.svc.serial.Do(ctx, msg.Volume, func(ctx context.Context) error {
		return dest.OnDeltaBlobs(ctx, msg)
	})
}

// OnDeltaBlobDescs dispatches a DeltaBlobDescs message to its destination.
func (manager *Manager) OnDeltaBlobDescs(ctx context.Context, msg *DeltaBlobDescs) error {
	dest, err := manager.dest(msg.Volume)
	if err != nil {
		return err
	}
	return manager.svc.serial.Do(ctx, msg.Volume, func(ctx context.Context) error {
		return dest.OnDeltaBlobDescs(ctx, msg)
	})
}

// OnFinishStaticMigration dispatches a FinishStaticMigration message.
func (manager *Manager) OnFinishStaticMigration(ctx context.Context, msg *FinishStaticMigration) error {
	dest, err := manager.dest(msg.Volume)
	if err != nil {
		return err
	}
	return manager.svc.serial.Do(ctx, msg.Volume, func(ctx context.Context) error {
		return dest.OnFinishStaticMigration(ctx, msg)
	})
}

// OnForwardCatalogUpdate applies a forwarded write to a syncing volume.
func (manager *Manager) OnForwardCatalogUpdate(ctx context.Context, msg *ForwardCatalogUpdate) error {
	manager.mu.RLock()
	receiver, ok := manager.receivers[msg.Volume]
	manager.mu.RUnlock()
	if !ok {
		return fds.ErrNotFound.New("volume %v is not syncing", msg.Volume)
	}
	return manager.svc.serial.Do(ctx, msg.Volume, func(ctx context.Context) error {
		return receiver.Receive(ctx, msg)
	})
}

// CommitUpdate applies a local write on the volume's queue and forwards it
// when the volume is migrating away.
func (manager *Manager) CommitUpdate(ctx context.Context, volume fds.VolumeID, update *catalog.CatalogUpdate) (err error) {
	defer mon.Task()(&ctx)(&err)
	return manager.svc.serial.Do(ctx, volume, func(ctx context.Context) error {
		vc, err := manager.catalogs.Get(ctx, volume)
		if err != nil {
			return err
		}
		if err := vc.ApplyUpdate(ctx, update); err != nil {
			return err
		}

		manager.mu.RLock()
		forwarder := manager.forwarders[volume]
		manager.mu.RUnlock()
		if forwarder == nil || !forwarder.ShouldForwardIO() {
			return nil
		}
		return forwarder.Forward(ctx, update)
	})
}

// StopForwarding ends forwarding of volume after the coordinator committed
// the new replica. The forwarder is kept until every queued update and the
// last forward were delivered, so a failed call can be retried.
func (manager *Manager) StopForwarding(ctx context.Context, volume fds.VolumeID) (err error) {
	defer mon.Task()(&ctx)(&err)
	manager.mu.RLock()
	forwarder, ok := manager.forwarders[volume]
	manager.mu.RUnlock()
	if !ok {
		return fds.ErrNotFound.New("volume %v is not forwarding", volume)
	}
	if err := manager.svc.serial.Do(ctx, volume, forwarder.Finish); err != nil {
		return err
	}

	manager.mu.Lock()
	defer manager.mu.Unlock()
	if manager.forwarders[volume] == forwarder {
		delete(manager.forwarders, volume)
	}
	return nil
}

// ShouldForwardIO reports whether writes to volume are forwarded.
func (manager *Manager) ShouldForwardIO(volume fds.VolumeID) bool {
	manager.mu.RLock()
	forwarder := manager.forwarders[volume]
	manager.mu.RUnlock()
	return forwarder != nil && forwarder.ShouldForwardIO()
}

// AbortMigration aborts every executor. The manager stays MigrAborted until
// the last executor is gone.
func (manager *Manager) AbortMigration() {
	manager.mu.Lock()
	manager.state.Store(int32(MigrAborted))
	executors := make([]Executor, 0, len(manager.sources)+len(manager.dests))
	for _, src := range manager.sources {
		executors = append(executors, src)
	}
	for _, dest := range manager.dests {
		executors = append(executors, dest)
	}
	manager.idleIfEmpty()
	manager.mu.Unlock()

	manager.log.Info("aborting migration", zap.Int("executors", len(executors)))
	cause := fds.ErrMigrationAborted.New("aborted by manager")
	for _, executor := range executors {
		executor.Abort(cause)
	}
}

// Executors lists the active executors.
func (manager *Manager) Executors() []ExecutorStatus {
	manager.mu.RLock()
	statuses := make([]ExecutorStatus, 0, len(manager.sources)+len(manager.dests))
	for _, src := range manager.sources {
		statuses = append(statuses, src.Status())
	}
	for _, dest := range manager.dests {
		statuses = append(statuses, dest.Status())
	}
	manager.mu.RUnlock()

	sort.Slice(statuses, func(i, k int) bool {
		if statuses[i].Volume != statuses[k].Volume {
			return statuses[i].Volume < statuses[k].Volume
		}
		return statuses[i].Role < statuses[k].Role
	})
	return statuses
}

// Close aborts every executor and waits for workers and callbacks.
func (manager *Manager) Close() error {
	manager.AbortMigration()

	manager.mu.Lock()
	for volume, forwarder := range manager.forwarders {
		forwarder.TurnOffForwarding()
		delete(manager.forwarders, volume)
	}
	for volume, receiver := range manager.receivers {
		receiver.Close()
		delete(manager.receivers, volume)
	}
	manager.mu.Unlock()

	manager.svc.workers.Wait()
	err := manager.svc.callbacks.Wait()
	manager.svc.timers.Close()
	manager.svc.serial.Close()
	manager.svc.workers.Close()
	manager.cancel()
	return err
}
