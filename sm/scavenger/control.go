// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package scavenger

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"storj.io/common/sync2"

	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
	"github.com/vinaypunrao68/fds-src-sub016/sm/placement"
)

// DiskStatus describes the scavenger of one disk.
type DiskStatus struct {
	Disk   fds.DiskID
	State  State
	Tokens int
	Last   *Report
}

// ScavControl runs the disk scavengers of an SM.
//
// architecture: Chore
type ScavControl struct {
	log    *zap.Logger
	config Config

	mu    sync.RWMutex
	disks map[fds.DiskID]*DiskScavenger

	passMu sync.Mutex
	cancel context.CancelFunc

	Loop *sync2.Cycle
}

// NewScavControl returns a controller without disks.
func NewScavControl(log *zap.Logger, config Config) *ScavControl {
	config.normalize()
	return &ScavControl{
		log:    log,
		config: config,
		disks:  make(map[fds.DiskID]*DiskScavenger),
		Loop:   sync2.NewCycle(config.Interval),
	}
}

// AddDisk registers the store of a disk.
func (control *ScavControl) AddDisk(id fds.DiskID, path string, store TokenStore) (*DiskScavenger, error) {
	control.mu.Lock()
	defer control.mu.Unlock()
	if _, ok := control.disks[id]; ok {
		return nil, fds.ErrInProgress.New("disk %v already registered", id)
	}
	if store.BitsPerToken() != control.config.BitsPerToken {
		return nil, fds.ErrInvalidArg.New("disk %v uses %d bit tokens, expected %d", id, store.BitsPerToken(), control.config.BitsPerToken)
	}
	scavenger := NewDiskScavenger(control.log.Named("disk"), id, path, store, control.config)
	control.disks[id] = scavenger
	return scavenger, nil
}

// Disk returns the scavenger of a disk.
func (control *ScavControl) Disk(id fds.DiskID) (*DiskScavenger, bool) {
	control.mu.RLock()
	defer control.mu.RUnlock()
	scavenger, ok := control.disks[id]
	return scavenger, ok
}

func (control *ScavControl) scavengers() []*DiskScavenger {
	control.mu.RLock()
	defer control.mu.RUnlock()
	scavengers := make([]*DiskScavenger, 0, len(control.disks))
	for _, scavenger := range control.disks {
		scavengers = append(scavengers, scavenger)
	}
	sort.Slice(scavengers, func(i, k int) bool { return scavengers[i].disk < scavengers[k].disk })
	return scavengers
}

// UpdateTokens makes every disk scavenge exactly the tokens olt places on
// it. It returns how many compactors were added and deleted.
func (control *ScavControl) UpdateTokens(olt *placement.ObjectLocationTable) (added, deleted int) {
	olt.GenerateDiskToTokenMap()
	for _, scavenger := range control.scavengers() {
		want := make(map[fds.SmToken]struct{})
		for _, token := range olt.Tokens(scavenger.disk) {
			want[token] = struct{}{}
			if scavenger.AddTokenCompactor(token) {
				added++
			}
		}
		for _, token := range scavenger.Tokens() {
			if _, ok := want[token]; !ok && scavenger.DeleteTokenCompactor(token) {
				deleted++
			}
		}
	}
	control.log.Info("scavenger tokens updated", zap.Int("added", added), zap.Int("deleted", deleted))
	return added, deleted
}

func (control *ScavControl) begin(ctx context.Context) (context.Context, func(), error) {
	control.passMu.Lock()
	defer control.passMu.Unlock()
	if control.cancel != nil {
		return nil, nil, fds.ErrInProgress.New("scavenge process running")
	}
	ctx, cancel := context.WithCancel(ctx)
	control.cancel = cancel
	return ctx, func() {
		control.passMu.Lock()
		control.cancel = nil
		control.passMu.Unlock()
		cancel()
	}, nil
}

// StartScavengeProcess scavenges every disk in the background. done gets
// the reports sorted by disk once every disk finished.
func (control *ScavControl) StartScavengeProcess(ctx context.Context, done func([]Report)) error {
	ctx, end, err := control.begin(ctx)
	if err != nil {
		return err
	}

	scavengers := control.scavengers()
	reports := make([]Report, len(scavengers))
	var wg sync.WaitGroup
	for i, scavenger := range scavengers {
		i, scavenger := i, scavenger
		wg.Add(1)
		err := scavenger.StartScavenge(ctx, func(report Report) {
			reports[i] = report
			wg.Done()
		})
		if err != nil {
			reports[i] = Report{Disk: scavenger.disk, Skipped: len(scavenger.Tokens()), Err: err}
			wg.Done()
		}
	}
	go func() {
		wg.Wait()
		end()
		if done != nil {
			done(reports)
		}
	}()
	return nil
}

// ScavengeOnce scavenges every disk and waits for the reports.
func (control *ScavControl) ScavengeOnce(ctx context.Context) (_ []Report, err error) {
	defer mon.Task()(&ctx)(&err)
	ctx, end, err := control.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer end()

	scavengers := control.scavengers()
	reports := make([]Report, len(scavengers))
	var group errgroup.Group
	for i, scavenger := range scavengers {
		i, scavenger := i, scavenger
		group.Go(func() error {
			report, err := scavenger.Scavenge(ctx)
			if err != nil {
				report.Err = err
			}
			reports[i] = report
			return nil
		})
	}
	err = group.Wait()
	return reports, err
}

// StopScavengeProcess cancels the running pass. Compactions stop at the
// next object and leave their token untouched.
func (control *ScavControl) StopScavengeProcess() {
	control.passMu.Lock()
	defer control.passMu.Unlock()
	if control.cancel != nil {
		control.log.Info("stopping scavenge process")
		control.cancel()
	}
}

// Run scavenges every disk periodically.
func (control *ScavControl) Run(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)
	return control.Loop.Run(ctx, func(ctx context.Context) error {
		reports, err := control.ScavengeOnce(ctx)
		if err != nil {
			control.log.Warn("scavenge pass skipped", zap.Error(err))
			return nil
		}
		var reclaimed int64
		for _, report := range reports {
			reclaimed += report.Reclaimed
			if report.Err != nil {
				control.log.Warn("disk scavenge failed", zap.Stringer("disk", report.Disk), zap.Error(report.Err))
			}
		}
		control.log.Info("scavenge pass done", zap.Int("disks", len(reports)), zap.Int64("reclaimed", reclaimed))
		return nil
	})
}

// Status lists every disk scavenger.
func (control *ScavControl) Status() []DiskStatus {
	scavengers := control.scavengers()
	statuses := make([]DiskStatus, 0, len(scavengers))
	for _, scavenger := range scavengers {
		statuses = append(statuses, DiskStatus{
			Disk:   scavenger.disk,
			State:  scavenger.State(),
			Tokens: len(scavenger.Tokens()),
			Last:   scavenger.LastReport(),
		})
	}
	return statuses
}

// Close stops the periodic cycle and the running pass.
func (control *ScavControl) Close() error {
	control.Loop.Close()
	control.StopScavengeProcess()
	return nil
}
