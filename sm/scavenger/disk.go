// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package scavenger

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
	"github.com/vinaypunrao68/fds-src-sub016/sm/disk"
	"github.com/vinaypunrao68/fds-src-sub016/sm/objstore"
)

// State is the scavenging state of a disk.
type State int32

// Disk scavenger states.
const (
	Idle State = iota
	Scavenging
)

// String implements fmt.Stringer.
func (state State) String() string {
	if state == Scavenging {
		return "scavenging"
	}
	return "idle"
}

// Report summarizes one scavenge pass of a disk.
type Report struct {
	Disk      fds.DiskID
	Compacted int
	Skipped   int
	Failed    int
	Reclaimed int64
	// Err is the first compaction error.
	Err error
}

// UsageFunc returns the total and free bytes of the disk at path.
type UsageFunc func(ctx context.Context, path string) (total, free uint64, err error)

// DiskScavenger scavenges the tokens of one disk.
type DiskScavenger struct {
	log    *zap.Logger
	disk   fds.DiskID
	path   string
	store  TokenStore
	config Config
	usage  UsageFunc

	state atomic.Int32
	last  atomic.Pointer[Report]

	mu         sync.RWMutex
	compactors map[fds.SmToken]*TokenCompactor
}

// NewDiskScavenger returns the scavenger of the disk mounted at path.
func NewDiskScavenger(log *zap.Logger, id fds.DiskID, path string, store TokenStore, config Config) *DiskScavenger {
	config.normalize()
	return &DiskScavenger{
		log:        log,
		disk:       id,
		path:       path,
		store:      store,
		config:     config,
		usage:      disk.Usage,
		compactors: make(map[fds.SmToken]*TokenCompactor),
	}
}

// Disk returns the id of the scavenged disk.
func (scavenger *DiskScavenger) Disk() fds.DiskID { return scavenger.disk }

// State returns the current state.
func (scavenger *DiskScavenger) State() State { return State(scavenger.state.Load()) }

// LastReport returns the report of the last finished pass, or nil.
func (scavenger *DiskScavenger) LastReport() *Report { return scavenger.last.Load() }

// AddTokenCompactor starts scavenging token on this disk. It reports
// whether the token was new.
func (scavenger *DiskScavenger) AddTokenCompactor(token fds.SmToken) bool {
	scavenger.mu.Lock()
	defer scavenger.mu.Unlock()
	if _, ok := scavenger.compactors[token]; ok {
		return false
	}
	scavenger.compactors[token] = NewTokenCompactor(scavenger.log, token, scavenger.store)
	return true
}

// DeleteTokenCompactor stops scavenging token on this disk. A compaction
// already running finishes. It reports whether the token was known.
func (scavenger *DiskScavenger) DeleteTokenCompactor(token fds.SmToken) bool {
	scavenger.mu.Lock()
	defer scavenger.mu.Unlock()
	if _, ok := scavenger.compactors[token]; !ok {
		return false
	}
	delete(scavenger.compactors, token)
	return true
}

// Tokens returns the sorted tokens scavenged on this disk.
func (scavenger *DiskScavenger) Tokens() []fds.SmToken {
	scavenger.mu.RLock()
	tokens := make([]fds.SmToken, 0, len(scavenger.compactors))
	for token := range scavenger.compactors {
		tokens = append(tokens, token)
	}
	scavenger.mu.RUnlock()
	sort.Slice(tokens, func(i, k int) bool { return tokens[i] < tokens[k] })
	return tokens
}

func (scavenger *DiskScavenger) snapshot() []*TokenCompactor {
	scavenger.mu.RLock()
	defer scavenger.mu.RUnlock()
	compactors := make([]*TokenCompactor, 0, len(scavenger.compactors))
	for _, compactor := range scavenger.compactors {
		compactors = append(compactors, compactor)
	}
	sort.Slice(compactors, func(i, k int) bool { return compactors[i].token < compactors[k].token })
	return compactors
}

// StartScavenge runs a scavenge pass in the background and calls done with
// its report. A disk runs one pass at a time.
func (scavenger *DiskScavenger) StartScavenge(ctx context.Context, done func(Report)) error {
	if !scavenger.state.CompareAndSwap(int32(Idle), int32(Scavenging)) {
		return fds.ErrInProgress.New("disk %v is scavenging", scavenger.disk)
	}
	go func() {
		report := scavenger.scavenge(ctx)
		if done != nil {
			done(report)
		}
	}()
	return nil
}

// Scavenge runs a scavenge pass and waits for it.
func (scavenger *DiskScavenger) Scavenge(ctx context.Context) (Report, error) {
	if !scavenger.state.CompareAndSwap(int32(Idle), int32(Scavenging)) {
		return Report{Disk: scavenger.disk}, fds.ErrInProgress.New("disk %v is scavenging", scavenger.disk)
	}
	return scavenger.scavenge(ctx), nil
}

func (scavenger *DiskScavenger) scavenge(ctx context.Context) (report Report) {
	var err error
	defer mon.Task()(&ctx)(&err)
	defer func() {
		err = report.Err
		scavenger.last.Store(&report)
		scavenger.state.Store(int32(Idle))
	}()

	report.Disk = scavenger.disk
	compactors := scavenger.snapshot()
	log := scavenger.log.With(zap.Stringer("disk", scavenger.disk))

	if skip, err := scavenger.belowThreshold(ctx); err != nil || skip {
		report.Skipped = len(compactors)
		report.Err = err
		log.Debug("disk below usage threshold", zap.Error(err))
		return report
	}

	log.Info("scavenge started", zap.Int("tokens", len(compactors)))

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := semaphore.NewWeighted(int64(scavenger.config.MaxConcurrentTokens))
	record := func(update func()) {
		mu.Lock()
		defer mu.Unlock()
		update()
	}
	fail := func(err error) {
		record(func() {
			report.Failed++
			if report.Err == nil {
				report.Err = err
			}
		})
	}

	for i, compactor := range compactors {
		stats, err := scavenger.store.TokenStats(ctx, compactor.token)
		if err != nil {
			fail(err)
			continue
		}
		if stats.GarbageObjects == 0 || stats.GarbageRatio() < scavenger.config.MinGarbageRatio {
			record(func() { report.Skipped++ })
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			record(func() {
				report.Skipped += len(compactors) - i
				if report.Err == nil {
					report.Err = err
				}
			})
			break
		}
		wg.Add(1)
		err = compactor.StartCompaction(ctx, scavenger.config.BitsPerToken, func(token fds.SmToken, result objstore.CompactResult, err error) {
			defer wg.Done()
			defer sem.Release(1)
			if err != nil {
				fail(err)
				return
			}
			record(func() {
				report.Compacted++
				report.Reclaimed += result.Reclaimed
			})
		})
		if err != nil {
			wg.Done()
			sem.Release(1)
			if fds.ErrInProgress.Has(err) {
				record(func() { report.Skipped++ })
			} else {
				fail(err)
			}
		}
	}
	wg.Wait()

	log.Info("scavenge finished",
		zap.Int("compacted", report.Compacted),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int64("reclaimed", report.Reclaimed),
	)
	return report
}

func (scavenger *DiskScavenger) belowThreshold(ctx context.Context) (bool, error) {
	if scavenger.config.DiskUsageThreshold <= 0 {
		return false, nil
	}
	total, free, err := scavenger.usage(ctx, scavenger.path)
	if err != nil {
		return true, err
	}
	if total == 0 {
		return true, nil
	}
	used := 1 - float64(free)/float64(total)
	return used < scavenger.config.DiskUsageThreshold, nil
}
