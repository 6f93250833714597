// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package disk discovers the disks of a storage manager.
package disk

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	psdisk "github.com/shirou/gopsutil/v4/disk"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
)

var (
	mon = monkit.Package()

	// Error is the disk discovery error class.
	Error = errs.Class("disk")
)

// Config selects the disks of an SM.
type Config struct {
	Root string   `help:"directory holding hdd-N and ssd-N disk directories" default:""`
	HDDs []string `help:"explicit hdd mount paths, overriding discovery under root" default:""`
	SSDs []string `help:"explicit ssd mount paths, overriding discovery under root" default:""`
}

// Disk is one disk of an SM.
type Disk struct {
	ID       fds.DiskID
	Tier     fds.Tier
	Path     string
	Capacity uint64
	Free     uint64
}

// Usage returns the total and free bytes of the filesystem holding path.
func Usage(ctx context.Context, path string) (total, free uint64, err error) {
	stat, err := psdisk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, 0, Error.Wrap(err)
	}
	return stat.Total, stat.Free, nil
}

// Discover lists the disks selected by config. Explicit paths win over the
// root directory. Ids are assigned hdds first, in path order for explicit
// lists and in index order for discovered directories, so they are stable
// as long as the layout does not change.
func Discover(ctx context.Context, log *zap.Logger, config Config) (_ []Disk, err error) {
	defer mon.Task()(&ctx)(&err)
	if log == nil {
		log = zap.NewNop()
	}

	var hdds, ssds []string
	if len(config.HDDs) > 0 || len(config.SSDs) > 0 {
		hdds, ssds = nonEmpty(config.HDDs), nonEmpty(config.SSDs)
	} else {
		if config.Root == "" {
			return nil, fds.ErrInvalidArg.New("neither disk paths nor root configured")
		}
		hdds, ssds, err = scanRoot(config.Root)
		if err != nil {
			return nil, err
		}
	}
	if len(hdds)+len(ssds) == 0 {
		return nil, fds.ErrNotFound.New("no disks under %q", config.Root)
	}
	if len(hdds)+len(ssds) >= int(fds.InvalidDiskID) {
		return nil, fds.ErrInvalidArg.New("too many disks")
	}

	var disks []Disk
	for _, group := range []struct {
		tier  fds.Tier
		paths []string
	}{{fds.TierHDD, hdds}, {fds.TierSSD, ssds}} {
		for _, path := range group.paths {
			d := Disk{ID: fds.DiskID(len(disks)), Tier: group.tier, Path: path}
			d.Capacity, d.Free, err = Usage(ctx, path)
			if err != nil {
				return nil, errs.Combine(Error.New("disk %q", path), err)
			}
			log.Info("found disk",
				zap.Stringer("id", d.ID),
				zap.Stringer("tier", d.Tier),
				zap.String("path", d.Path),
				zap.Uint64("capacity", d.Capacity),
			)
			disks = append(disks, d)
		}
	}
	return disks, nil
}

func nonEmpty(paths []string) []string {
	var result []string
	for _, path := range paths {
		if path = strings.TrimSpace(path); path != "" {
			result = append(result, path)
		}
	}
	return result
}

// scanRoot finds hdd-N and ssd-N directories under root ordered by N.
func scanRoot(root string) (hdds, ssds []string, err error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, nil, Error.Wrap(err)
	}

	type indexed struct {
		index int
		path  string
	}
	var foundHDD, foundSSD []indexed
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		prefix, suffix, ok := strings.Cut(entry.Name(), "-")
		if !ok {
			continue
		}
		index, err := strconv.Atoi(suffix)
		if err != nil || index < 0 {
			continue
		}
		found := indexed{index: index, path: filepath.Join(root, entry.Name())}
		switch prefix {
		case "hdd":
			foundHDD = append(foundHDD, found)
		case "ssd":
			foundSSD = append(foundSSD, found)
		}
	}

	paths := func(found []indexed) []string {
		sort.Slice(found, func(i, k int) bool { return found[i].index < found[k].index })
		var result []string
		for _, f := range found {
			result = append(result, f.path)
		}
		return result
	}
	return paths(foundHDD), paths(foundSSD), nil
}

// Split returns the disk ids of each tier.
func Split(disks []Disk) (hdds, ssds []fds.DiskID) {
	for _, d := range disks {
		switch d.Tier {
		case fds.TierHDD:
			hdds = append(hdds, d.ID)
		case fds.TierSSD:
			ssds = append(ssds, d.ID)
		}
	}
	return hdds, ssds
}
