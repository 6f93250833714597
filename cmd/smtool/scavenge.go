// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
	"github.com/vinaypunrao68/fds-src-sub016/pkg/process"
	"github.com/vinaypunrao68/fds-src-sub016/sm/disk"
	"github.com/vinaypunrao68/fds-src-sub016/sm/objstore"
	"github.com/vinaypunrao68/fds-src-sub016/sm/placement"
	"github.com/vinaypunrao68/fds-src-sub016/sm/scavenger"
)

// objectsDir is the object store directory on every disk.
const objectsDir = "objects"

// openScavenger opens the object store of every disk and registers it with
// a new scavenger control following olt.
func openScavenger(log *zap.Logger, disks []disk.Disk, olt *placement.ObjectLocationTable, config scavenger.Config, storeConfig objstore.Config) (_ *scavenger.ScavControl, _ []*objstore.Store, err error) {
	control := scavenger.NewScavControl(log.Named("scavenger"), config)

	var stores []*objstore.Store
	closeAll := func() error {
		var group errs.Group
		for _, store := range stores {
			group.Add(store.Close())
		}
		return group.Err()
	}

	for _, d := range disks {
		store, err := objstore.Open(log.Named("objstore").With(zap.Stringer("disk", d.ID)), filepath.Join(d.Path, objectsDir), storeConfig)
		if err != nil {
			return nil, nil, errs.Combine(err, closeAll())
		}
		stores = append(stores, store)
		if _, err := control.AddDisk(d.ID, d.Path, store); err != nil {
			return nil, nil, errs.Combine(err, closeAll())
		}
	}
	control.UpdateTokens(olt)
	return control, stores, nil
}

func printReports(out io.Writer, reports []scavenger.Report) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	var total int64
	for _, report := range reports {
		total += report.Reclaimed
		fmt.Fprintf(w, "%v\tcompacted %d\tskipped %d\tfailed %d\t%s\n",
			report.Disk, report.Compacted, report.Skipped, report.Failed, humanize.IBytes(uint64(report.Reclaimed)))
		if report.Err != nil {
			fmt.Fprintf(w, "%v\terror\t%v\n", report.Disk, report.Err)
		}
	}
	fmt.Fprintf(w, "reclaimed\t%s\n", humanize.IBytes(uint64(total)))
	return w.Flush()
}

// loadPlacement returns the stored table, or a table computed for disks.
func loadPlacement(ctx context.Context, log *zap.Logger, path string, disks []disk.Disk) (*placement.ObjectLocationTable, error) {
	if _, err := os.Stat(path); err == nil {
		db, err := placement.OpenDB(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = db.Close() }()

		olt, err := db.Load(ctx)
		if !fds.ErrNotFound.Has(err) {
			return olt, err
		}
	}
	log.Warn("no stored placement, computing one", zap.String("db", path))
	hdds, ssds := disk.Split(disks)
	olt := placement.NewObjectLocationTable()
	return olt, placement.Compute(hdds, ssds, olt)
}

func cmdScavenge(cmd *cobra.Command, args []string) (err error) {
	ctx, cancel := process.Ctx(cmd)
	defer cancel()

	log, err := process.NewLogger("smtool")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	disks, err := disk.Discover(ctx, log.Named("disk"), diskCfg)
	if err != nil {
		return Error.Wrap(err)
	}
	olt, err := loadPlacement(ctx, log, placementDB, disks)
	if err != nil {
		return Error.Wrap(err)
	}

	control, stores, err := openScavenger(log, disks, olt, scavengeCfg.Scavenger, scavengeCfg.Store)
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() {
		err = errs.Combine(err, control.Close())
		for _, store := range stores {
			err = errs.Combine(err, store.Close())
		}
	}()

	if !scavengeCfg.Loop {
		reports, err := control.ScavengeOnce(ctx)
		if err != nil {
			return Error.Wrap(err)
		}
		return printReports(cmd.OutOrStdout(), reports)
	}

	group, ctx := errgroup.WithContext(ctx)
	if addr := process.DebugAddr(); addr != "" {
		group.Go(func() error { return process.ServeDebug(ctx, log.Named("debug"), addr) })
	}
	group.Go(func() error { return control.Run(ctx) })
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return Error.Wrap(err)
	}
	return nil
}
