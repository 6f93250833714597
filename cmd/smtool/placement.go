// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
	"github.com/vinaypunrao68/fds-src-sub016/pkg/process"
	"github.com/vinaypunrao68/fds-src-sub016/sm/disk"
	"github.com/vinaypunrao68/fds-src-sub016/sm/placement"
)

// Plan is the outcome of a placement run.
type Plan struct {
	Table   *placement.ObjectLocationTable
	Moves   []placement.Move
	Version uint64
	Created bool
}

// planPlacement computes the table of the disks, starting from the stored
// table when there is one, and stores the result.
func planPlacement(ctx context.Context, log *zap.Logger, db *placement.DB, disks []disk.Disk) (plan Plan, err error) {
	hdds, ssds := disk.Split(disks)

	prev, err := db.Load(ctx)
	switch {
	case fds.ErrNotFound.Has(err):
		plan.Created = true
		plan.Table = placement.NewObjectLocationTable()
		if err := placement.Compute(hdds, ssds, plan.Table); err != nil {
			return plan, err
		}
	case err != nil:
		return plan, err
	default:
		plan.Table, plan.Moves, err = placement.Recompute(prev, hdds, ssds)
		if err != nil {
			return plan, err
		}
	}
	if err := plan.Table.Validate(hdds, ssds); err != nil {
		return plan, err
	}

	plan.Version, err = db.Save(ctx, plan.Table)
	if err != nil {
		return plan, err
	}
	log.Info("placement stored",
		zap.Uint64("version", plan.Version),
		zap.Bool("created", plan.Created),
		zap.Int("moves", len(plan.Moves)))
	return plan, nil
}

func printPlan(out io.Writer, disks []disk.Disk, plan Plan) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "placement version %d\n", plan.Version)
	tokens := plan.Table.GenerateDiskToTokenMap()
	for _, d := range disks {
		fmt.Fprintf(w, "%v\t%v\t%s\t%s free\ttokens %d\n",
			d.ID, d.Tier, d.Path, humanize.IBytes(d.Free), len(tokens[d.ID]))
	}
	for _, move := range plan.Moves {
		fmt.Fprintf(w, "move\t%v\ttoken %d\t%v -> %v\n", move.Tier, move.Token, move.From, move.To)
	}
	return w.Flush()
}

func cmdPlacement(cmd *cobra.Command, args []string) (err error) {
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

	if err := os.MkdirAll(filepath.Dir(placementDB), 0o700); err != nil {
		return Error.Wrap(err)
	}
	db, err := placement.OpenDB(placementDB)
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, db.Close()) }()

	plan, err := planPlacement(ctx, log, db, disks)
	if err != nil {
		return Error.Wrap(err)
	}
	return printPlan(cmd.OutOrStdout(), disks, plan)
}
