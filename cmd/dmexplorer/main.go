// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// dmexplorer prints the volume catalogs of a data manager.
package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"storj.io/common/cfgstruct"
	"storj.io/common/fpath"

	"github.com/vinaypunrao68/fds-src-sub016/dm/catalog"
	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
	"github.com/vinaypunrao68/fds-src-sub016/pkg/process"
)

// Error is the dmexplorer error class.
var Error = errs.Class("dmexplorer")

var (
	rootCmd = &cobra.Command{
		Use:   "dmexplorer",
		Short: "Print the volume catalogs of a data manager",
		Args:  cobra.NoArgs,
		RunE:  cmdExplore,
	}

	exploreCfg struct {
		DB     string
		Volume string
		Options
	}

	catalogCfg struct {
		Catalog catalog.Config
	}

	defaultConfDir = fpath.ApplicationDir("fds", "dm")
)

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&exploreCfg.DB, "db", "", "directory holding the volume catalogs, overrides --catalog.root")
	flags.StringVar(&exploreCfg.Volume, "volume", "", "only explore this volume")
	flags.BoolVar(&exploreCfg.List, "list", false, "print the volume descriptors")
	flags.BoolVar(&exploreCfg.Blobs, "blobs", false, "print the blobs of each volume")
	flags.StringVar(&exploreCfg.Objects, "objects", "", "print the object list of this blob")
	flags.StringVar(&exploreCfg.ShowBlobs, "show-blobs", "", "print the blobs referencing this object id")
	flags.BoolVar(&exploreCfg.Stats, "stats", false, "print blob and object counts")

	process.Bind(rootCmd, &catalogCfg, cfgstruct.ConfDir(defaultConfDir))
}

func cmdExplore(cmd *cobra.Command, args []string) (err error) {
	ctx, cancel := process.Ctx(cmd)
	defer cancel()

	log, err := process.NewLogger("dmexplorer")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	options := exploreCfg.Options
	if options.ShowBlobs != "" {
		if options.object, err = fds.ObjectIDFromString(options.ShowBlobs); err != nil {
			return Error.Wrap(err)
		}
	}

	config := catalogCfg.Catalog
	if exploreCfg.DB != "" {
		config.Root = exploreCfg.DB
	}
	config.ReadOnly = true
	db, err := catalog.OpenDB(log.Named("catalog"), config)
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, db.Close()) }()

	explorer := NewExplorer(cmd.OutOrStdout(), options)
	if exploreCfg.Volume != "" {
		id, err := fds.ParseVolumeID(exploreCfg.Volume)
		if err != nil {
			return Error.Wrap(err)
		}
		vc, err := db.Get(ctx, id)
		if err != nil {
			return Error.Wrap(err)
		}
		return explorer.Explore(ctx, vc)
	}

	err = db.ForEachVolume(ctx, func(ctx context.Context, vc *catalog.VolumeCatalog) error {
		return explorer.Explore(ctx, vc)
	})
	if err != nil {
		log.Warn("some volumes could not be explored", zap.Error(err))
	}
	return nil
}

func main() {
	process.Exec(rootCmd)
}
