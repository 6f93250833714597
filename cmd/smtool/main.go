// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// smtool places tokens on the disks of a storage manager and scavenges them.
package main

import (
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/zeebo/errs"
	"storj.io/common/cfgstruct"
	"storj.io/common/fpath"

	"github.com/vinaypunrao68/fds-src-sub016/pkg/process"
	"github.com/vinaypunrao68/fds-src-sub016/sm/disk"
	"github.com/vinaypunrao68/fds-src-sub016/sm/objstore"
	"github.com/vinaypunrao68/fds-src-sub016/sm/scavenger"
)

// Error is the smtool error class.
var Error = errs.Class("smtool")

var (
	rootCmd = &cobra.Command{
		Use:   "smtool",
		Short: "Storage manager disk tool",
	}
	placementCmd = &cobra.Command{
		Use:   "placement",
		Short: "Compute the token placement of the disks and persist it",
		Args:  cobra.NoArgs,
		RunE:  cmdPlacement,
	}
	scavengeCmd = &cobra.Command{
		Use:   "scavenge",
		Short: "Compact the tokens of every disk that hold garbage",
		Args:  cobra.NoArgs,
		RunE:  cmdScavenge,
	}

	diskCfg     disk.Config
	placementDB string

	scavengeCfg struct {
		Scavenger scavenger.Config
		Store     objstore.Config
		Loop      bool `help:"keep scavenging every scavenger.interval until interrupted" default:"false"`
	}

	defaultConfDir = fpath.ApplicationDir("fds", "sm")
)

func bindDisks(flags *pflag.FlagSet) {
	flags.StringVar(&diskCfg.Root, "disk.root", "", "directory holding hdd-N and ssd-N disk directories")
	flags.StringSliceVar(&diskCfg.HDDs, "disk.hdds", nil, "explicit hdd mount paths, overriding discovery under root")
	flags.StringSliceVar(&diskCfg.SSDs, "disk.ssds", nil, "explicit ssd mount paths, overriding discovery under root")
	flags.StringVar(&placementDB, "placement.db", filepath.Join(defaultConfDir, "placement.db"), "placement database")
}

func init() {
	rootCmd.AddCommand(placementCmd, scavengeCmd)
	bindDisks(placementCmd.Flags())
	bindDisks(scavengeCmd.Flags())
	process.Bind(scavengeCmd, &scavengeCfg, cfgstruct.ConfDir(defaultConfDir))
}

func main() {
	process.Exec(rootCmd)
}
