// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

// Package process wires cobra commands to configuration, logging and
// signal handling.
package process

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/zeebo/errs"
	"storj.io/common/cfgstruct"
)

// Error is the process error class.
var Error = errs.Class("process")

// EnvPrefix prefixes the environment variables overriding flags.
const EnvPrefix = "FDS"

var (
	configFile string
	debugAddr  string
	logConfig  = defaultLogConfig()
)

// Bind registers the fields of config as flags of cmd.
func Bind(cmd *cobra.Command, config interface{}, opts ...cfgstruct.BindOpt) {
	opts = append([]cfgstruct.BindOpt{cfgstruct.UseReleaseDefaults()}, opts...)
	cfgstruct.Bind(cmd.Flags(), config, opts...)
}

// Exec runs cmd. Flags not given on the command line are taken from the
// environment (FDS_CATALOG_ROOT for --catalog.root) and then from the yaml
// file named by --config.
func Exec(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "yaml file with flag values")
	flags.StringVar(&debugAddr, "debug.addr", "", "address serving metrics and health, empty disables")
	logConfig.bind(flags)

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd.Flags(), configFile)
	}
	cmd.SilenceUsage = true

	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(flags *pflag.FlagSet, path string) error {
	vip := viper.New()
	vip.SetEnvPrefix(EnvPrefix)
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	vip.AutomaticEnv()
	if path != "" {
		vip.SetConfigFile(path)
		if err := vip.ReadInConfig(); err != nil {
			return Error.New("reading %q: %v", path, err)
		}
	}

	var group errs.Group
	flags.VisitAll(func(flag *pflag.Flag) {
		if flag.Changed || !vip.IsSet(flag.Name) {
			return
		}
		value := vip.GetString(flag.Name)
		if strings.HasSuffix(flag.Value.Type(), "Slice") {
			value = strings.Join(vip.GetStringSlice(flag.Name), ",")
		}
		if value == flag.Value.String() {
			return
		}
		if err := flags.Set(flag.Name, value); err != nil {
			group.Add(Error.New("flag --%s: %v", flag.Name, err))
		}
	})
	return group.Err()
}

// Ctx returns the context of cmd, cancelled on SIGINT or SIGTERM.
func Ctx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// DebugAddr returns the value of --debug.addr.
func DebugAddr() string { return debugAddr }
