// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package scavenger reclaims garbage from the disks of a storage manager.
//
// ScavControl owns one DiskScavenger per disk. A disk scavenger owns one
// TokenCompactor per token resident on its disk and compacts the tokens
// that hold enough garbage.
package scavenger

import (
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"

	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
)

var (
	mon = monkit.Package()

	// Error is the scavenger error class.
	Error = errs.Class("scavenger")
)

// Config configures scavenging.
type Config struct {
	Interval            time.Duration `help:"how frequently disks are scavenged" default:"1h0m0s"`
	MaxConcurrentTokens int           `help:"tokens compacted concurrently on one disk" default:"1"`
	MinGarbageRatio     float64       `help:"share of garbage bytes a token needs to be compacted" default:"0"`
	BitsPerToken        uint          `help:"leading object id bits selecting the token" default:"8"`
	DiskUsageThreshold  float64       `help:"used fraction of a disk below which it is not scavenged, 0 disables" default:"0"`
}

func (config *Config) normalize() {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	if config.MaxConcurrentTokens <= 0 {
		config.MaxConcurrentTokens = 1
	}
	if config.BitsPerToken == 0 {
		config.BitsPerToken = fds.DefaultBitsPerToken
	}
}
