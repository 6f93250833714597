// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package migration

import "time"

// Config configures DM migration.
type Config struct {
	IdleTimeout       time.Duration `help:"abort a destination migration that made no progress for this long" default:"2m"`
	IdleCheckInterval time.Duration `help:"how often destinations check for idleness" default:"30s"`
	RequestTimeout    time.Duration `help:"timeout for a single migration message" default:"10s"`

	MaxDeltaBlobsPerMessage     int `help:"blob object lists per DeltaBlobs message" default:"64"`
	MaxDeltaBlobDescsPerMessage int `help:"blob descriptors per DeltaBlobDescs message" default:"64"`

	Workers             int `help:"concurrent migration workers" default:"8"`
	MaxInflightMessages int `help:"outstanding delta messages per source" default:"16"`
}

func (config *Config) normalize() {
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 2 * time.Minute
	}
	if config.IdleCheckInterval <= 0 {
		config.IdleCheckInterval = 30 * time.Second
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 10 * time.Second
	}
	if config.MaxDeltaBlobsPerMessage <= 0 {
		config.MaxDeltaBlobsPerMessage = 64
	}
	if config.MaxDeltaBlobDescsPerMessage <= 0 {
		config.MaxDeltaBlobDescsPerMessage = 64
	}
	if config.Workers <= 0 {
		config.Workers = 8
	}
	if config.MaxInflightMessages <= 0 {
		config.MaxInflightMessages = 16
	}
}
