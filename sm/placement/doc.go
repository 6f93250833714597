// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package placement assigns SM tokens to the disks of a storage manager.
//
// Every token lives on exactly one disk per populated tier. The table keeps
// a reverse disk to token index, which the scavenger uses to find the tokens
// resident on a disk.
package placement
