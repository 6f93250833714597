// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package fds contains the identifiers and error codes shared by the data
// manager and storage manager services.
package fds
