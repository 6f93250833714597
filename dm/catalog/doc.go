// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package catalog implements the DM volume catalog: the binary key layout,
// its ordering, the blob descriptors stored under those keys, an ordered
// two-cursor differ and per-volume catalogs backed by a KeyValueStore.
package catalog
