// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package catalog

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"storj.io/common/memory"

	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
	"github.com/vinaypunrao68/fds-src-sub016/storage"
	"github.com/vinaypunrao68/fds-src-sub016/storage/leveldb"
	"github.com/vinaypunrao68/fds-src-sub016/storage/storelogger"
)

// Config configures the catalog database.
type Config struct {
	Root      string      `help:"directory holding one catalog per volume" default:"$CONFDIR/catalog"`
	ReadOnly  bool        `help:"open catalogs without write access" default:"false"`
	CacheSize memory.Size `help:"leveldb block cache per volume" default:"8MiB"`
	Trace     bool        `help:"log every catalog store operation" default:"false" devDefault:"true"`
}

// DB is a directory of per volume catalogs.
type DB struct {
	log    *zap.Logger
	config Config

	mu      sync.Mutex
	volumes map[fds.VolumeID]*VolumeCatalog
}

// OpenDB opens the catalog directory, creating it unless read only.
func OpenDB(log *zap.Logger, config Config) (*DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if config.Root == "" {
		return nil, fds.ErrInvalidArg.New("catalog root not set")
	}
	if config.ReadOnly {
		if _, err := os.Stat(config.Root); err != nil {
			return nil, fds.ErrNotFound.Wrap(err)
		}
	} else if err := os.MkdirAll(config.Root, 0700); err != nil {
		return nil, fds.ErrIO.Wrap(err)
	}
	return &DB{
		log:     log,
		config:  config,
		volumes: make(map[fds.VolumeID]*VolumeCatalog),
	}, nil
}

func (db *DB) path(id fds.VolumeID) string {
	return filepath.Join(db.config.Root, id.String())
}

// Create creates an empty catalog for desc.ID.
func (db *DB) Create(ctx context.Context, desc VolumeMetaDesc) (_ *VolumeCatalog, err error) {
	defer mon.Task()(&ctx)(&err)
	if db.config.ReadOnly {
		return nil, fds.ErrInvalidArg.New("catalog db is read only")
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.volumes[desc.ID]; ok {
		return nil, fds.ErrInProgress.New("volume %v exists", desc.ID)
	}
	if _, err := os.Stat(db.path(desc.ID)); err == nil {
		return nil, fds.ErrInProgress.New("volume %v exists", desc.ID)
	}

	vc, err := db.open(desc.ID, false)
	if err != nil {
		return nil, err
	}
	if err := vc.SetVolumeMeta(ctx, &desc); err != nil {
		return nil, errs.Combine(err, vc.Close())
	}
	db.volumes[desc.ID] = vc
	db.log.Info("created volume catalog", zap.Stringer("volume", desc.ID), zap.String("name", desc.Name))
	return vc, nil
}

// Get returns the catalog of volume id, opening it if needed.
func (db *DB) Get(ctx context.Context, id fds.VolumeID) (_ *VolumeCatalog, err error) {
	defer mon.Task()(&ctx)(&err)
	db.mu.Lock()
	defer db.mu.Unlock()

	if vc, ok := db.volumes[id]; ok {
		return vc, nil
	}
	if _, err := os.Stat(db.path(id)); err != nil {
		return nil, fds.ErrNotFound.New("volume %v", id)
	}
	vc, err := db.open(id, true)
	if err != nil {
		return nil, err
	}
	db.volumes[id] = vc
	return vc, nil
}

func (db *DB) open(id fds.VolumeID, mustExist bool) (*VolumeCatalog, error) {
	client, err := leveldb.New(db.log.Named("leveldb"), db.path(id), leveldb.Options{
		Comparer:           Comparer,
		ReadOnly:           db.config.ReadOnly,
		ErrorIfMissing:     mustExist,
		BlockCacheCapacity: db.config.CacheSize.Int(),
	})
	if err != nil {
		return nil, fds.ErrIO.Wrap(err)
	}
	var store storage.KeyValueStore = client
	if db.config.Trace {
		store = storelogger.New(db.log.Named("trace"), client, FormatKey)
	}
	return NewVolumeCatalog(db.log, id, store), nil
}

// List returns the ids of every catalog in the directory.
func (db *DB) List(ctx context.Context) (ids []fds.VolumeID, err error) {
	defer mon.Task()(&ctx)(&err)
	entries, err := os.ReadDir(db.config.Root)
	if err != nil {
		return nil, fds.ErrIO.Wrap(err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, err := fds.ParseVolumeID(entry.Name())
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, k int) bool { return ids[i] < ids[k] })
	return ids, nil
}

// ForEachVolume calls fn for every volume. Volumes that fail to load are
// logged and skipped; errors from fn are collected and do not stop the walk.
func (db *DB) ForEachVolume(ctx context.Context, fn func(ctx context.Context, vc *VolumeCatalog) error) (err error) {
	defer mon.Task()(&ctx)(&err)
	ids, err := db.List(ctx)
	if err != nil {
		return err
	}

	var group errs.Group
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		vc, err := db.Get(ctx, id)
		if err != nil {
			db.log.Warn("skipping volume", zap.Stringer("volume", id), zap.Error(err))
			continue
		}
		if err := fn(ctx, vc); err != nil {
			db.log.Warn("volume failed", zap.Stringer("volume", id), zap.Error(err))
			group.Add(err)
		}
	}
	return group.Err()
}

// Close closes every open catalog.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var group errs.Group
	for id, vc := range db.volumes {
		group.Add(vc.Close())
		delete(db.volumes, id)
	}
	return group.Err()
}
