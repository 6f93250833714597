// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package placement

import (
	"context"
	"encoding/binary"

	"github.com/spacemonkeygo/monkit/v3"

	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
	"github.com/vinaypunrao68/fds-src-sub016/storage"
	"github.com/vinaypunrao68/fds-src-sub016/storage/boltdb"
)

var mon = monkit.Package()

var (
	tableKey   = storage.Key("olt")
	versionKey = storage.Key("version")
)

// DB persists the object location table of an SM.
type DB struct {
	store storage.KeyValueStore
}

// OpenDB opens the placement database at path.
func OpenDB(path string) (*DB, error) {
	client, err := boltdb.New(path, "placement")
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return NewDB(client), nil
}

// NewDB returns a placement database on store.
func NewDB(store storage.KeyValueStore) *DB {
	return &DB{store: store}
}

// Save stores olt and bumps the table version, returning the new version.
func (db *DB) Save(ctx context.Context, olt *ObjectLocationTable) (version uint64, err error) {
	defer mon.Task()(&ctx)(&err)

	version, err = db.Version(ctx)
	if err != nil {
		return 0, err
	}
	version++

	data, err := olt.MarshalBinary()
	if err != nil {
		return 0, Error.Wrap(err)
	}
	var batch storage.Batch
	batch.Put(tableKey, data)
	batch.Put(versionKey, binary.BigEndian.AppendUint64(nil, version))
	return version, Error.Wrap(db.store.Apply(ctx, &batch))
}

// Load returns the stored table, or fds.ErrNotFound before the first Save.
func (db *DB) Load(ctx context.Context) (_ *ObjectLocationTable, err error) {
	defer mon.Task()(&ctx)(&err)

	data, err := db.store.Get(ctx, tableKey)
	if storage.ErrKeyNotFound.Has(err) {
		return nil, fds.ErrNotFound.New("no placement table")
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	olt := NewObjectLocationTable()
	if err := olt.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return olt, nil
}

// Version returns the version of the stored table, zero before the first
// Save.
func (db *DB) Version(ctx context.Context) (_ uint64, err error) {
	defer mon.Task()(&ctx)(&err)

	data, err := db.store.Get(ctx, versionKey)
	if storage.ErrKeyNotFound.Has(err) {
		return 0, nil
	}
	if err != nil {
		return 0, Error.Wrap(err)
	}
	if len(data) != 8 {
		return 0, Error.New("corrupted version")
	}
	return binary.BigEndian.Uint64(data), nil
}

// Close closes the underlying store.
func (db *DB) Close() error {
	return Error.Wrap(db.store.Close())
}
