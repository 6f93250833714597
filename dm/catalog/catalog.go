// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package catalog

import (
	"context"
	"sync"

	"github.com/spacemonkeygo/monkit/v3"
	"go.uber.org/zap"

	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
	"github.com/vinaypunrao68/fds-src-sub016/storage"
)

var mon = monkit.Package()

// VolumeReader is the read surface shared by catalogs and their snapshots.
type VolumeReader interface {
	ID() fds.VolumeID
	VolumeMeta(ctx context.Context) (*VolumeMetaDesc, error)
	GetBlobMeta(ctx context.Context, name string) (*BlobMetaDesc, error)
	GetBlobObjects(ctx context.Context, name string) (BlobObjList, error)
	ForEachBlob(ctx context.Context, fn func(ctx context.Context, meta *BlobMetaDesc) error) error
	BlobsWithObject(ctx context.Context, oid fds.ObjectID) ([]string, error)
	ListExpunged(ctx context.Context) ([]fds.ObjectID, error)
	Stats(ctx context.Context) (Stats, error)
	Reader() storage.Reader
}

// Stats summarizes a volume catalog.
type Stats struct {
	Blobs         int64
	Objects       int64
	UniqueObjects int64
	Size          uint64
	Expunged      int64
}

// UpdateOp is the kind of a CatalogUpdate.
type UpdateOp uint8

const (
	// UpdatePutBlob replaces a blob's metadata and object list.
	UpdatePutBlob UpdateOp = iota + 1
	// UpdateDeleteBlob removes a blob.
	UpdateDeleteBlob
)

// CatalogUpdate is one committed catalog write, applied locally or
// forwarded to a migration destination.
type CatalogUpdate struct {
	Op      UpdateOp     `msgpack:"op"`
	Blob    BlobMetaDesc `msgpack:"blob"`
	Objects BlobObjList  `msgpack:"objs,omitempty"`
}

// reader implements VolumeReader over any storage.Reader.
type reader struct {
	id fds.VolumeID
	r  storage.Reader
}

// ID returns the volume id.
func (vr *reader) ID() fds.VolumeID { return vr.id }

// Reader returns the underlying key value reader.
func (vr *reader) Reader() storage.Reader { return vr.r }

// VolumeMeta returns the volume descriptor.
func (vr *reader) VolumeMeta(ctx context.Context) (_ *VolumeMetaDesc, err error) {
	defer mon.Task()(&ctx)(&err)
	value, err := vr.r.Get(ctx, VolumeMetadataKey())
	if err != nil {
		if storage.ErrKeyNotFound.Has(err) {
			return nil, fds.ErrNotFound.New("volume %v metadata", vr.id)
		}
		return nil, fds.ErrIO.Wrap(err)
	}
	var desc VolumeMetaDesc
	if err := Unmarshal(value, &desc); err != nil {
		return nil, err
	}
	return &desc, nil
}

// GetBlobMeta returns the metadata of the named blob.
func (vr *reader) GetBlobMeta(ctx context.Context, name string) (_ *BlobMetaDesc, err error) {
	defer mon.Task()(&ctx)(&err)
	value, err := vr.r.Get(ctx, BlobMetadataKey(name))
	if err != nil {
		if storage.ErrKeyNotFound.Has(err) {
			return nil, fds.ErrNotFound.New("blob %q", name)
		}
		return nil, fds.ErrIO.Wrap(err)
	}
	var desc BlobMetaDesc
	if err := Unmarshal(value, &desc); err != nil {
		return nil, err
	}
	return &desc, nil
}

// GetBlobObjects returns the object list of the named blob. A blob without
// objects returns an empty list.
func (vr *reader) GetBlobObjects(ctx context.Context, name string) (_ BlobObjList, err error) {
	defer mon.Task()(&ctx)(&err)
	var list BlobObjList
	err = vr.r.Iterate(ctx, blobObjectRange(name), func(ctx context.Context, it storage.Iterator) error {
		var item storage.ListItem
		for it.Next(ctx, &item) {
			var obj BlobObject
			if err := Unmarshal(item.Value, &obj); err != nil {
				return err
			}
			list = append(list, obj)
		}
		return nil
	})
	return list, err
}

// ForEachBlob calls fn for every blob in name order.
func (vr *reader) ForEachBlob(ctx context.Context, fn func(ctx context.Context, meta *BlobMetaDesc) error) (err error) {
	defer mon.Task()(&ctx)(&err)
	return vr.r.Iterate(ctx, TypeRange(KeyTypeBlobMetadata), func(ctx context.Context, it storage.Iterator) error {
		var item storage.ListItem
		for it.Next(ctx, &item) {
			var desc BlobMetaDesc
			if err := Unmarshal(item.Value, &desc); err != nil {
				return err
			}
			if err := fn(ctx, &desc); err != nil {
				return err
			}
		}
		return nil
	})
}

// BlobsWithObject returns the names of the blobs referencing oid.
func (vr *reader) BlobsWithObject(ctx context.Context, oid fds.ObjectID) (names []string, err error) {
	defer mon.Task()(&ctx)(&err)
	err = vr.r.Iterate(ctx, TypeRange(KeyTypeBlobObjects), func(ctx context.Context, it storage.Iterator) error {
		var item storage.ListItem
		for it.Next(ctx, &item) {
			var obj BlobObject
			if err := Unmarshal(item.Value, &obj); err != nil {
				return err
			}
			if obj.ObjectID != oid {
				continue
			}
			name, _, err := DecodeBlobObjectKey(item.Key)
			if err != nil {
				return err
			}
			if len(names) == 0 || names[len(names)-1] != name {
				names = append(names, name)
			}
		}
		return nil
	})
	return names, err
}

// ListExpunged returns the object ids no longer referenced by the volume.
func (vr *reader) ListExpunged(ctx context.Context) (oids []fds.ObjectID, err error) {
	defer mon.Task()(&ctx)(&err)
	err = vr.r.Iterate(ctx, TypeRange(KeyTypeObjectExpunge), func(ctx context.Context, it storage.Iterator) error {
		var item storage.ListItem
		for it.Next(ctx, &item) {
			_, oid, err := DecodeObjectExpungeKey(item.Key)
			if err != nil {
				return err
			}
			oids = append(oids, oid)
		}
		return nil
	})
	return oids, err
}

// Stats counts the blobs and objects of the volume.
func (vr *reader) Stats(ctx context.Context) (stats Stats, err error) {
	defer mon.Task()(&ctx)(&err)
	err = vr.ForEachBlob(ctx, func(ctx context.Context, meta *BlobMetaDesc) error {
		stats.Blobs++
		stats.Size += meta.Size
		return nil
	})
	if err != nil {
		return stats, err
	}

	unique := make(map[fds.ObjectID]struct{})
	err = vr.r.Iterate(ctx, TypeRange(KeyTypeBlobObjects), func(ctx context.Context, it storage.Iterator) error {
		var item storage.ListItem
		for it.Next(ctx, &item) {
			var obj BlobObject
			if err := Unmarshal(item.Value, &obj); err != nil {
				return err
			}
			stats.Objects++
			unique[obj.ObjectID] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return stats, err
	}
	stats.UniqueObjects = int64(len(unique))

	expunged, err := vr.ListExpunged(ctx)
	stats.Expunged = int64(len(expunged))
	return stats, err
}

// TypeRange iterates every key of a type.
func TypeRange(kt KeyType) storage.IterateOptions {
	return storage.IterateOptions{First: TypeKey(kt), Limit: TypeKey(kt + 1)}
}

func blobObjectRange(name string) storage.IterateOptions {
	return storage.IterateOptions{
		First: BlobObjectKey(name, 0),
		Limit: BlobObjectKey(name+"\x00", 0),
	}
}

// VolumeCatalog is the catalog of a single volume.
type VolumeCatalog struct {
	reader
	log   *zap.Logger
	store storage.KeyValueStore

	mu sync.Mutex
}

// NewVolumeCatalog returns the catalog of volume id stored in store. The
// store must order keys with KeyComparator.
func NewVolumeCatalog(log *zap.Logger, id fds.VolumeID, store storage.KeyValueStore) *VolumeCatalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &VolumeCatalog{
		reader: reader{id: id, r: store},
		log:    log.With(zap.Stringer("volume", id)),
		store:  store,
	}
}

// SetVolumeMeta stores the volume descriptor.
func (vc *VolumeCatalog) SetVolumeMeta(ctx context.Context, desc *VolumeMetaDesc) (err error) {
	defer mon.Task()(&ctx)(&err)
	value, err := Marshal(desc)
	if err != nil {
		return err
	}
	return fds.ErrIO.Wrap(vc.store.Put(ctx, VolumeMetadataKey(), value))
}

// SetJournalTimestamp records the timestamp of the last journal entry.
func (vc *VolumeCatalog) SetJournalTimestamp(ctx context.Context, ts uint64) (err error) {
	defer mon.Task()(&ctx)(&err)
	return fds.ErrIO.Wrap(vc.store.Put(ctx, JournalTimestampKey(), EncodeTimestamp(ts)))
}

// JournalTimestamp returns the timestamp of the last journal entry, or zero.
func (vc *VolumeCatalog) JournalTimestamp(ctx context.Context) (_ uint64, err error) {
	defer mon.Task()(&ctx)(&err)
	value, err := vc.store.Get(ctx, JournalTimestampKey())
	if err != nil {
		if storage.ErrKeyNotFound.Has(err) {
			return 0, nil
		}
		return 0, fds.ErrIO.Wrap(err)
	}
	return DecodeTimestamp(value)
}

// PutBlob replaces the metadata and object list of a blob in one batch.
// Objects dropped from the previous list are recorded as expunged. A zero
// SequenceID is assigned the next volume sequence id.
func (vc *VolumeCatalog) PutBlob(ctx context.Context, meta *BlobMetaDesc, objs BlobObjList) (err error) {
	defer mon.Task()(&ctx)(&err)
	vc.mu.Lock()
	defer vc.mu.Unlock()

	vol, err := vc.VolumeMeta(ctx)
	if err != nil {
		return err
	}
	if err := objs.Validate(vol.MaxObjectSize); err != nil {
		return fds.ErrInvalidArg.Wrap(err)
	}

	var batch storage.Batch
	if err := vc.replaceObjects(ctx, &batch, meta.Name, objs); err != nil {
		return err
	}
	if meta.Size == 0 {
		meta.Size = objs.Size()
	}
	if err := vc.putMeta(ctx, &batch, vol, meta); err != nil {
		return err
	}
	return fds.ErrIO.Wrap(vc.store.Apply(ctx, &batch))
}

// PutBlobObjects replaces only the object list of a blob.
func (vc *VolumeCatalog) PutBlobObjects(ctx context.Context, name string, objs BlobObjList) (err error) {
	defer mon.Task()(&ctx)(&err)
	vc.mu.Lock()
	defer vc.mu.Unlock()

	if err := objs.Validate(0); err != nil {
		return fds.ErrInvalidArg.Wrap(err)
	}
	var batch storage.Batch
	if err := vc.replaceObjects(ctx, &batch, name, objs); err != nil {
		return err
	}
	return fds.ErrIO.Wrap(vc.store.Apply(ctx, &batch))
}

// PutBlobMeta stores only the metadata of a blob and updates the volume
// counters.
func (vc *VolumeCatalog) PutBlobMeta(ctx context.Context, meta *BlobMetaDesc) (err error) {
	defer mon.Task()(&ctx)(&err)
	vc.mu.Lock()
	defer vc.mu.Unlock()

	vol, err := vc.VolumeMeta(ctx)
	if err != nil {
		return err
	}
	var batch storage.Batch
	if err := vc.putMeta(ctx, &batch, vol, meta); err != nil {
		return err
	}
	return fds.ErrIO.Wrap(vc.store.Apply(ctx, &batch))
}

// DeleteBlob removes a blob, expunging all of its objects. Deleting a
// missing blob returns ErrNotFound.
func (vc *VolumeCatalog) DeleteBlob(ctx context.Context, name string) (err error) {
	defer mon.Task()(&ctx)(&err)
	vc.mu.Lock()
	defer vc.mu.Unlock()

	vol, err := vc.VolumeMeta(ctx)
	if err != nil {
		return err
	}
	prev, err := vc.GetBlobMeta(ctx, name)
	if err != nil {
		return err
	}

	var batch storage.Batch
	if err := vc.replaceObjects(ctx, &batch, name, nil); err != nil {
		return err
	}
	batch.Delete(BlobMetadataKey(name))

	vol.SequenceID++
	if vol.BlobCount > 0 {
		vol.BlobCount--
	}
	if vol.Size >= prev.Size {
		vol.Size -= prev.Size
	}
	value, err := Marshal(vol)
	if err != nil {
		return err
	}
	batch.Put(VolumeMetadataKey(), value)
	return fds.ErrIO.Wrap(vc.store.Apply(ctx, &batch))
}

// ApplyUpdate applies a committed catalog write. The blob sequence id and
// size assigned by PutBlob are stored back into update.
func (vc *VolumeCatalog) ApplyUpdate(ctx context.Context, update *CatalogUpdate) (err error) {
	defer mon.Task()(&ctx)(&err)
	switch update.Op {
	case UpdatePutBlob:
		return vc.PutBlob(ctx, &update.Blob, update.Objects)
	case UpdateDeleteBlob:
		err := vc.DeleteBlob(ctx, update.Blob.Name)
		if fds.ErrNotFound.Has(err) {
			return nil
		}
		return err
	default:
		return fds.ErrInvalidArg.New("unknown update op %d", update.Op)
	}
}

// ClearExpunged removes expunge markers once the objects were released.
func (vc *VolumeCatalog) ClearExpunged(ctx context.Context, oids []fds.ObjectID) (err error) {
	defer mon.Task()(&ctx)(&err)
	var batch storage.Batch
	for _, oid := range oids {
		batch.Delete(ObjectExpungeKey(vc.id, oid))
	}
	return fds.ErrIO.Wrap(vc.store.Apply(ctx, &batch))
}

// Snapshot returns a stable view of the catalog.
func (vc *VolumeCatalog) Snapshot(ctx context.Context) (_ *CatalogSnapshot, err error) {
	defer mon.Task()(&ctx)(&err)
	snapshotter, ok := vc.store.(storage.Snapshotter)
	if !ok {
		return nil, fds.ErrIO.New("volume %v store does not support snapshots", vc.id)
	}
	snap, err := snapshotter.Snapshot(ctx)
	if err != nil {
		return nil, fds.ErrIO.Wrap(err)
	}
	return &CatalogSnapshot{reader: reader{id: vc.id, r: snap}, snap: snap}, nil
}

// Close closes the underlying store.
func (vc *VolumeCatalog) Close() error {
	return vc.store.Close()
}

func (vc *VolumeCatalog) replaceObjects(ctx context.Context, batch *storage.Batch, name string, objs BlobObjList) error {
	prev, err := vc.GetBlobObjects(ctx, name)
	if err != nil {
		return fds.ErrIO.Wrap(err)
	}
	for i := range prev {
		batch.Delete(BlobObjectKey(name, uint32(i)))
	}

	current := objs.ObjectIDs()
	for _, obj := range prev {
		if _, ok := current[obj.ObjectID]; !ok {
			batch.Put(ObjectExpungeKey(vc.id, obj.ObjectID), nil)
		}
	}

	for i, obj := range objs {
		value, err := Marshal(obj)
		if err != nil {
			return err
		}
		batch.Put(BlobObjectKey(name, uint32(i)), value)
	}
	return nil
}

func (vc *VolumeCatalog) putMeta(ctx context.Context, batch *storage.Batch, vol *VolumeMetaDesc, meta *BlobMetaDesc) error {
	prev, err := vc.GetBlobMeta(ctx, meta.Name)
	switch {
	case err == nil:
		if vol.Size >= prev.Size {
			vol.Size -= prev.Size
		}
	case fds.ErrNotFound.Has(err):
		vol.BlobCount++
	default:
		return err
	}
	vol.Size += meta.Size

	if meta.SequenceID == 0 {
		meta.SequenceID = vol.SequenceID + 1
	}
	if meta.SequenceID > vol.SequenceID {
		vol.SequenceID = meta.SequenceID
	}

	value, err := Marshal(meta)
	if err != nil {
		return err
	}
	batch.Put(BlobMetadataKey(meta.Name), value)

	value, err = Marshal(vol)
	if err != nil {
		return err
	}
	batch.Put(VolumeMetadataKey(), value)
	return nil
}

// CatalogSnapshot is a point in time view of a volume catalog.
type CatalogSnapshot struct {
	reader
	snap storage.Snapshot
	once sync.Once
}

// Release frees the snapshot. Releasing twice is a no-op.
func (snap *CatalogSnapshot) Release() {
	snap.once.Do(snap.snap.Release)
}
