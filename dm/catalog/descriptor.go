// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package catalog

import (
	"sort"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
)

// InvalidVersion is the sentinel version of a volume that has no valid
// replica generation.
const InvalidVersion int64 = -1

// VolumeMetaDesc describes a volume.
type VolumeMetaDesc struct {
	ID            fds.VolumeID `msgpack:"id"`
	Name          string       `msgpack:"name"`
	SequenceID    uint64       `msgpack:"seq"`
	Version       int64        `msgpack:"version"`
	MaxObjectSize uint32       `msgpack:"max_obj_size"`
	BlobCount     uint64       `msgpack:"blobs"`
	Size          uint64       `msgpack:"size"`
}

// BlobMetaDesc describes a blob.
type BlobMetaDesc struct {
	Name       string            `msgpack:"name"`
	Version    uint64            `msgpack:"version"`
	Size       uint64            `msgpack:"size"`
	SequenceID uint64            `msgpack:"seq"`
	Metadata   map[string]string `msgpack:"meta,omitempty"`
}

// Equal reports whether both descriptors are identical.
func (desc *BlobMetaDesc) Equal(other *BlobMetaDesc) bool {
	if desc.Name != other.Name || desc.Version != other.Version ||
		desc.Size != other.Size || desc.SequenceID != other.SequenceID ||
		len(desc.Metadata) != len(other.Metadata) {
		return false
	}
	for k, v := range desc.Metadata {
		if ov, ok := other.Metadata[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// BlobObject is one offset to object mapping of a blob.
type BlobObject struct {
	Offset   uint64       `msgpack:"off"`
	ObjectID fds.ObjectID `msgpack:"oid"`
	Size     uint32       `msgpack:"size"`
}

// BlobObjList is a blob's object list ordered by offset.
type BlobObjList []BlobObject

// Sort orders the list by offset.
func (list BlobObjList) Sort() {
	sort.Slice(list, func(i, k int) bool { return list[i].Offset < list[k].Offset })
}

// Validate checks that objects are ordered, aligned to maxObjSize and do not
// exceed it. A zero maxObjSize only checks ordering.
func (list BlobObjList) Validate(maxObjSize uint32) error {
	for i, obj := range list {
		if i > 0 && list[i-1].Offset >= obj.Offset {
			return Error.New("object list not ordered at offset %d", obj.Offset)
		}
		if maxObjSize == 0 {
			continue
		}
		if obj.Offset%uint64(maxObjSize) != 0 {
			return Error.New("offset %d not aligned to %d", obj.Offset, maxObjSize)
		}
		if obj.Size > maxObjSize {
			return Error.New("object at %d larger than %d", obj.Offset, maxObjSize)
		}
	}
	return nil
}

// Equal reports whether both lists map the same offsets to the same objects.
func (list BlobObjList) Equal(other BlobObjList) bool {
	if len(list) != len(other) {
		return false
	}
	for i := range list {
		if list[i] != other[i] {
			return false
		}
	}
	return true
}

// ObjectIDs returns the distinct object ids of the list.
func (list BlobObjList) ObjectIDs() map[fds.ObjectID]struct{} {
	ids := make(map[fds.ObjectID]struct{}, len(list))
	for _, obj := range list {
		ids[obj.ObjectID] = struct{}{}
	}
	return ids
}

// Size returns the logical size covered by the list.
func (list BlobObjList) Size() uint64 {
	if len(list) == 0 {
		return 0
	}
	last := list[len(list)-1]
	return last.Offset + uint64(last.Size)
}

// Marshal encodes v with msgpack.
func Marshal(v interface{}) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	return data, Error.Wrap(err)
}

// Unmarshal decodes msgpack data into v.
func Unmarshal(data []byte, v interface{}) error {
	return Error.Wrap(msgpack.Unmarshal(data, v))
}
