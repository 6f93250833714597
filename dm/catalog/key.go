// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package catalog

import (
	"encoding/binary"
	"strconv"

	"github.com/zeebo/errs"

	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
	"github.com/vinaypunrao68/fds-src-sub016/storage"
)

var (
	// Error is the catalog error class.
	Error = errs.Class("catalog")
	// ErrInvalidKey is returned for keys that cannot be decoded or ordered.
	ErrInvalidKey = errs.Class("invalid catalog key")
)

// KeyType is the first byte of every catalog key.
type KeyType uint8

const (
	// KeyTypeError is never stored; it marks a malformed key.
	KeyTypeError KeyType = iota
	// KeyTypeBlobMetadata holds a BlobMetaDesc keyed by blob name.
	KeyTypeBlobMetadata
	// KeyTypeBlobObjects holds one object id keyed by blob name and object index.
	KeyTypeBlobObjects
	// KeyTypeJournalTimestamp holds the timestamp of the last journal entry.
	KeyTypeJournalTimestamp
	// KeyTypeVolumeMetadata holds the VolumeMetaDesc.
	KeyTypeVolumeMetadata
	// KeyTypeObjectExpunge marks an object id that is no longer referenced.
	KeyTypeObjectExpunge

	keyTypeCount
)

// String implements fmt.Stringer.
func (kt KeyType) String() string {
	switch kt {
	case KeyTypeError:
		return "ERROR"
	case KeyTypeBlobMetadata:
		return "BLOB_METADATA"
	case KeyTypeBlobObjects:
		return "BLOB_OBJECTS"
	case KeyTypeJournalTimestamp:
		return "JOURNAL_TIMESTAMP"
	case KeyTypeVolumeMetadata:
		return "VOLUME_METADATA"
	case KeyTypeObjectExpunge:
		return "OBJECT_EXPUNGE"
	default:
		return "KeyType(" + strconv.Itoa(int(kt)) + ")"
	}
}

const (
	objectIndexSize = 4
	volumeIDSize    = 8
	timestampSize   = 8
)

// TypeKey returns the key holding only the type byte. It orders before every
// other key of that type and is used as a range bound.
func TypeKey(kt KeyType) storage.Key { return storage.Key{byte(kt)} }

// BlobMetadataKey is the key of a blob's metadata.
func BlobMetadataKey(name string) storage.Key {
	key := make(storage.Key, 1, 1+len(name))
	key[0] = byte(KeyTypeBlobMetadata)
	return append(key, name...)
}

// BlobObjectKey is the key of the index-th object of a blob.
func BlobObjectKey(name string, index uint32) storage.Key {
	key := make(storage.Key, 1+objectIndexSize, 1+objectIndexSize+len(name))
	key[0] = byte(KeyTypeBlobObjects)
	binary.BigEndian.PutUint32(key[1:], index)
	return append(key, name...)
}

// JournalTimestampKey is the key of the journal timestamp.
func JournalTimestampKey() storage.Key { return TypeKey(KeyTypeJournalTimestamp) }

// VolumeMetadataKey is the key of the volume descriptor.
func VolumeMetadataKey() storage.Key { return TypeKey(KeyTypeVolumeMetadata) }

// ObjectExpungeKey is the key marking oid as expunged from volume.
func ObjectExpungeKey(volume fds.VolumeID, oid fds.ObjectID) storage.Key {
	key := make(storage.Key, 1+volumeIDSize+fds.ObjectIDSize)
	key[0] = byte(KeyTypeObjectExpunge)
	binary.BigEndian.PutUint64(key[1:], uint64(volume))
	copy(key[1+volumeIDSize:], oid[:])
	return key
}

// TypeOf returns the type of key, or KeyTypeError when it is empty or unknown.
func TypeOf(key storage.Key) KeyType {
	if len(key) == 0 || KeyType(key[0]) >= keyTypeCount {
		return KeyTypeError
	}
	return KeyType(key[0])
}

// DecodeBlobMetadataKey returns the blob name of a BLOB_METADATA key.
func DecodeBlobMetadataKey(key storage.Key) (string, error) {
	if TypeOf(key) != KeyTypeBlobMetadata {
		return "", ErrInvalidKey.New("not a blob metadata key: %x", []byte(key))
	}
	return string(key[1:]), nil
}

// DecodeBlobObjectKey returns the blob name and object index of a
// BLOB_OBJECTS key.
func DecodeBlobObjectKey(key storage.Key) (name string, index uint32, err error) {
	if TypeOf(key) != KeyTypeBlobObjects || len(key) < 1+objectIndexSize {
		return "", 0, ErrInvalidKey.New("not a blob object key: %x", []byte(key))
	}
	return string(key[1+objectIndexSize:]), binary.BigEndian.Uint32(key[1:]), nil
}

// DecodeObjectExpungeKey returns the volume and object id of an
// OBJECT_EXPUNGE key.
func DecodeObjectExpungeKey(key storage.Key) (fds.VolumeID, fds.ObjectID, error) {
	if TypeOf(key) != KeyTypeObjectExpunge || len(key) != 1+volumeIDSize+fds.ObjectIDSize {
		return 0, fds.ObjectID{}, ErrInvalidKey.New("not an object expunge key: %x", []byte(key))
	}
	var oid fds.ObjectID
	copy(oid[:], key[1+volumeIDSize:])
	return fds.VolumeID(binary.BigEndian.Uint64(key[1:])), oid, nil
}

// EncodeTimestamp encodes a journal timestamp value.
func EncodeTimestamp(ts uint64) storage.Value {
	value := make(storage.Value, timestampSize)
	binary.BigEndian.PutUint64(value, ts)
	return value
}

// DecodeTimestamp decodes a journal timestamp value.
func DecodeTimestamp(value storage.Value) (uint64, error) {
	if len(value) != timestampSize {
		return 0, Error.New("invalid timestamp length %d", len(value))
	}
	return binary.BigEndian.Uint64(value), nil
}
