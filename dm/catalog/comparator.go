// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package catalog

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb/comparer"

	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
	"github.com/vinaypunrao68/fds-src-sub016/storage"
)

// ComparerName is the name persisted by leveldb for catalog databases.
const ComparerName = "fds.CatalogKeyComparator"

// CompareKeys orders catalog keys by type, then by the type specific fields.
// A key holding only the type byte orders first within its type.
func CompareKeys(a, b storage.Key) (int, error) {
	ta, tb := TypeOf(a), TypeOf(b)
	if ta == KeyTypeError {
		return 0, ErrInvalidKey.New("%x", []byte(a))
	}
	if tb == KeyTypeError {
		return 0, ErrInvalidKey.New("%x", []byte(b))
	}
	if ta != tb {
		if ta < tb {
			return -1, nil
		}
		return 1, nil
	}

	switch ta {
	case KeyTypeBlobObjects:
		return compareBlobObjects(a, b)
	case KeyTypeObjectExpunge:
		if !validExpungeLength(len(a)) {
			return 0, ErrInvalidKey.New("object expunge key length %d", len(a))
		}
		if !validExpungeLength(len(b)) {
			return 0, ErrInvalidKey.New("object expunge key length %d", len(b))
		}
	}
	// volume id is big endian, so the byte order of the remaining payloads
	// matches the field order.
	return bytes.Compare(a[1:], b[1:]), nil
}

func compareBlobObjects(a, b storage.Key) (int, error) {
	if len(a) == 1 || len(b) == 1 {
		return compareLen(len(a), len(b)), nil
	}
	if len(a) < 1+objectIndexSize {
		return 0, ErrInvalidKey.New("blob object key length %d", len(a))
	}
	if len(b) < 1+objectIndexSize {
		return 0, ErrInvalidKey.New("blob object key length %d", len(b))
	}
	if c := bytes.Compare(a[1+objectIndexSize:], b[1+objectIndexSize:]); c != 0 {
		return c, nil
	}
	ia, ib := binary.BigEndian.Uint32(a[1:]), binary.BigEndian.Uint32(b[1:])
	switch {
	case ia < ib:
		return -1, nil
	case ia > ib:
		return 1, nil
	}
	return 0, nil
}

func compareLen(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func validExpungeLength(n int) bool {
	return n == 1 || n == 1+volumeIDSize || n == 1+volumeIDSize+fds.ObjectIDSize
}

// KeyComparator is CompareKeys as a storage.Comparator. It panics on keys
// that cannot be ordered; stores only ever hold valid catalog keys.
func KeyComparator(a, b storage.Key) int {
	c, err := CompareKeys(a, b)
	if err != nil {
		panic(err)
	}
	return c
}

// Comparer orders leveldb catalog databases with CompareKeys.
var Comparer comparer.Comparer = catalogComparer{}

type catalogComparer struct{}

func (catalogComparer) Compare(a, b []byte) int { return KeyComparator(a, b) }

func (catalogComparer) Name() string { return ComparerName }

// Separator does not shorten keys, the catalog ordering is not bytewise.
func (catalogComparer) Separator(dst, a, b []byte) []byte { return nil }

// Successor does not shorten keys, the catalog ordering is not bytewise.
func (catalogComparer) Successor(dst, b []byte) []byte { return nil }

// FormatKey renders key for logs and tools.
func FormatKey(key storage.Key) string {
	switch TypeOf(key) {
	case KeyTypeBlobMetadata:
		return fmt.Sprintf("%v(%q)", KeyTypeBlobMetadata, key[1:])
	case KeyTypeBlobObjects:
		name, index, err := DecodeBlobObjectKey(key)
		if err != nil || len(key) == 1 {
			break
		}
		return fmt.Sprintf("%v(%q, %d)", KeyTypeBlobObjects, name, index)
	case KeyTypeObjectExpunge:
		volume, oid, err := DecodeObjectExpungeKey(key)
		if err != nil {
			break
		}
		return fmt.Sprintf("%v(%v, %v)", KeyTypeObjectExpunge, volume, oid)
	case KeyTypeJournalTimestamp, KeyTypeVolumeMetadata:
		return TypeOf(key).String()
	}
	return fmt.Sprintf("%x", []byte(key))
}
