// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package fds

import (
	"bytes"
	"encoding/hex"
	"strconv"
)

// VolumeID identifies a volume.
type VolumeID uint64

// String implements fmt.Stringer.
func (id VolumeID) String() string { return strconv.FormatUint(uint64(id), 10) }

// ParseVolumeID parses a decimal volume id.
func ParseVolumeID(s string) (VolumeID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidArg.New("volume id %q: %v", s, err)
	}
	return VolumeID(v), nil
}

// NodeUUID identifies a service node (DM, SM, OM).
type NodeUUID uint64

// String implements fmt.Stringer.
func (id NodeUUID) String() string { return "0x" + strconv.FormatUint(uint64(id), 16) }

// MigrationID identifies one migration round issued by the coordinator.
type MigrationID uint64

// ObjectIDSize is the size of an object id in bytes.
const ObjectIDSize = 20

// ObjectID is the content hash of an object.
type ObjectID [ObjectIDSize]byte

// ObjectIDFromBytes converts a byte slice to an ObjectID.
func ObjectIDFromBytes(b []byte) (ObjectID, error) {
	var id ObjectID
	if len(b) != ObjectIDSize {
		return id, ErrInvalidArg.New("object id must be %d bytes, got %d", ObjectIDSize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// ObjectIDFromString parses the hex form of an object id. A leading "0x"
// is accepted.
func ObjectIDFromString(s string) (ObjectID, error) {
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return ObjectID{}, ErrInvalidArg.New("object id %q: %v", s, err)
	}
	return ObjectIDFromBytes(b)
}

// String returns the hex form of the object id.
func (id ObjectID) String() string { return hex.EncodeToString(id[:]) }

// Bytes returns the id as a byte slice.
func (id ObjectID) Bytes() []byte { return id[:] }

// IsZero returns true if the id is all zeroes.
func (id ObjectID) IsZero() bool { return id == ObjectID{} }

// Less orders object ids bytewise.
func (id ObjectID) Less(other ObjectID) bool { return bytes.Compare(id[:], other[:]) < 0 }

// SmToken is a partition of the object id keyspace.
type SmToken uint32

const (
	// DefaultBitsPerToken is the number of leading object id bits used to
	// select an SM token.
	DefaultBitsPerToken = 8
	// SmTokenCount is the number of SM tokens system wide.
	SmTokenCount = 1 << DefaultBitsPerToken
)

// TokenOf returns the SM token owning the object id.
func TokenOf(id ObjectID, bitsPerToken uint) SmToken {
	if bitsPerToken == 0 || bitsPerToken > 32 {
		bitsPerToken = DefaultBitsPerToken
	}
	prefix := uint32(id[0])<<24 | uint32(id[1])<<16 | uint32(id[2])<<8 | uint32(id[3])
	return SmToken(prefix >> (32 - bitsPerToken))
}

// DiskID identifies a physical disk of a storage manager.
type DiskID uint16

// InvalidDiskID marks a token without a disk.
const InvalidDiskID DiskID = 0xffff

// String implements fmt.Stringer.
func (id DiskID) String() string {
	if id == InvalidDiskID {
		return "invalid"
	}
	return strconv.FormatUint(uint64(id), 10)
}

// Tier is a class of storage device.
type Tier uint8

const (
	// TierHDD is spinning disk.
	TierHDD Tier = iota
	// TierSSD is flash.
	TierSSD

	// TierCount is the number of tiers.
	TierCount = 2
)

// String implements fmt.Stringer.
func (tier Tier) String() string {
	switch tier {
	case TierHDD:
		return "hdd"
	case TierSSD:
		return "ssd"
	default:
		return "tier(" + strconv.Itoa(int(tier)) + ")"
	}
}
