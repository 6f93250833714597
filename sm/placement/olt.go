// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package placement

import (
	"encoding/binary"
	"sort"

	"github.com/zeebo/errs"

	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
)

// Error is the placement error class.
var Error = errs.Class("placement")

// ObjectLocationTable maps every (tier, token) pair to a disk.
type ObjectLocationTable struct {
	table [fds.TierCount][fds.SmTokenCount]fds.DiskID
	index map[fds.DiskID]map[fds.SmToken]struct{}
}

// NewObjectLocationTable returns a table with every token unassigned.
func NewObjectLocationTable() *ObjectLocationTable {
	olt := &ObjectLocationTable{}
	for tier := range olt.table {
		for token := range olt.table[tier] {
			olt.table[tier][token] = fds.InvalidDiskID
		}
	}
	olt.index = make(map[fds.DiskID]map[fds.SmToken]struct{})
	return olt
}

func checkSlot(tier fds.Tier, token fds.SmToken) error {
	if int(tier) >= fds.TierCount {
		return Error.New("invalid tier %v", tier)
	}
	if token >= fds.SmTokenCount {
		return Error.New("invalid token %d", token)
	}
	return nil
}

// Set places token of tier on disk.
func (olt *ObjectLocationTable) Set(tier fds.Tier, token fds.SmToken, disk fds.DiskID) error {
	if err := checkSlot(tier, token); err != nil {
		return err
	}
	prev := olt.table[tier][token]
	if prev == disk {
		return nil
	}
	if tokens, ok := olt.index[prev]; ok {
		delete(tokens, token)
		if len(tokens) == 0 {
			delete(olt.index, prev)
		}
	}
	olt.table[tier][token] = disk
	if disk != fds.InvalidDiskID {
		tokens, ok := olt.index[disk]
		if !ok {
			tokens = make(map[fds.SmToken]struct{})
			olt.index[disk] = tokens
		}
		tokens[token] = struct{}{}
	}
	return nil
}

// Get returns the disk holding token of tier. Unassigned slots return
// fds.InvalidDiskID.
func (olt *ObjectLocationTable) Get(tier fds.Tier, token fds.SmToken) fds.DiskID {
	if checkSlot(tier, token) != nil {
		return fds.InvalidDiskID
	}
	return olt.table[tier][token]
}

// GenerateDiskToTokenMap rebuilds the reverse index from the forward table
// and returns a copy of it.
func (olt *ObjectLocationTable) GenerateDiskToTokenMap() map[fds.DiskID][]fds.SmToken {
	olt.index = make(map[fds.DiskID]map[fds.SmToken]struct{})
	for tier := range olt.table {
		for token, disk := range olt.table[tier] {
			if disk == fds.InvalidDiskID {
				continue
			}
			tokens, ok := olt.index[disk]
			if !ok {
				tokens = make(map[fds.SmToken]struct{})
				olt.index[disk] = tokens
			}
			tokens[fds.SmToken(token)] = struct{}{}
		}
	}

	result := make(map[fds.DiskID][]fds.SmToken, len(olt.index))
	for disk := range olt.index {
		result[disk] = olt.Tokens(disk)
	}
	return result
}

// Tokens returns the sorted tokens resident on disk.
func (olt *ObjectLocationTable) Tokens(disk fds.DiskID) []fds.SmToken {
	set := olt.index[disk]
	tokens := make([]fds.SmToken, 0, len(set))
	for token := range set {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, k int) bool { return tokens[i] < tokens[k] })
	return tokens
}

// Disks returns the sorted disks used by tier.
func (olt *ObjectLocationTable) Disks(tier fds.Tier) []fds.DiskID {
	if int(tier) >= fds.TierCount {
		return nil
	}
	seen := make(map[fds.DiskID]struct{})
	var disks []fds.DiskID
	for _, disk := range olt.table[tier] {
		if _, ok := seen[disk]; ok || disk == fds.InvalidDiskID {
			continue
		}
		seen[disk] = struct{}{}
		disks = append(disks, disk)
	}
	sort.Slice(disks, func(i, k int) bool { return disks[i] < disks[k] })
	return disks
}

// Validate checks that every token of a populated tier is on one of its
// disks and that tiers without disks are unassigned.
func (olt *ObjectLocationTable) Validate(hdds, ssds []fds.DiskID) error {
	var group errs.Group
	for tier, disks := range [fds.TierCount][]fds.DiskID{fds.TierHDD: hdds, fds.TierSSD: ssds} {
		members := make(map[fds.DiskID]struct{}, len(disks))
		for _, disk := range disks {
			members[disk] = struct{}{}
		}
		for token, disk := range olt.table[tier] {
			if len(disks) == 0 {
				if disk != fds.InvalidDiskID {
					group.Add(Error.New("%v token %d on disk %v without %v disks", fds.Tier(tier), token, disk, fds.Tier(tier)))
				}
				continue
			}
			if _, ok := members[disk]; !ok {
				group.Add(Error.New("%v token %d on unknown disk %v", fds.Tier(tier), token, disk))
			}
		}
	}
	return group.Err()
}

// Equal reports whether both tables place every token identically.
func (olt *ObjectLocationTable) Equal(other *ObjectLocationTable) bool {
	return olt.table == other.table
}

// Clone returns a deep copy.
func (olt *ObjectLocationTable) Clone() *ObjectLocationTable {
	clone := &ObjectLocationTable{table: olt.table}
	clone.GenerateDiskToTokenMap()
	return clone
}

const slotSize = 2

// MarshalBinary encodes the table as big endian disk ids, tier by tier.
func (olt *ObjectLocationTable) MarshalBinary() ([]byte, error) {
	data := make([]byte, 0, fds.TierCount*fds.SmTokenCount*slotSize)
	for tier := range olt.table {
		for _, disk := range olt.table[tier] {
			data = binary.BigEndian.AppendUint16(data, uint16(disk))
		}
	}
	return data, nil
}

// UnmarshalBinary decodes a table written by MarshalBinary.
func (olt *ObjectLocationTable) UnmarshalBinary(data []byte) error {
	if len(data) != fds.TierCount*fds.SmTokenCount*slotSize {
		return Error.New("encoded table has %d bytes", len(data))
	}
	for tier := range olt.table {
		for token := range olt.table[tier] {
			olt.table[tier][token] = fds.DiskID(binary.BigEndian.Uint16(data))
			data = data[slotSize:]
		}
	}
	olt.GenerateDiskToTokenMap()
	return nil
}
