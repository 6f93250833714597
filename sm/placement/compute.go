// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package placement

import (
	"sort"

	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
)

// Move is a token that changed disks in a recompute.
type Move struct {
	Tier  fds.Tier
	Token fds.SmToken
	From  fds.DiskID
	To    fds.DiskID
}

func sortedDisks(disks []fds.DiskID) ([]fds.DiskID, error) {
	sorted := make([]fds.DiskID, 0, len(disks))
	seen := make(map[fds.DiskID]struct{}, len(disks))
	for _, disk := range disks {
		if disk == fds.InvalidDiskID {
			return nil, Error.New("invalid disk id")
		}
		if _, ok := seen[disk]; ok {
			return nil, Error.New("disk %v listed twice", disk)
		}
		seen[disk] = struct{}{}
		sorted = append(sorted, disk)
	}
	sort.Slice(sorted, func(i, k int) bool { return sorted[i] < sorted[k] })
	return sorted, nil
}

func checkDisks(hdds, ssds []fds.DiskID) ([fds.TierCount][]fds.DiskID, error) {
	var tiers [fds.TierCount][]fds.DiskID
	if len(hdds) == 0 && len(ssds) == 0 {
		return tiers, fds.ErrInvalidArg.New("no disks")
	}
	var err error
	if tiers[fds.TierHDD], err = sortedDisks(hdds); err != nil {
		return tiers, err
	}
	if tiers[fds.TierSSD], err = sortedDisks(ssds); err != nil {
		return tiers, err
	}
	for _, disk := range tiers[fds.TierHDD] {
		for _, other := range tiers[fds.TierSSD] {
			if disk == other {
				return tiers, Error.New("disk %v is in both tiers", disk)
			}
		}
	}
	return tiers, nil
}

// Compute places every token on the disks of each non-empty tier. Tokens
// are dealt round robin over the disks in id order, so the result only
// depends on the disk sets and the per-disk token counts differ by at most
// one. Tiers without disks are left unassigned.
func Compute(hdds, ssds []fds.DiskID, olt *ObjectLocationTable) error {
	tiers, err := checkDisks(hdds, ssds)
	if err != nil {
		return err
	}
	for tier, disks := range tiers {
		for token := fds.SmToken(0); token < fds.SmTokenCount; token++ {
			disk := fds.InvalidDiskID
			if len(disks) > 0 {
				disk = disks[int(token)%len(disks)]
			}
			if err := olt.Set(fds.Tier(tier), token, disk); err != nil {
				return err
			}
		}
	}
	return nil
}

// Recompute places tokens on a changed disk set while moving as few tokens
// as possible. Each disk keeps its tokens up to its new share; the disks that
// already hold the most tokens get the larger shares. Remaining tokens go to
// the disks still below their share, lowest id first.
func Recompute(prev *ObjectLocationTable, hdds, ssds []fds.DiskID) (*ObjectLocationTable, []Move, error) {
	tiers, err := checkDisks(hdds, ssds)
	if err != nil {
		return nil, nil, err
	}

	next := NewObjectLocationTable()
	var moves []Move
	for t, disks := range tiers {
		tier := fds.Tier(t)
		if len(disks) == 0 {
			for token := fds.SmToken(0); token < fds.SmTokenCount; token++ {
				if from := prev.Get(tier, token); from != fds.InvalidDiskID {
					moves = append(moves, Move{Tier: tier, Token: token, From: from, To: fds.InvalidDiskID})
				}
			}
			continue
		}

		quota := shares(prev, tier, disks)
		held := make(map[fds.DiskID]int, len(disks))
		var orphans []fds.SmToken
		for token := fds.SmToken(0); token < fds.SmTokenCount; token++ {
			disk := prev.Get(tier, token)
			if want, ok := quota[disk]; ok && held[disk] < want {
				held[disk]++
				if err := next.Set(tier, token, disk); err != nil {
					return nil, nil, err
				}
				continue
			}
			orphans = append(orphans, token)
		}

		i := 0
		for _, token := range orphans {
			for held[disks[i]] >= quota[disks[i]] {
				i++
			}
			disk := disks[i]
			held[disk]++
			if err := next.Set(tier, token, disk); err != nil {
				return nil, nil, err
			}
			moves = append(moves, Move{Tier: tier, Token: token, From: prev.Get(tier, token), To: disk})
		}
	}
	return next, moves, nil
}

// shares returns how many tokens each disk of tier should hold.
func shares(prev *ObjectLocationTable, tier fds.Tier, disks []fds.DiskID) map[fds.DiskID]int {
	current := make(map[fds.DiskID]int, len(disks))
	for token := fds.SmToken(0); token < fds.SmTokenCount; token++ {
		current[prev.Get(tier, token)]++
	}

	ranked := append([]fds.DiskID(nil), disks...)
	sort.SliceStable(ranked, func(i, k int) bool {
		return current[ranked[i]] > current[ranked[k]]
	})

	base, extra := fds.SmTokenCount/len(disks), fds.SmTokenCount%len(disks)
	quota := make(map[fds.DiskID]int, len(disks))
	for i, disk := range ranked {
		quota[disk] = base
		if i < extra {
			quota[disk]++
		}
	}
	return quota
}
