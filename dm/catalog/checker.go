// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package catalog

import (
	"context"

	"github.com/vinaypunrao68/fds-src-sub016/storage"
)

// Report is the result of comparing two replicas of a volume.
type Report struct {
	Blobs   DiffStats
	Objects DiffStats
	// Differences lists the keys that differ, formatted with FormatKey.
	Differences []string
}

// Consistent reports whether both replicas hold the same blobs and objects.
func (report *Report) Consistent() bool {
	return report.Blobs.Differences() == 0 && report.Objects.Differences() == 0
}

// CompareVolumes checks that a and b hold the same blobs with the same
// object lists. Blob sequence ids are replica local and are ignored.
func CompareVolumes(ctx context.Context, a, b VolumeReader) (_ *Report, err error) {
	defer mon.Task()(&ctx)(&err)
	report := &Report{}
	record := func(entry DiffEntry) error {
		if entry.Kind != DiffMatch {
			report.Differences = append(report.Differences, entry.Kind.String()+" "+FormatKey(entry.Key))
		}
		return nil
	}

	report.Blobs, err = DiffReaders(ctx, a.Reader(), b.Reader(), TypeRange(KeyTypeBlobMetadata), KeyComparator, blobMetaEqual, record)
	if err != nil {
		return nil, err
	}
	report.Objects, err = DiffReaders(ctx, a.Reader(), b.Reader(), TypeRange(KeyTypeBlobObjects), KeyComparator, nil, record)
	if err != nil {
		return nil, err
	}
	return report, nil
}

func blobMetaEqual(_ storage.Key, src, dst storage.Value) bool {
	var a, b BlobMetaDesc
	if Unmarshal(src, &a) != nil || Unmarshal(dst, &b) != nil {
		return false
	}
	a.SequenceID, b.SequenceID = 0, 0
	return a.Equal(&b)
}
