// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/zeebo/errs"

	"github.com/vinaypunrao68/fds-src-sub016/dm/catalog"
	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
)

// Options selects what is printed for each volume.
type Options struct {
	List      bool
	Blobs     bool
	Objects   string
	ShowBlobs string
	Stats     bool

	object fds.ObjectID
}

func (options Options) any() bool {
	return options.List || options.Blobs || options.Objects != "" || options.ShowBlobs != "" || options.Stats
}

// Explorer prints volume catalogs.
type Explorer struct {
	out     io.Writer
	options Options
}

// NewExplorer returns an explorer printing to out. Without any option set
// it lists the volumes.
func NewExplorer(out io.Writer, options Options) *Explorer {
	if !options.any() {
		options.List = true
	}
	return &Explorer{out: out, options: options}
}

// Explore prints one volume.
func (explorer *Explorer) Explore(ctx context.Context, vr catalog.VolumeReader) (err error) {
	w := tabwriter.NewWriter(explorer.out, 0, 4, 2, ' ', 0)
	defer func() { err = errs.Combine(err, w.Flush()) }()

	meta, err := vr.VolumeMeta(ctx)
	if err != nil {
		return Error.New("volume %v: %v", vr.ID(), err)
	}
	fmt.Fprintf(w, "volume %v\t%q\tseq %d\tversion %d\tblobs %d\t%s\n",
		meta.ID, meta.Name, meta.SequenceID, meta.Version, meta.BlobCount, humanize.IBytes(meta.Size))

	if explorer.options.Stats {
		stats, err := vr.Stats(ctx)
		if err != nil {
			return Error.Wrap(err)
		}
		fmt.Fprintf(w, "  stats\tblobs %d\tobjects %d\tunique %d\texpunged %d\t%s\n",
			stats.Blobs, stats.Objects, stats.UniqueObjects, stats.Expunged, humanize.IBytes(stats.Size))
	}

	if explorer.options.Blobs {
		err := vr.ForEachBlob(ctx, func(ctx context.Context, blob *catalog.BlobMetaDesc) error {
			_, err := fmt.Fprintf(w, "  blob\t%s\tversion %d\tseq %d\t%s\n",
				blob.Name, blob.Version, blob.SequenceID, humanize.IBytes(blob.Size))
			return err
		})
		if err != nil {
			return Error.Wrap(err)
		}
	}

	if name := explorer.options.Objects; name != "" {
		objs, err := vr.GetBlobObjects(ctx, name)
		if err != nil {
			return Error.Wrap(err)
		}
		for _, obj := range objs {
			fmt.Fprintf(w, "  object\t%d\t%v\t%s\n", obj.Offset, obj.ObjectID, humanize.IBytes(uint64(obj.Size)))
		}
	}

	if explorer.options.ShowBlobs != "" {
		names, err := vr.BlobsWithObject(ctx, explorer.options.object)
		if err != nil {
			return Error.Wrap(err)
		}
		for _, name := range names {
			fmt.Fprintf(w, "  references\t%v\t%s\n", explorer.options.object, name)
		}
	}
	return nil
}
