// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"storj.io/common/testcontext"

	"github.com/vinaypunrao68/fds-src-sub016/dm/catalog"
	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
	"github.com/vinaypunrao68/fds-src-sub016/storage/teststore"
)

func TestExplore(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	shared := fds.ObjectID{1, 2, 3}
	vc := catalog.NewVolumeCatalog(zaptest.NewLogger(t), 7, teststore.NewWithComparator(catalog.KeyComparator))
	require.NoError(t, vc.SetVolumeMeta(ctx, &catalog.VolumeMetaDesc{ID: 7, Name: "photos", MaxObjectSize: 4096}))
	require.NoError(t, vc.PutBlob(ctx, &catalog.BlobMetaDesc{Name: "a", Size: 5000}, catalog.BlobObjList{
		{Offset: 0, ObjectID: shared, Size: 4096},
		{Offset: 4096, ObjectID: fds.ObjectID{9}, Size: 904},
	}))
	require.NoError(t, vc.PutBlob(ctx, &catalog.BlobMetaDesc{Name: "b", Size: 100}, catalog.BlobObjList{
		{Offset: 0, ObjectID: shared, Size: 100},
	}))

	var out bytes.Buffer
	require.NoError(t, NewExplorer(&out, Options{}).Explore(ctx, vc))
	assert.Contains(t, out.String(), `volume 7  "photos"`)
	assert.NotContains(t, out.String(), "blob ")

	out.Reset()
	options := Options{Blobs: true, Objects: "a", ShowBlobs: shared.String(), Stats: true, object: shared}
	require.NoError(t, NewExplorer(&out, options).Explore(ctx, vc))
	text := out.String()
	assert.Contains(t, text, "blobs 2")
	assert.Contains(t, text, "unique 2")
	assert.Regexp(t, `blob\s+a\s+`, text)
	assert.Regexp(t, `blob\s+b\s+`, text)
	assert.Regexp(t, `object\s+4096\s+`+fds.ObjectID{9}.String(), text)
	assert.Regexp(t, `references\s+`+shared.String()+`\s+a`, text)
	assert.Regexp(t, `references\s+`+shared.String()+`\s+b`, text)
}

func TestExploreMissingMeta(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	vc := catalog.NewVolumeCatalog(zaptest.NewLogger(t), 3, teststore.NewWithComparator(catalog.KeyComparator))
	err := NewExplorer(&bytes.Buffer{}, Options{}).Explore(ctx, vc)
	require.Error(t, err)
	assert.True(t, Error.Has(err))
}
