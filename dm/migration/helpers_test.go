// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package migration_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vinaypunrao68/fds-src-sub016/dm/catalog"
	"github.com/vinaypunrao68/fds-src-sub016/dm/migration"
	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
	"github.com/vinaypunrao68/fds-src-sub016/storage/teststore"
)

const (
	sourceNode fds.NodeUUID = 0x10
	destNode   fds.NodeUUID = 0x20
)

type catalogs struct {
	mu      sync.Mutex
	volumes map[fds.VolumeID]*catalog.VolumeCatalog
}

func newCatalogs() *catalogs {
	return &catalogs{volumes: make(map[fds.VolumeID]*catalog.VolumeCatalog)}
}

func (c *catalogs) Get(ctx context.Context, id fds.VolumeID) (*catalog.VolumeCatalog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	vc, ok := c.volumes[id]
	if !ok {
		return nil, fds.ErrNotFound.New("volume %v", id)
	}
	return vc, nil
}

func (c *catalogs) create(ctx context.Context, t *testing.T, id fds.VolumeID, version int64) *catalog.VolumeCatalog {
	vc := catalog.NewVolumeCatalog(zaptest.NewLogger(t), id, teststore.NewWithComparator(catalog.KeyComparator))
	require.NoError(t, vc.SetVolumeMeta(ctx, &catalog.VolumeMetaDesc{ID: id, Name: "vol", Version: version, MaxObjectSize: 4096}))
	c.mu.Lock()
	c.volumes[id] = vc
	c.mu.Unlock()
	return vc
}

type node struct {
	id       fds.NodeUUID
	catalogs *catalogs
	manager  *migration.Manager
}

type cluster struct {
	network *migration.LocalNetwork
	source  *node
	dest    *node
}

func testConfig() migration.Config {
	return migration.Config{
		IdleTimeout:                 2 * time.Minute,
		IdleCheckInterval:           30 * time.Second,
		RequestTimeout:              5 * time.Second,
		MaxDeltaBlobsPerMessage:     3,
		MaxDeltaBlobDescsPerMessage: 2,
		Workers:                     4,
		MaxInflightMessages:         4,
	}
}

func newCluster(t *testing.T, clk clock.Clock, config migration.Config) *cluster {
	network := migration.NewLocalNetwork()
	newNode := func(id fds.NodeUUID) *node {
		n := &node{id: id, catalogs: newCatalogs()}
		n.manager = migration.NewManager(zaptest.NewLogger(t).Named(id.String()), id, n.catalogs, network.Transport(id), clk, config)
		network.Register(id, migration.NewEndpoint(zaptest.NewLogger(t), n.manager, nil))
		return n
	}
	c := &cluster{network: network, source: newNode(sourceNode), dest: newNode(destNode)}
	t.Cleanup(func() {
		require.NoError(t, c.dest.manager.Close())
		require.NoError(t, c.source.manager.Close())
	})
	return c
}

// start begins migrating volumes from the source node and returns the
// channel receiving the round result.
func (c *cluster) start(ctx context.Context, id fds.MigrationID, volumes ...fds.VolumeID) (<-chan error, error) {
	msg := &migration.StartMigration{MigrationID: id}
	for _, volume := range volumes {
		msg.Volumes = append(msg.Volumes, migration.MigrationVolume{Volume: volume, Source: c.source.id})
	}
	result := make(chan error, 1)
	err := c.dest.manager.StartMigration(ctx, msg, func(err error) { result <- err })
	return result, err
}

func wait(t *testing.T, result <-chan error) error {
	select {
	case err := <-result:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("migration round did not finish")
		return nil
	}
}

func objectID(b byte) fds.ObjectID {
	var id fds.ObjectID
	id[0] = b
	id[fds.ObjectIDSize-1] = b
	return id
}

func objects(ids ...byte) catalog.BlobObjList {
	var list catalog.BlobObjList
	for i, id := range ids {
		list = append(list, catalog.BlobObject{Offset: uint64(i) * 4096, ObjectID: objectID(id), Size: 4096})
	}
	return list
}

type handlerFunc func(ctx context.Context, from fds.NodeUUID, msg migration.Message) error

func (fn handlerFunc) Handle(ctx context.Context, from fds.NodeUUID, msg migration.Message) error {
	return fn(ctx, from, msg)
}
