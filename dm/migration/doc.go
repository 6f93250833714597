// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

/*
Package migration moves the authoritative catalog of a volume from one DM to
another while writes continue on the source.

The destination starts by sending the blob names and versions it already has.
The source turns forwarding on, snapshots its catalog, diffs the snapshot
against that filter set and streams two numbered message streams, DeltaBlobs
with object lists and DeltaBlobDescs with blob descriptors. The destination
applies descriptors only once every object list arrived and completes when
both streams are contiguous from zero to their last message. Writes committed
on the source after the snapshot are forwarded on a single ordered stream and
applied by the destination once static migration completed.
*/
package migration
