// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package migration

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/vinaypunrao68/fds-src-sub016/dm/catalog"
	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
)

// Kind identifies a migration message on the wire.
type Kind uint8

// Message kinds.
const (
	KindStartMigration Kind = iota + 1
	KindInitialBlobFilterSet
	KindDeltaBlobs
	KindDeltaBlobDescs
	KindFinishStaticMigration
	KindForwardCatalogUpdate
)

// String implements fmt.Stringer.
func (kind Kind) String() string {
	switch kind {
	case KindStartMigration:
		return "StartMigration"
	case KindInitialBlobFilterSet:
		return "InitialBlobFilterSet"
	case KindDeltaBlobs:
		return "DeltaBlobs"
	case KindDeltaBlobDescs:
		return "DeltaBlobDescs"
	case KindFinishStaticMigration:
		return "FinishStaticMigration"
	case KindForwardCatalogUpdate:
		return "ForwardCatalogUpdate"
	default:
		return "Unknown"
	}
}

// Message is a migration protocol message.
type Message interface {
	Kind() Kind
}

// MigrationVolume is one volume of a StartMigration request.
type MigrationVolume struct {
	Volume fds.VolumeID `msgpack:"vol"`
	Source fds.NodeUUID `msgpack:"src"`
}

// StartMigration asks a destination DM to pull volumes from their sources.
type StartMigration struct {
	MigrationID fds.MigrationID   `msgpack:"mid"`
	Volumes     []MigrationVolume `msgpack:"vols"`
}

// BlobFilter is a blob the destination already holds.
type BlobFilter struct {
	Name    string `msgpack:"name"`
	Version uint64 `msgpack:"ver"`
}

// InitialBlobFilterSet tells the source which blobs the destination has.
type InitialBlobFilterSet struct {
	MigrationID   fds.MigrationID `msgpack:"mid"`
	Volume        fds.VolumeID    `msgpack:"vol"`
	VolumeVersion int64           `msgpack:"vver"`
	Blobs         []BlobFilter    `msgpack:"blobs"`
}

// BlobDelta is the object list of one blob.
type BlobDelta struct {
	Name    string              `msgpack:"name"`
	Objects catalog.BlobObjList `msgpack:"objs"`
}

// DeltaBlobs carries object lists of blobs the destination must update.
type DeltaBlobs struct {
	MigrationID   fds.MigrationID `msgpack:"mid"`
	Volume        fds.VolumeID    `msgpack:"vol"`
	SeqNum        uint64          `msgpack:"seq"`
	Last          bool            `msgpack:"last"`
	VolumeVersion int64           `msgpack:"vver"`
	Blobs         []BlobDelta     `msgpack:"blobs"`
}

// BlobDescDelta is one blob descriptor, or the deletion of a blob.
type BlobDescDelta struct {
	Desc    catalog.BlobMetaDesc `msgpack:"desc"`
	Deleted bool                 `msgpack:"del"`
}

// DeltaBlobDescs carries blob descriptors. The last message of the stream
// carries the source volume descriptor.
type DeltaBlobDescs struct {
	MigrationID   fds.MigrationID         `msgpack:"mid"`
	Volume        fds.VolumeID            `msgpack:"vol"`
	SeqNum        uint64                  `msgpack:"seq"`
	Last          bool                    `msgpack:"last"`
	VolumeVersion int64                   `msgpack:"vver"`
	Descs         []BlobDescDelta         `msgpack:"descs"`
	VolumeMeta    *catalog.VolumeMetaDesc `msgpack:"vmeta,omitempty"`
}

// FinishStaticMigration ends the static phase with the source's result.
type FinishStaticMigration struct {
	MigrationID fds.MigrationID `msgpack:"mid"`
	Volume      fds.VolumeID    `msgpack:"vol"`
	Code        fds.Code        `msgpack:"code"`
	Message     string          `msgpack:"msg,omitempty"`
}

// ForwardCatalogUpdate relays a write committed on the source. The stream
// ends with LastForward set on an update with an empty blob name.
type ForwardCatalogUpdate struct {
	MigrationID fds.MigrationID       `msgpack:"mid"`
	Volume      fds.VolumeID          `msgpack:"vol"`
	SeqNum      uint64                `msgpack:"seq"`
	LastForward bool                  `msgpack:"lastfwd"`
	Update      catalog.CatalogUpdate `msgpack:"update"`
}

// IsSentinel reports whether msg is the end of the forwarding stream.
func (msg *ForwardCatalogUpdate) IsSentinel() bool {
	return msg.LastForward && msg.Update.Blob.Name == ""
}

// Kind implements Message.
func (*StartMigration) Kind() Kind { return KindStartMigration }

// Kind implements Message.
func (*InitialBlobFilterSet) Kind() Kind { return KindInitialBlobFilterSet }

// Kind implements Message.
func (*DeltaBlobs) Kind() Kind { return KindDeltaBlobs }

// Kind implements Message.
func (*DeltaBlobDescs) Kind() Kind { return KindDeltaBlobDescs }

// Kind implements Message.
func (*FinishStaticMigration) Kind() Kind { return KindFinishStaticMigration }

// Kind implements Message.
func (*ForwardCatalogUpdate) Kind() Kind { return KindForwardCatalogUpdate }

// Envelope is the wire form of a message.
type Envelope struct {
	Kind Kind               `msgpack:"kind"`
	From fds.NodeUUID       `msgpack:"from"`
	Body msgpack.RawMessage `msgpack:"body"`
}

// Encode wraps msg into an encoded envelope.
func Encode(from fds.NodeUUID, msg Message) ([]byte, error) {
	body, err := msgpack.Marshal(msg)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	data, err := msgpack.Marshal(&Envelope{Kind: msg.Kind(), From: from, Body: body})
	return data, Error.Wrap(err)
}

// Decode unwraps an encoded envelope.
func Decode(data []byte) (from fds.NodeUUID, msg Message, err error) {
	var env Envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return 0, nil, fds.ErrProtocol.Wrap(err)
	}
	switch env.Kind {
	case KindStartMigration:
		msg = &StartMigration{}
	case KindInitialBlobFilterSet:
		msg = &InitialBlobFilterSet{}
	case KindDeltaBlobs:
		msg = &DeltaBlobs{}
	case KindDeltaBlobDescs:
		msg = &DeltaBlobDescs{}
	case KindFinishStaticMigration:
		msg = &FinishStaticMigration{}
	case KindForwardCatalogUpdate:
		msg = &ForwardCatalogUpdate{}
	default:
		return 0, nil, fds.ErrProtocol.New("unknown message kind %d", env.Kind)
	}
	if err := msgpack.Unmarshal(env.Body, msg); err != nil {
		return 0, nil, fds.ErrProtocol.Wrap(err)
	}
	return env.From, msg, nil
}
