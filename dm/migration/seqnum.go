// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package migration

import (
	"sync"

	"github.com/weaviate/sroar"

	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
)

// SeqNumReceiver tracks a numbered message stream delivered in any order.
// Exactly one message carries the last flag; the stream is complete once
// every number from zero to that last one has been seen.
type SeqNumReceiver struct {
	mu          sync.Mutex
	received    *sroar.Bitmap
	max         uint64
	terminal    uint64
	hasTerminal bool
}

// NewSeqNumReceiver returns an empty receiver.
func NewSeqNumReceiver() *SeqNumReceiver {
	return &SeqNumReceiver{received: sroar.NewBitmap()}
}

// Set records seq and reports whether the stream is complete. Duplicates are
// harmless. A number beyond the last one, or a second different last number,
// is a protocol violation.
func (r *SeqNumReceiver) Set(seq uint64, last bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if last {
		if r.hasTerminal && r.terminal != seq {
			return false, fds.ErrProtocol.New("second last sequence number %d, had %d", seq, r.terminal)
		}
		if r.received.GetCardinality() > 0 && r.max > seq {
			return false, fds.ErrProtocol.New("last sequence number %d below received %d", seq, r.max)
		}
		r.terminal, r.hasTerminal = seq, true
	} else if r.hasTerminal && seq > r.terminal {
		return false, fds.ErrProtocol.New("sequence number %d beyond last %d", seq, r.terminal)
	}

	r.received.Set(seq)
	if seq > r.max {
		r.max = seq
	}
	return r.complete(), nil
}

// Complete reports whether every number up to the last one was received.
func (r *SeqNumReceiver) Complete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.complete()
}

func (r *SeqNumReceiver) complete() bool {
	return r.hasTerminal && uint64(r.received.GetCardinality()) == r.terminal+1
}

// Received returns how many distinct numbers were seen.
func (r *SeqNumReceiver) Received() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.received.GetCardinality()
}
