// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package migration

import (
	"context"
	"sync"

	"github.com/zeebo/errs"

	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
)

// Error is the migration error class.
var Error = errs.Class("migration")

// Transport delivers a message to a node and returns its response. A nil
// error is a successful response.
type Transport interface {
	Send(ctx context.Context, to fds.NodeUUID, msg Message) error
}

// Handler processes messages received by a node.
type Handler interface {
	Handle(ctx context.Context, from fds.NodeUUID, msg Message) error
}

// Interceptor inspects a message before delivery. Returning deliver false
// silently loses the message; a non-nil error is returned to the sender
// instead of delivering.
type Interceptor func(ctx context.Context, from, to fds.NodeUUID, msg Message) (deliver bool, err error)

// LocalNetwork connects in-process nodes. Every message is round-tripped
// through its wire encoding, and errors travel as codes.
type LocalNetwork struct {
	mu          sync.RWMutex
	handlers    map[fds.NodeUUID]Handler
	interceptor Interceptor
}

// NewLocalNetwork returns an empty network.
func NewLocalNetwork() *LocalNetwork {
	return &LocalNetwork{handlers: make(map[fds.NodeUUID]Handler)}
}

// Register attaches handler as node id.
func (network *LocalNetwork) Register(id fds.NodeUUID, handler Handler) {
	network.mu.Lock()
	defer network.mu.Unlock()
	network.handlers[id] = handler
}

// Unregister detaches node id.
func (network *LocalNetwork) Unregister(id fds.NodeUUID) {
	network.mu.Lock()
	defer network.mu.Unlock()
	delete(network.handlers, id)
}

// SetInterceptor installs fn for every subsequent message. nil removes it.
func (network *LocalNetwork) SetInterceptor(fn Interceptor) {
	network.mu.Lock()
	defer network.mu.Unlock()
	network.interceptor = fn
}

// Transport returns the transport used by node from.
func (network *LocalNetwork) Transport(from fds.NodeUUID) Transport {
	return &localTransport{network: network, from: from}
}

type localTransport struct {
	network *LocalNetwork
	from    fds.NodeUUID
}

// Send implements Transport.
func (transport *localTransport) Send(ctx context.Context, to fds.NodeUUID, msg Message) (err error) {
	defer mon.Task()(&ctx)(&err)

	network := transport.network
	network.mu.RLock()
	handler, ok := network.handlers[to]
	interceptor := network.interceptor
	network.mu.RUnlock()

	if interceptor != nil {
		deliver, err := interceptor(ctx, transport.from, to, msg)
		if err != nil {
			return err
		}
		if !deliver {
			return nil
		}
	}
	if !ok {
		return fds.ErrNotFound.New("node %v", to)
	}
	if err := ctx.Err(); err != nil {
		return fds.ErrTimeout.Wrap(err)
	}

	data, err := Encode(transport.from, msg)
	if err != nil {
		return err
	}
	from, decoded, err := Decode(data)
	if err != nil {
		return err
	}

	if err := handler.Handle(ctx, from, decoded); err != nil {
		code := fds.CodeOf(err)
		return code.Err("%s: %s", to, err.Error())
	}
	return nil
}
