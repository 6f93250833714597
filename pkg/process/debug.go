// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package process

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/spacemonkeygo/monkit/v3/present"
	"go.uber.org/zap"
)

// DebugHandler serves the monkit registry under /mon/ and a health check.
func DebugHandler(registry *monkit.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/mon/", http.StripPrefix("/mon", present.HTTP(registry)))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintln(w, "OK")
	})
	return mux
}

// ServeDebug serves DebugHandler on addr until ctx is done.
func ServeDebug(ctx context.Context, log *zap.Logger, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return Error.Wrap(err)
	}
	log.Debug("debug server listening", zap.Stringer("addr", listener.Addr()))

	server := &http.Server{Handler: DebugHandler(monkit.Default)}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return Error.Wrap(err)
	}
	return nil
}
