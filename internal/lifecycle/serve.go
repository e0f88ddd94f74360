package lifecycle

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// Drainer is implemented by the indexing coordinator. Stop asks the current
// background job (if any) to cancel at its next suspension point and blocks
// until it does, or ctx expires.
type Drainer interface {
	Stop(ctx context.Context) error
}

// Server is implemented by the HTTP request surface (C10); it owns the
// actual net/http.Server / gin engine, kept decoupled from lifecycle so this
// package has no HTTP framework dependency.
type Server interface {
	Serve(ln net.Listener) error
	Shutdown(ctx context.Context) error
}

// Run serves srv until a SIGINT/SIGTERM arrives or ctx is canceled, then
// drains in-flight work and shuts the server down within shutdownTimeout.
// Generalizes the original MCPServer.Serve signal-handling shape (install
// SIGINT/SIGTERM, run the transport in a goroutine, select on signal/error/
// ctx.Done, cancel and drain on the way out) from an MCP-stdio transport to
// this repo's HTTP one.
func Run(ctx context.Context, srv Server, ln net.Listener, drainer Drainer, shutdownTimeout time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("serving")
		if err := srv.Serve(ln); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-sigCh:
		log.Info().Msg("shutdown signal received, draining")
	case err := <-errCh:
		cancel()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if drainer != nil {
		if err := drainer.Stop(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("indexing job did not drain before shutdown timeout")
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server shutdown error")
	}
	return nil
}
