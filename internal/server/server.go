// Package server owns the HTTP listener lifecycle: it builds the
// *http.Server from configuration, logs startup and shutdown, and drains
// in-flight requests when the run context is cancelled.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/chemvision-backend/internal/config"
)

// New builds an *http.Server for handler using the configured port and
// timeouts.
func New(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
}

// Info is reported in the lifecycle log lines.
type Info struct {
	Version     string
	Environment string
}

// Run serves srv until ctx is cancelled or the listener fails, then shuts
// down gracefully within shutdownTimeout. A clean shutdown returns nil.
func Run(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, info Info) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	return Serve(ctx, srv, ln, shutdownTimeout, info)
}

// Serve is Run on an existing listener.
func Serve(ctx context.Context, srv *http.Server, ln net.Listener, shutdownTimeout time.Duration, info Info) error {
	lg := zerolog.Ctx(ctx)

	lg.Info().
		Str("version", info.Version).
		Str("environment", info.Environment).
		Str("addr", ln.Addr().String()).
		Msg("application_startup")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		lg.Info().Err(err).Msg("application_shutdown")
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) && err == nil {
		err = serveErr
	}
	if err != nil {
		lg.Error().Err(err).Msg("graceful shutdown failed")
	}
	lg.Info().Msg("application_shutdown")
	return err
}
