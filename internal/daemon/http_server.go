package daemon

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"git.home.luguber.info/inful/matrixci/internal/logfields"
	"git.home.luguber.info/inful/matrixci/internal/metrics"
)

// Handler returns the daemon's HTTP routes.
func (d *Daemon) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(d.opts.Registry))
	mux.HandleFunc("/healthz", d.handleHealth)
	return withMiddleware(slog.Default(), mux)
}

// startHTTP binds the listener synchronously so port conflicts fail startup.
func (d *Daemon) startHTTP() error {
	ln, err := net.Listen("tcp", d.opts.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", d.opts.Listen, err)
	}
	d.server = &http.Server{
		Handler:           d.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	d.addr = ln.Addr().String()
	slog.Info("Daemon HTTP server listening", slog.String("addr", d.addr))
	go func() {
		if err := d.server.Serve(ln); err != nil && !stdErrors.Is(err, http.ErrServerClosed) {
			slog.Error("Daemon HTTP server failed", logfields.Error(err))
		}
	}()
	return nil
}

func (d *Daemon) stopHTTP(ctx context.Context) error {
	if d.server == nil {
		return nil
	}
	return d.server.Shutdown(ctx)
}
