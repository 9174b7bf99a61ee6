package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/keytrack/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the JSON API until the context is cancelled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireProvider(); err != nil {
		return err
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger), server.Logging(r.logger))
	router.Handler(server.NewAPI(r.provider, r.engine, r.logger))

	httpServer := server.New(addr, router)

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Info("serving API", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	r.logger.Info("shutting down API")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
