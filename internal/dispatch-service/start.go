package dispatchservice

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"ride-dispatch/internal/config"
	"ride-dispatch/internal/mylogger"

	"ride-dispatch/internal/dispatch-service/adapters/driver/myhttp"
)

func Execute(ctx context.Context, mylog mylogger.Logger, cfg *config.Config) error {
	newCtx, stop := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := myhttp.NewServer(newCtx, ctx, mylog, cfg)

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- server.Run()
	}()

	select {
	case <-newCtx.Done():
		mylog.Action("shutdown_signal_received").Info("Shutdown signal received")
		return server.Stop(context.Background())
	case err := <-runErrCh:
		// Run can lose the select race against an already-fired signal, the
		// shutdown path still has to run.
		if newCtx.Err() != nil {
			mylog.Action("shutdown_signal_received").Info("Shutdown signal received")
			return server.Stop(context.Background())
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			mylog.Action("dispatch_service_failed").Error("Server failed unexpectedly", err)
			return err
		}
		mylog.Action("server_stopped").Info("Server exited normally")
		return nil
	}
}
