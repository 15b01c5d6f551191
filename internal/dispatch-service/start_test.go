package dispatchservice

import (
	"context"
	"testing"
	"time"

	"ride-dispatch/internal/config"
	"ride-dispatch/internal/mylogger"
)

type noopLogger struct{}

func (noopLogger) Debug(string, ...any)               {}
func (noopLogger) Info(string, ...any)                {}
func (noopLogger) Warn(string, ...any)                {}
func (noopLogger) Error(string, error, ...any)        {}
func (l noopLogger) Action(string) mylogger.Logger    { return l }
func (l noopLogger) With(...any) mylogger.Logger      { return l }
func (l noopLogger) WithGroup(string) mylogger.Logger { return l }

// A context that is already done must shut the service down cleanly even
// when Run fails at the same moment, e.g. its backends are unreachable.
func TestExecuteStopsCleanlyOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := &config.Config{
		// port 1 is never listening, connects fail immediately
		DB:       &config.DBconfig{Host: "127.0.0.1", Port: 1, User: "u", Password: "p", Database: "d"},
		RabbitMq: &config.RabbitMqconfig{Host: "127.0.0.1", Port: 1, User: "guest", Password: "guest"},
		Srv:      &config.Serviceconfig{DispatchServicePort: "0"},
		App:      &config.Appconfig{PublicJwtSecret: "s", SweepIntervalSec: 1, BroadcastIntervalSec: 1},
		Log:      &config.Loggerconfig{Level: "INFO"},
	}

	done := make(chan error, 1)
	go func() {
		done <- Execute(ctx, noopLogger{}, cfg)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Execute did not return after its context was cancelled")
	}
}
