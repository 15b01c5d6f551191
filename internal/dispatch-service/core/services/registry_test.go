package services

import (
	"context"
	"testing"

	"ride-dispatch/internal/dispatch-service/core/domain/model"
)

func TestRegisterDriverSupersedesChannel(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(ctx)

	first := newFakeChannel()
	second := newFakeChannel()
	env.registry.RegisterDriver(ctx, "d1", "u_d1", first)
	env.registry.RegisterDriver(ctx, "d1", "u_d1", second)

	ch, ok := env.registry.LookupDriver("d1")
	if !ok || ch != second {
		t.Fatal("lookup must return the latest channel")
	}
	// the superseded channel is left for the sweep, not closed here
	if !first.IsConnected() {
		t.Fatal("superseded channel must not be closed on registration")
	}
	if ids := env.registry.ConnectedDriverIDs(); len(ids) != 1 {
		t.Fatalf("connected drivers = %v, want one entry", ids)
	}
}

func TestUnregisterIdleDriverGoesOffline(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(ctx)

	env.drivers.put(onlineDriver("d1", model.Economy))

	ch := newFakeChannel()
	env.registry.RegisterDriver(ctx, "d1", "u_d1", ch)
	if err := env.presence.ReportLocation(ctx, "d1", 51.1, 71.4); err != nil {
		t.Fatalf("ReportLocation: %v", err)
	}

	env.registry.UnregisterByChannel(ctx, ch)

	if _, ok := env.registry.LookupDriver("d1"); ok {
		t.Fatal("driver still registered after unregister")
	}
	if got := env.drivers.get("d1").Status; got != model.DriverOffline {
		t.Fatalf("driver status = %s, want OFFLINE", got)
	}
	if len(env.presence.Snapshot()) != 0 {
		t.Fatal("position not forgotten after disconnect")
	}
}

func TestUnregisterMidTripDriverKeepsStatus(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(ctx)

	d := onlineDriver("d1", model.Economy)
	d.Status = model.DriverBusy
	env.drivers.put(d)

	o := pendingOrder("o1", "c1", model.Economy)
	o.Status = model.StatusInProgress
	o.DriverID = "d1"
	env.orders.put(o)

	ch := newFakeChannel()
	env.registry.RegisterDriver(ctx, "d1", "u_d1", ch)
	env.registry.UnregisterByChannel(ctx, ch)

	if got := env.drivers.get("d1").Status; got != model.DriverBusy {
		t.Fatalf("driver status = %s, want BUSY preserved through a network blip", got)
	}
}

func TestUnregisterClientChannel(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(ctx)

	ch := newFakeChannel()
	env.registry.RegisterClient("c1", ch)
	env.registry.UnregisterByChannel(ctx, ch)

	if _, ok := env.registry.LookupClient("c1"); ok {
		t.Fatal("client still registered after unregister")
	}
}

func TestStaleSweepCollectsDeadChannels(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(ctx)

	env.drivers.put(onlineDriver("dead", model.Economy))
	env.drivers.put(onlineDriver("live", model.Economy))

	deadCh := newFakeChannel()
	liveCh := newFakeChannel()
	env.registry.RegisterDriver(ctx, "dead", "u_dead", deadCh)
	env.registry.RegisterDriver(ctx, "live", "u_live", liveCh)

	deadClient := newFakeChannel()
	env.registry.RegisterClient("c1", deadClient)

	deadCh.Close()
	deadClient.Close()

	env.registry.StaleSweep(ctx)

	if _, ok := env.registry.LookupDriver("dead"); ok {
		t.Fatal("dead driver channel survived the sweep")
	}
	if _, ok := env.registry.LookupDriver("live"); !ok {
		t.Fatal("live driver channel swept")
	}
	if _, ok := env.registry.LookupClient("c1"); ok {
		t.Fatal("dead client channel survived the sweep")
	}
	if got := env.drivers.get("dead").Status; got != model.DriverOffline {
		t.Fatalf("swept driver status = %s, want OFFLINE", got)
	}
	if got := env.drivers.get("live").Status; got != model.DriverOnline {
		t.Fatalf("live driver status = %s, want ONLINE", got)
	}
}
