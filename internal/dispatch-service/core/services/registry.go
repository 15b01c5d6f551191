package services

import (
	"context"
	"sync"

	"ride-dispatch/internal/mylogger"

	"ride-dispatch/internal/dispatch-service/core/ports"
)

type driverEntry struct {
	userID string
	ch     ports.Channel
}

// Registry owns the two live-connection maps. They are the only mutable
// shared state in the process; every access goes through the mutex and the
// maps are never handed out.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]driverEntry
	clients map[string]ports.Channel

	mylog    mylogger.Logger
	presence ports.IPresence

	// OnDriverRegistered is invoked after a driver channel lands in the
	// map, used for the pending-order catch-up. Set once at wiring time.
	OnDriverRegistered func(ctx context.Context, driverID string)
}

func NewRegistry(log mylogger.Logger) *Registry {
	return &Registry{
		drivers: make(map[string]driverEntry),
		clients: make(map[string]ports.Channel),
		mylog:   log,
	}
}

// SetPresence breaks the registry<->presence construction cycle.
func (r *Registry) SetPresence(p ports.IPresence) {
	r.presence = p
}

// RegisterDriver replaces any prior entry for the driver id. The superseded
// channel is not closed: it may belong to a legitimate concurrent session
// and will be collected by the stale sweep once it actually dies.
func (r *Registry) RegisterDriver(ctx context.Context, driverID, userID string, ch ports.Channel) {
	r.mu.Lock()
	if old, ok := r.drivers[driverID]; ok && old.ch != ch {
		r.mylog.Action("RegisterDriver").Warn("superseding live driver channel", "driver_id", driverID)
	}
	r.drivers[driverID] = driverEntry{userID: userID, ch: ch}
	r.mu.Unlock()

	if r.OnDriverRegistered != nil {
		go r.OnDriverRegistered(ctx, driverID)
	}
}

func (r *Registry) RegisterClient(userID string, ch ports.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[userID] = ch
}

// UnregisterByChannel removes whichever entry owns ch. A driver with no
// active order goes durably OFFLINE; a driver mid-trip keeps its status so
// the order survives a network blip.
func (r *Registry) UnregisterByChannel(ctx context.Context, ch ports.Channel) {
	var goneDriver string

	r.mu.Lock()
	for id, entry := range r.drivers {
		if entry.ch == ch {
			delete(r.drivers, id)
			goneDriver = id
			break
		}
	}
	if goneDriver == "" {
		for id, c := range r.clients {
			if c == ch {
				delete(r.clients, id)
				break
			}
		}
	}
	r.mu.Unlock()

	if goneDriver != "" && r.presence != nil {
		if err := r.presence.MarkOfflineIfIdle(ctx, goneDriver); err != nil {
			r.mylog.Action("UnregisterByChannel").Error("cannot mark driver offline", err, "driver_id", goneDriver)
		}
	}
}

func (r *Registry) LookupDriver(driverID string) (ports.Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.drivers[driverID]
	if !ok {
		return nil, false
	}
	return entry.ch, true
}

func (r *Registry) LookupClient(userID string) (ports.Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.clients[userID]
	return ch, ok
}

func (r *Registry) ConnectedDriverIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.drivers))
	for id := range r.drivers {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) ConnectedClientIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return ids
}

// StaleSweep drops entries whose channel reports not-connected. It converges
// with the explicit disconnect path: both end with the same map state and
// the same durable-status rule.
func (r *Registry) StaleSweep(ctx context.Context) {
	r.mu.Lock()
	var goneDrivers []string
	for id, entry := range r.drivers {
		if !entry.ch.IsConnected() {
			delete(r.drivers, id)
			goneDrivers = append(goneDrivers, id)
		}
	}
	for id, ch := range r.clients {
		if !ch.IsConnected() {
			delete(r.clients, id)
		}
	}
	r.mu.Unlock()

	log := r.mylog.Action("StaleSweep")
	for _, id := range goneDrivers {
		log.Info("swept stale driver channel", "driver_id", id)
		if r.presence != nil {
			if err := r.presence.MarkOfflineIfIdle(ctx, id); err != nil {
				log.Error("cannot mark driver offline", err, "driver_id", id)
			}
		}
	}
}
