package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ride-dispatch/internal/mylogger"

	"ride-dispatch/internal/dispatch-service/core/domain/model"
	"ride-dispatch/internal/dispatch-service/core/myerrors"
	"ride-dispatch/internal/dispatch-service/core/ports"
)

const persistTimeout = 15 * time.Second

type position struct {
	lat, lng float64
	at       time.Time
}

// Presence is the live view of driver reachability and location. The
// in-memory map is last-write-wins by arrival order; the durable Driver row
// is updated behind the caller's back and is the source of truth for the
// ONLINE/OFFLINE/BUSY mirror.
type Presence struct {
	ctx   context.Context
	mylog mylogger.Logger

	mu        sync.RWMutex
	positions map[string]position

	registry ports.IRegistry
	orders   ports.IOrdersRepo
	drivers  ports.IDriversRepo
	fanout   ports.IFanout
}

func NewPresence(
	ctx context.Context,
	log mylogger.Logger,
	registry ports.IRegistry,
	orders ports.IOrdersRepo,
	drivers ports.IDriversRepo,
	fanout ports.IFanout,
) *Presence {
	return &Presence{
		ctx:       ctx,
		mylog:     log,
		positions: make(map[string]position),
		registry:  registry,
		orders:    orders,
		drivers:   drivers,
		fanout:    fanout,
	}
}

// ReportLocation applies the in-memory update immediately and returns; the
// durable write and the client-facing location push happen off the caller's
// goroutine.
func (p *Presence) ReportLocation(ctx context.Context, driverID string, lat, lng float64) error {
	if driverID == "" {
		return fmt.Errorf("%w: empty driver id", myerrors.ErrValidation)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return fmt.Errorf("%w: coordinates out of range", myerrors.ErrValidation)
	}

	now := time.Now()
	p.mu.Lock()
	p.positions[driverID] = position{lat: lat, lng: lng, at: now}
	p.mu.Unlock()

	go p.persistLocation(driverID, lat, lng, now)
	return nil
}

func (p *Presence) persistLocation(driverID string, lat, lng float64, at time.Time) {
	log := p.mylog.Action("persistLocation")

	ctx, cancel := context.WithTimeout(p.ctx, persistTimeout)
	defer cancel()

	if err := p.drivers.UpdateDriverLocation(ctx, driverID, lat, lng, at); err != nil {
		log.Error("cannot persist driver location", err, "driver_id", driverID)
	}

	order, err := p.orders.FindActiveByDriver(ctx, driverID)
	if err != nil {
		if !errors.Is(err, myerrors.ErrNotFound) {
			log.Error("cannot look up active order", err, "driver_id", driverID)
		}
		return
	}
	p.fanout.DriverLocation(order, lat, lng)
}

func (p *Presence) SetStatus(ctx context.Context, driverID, status string) error {
	if !model.IsValidDriverStatus(status) {
		return fmt.Errorf("%w: unknown driver status %q", myerrors.ErrValidation, status)
	}
	return p.drivers.UpdateDriverStatus(ctx, driverID, status)
}

// EligibleDriversFor returns connected, durably ONLINE, verified drivers
// whose car class ranks at or above the order's. No distance filtering.
func (p *Presence) EligibleDriversFor(ctx context.Context, o model.Order) ([]model.Driver, error) {
	online, err := p.drivers.FindDriversByStatus(ctx, model.DriverOnline)
	if err != nil {
		return nil, err
	}

	var eligible []model.Driver
	for _, d := range online {
		if !d.Verified {
			continue
		}
		if !d.CarClass.CanServe(o.CarClass) {
			continue
		}
		if _, connected := p.registry.LookupDriver(d.ID); !connected {
			continue
		}
		eligible = append(eligible, d)
	}
	return eligible, nil
}

// Snapshot lists currently-tracked drivers with a known position, for the
// periodic live-map broadcast.
func (p *Presence) Snapshot() []ports.DriverPosition {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]ports.DriverPosition, 0, len(p.positions))
	for id, pos := range p.positions {
		out = append(out, ports.DriverPosition{DriverID: id, Latitude: pos.lat, Longitude: pos.lng})
	}
	return out
}

// Forget drops the in-memory position, e.g. after a sweep removed the
// driver's channel.
func (p *Presence) Forget(driverID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.positions, driverID)
}

// MarkOfflineIfIdle is the disconnect rule: a driver mid-order keeps its
// durable status, everyone else goes OFFLINE.
func (p *Presence) MarkOfflineIfIdle(ctx context.Context, driverID string) error {
	_, err := p.orders.FindActiveByDriver(ctx, driverID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, myerrors.ErrNotFound):
		p.Forget(driverID)
		return p.drivers.UpdateDriverStatus(ctx, driverID, model.DriverOffline)
	default:
		return err
	}
}
