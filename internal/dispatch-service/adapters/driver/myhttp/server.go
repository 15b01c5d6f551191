package myhttp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"ride-dispatch/internal/config"
	"ride-dispatch/internal/mylogger"

	"ride-dispatch/internal/dispatch-service/adapters/driven/bm"
	"ride-dispatch/internal/dispatch-service/adapters/driven/consumer"
	"ride-dispatch/internal/dispatch-service/adapters/driven/db"
	"ride-dispatch/internal/dispatch-service/adapters/driver/myhttp/handle"
	"ride-dispatch/internal/dispatch-service/adapters/driver/myhttp/middleware"
	"ride-dispatch/internal/dispatch-service/adapters/driver/myhttp/ws"
	"ride-dispatch/internal/dispatch-service/core/ports"
	"ride-dispatch/internal/dispatch-service/core/services"
)

var ErrServerClosed = errors.New("server closed")

const waitTime = 10

type Server struct {
	mux    *http.ServeMux
	cfg    *config.Config
	srv    *http.Server
	mylog  mylogger.Logger
	db     *db.DB
	mb     ports.IDispatchBroker
	ctx    context.Context
	appCtx context.Context
	mu     sync.Mutex
	wg     sync.WaitGroup

	// workCtx drives the background workers tracked by wg (timers, broker
	// consumer). Stop cancels it before waiting on them; appCtx lives for
	// the whole process and must not be used for anything Stop waits on.
	workCtx    context.Context
	workCancel context.CancelFunc

	registry *services.Registry
	presence *services.Presence
}

func NewServer(ctx, appCtx context.Context, mylog mylogger.Logger, cfg *config.Config) *Server {
	workCtx, workCancel := context.WithCancel(appCtx)
	return &Server{
		ctx:        ctx,
		appCtx:     appCtx,
		cfg:        cfg,
		mylog:      mylog,
		mux:        http.NewServeMux(),
		workCtx:    workCtx,
		workCancel: workCancel,
	}
}

// Run initializes connections and routes and starts listening. It returns
// when the server stops.
func (s *Server) Run() error {
	mylog := s.mylog.Action("server_started")

	database, err := db.New(s.ctx, s.cfg.DB, mylog)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	s.db = database
	mylog.Info("Successful database connection")

	mb, err := bm.New(s.appCtx, *s.cfg.RabbitMq, s.mylog)
	if err != nil {
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	s.mb = mb
	mylog.Info("Successful message broker connection")

	if err := s.Configure(); err != nil {
		return fmt.Errorf("failed to configure service: %w", err)
	}

	s.mu.Lock()
	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%v", s.cfg.Srv.DispatchServicePort),
		Handler: s.mux,
	}
	s.mu.Unlock()

	mylog = mylog.WithGroup("details").With("port", s.cfg.Srv.DispatchServicePort)
	mylog.Info("server is running")
	return s.startHTTPServer()
}

// Stop provides a programmatic shutdown. Accepts a context for timeout control.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mylog.Info("Shutting down HTTP server...")

	s.workCancel()
	s.wg.Wait()

	if s.srv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, waitTime*time.Second)
		defer cancel()

		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.mylog.Error("Failed to shut down HTTP server gracefully", err)
			return fmt.Errorf("http server shutdown: %w", err)
		}
	}

	if s.mb != nil {
		if err := s.mb.Close(); err != nil {
			s.mylog.Error("Failed to close message broker", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.mylog.Error("Failed to close database", err)
			return fmt.Errorf("db close: %w", err)
		}
		s.mylog.Info("Database closed")
	}

	s.mylog.Info("HTTP server shut down gracefully")
	return nil
}

func (s *Server) startHTTPServer() error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		} else {
			errCh <- nil
		}
	}()

	select {
	case <-s.ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Configure wires repositories, core services, timers and routes.
func (s *Server) Configure() error {
	// repositories
	ordersRepo := db.NewOrdersRepo(s.db)
	driversRepo := db.NewDriversRepo(s.db)
	paymentsRepo := db.NewPaymentsRepo(s.db)
	reviewsRepo := db.NewReviewsRepo(s.db)

	// core services
	registry := services.NewRegistry(s.mylog)
	fanout := services.NewFanout(s.mylog, registry, s.mb)
	presence := services.NewPresence(s.appCtx, s.mylog, registry, ordersRepo, driversRepo, fanout)
	registry.SetPresence(presence)

	ordersService := services.NewOrdersService(s.appCtx, s.mylog, ordersRepo, driversRepo, paymentsRepo, fanout)
	matcher := services.NewMatcher(s.mylog, ordersRepo, ordersService, presence, driversRepo, fanout)
	reviewsService := services.NewReviewsService(s.mylog, ordersRepo, reviewsRepo)

	registry.OnDriverRegistered = matcher.CatchUp
	ordersService.OnOrderAbandoned = matcher.Abandon

	s.registry = registry
	s.presence = presence

	// broker consumer: order-creation collaborator -> matcher
	orderCreated := consumer.New(s.workCtx, &s.wg, s.mylog, s.mb, matcher)
	if err := orderCreated.Run(); err != nil {
		return fmt.Errorf("failed to start order-created consumer: %w", err)
	}

	s.startTimers(fanout)

	// handlers
	ordersHandler := handle.NewOrdersHandler(ordersService, matcher, reviewsService, s.mylog)
	eventHandler := ws.NewEventHandler(s.appCtx, s.mylog, s.cfg.App.PublicJwtSecret, presence, matcher, ordersService)
	dispatcher := ws.NewDispatcher(s.appCtx, s.mylog, registry, eventHandler)
	authMiddleware := middleware.NewAuthMiddleware(s.cfg.App.PublicJwtSecret)

	// routes
	s.mux.Handle("GET /orders/available", authMiddleware.Wrap(ordersHandler.AvailableOrders()))
	s.mux.Handle("GET /orders/active", authMiddleware.Wrap(ordersHandler.ActiveOrder()))
	s.mux.Handle("POST /orders/{order_id}/accept", authMiddleware.Wrap(ordersHandler.AcceptOrder()))
	s.mux.Handle("POST /orders/{order_id}/arrived", authMiddleware.Wrap(ordersHandler.ArriveOrder()))
	s.mux.Handle("POST /orders/{order_id}/start", authMiddleware.Wrap(ordersHandler.StartOrder()))
	s.mux.Handle("POST /orders/{order_id}/complete", authMiddleware.Wrap(ordersHandler.CompleteOrder()))
	s.mux.Handle("POST /orders/{order_id}/cancel", authMiddleware.Wrap(ordersHandler.CancelOrder()))
	s.mux.Handle("POST /orders/{order_id}/review", authMiddleware.Wrap(ordersHandler.SubmitReview()))

	// websocket route: auth happens in-band on the first frame
	s.mux.Handle("/ws", dispatcher.WsHandler())

	return nil
}

// startTimers runs the stale-channel sweep and the live-map broadcast.
// Both converge within one period; neither promises ordering against
// in-flight connection events.
func (s *Server) startTimers(fanout ports.IFanout) {
	sweepEvery := time.Duration(s.cfg.App.SweepIntervalSec) * time.Second
	broadcastEvery := time.Duration(s.cfg.App.BroadcastIntervalSec) * time.Second

	s.wg.Add(2)

	go func() {
		defer s.wg.Done()
		t := time.NewTicker(sweepEvery)
		defer t.Stop()
		for {
			select {
			case <-s.workCtx.Done():
				return
			case <-t.C:
				s.registry.StaleSweep(s.workCtx)
			}
		}
	}()

	go func() {
		defer s.wg.Done()
		t := time.NewTicker(broadcastEvery)
		defer t.Stop()
		for {
			select {
			case <-s.workCtx.Done():
				return
			case <-t.C:
				if snapshot := s.presence.Snapshot(); len(snapshot) > 0 {
					fanout.BroadcastDriverLocations(snapshot)
				}
			}
		}
	}()
}
