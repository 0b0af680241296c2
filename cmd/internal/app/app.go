// Package app wires the Relay server runtime: config, logging, the messaging
// core, fanout transport, push dispatch, and HTTP routes.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"relay/cmd/internal/chatapi"
	"relay/cmd/internal/fanout"
	"relay/cmd/internal/gateway"
	"relay/cmd/internal/messaging"
	"relay/cmd/internal/push"
)

// App is the Relay server runtime: it owns the HTTP server wiring plus the
// lifecycle of the store, the bus, and the realtime gateway.
type App struct {
	cfg Config
	log Logger

	store messaging.Store
	bus   fanout.Bus

	dbPool    *pgxpool.Pool
	dbEnabled bool

	chat *chatapi.Handler
	ws   *gateway.Gateway
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	store, dbPool, dbEnabled, err := newStore(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	bus, err := newBus(cfg, log)
	if err != nil {
		store.Close()
		if dbPool != nil {
			dbPool.Close()
		}
		return nil, err
	}

	var notifier messaging.Notifier
	vapid := push.VAPIDConfig{
		PublicKey:  cfg.VAPIDPublicKey,
		PrivateKey: cfg.VAPIDPrivateKey,
		Subject:    cfg.VAPIDSubject,
	}
	if vapid.Enabled() {
		sender, err := push.NewWebPushSender(vapid)
		if err != nil {
			store.Close()
			if dbPool != nil {
				dbPool.Close()
			}
			_ = bus.Close()
			return nil, err
		}
		notifier = push.NewDispatcher(log, sender, cfg.PushSendTimeout, cfg.PushParallelism)
		log.Info("push.enabled")
	} else {
		log.Info("push.disabled.vapid_unset")
	}

	svc := messaging.NewService(log, store, fanout.NewBroadcaster(log, bus), notifier, messaging.Config{
		HistoryCapacity: cfg.HistoryCapacity,
	})

	ws := gateway.NewGateway(log, bus, gateway.Config{
		OriginRequired:   cfg.WSOriginRequired,
		AllowedOrigins:   cfg.WSAllowedOrigins,
		WriteTimeout:     cfg.WSWriteTimeout,
		ReadIdleTimeout:  cfg.WSReadIdle,
		SendQueueSize:    cfg.WSSendQueueSize,
		HeartbeatEvery:   25 * time.Second,
		HeartbeatTimeout: 5 * time.Second,
		RateEvents:       cfg.WSRateEvents,
		RateWindow:       cfg.WSRateWindow,
	})

	return &App{
		cfg:       cfg,
		log:       log,
		store:     store,
		bus:       bus,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		chat:      chatapi.NewHandler(log, svc),
		ws:        ws,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()

	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.chat, a.ws)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled, "nats", a.cfg.NATSURL != "")

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.bus.Close(); err != nil {
		a.log.Error("bus.close.fail", "err", err)
	}
	if err := a.store.Close(); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}
	if a.dbPool != nil {
		a.dbPool.Close()
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newStore decides between Postgres-backed persistence and the in-memory dev
// store. Ownership model: the app owns the pool lifecycle, the store's Close
// is a no-op for the Postgres case.
func newStore(ctx context.Context, cfg Config, log Logger) (messaging.Store, *pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return messaging.NewInMemoryStore(), nil, false, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, err
	}

	store, err := messaging.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, nil, false, err
	}

	log.Info("db.enabled.postgres_store")
	return store, pool, true, nil
}

// newBus decides between the in-process hub and the NATS-backed bus.
func newBus(cfg Config, log Logger) (fanout.Bus, error) {
	if cfg.NATSURL == "" {
		log.Info("bus.inprocess_hub")
		return fanout.NewHub(log), nil
	}

	bus, err := fanout.NewNATSBus(log, cfg.NATSURL)
	if err != nil {
		return nil, err
	}
	log.Info("bus.nats", "url", cfg.NATSURL)
	return bus, nil
}
