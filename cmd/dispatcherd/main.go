package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/modemstack/smsdispatch/internal/anomaly"
	"github.com/modemstack/smsdispatch/internal/carrier"
	"github.com/modemstack/smsdispatch/internal/config"
	"github.com/modemstack/smsdispatch/internal/dispatch"
	"github.com/modemstack/smsdispatch/internal/encoding"
	"github.com/modemstack/smsdispatch/internal/httpserver"
	"github.com/modemstack/smsdispatch/internal/logging"
	"github.com/modemstack/smsdispatch/internal/radio"
	"github.com/modemstack/smsdispatch/internal/sim"
	"github.com/modemstack/smsdispatch/internal/stats"
	"github.com/modemstack/smsdispatch/internal/store"
	"github.com/modemstack/smsdispatch/internal/usage"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logLevel := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		logLevel = slog.LevelDebug
	}
	baseHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(logging.NewContextHandler(baseHandler)))
	slog.Info("logging initialized", "level", logLevel.String())

	msgStore, dbpool, err := buildStore(ctx, cfg.Store)
	if err != nil {
		log.Fatalf("failed to initialize message store: %v", err)
	}
	if dbpool != nil {
		defer dbpool.Close()
	}

	radioChannel, closeRadio, err := buildRadio(ctx, cfg.Radio)
	if err != nil {
		log.Fatalf("failed to initialize radio channel: %v", err)
	}
	defer closeRadio()

	// The HTTP server doubles as the consent surface but needs the
	// dispatcher to resolve prompts. The closure is safe: no prompt can be
	// raised before the event loop starts, which is after server is set.
	var server *httpserver.Server
	consent := dispatch.ConsentFunc(func(req dispatch.ConfirmationRequest) {
		server.ConsentSurface().RequestConfirmation(req)
	})

	dispatcher := dispatch.New(dispatch.Config{
		SubID:              cfg.SubID,
		MaxSendRetries:     cfg.Dispatch.MaxSendRetries,
		SendRetryDelay:     cfg.Dispatch.SendRetryDelay,
		CarrierTimeout:     cfg.Dispatch.CarrierTimeout,
		PendingQueueLimit:  cfg.Dispatch.PendingQueueLimit,
		EventQueueDepth:    cfg.Dispatch.EventQueueDepth,
		MessageRefViaModem: cfg.Dispatch.MessageRefViaModem,
		CountryPolicy:      countryPolicy(cfg.Dispatch.CountryPolicy),
	}, dispatch.Dependencies{
		Radio:   radioChannel,
		Carrier: carrier.NoService{},
		Encoder: encoding.NewDefault(),
		Store:   msgStore,
		SIMRefs: sim.NewMemoryRefStore(),
		SubRefs: sim.NewMemoryRefStore(),
		Usage: usage.NewDefaultMonitor(usage.VolumeConfig{
			MessagesPerSecond: cfg.Usage.MessagesPerSecond,
			Burst:             cfg.Usage.Burst,
		}),
		Consent:   consent,
		Device:    dispatch.NewStaticDeviceState(),
		Apps:      dispatch.StaticApps{},
		Anomalies: anomaly.LogReporter{},
		Stats:     stats.LogSink{},
	})

	server = httpserver.NewServer(cfg.HTTP, dispatcher)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := dispatcher.Run(gctx)
		if err != nil && err != context.Canceled {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return server.ListenAndServe()
	})
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			slog.Info("shutdown signal received")
		case <-gctx.Done():
		}
		server.Shutdown(15 * time.Second)
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("daemon exited with error: %v", err)
	}
	slog.Info("daemon stopped")
}

func buildStore(ctx context.Context, cfg config.StoreConfig) (store.MessageStore, *pgxpool.Pool, error) {
	switch cfg.Backend {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("STORE_BACKEND=postgres requires DATABASE_URL")
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping database: %w", err)
		}
		pg := store.NewPG(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		slog.Info("postgres message store initialized")
		return pg, pool, nil
	default:
		slog.Info("in-memory message store initialized")
		return store.NewMemory(), nil, nil
	}
}

func buildRadio(ctx context.Context, cfg config.RadioConfig) (radio.Channel, func(), error) {
	switch cfg.Backend {
	case "smpp":
		ch, err := radio.NewSMPPChannel(radio.SMPPConfig{
			Host:           cfg.SMPPHost,
			Port:           cfg.SMPPPort,
			SystemID:       cfg.SMPPSystemID,
			Password:       cfg.SMPPPassword,
			SystemType:     cfg.SMPPSystemType,
			SourceAddr:     cfg.SMPPSourceAddr,
			EnquireLink:    cfg.SMPPEnquireLink,
			RequestTimeout: cfg.SMPPRequestTimeout,
			WindowSize:     cfg.SMPPWindowSize,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := ch.Connect(ctx); err != nil {
			return nil, nil, err
		}
		return ch, func() { _ = ch.Close() }, nil
	default:
		return radio.NewLoopback(), func() {}, nil
	}
}

func countryPolicy(s string) dispatch.CountryPolicy {
	switch s {
	case "network":
		return dispatch.CountryNetwork
	case "both":
		return dispatch.CountryBoth
	default:
		return dispatch.CountrySIM
	}
}
