package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hkcm91/stickernest-runtime/bridge"
	"github.com/hkcm91/stickernest-runtime/bus"
	"github.com/hkcm91/stickernest-runtime/config"
	"github.com/hkcm91/stickernest-runtime/host"
	"github.com/hkcm91/stickernest-runtime/metrics"
	"github.com/hkcm91/stickernest-runtime/pipeline"
	"github.com/hkcm91/stickernest-runtime/registry"
	"github.com/hkcm91/stickernest-runtime/store"
)

var (
	configFile = flag.String("config", "", "Path to host configuration YAML file")
	addr       = flag.String("addr", "", "HTTP listen address (overrides config)")
	widgetDir  = flag.String("widgets", "", "Widget bundle directory (overrides config)")
	canvasID   = flag.String("canvas", "default", "Initial canvas ID")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *addr != "" {
		cfg.Listen = *addr
	}
	if *widgetDir != "" {
		cfg.WidgetDirs = []string{*widgetDir}
	}

	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	collector := metrics.NewCollector()

	states, err := buildStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize state store: %v", err)
	}
	states = collector.InstrumentStore(states)

	reg, err := buildRegistry(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to build widget registry: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventBus := bus.New(bus.WithLogger(logger), bus.WithEmitHook(collector.RecordBroadcast))
	if err := attachTransport(cfg, eventBus, logger); err != nil {
		log.Fatalf("Failed to attach broadcast transport: %v", err)
	}
	if err := eventBus.Start(ctx); err != nil {
		log.Fatalf("Failed to start broadcast transport: %v", err)
	}

	router := pipeline.NewRouter(
		pipeline.WithLogger(logger),
		pipeline.WithDeliveryHook(collector.RecordDelivery),
	)

	h := host.New(reg,
		host.WithLogger(logger),
		host.WithStore(states),
		host.WithBus(eventBus),
		host.WithRouter(router),
		host.WithAssetBase(cfg.AssetBase),
		host.WithPersistDebounce(cfg.PersistDebounce.Std()),
		host.WithHandlerErrorHook(func(herr *bridge.HandlerError) {
			collector.RecordHandlerError(herr.Hook)
		}),
		host.WithWidgetGauge(collector.AddWidgets),
	)

	if _, err := h.CreateCanvas(*canvasID); err != nil {
		log.Fatalf("Failed to create canvas: %v", err)
	}

	watchers := startWidgetWatchers(cfg, h, logger)
	defer func() {
		for _, w := range watchers {
			w.Stop()
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/ws", host.NewSessionServer(h, nil))
	mux.Handle("/metrics", collector.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.Listen, Handler: mux}
	go func() {
		logger.Info("widget host listening", "addr", cfg.Listen, "widgets", reg.Len())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("Shutting down...")
	cancel()

	if err := server.Shutdown(context.Background()); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if err := h.Shutdown(context.Background()); err != nil {
		log.Printf("Host shutdown error: %v", err)
	}
}

func loadConfig() (*config.HostConfig, error) {
	if *configFile == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(*configFile)
}

func buildStore(cfg *config.HostConfig) (store.StateStore, error) {
	switch cfg.Store.Backend {
	case config.StoreRedis:
		return store.NewRedisStore(context.Background(), store.RedisConfig{
			Address:  cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
			Prefix:   cfg.Store.Redis.Prefix,
			TTL:      cfg.Store.Redis.TTL.Std(),
		})
	case config.StorePostgres:
		return store.NewPGStore(context.Background(), store.PGConfig{URL: cfg.Store.Postgres.DSN})
	default:
		return store.NewMemoryStore(), nil
	}
}

func buildRegistry(cfg *config.HostConfig, logger *slog.Logger) (*registry.Registry, error) {
	var widgets []registry.Widget
	for _, dir := range cfg.WidgetDirs {
		loaded, err := registry.LoadDir(dir, logger)
		if err != nil {
			return nil, err
		}
		widgets = append(widgets, loaded...)
	}
	return registry.New(logger, widgets...), nil
}

// startWidgetWatchers rebuilds the catalog when a widget bundle directory
// changes. Running instances keep their original manifests.
func startWidgetWatchers(cfg *config.HostConfig, h *host.Host, logger *slog.Logger) []*registry.Watcher {
	var watchers []*registry.Watcher
	for _, dir := range cfg.WidgetDirs {
		w := registry.NewWatcher(dir, func() {
			reg, err := buildRegistry(cfg, logger)
			if err != nil {
				logger.Error("failed to rebuild widget registry", "error", err)
				return
			}
			h.ReplaceRegistry(reg)
		}, registry.WithWatchLogger(logger))
		if err := w.Start(); err != nil {
			logger.Error("failed to watch widget directory", "dir", dir, "error", err)
			continue
		}
		watchers = append(watchers, w)
	}
	return watchers
}

func attachTransport(cfg *config.HostConfig, eventBus *bus.Bus, logger *slog.Logger) error {
	switch cfg.Broadcast.Transport {
	case config.TransportNATS:
		opts := []bus.NATSOption{bus.WithNATSLogger(logger)}
		if cfg.Broadcast.NATS.Subject != "" {
			opts = append(opts, bus.WithNATSSubject(cfg.Broadcast.NATS.Subject))
		}
		return eventBus.AttachTransport(bus.NewNATSTransport(cfg.Broadcast.NATS.URL, opts...))
	case config.TransportKafka:
		opts := []bus.KafkaOption{bus.WithKafkaLogger(logger)}
		if cfg.Broadcast.Kafka.Topic != "" {
			opts = append(opts, bus.WithKafkaTopic(cfg.Broadcast.Kafka.Topic))
		}
		return eventBus.AttachTransport(bus.NewKafkaTransport(cfg.Broadcast.Kafka.Brokers, cfg.Broadcast.Kafka.GroupID, opts...))
	default:
		return nil
	}
}
