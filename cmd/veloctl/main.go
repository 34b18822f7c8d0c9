package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cfgpkg "github.com/tsnbridge/veloctl/internal/config"
	"github.com/tsnbridge/veloctl/internal/eventbus"
	"github.com/tsnbridge/veloctl/internal/health"
	"github.com/tsnbridge/veloctl/internal/httpserver"
	"github.com/tsnbridge/veloctl/internal/logging"
	"github.com/tsnbridge/veloctl/internal/metrics"
	"github.com/tsnbridge/veloctl/internal/registry"
	"github.com/tsnbridge/veloctl/internal/storage/eventlog"

	apipkg "github.com/tsnbridge/veloctl/internal/api"

	"go.uber.org/zap"
)

func main() {
	// 1) load config
	cfg, err := cfgpkg.Load("")
	if err != nil {
		panic(err)
	}

	// 2) init logger
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	log := zap.L()

	// 3) metrics registry
	var appMetrics *metrics.AppMetrics
	var metricsHandler http.Handler
	if cfg.Metrics.Enable {
		promReg := metrics.NewRegistry()
		appMetrics = metrics.NewAppMetrics(promReg)
		metricsHandler = metrics.Handler(promReg)
	}

	// 4) optional audit trail and event bus
	var sinks []registry.EventSink
	var eventlogStore *eventlog.Store
	if cfg.EventLog.Enable {
		eventlogStore, err = eventlog.Open(cfg.EventLog)
		if err != nil {
			log.Warn("eventlog disabled: open failed", zap.Error(err))
		} else {
			defer func() { _ = eventlogStore.Close() }()
			sinks = append(sinks, eventlog.NewSink(eventlogStore, func(err error) {
				log.Warn("eventlog append failed", zap.Error(err))
			}))
		}
	}

	var eventbusClient *eventbus.Client
	if cfg.EventBus.Enable {
		eventbusClient, err = eventbus.NewClient(cfg.EventBus)
		if err != nil {
			log.Warn("eventbus disabled: connect failed", zap.Error(err))
		} else {
			defer func() { _ = eventbusClient.Close() }()
			sinks = append(sinks, eventbus.NewSink(eventbusClient, func(err error) {
				log.Warn("eventbus publish failed", zap.Error(err))
			}))
		}
	}

	// 5) device registry
	regOpts := []registry.Option{
		registry.WithLogger(log),
		registry.WithEventSink(registry.MultiSink(sinks...)),
		registry.WithBaudRate(cfg.Serial.BaudRate),
		registry.WithMetrics(appMetrics),
	}
	if cfg.Serial.AliasFile != "" {
		aliases, err := registry.LoadAliasMap(cfg.Serial.AliasFile)
		if err != nil {
			log.Warn("alias map disabled: load failed", zap.Error(err))
		} else {
			regOpts = append(regOpts, registry.WithAliasMap(aliases))
		}
	}
	reg := registry.New(regOpts...)

	// 6) health checks
	readiness := health.New()
	aggregator := health.NewAggregator(health.NewRegistryChecker(reg))
	if eventlogStore != nil {
		aggregator.AddChecker(health.NewEventLogChecker(eventlogStore))
	}
	if eventbusClient != nil {
		aggregator.AddChecker(health.NewEventBusChecker(eventbusClient))
	}

	// 7) HTTP server
	httpSrv := httpserver.New(cfg.HTTP, cfg.Metrics.Path, metricsHandler, readiness.Ready)
	health.RegisterHTTPRoutes(httpSrv.Engine, aggregator)

	deviceHandler := apipkg.NewDeviceHandler(reg, cfg.Serial.RequestTimeout, log)
	apiGroup := httpSrv.Engine.Group("/api/devices")
	apiGroup.GET("", deviceHandler.ListDevices)
	apiGroup.GET("/:path", deviceHandler.GetDevice)
	apiGroup.GET("/:path/yang", deviceHandler.YANGGet)
	apiGroup.POST("/:path/yang", deviceHandler.YANGSet)

	// 8) start registry autoscan and HTTP server in parallel
	reg.StartAutoScan(cfg.Serial.ScanInterval)
	readiness.SetRegistryReady(true)

	go func() {
		if err := httpSrv.Start(); err != nil {
			log.Error("http server error", zap.Error(err))
		}
	}()

	// 9) wait for signal, shut down gracefully
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	reg.Shutdown()
}
