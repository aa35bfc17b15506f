package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zbgw/gatewayd/internal/api"
	"github.com/zbgw/gatewayd/internal/bootstrap"
	"github.com/zbgw/gatewayd/internal/eventbus"
	"github.com/zbgw/gatewayd/internal/gatewaystate"
	"github.com/zbgw/gatewayd/internal/jobqueue"
	"github.com/zbgw/gatewayd/internal/registry"
	"github.com/zbgw/gatewayd/internal/storage"
	"github.com/zbgw/gatewayd/internal/storage/configrepo"
	"github.com/zbgw/gatewayd/internal/storage/devicerepo"
	"github.com/zbgw/gatewayd/internal/system"
	"github.com/zbgw/gatewayd/internal/usecases"
	"github.com/zbgw/gatewayd/internal/wifimgr"
	"github.com/zbgw/gatewayd/internal/wsbroadcast"
	"github.com/zbgw/gatewayd/internal/zigbee"

	_ "github.com/zbgw/gatewayd/docs"
)

// @title           Zigbee Gateway API
// @version         1.0
// @description     REST and WebSocket API for the Zigbee-to-IP gateway core runtime

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	dbPath := flag.String("db", "", "path to gateway database file (default: ~/.config/zigbee-gw/gateway.db)")
	serialPort := flag.String("port", "/dev/ttyUSB0", "path to the Zigbee radio's serial port")
	httpAddr := flag.String("addr", ":8080", "HTTP/WebSocket listen address")
	defaultSSID := flag.String("default-ssid", "", "compiled-in Wi-Fi SSID used when no credentials are persisted")
	defaultPassword := flag.String("default-password", "", "compiled-in Wi-Fi password used when no credentials are persisted")
	configPath := flag.String("config", "", "optional path to a gatewayd.yaml bootstrap config; CLI flags take precedence over its values")
	flag.Parse()

	if *configPath != "" {
		cfg, ok, err := bootstrap.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load bootstrap config")
		}
		if ok {
			set := map[string]bool{}
			flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
			if cfg.DBPath != "" && !set["db"] {
				*dbPath = cfg.DBPath
			}
			if cfg.SerialPort != "" && !set["port"] {
				*serialPort = cfg.SerialPort
			}
			if cfg.HTTPAddr != "" && !set["addr"] {
				*httpAddr = cfg.HTTPAddr
			}
			if cfg.DefaultSSID != "" && !set["default-ssid"] {
				*defaultSSID = cfg.DefaultSSID
			}
			if cfg.DefaultPassword != "" && !set["default-password"] {
				*defaultPassword = cfg.DefaultPassword
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, err := storage.Open(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open gateway database")
	}
	defer func() {
		if err := kv.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close gateway database")
		}
	}()

	for _, ns := range []string{storage.NamespaceStorage, storage.NamespaceZbData, storage.NamespaceZbFct} {
		if err := kv.MigrateToCurrent(ctx, ns); err != nil {
			log.Fatal().Err(err).Str("namespace", ns).Msg("failed to migrate storage namespace")
		}
	}

	cfgRepo := configrepo.New(kv)
	devRepo := devicerepo.New(kv)

	bus := eventbus.New()
	errRing := eventbus.NewErrorRing()

	reg := registry.New(ctx, devRepo, bus)
	if err := reg.Init(); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize device registry")
	}

	state := gatewaystate.New(gatewaystate.NewSteadyClock())
	state.AttachRegistry(bus)

	jobs := jobqueue.New(gatewaystate.NewSteadyClock(), bus)

	wifiPort := wifimgr.NewNullPort()
	wifiMgr := wifimgr.New(wifiPort, cfgRepo, state, *defaultSSID, *defaultPassword)
	go func() {
		if err := wifiMgr.Run(ctx); err != nil {
			log.Warn().Err(err).Msg("wifi manager failed to bring up a connection")
		}
	}()

	var zb usecases.ZigbeeOps
	adapter, err := zigbee.NewAdapter(*serialPort, reg, state, bus)
	if err != nil {
		log.Warn().Err(err).Str("port", *serialPort).Msg("zigbee radio unavailable, running in limited mode")
		zb = zigbee.NewNullAdapter()
	} else {
		zb = adapter
		defer adapter.Close()
	}

	var rebootCh = make(chan struct{}, 1)
	sysSvc := system.NewService(kv, cfgRepo, devRepo, func() {
		select {
		case rebootCh <- struct{}{}:
		default:
		}
	})

	broadcaster := wsbroadcast.New()
	broadcaster.AttachEvents(bus)

	svc := &usecases.Service{
		Registry:      reg,
		State:         state,
		Jobs:          jobs,
		Wifi:          wifiMgr,
		Zigbee:        zb,
		System:        sysSvc,
		Errors:        errRing,
		Telemetry:     system.NewCollector(),
		SchemaVersion: func() int32 {
			v, err := kv.SchemaVersion(storage.NamespaceStorage)
			if err != nil {
				return 0
			}
			return v
		},
		WS:            wsStatsAdapter{broadcaster},
	}
	svc.RegisterJobPolicies()

	broadcaster.RegisterSnapshot(wsbroadcast.StreamDevicesDelta, func() (any, bool) {
		return map[string]any{"devices": svc.Status(ctx).Devices}, true
	})
	broadcaster.RegisterSnapshot(wsbroadcast.StreamHealthState, func() (any, bool) {
		return svc.Health(ctx), true
	})
	broadcaster.RegisterSnapshot(wsbroadcast.StreamLQIUpdate, func() (any, bool) {
		return svc.LQISnapshot(ctx), true
	})

	jobs.Start(ctx)
	defer jobs.Stop()

	router := api.NewRouter(svc, broadcaster)
	httpServer := &http.Server{Addr: *httpAddr, Handler: router.Engine()}

	go func() {
		log.Info().Str("address", *httpAddr).Msg("starting gateway HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("gateway HTTP server failed")
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case <-rebootCh:
		log.Info().Msg("reboot requested, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during HTTP server shutdown")
	}
}

// wsStatsAdapter bridges wsbroadcast's concrete Metrics type to
// usecases.WSMetrics without internal/usecases importing wsbroadcast.
type wsStatsAdapter struct {
	b *wsbroadcast.Broadcaster
}

func (a wsStatsAdapter) ClientCount() int { return a.b.ClientCount() }

func (a wsStatsAdapter) Metrics() usecases.WSMetrics {
	m := a.b.Metrics()
	return usecases.WSMetrics{
		ConnectionsTotal:        m.ConnectionsTotal,
		ReconnectCount:          m.ReconnectCount,
		DroppedFramesTotal:      m.DroppedFramesTotal,
		BroadcastLockSkipsTotal: m.BroadcastLockSkipsTotal,
	}
}
