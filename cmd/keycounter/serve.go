package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/keycounter-core/internal/allowlist"
	"github.com/nerrad567/keycounter-core/internal/arbiter"
	"github.com/nerrad567/keycounter-core/internal/device"
	"github.com/nerrad567/keycounter-core/internal/display"
	"github.com/nerrad567/keycounter-core/internal/hoststats"
	"github.com/nerrad567/keycounter-core/internal/infrastructure/config"
	"github.com/nerrad567/keycounter-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/keycounter-core/internal/infrastructure/logging"
	"github.com/nerrad567/keycounter-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/keycounter-core/internal/panel"
	"github.com/nerrad567/keycounter-core/internal/protocol"
	"github.com/nerrad567/keycounter-core/internal/supervisor"
	"github.com/nerrad567/keycounter-core/internal/wireless"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the display service (default).",
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Cancel on Ctrl+C or SIGTERM for a graceful shutdown.
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return run(ctx, getConfigPath(configPath))
	},
}

// run wires every component and blocks until ctx is cancelled or one of
// the long-running loops fails.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, path string) error {
	if err := loadDotEnv(".env"); err != nil {
		return err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Debug {
		cfg.Logging.Level = "debug"
	}

	log := logging.New(cfg.Logging, version)
	defer log.Close()
	log.Info("starting keycounter", "commit", commit, "build_date", date)
	log.Info("configuration loaded", "path", path, "device_id", cfg.Device.ID)

	registry := device.NewRegistry()
	registry.SetLogger(log)

	gate := arbiter.New()
	gate.SetLogger(log)

	fb, err := panel.New(panel.Config{
		Width:        cfg.Display.Width,
		Height:       cfg.Display.Height,
		Brightness:   cfg.Display.Brightness,
		SnapshotPath: cfg.Display.SnapshotPath,
	})
	if err != nil {
		return fmt.Errorf("creating panel: %w", err)
	}

	buttons := display.NewButtonQueue(0)
	orch := display.New(display.Config{
		Title:        cfg.Device.Name,
		IdleTimeout:  cfg.GetIdleTimeout(),
		PollInterval: cfg.GetPollInterval(),
	}, gate, registry, fb, buttons)
	orch.SetLogger(log)

	station := newStation(cfg)
	station.SetLogger(log)
	if station.HostManaged() {
		log.Info("no wifi network configured, link managed by host", "interface", cfg.Wireless.Interface)
	}
	orch.SetWirelessInfo(func() display.WirelessView {
		info := station.Info()
		return display.WirelessView{
			Connected: info.Connected,
			SSID:      info.SSID,
			IP:        info.IP,
			Hostname:  info.Hostname,
		}
	})

	apiClient := allowlist.NewClient(allowlist.Config{
		URL:      cfg.API.URL,
		Path:     cfg.API.Path,
		Token:    cfg.API.Token,
		DeviceID: cfg.Device.ID,
		Timeout:  cfg.GetAPITimeout(),
	}, nil)
	apiClient.SetLogger(log)

	tracker := hoststats.NewTracker()
	orch.SetHostInfo(func() display.HostView {
		r := tracker.Reading()
		return display.HostView{Valid: r.Valid, Current: r.Current, Max: r.Max, Min: r.Min, Avg: r.Avg}
	})

	out := connectSinks(cfg, log, buttons)
	defer out.close(log)
	if err := out.healthCheck(ctx); err != nil {
		log.Warn("sink health check failed", "error", err)
	}
	orch.AddObserver(out.deviceState)
	monitor := newHostMonitor(cfg, log, tracker, func(snap hoststats.Snapshot) {
		out.hostStats(snap)
		if orch.Mode() == display.ModeHost {
			if err := orch.Refresh(); err != nil {
				log.Warn("host refresh failed", "error", err)
			}
		}
	})

	server := protocol.NewServer(protocol.Config{
		ReadTimeout:    cfg.GetReadTimeout(),
		MaxMessageSize: cfg.Server.MaxMessageSize,
	}, func(p device.Payload) {
		if err := orch.HandleTelemetry(p); err != nil {
			log.Debug("telemetry not applied", "error", err)
		}
	})
	server.SetLogger(log)

	link := &admittingLink{station: station, api: apiClient, orch: orch, log: log}
	sup := supervisor.New(supervisor.Config{
		Name:            "telemetry",
		RestartDelay:    seconds(cfg.Supervisor.RestartDelay),
		MaxRestartDelay: seconds(cfg.Supervisor.MaxRestartDelay),
		StableThreshold: seconds(cfg.Supervisor.StableThreshold),
		OnRestart: func(attempt int, cause error) {
			log.Warn("restarting telemetry listener", "attempt", attempt, "cause", cause)
		},
	}, link, supervisor.TCPListen(cfg.ListenAddress()), server)
	sup.SetLogger(log)

	log.Info("initialisation complete",
		"listen", cfg.ListenAddress(),
		"panel", fmt.Sprintf("%dx%d", cfg.Display.Width, cfg.Display.Height),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sup.Run(gctx) })
	g.Go(func() error { return orch.Run(gctx) })
	g.Go(func() error { return monitor.Run(gctx) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		err = nil
	}

	stats := orch.Stats()
	log.Info("keycounter stopped",
		"telemetry", stats.Telemetry,
		"renders", stats.Renders,
		"restarts", sup.RestartCount(),
	)
	return err
}

// loadDotEnv loads KEYCOUNTER_* overrides from path when it exists.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// newStation builds the wireless station over the host's interface.
func newStation(cfg *config.Config) *wireless.Station {
	wcfg := wireless.Config{
		Primary:       wireless.AccessPoint{SSID: cfg.Wireless.SSID, Password: cfg.Wireless.Password},
		Hostname:      cfg.Wireless.Hostname,
		Country:       cfg.Wireless.Country,
		RetryInterval: cfg.GetRetryInterval(),
	}
	known := make([]string, 0, len(cfg.Wireless.Alternates)+1)
	if cfg.Wireless.SSID != "" {
		known = append(known, cfg.Wireless.SSID)
	}
	for _, ap := range cfg.Wireless.Alternates {
		wcfg.Alternates = append(wcfg.Alternates, wireless.AccessPoint{SSID: ap.SSID, Password: ap.Password})
		known = append(known, ap.SSID)
	}
	return wireless.NewStation(wcfg, wireless.NewHostRadio(cfg.Wireless.Interface, known))
}

// newHostMonitor builds the temperature and process sampler.
func newHostMonitor(cfg *config.Config, log *logging.Logger, tracker *hoststats.Tracker, onSample func(hoststats.Snapshot)) *hoststats.Monitor {
	var proc hoststats.ProcessSource
	if self, err := hoststats.NewSelfProcess(); err != nil {
		log.Warn("process stats unavailable", "error", err)
	} else {
		proc = self
	}

	monitor := hoststats.NewMonitor(hoststats.NewGopsutilSensor(cfg.Host.SensorKey), proc, tracker, cfg.GetSampleInterval(), onSample)
	monitor.SetLogger(log)
	return monitor
}

// admittingLink brings the station up and refreshes the allow-list each
// time the link is (re)established. A host-managed station never drops, so
// its allow-list is fetched once.
type admittingLink struct {
	station *wireless.Station
	api     *allowlist.Client
	orch    *display.Orchestrator
	log     *logging.Logger

	admitted atomic.Bool
}

// IsConnected implements supervisor.Link. It stays false until the first
// allow-list fetch so the supervisor always calls Connect once.
func (l *admittingLink) IsConnected() bool {
	return l.admitted.Load() && l.station.IsConnected()
}

// Connect implements supervisor.Link.
func (l *admittingLink) Connect(ctx context.Context) error {
	if err := l.station.Connect(ctx); err != nil {
		return err
	}

	set := allowlist.NewSet(l.api.Fetch(ctx, l.station.Info().IP))
	l.orch.SetAdmit(set.Allows)
	l.admitted.Store(true)
	l.log.Info("allow-list loaded", "devices", set.Len())
	return nil
}

// sinks fans state out to the optional MQTT and InfluxDB backends.
type sinks struct {
	mqtt   *mqtt.Client
	influx *influxdb.Client
	log    *logging.Logger
}

// connectSinks connects the enabled backends. A backend that cannot be
// reached is logged and left out; the display keeps working without it.
func connectSinks(cfg *config.Config, log *logging.Logger, buttons *display.ButtonQueue) *sinks {
	s := &sinks{log: log}

	if cfg.MQTT.Enabled {
		client, err := mqtt.Connect(cfg.MQTT, log)
		if err != nil {
			log.Warn("MQTT unavailable, running without state publishing", "error", err)
		} else {
			if err := client.SubscribeButtons(buttons.Press); err != nil {
				log.Warn("remote buttons unavailable", "error", err)
			}
			s.mqtt = client
		}
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		client, err := influxdb.Connect(cfg.InfluxDB, log)
		if err != nil {
			log.Warn("InfluxDB unavailable, running without telemetry history", "error", err)
		} else {
			s.influx = client
		}
	} else {
		log.Info("InfluxDB disabled")
	}

	return s
}

// healthCheck verifies the connected backends answer. Sinks that were
// never connected are skipped.
func (s *sinks) healthCheck(ctx context.Context) error {
	var errs []error
	if s.mqtt != nil {
		if err := s.mqtt.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mqtt: %w", err))
		}
	}
	if s.influx != nil {
		if err := s.influx.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("influxdb: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *sinks) deviceState(st device.State) {
	if s.mqtt != nil {
		if err := s.mqtt.PublishDeviceState(st); err != nil {
			s.log.Debug("device state not published", "device_id", st.ID, "error", err)
		}
	}
	if s.influx != nil {
		s.influx.WriteTelemetry(st)
	}
}

func (s *sinks) hostStats(snap hoststats.Snapshot) {
	if s.mqtt != nil {
		if err := s.mqtt.PublishHostStats(snap); err != nil {
			s.log.Debug("host stats not published", "error", err)
		}
	}
	if s.influx != nil {
		s.influx.WriteHostStats(snap)
	}
}

func (s *sinks) close(log *logging.Logger) {
	if s.influx != nil {
		if err := s.influx.Close(); err != nil {
			log.Error("error closing InfluxDB", "error", err)
		}
	}
	if s.mqtt != nil {
		if err := s.mqtt.Close(); err != nil {
			log.Error("error closing MQTT", "error", err)
		}
	}
}
