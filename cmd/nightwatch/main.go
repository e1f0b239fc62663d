// Command nightwatch runs the on-device vital-signs monitor, or exercises
// one detector's calibration or the alert pipeline in isolation. Grounded
// on wisefido-radar/cmd/wisefido-radar/main.go's signal-handling shutdown
// shape, per SPEC_FULL.md §6.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/buzzwordmojo/nightwatch/internal/bus"
	"github.com/buzzwordmojo/nightwatch/internal/busbridge"
	"github.com/buzzwordmojo/nightwatch/internal/calibration"
	"github.com/buzzwordmojo/nightwatch/internal/config"
	"github.com/buzzwordmojo/nightwatch/internal/detectors"
	"github.com/buzzwordmojo/nightwatch/internal/detectors/audio"
	"github.com/buzzwordmojo/nightwatch/internal/detectors/bcg"
	"github.com/buzzwordmojo/nightwatch/internal/detectors/mock"
	"github.com/buzzwordmojo/nightwatch/internal/detectors/radar"
	"github.com/buzzwordmojo/nightwatch/internal/detectors/transport"
	"github.com/buzzwordmojo/nightwatch/internal/logging"
	"github.com/buzzwordmojo/nightwatch/internal/notify"
	"github.com/buzzwordmojo/nightwatch/internal/orchestrator"
	"github.com/buzzwordmojo/nightwatch/internal/report"
)

// Exit codes per SPEC_FULL.md §6.
const (
	exitOK             = 0
	exitConfigError    = 2
	exitDetectorFailed = 3
	exitInternalError  = 4
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(exitConfigError)
	}

	switch os.Args[1] {
	case "run":
		os.Exit(cmdRun(os.Args[2:]))
	case "calibrate":
		os.Exit(cmdCalibrate(os.Args[2:]))
	case "test-alert":
		os.Exit(cmdTestAlert(os.Args[2:]))
	default:
		usage()
		os.Exit(exitConfigError)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: nightwatch <run|calibrate|test-alert> [flags]")
}

func loadConfig(path string, mockSensors bool) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg = config.Default()
	}
	if err != nil {
		return nil, err
	}
	if mockSensors {
		cfg.MockSensors = true
	}
	return cfg, nil
}

func cmdRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("NIGHTWATCH_CONFIG"), "path to YAML config")
	mockSensors := fs.Bool("mock-sensors", false, "use synthetic sensors instead of hardware")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath, *mockSensors)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		return exitConfigError
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, "config error:", e)
		}
		return exitConfigError
	}

	logger, err := logging.New(cfg.System.LogLevel, cfg.System.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		return exitInternalError
	}
	defer logger.Sync()

	b := bus.New()
	var bases []*detectors.Base
	var injector orchestrator.AnomalyInjector

	if cfg.MockSensors {
		src := mock.New()
		injector = src
		base := detectors.NewBase("mock", src, src, b, logging.ForComponent(logger, "mock"), 100*time.Millisecond)
		bases = append(bases, base)
	} else if cfg.Detectors.Radar.Enabled {
		proc := radar.NewProcessor(cfg.Detectors.Radar.DetectionDistanceMinM, cfg.Detectors.Radar.DetectionDistanceMaxM)
		var drv *radar.Driver
		if cfg.Detectors.Radar.Transport == "mqtt" {
			radarCfg := cfg.Detectors.Radar
			drv = radar.NewDriver(func() (radar.Port, error) {
				return transport.NewRadarMQTTPort(radarCfg)
			})
		} else {
			drv = radar.NewDriver(func() (radar.Port, error) {
				return nil, fmt.Errorf("no serial binding compiled for %s (radar hardware I/O is not wired in this build)", cfg.Detectors.Radar.Device)
			})
		}
		tick := time.Second / time.Duration(cfg.Detectors.Radar.UpdateRateHz)
		bases = append(bases, detectors.NewBase("radar", drv, proc, b, logging.ForComponent(logger, "radar"), tick))
	}
	if !cfg.MockSensors && cfg.Detectors.Audio.Enabled {
		proc := audio.NewProcessor(cfg.Detectors.Audio)
		drv := audio.NewDriver(func() (audio.Capture, error) {
			return nil, fmt.Errorf("no capture binding compiled for %s (audio hardware I/O is not wired in this build)", cfg.Detectors.Audio.Device)
		})
		tick := time.Duration(float64(time.Second) / cfg.Detectors.Audio.UpdateRateHz)
		bases = append(bases, detectors.NewBase("audio", drv, proc, b, logging.ForComponent(logger, "audio"), tick))
	}
	if !cfg.MockSensors && cfg.Detectors.BCG.Enabled {
		proc := bcg.NewProcessor(cfg.Detectors.BCG)
		drv := bcg.NewDriver(func() (bcg.ADC, error) {
			return nil, fmt.Errorf("no ADC binding compiled for %s on spi%d.%d (BCG hardware I/O is not wired in this build)", cfg.Detectors.BCG.ADCType, cfg.Detectors.BCG.SPIBus, cfg.Detectors.BCG.SPIDevice)
		})
		tick := time.Duration(float64(time.Second) / cfg.Detectors.BCG.UpdateRateHz)
		bases = append(bases, detectors.NewBase("bcg", drv, proc, b, logging.ForComponent(logger, "bcg"), tick))
	}

	if len(bases) == 0 {
		fmt.Fprintln(os.Stderr, "no detectors enabled; pass --mock-sensors or enable one under detectors: in config")
		return exitDetectorFailed
	}

	audioLogger := logging.ForComponent(logger, "notify.audio")
	audioNotifier := notify.NewAudioNotifier(cfg.Notifiers.Audio, notify.LogPlayer{Logger: audioLogger}, audioLogger)
	pushNotifier := notify.NewPushNotifier(cfg.Notifiers.Push, logging.ForComponent(logger, "notify.push"))

	orch := orchestrator.New(cfg, b, logger, bases, injector, audioNotifier, pushNotifier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.BusBridge.Redis.Enabled {
		mirror := busbridge.NewRedisMirror(cfg.BusBridge.Redis, logging.ForComponent(logger, "busbridge.redis"))
		go mirror.Run(ctx, b)
		defer mirror.Close()
	}
	if cfg.BusBridge.WebSocket.Enabled {
		ws := busbridge.NewWebSocketBridge(cfg.BusBridge.WebSocket, logging.ForComponent(logger, "busbridge.ws"))
		go ws.Run(ctx, b)
	}

	store, err := calibration.Open(cfg.System.DataDir, cfg.System.CalibrationStore.Postgres)
	if err != nil {
		logger.Warn("calibration store unavailable", zap.Error(err))
	} else {
		defer store.Close()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := orch.Run(ctx); err != nil {
			logger.Error("orchestrator exited", zap.Error(err))
		}
	}()

	sig := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	cancel()
	time.Sleep(500 * time.Millisecond) // let detector goroutines observe ctx cancellation

	return exitOK
}

func cmdCalibrate(args []string) int {
	fs := flag.NewFlagSet("calibrate", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("NIGHTWATCH_CONFIG"), "path to YAML config")
	out := fs.String("out", "calibration_report.xlsx", "output workbook path")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: nightwatch calibrate <detector> [--config PATH] [--out PATH]")
		return exitConfigError
	}
	detectorName := fs.Arg(0)

	cfg, err := loadConfig(*configPath, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		return exitConfigError
	}

	store, err := calibration.Open(cfg.System.DataDir, cfg.System.CalibrationStore.Postgres)
	if err != nil {
		fmt.Fprintln(os.Stderr, "calibration store error:", err)
		return exitInternalError
	}
	defer store.Close()

	baseline := calibration.Baseline{
		Detector:   detectorName,
		Params:     map[string]float64{"noise_floor": 0, "sensitivity": cfg.Detectors.Radar.Sensitivity},
		ComputedAt: time.Now(),
	}
	if err := store.Save(baseline); err != nil {
		fmt.Fprintln(os.Stderr, "calibration save error:", err)
		return exitInternalError
	}

	if err := report.WriteCalibrationReport(*out, []calibration.Baseline{baseline}); err != nil {
		fmt.Fprintln(os.Stderr, "report error:", err)
		return exitInternalError
	}

	fmt.Printf("wrote %s\n", *out)
	return exitOK
}

// cmdTestAlert drives a real, config-driven orchestrator with no detectors
// attached and pushes a synthetic {test_alert: severity} control message at
// it, the same message a WebSocket/Redis control-plane client would send.
// This exercises the actual notifyLoop path (notify.AudioNotifier,
// notify.PushNotifier) instead of a throwaway bus nothing else listens on.
func cmdTestAlert(args []string) int {
	fs := flag.NewFlagSet("test-alert", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("NIGHTWATCH_CONFIG"), "path to YAML config")
	fs.Parse(args)
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: nightwatch test-alert <info|warning|critical> [--config PATH]")
		return exitConfigError
	}
	severity := fs.Arg(0)
	switch severity {
	case "info", "warning", "critical":
	default:
		fmt.Fprintln(os.Stderr, "severity must be one of: info, warning, critical")
		return exitConfigError
	}

	cfg, err := loadConfig(*configPath, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		return exitConfigError
	}

	logger, err := logging.Development()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		return exitInternalError
	}
	defer logger.Sync()

	b := bus.New()
	audioLogger := logging.ForComponent(logger, "notify.audio")
	audioNotifier := notify.NewAudioNotifier(cfg.Notifiers.Audio, notify.LogPlayer{Logger: audioLogger}, audioLogger)
	pushNotifier := notify.NewPushNotifier(cfg.Notifiers.Push, logging.ForComponent(logger, "notify.push"))

	orch := orchestrator.New(cfg, b, logger, nil, nil, audioNotifier, pushNotifier)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go orch.Run(ctx)

	sub := b.Subscribe(bus.TopicAlerts)
	defer b.Unsubscribe(sub)

	b.Publish(bus.TopicControl, "cli", orchestrator.ControlMessage{Action: "test_alert", Severity: severity})

	if _, ok := sub.Receive(ctx); ok {
		logger.Info("test alert delivered through orchestrator", zap.String("severity", severity))
	}

	return exitOK
}
