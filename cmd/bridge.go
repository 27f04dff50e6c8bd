// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 majeff, mosquito-pt2d

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/majeff/mosquito-pt2d/internal/bridge"
	"github.com/majeff/mosquito-pt2d/internal/capture"
	"github.com/majeff/mosquito-pt2d/internal/clock"
	"github.com/majeff/mosquito-pt2d/internal/config"
	"github.com/majeff/mosquito-pt2d/internal/dialect"
	"github.com/majeff/mosquito-pt2d/internal/simbus"
	"github.com/majeff/mosquito-pt2d/internal/transport"
	"github.com/majeff/mosquito-pt2d/internal/watchdog"
)

var (
	bridgeHostPort string
	bridgeListen   string
	bridgeBusPort  string
	bridgeDialect  string
	bridgeSimulate bool
	bridgeCapture  string
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Run the host to servo bus bridge",
	Long: `Run the bridge loop between a host channel and the servo bus.

The host channel is a serial port (--host-port) or a WebSocket endpoint
served at /bridge (--listen). The bus is a serial port (--bus-port) or the
built-in simulated bus (--simulate).

At startup the bridge reports its version, waits for the servos to power up
and detects the pan and tilt addresses. It then serves host commands until
interrupted. A stalled loop trips the watchdog, which terminates the process
so a supervisor can restart it.

Settings come from --config, then PT2D_ environment variables, then flags.

Examples:
  # Serial host, serial bus
  pt2d bridge --host-port /dev/ttyACM0 --bus-port /dev/ttyUSB0

  # WebSocket host, simulated bus
  pt2d bridge --listen :8080 --simulate`,
	RunE: runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
	bridgeCmd.Flags().StringVar(&bridgeHostPort, "host-port", "", "Host serial port")
	bridgeCmd.Flags().StringVar(&bridgeListen, "listen", "", "Serve the host channel over WebSocket on this address")
	bridgeCmd.Flags().StringVar(&bridgeBusPort, "bus-port", "", "Servo bus serial port")
	bridgeCmd.Flags().StringVar(&bridgeDialect, "dialect", "", "Bus dialect (lobot, ascii)")
	bridgeCmd.Flags().BoolVar(&bridgeSimulate, "simulate", false, "Use the simulated servo bus")
	bridgeCmd.Flags().StringVar(&bridgeCapture, "capture", "", "Record host and bus traffic to this file")
}

// applyBridgeFlags overrides configuration values with explicitly set flags
func applyBridgeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("host-port") {
		cfg.Host.Port = bridgeHostPort
	}
	if flags.Changed("listen") {
		cfg.Host.Listen = bridgeListen
	}
	if flags.Changed("bus-port") {
		cfg.Bus.Port = bridgeBusPort
	}
	if flags.Changed("dialect") {
		cfg.Bus.Dialect = bridgeDialect
	}
	if flags.Changed("simulate") {
		cfg.Bus.Simulate = bridgeSimulate
	}
	if flags.Changed("capture") {
		cfg.Capture.Path = bridgeCapture
	}
	if flags.Changed("username") {
		cfg.Host.Username = wsUsername
	}
}

// prepareConfig loads, overrides, normalizes and validates the configuration
func prepareConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	applyBridgeFlags(cmd, cfg)
	config.Normalize(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := setupLogging(cfg.Log.Level); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openBus returns the servo bus port. tap may be nil.
func openBus(cfg *config.Config, d dialect.Dialect, tap transport.Tap) (transport.Port, func(), error) {
	if cfg.Bus.Simulate {
		log.WithField("dialect", d.Name()).Info("using simulated servo bus")
		return simbus.Default(d.Name(), clock.System{}), func() {}, nil
	}

	conn, err := transport.OpenSerial(cfg.Bus.Port, cfg.Bus.Baud)
	if err != nil {
		return nil, nil, err
	}
	stream := transport.NewStream(conn, transport.StreamConfig{
		Name:             capture.ChannelBus,
		FlushBeforeWrite: true,
		Tap:              tap,
	})
	return stream, func() { stream.Close() }, nil
}

// openHost returns the host channel port
func openHost(cfg *config.Config, tap transport.Tap) (*transport.Stream, string, error) {
	if cfg.Host.Listen != "" {
		password := ""
		if cfg.Host.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}
		host, err := transport.ListenWebSocket(cfg.Host.Listen, cfg.Host.Username, password)
		if err != nil {
			return nil, "", err
		}
		stream := transport.NewStream(host, transport.StreamConfig{Name: capture.ChannelHost, Tap: tap})
		return stream, fmt.Sprintf("WebSocket: ws://%s/bridge", host.Addr()), nil
	}

	conn, err := transport.OpenSerial(cfg.Host.Port, cfg.Host.Baud)
	if err != nil {
		return nil, "", err
	}
	stream := transport.NewStream(conn, transport.StreamConfig{Name: capture.ChannelHost, Tap: tap})
	return stream, fmt.Sprintf("Serial: %s @ %d baud", cfg.Host.Port, cfg.Host.Baud), nil
}

func runBridge(cmd *cobra.Command, args []string) error {
	cfg, err := prepareConfig(cmd)
	if err != nil {
		return err
	}

	d, err := dialect.New(cfg.Bus.Dialect)
	if err != nil {
		return err
	}

	var hostTap, busTap transport.Tap
	if cfg.Capture.Path != "" {
		rec, err := capture.Create(cfg.Capture.Path)
		if err != nil {
			return err
		}
		defer func() {
			log.WithField("records", rec.Count()).Info("capture closed")
			rec.Close()
		}()
		hostTap = rec.Tap(capture.ChannelHost)
		busTap = rec.Tap(capture.ChannelBus)
	}

	bus, closeBus, err := openBus(cfg, d, busTap)
	if err != nil {
		return err
	}
	defer closeBus()

	host, hostInfo, err := openHost(cfg, hostTap)
	if err != nil {
		return err
	}
	defer host.Close()

	log.WithFields(logrus.Fields{
		"host":    hostInfo,
		"dialect": d.Name(),
	}).Info("pt2d bridge starting")

	wd := watchdog.New(cfg.WatchdogTimeout(), func() {
		log.WithField("timeout", cfg.WatchdogTimeout()).Fatal("bridge loop stalled, watchdog expired")
	})
	defer wd.Stop()

	b := bridge.New(bridge.Options{
		Config:   cfg,
		Dialect:  d,
		Host:     host,
		Bus:      bus,
		Clock:    clock.System{},
		Watchdog: wd,
		Log:      log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := b.Startup(ctx); err != nil {
		log.WithError(err).Warn("starting without both servo addresses")
	}
	wd.Enable()

	err = b.Run(ctx)
	fmt.Fprint(os.Stderr, b.State().Stats.String())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
