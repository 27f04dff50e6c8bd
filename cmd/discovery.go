// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 majeff, mosquito-pt2d

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/majeff/mosquito-pt2d/internal/clock"
	"github.com/majeff/mosquito-pt2d/internal/dialect"
	"github.com/majeff/mosquito-pt2d/internal/discovery"
)

var (
	discoveryAll bool
)

var discoveryCmd = &cobra.Command{
	Use:   "discover",
	Short: "Detect pan and tilt servo addresses on the bus",
	Long: `Probe the servo bus directly and report the pan and tilt addresses.

The bus is opened the same way the bridge opens it (--bus-port or --simulate,
plus the configuration file). Do not run this while a bridge owns the bus.

Pan is the first address in the scan range that answers; tilt is the next
one, scanning again from the start without pan. With --all every address in
the range is probed and listed.

Examples:
  pt2d discover --bus-port /dev/ttyUSB0
  pt2d discover --bus-port /dev/ttyUSB0 --dialect ascii --all

Exit codes:
  0 - Both addresses found
  1 - A role is unresolved
  2 - Connection error`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().StringVar(&bridgeBusPort, "bus-port", "", "Servo bus serial port")
	discoveryCmd.Flags().StringVar(&bridgeDialect, "dialect", "", "Bus dialect (lobot, ascii)")
	discoveryCmd.Flags().BoolVar(&bridgeSimulate, "simulate", false, "Use the simulated servo bus")
	discoveryCmd.Flags().BoolVar(&discoveryAll, "all", false, "Probe every address in the scan range")
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyBridgeFlags(cmd, cfg)
	if !cfg.Bus.Simulate && cfg.Bus.Port == "" {
		return fmt.Errorf("either --bus-port or --simulate must be specified")
	}

	d, err := dialect.New(cfg.Bus.Dialect)
	if err != nil {
		return err
	}

	bus, closeBus, err := openBus(cfg, d, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer closeBus()

	scan := cfg.ScanConfig()
	fmt.Printf("pt2d - Servo Discovery\n")
	fmt.Printf("Dialect: %s\n", d.Name())
	fmt.Printf("Range: %d-%d, %d attempt(s), %v probe timeout\n\n", scan.First, scan.Last, scan.Attempts, scan.ProbeTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	scanner := &discovery.Scanner{
		Port:    bus,
		Dialect: d,
		Config:  scan,
		Clock:   clock.System{},
		Log:     log,
	}

	if discoveryAll {
		return probeAll(ctx, scanner)
	}

	start := time.Now()
	res, err := scanner.Discover(ctx)
	if err != nil && !errors.Is(err, discovery.ErrAddressUnresolved) {
		return err
	}

	fmt.Printf("--- Discovery summary (%v) ---\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("Pan:  %s\n", formatAddress(res.Pan))
	fmt.Printf("Tilt: %s\n", formatAddress(res.Tilt))

	if !res.Resolved() {
		fmt.Printf("Not all roles resolved. Check servo power, wiring and IDs.\n")
		os.Exit(1)
	}
	return nil
}

func probeAll(ctx context.Context, scanner *discovery.Scanner) error {
	found := 0
	for id := int(scanner.Config.First); id <= int(scanner.Config.Last); id++ {
		ok, err := scanner.Probe(ctx, uint8(id))
		if err != nil {
			return err
		}
		if ok {
			found++
			fmt.Printf("  ID %3d: present\n", id)
		}
	}
	fmt.Printf("\nServos found: %d\n", found)
	if found == 0 {
		os.Exit(1)
	}
	return nil
}

func formatAddress(id uint8) string {
	if id == discovery.Unresolved {
		return "unresolved"
	}
	return fmt.Sprintf("%d", id)
}
