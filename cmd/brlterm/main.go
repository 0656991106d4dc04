// Copyright 2026 The go-braille Authors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// brlterm is a small terminal for refreshable braille displays: it
// connects over serial or an I2C UART bridge, writes a line of text,
// and echoes the decoded key commands the display sends back.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	braille "github.com/tactiledev/go-braille"
	"github.com/tactiledev/go-braille/config"
	"github.com/tactiledev/go-braille/detection"
	"github.com/tactiledev/go-braille/driver/dotpad"
	"github.com/tactiledev/go-braille/driver/freedomscientific"
	"github.com/tactiledev/go-braille/transport/i2c"
	"github.com/tactiledev/go-braille/transport/serial"
)

// commandPollInterval paces the cooperative read loop. The protocols
// are single-flight with no async notification channel, so the host
// polls.
const commandPollInterval = 10 * time.Millisecond

// Package-level flag variables
var (
	flagConfig    string
	flagPort      string
	flagBus       string
	flagTransport string
	flagDriver    string
	flagBaud      int
	flagWriteText string
	flagLogFile   string
	flagList      bool
	flagDebug     bool
	flagTrace     bool
)

func init() {
	flag.StringVar(&flagConfig, "config", "", "Path to a YAML configuration file")
	flag.StringVar(&flagPort, "port", "", "Serial port path (auto-detect if empty)")
	flag.StringVar(&flagBus, "bus", "", "I2C bus path, optionally with address (/dev/i2c-1:0x4D)")
	flag.StringVar(&flagTransport, "transport", "", "Transport: serial or i2c")
	flag.StringVar(&flagDriver, "driver", "", "Driver: auto, dotpad or focus")
	flag.IntVar(&flagBaud, "baud", 0, "Serial baud rate (protocol default if 0)")
	flag.StringVar(&flagWriteText, "write", "", "Text to put on the display (exits after acknowledgement)")
	flag.StringVar(&flagLogFile, "log", "", "Append a timestamped session log to this file")
	flag.BoolVar(&flagList, "list", false, "List detected displays and exit")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
	flag.BoolVar(&flagTrace, "trace", false, "Attach wire traces to errors")
}

// parseConfig merges the optional configuration file with command-line
// flags; flags win.
func parseConfig() (*config.Config, error) {
	cfg := config.Default()
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if flagPort != "" {
		cfg.Port = flagPort
	}
	if flagBus != "" {
		cfg.Bus = flagBus
	}
	if flagTransport != "" {
		cfg.Transport = flagTransport
	}
	if flagDriver != "" {
		cfg.Driver = flagDriver
	}
	if flagBaud != 0 {
		cfg.BaudRate = flagBaud
	}
	if flagDebug {
		cfg.Debug = true
	}
	if flagTrace {
		cfg.Trace = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Debug {
		braille.SetDebugEnabled(true)
	}
	return cfg, nil
}

// resolveDevice fills in the port and driver from detection when the
// configuration leaves either open.
func resolveDevice(cfg *config.Config) error {
	if cfg.Transport != config.TransportSerial {
		return nil
	}
	if cfg.Port != "" && cfg.Driver != config.DriverAuto {
		return nil
	}

	devices, err := detection.Detect(&detection.Options{IncludeUnknown: cfg.Port != ""})
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	for _, device := range devices {
		if cfg.Port != "" && device.Path != cfg.Port {
			continue
		}
		if device.Protocol == detection.ProtocolUnknown {
			continue
		}
		if cfg.Port == "" {
			cfg.Port = device.Path
		}
		if cfg.Driver == config.DriverAuto {
			cfg.Driver = string(device.Protocol)
		}
		_, _ = fmt.Printf("Using %s\n", device)
		return nil
	}

	if cfg.Port == "" {
		return errors.New("no display found; specify -port and -driver")
	}
	return fmt.Errorf("cannot identify the display at %s; specify -driver", cfg.Port)
}

func newTransport(cfg *config.Config) (braille.Transport, error) {
	switch cfg.Transport {
	case config.TransportI2C:
		transport, err := i2c.New(i2c.Config{
			BusName:  cfg.Bus,
			Addr:     cfg.I2CAddr,
			BaudRate: cfg.BaudRate,
		})
		if err != nil {
			return nil, fmt.Errorf("open i2c bridge %s: %w", cfg.Bus, err)
		}
		return transport, nil
	default:
		transport, err := serial.Open(serial.Config{
			PortName: cfg.Port,
			BaudRate: cfg.BaudRate,
		})
		if err != nil {
			return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
		}
		return transport, nil
	}
}

func newDriver(cfg *config.Config) (braille.Driver, error) {
	switch cfg.Driver {
	case config.DriverDotPad:
		return dotpad.New(), nil
	case config.DriverFocus:
		return freedomscientific.New(), nil
	default:
		return nil, fmt.Errorf("no driver selected for %s", cfg.Port)
	}
}

func listDevices() error {
	devices, err := detection.Detect(&detection.Options{IncludeUnknown: true})
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}
	if len(devices) == 0 {
		_, _ = fmt.Println("No serial ports found.")
		return nil
	}
	for _, device := range devices {
		_, _ = fmt.Println(device)
	}
	return nil
}

func connect(cfg *config.Config) (*braille.Display, error) {
	transport, err := newTransport(cfg)
	if err != nil {
		return nil, err
	}

	driver, err := newDriver(cfg)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}

	var opts []braille.Option
	if cfg.Trace {
		opts = append(opts, braille.WithTrace(
			braille.NewTraceBuffer(string(transport.Type()), cfg.Port, 0)))
	}

	// Connect unwinds the transport itself on failure.
	display, err := braille.Connect(transport, driver, opts...)
	if err != nil {
		return nil, err
	}

	caps := display.Capabilities()
	_, _ = fmt.Printf("Connected: %s, %dx%d cells, firmware %s\n",
		caps.Model, caps.TextColumns, caps.TextRows, caps.FirmwareVersion)
	return display, nil
}

// pump services pending input once: acknowledgements are resolved as a
// side effect, decoded commands are printed.
func pump(display *braille.Display) error {
	for {
		cmd, err := display.ReadCommand()
		if err != nil {
			if errors.Is(err, braille.ErrNoCommand) {
				return nil
			}
			return err
		}
		_, _ = fmt.Printf("Key: %s\n", cmd)
	}
}

// runWriteMode writes one line and pumps until the display settles
func runWriteMode(ctx context.Context, display *braille.Display, text string) error {
	if err := display.WriteWindow(text); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}

	// Keep servicing acknowledgements until the whole window sticks.
	for {
		buf := display.Buffer()
		if _, _, dirty := buf.ChangedRange(); !dirty {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(commandPollInterval):
		}
		if err := pump(display); err != nil {
			return err
		}
		if err := display.WriteCells(buf.Desired(0, buf.Len())); err != nil {
			return fmt.Errorf("write failed: %w", err)
		}
	}

	_, _ = fmt.Printf("Wrote %q\n", text)
	return nil
}

// runEchoMode prints decoded commands until interrupted
func runEchoMode(ctx context.Context, display *braille.Display) error {
	_, _ = fmt.Println("Echoing display keys. Press Ctrl+C to stop...")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(commandPollInterval):
		}
		if err := pump(display); err != nil {
			if errors.Is(err, braille.ErrRestartRequired) {
				return errors.New("display stopped responding; reconnect it and retry")
			}
			return err
		}
	}
}

func run(ctx context.Context) error {
	cfg, err := parseConfig()
	if err != nil {
		return err
	}

	if flagLogFile != "" {
		logFile, logErr := os.OpenFile(flagLogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if logErr != nil {
			return fmt.Errorf("open session log: %w", logErr)
		}
		braille.SetSessionLog(logFile)
		defer func() {
			braille.SetSessionLog(nil)
			_ = logFile.Close()
		}()
	}

	if flagList {
		return listDevices()
	}

	if err := resolveDevice(cfg); err != nil {
		return err
	}

	display, err := connect(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := display.Close(); closeErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close display: %v\n", closeErr)
		}
	}()

	if flagWriteText != "" {
		return runWriteMode(ctx, display, flagWriteText)
	}
	return runEchoMode(ctx, display)
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Print("\nShutting down...\n")
		cancel()
	}()

	if err := run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
