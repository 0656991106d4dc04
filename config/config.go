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

// Package config loads the YAML configuration for display sessions
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Transport selections
const (
	TransportSerial = "serial"
	TransportI2C    = "i2c"
)

// Driver selections; Auto defers to detection
const (
	DriverAuto   = "auto"
	DriverDotPad = "dotpad"
	DriverFocus  = "focus"
)

// Config is the on-disk session configuration
type Config struct {
	Transport string `yaml:"transport"`
	Driver    string `yaml:"driver"`
	Port      string `yaml:"port"`
	Bus       string `yaml:"bus"`
	BaudRate  int    `yaml:"baud_rate"`
	I2CAddr   uint16 `yaml:"i2c_addr"`
	Debug     bool   `yaml:"debug"`
	Trace     bool   `yaml:"trace"`
}

// Default returns the configuration used when no file is given:
// serial transport, automatic driver selection.
func Default() *Config {
	return &Config{
		Transport: TransportSerial,
		Driver:    DriverAuto,
	}
}

// Load reads and validates a configuration file. Missing optional
// fields pick up their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- the caller names the file
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field combinations
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportSerial, TransportI2C:
	case "":
		c.Transport = TransportSerial
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}

	switch c.Driver {
	case DriverAuto, DriverDotPad, DriverFocus:
	case "":
		c.Driver = DriverAuto
	default:
		return fmt.Errorf("unknown driver %q", c.Driver)
	}

	if c.Transport == TransportI2C && c.Bus == "" {
		return fmt.Errorf("i2c transport requires a bus")
	}
	if c.Transport == TransportI2C && c.Driver == DriverAuto {
		return fmt.Errorf("i2c transport requires an explicit driver")
	}
	if c.BaudRate < 0 {
		return fmt.Errorf("negative baud rate %d", c.BaudRate)
	}
	return nil
}
