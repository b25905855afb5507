// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package board

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Socket names the bus and pins wired to one mikroBUS socket. Empty bus names select the
// first bus of the host, empty pin names mean the pin is not connected.
type Socket struct {
	I2C        string `yaml:"i2c"`          // I2C bus
	SPI        string `yaml:"spi"`          // SPI port, includes the chip select
	CSMux      string `yaml:"cs_mux"`       // pin steering a shared chip select to this socket
	CSMuxValue int    `yaml:"cs_mux_value"` // level of CSMux selecting this socket, 0 or 1
	AN         string `yaml:"an"`
	RST        string `yaml:"rst"`
	PWM        string `yaml:"pwm"`
	INT        string `yaml:"int"`
}

// Config holds the board description and the settings of the demos.
type Config struct {
	Backend    string            `yaml:"backend"` // periph or embd
	Sockets    map[string]Socket `yaml:"sockets"`
	EERAM2     EERAM2Config      `yaml:"eeram2"`
	Gaussmeter GaussmeterConfig  `yaml:"gaussmeter"`
	MQTT       MQTTConfig        `yaml:"mqtt"`
}

// EERAM2Config configures the EERAM 2 demo.
type EERAM2Config struct {
	Socket  string        `yaml:"socket"`
	SpeedHz int64         `yaml:"speed_hz"`
	Addr    uint32        `yaml:"addr"`
	Data    string        `yaml:"data"`
	Period  time.Duration `yaml:"period"`
	Topic   string        `yaml:"topic"`
}

// GaussmeterConfig configures the Gaussmeter demo.
type GaussmeterConfig struct {
	Socket string        `yaml:"socket"`
	Addr   uint16        `yaml:"addr"`
	Period time.Duration `yaml:"period"`
	Burst  bool          `yaml:"burst"`
	Topic  string        `yaml:"topic"`
}

// MQTTConfig describes the optional broker the demos publish to.
type MQTTConfig struct {
	Broker   string `yaml:"broker"` // host:port, empty disables publishing
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Format   string `yaml:"format"` // json or varint
}

// DefaultConfig returns a configuration for a host with the clicks in the first of two
// mikroBUS sockets.
func DefaultConfig() *Config {
	return &Config{
		Backend: "periph",
		Sockets: map[string]Socket{
			"1": {},
			"2": {},
		},
		EERAM2: EERAM2Config{
			Socket:  "1",
			SpeedHz: 10 * 1000 * 1000,
			Addr:    0x00543210,
			Data:    "MikroE\r\n\x00",
			Period:  time.Second,
			Topic:   "clicks/eeram2",
		},
		Gaussmeter: GaussmeterConfig{
			Socket: "1",
			Addr:   0x0C,
			Period: 400 * time.Millisecond,
			Topic:  "clicks/gaussmeter",
		},
		MQTT: MQTTConfig{Format: "json"},
	}
}

// Load reads a YAML configuration on top of the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Backend != "periph" && c.Backend != "embd" {
		return fmt.Errorf("unknown backend %q, must be periph or embd", c.Backend)
	}
	for name, s := range c.Sockets {
		if s.CSMuxValue != 0 && s.CSMuxValue != 1 {
			return fmt.Errorf("socket %s: cs_mux_value must be 0 or 1", name)
		}
	}
	if _, ok := c.Sockets[c.EERAM2.Socket]; !ok {
		return fmt.Errorf("eeram2: unknown socket %q", c.EERAM2.Socket)
	}
	if c.EERAM2.SpeedHz <= 0 || c.EERAM2.SpeedHz > 66*1000*1000 {
		return fmt.Errorf("eeram2: speed %dHz out of range", c.EERAM2.SpeedHz)
	}
	if len(c.EERAM2.Data) == 0 {
		return fmt.Errorf("eeram2: no data to write")
	}
	if _, ok := c.Sockets[c.Gaussmeter.Socket]; !ok {
		return fmt.Errorf("gaussmeter: unknown socket %q", c.Gaussmeter.Socket)
	}
	if c.Gaussmeter.Addr < 0x0C || c.Gaussmeter.Addr > 0x0F {
		return fmt.Errorf("gaussmeter: address %#x out of range 0x0C..0x0F", c.Gaussmeter.Addr)
	}
	if c.EERAM2.Period <= 0 || c.Gaussmeter.Period <= 0 {
		return fmt.Errorf("demo periods must be positive")
	}
	switch c.MQTT.Format {
	case "", "json", "varint":
	default:
		return fmt.Errorf("mqtt: unknown format %q", c.MQTT.Format)
	}
	return nil
}
