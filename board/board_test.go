// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package board

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/tve/clicks/spimux"
)

// fakeBackend hands out playback connections and test pins.
type fakeBackend struct {
	conn   *conntest.Playback
	pins   map[string]*gpiotest.Pin
	opened []string
	closed bool
}

func (f *fakeBackend) i2c(bus string, addr uint16) (Conn, error) {
	f.opened = append(f.opened, "i2c:"+bus)
	return f.conn, nil
}

func (f *fakeBackend) spi(port string, hz int64) (Conn, error) {
	f.opened = append(f.opened, "spi:"+port)
	return f.conn, nil
}

func (f *fakeBackend) pin(name string) (Pin, error) {
	p, ok := f.pins[name]
	if !ok {
		return nil, errors.New("no pin " + name)
	}
	return p, nil
}

func (f *fakeBackend) close() error { f.closed = true; return nil }

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clicks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend: embd
sockets:
  "1": {i2c: "1", spi: "0", rst: GPIO22}
  "2": {spi: "0", cs_mux: GPIO5, cs_mux_value: 1}
gaussmeter:
  socket: "2"
  addr: 0x0D
  period: 250ms
mqtt:
  broker: localhost:1883
  format: varint
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "embd", cfg.Backend)
	assert.Equal(t, "GPIO22", cfg.Sockets["1"].RST)
	assert.Equal(t, 1, cfg.Sockets["2"].CSMuxValue)
	assert.Equal(t, uint16(0x0D), cfg.Gaussmeter.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.Gaussmeter.Period)
	assert.Equal(t, "varint", cfg.MQTT.Format)
	// Untouched settings keep their defaults.
	assert.Equal(t, uint32(0x00543210), cfg.EERAM2.Addr)
	assert.Equal(t, "clicks/gaussmeter", cfg.Gaussmeter.Topic)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: [periph"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	for name, mod := range map[string]func(*Config){
		"backend":      func(c *Config) { c.Backend = "wiringpi" },
		"mux value":    func(c *Config) { c.Sockets["2"] = Socket{CSMuxValue: 2} },
		"eeram socket": func(c *Config) { c.EERAM2.Socket = "3" },
		"speed":        func(c *Config) { c.EERAM2.SpeedHz = 100 * 1000 * 1000 },
		"data":         func(c *Config) { c.EERAM2.Data = "" },
		"gauss socket": func(c *Config) { c.Gaussmeter.Socket = "" },
		"gauss addr":   func(c *Config) { c.Gaussmeter.Addr = 0x10 },
		"period":       func(c *Config) { c.Gaussmeter.Period = 0 },
		"format":       func(c *Config) { c.MQTT.Format = "cbor" },
	} {
		cfg := DefaultConfig()
		mod(cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestSockets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sockets["1"] = Socket{I2C: "I2C1", SPI: "SPI0.0", RST: "GPIO22"}
	fb := &fakeBackend{conn: &conntest.Playback{}, pins: map[string]*gpiotest.Pin{
		"GPIO22": {N: "GPIO22"},
	}}
	b := newBoard(cfg, fb, t.Logf)

	c, err := b.I2C("1", 0x0C)
	require.NoError(t, err)
	assert.Equal(t, fb.conn, c)
	c, err = b.SPI("1", 1000000)
	require.NoError(t, err)
	assert.Equal(t, fb.conn, c)
	assert.Equal(t, []string{"i2c:I2C1", "spi:SPI0.0"}, fb.opened)

	p, err := b.Pin("GPIO22")
	require.NoError(t, err)
	assert.NotNil(t, p)
	p, err = b.Pin("")
	require.NoError(t, err)
	assert.Nil(t, p)
	_, err = b.Pin("GPIO99")
	assert.Error(t, err)

	_, err = b.I2C("7", 0x0C)
	assert.Error(t, err)

	require.NoError(t, b.Close())
	assert.True(t, fb.closed)
}

func TestMuxedSPI(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sockets["2"] = Socket{SPI: "SPI0.0", CSMux: "GPIO5", CSMuxValue: 1}
	sel := &gpiotest.Pin{N: "GPIO5", L: gpio.Low}
	fb := &fakeBackend{
		conn: &conntest.Playback{Ops: []conntest.IO{{W: []byte{0x05, 0}, R: []byte{0, 0x40}}}},
		pins: map[string]*gpiotest.Pin{"GPIO5": sel},
	}
	b := newBoard(cfg, fb, nil)

	c, err := b.SPI("2", 1000000)
	require.NoError(t, err)
	require.IsType(t, &spimux.Conn{}, c)
	r := make([]byte, 2)
	require.NoError(t, c.Tx([]byte{0x05, 0}, r))
	assert.Equal(t, gpio.High, sel.Read())
	assert.Equal(t, byte(0x40), r[1])

	cfg.Sockets["2"] = Socket{CSMux: "GPIO6"}
	_, err = b.SPI("2", 1000000)
	assert.Error(t, err)
}

func TestBusNumber(t *testing.T) {
	n, err := busNumber("", 1)
	require.NoError(t, err)
	assert.Equal(t, byte(1), n)
	n, err = busNumber("0x2", 1)
	require.NoError(t, err)
	assert.Equal(t, byte(2), n)
	_, err = busNumber("I2C1", 1)
	assert.Error(t, err)
}
