// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// The board package maps mikroBUS sockets onto the buses and pins of the host.
//
// Click drivers only need a connection able to run a transaction and, sometimes, an output
// pin. The board hands those out for a named socket using either periph, which knows most
// single board computers, or embd, which is kept for a few boards periph doesn't handle. An
// SPI socket can share its chip select with another socket through a demux, see spimux.
package board

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"

	"github.com/tve/clicks/spimux"
)

// Conn is a connection to a device on a bus.
type Conn interface {
	Tx(w, r []byte) error
}

// Pin is an output pin.
type Pin interface {
	Out(l gpio.Level) error
}

// LogPrintf is a function used to print logging info.
type LogPrintf func(format string, v ...interface{})

// backend is the host library used to reach the hardware.
type backend interface {
	i2c(bus string, addr uint16) (Conn, error)
	spi(port string, hz int64) (Conn, error)
	pin(name string) (Pin, error)
	close() error
}

// Board hands out connections to the sockets described in a Config.
type Board struct {
	cfg *Config
	be  backend
	log LogPrintf
}

// Open initializes the backend named in the config.
func Open(cfg *Config, logger LogPrintf) (*Board, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var be backend
	var err error
	switch cfg.Backend {
	case "periph":
		be, err = openPeriph()
	case "embd":
		be, err = openEmbd()
	}
	if err != nil {
		return nil, fmt.Errorf("board: cannot initialize %s: %w", cfg.Backend, err)
	}
	return newBoard(cfg, be, logger), nil
}

func newBoard(cfg *Config, be backend, logger LogPrintf) *Board {
	b := &Board{cfg: cfg, be: be, log: logger}
	if b.log == nil {
		b.log = func(format string, v ...interface{}) {}
	}
	return b
}

// Socket returns the description of the named socket.
func (b *Board) Socket(name string) (Socket, error) {
	s, ok := b.cfg.Sockets[name]
	if !ok {
		return s, fmt.Errorf("board: no socket %q", name)
	}
	return s, nil
}

// I2C returns a connection to the device at addr on the I2C bus of the socket.
func (b *Board) I2C(socket string, addr uint16) (Conn, error) {
	s, err := b.Socket(socket)
	if err != nil {
		return nil, err
	}
	b.log("socket %s: I2C bus %q addr %#x", socket, s.I2C, addr)
	c, err := b.be.i2c(s.I2C, addr)
	if err != nil {
		return nil, fmt.Errorf("board: socket %s: %w", socket, err)
	}
	return c, nil
}

// SPI returns a mode 0 connection to the device on the SPI port of the socket, running at hz.
func (b *Board) SPI(socket string, hz int64) (Conn, error) {
	s, err := b.Socket(socket)
	if err != nil {
		return nil, err
	}
	b.log("socket %s: SPI port %q at %dHz", socket, s.SPI, hz)
	c, err := b.be.spi(s.SPI, hz)
	if err != nil {
		return nil, fmt.Errorf("board: socket %s: %w", socket, err)
	}
	if s.CSMux == "" {
		return c, nil
	}
	sel, err := b.be.pin(s.CSMux)
	if err != nil {
		return nil, fmt.Errorf("board: socket %s: %w", socket, err)
	}
	l := gpio.Low
	if s.CSMuxValue == 1 {
		l = gpio.High
	}
	b.log("socket %s: chip select muxed by %s=%s", socket, s.CSMux, l)
	return spimux.Select(c, sel, l), nil
}

// Pin returns the named output pin, or nil if name is empty.
func (b *Board) Pin(name string) (Pin, error) {
	if name == "" {
		return nil, nil
	}
	p, err := b.be.pin(name)
	if err != nil {
		return nil, fmt.Errorf("board: %w", err)
	}
	return p, nil
}

// Close releases the buses opened through the board.
func (b *Board) Close() error { return b.be.close() }
