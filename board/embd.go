// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package board

// The embd backend is for boards where periph cannot find the buses. embd speaks plain
// write and read transfers on I2C, so a Tx is a write followed by a separate read, which
// the click chips used here accept.

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/kidoman/embd"
	_ "github.com/kidoman/embd/host/all"
	"periph.io/x/conn/v3/gpio"
)

type embdBackend struct{}

func openEmbd() (*embdBackend, error) {
	if err := embd.InitI2C(); err != nil {
		return nil, err
	}
	if err := embd.InitSPI(); err != nil {
		return nil, err
	}
	if err := embd.InitGPIO(); err != nil {
		return nil, err
	}
	return &embdBackend{}, nil
}

// busNumber parses an embd bus number, empty meaning def.
func busNumber(name string, def byte) (byte, error) {
	if name == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(name, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("embd needs a bus number, not %q", name)
	}
	return byte(n), nil
}

func (e *embdBackend) i2c(bus string, addr uint16) (Conn, error) {
	n, err := busNumber(bus, 1)
	if err != nil {
		return nil, err
	}
	if addr > 0x7f {
		return nil, fmt.Errorf("embd does not support 10-bit address %#x", addr)
	}
	return &embdI2C{embd.NewI2CBus(n), byte(addr)}, nil
}

func (e *embdBackend) spi(port string, hz int64) (Conn, error) {
	ch, err := busNumber(port, 0)
	if err != nil {
		return nil, err
	}
	return &embdSPI{embd.NewSPIBus(embd.SPIMode0, ch, int(hz), 8, 0)}, nil
}

func (e *embdBackend) pin(name string) (Pin, error) {
	p, err := embd.NewDigitalPin(name)
	if err != nil {
		return nil, fmt.Errorf("cannot open pin %s: %w", name, err)
	}
	if err := p.SetDirection(embd.Out); err != nil {
		return nil, fmt.Errorf("cannot make pin %s an output: %w", name, err)
	}
	return &embdPin{p}, nil
}

func (e *embdBackend) close() error {
	return errors.Join(embd.CloseGPIO(), embd.CloseSPI(), embd.CloseI2C())
}

//===== I2C shim for embd

type embdI2C struct {
	bus  embd.I2CBus
	addr byte
}

func (c *embdI2C) Tx(w, r []byte) error {
	if len(w) > 0 {
		if err := c.bus.WriteBytes(c.addr, w); err != nil {
			return err
		}
	}
	if len(r) > 0 {
		d, err := c.bus.ReadBytes(c.addr, len(r))
		if err != nil {
			return err
		}
		copy(r, d)
	}
	return nil
}

//===== SPI shim for embd

type embdSPI struct {
	bus embd.SPIBus
}

// Tx runs a full duplex transfer, embd transfers in place so w is copied into a buffer
// large enough for both directions.
func (s *embdSPI) Tx(w, r []byte) error {
	n := len(w)
	if len(r) > n {
		n = len(r)
	}
	buf := make([]byte, n)
	copy(buf, w)
	if err := s.bus.TransferAndReceiveData(buf); err != nil {
		return err
	}
	copy(r, buf)
	return nil
}

// MaxTxSize returns the default buffer size of the spidev kernel driver, embd doesn't
// expose the actual one.
func (s *embdSPI) MaxTxSize() int { return 4096 }

//===== GPIO shim for embd

type embdPin struct {
	p embd.DigitalPin
}

func (g *embdPin) Out(l gpio.Level) error {
	v := embd.Low
	if l == gpio.High {
		v = embd.High
	}
	return g.p.Write(v)
}
