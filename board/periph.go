// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package board

import (
	"errors"
	"fmt"
	"io"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// periphBackend opens buses through the periph registries.
type periphBackend struct {
	closers []io.Closer
}

func openPeriph() (*periphBackend, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	return &periphBackend{}, nil
}

func (p *periphBackend) i2c(bus string, addr uint16) (Conn, error) {
	b, err := i2creg.Open(bus)
	if err != nil {
		return nil, err
	}
	p.closers = append(p.closers, b)
	return &i2c.Dev{Bus: b, Addr: addr}, nil
}

func (p *periphBackend) spi(port string, hz int64) (Conn, error) {
	sp, err := spireg.Open(port)
	if err != nil {
		return nil, err
	}
	c, err := sp.Connect(physic.Frequency(hz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		sp.Close()
		return nil, err
	}
	p.closers = append(p.closers, sp)
	return c, nil
}

func (p *periphBackend) pin(name string) (Pin, error) {
	g := gpioreg.ByName(name)
	if g == nil {
		return nil, fmt.Errorf("cannot open pin %s", name)
	}
	return g, nil
}

func (p *periphBackend) close() error {
	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c.Close())
	}
	p.closers = nil
	return errors.Join(errs...)
}
