// Copyright 2017 by Thorsten von Eicken, see LICENSE file

package spimux

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
)

// Bus is the shared SPI connection, an spi.Conn or anything else able to run a transaction.
type Bus interface {
	Tx(w, r []byte) error
}

// Selector is the gpio pin driving the select input of the demux.
type Selector interface {
	Out(l gpio.Level) error
}

// Conn represents a connection to a device on an SPI bus with a multiplexed chip select.
//
// The purpose of spimux.Conn is to allow two click boards to sit on an SPI bus that only has
// a single chip select line, which is common on single board computers with a mikroBUS shield
// offering two sockets. This is accomplished by placing a demux on the CS line such that an
// extra gpio pin can direct the chip select to either of the two sockets. The Tx function sets
// the demux select for the appropriate device and then performs a std transaction.
//
// A sample circuit is to use an 74LVC1G19 demux with the SPI CS connected to E, the
// gpio select pin connected to A, and the CS inputs of the two devices attached to
// Y0 and Y1 respectively. A pull-down resistor on the A input of the demux is recommended
// to ensure both CS remain inactive when the SPI CS is not driven.
//
// The speed and mode of the bus are shared between the two devices.
type Conn struct {
	mu     *sync.Mutex // serializes access to the shared bus and the select pin
	bus    Bus
	selPin Selector
	sel    gpio.Level // select value for this device
}

// New returns two connections for the provided bus, the first one using Low for the
// select pin, and the second using High.
func New(bus Bus, selPin Selector) (*Conn, *Conn) {
	mu := &sync.Mutex{}
	return &Conn{mu, bus, selPin, gpio.Low}, &Conn{mu, bus, selPin, gpio.High}
}

// Select returns the connection for the device reached when the select pin is at level l.
func Select(bus Bus, selPin Selector, l gpio.Level) *Conn {
	lo, hi := New(bus, selPin)
	if l == gpio.High {
		return hi
	}
	return lo
}

// Tx sets the select pin to the correct value and calls the underlying Tx.
func (c *Conn) Tx(w, r []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.selPin.Out(c.sel); err != nil {
		return fmt.Errorf("spimux: cannot drive select pin: %w", err)
	}
	return c.bus.Tx(w, r)
}

// MaxTxSize returns the transfer limit of the underlying bus, 0 if it doesn't have one.
func (c *Conn) MaxTxSize() int {
	if l, ok := c.bus.(conn.Limits); ok {
		return l.MaxTxSize()
	}
	return 0
}

func (c *Conn) String() string { return fmt.Sprintf("spimux(%s)", c.sel) }

// Close is a no-op, the underlying bus belongs to the caller.
func (c *Conn) Close() error { return nil }
