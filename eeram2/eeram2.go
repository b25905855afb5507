// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// The eeram2 package interfaces with a MikroE EERAM 2 click, which carries a Microchip 48LM01
// serial EERAM connected to an SPI bus.
//
// The 48LM01 is 1Mbit of SRAM that is shadowed by an EEPROM of the same size. Reads and writes
// go to the SRAM at full SPI speed and without wear, the chip copies the SRAM into the EEPROM
// when it detects a loss of power (if auto-store is enabled) or when it is told to do so using
// Store. On power-up the EEPROM content is recalled into the SRAM.
//
// Writes to the SRAM require the write enable latch to be set using SetWriteEnable. Unlike
// on an EEPROM the latch is not reset after each write, so enabling writes once is enough.
//
// The HOLD pin of the chip is brought out to the mikroBUS RST position. If it is not wired
// the click pulls it high, which leaves the chip active.
//
// Datasheet: https://ww1.microchip.com/downloads/en/DeviceDoc/20006008C.pdf
package eeram2

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
)

// Conn is the SPI connection to the chip, configured for mode 0 and at most 66Mhz.
type Conn interface {
	Tx(w, r []byte) error
}

// Pin is an output pin, used for HOLD.
type Pin interface {
	Out(l gpio.Level) error
}

// LogPrintf is a function used by the driver to print logging info.
type LogPrintf func(format string, v ...interface{})

// Opts contains options used when initializing a Dev.
type Opts struct {
	Hold   Pin       // HOLD pin, may be nil
	Logger LogPrintf // function to use for logging, may be nil
}

var (
	// ErrNoDevice is returned by New when the chip doesn't answer.
	ErrNoDevice = errors.New("eeram2: no device found")
	// ErrWriteDisabled is returned when writing without having set the write enable latch.
	ErrWriteDisabled = errors.New("eeram2: write enable latch is not set")
	// ErrBusy is returned when a store or recall does not complete in time.
	ErrBusy = errors.New("eeram2: device busy")
)

// Worst case durations of the store and recall operations.
const (
	storeTime  = 25 * time.Millisecond
	recallTime = 5 * time.Millisecond
)

// Status is the content of the status register.
type Status byte

// Ready returns true when no store or recall is in progress.
func (s Status) Ready() bool { return s&STATUS_BUSY == 0 }

// WriteEnabled returns true when the write enable latch is set.
func (s Status) WriteEnabled() bool { return s&STATUS_WEL != 0 }

// BlockProtect returns the block protection setting, 0 (none) through 3 (everything).
func (s Status) BlockProtect() int { return int(s&STATUS_BP) >> 2 }

// AutoStore returns true when the SRAM is saved automatically on power loss.
func (s Status) AutoStore() bool { return s&STATUS_ASE != 0 }

func (s Status) String() string {
	return fmt.Sprintf("ready=%t wel=%t bp=%d ase=%t",
		s.Ready(), s.WriteEnabled(), s.BlockProtect(), s.AutoStore())
}

// Dev represents a 48LM01 EERAM.
//
// The methods are not concurrency safe.
type Dev struct {
	conn  Conn
	hold  Pin
	chunk int // max data bytes per array transfer
	log   LogPrintf
}

// New returns a Dev for the chip at the other end of c. It releases HOLD and checks that
// the chip answers by reading the status register.
func New(c Conn, opts Opts) (*Dev, error) {
	d := &Dev{conn: c, hold: opts.Hold, chunk: Size, log: func(format string, v ...interface{}) {}}
	// spidev and friends cap the size of a single transfer.
	if l, ok := c.(conn.Limits); ok && l.MaxTxSize() > 4 && l.MaxTxSize()-4 < Size {
		d.chunk = l.MaxTxSize() - 4
	}
	if opts.Logger != nil {
		d.log = func(format string, v ...interface{}) {
			opts.Logger("eeram2: "+format, v...)
		}
	}

	if err := d.SetHold(false); err != nil {
		return nil, err
	}
	s, err := d.Status()
	if err != nil {
		return nil, err
	}
	// A missing chip leaves MISO floating high, the unused bits of the register read as 0.
	if s == 0xff {
		return nil, ErrNoDevice
	}
	d.log("status %s", s)
	return d, nil
}

// SetHold asserts (true) or releases (false) the HOLD pin. While HOLD is asserted the chip
// ignores the SPI bus. Nothing happens if no HOLD pin was provided.
func (d *Dev) SetHold(hold bool) error {
	if d.hold == nil {
		return nil
	}
	l := gpio.High
	if hold {
		l = gpio.Low
	}
	if err := d.hold.Out(l); err != nil {
		return fmt.Errorf("eeram2: cannot set hold pin: %w", err)
	}
	return nil
}

// SetWriteEnable sets or resets the write enable latch.
func (d *Dev) SetWriteEnable(enable bool) error {
	cmd := byte(CMD_WRDI)
	if enable {
		cmd = CMD_WREN
	}
	if err := d.conn.Tx([]byte{cmd}, nil); err != nil {
		return fmt.Errorf("eeram2: txn error: %w", err)
	}
	return nil
}

// Status reads the status register.
func (d *Dev) Status() (Status, error) {
	var r [2]byte
	if err := d.conn.Tx([]byte{CMD_RDSR, 0}, r[:]); err != nil {
		return 0, fmt.Errorf("eeram2: txn error: %w", err)
	}
	return Status(r[1]), nil
}

// SetStatus writes the block protect and auto-store bits of the status register, the
// other bits are read-only. The write enable latch must be set.
func (d *Dev) SetStatus(s Status) error {
	if err := d.conn.Tx([]byte{CMD_WRSR, byte(s) & statusWritable}, nil); err != nil {
		return fmt.Errorf("eeram2: txn error: %w", err)
	}
	return nil
}

// Write writes data to the SRAM starting at addr. The address wraps around at the end
// of the array. Transfers larger than the connection allows are split.
func (d *Dev) Write(addr uint32, data []byte) error {
	if err := checkLen(data); err != nil {
		return err
	}
	if err := d.writable(); err != nil {
		return err
	}
	for off := 0; off < len(data); off += d.chunk {
		end := off + d.chunk
		if end > len(data) {
			end = len(data)
		}
		a := (addr + uint32(off)) & (Size - 1)
		w := make([]byte, 4+end-off)
		w[0] = CMD_WRITE
		putAddr(w[1:4], a)
		copy(w[4:], data[off:end])
		if err := d.conn.Tx(w, nil); err != nil {
			return fmt.Errorf("eeram2: txn error: %w", err)
		}
	}
	d.log("wrote %d bytes at %#05x", len(data), addr&(Size-1))
	return nil
}

// Read fills data from the SRAM starting at addr. The address wraps around at the end
// of the array. Transfers larger than the connection allows are split.
func (d *Dev) Read(addr uint32, data []byte) error {
	if err := checkLen(data); err != nil {
		return err
	}
	for off := 0; off < len(data); off += d.chunk {
		end := off + d.chunk
		if end > len(data) {
			end = len(data)
		}
		a := (addr + uint32(off)) & (Size - 1)
		w := make([]byte, 4+end-off)
		r := make([]byte, len(w))
		w[0] = CMD_READ
		putAddr(w[1:4], a)
		if err := d.conn.Tx(w, r); err != nil {
			return fmt.Errorf("eeram2: txn error: %w", err)
		}
		copy(data[off:end], r[4:])
	}
	d.log("read %d bytes at %#05x", len(data), addr&(Size-1))
	return nil
}

// Store copies the SRAM into the EEPROM and waits for the copy to complete.
func (d *Dev) Store() error {
	if err := d.conn.Tx([]byte{CMD_STORE}, nil); err != nil {
		return fmt.Errorf("eeram2: txn error: %w", err)
	}
	return d.waitReady(storeTime)
}

// Recall copies the EEPROM into the SRAM and waits for the copy to complete.
func (d *Dev) Recall() error {
	if err := d.conn.Tx([]byte{CMD_RECALL}, nil); err != nil {
		return fmt.Errorf("eeram2: txn error: %w", err)
	}
	return d.waitReady(recallTime)
}

// WriteUser writes the nonvolatile user space. The write enable latch must be set.
func (d *Dev) WriteUser(data [UserSize]byte) error {
	if err := d.writable(); err != nil {
		return err
	}
	w := append([]byte{CMD_WRNUR}, data[:]...)
	if err := d.conn.Tx(w, nil); err != nil {
		return fmt.Errorf("eeram2: txn error: %w", err)
	}
	return nil
}

// ReadUser reads the nonvolatile user space.
func (d *Dev) ReadUser() ([UserSize]byte, error) {
	var data [UserSize]byte
	var w, r [1 + UserSize]byte
	w[0] = CMD_RDNUR
	if err := d.conn.Tx(w[:], r[:]); err != nil {
		return data, fmt.Errorf("eeram2: txn error: %w", err)
	}
	copy(data[:], r[1:])
	return data, nil
}

// Hibernate puts the chip into its lowest power mode. The SRAM content is lost unless it
// has been stored first. The chip wakes up when its chip select is asserted.
func (d *Dev) Hibernate() error {
	if err := d.conn.Tx([]byte{CMD_HIBERNATE}, nil); err != nil {
		return fmt.Errorf("eeram2: txn error: %w", err)
	}
	return nil
}

// Halt puts the chip on hold.
func (d *Dev) Halt() error { return d.SetHold(true) }

func (d *Dev) String() string { return "48LM01" }

//

// writable checks that the write enable latch is set.
func (d *Dev) writable() error {
	s, err := d.Status()
	if err != nil {
		return err
	}
	if !s.WriteEnabled() {
		return ErrWriteDisabled
	}
	return nil
}

// waitReady polls the status register until the busy flag clears or the timeout passes.
func (d *Dev) waitReady(timeout time.Duration) error {
	t0 := time.Now()
	for {
		s, err := d.Status()
		if err != nil {
			return err
		}
		if s.Ready() {
			d.log("ready after %s", time.Since(t0))
			return nil
		}
		if time.Since(t0) > timeout {
			return ErrBusy
		}
		time.Sleep(time.Millisecond)
	}
}

func checkLen(data []byte) error {
	switch {
	case len(data) == 0:
		return errors.New("eeram2: empty buffer")
	case len(data) > Size:
		return fmt.Errorf("eeram2: buffer of %d bytes exceeds the %d byte array", len(data), Size)
	}
	return nil
}

func putAddr(b []byte, addr uint32) {
	b[0] = byte(addr >> 16)
	b[1] = byte(addr >> 8)
	b[2] = byte(addr)
}
