// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// The gaussmeter package interfaces with a MikroE Gaussmeter click, which carries a Melexis
// MLX90393 3-axis magnetometer connected to an I2C bus.
//
// The MLX90393 measures the magnetic flux density along three axes using hall plates and
// integrates a temperature sensor used for the thermal compensation of the hall plates. The
// measurement range and resolution are traded off using the gain and resolution settings, the
// noise is traded against conversion time using the oversampling ratio and the digital filter.
//
// The chip is command driven: each command byte is answered by a status byte and, for the read
// commands, by the data. The measurement commands carry a 4-bit mask in the lower nibble
// selecting which of the temperature, X, Y and Z channels take part. Results are returned in
// the fixed order T, X, Y, Z for the selected channels only.
//
// The driver supports single measurements, where each Sense triggers a conversion and waits
// for it, and burst mode, where the chip converts continuously and Sense just reads the
// latest values. The wake-up-on-change mode is not supported.
//
// Only HALLCONF=0xC, the power-on default, is supported because the sensitivity table depends
// on it.
//
// Datasheet: https://www.melexis.com/-/media/files/documents/datasheets/mlx90393-datasheet-melexis.pdf
package gaussmeter

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"periph.io/x/conn/v3/physic"
)

// Conn is the connection to the chip, typically an i2c.Dev.
type Conn interface {
	Tx(w, r []byte) error
}

// LogPrintf is a function used by the driver to print logging info.
type LogPrintf func(format string, v ...interface{})

// ErrStatus is returned when the chip flags an error in its status byte, typically because
// a command was not valid in the current mode.
var ErrStatus = errors.New("gaussmeter: status error")

// Axis is a mask of measurement channels, its value is the lower nibble of the measurement
// commands.
type Axis uint8

const (
	AxisT Axis = 1 << iota // temperature
	AxisX
	AxisY
	AxisZ
	AxisXYZ = AxisX | AxisY | AxisZ
	AxisAll = AxisT | AxisXYZ
)

var axisOrder = []Axis{AxisT, AxisX, AxisY, AxisZ}

// Count returns the number of channels in the mask.
func (a Axis) Count() int {
	n := 0
	for _, b := range axisOrder {
		if a&b != 0 {
			n++
		}
	}
	return n
}

func (a Axis) String() string {
	var sb strings.Builder
	for i, b := range axisOrder {
		if a&b != 0 {
			sb.WriteByte("TXYZ"[i])
		}
	}
	if sb.Len() == 0 {
		return "-"
	}
	return sb.String()
}

// Mode selects how measurements are triggered.
type Mode int

const (
	Single Mode = iota // each Sense triggers a conversion
	Burst              // the chip converts continuously at BurstRate
)

// Opts contains the measurement configuration.
type Opts struct {
	Axes          Axis      // channels to measure
	Gain          uint8     // GAIN_SEL 0..7, 7 is the most sensitive
	Resolution    [3]uint8  // RES_X, RES_Y, RES_Z 0..3, each step doubles the LSB and the range
	OSR           uint8     // magnetic oversampling 0..3
	OSR2          uint8     // temperature oversampling 0..3
	DigitalFilter uint8     // DIG_FILT 0..7
	BurstRate     uint8     // burst period in 20ms units, 0..63, 0 is back-to-back
	Mode          Mode      // single or burst
	Logger        LogPrintf // function to use for logging, nil leaves the current one
}

// DefaultOpts measures all four channels in single measurement mode with a medium gain.
var DefaultOpts = Opts{
	Axes:          AxisAll,
	Gain:          4,
	Resolution:    [3]uint8{0, 0, 0},
	OSR:           0,
	OSR2:          0,
	DigitalFilter: 5,
	Mode:          Single,
}

// powerOnOpts reflects the register content after a reset.
var powerOnOpts = Opts{Gain: 7}

// Sample is the result of one measurement. Only the channels in Axes are valid.
type Sample struct {
	Axes        Axis
	Temperature physic.Temperature
	X, Y, Z     float64 // flux density in µT
}

// Celsius returns the temperature in degrees Celsius.
func (s Sample) Celsius() float64 {
	return float64(s.Temperature-physic.ZeroCelsius) / float64(physic.Kelvin)
}

// Status is the status byte returned in response to every command.
type Status byte

// Err returns true if the chip flagged an error.
func (s Status) Err() bool { return s&STATUS_ERROR != 0 }

func (s Status) String() string {
	var f []string
	for _, b := range []struct {
		bit  Status
		name string
	}{
		{STATUS_BURST, "burst"}, {STATUS_WOC, "woc"}, {STATUS_SM, "sm"},
		{STATUS_ERROR, "error"}, {STATUS_SED, "sed"}, {STATUS_RS, "reset"},
	} {
		if s&b.bit != 0 {
			f = append(f, b.name)
		}
	}
	return fmt.Sprintf("%#02x[%s d=%d]", byte(s), strings.Join(f, ","), s&STATUS_D)
}

// Dev represents an MLX90393 magnetometer.
//
// The methods are not concurrency safe.
type Dev struct {
	c    Conn
	opts Opts
	tref uint16 // temperature reference
	log  LogPrintf
}

// New resets the chip at the other end of c and reads its temperature reference. If opts is
// not nil the chip is then configured using Configure.
func New(c Conn, opts *Opts) (*Dev, error) {
	d := &Dev{c: c, opts: powerOnOpts, tref: defaultTRef}
	d.SetLogger(nil)
	if opts != nil && opts.Logger != nil {
		d.SetLogger(opts.Logger)
	}

	// Exit first, the chip ignores a reset while a burst is running.
	if err := d.Exit(); err != nil {
		return nil, err
	}
	if err := d.Reset(); err != nil {
		return nil, err
	}
	tref, err := d.ReadRegister(REG_TREF)
	if err != nil {
		return nil, err
	}
	if tref != 0 && tref != 0xffff {
		d.tref = tref
	}
	d.log("TREF %d", d.tref)

	if opts != nil {
		if err := d.Configure(*opts); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// SetLogger sets a logging function, nil may be used to disable logging, which is the default.
func (d *Dev) SetLogger(l LogPrintf) {
	if l != nil {
		d.log = func(format string, v ...interface{}) {
			l("gaussmeter: "+format, v...)
		}
	} else {
		d.log = func(format string, v ...interface{}) {}
	}
}

// Configure writes the measurement configuration into the chip and, in burst mode, starts
// the burst.
func (d *Dev) Configure(opts Opts) error {
	if err := opts.validate(); err != nil {
		return err
	}
	if opts.Logger != nil {
		d.SetLogger(opts.Logger)
	}
	if err := d.Exit(); err != nil {
		return err
	}

	conf1 := uint16(hallconfDefault) | uint16(opts.Gain)<<gainShift
	conf2 := uint16(opts.BurstRate) | uint16(opts.Axes)<<burstSelShift
	conf3 := uint16(opts.OSR)<<osrShift | uint16(opts.DigitalFilter)<<digFiltShift |
		uint16(opts.Resolution[0])<<resXShift | uint16(opts.Resolution[1])<<resYShift |
		uint16(opts.Resolution[2])<<resZShift | uint16(opts.OSR2)<<osr2Shift
	for _, rv := range []struct {
		reg byte
		val uint16
	}{{REG_CONF1, conf1}, {REG_CONF2, conf2}, {REG_CONF3, conf3}} {
		if err := d.WriteRegister(rv.reg, rv.val); err != nil {
			return err
		}
	}
	d.opts = opts
	d.log("configured axes=%s gain=%d res=%v osr=%d/%d filt=%d mode=%d",
		opts.Axes, opts.Gain, opts.Resolution, opts.OSR, opts.OSR2, opts.DigitalFilter, opts.Mode)

	if opts.Mode == Burst {
		if _, err := d.command(CMD_SB | byte(opts.Axes)); err != nil {
			return err
		}
	}
	return nil
}

// Axes returns the channels being measured.
func (d *Dev) Axes() Axis { return d.opts.Axes }

// Sense returns a measurement of the configured channels. In single measurement mode it
// triggers a conversion and sleeps until it is complete.
func (d *Dev) Sense() (Sample, error) {
	axes := d.opts.Axes
	if axes == 0 {
		return Sample{}, errors.New("gaussmeter: no channel selected, call Configure first")
	}
	if d.opts.Mode == Single {
		if _, err := d.command(CMD_SM | byte(axes)); err != nil {
			return Sample{}, err
		}
		time.Sleep(d.ConversionTime())
	}

	r := make([]byte, 1+2*axes.Count())
	if err := d.c.Tx([]byte{CMD_RM | byte(axes)}, r); err != nil {
		return Sample{}, fmt.Errorf("gaussmeter: txn error: %w", err)
	}
	if s := Status(r[0]); s.Err() {
		return Sample{}, fmt.Errorf("%w: %s reading measurement", ErrStatus, s)
	}
	return d.decode(axes, r[1:]), nil
}

// ConversionTime returns how long a single measurement of the configured channels takes.
func (d *Dev) ConversionTime() time.Duration {
	o := d.opts
	us := 0
	mag := 67 + 64*(1<<o.OSR)*(2+(1<<o.DigitalFilter))
	for _, a := range []Axis{AxisX, AxisY, AxisZ} {
		if o.Axes&a != 0 {
			us += mag
		}
	}
	if o.Axes&AxisT != 0 {
		us += 67 + 192*(1<<o.OSR2)
	}
	// The datasheet timings are typical, allow for a slow oscillator.
	return time.Duration(us*11/10)*time.Microsecond + 200*time.Microsecond
}

// ReadRegister reads a 16-bit volatile register.
func (d *Dev) ReadRegister(reg byte) (uint16, error) {
	var r [3]byte
	if err := d.c.Tx([]byte{CMD_RR, reg << 2}, r[:]); err != nil {
		return 0, fmt.Errorf("gaussmeter: txn error: %w", err)
	}
	if s := Status(r[0]); s.Err() {
		return 0, fmt.Errorf("%w: %s reading register %#x", ErrStatus, s, reg)
	}
	return binary.BigEndian.Uint16(r[1:]), nil
}

// WriteRegister writes a 16-bit volatile register.
func (d *Dev) WriteRegister(reg byte, v uint16) error {
	_, err := d.command(CMD_WR, byte(v>>8), byte(v), reg<<2)
	return err
}

// Exit stops burst or wake-up-on-change mode.
func (d *Dev) Exit() error {
	_, err := d.command(CMD_EX)
	return err
}

// Reset performs a soft reset, the registers are reloaded from the nonvolatile memory.
func (d *Dev) Reset() error {
	if _, err := d.command(CMD_RT); err != nil {
		return err
	}
	time.Sleep(2 * time.Millisecond)
	d.opts = powerOnOpts
	return nil
}

// Store copies the volatile registers into the nonvolatile memory.
func (d *Dev) Store() error {
	if _, err := d.command(CMD_HS); err != nil {
		return err
	}
	time.Sleep(15 * time.Millisecond)
	return nil
}

// Recall loads the volatile registers from the nonvolatile memory.
func (d *Dev) Recall() error {
	if _, err := d.command(CMD_HR); err != nil {
		return err
	}
	time.Sleep(2 * time.Millisecond)
	return nil
}

// Halt stops any continuous measurement.
func (d *Dev) Halt() error { return d.Exit() }

func (d *Dev) String() string { return "MLX90393" }

//

// command sends a command and returns the status byte it produces.
func (d *Dev) command(w ...byte) (Status, error) {
	var r [1]byte
	if err := d.c.Tx(w, r[:]); err != nil {
		return 0, fmt.Errorf("gaussmeter: txn error: %w", err)
	}
	s := Status(r[0])
	if s.Err() {
		return s, fmt.Errorf("%w: %s after command %#02x", ErrStatus, s, w[0])
	}
	return s, nil
}

// decode converts the raw channel values in b, which are in T, X, Y, Z order.
func (d *Dev) decode(axes Axis, b []byte) Sample {
	s := Sample{Axes: axes}
	i := 0
	for _, a := range axisOrder {
		if axes&a == 0 {
			continue
		}
		raw := binary.BigEndian.Uint16(b[2*i:])
		i++
		switch a {
		case AxisT:
			c := 35 + (float64(raw)-float64(d.tref))/45.2
			s.Temperature = physic.ZeroCelsius + physic.Temperature(c*float64(physic.Kelvin))
		case AxisX:
			s.X = d.flux(raw, 0)
		case AxisY:
			s.Y = d.flux(raw, 1)
		case AxisZ:
			s.Z = d.flux(raw, 2)
		}
	}
	return s
}

// flux converts a raw value of axis 0 (X), 1 (Y) or 2 (Z) to µT.
func (d *Dev) flux(raw uint16, axis int) float64 {
	res := d.opts.Resolution[axis]
	var v float64
	switch res {
	case 0, 1:
		v = float64(int16(raw))
	case 2:
		v = float64(raw) - 32768
	default:
		v = float64(raw) - 16384
	}
	col := 0
	if axis == 2 {
		col = 1
	}
	return v * sensitivity[d.opts.Gain][res][col]
}

func (o *Opts) validate() error {
	switch {
	case o.Axes == 0 || o.Axes > AxisAll:
		return fmt.Errorf("gaussmeter: invalid axes %#x", byte(o.Axes))
	case o.Gain > 7:
		return fmt.Errorf("gaussmeter: invalid gain %d, must be 0..7", o.Gain)
	case o.OSR > 3 || o.OSR2 > 3:
		return fmt.Errorf("gaussmeter: invalid oversampling %d/%d, must be 0..3", o.OSR, o.OSR2)
	case o.DigitalFilter > 7:
		return fmt.Errorf("gaussmeter: invalid digital filter %d, must be 0..7", o.DigitalFilter)
	case o.BurstRate > 63:
		return fmt.Errorf("gaussmeter: invalid burst rate %d, must be 0..63", o.BurstRate)
	case o.Mode != Single && o.Mode != Burst:
		return fmt.Errorf("gaussmeter: invalid mode %d", o.Mode)
	}
	for i, r := range o.Resolution {
		if r > 3 {
			return fmt.Errorf("gaussmeter: invalid resolution %d for axis %c, must be 0..3", r, "XYZ"[i])
		}
	}
	return nil
}
