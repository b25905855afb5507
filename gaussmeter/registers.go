// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package gaussmeter

// Commands, the measurement commands are or'ed with the axis selection.
const (
	CMD_NOP = 0x00
	CMD_SB  = 0x10 // start burst mode
	CMD_SW  = 0x20 // start wake-up on change mode
	CMD_SM  = 0x30 // start single measurement
	CMD_RM  = 0x40 // read measurement
	CMD_RR  = 0x50 // read register
	CMD_WR  = 0x60 // write register
	CMD_EX  = 0x80 // exit mode
	CMD_HR  = 0xD0 // memory recall
	CMD_HS  = 0xE0 // memory store
	CMD_RT  = 0xF0 // reset
)

// Volatile registers, the register address goes into the top 6 bits of the address byte.
const (
	REG_CONF1    = 0x00 // BIST, Z_SERIES, GAIN_SEL, HALLCONF
	REG_CONF2    = 0x01 // TRIG_INT_SEL, COMM_MODE, WOC_DIFF, EXT_TRG, TCMP_EN, BURST_SEL, BURST_DATA_RATE
	REG_CONF3    = 0x02 // OSR2, RES_Z, RES_Y, RES_X, DIG_FILT, OSR
	REG_SENS_TC  = 0x03
	REG_OFFSET_X = 0x04
	REG_OFFSET_Y = 0x05
	REG_OFFSET_Z = 0x06
	REG_WOXY_THR = 0x07
	REG_WOZ_THR  = 0x08
	REG_WOT_THR  = 0x09
	REG_TREF     = 0x24 // temperature reference, programmed at the factory
)

// Status byte bits.
const (
	STATUS_BURST = 0x80
	STATUS_WOC   = 0x40
	STATUS_SM    = 0x20
	STATUS_ERROR = 0x10
	STATUS_SED   = 0x08 // single error detection, corrected
	STATUS_RS    = 0x04 // device was reset
	STATUS_D     = 0x03 // number of response bytes is 2*D+2
)

// Field positions in the configuration registers.
const (
	hallconfDefault = 0x0C
	gainShift       = 4
	burstSelShift   = 6
	osrShift        = 0
	digFiltShift    = 2
	resXShift       = 5
	resYShift       = 7
	resZShift       = 9
	osr2Shift       = 11
)

// DefaultAddr is the I2C address with both address straps low. The A0 and A1 jumpers on the
// click add 1 and 2 respectively.
const DefaultAddr = 0x0C

// defaultTRef is the typical value of the temperature reference.
const defaultTRef = 46244

// sensitivity is the magnetic sensitivity in µT/LSB for HALLCONF=0xC, indexed by
// gain and resolution. Index 0 is for the X and Y axes, index 1 for the Z axis.
var sensitivity = [8][4][2]float64{
	{{0.751, 1.210}, {1.502, 2.420}, {3.004, 4.840}, {6.009, 9.680}},
	{{0.601, 0.968}, {1.202, 1.936}, {2.403, 3.872}, {4.840, 7.744}},
	{{0.451, 0.726}, {0.901, 1.452}, {1.803, 2.904}, {3.605, 5.808}},
	{{0.376, 0.605}, {0.751, 1.210}, {1.502, 2.420}, {3.004, 4.840}},
	{{0.300, 0.484}, {0.601, 0.968}, {1.202, 1.936}, {2.403, 3.872}},
	{{0.250, 0.403}, {0.501, 0.807}, {1.001, 1.613}, {2.003, 3.227}},
	{{0.200, 0.323}, {0.401, 0.645}, {0.801, 1.291}, {1.602, 2.581}},
	{{0.150, 0.242}, {0.300, 0.484}, {0.601, 0.968}, {1.202, 1.936}},
}
