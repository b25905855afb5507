// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package eeram2

// SPI instruction set of the 48LM01.
const (
	CMD_WRSR      = 0x01 // write status register
	CMD_WRITE     = 0x02 // write SRAM array
	CMD_READ      = 0x03 // read SRAM array
	CMD_WRDI      = 0x04 // reset write enable latch
	CMD_RDSR      = 0x05 // read status register
	CMD_WREN      = 0x06 // set write enable latch
	CMD_STORE     = 0x08 // copy SRAM to EEPROM
	CMD_RECALL    = 0x09 // copy EEPROM to SRAM
	CMD_WRNUR     = 0xC2 // write nonvolatile user space
	CMD_RDNUR     = 0xC3 // read nonvolatile user space
	CMD_HIBERNATE = 0xB9
)

// Status register bits.
const (
	STATUS_BUSY = 0x01 // RDY/BSY, set while a store or recall is in progress
	STATUS_WEL  = 0x02 // write enable latch
	STATUS_BP   = 0x0C // block protect bits
	STATUS_ASE  = 0x40 // auto-store enable

	statusWritable = STATUS_BP | STATUS_ASE
)

const (
	// Size is the size of the SRAM array in bytes. The chip decodes 17 address bits and
	// ignores the rest, sequential accesses wrap around at the end of the array.
	Size = 0x20000
	// UserSize is the size of the nonvolatile user space.
	UserSize = 16
)
