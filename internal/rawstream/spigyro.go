// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package rawstream

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// Register addresses for a SPI gyroscope whose Z-axis rate register
// is a 16-bit two's-complement value split across a high and low byte,
// read with the read bit (0x80) set in the address byte.
const (
	readBit        = 0x80
	gyroZOutHighReg = 0x47
	gyroZOutLowReg  = 0x48
)

// SPIGyro reads the raw Z-axis angular-rate counts directly off an
// SPI-attached gyroscope, without going through a packaged device
// driver — the adjusters want the uncalibrated register word, so a
// driver's own scaling would only get in the way.
type SPIGyro struct {
	conn spi.Conn
	cs   gpio.PinIO
}

// OpenSPIGyro initializes the periph host, opens the SPI device at
// devicePath and looks up csPin as the chip-select pin. The pin is kept
// on the returned SPIGyro; this package does not drive it.
func OpenSPIGyro(devicePath, csPin string) (*SPIGyro, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	port, err := spireg.Open(devicePath)
	if err != nil {
		return nil, fmt.Errorf("opening SPI device %s: %w", devicePath, err)
	}

	conn, err := port.Connect(physic.MegaHertz, spi.Mode3, 8)
	if err != nil {
		return nil, fmt.Errorf("connecting SPI device %s: %w", devicePath, err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("SPI chip-select pin %q not found", csPin)
	}

	return &SPIGyro{conn: conn, cs: cs}, nil
}

func (g *SPIGyro) readRegister(reg byte) (byte, error) {
	tx := []byte{reg | readBit, 0x00}
	rx := make([]byte, len(tx))
	if err := g.conn.Tx(tx, rx); err != nil {
		return 0, fmt.Errorf("SPI register 0x%02X read: %w", reg, err)
	}
	return rx[1], nil
}

// ReadZ returns the raw, uncalibrated angular-rate counts of the
// gyroscope's Z axis.
func (g *SPIGyro) ReadZ() (int16, error) {
	hi, err := g.readRegister(gyroZOutHighReg)
	if err != nil {
		return 0, err
	}
	lo, err := g.readRegister(gyroZOutLowReg)
	if err != nil {
		return 0, err
	}
	return int16(uint16(hi)<<8 | uint16(lo)), nil
}
