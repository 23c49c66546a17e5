// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package rawstream reads raw, uncalibrated sensor samples — gyroscope
// counts and odometer wheel ticks — from a companion microcontroller's
// serial line, or directly off an SPI-attached gyroscope's registers.
// It hands the sensor adjusters exactly the (timestamp, raw value)
// pairs they expect; no calibration happens here.
package rawstream

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	serial "github.com/jacobsa/go-serial/serial"
)

// Sample is one raw reading tagged by the line's sensor marker.
type Sample struct {
	Sensor    string // "GYRO" or "ODO", taken verbatim from the line marker
	Timestamp float64
	Value     float64
}

// SerialSource reads newline-delimited "MARKER,<unix-seconds>,<raw>"
// records from a companion MCU, the same line-oriented convention the
// GNSS producer uses for NMEA sentences.
type SerialSource struct {
	reader *bufio.Reader
	closer interface{ Close() error }
}

// OpenSerialSource opens portName at baudRate and returns a line
// reader over it.
func OpenSerialSource(portName string, baudRate int) (*SerialSource, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening raw sensor serial port %s: %w", portName, err)
	}

	return &SerialSource{reader: bufio.NewReader(port), closer: port}, nil
}

// Close closes the underlying serial port.
func (s *SerialSource) Close() error {
	return s.closer.Close()
}

// Next blocks until the next well-formed sample line arrives,
// skipping blank or malformed lines the way the GNSS producer skips
// non-NMEA noise.
func (s *SerialSource) Next() (Sample, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return Sample{}, fmt.Errorf("raw sensor serial read: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) != 3 {
			continue
		}

		ts, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		val, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			continue
		}

		return Sample{Sensor: fields[0], Timestamp: ts, Value: val}, nil
	}
}
