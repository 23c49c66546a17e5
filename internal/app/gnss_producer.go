// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"encoding/json"
	"log"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/dr-engine/internal/config"
	"github.com/relabs-tech/dr-engine/internal/gps"
)

// RunGNSSProducer opens the GNSS serial port, parses NMEA sentences,
// and publishes position, velocity, and quality fixes as JSON to MQTT
// for the engine host to consume as absolute references.
func RunGNSSProducer() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDGNSS)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("MQTT connect error: %v", token.Error())
		return token.Error()
	}
	log.Printf("gnss producer connected to MQTT broker at %s", cfg.MQTTBroker)

	serialOpts := serial.OpenOptions{
		PortName:              cfg.GNSSSerialPort,
		BaudRate:              uint(cfg.GNSSBaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return err
	}
	defer port.Close()
	log.Printf("gnss serial port opened on %s at %d baud", serialOpts.PortName, serialOpts.BaudRate)

	reader := bufio.NewReader(port)

	var position gps.Position
	var velocity gps.Velocity
	var quality gps.Quality

	var satelliteBuffer []gps.Satellite
	var gpsSats, glonassSats []gps.Satellite

	publishJSON := func(topic string, data interface{}) {
		payload, err := json.Marshal(data)
		if err != nil {
			log.Printf("JSON marshal error for %s: %v", topic, err)
			return
		}
		token := client.Publish(topic, 0, false, payload)
		token.Wait()
		if token.Error() != nil {
			log.Printf("publish error to %s: %v", topic, token.Error())
		}
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Printf("gnss read error: %v", err)
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			continue
		}

		switch sentence.DataType() {
		case nmea.TypeRMC:
			m := sentence.(nmea.RMC)

			position.Time = m.Time.String()
			position.Date = m.Date.String()
			position.Latitude = m.Latitude
			position.Longitude = m.Longitude
			position.Validity = string(m.Validity)

			velocity.SpeedKnots = m.Speed
			velocity.CourseDeg = m.Course

			publishJSON(cfg.TopicGNSSPosition, position)
			publishJSON(cfg.TopicGNSSVelocity, velocity)

			log.Printf("gnss: lat=%.6f lon=%.6f speed=%.1fkn course=%.1f valid=%s",
				position.Latitude, position.Longitude, velocity.SpeedKnots, velocity.CourseDeg, position.Validity)

		case nmea.TypeGGA:
			m := sentence.(nmea.GGA)

			position.Altitude = m.Altitude
			quality.NumSatellites = m.NumSatellites
			quality.HDOP = m.HDOP

			switch m.FixQuality {
			case "0":
				quality.FixQuality = "invalid"
			case "1":
				quality.FixQuality = "GPS"
			case "2":
				quality.FixQuality = "DGPS"
			case "4":
				quality.FixQuality = "RTK fixed"
			case "5":
				quality.FixQuality = "RTK float"
			default:
				quality.FixQuality = m.FixQuality
			}

			publishJSON(cfg.TopicGNSSPosition, position)
			publishJSON(cfg.TopicGNSSQuality, quality)

		case nmea.TypeGSA:
			m := sentence.(nmea.GSA)

			switch m.FixType {
			case "1":
				quality.FixType = "no fix"
			case "2":
				quality.FixType = "2D"
			case "3":
				quality.FixType = "3D"
			default:
				quality.FixType = m.FixType
			}
			quality.PDOP = m.PDOP
			quality.HDOP = m.HDOP
			quality.VDOP = m.VDOP

			publishJSON(cfg.TopicGNSSQuality, quality)

		case nmea.TypeVTG:
			m := sentence.(nmea.VTG)
			velocity.SpeedKmh = m.GroundSpeedKPH
			publishJSON(cfg.TopicGNSSVelocity, velocity)

		case nmea.TypeGSV:
			m := sentence.(nmea.GSV)

			if m.MessageNumber == 1 {
				satelliteBuffer = make([]gps.Satellite, 0)
			}
			for _, sv := range m.Info {
				satelliteBuffer = append(satelliteBuffer, gps.Satellite{
					SVNumber:  sv.SVPRNNumber,
					Elevation: sv.Elevation,
					Azimuth:   sv.Azimuth,
					SNR:       sv.SNR,
				})
			}
			if m.MessageNumber == m.TotalMessages {
				if m.Talker == "GL" {
					glonassSats = satelliteBuffer
				} else {
					gpsSats = satelliteBuffer
				}
				publishJSON(cfg.TopicGNSSSatellites, gps.SatellitesInView{
					GPSSatellites:     gpsSats,
					GLONASSSatellites: glonassSats,
					GPSCount:          len(gpsSats),
					GLONASSCount:      len(glonassSats),
				})
			}

		default:
		}
	}
}
