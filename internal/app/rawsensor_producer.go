// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/dr-engine/internal/config"
	"github.com/relabs-tech/dr-engine/internal/rawstream"
)

// rawSensorPayload is the JSON envelope published for every raw
// gyroscope or odometer sample.
type rawSensorPayload struct {
	Timestamp float64 `json:"timestamp"`
	Value     float64 `json:"value"`
}

// RunRawSensorProducer reads raw gyroscope and odometer samples off
// the companion-MCU serial line and republishes each as JSON to MQTT,
// one topic per sensor, for the engine host to feed into its sensor
// adjusters. When a SPI gyroscope device is configured, the gyro
// channel is read directly off the bus instead of the serial line.
func RunRawSensorProducer() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDRawSensor)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("MQTT connect error: %v", token.Error())
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("raw sensor producer connected to MQTT broker at %s", cfg.MQTTBroker)

	publish := func(topic string, ts, value float64) {
		payload, err := json.Marshal(rawSensorPayload{Timestamp: ts, Value: value})
		if err != nil {
			log.Printf("raw sensor marshal error: %v", err)
			return
		}
		if token := client.Publish(topic, 0, false, payload); token.Wait() && token.Error() != nil {
			log.Printf("MQTT publish error (%s): %v", topic, token.Error())
		}
	}

	spiGyro := cfg.RawGyroSPIDevice != ""
	if spiGyro {
		gyro, err := rawstream.OpenSPIGyro(cfg.RawGyroSPIDevice, cfg.RawGyroCSPin)
		if err != nil {
			return err
		}
		log.Printf("raw gyro SPI device opened on %s", cfg.RawGyroSPIDevice)

		go func() {
			ticker := time.NewTicker(time.Duration(cfg.GyroRawIntervalS * float64(time.Second)))
			defer ticker.Stop()
			for t := range ticker.C {
				counts, err := gyro.ReadZ()
				if err != nil {
					log.Printf("raw gyro SPI read error: %v", err)
					continue
				}
				publish(cfg.TopicRawGyro, float64(t.UnixNano())/1e9, float64(counts))
			}
		}()
	}

	src, err := rawstream.OpenSerialSource(cfg.RawSensorSerialPort, cfg.RawSensorBaudRate)
	if err != nil {
		return err
	}
	defer src.Close()
	log.Printf("raw sensor serial port opened on %s at %d baud", cfg.RawSensorSerialPort, cfg.RawSensorBaudRate)

	for {
		sample, err := src.Next()
		if err != nil {
			log.Printf("raw sensor read error: %v", err)
			return err
		}

		switch sample.Sensor {
		case "GYRO":
			if spiGyro {
				continue // gyro channel comes off the SPI bus instead
			}
			publish(cfg.TopicRawGyro, sample.Timestamp, sample.Value)
		case "ODO":
			publish(cfg.TopicRawOdo, sample.Timestamp, sample.Value)
		}
	}
}
