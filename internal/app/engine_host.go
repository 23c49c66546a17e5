// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/dr-engine/internal/config"
	"github.com/relabs-tech/dr-engine/internal/engine"
	"github.com/relabs-tech/dr-engine/internal/fusion"
	"github.com/relabs-tech/dr-engine/internal/gps"
	"github.com/relabs-tech/dr-engine/internal/monitor"
	"github.com/relabs-tech/dr-engine/internal/sensoradj"
)

// Default reference accuracies for GNSS-derived heading/speed, since
// NMEA sentences don't carry an explicit uncertainty figure. These are
// conservative placeholders a real receiver's NMEA extensions (e.g.
// PUBX) could refine.
const (
	defaultGNSSHeadingAccuracyDeg = 5.0
	defaultGNSSSpeedAccuracyMS    = 0.5
	defaultGNSSPositionAccuracyM  = 10.0
	knotsToMS                     = 0.514444
)

type rawSensorReading struct {
	Timestamp float64 `json:"timestamp"`
	Value     float64 `json:"value"`
}

// RunEngineHost subscribes to the GNSS and raw-sensor topics, drives
// the dead-reckoning engine, and republishes the fused position. It
// persists the engine's calibration state to disk on a clean shutdown
// and restores it from there on the next start.
func RunEngineHost() error {
	cfg := config.Get()
	startTime := time.Now()
	elapsed := func() float64 { return time.Since(startTime).Seconds() }

	tuning := engine.Tuning{
		Gyro: sensoradj.GyroLimits{
			HeadInterval:      cfg.GyroHeadIntervalS,
			HeadHysteresis:    cfg.GyroHeadHysteresisS,
			HeadMin:           cfg.GyroHeadMinDeg,
			HeadMax:           cfg.GyroHeadMaxDeg,
			HeadAccuracyRatio: cfg.GyroHeadAccuracyRatio,
			GyroInterval:      cfg.GyroRawIntervalS,
			GyroHysteresis:    cfg.GyroRawHysteresisS,
			GyroMin:           cfg.GyroRawMin,
			GyroMax:           cfg.GyroRawMax,
			ReliableThreshold: cfg.GyroReliableThreshold,
		},
		Odo: sensoradj.OdoLimits{
			SpeedInterval:      cfg.OdoSpeedIntervalS,
			SpeedHysteresis:    cfg.OdoSpeedHysteresisS,
			SpeedMin:           cfg.OdoSpeedMinMS,
			SpeedMax:           cfg.OdoSpeedMaxMS,
			SpeedAccuracyRatio: cfg.OdoSpeedAccuracyRatio,
			OdoInterval:        cfg.OdoRawIntervalS,
			OdoHysteresis:      cfg.OdoRawHysteresisS,
			OdoMin:             cfg.OdoRawMinTicks,
			OdoMax:             cfg.OdoRawMaxTicks,
			MaxTicks:           cfg.OdoMaxTickValue,
			ReliableThreshold:  cfg.OdoReliableThreshold,
		},
	}

	savedCfg := ""
	if data, err := os.ReadFile(cfg.CalibrationFile); err == nil {
		savedCfg = string(data)
		log.Printf("engine host: restored calibration from %s", cfg.CalibrationFile)
	}

	var (
		mu      sync.Mutex
		eng     *engine.Engine
		started bool
	)

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDEngineHost)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("engine host: connected to MQTT broker at %s", cfg.MQTTBroker)

	// ensureStartedLocked must be called with mu held.
	ensureStartedLocked := func(latDeg, lonDeg, headingDeg float64) {
		if !started {
			pos := fusion.Position{LatitudeDeg: latDeg, LongitudeDeg: lonDeg, HorizontalAccuracyM: defaultGNSSPositionAccuracyM}
			eng = engine.Start(savedCfg, tuning, elapsed(), pos, headingDeg, defaultGNSSHeadingAccuracyDeg)
			started = true
			log.Printf("engine host: engine started at lat=%.6f lon=%.6f", latDeg, lonDeg)
		}
	}

	positionToken := client.Subscribe(cfg.TopicGNSSPosition, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var p gps.Position
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			log.Printf("engine host: position unmarshal error: %v", err)
			return
		}
		if p.Validity != "A" {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		ensureStartedLocked(p.Latitude, p.Longitude, 0)
		eng.SendCoordinates(elapsed(), p.Latitude, p.Longitude, defaultGNSSPositionAccuracyM)
	})
	positionToken.Wait()
	if positionToken.Error() != nil {
		return positionToken.Error()
	}

	velocityToken := client.Subscribe(cfg.TopicGNSSVelocity, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var v gps.Velocity
		if err := json.Unmarshal(msg.Payload(), &v); err != nil {
			log.Printf("engine host: velocity unmarshal error: %v", err)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if !started {
			return
		}
		eng.SendSpeed(elapsed(), v.SpeedKnots*knotsToMS, defaultGNSSSpeedAccuracyMS)
		eng.SendHeading(elapsed(), v.CourseDeg, defaultGNSSHeadingAccuracyDeg)
	})
	velocityToken.Wait()
	if velocityToken.Error() != nil {
		return velocityToken.Error()
	}

	gyroToken := client.Subscribe(cfg.TopicRawGyro, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r rawSensorReading
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if !started {
			return
		}
		eng.SendGyro(r.Timestamp, r.Value)
	})
	gyroToken.Wait()
	if gyroToken.Error() != nil {
		return gyroToken.Error()
	}

	odoToken := client.Subscribe(cfg.TopicRawOdo, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r rawSensorReading
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if !started {
			return
		}
		eng.SendOdo(r.Timestamp, r.Value)
	})
	odoToken.Wait()
	if odoToken.Error() != nil {
		return odoToken.Error()
	}

	snapshotFn := func() monitor.Snapshot {
		mu.Lock()
		defer mu.Unlock()
		if !started {
			return monitor.Snapshot{Ready: false}
		}
		pos, ok := eng.ReceivePosition()
		d, _, _ := eng.ReceiveDistance()
		return monitor.Snapshot{
			Position: pos,
			Distance: d,
			Gyro:     eng.ReceiveGyroStatus(),
			Odo:      eng.ReceiveOdoStatus(),
			Ready:    ok,
		}
	}

	publishJSON := func(topic string, data interface{}) {
		payload, err := json.Marshal(data)
		if err != nil {
			return
		}
		client.Publish(topic, 0, true, payload)
	}

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for range ticker.C {
			snap := snapshotFn()
			if !snap.Ready {
				continue
			}
			publishJSON(cfg.TopicFusedPosition, snap.Position)
			publishJSON(cfg.TopicCalibrationGyro, snap.Gyro)
			publishJSON(cfg.TopicCalibrationOdo, snap.Odo)
		}
	}()

	go func() {
		if err := monitor.Run(cfg.MonitorPort, snapshotFn, time.Second); err != nil {
			log.Printf("engine host: monitor server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("engine host: shutting down")
	mu.Lock()
	if started {
		if err := os.WriteFile(cfg.CalibrationFile, []byte(eng.Stop()), 0644); err != nil {
			log.Printf("engine host: failed to persist calibration: %v", err)
		} else {
			log.Printf("engine host: calibration persisted to %s", cfg.CalibrationFile)
		}
	}
	mu.Unlock()
	client.Disconnect(250)
	return nil
}
