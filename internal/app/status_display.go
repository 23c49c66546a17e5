// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/dr-engine/internal/config"
	"github.com/relabs-tech/dr-engine/internal/engine"
)

// RunStatusDisplay shows the latest fused position, heading, speed,
// and calibration progress on an SSD1306 OLED panel.
func RunStatusDisplay() error {
	cfg := config.Get()

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	display, err := ssd1306.NewI2C(bus, cfg.DisplayI2CAddr, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("status display: initialized at 0x%02X", cfg.DisplayI2CAddr)

	if err := showSplash(display); err != nil {
		log.Printf("status display: error showing splash: %v", err)
	}

	var (
		mu       sync.RWMutex
		latest   engine.Position
		gyro     engine.SensorStatus
		odo      engine.SensorStatus
		haveData bool
	)

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("status display: connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicFusedPosition, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var p engine.Position
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			log.Printf("status display: position unmarshal error: %v", err)
			return
		}
		mu.Lock()
		latest = p
		haveData = true
		mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}

	gyroToken := client.Subscribe(cfg.TopicCalibrationGyro, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s engine.SensorStatus
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			return
		}
		mu.Lock()
		gyro = s
		mu.Unlock()
	})
	gyroToken.Wait()
	if gyroToken.Error() != nil {
		return gyroToken.Error()
	}

	odoToken := client.Subscribe(cfg.TopicCalibrationOdo, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s engine.SensorStatus
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			return
		}
		mu.Lock()
		odo = s
		mu.Unlock()
	})
	odoToken.Wait()
	if odoToken.Error() != nil {
		return odoToken.Error()
	}
	log.Printf("status display: subscribed to %s", cfg.TopicFusedPosition)

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		mu.RLock()
		snapPos, snapHave := latest, haveData
		snapGyro, snapOdo := gyro, odo
		mu.RUnlock()

		if err := updatePositionDisplay(display, snapPos, snapGyro, snapOdo, snapHave); err != nil {
			log.Printf("status display: update error: %v", err)
		}
	}

	return nil
}

func blankImage() *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	for i := range img.Pix {
		img.Pix[i] = 0
	}
	return img
}

func updatePositionDisplay(dev *ssd1306.Dev, pos engine.Position, gyro, odo engine.SensorStatus, haveData bool) error {
	img := blankImage()
	drawer := &font.Drawer{Dst: img, Src: &image.Uniform{image1bit.On}, Face: basicfont.Face7x13}

	if !haveData {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte("Dead Reckoning"))
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte("Waiting..."))
		return dev.Draw(dev.Bounds(), img, image.Point{})
	}

	drawer.Dot = fixed.P(0, 13)
	drawer.DrawBytes([]byte(fmt.Sprintf("%8.5f %9.5f", pos.LatitudeDeg, pos.LongitudeDeg)))

	drawer.Dot = fixed.P(0, 26)
	drawer.DrawBytes([]byte(fmt.Sprintf("H:%5.1f S:%5.2f", pos.HeadingDeg, pos.SpeedMS)))

	drawer.Dot = fixed.P(0, 39)
	drawer.DrawBytes([]byte(fmt.Sprintf("A:%7.1fm", pos.HorizontalAccuracyM)))

	drawer.Dot = fixed.P(0, 52)
	drawer.DrawBytes([]byte(fmt.Sprintf("G:%3.0f%% O:%3.0f%%", gyro.ReliablePct, odo.ReliablePct)))

	return dev.Draw(dev.Bounds(), img, image.Point{})
}

func showSplash(dev *ssd1306.Dev) error {
	img := blankImage()
	drawer := &font.Drawer{Dst: img, Src: &image.Uniform{image1bit.On}, Face: basicfont.Face7x13}

	drawer.Dot = fixed.P(10, 26)
	drawer.DrawBytes([]byte("Dead Reckoning"))

	drawer.Dot = fixed.P(15, 43)
	drawer.DrawBytes([]byte("Fusion Engine"))

	return dev.Draw(dev.Bounds(), img, image.Point{})
}
