// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/dr-engine/internal/config"
	"github.com/relabs-tech/dr-engine/internal/engine"
)

// RunConsole subscribes to the fused-position topic and prints every
// update to standard output until interrupted.
func RunConsole() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicFusedPosition, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var p engine.Position
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			log.Printf("console: fused position unmarshal error: %v", err)
			return
		}
		fmt.Printf(
			"t=%8.2f  lat=%9.6f  lon=%9.6f  head=%6.2f  speed=%6.2f m/s\n",
			p.Timestamp, p.LatitudeDeg, p.LongitudeDeg, p.HeadingDeg, p.SpeedMS,
		)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("console subscribed to MQTT topic %s", cfg.TopicFusedPosition)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console shutting down")
	client.Disconnect(250)
	return nil
}
