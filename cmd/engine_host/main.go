// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"log"

	"github.com/relabs-tech/dr-engine/internal/app"
	"github.com/relabs-tech/dr-engine/internal/config"
)

func main() {
	log.Println("starting dr-engine fusion host")

	if err := config.InitGlobal("dr-engine_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunEngineHost(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
