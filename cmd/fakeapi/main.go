package main

import (
	"log"

	"github.com/aussiebroadwan/countersign/internal/app"
)

func main() {
	cfg := app.LoadServerConfig()

	server, err := app.NewServer(cfg)
	if err != nil {
		log.Fatalf("failed to initialize fake backend: %v", err)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("fake backend error: %v", err)
	}
}
