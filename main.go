package main

import (
	"flag"
	"log"

	"Sightline/internal/server"
)

func main() {
	addr := flag.String("addr", "", "address to listen on (overrides config file)")
	configPath := flag.String("config", "configs/server.yaml", "path to server config YAML")
	overrideDB := flag.String("override-db", "", "path to the override SQLite db (overrides config file)")
	journalDir := flag.String("journal-dir", "", "directory for pass journals (overrides config file)")
	flag.Parse()

	cfg, err := server.LoadServerConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *overrideDB != "" {
		cfg.OverrideDB = *overrideDB
	}
	if *journalDir != "" {
		cfg.JournalDir = *journalDir
	}

	server.StartApp(cfg)
}
