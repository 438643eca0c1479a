package server

import (
	"log"
	"time"

	"Sightline/internal/scene"
)

func StartApp(cfg ServerConfig) {
	visionCfg := cfg.VisionConfig()

	var store scene.OverrideStore
	if cfg.OverrideDB != "" {
		db, err := OpenOverrideStore(cfg.OverrideDB)
		if err != nil {
			log.Fatalf("open override store: %v", err)
		}
		defer db.Close()
		store = db
		log.Printf("override store: %s", cfg.OverrideDB)
	} else {
		store = NewMemoryOverrideStore()
	}

	var journal *PassJournal
	if cfg.JournalDir != "" {
		journal = NewPassJournal(cfg.JournalDir)
		defer journal.Close()
		log.Printf("pass journal: %s", cfg.JournalDir)
	}

	hub := NewHub(visionCfg, nil, store, journal)

	go func() {
		ticker := time.NewTicker(ReapInterval)
		defer ticker.Stop()
		for range ticker.C {
			hub.CleanupEmptyRooms()
		}
	}()

	log.Printf("starting server on %s (debounce %s, interest radius %.0f)",
		cfg.Addr, visionCfg.DebounceDelay, visionCfg.InterestRadius)
	startServer(hub, cfg.Addr)
}
