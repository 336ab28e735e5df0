package relay

import (
	"log"
	"sync"
	"time"
)

type JanitorConfig struct {
	Interval        time.Duration
	UpdateThreshold int
	KeepRecent      int
}

func DefaultJanitorConfig() JanitorConfig {
	return JanitorConfig{
		Interval:        5 * time.Minute,
		UpdateThreshold: 100,
		KeepRecent:      10,
	}
}

// Janitor keeps the hub's per-room update logs bounded: rooms that
// accumulate more than the threshold get their older updates folded into
// a single merged entry
type Janitor struct {
	hub    *Hub
	config JanitorConfig
	stop   chan struct{}
	wg     sync.WaitGroup
}

func NewJanitor(hub *Hub, config JanitorConfig) *Janitor {
	return &Janitor{
		hub:    hub,
		config: config,
		stop:   make(chan struct{}),
	}
}

func (j *Janitor) Start() {
	j.wg.Add(1)
	go j.run()
	log.Printf("Janitor started (interval: %v, threshold: %d updates)",
		j.config.Interval, j.config.UpdateThreshold)
}

func (j *Janitor) Stop() {
	close(j.stop)
	j.wg.Wait()
	log.Println("Janitor stopped")
}

func (j *Janitor) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stop:
			return
		case <-ticker.C:
			if trimmed := j.hub.trimLogs(j.config.UpdateThreshold, j.config.KeepRecent); trimmed > 0 {
				log.Printf("Trimmed update logs for %d rooms", trimmed)
			}
		}
	}
}
