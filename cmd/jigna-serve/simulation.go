package main

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jigna-sync/jigna-go/pkg/model"
	"github.com/jigna-sync/jigna-go/pkg/session"
)

var simFruits = []string{"apple", "banana", "cherry", "peach", "pear", "plum"}

// simulation changes the demo model periodically so that every connected
// page sees server-originated updates.
type simulation struct {
	session  *session.Session
	person   *model.Model
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

func newSimulation(sess *session.Session, person *model.Model, interval time.Duration) *simulation {
	return &simulation{session: sess, person: person, interval: interval}
}

// Start begins ticking. It is a no-op while running.
func (s *simulation) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	var ctx context.Context
	ctx, s.cancel = context.WithCancel(context.Background())
	s.running = true
	go s.run(ctx)
	log.Println("[SIM] Simulation started")
}

// Stop halts ticking.
func (s *simulation) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cancel()
	s.running = false
	log.Println("[SIM] Simulation stopped")
}

// Running reports whether the simulation is ticking.
func (s *simulation) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *simulation) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var tick int
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick++
			err := s.session.Update(ctx, func(context.Context) error {
				return s.step(tick)
			})
			if err != nil {
				log.Printf("[SIM] Update failed: %v", err)
				if ctx.Err() == nil {
					s.Stop()
				}
				return
			}
		}
	}
}

// step ages Fred by a year and rotates his fruit basket.
func (s *simulation) step(tick int) error {
	age, err := s.person.Get("age")
	if err != nil {
		return err
	}
	n, _ := age.(int64)
	next := n + 1
	if next > 99 {
		next = 18
	}
	if err := s.person.Set("age", next); err != nil {
		return err
	}

	if tick%3 == 0 {
		i := (tick / 3) % len(simFruits)
		j := (i + 1) % len(simFruits)
		if err := s.person.Set("fruits", []string{simFruits[i], simFruits[j]}); err != nil {
			return err
		}
	}
	log.Printf("[SIM] Fred is now %d", next)
	return nil
}
