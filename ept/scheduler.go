package ept

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// DefaultIdleWindow is how long a resource may sit unused in the Registry
// before the Scheduler sweeps it out.
const DefaultIdleWindow = 30 * time.Minute

// DefaultSweepInterval is how often the Scheduler checks for idle
// resources.
const DefaultSweepInterval = 5 * time.Minute

// Scheduler periodically evicts idle EPTResources from a Registry. It does
// not shorten any single resource's in-process cache lifetime (§3); it
// only bounds how many resources a long-running server process keeps
// around once traffic to them has stopped, the server-operations concern
// spec.md's single-resource scope leaves unaddressed.
type Scheduler struct {
	scheduler gocron.Scheduler
	registry  *Registry
	logger    *log.Logger
}

// NewScheduler creates a Scheduler that sweeps registry every interval,
// evicting resources idle for longer than idleWindow.
func NewScheduler(registry *Registry, interval, idleWindow time.Duration, logger *log.Logger) (*Scheduler, error) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if idleWindow <= 0 {
		idleWindow = DefaultIdleWindow
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	sched := &Scheduler{scheduler: s, registry: registry, logger: logger}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			evicted := registry.EvictIdle(idleWindow)
			if len(evicted) > 0 {
				logger.Printf("evicted %d idle resources: %v", len(evicted), evicted)
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	return sched, nil
}

// Start begins the periodic sweep.
func (s *Scheduler) Start() {
	s.scheduler.Start()
}

// Shutdown stops the sweep.
func (s *Scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}
