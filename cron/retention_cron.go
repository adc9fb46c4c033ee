package cron

import (
	"fmt"
	"log"
	"sync"
	"time"

	"clipvault/catalog"
	"clipvault/metrics"

	"github.com/robfig/cron/v3"
)

// RetentionCron runs the storage budget check on an interval and prunes old
// assembly metrics once a day. Checks never overlap: a pass that is still
// deleting when the next fires makes the new one skip.
type RetentionCron struct {
	cron            *cron.Cron
	evictor         *catalog.Evictor
	collector       *metrics.Collector
	cameras         []string
	intervalMinutes int

	mu      sync.Mutex
	running bool
}

// NewRetentionCron creates the retention cron for the given cameras
func NewRetentionCron(evictor *catalog.Evictor, collector *metrics.Collector, cameras []string, intervalMinutes int) *RetentionCron {
	if intervalMinutes < 1 {
		intervalMinutes = 1
	}
	return &RetentionCron{
		cron:            cron.New(),
		evictor:         evictor,
		collector:       collector,
		cameras:         cameras,
		intervalMinutes: intervalMinutes,
	}
}

// Start begins the retention schedules. Returns immediately.
func (r *RetentionCron) Start() error {
	log.Printf("Starting retention cron job (budget check every %d minutes)", r.intervalMinutes)

	if _, err := r.cron.AddFunc(fmt.Sprintf("@every %dm", r.intervalMinutes), r.runBudgetCheck); err != nil {
		return err
	}
	if _, err := r.cron.AddFunc("@every 24h", func() {
		r.collector.CleanupOldMetrics(24 * time.Hour)
	}); err != nil {
		return err
	}

	r.cron.Start()

	// Run the first check immediately so a full disk gets relief at startup
	go r.runBudgetCheck()
	return nil
}

// Stop stops the retention cron job
func (r *RetentionCron) Stop() {
	log.Println("Stopping retention cron job")
	r.cron.Stop()
}

// IsRunning reports whether a budget check is in progress
func (r *RetentionCron) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *RetentionCron) runBudgetCheck() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		log.Println("Retention check still running, skipping this pass")
		return
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	start := time.Now()
	r.evictor.CheckAll(r.cameras)
	log.Printf("📊 Retention check completed in %v", time.Since(start))
}
