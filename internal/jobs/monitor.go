package jobs

import (
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/robfig/cron/v3"

	"domus/internal/services"
)

// ProactiveMonitor runs the scheduled background sweeps: confidence decay
// recomputation and expiry detection. Findings surface as bus events, so
// the notification path is identical whether a problem is found during
// snapshot processing or by the monitor.
type ProactiveMonitor struct {
	scheduler gocron.Scheduler
	inventory *services.InventoryService
	cronExpr  string
}

// NewProactiveMonitor creates the monitor with a validated cron expression
func NewProactiveMonitor(inventory *services.InventoryService, cronExpr string) (*ProactiveMonitor, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(cronExpr); err != nil {
		return nil, fmt.Errorf("invalid monitor cron %q: %w", cronExpr, err)
	}

	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	return &ProactiveMonitor{
		scheduler: scheduler,
		inventory: inventory,
		cronExpr:  cronExpr,
	}, nil
}

// Start registers the sweep jobs and begins the scheduler
func (m *ProactiveMonitor) Start() error {
	_, err := m.scheduler.NewJob(
		gocron.CronJob(m.cronExpr, false),
		gocron.NewTask(m.runSweep),
		gocron.WithName("inventory_sweep"),
	)
	if err != nil {
		return fmt.Errorf("register inventory sweep: %w", err)
	}

	m.scheduler.Start()
	log.Printf("🚀 [MONITOR] proactive monitor started (cron: %s)", m.cronExpr)
	return nil
}

// runSweep performs one decay and expiry pass over every tracked household
func (m *ProactiveMonitor) runSweep() {
	started := time.Now()
	now := started.UTC()

	stale := m.inventory.DecaySweep(now)
	expired, expiring := m.inventory.ExpirySweep(now)

	log.Printf("🔍 [MONITOR] sweep done in %v: stale=%d expired=%d expiring=%d",
		time.Since(started).Round(time.Millisecond), stale, expired, expiring)
}

// RunNow triggers a sweep outside the schedule
func (m *ProactiveMonitor) RunNow() {
	m.runSweep()
}

// Stop shuts the scheduler down, waiting for a running sweep to finish
func (m *ProactiveMonitor) Stop() error {
	return m.scheduler.Shutdown()
}
