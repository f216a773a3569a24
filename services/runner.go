package services

import (
	"context"
	"log"
	"time"

	"hostpilot-server/models"
	"hostpilot-server/storage"
)

// parseTaskTTL is how long completed parse tasks keep their payload before
// cleanup. Errored tasks are kept; they hold the payload for re-parse.
const parseTaskTTL = 30 * 24 * time.Hour

// Runner owns the background loops: scheduling, dispatch, notification
// drain, parse-queue processing and payload cleanup. One Runner per
// process; the Redis locks keep multi-instance deployments from double
// firing.
type Runner struct {
	scheduler     *Scheduler
	dispatcher    *Dispatcher
	parser        *EmailParser
	notifications *NotificationService
	clock         Clock
	stop          chan struct{}
}

func NewRunner(scheduler *Scheduler, dispatcher *Dispatcher, parser *EmailParser, notifications *NotificationService, clock Clock) *Runner {
	return &Runner{
		scheduler:     scheduler,
		dispatcher:    dispatcher,
		parser:        parser,
		notifications: notifications,
		clock:         clock,
		stop:          make(chan struct{}),
	}
}

// Start launches the loops. Call once.
func (r *Runner) Start() {
	go r.loop("automations", 15*time.Minute, r.runAutomations)
	go r.loop("notifications", time.Minute, r.runNotifications)
	go r.loop("parser", 5*time.Minute, r.runParser)
	go r.loop("cleanup", 24*time.Hour, r.runCleanup)
	log.Println("🔧 Runner started")
}

// Stop shuts the loops down. In-flight iterations finish.
func (r *Runner) Stop() {
	close(r.stop)
}

func (r *Runner) loop(name string, interval time.Duration, task func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.runLocked(name, task)
		}
	}
}

// runLocked takes a best-effort Redis lock so only one instance runs the
// task per interval. Without Redis the task just runs; single-instance
// deployments need no lock.
func (r *Runner) runLocked(name string, task func()) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("❌ RUNNER: %s panicked: %v", name, rec)
		}
	}()

	if storage.Redis != nil {
		ctx := context.Background()
		ok, err := storage.Redis.SetNX(ctx, "runner:lock:"+name, 1, 10*time.Minute).Result()
		if err == nil && !ok {
			log.Printf("⏭  RUNNER: %s locked by another instance", name)
			return
		}
		if err == nil {
			defer storage.Redis.Del(ctx, "runner:lock:"+name)
		}
	}

	task()
}

func (r *Runner) runAutomations() {
	fired := r.scheduler.Tick()
	sent := r.dispatcher.DrainPending()
	if fired > 0 || sent > 0 {
		log.Printf("✅ RUNNER: automations fired %d, dispatched %d", fired, sent)
	}
}

func (r *Runner) runNotifications() {
	r.notifications.Drain()
}

func (r *Runner) runParser() {
	queued := r.parser.QueueInitTasks()
	if queued > 0 {
		log.Printf("🔧 RUNNER: queued %d parse tasks", queued)
	}
	r.parser.ProcessQueued()
}

// runCleanup strips payloads from old completed parse tasks. The row and
// its outcome survive; only the bulky body columns go.
func (r *Runner) runCleanup() {
	cutoff := r.clock().Add(-parseTaskTTL)
	result := storage.DB.Model(&models.ParseEmailTask{}).
		Where("status = ? AND updated_at < ?", models.ParseCompleted, cutoff).
		Where("html <> '' OR text <> '' OR headers <> ''").
		Updates(map[string]interface{}{"html": "", "text": "", "headers": ""})
	if result.Error != nil {
		log.Printf("❌ RUNNER: cleanup: %v", result.Error)
		return
	}
	if result.RowsAffected > 0 {
		log.Printf("✅ RUNNER: cleaned %d parse task payloads", result.RowsAffected)
	}
}
