package dispatcher

import (
	"context"
	"log"
	"sync"
	"time"

	"mini-crm/mailer"
	"mini-crm/models"
	"mini-crm/monitoring"
	"mini-crm/utils"
)

// claimTimeout is how long a claimed job may sit unacknowledged before a
// poller assumes its claimer died and requeues it.
const claimTimeout = 5 * time.Minute

// ReminderStore is the slice of the repository the dispatcher needs.
type ReminderStore interface {
	CompleteDueReminder(ctx context.Context, id uint, send func(r *models.Reminder, lead *models.Lead) error) (models.DispatchOutcome, error)
}

// Dispatcher polls the delayed queue for due reminder jobs and executes
// them on a small worker pool. Execution is idempotent: the status gate in
// CompleteDueReminder makes a stale or duplicate job a no-op, so the queue
// only has to deliver at least once.
type Dispatcher struct {
	store        ReminderStore
	queue        Queue
	mail         mailer.Mailer
	logger       *log.Logger
	pollInterval time.Duration
	workers      int

	shutdown chan struct{}
	wg       sync.WaitGroup
}

func New(store ReminderStore, queue Queue, mail mailer.Mailer, logger *log.Logger, pollInterval time.Duration, workers int) *Dispatcher {
	if pollInterval <= 0 {
		pollInterval = 15 * time.Second
	}
	if workers <= 0 {
		workers = 4
	}
	return &Dispatcher{
		store:        store,
		queue:        queue,
		mail:         mail,
		logger:       logger,
		pollInterval: pollInterval,
		workers:      workers,
		shutdown:     make(chan struct{}),
	}
}

// Schedule enqueues one deferred job for the reminder, to run no earlier
// than fireAt. Callers validate fireAt; the queue takes it as given.
func (d *Dispatcher) Schedule(ctx context.Context, reminderID uint, fireAt time.Time) error {
	return d.queue.Schedule(ctx, reminderID, fireAt)
}

// Start launches the poll loop and workers. They run until Stop.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Printf("Starting reminder dispatcher: poll=%s workers=%d", d.pollInterval, d.workers)

	jobs := make(chan Job)

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for job := range jobs {
				d.Execute(ctx, job.ReminderID)
				// Acknowledge off the request context; an unacked job would
				// come back through ReclaimStale and fire a duplicate.
				if err := d.queue.Complete(context.Background(), job); err != nil {
					d.logger.Printf("Failed to acknowledge reminder job %s: %v", job.ID, err)
				}
			}
		}()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer close(jobs)

		ticker := time.NewTicker(d.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-d.shutdown:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.poll(ctx, jobs)
			}
		}
	}()
}

func (d *Dispatcher) Stop() {
	close(d.shutdown)
	d.wg.Wait()
}

func (d *Dispatcher) poll(ctx context.Context, jobs chan<- Job) {
	now := time.Now()

	reclaimed, err := d.queue.ReclaimStale(ctx, now.Add(-claimTimeout))
	if err != nil {
		d.logger.Printf("Failed to reclaim stalled reminder jobs: %v", err)
		utils.CaptureError(err, map[string]interface{}{"component": "dispatcher"})
	} else if reclaimed > 0 {
		d.logger.Printf("Requeued %d stalled reminder jobs", reclaimed)
	}

	claimed, err := d.queue.ClaimDue(ctx, now, 100)
	if err != nil {
		d.logger.Printf("Failed to claim due reminder jobs: %v", err)
		utils.CaptureError(err, map[string]interface{}{"component": "dispatcher"})
		return
	}

	// Claimed jobs have already left the schedule, so the whole batch is
	// handed over even when a shutdown arrives mid-loop. The workers keep
	// draining the channel until the poller returns and closes it.
	for _, job := range claimed {
		monitoring.ReminderJobsClaimed.Inc()
		jobs <- job
	}
}

// Execute runs one reminder job. A missing reminder, a non-PENDING status
// and a lead without an email address are all quiet no-ops; only the wall
// clock is never re-checked, the scheduler's timing is trusted.
func (d *Dispatcher) Execute(ctx context.Context, reminderID uint) {
	var sendErr error

	outcome, err := d.store.CompleteDueReminder(ctx, reminderID, func(r *models.Reminder, lead *models.Lead) error {
		email, err := mailer.RenderReminderEmail(lead.Name, r.Message, r.RemindAt)
		if err != nil {
			sendErr = err
			return err
		}
		if err := d.mail.Send(ctx, lead.Email, email.Subject, email.PlainBody, email.HTMLBody); err != nil {
			sendErr = err
			return err
		}
		return nil
	})
	if err != nil {
		d.logger.Printf("Reminder %d dispatch failed: %v", reminderID, err)
		utils.CaptureError(err, map[string]interface{}{"reminder_id": reminderID})
		return
	}

	switch outcome {
	case models.DispatchSent:
		monitoring.ReminderEmailsSent.Inc()
		d.logger.Printf("Reminder %d sent and completed", reminderID)
	case models.DispatchSendFailed:
		monitoring.ReminderSendFailures.Inc()
		d.logger.Printf("Reminder %d email failed, left pending: %v", reminderID, sendErr)
		utils.CaptureError(sendErr, map[string]interface{}{"reminder_id": reminderID})
	case models.DispatchNoEmail:
		monitoring.ReminderJobsSkipped.Inc()
		d.logger.Printf("Reminder %d skipped: lead has no email address", reminderID)
	case models.DispatchNotPending:
		monitoring.ReminderJobsSkipped.Inc()
		d.logger.Printf("Reminder %d skipped: no longer pending", reminderID)
	case models.DispatchNotFound:
		monitoring.ReminderJobsSkipped.Inc()
		d.logger.Printf("Reminder %d skipped: deleted before the job fired", reminderID)
	}
}
