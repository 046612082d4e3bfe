// Package worker runs queued and scheduled report regeneration.
package worker

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"schoolattend/internal/attendance"
	"schoolattend/internal/engine"
	"schoolattend/internal/queue"
)

// Generator stores a freshly computed monthly report.
type Generator interface {
	GenerateReport(ctx context.Context, req engine.ReportRequest) (attendance.StoredReport, error)
}

// Worker consumes report jobs and enqueues the scheduled regeneration.
type Worker struct {
	gen   Generator
	q     queue.Queue
	log   *zap.Logger
	month func() engine.Month
}

// New builds a worker. month returns the month the scheduled job
// regenerates.
func New(gen Generator, q queue.Queue, month func() engine.Month, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{gen: gen, q: q, log: log, month: month}
}

// Handle processes one job. Unknown job types are ignored.
func (w *Worker) Handle(ctx context.Context, job queue.Job) error {
	if job.Type != queue.JobGenerateReport {
		w.log.Debug("ignoring job", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	var req engine.ReportRequest
	if err := job.Decode(&req); err != nil {
		return err
	}
	stored, err := w.gen.GenerateReport(ctx, req)
	if err != nil {
		return errors.Wrapf(err, "job %s", job.ID)
	}
	w.log.Info("report job done",
		zap.String("job_id", job.ID),
		zap.String("key", stored.Key),
		zap.String("generated_id", stored.GeneratedID),
	)
	return nil
}

// Run consumes jobs until ctx is done. Job failures are logged and do not
// stop the loop.
func (w *Worker) Run(ctx context.Context) error {
	jobs, err := w.q.Consume(ctx)
	if err != nil {
		return errors.Wrap(err, "queue consume init failed")
	}
	w.log.Info("worker started, waiting for jobs")
	for job := range jobs {
		if err := w.Handle(ctx, job); err != nil {
			w.log.Error("job failed", zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Error(err))
		}
	}
	w.log.Info("worker stopped")
	return nil
}

// EnqueueScheduled publishes the school-wide report job for the current
// month.
func (w *Worker) EnqueueScheduled(ctx context.Context) error {
	job, err := queue.NewJob(queue.JobGenerateReport, engine.ReportRequest{Month: w.month()})
	if err != nil {
		return err
	}
	if err := w.q.Publish(ctx, job); err != nil {
		return errors.Wrap(err, "publish scheduled report job")
	}
	w.log.Info("scheduled report job enqueued", zap.String("job_id", job.ID))
	return nil
}

// Schedule registers EnqueueScheduled on the cron expression in c. ctx bounds each
// publish.
func (w *Worker) Schedule(ctx context.Context, c *cron.Cron, expr string) (cron.EntryID, error) {
	id, err := c.AddFunc(expr, func() {
		if err := w.EnqueueScheduled(ctx); err != nil {
			w.log.Error("scheduled enqueue failed", zap.Error(err))
		}
	})
	return id, errors.Wrapf(err, "cron expression %q", expr)
}
