package worker

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/tinyopds/tinyopds/pkg/jobs"
)

// scheduleScans enqueues a scan job every ScanIntervalMinutes. An interval of
// zero or an empty library path disables the schedule; the goroutine then only
// waits for shutdown so the handshake in Shutdown still completes.
func (w *Worker) scheduleScans() {
	if w.config.ScanIntervalMinutes <= 0 || w.config.LibraryPath == "" {
		<-w.shutdown
		w.doneScheduling <- struct{}{}
		return
	}

	interval := time.Duration(w.config.ScanIntervalMinutes) * time.Minute
	timer := time.NewTimer(interval)

	for {
		select {
		case <-w.shutdown:
			w.doneScheduling <- struct{}{}
			return
		case <-timer.C:
			if err := w.EnqueueScan(context.Background(), jobs.JobScanData{}); err != nil {
				w.log.Err(err).Error("enqueue scan error")
			}
			timer.Reset(interval)
		}
	}
}

// EnqueueScan creates a pending scan job unless one is already pending or in
// progress.
func (w *Worker) EnqueueScan(ctx context.Context, data jobs.JobScanData) error {
	hasActive, err := w.jobService.HasActiveJobByType(ctx, jobs.JobTypeScan)
	if err != nil {
		return errors.WithStack(err)
	}
	if hasActive {
		return nil
	}

	job := &jobs.Job{
		Type:       jobs.JobTypeScan,
		Status:     jobs.JobStatusPending,
		DataParsed: &data,
	}
	return errors.WithStack(w.jobService.CreateJob(ctx, job))
}
