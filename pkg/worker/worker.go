package worker

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/tinyopds/tinyopds/pkg/config"
	"github.com/tinyopds/tinyopds/pkg/jobs"
	"github.com/tinyopds/tinyopds/pkg/library"
	"github.com/tinyopds/tinyopds/pkg/stats"
	"github.com/uptrace/bun"
)

var processID = randStringBytes(8)

type Worker struct {
	config *config.Config
	log    logger.Logger
	stats  *stats.Stats

	processFuncs map[string]func(ctx context.Context, job *jobs.Job) error

	jobService     *jobs.Service
	libraryService *library.Service

	queue          chan *jobs.Job
	shutdown       chan struct{}
	doneFetching   chan struct{}
	doneScheduling chan struct{}
	doneReporting  chan struct{}
	doneProcessing chan struct{}
}

func New(cfg *config.Config, db *bun.DB, st *stats.Stats) *Worker {
	jobService := jobs.NewService(db)
	libraryService := library.NewService(db, cfg.CyrillicFirst)

	w := &Worker{
		config: cfg,
		log:    logger.New(),
		stats:  st,

		jobService:     jobService,
		libraryService: libraryService,

		queue:          make(chan *jobs.Job, cfg.WorkerProcesses),
		shutdown:       make(chan struct{}),
		doneFetching:   make(chan struct{}),
		doneScheduling: make(chan struct{}),
		doneReporting:  make(chan struct{}),
		doneProcessing: make(chan struct{}, cfg.WorkerProcesses),
	}

	w.processFuncs = map[string]func(ctx context.Context, job *jobs.Job) error{
		jobs.JobTypeScan: w.ProcessScanJob,
	}

	return w
}

func (w *Worker) Start() {
	go w.fetchJobs()
	go w.scheduleScans()
	go w.reportStats()
	for i := 0; i < w.config.WorkerProcesses; i++ {
		go w.processJobs()
	}
}

func (w *Worker) fetchJobs() {
	duration := 5 * time.Second
	timer := time.NewTimer(duration)

	for {
		select {
		case <-w.shutdown:
			// We're shutting down, so stop adding more jobs to the queue.
			w.doneFetching <- struct{}{}
			return
		case <-timer.C:
			j, err := w.jobService.ListJobs(context.Background(), jobs.ListJobsOptions{
				Limit:              pointerutil.Int(1),
				Statuses:           []string{jobs.JobStatusPending, jobs.JobStatusInProgress},
				ProcessIDToExclude: &processID,
			})
			if err != nil {
				w.log.Err(err).Error("list jobs error")
				timer.Reset(duration)
				continue
			}
			for _, job := range j {
				w.queue <- job
			}
			timer.Reset(duration)
		}
	}
}

func (w *Worker) processJobs() {
	for {
		select {
		case <-w.shutdown:
			w.doneProcessing <- struct{}{}
			return
		case job := <-w.queue:
			// Prep the context to be passed down to the process function.
			id, err := uuid.NewRandom()
			if err != nil {
				w.log.Err(err).Error("new uuid error")
				continue
			}
			log := w.log.ID(id.String()).Root(logger.Data{"job_id": job.ID, "type": job.Type, "process_id": processID})
			ctx := log.WithContext(context.Background())

			// Update job to be in progress and claimed by this process.
			job.Status = jobs.JobStatusInProgress
			job.ProcessID = &processID

			err = w.jobService.UpdateJob(ctx, job, jobs.UpdateJobOptions{
				Columns: []string{"status", "process_id"},
			})
			if err != nil {
				log.Err(err).Error("update job error")
				continue
			}

			// Find and invoke the appropriate process function.
			fn, ok := w.processFuncs[job.Type]
			if !ok {
				log.Error("can't find process function for type")
				continue
			}
			err = fn(ctx, job)
			if err != nil {
				log.Err(err).Error("process error")
				continue
			}

			// Update job to be completed so that it's not picked up anymore.
			job.Status = jobs.JobStatusCompleted

			err = w.jobService.UpdateJob(ctx, job, jobs.UpdateJobOptions{
				Columns: []string{"status"},
			})
			if err != nil {
				log.Err(err).Error("update job error")
				continue
			}
		}
	}
}

const statsInterval = time.Hour

func (w *Worker) reportStats() {
	timer := time.NewTimer(statsInterval)

	for {
		select {
		case <-w.shutdown:
			w.doneReporting <- struct{}{}
			return
		case <-timer.C:
			w.stats.Log(w.log)
			timer.Reset(statsInterval)
		}
	}
}

func (w *Worker) Shutdown() {
	close(w.shutdown)

	<-w.doneFetching
	<-w.doneScheduling
	<-w.doneReporting
	for i := 0; i < w.config.WorkerProcesses; i++ {
		<-w.doneProcessing
	}
}

const letterBytes = "abcdef0123456789"

func randStringBytes(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letterBytes[rand.Intn(len(letterBytes))]
	}
	return string(b)
}
