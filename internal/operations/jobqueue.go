package operations

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"licenseadmin/internal/config"
	apierrors "licenseadmin/internal/errors"
	"licenseadmin/internal/infrastructure"
	"licenseadmin/pkg/contracts/domain"
)

// ReportFunc lets a running job publish progress (0-100) and a status line.
type ReportFunc func(progress int, message string)

// Func is the body of a job. Its result is attached to the completed job.
type Func func(ctx context.Context, report ReportFunc) (any, error)

// Listener receives every job state change.
type Listener func(domain.JobSnapshot)

// Job is a submitted unit of work.
type Job struct {
	mu   sync.RWMutex
	snap domain.JobSnapshot
	fn   Func
	ctx  context.Context
	done chan struct{}
	err  error
}

// ID returns the job identifier.
func (j *Job) ID() string {
	return j.snap.ID
}

// Snapshot returns a copy of the current job state.
func (j *Job) Snapshot() domain.JobSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.snap
}

// Done is closed once the job reached a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Err returns the error the job failed with. It is only meaningful after
// Done is closed.
func (j *Job) Err() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.err
}

// Wait blocks until the job finished or ctx ends.
func (j *Job) Wait(ctx context.Context) (domain.JobSnapshot, error) {
	select {
	case <-j.done:
		return j.Snapshot(), nil
	case <-ctx.Done():
		return j.Snapshot(), ctx.Err()
	}
}

func (j *Job) update(fn func(s *domain.JobSnapshot)) domain.JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	fn(&j.snap)
	return j.snap
}

// Queue manages async job execution
type Queue struct {
	mu        sync.RWMutex
	submitMu  sync.Mutex
	jobs      chan *Job
	workers   int
	wg        sync.WaitGroup
	store     *MemoryJobStore
	logger    *slog.Logger
	metrics   *Metrics
	shutdown  chan struct{}
	started   bool
	stopped   bool // guarded by submitMu
	active    map[string]*Job
	listeners []Listener
}

// NewQueue creates a queue with cfg.Count workers and room for
// cfg.QueueSize pending jobs.
func NewQueue(cfg config.WorkersConfig, store *MemoryJobStore, logger *slog.Logger) *Queue {
	workers := cfg.Count
	if workers <= 0 {
		workers = 4
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = workers * 2
	}
	if store == nil {
		store = NewMemoryJobStore(0)
	}

	q := &Queue{
		jobs:     make(chan *Job, size),
		workers:  workers,
		store:    store,
		logger:   infrastructure.WithComponent(logger, "jobqueue"),
		shutdown: make(chan struct{}),
		active:   make(map[string]*Job),
	}
	if m, err := NewMetrics(otel.Meter(infrastructure.MeterName)); err == nil {
		q.metrics = m
	}
	return q
}

// OnUpdate registers a listener for job state changes.
func (q *Queue) OnUpdate(l Listener) {
	q.mu.Lock()
	q.listeners = append(q.listeners, l)
	q.mu.Unlock()
}

// Start begins processing jobs
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	q.logger.Info("starting job queue",
		slog.Int("workers", q.workers),
		slog.Int("queue_size", cap(q.jobs)))

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

// Stop stops accepting jobs and waits for running ones to finish. Jobs
// still waiting in the queue when the workers exit are failed.
func (q *Queue) Stop(timeout time.Duration) error {
	q.submitMu.Lock()
	if q.stopped {
		q.submitMu.Unlock()
		return nil
	}
	q.stopped = true
	q.submitMu.Unlock()

	q.logger.Info("stopping job queue")
	close(q.shutdown)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		q.logger.Warn("job queue stop timeout exceeded")
		return fmt.Errorf("timeout waiting for workers to finish")
	}

	for {
		select {
		case job := <-q.jobs:
			q.finish(job, nil, fmt.Errorf("job queue stopped before the job ran"))
		default:
			q.logger.Info("job queue stopped gracefully")
			return nil
		}
	}
}

// Submit queues fn as a job of the given kind. It never blocks; when the
// queue is full or stopped apierrors.ErrQueueFull is returned and nothing
// is recorded. The job keeps the values of ctx (trace ID, span) but not
// its cancellation.
func (q *Queue) Submit(ctx context.Context, kind domain.JobKind, fn Func) (*Job, error) {
	q.submitMu.Lock()
	defer q.submitMu.Unlock()

	if q.stopped || len(q.jobs) == cap(q.jobs) {
		q.logger.WarnContext(ctx, "job queue is full", slog.String("kind", string(kind)))
		return nil, apierrors.ErrQueueFull
	}

	job := &Job{
		snap: domain.JobSnapshot{
			ID:        uuid.NewString(),
			Kind:      kind,
			Status:    domain.JobStatusPending,
			Message:   "Queued",
			CreatedAt: time.Now(),
		},
		fn:   fn,
		ctx:  context.WithoutCancel(ctx),
		done: make(chan struct{}),
	}

	q.store.Put(job)
	q.metrics.submitted(ctx, kind)
	q.notify(job.Snapshot())

	// only submitters send and they hold submitMu, so the capacity check
	// above guarantees this does not block
	q.jobs <- job

	q.logger.InfoContext(ctx, "job enqueued",
		slog.String("job_id", job.ID()),
		slog.String("kind", string(kind)))
	return job, nil
}

// Get returns the job with id.
func (q *Queue) Get(id string) (*Job, error) {
	if job, ok := q.store.Get(id); ok {
		return job, nil
	}
	return nil, apierrors.ErrJobNotFound
}

// List returns snapshots of the retained jobs, newest first.
func (q *Queue) List(filter JobFilter) []domain.JobSnapshot {
	return q.store.List(filter)
}

// Stats describes the queue occupancy.
type Stats struct {
	Workers    int `json:"workers"`
	QueueSize  int `json:"queueSize"`
	QueueCap   int `json:"queueCap"`
	ActiveJobs int `json:"activeJobs"`
}

// Stats returns queue statistics
func (q *Queue) Stats() Stats {
	q.mu.RLock()
	active := len(q.active)
	q.mu.RUnlock()

	return Stats{
		Workers:    q.workers,
		QueueSize:  len(q.jobs),
		QueueCap:   cap(q.jobs),
		ActiveJobs: active,
	}
}

func (q *Queue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()

	logger := q.logger.With(slog.Int("worker_id", workerID))
	logger.Debug("worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker stopped by context")
			return
		case <-q.shutdown:
			logger.Debug("worker stopped by shutdown")
			return
		case job := <-q.jobs:
			q.process(job, logger)
		}
	}
}

func (q *Queue) process(job *Job, logger *slog.Logger) {
	ctx := job.ctx
	logger = logger.With(
		slog.String("job_id", job.ID()),
		slog.String("kind", string(job.snap.Kind)))

	q.mu.Lock()
	q.active[job.ID()] = job
	q.mu.Unlock()

	ctx, span := otel.Tracer(infrastructure.MeterName).Start(ctx, "job."+string(job.snap.Kind))
	defer span.End()

	var (
		result any
		err    error
	)
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "job panicked", slog.Any("panic", r))
			err = &apierrors.UnknownError{Detail: fmt.Sprintf("job panicked: %v", r)}
			result = nil
		}

		q.mu.Lock()
		delete(q.active, job.ID())
		q.mu.Unlock()

		if err != nil {
			infrastructure.RecordError(ctx, err)
		}
		q.finish(job, result, err)
	}()

	now := time.Now()
	q.notify(job.update(func(s *domain.JobSnapshot) {
		s.Status = domain.JobStatusRunning
		s.StartedAt = &now
		s.Message = "Running"
	}))
	logger.InfoContext(ctx, "job started")

	report := func(progress int, message string) {
		if progress < 0 {
			progress = 0
		}
		if progress > 99 {
			progress = 99
		}
		q.notify(job.update(func(s *domain.JobSnapshot) {
			s.Progress = progress
			s.Message = message
		}))
	}

	result, err = job.fn(ctx, report)
}

// finish moves job to its terminal state. Each job passes here once.
func (q *Queue) finish(job *Job, result any, err error) {
	now := time.Now()

	job.mu.Lock()
	job.err = err
	job.mu.Unlock()

	snap := job.update(func(s *domain.JobSnapshot) {
		s.CompletedAt = &now
		if err != nil {
			s.Status = domain.JobStatusFailed
			s.Error = err.Error()
			s.ErrorKind = string(apierrors.KindOf(err))
			s.Message = apierrors.UserMessage(err)
			return
		}
		s.Status = domain.JobStatusCompleted
		s.Progress = 100
		s.Result = result
		if s.Message == "Running" || s.Message == "" {
			s.Message = "Completed"
		}
	})

	q.metrics.finished(job.ctx, snap)
	q.store.Prune()

	if err != nil {
		q.logger.WarnContext(job.ctx, "job failed",
			slog.String("job_id", snap.ID),
			slog.String("kind", string(snap.Kind)),
			slog.String("error_kind", snap.ErrorKind),
			slog.String("error", snap.Error))
	} else {
		q.logger.InfoContext(job.ctx, "job completed",
			slog.String("job_id", snap.ID),
			slog.String("kind", string(snap.Kind)))
	}

	q.notify(snap)
	close(job.done)
}

func (q *Queue) notify(snap domain.JobSnapshot) {
	q.mu.RLock()
	listeners := make([]Listener, len(q.listeners))
	copy(listeners, q.listeners)
	q.mu.RUnlock()

	for _, l := range listeners {
		l(snap)
	}
}
