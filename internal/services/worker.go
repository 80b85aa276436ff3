package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gar-rock/resume-crunch/internal/logger"
	"gar-rock/resume-crunch/internal/models"
	"gar-rock/resume-crunch/internal/repositories"
)

var (
	ErrWorkerStopped = errors.New("worker stopped")
	ErrQueueFull     = errors.New("evaluation queue is full")
)

const interruptedReason = "evaluation interrupted by shutdown"

// Task is the handle of one queued evaluation.
type Task struct {
	ID         uuid.UUID
	ResumeName string

	done    chan struct{}
	err     error
	started bool // guarded by worker.mu
}

func newTask(resumeName string) *Task {
	return &Task{
		ID:         uuid.New(),
		ResumeName: resumeName,
		done:       make(chan struct{}),
	}
}

// Done is closed once the evaluation finished or was abandoned.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err is only meaningful after Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the task is done or ctx expires.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Task) finish(err error) {
	t.err = err
	close(t.done)
}

type Worker interface {
	Start(ctx context.Context)
	Stop()
	Enqueue(resumeName string) (*Task, error)
	InFlight(resumeName string) bool
}

type WorkerOptions struct {
	Concurrency int
	QueueSize   int
	JobTimeout  time.Duration
	StaleAfter  time.Duration
	SweepEvery  time.Duration
}

type worker struct {
	repo             repositories.ResumeRepository
	evaluatorService EvaluatorService
	opts             WorkerOptions
	log              *zap.Logger

	jobQueue chan *Task
	wg       sync.WaitGroup
	cancel   context.CancelFunc
	ctx      context.Context

	mu      sync.Mutex
	started bool
	stopped bool
	queued  map[string]*Task
	running map[string]int
}

func NewWorker(
	repo repositories.ResumeRepository,
	evaluatorService EvaluatorService,
	opts WorkerOptions,
	log *zap.Logger,
) Worker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 100
	}
	return &worker{
		repo:             repo,
		evaluatorService: evaluatorService,
		opts:             opts,
		log:              logger.OrNop(log),
		jobQueue:         make(chan *Task, opts.QueueSize),
		queued:           make(map[string]*Task),
		running:          make(map[string]int),
	}
}

// Start implements Worker. Cancelling ctx or calling Stop interrupts running
// evaluations.
func (w *worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.log.Info("🚀 Starting worker", zap.Int("concurrency", w.opts.Concurrency), zap.Int("queue_size", w.opts.QueueSize))

	for i := 0; i < w.opts.Concurrency; i++ {
		w.wg.Add(1)
		go w.processJobs(i + 1)
	}

	if w.opts.SweepEvery > 0 && w.opts.StaleAfter > 0 {
		w.wg.Add(1)
		go w.sweepStaleJobs()
	}

	w.log.Info("✅ Worker started successfully")
}

// Stop implements Worker. Queued evaluations that never ran are marked failed
// so no record stays processing.
func (w *worker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	cancel := w.cancel
	w.mu.Unlock()

	w.log.Info("🛑 Stopping worker...")
	if cancel != nil {
		cancel()
	}
	w.wg.Wait()

	for {
		select {
		case task := <-w.jobQueue:
			w.abandon(task)
		default:
			w.log.Info("✅ Worker stopped")
			return
		}
	}
}

// Enqueue implements Worker. A resume still waiting in the queue returns the
// queued task. Once a task was picked up a new one is created: the record's
// status transition already keeps evaluation cycles apart, and the running
// task may be finishing the previous cycle.
func (w *worker) Enqueue(resumeName string) (*Task, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped || !w.started {
		return nil, ErrWorkerStopped
	}
	if task, ok := w.queued[resumeName]; ok {
		return task, nil
	}

	task := newTask(resumeName)
	select {
	case w.jobQueue <- task:
	default:
		return nil, ErrQueueFull
	}
	w.queued[resumeName] = task

	w.log.Debug("📥 Job enqueued", zap.String("task_id", task.ID.String()), zap.String("resume", resumeName))
	return task, nil
}

// InFlight reports whether resumeName is queued or being evaluated.
func (w *worker) InFlight(resumeName string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, queued := w.queued[resumeName]
	return queued || w.running[resumeName] > 0
}

func (w *worker) processJobs(workerID int) {
	defer w.wg.Done()
	w.log.Debug("👷 Worker goroutine started", zap.Int("worker", workerID))

	for {
		select {
		case <-w.ctx.Done():
			w.log.Debug("👷 Worker goroutine stopped", zap.Int("worker", workerID))
			return
		case task := <-w.jobQueue:
			w.run(workerID, task)
		}
	}
}

func (w *worker) run(workerID int, task *Task) {
	if w.ctx.Err() != nil {
		w.abandon(task)
		return
	}
	w.pickUp(task)

	ctx := w.ctx
	if w.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(w.ctx, w.opts.JobTimeout)
		defer cancel()
	}

	fields := []zap.Field{
		zap.Int("worker", workerID),
		zap.String("task_id", task.ID.String()),
		zap.String("resume", task.ResumeName),
	}
	w.log.Info("👷 Processing evaluation", fields...)

	err := w.evaluatorService.EvaluateResume(ctx, task.ResumeName)
	if err != nil {
		w.log.Error("❌ Evaluation failed", append(fields, zap.Error(err))...)
	} else {
		w.log.Info("✅ Evaluation finished", fields...)
	}

	w.release(task, err)
}

func (w *worker) pickUp(task *Task) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.queued[task.ResumeName] == task {
		delete(w.queued, task.ResumeName)
	}
	task.started = true
	w.running[task.ResumeName]++
}

func (w *worker) release(task *Task, err error) {
	w.mu.Lock()
	if task.started {
		if w.running[task.ResumeName]--; w.running[task.ResumeName] <= 0 {
			delete(w.running, task.ResumeName)
		}
	} else if w.queued[task.ResumeName] == task {
		delete(w.queued, task.ResumeName)
	}
	w.mu.Unlock()
	task.finish(err)
}

func (w *worker) abandon(task *Task) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(w.ctx), 5*time.Second)
	defer cancel()

	_, err := w.repo.Update(ctx, task.ResumeName, func(r *models.ResumeRecord) error {
		return r.Fail(interruptedReason, time.Now())
	})
	if err != nil {
		w.log.Warn("⚠️ Failed to mark abandoned evaluation", zap.String("resume", task.ResumeName), zap.Error(err))
	}
	w.release(task, ErrWorkerStopped)
}

// sweepStaleJobs re-enqueues records left processing by a crashed process.
func (w *worker) sweepStaleJobs() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.opts.SweepEvery)
	defer ticker.Stop()

	w.log.Debug("🔄 Starting stale jobs sweeper")

	for {
		select {
		case <-w.ctx.Done():
			w.log.Debug("🔄 Stale jobs sweeper stopped")
			return
		case <-ticker.C:
			w.sweepOnce(time.Now())
		}
	}
}

func (w *worker) sweepOnce(now time.Time) {
	stuck, err := w.repo.FindByStatus(w.ctx, models.StatusProcessing, 50)
	if err != nil {
		w.log.Warn("⚠️ Failed to fetch processing records", zap.Error(err))
		return
	}

	for _, rec := range stuck {
		if rec.ProcessingStartTime == nil || now.Sub(*rec.ProcessingStartTime) < w.opts.StaleAfter {
			continue
		}
		if w.InFlight(rec.Filename) {
			continue
		}

		if _, err := w.Enqueue(rec.Filename); err != nil {
			w.log.Warn("⚠️ Failed to re-enqueue stale evaluation", zap.String("resume", rec.Filename), zap.Error(err))
			return
		}
		w.log.Info("📋 Re-enqueued stale evaluation", zap.String("resume", rec.Filename))
	}
}
