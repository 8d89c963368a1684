package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"mimic/internal/config"
	"mimic/internal/jobs"
	"mimic/internal/logging"
	"mimic/internal/services"
	"mimic/internal/vram"
)

// Worker drains pending jobs sequentially. Exactly one job runs at a
// time; the accelerator cannot serve two model loads at once.
type Worker struct {
	cfg       *config.Config
	store     *jobs.Store
	processor Processor
	vram      *vram.Manager
	metrics   *Metrics
	logger    *slog.Logger
	lock      *flock.Flock

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New wires a worker. Metrics may be nil when the metrics endpoint is
// disabled.
func New(cfg *config.Config, store *jobs.Store, processor Processor, vramMgr *vram.Manager, metrics *Metrics, logger *slog.Logger) *Worker {
	return &Worker{
		cfg:       cfg,
		store:     store,
		processor: processor,
		vram:      vramMgr,
		metrics:   metrics,
		logger:    logging.NewComponentLogger(logger, "worker"),
	}
}

// Start acquires the device permit and begins draining in the
// background.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("worker already running")
	}

	lockPath := filepath.Join(w.cfg.Paths.LogDir, fmt.Sprintf("device-%d.lock", w.cfg.VRAM.DeviceID))
	lock := flock.New(lockPath)
	held, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire device lock: %w", err)
	}
	if !held {
		return services.Wrap(services.ErrResourceExhausted, "", "worker",
			fmt.Sprintf("device %d is owned by another runner", w.cfg.VRAM.DeviceID), nil)
	}
	w.lock = lock

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	go w.run(runCtx)

	w.logger.Info("worker started",
		logging.Int("device_id", w.cfg.VRAM.DeviceID),
		logging.String("device_lock", lockPath),
	)
	return nil
}

// Stop terminates draining, waits for any in-flight job loop iteration
// to observe cancellation, and releases the device permit.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()

	if w.lock != nil {
		if err := w.lock.Unlock(); err != nil {
			w.logger.Warn("release device lock failed", logging.Error(err))
		}
		w.lock = nil
	}
	w.logger.Info("worker stopped")
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.store.NextPending(ctx)
		if err != nil {
			w.logger.Error("failed to fetch next job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_fetch_failed"),
				logging.String(logging.FieldErrorHint, "check job database access"),
			)
			w.sleep(ctx, time.Duration(w.cfg.Worker.ErrorRetryInterval)*time.Second)
			continue
		}
		if job == nil {
			w.observeQueueDepth(ctx)
			w.sleep(ctx, time.Duration(w.cfg.Worker.QueuePollInterval)*time.Second)
			continue
		}

		if err := w.runJob(ctx, job); err != nil {
			if errors.Is(err, context.Canceled) {
				// Shutdown mid-job: leave the row running so the startup
				// reset returns it to pending.
				return
			}
			// State writes can fail while reads still succeed; back off so
			// a wedged store does not turn the drain loop into a busy spin.
			w.sleep(ctx, time.Duration(w.cfg.Worker.ErrorRetryInterval)*time.Second)
		}
	}
}

// runJob owns the full lifecycle of one job: start, execute with panic
// containment, and persist the terminal state.
func (w *Worker) runJob(ctx context.Context, job *jobs.Job) error {
	ctx = services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(ctx, w.logger)

	if err := job.Start(); err != nil {
		logger.Error("job start transition rejected", logging.Error(err))
		return err
	}
	if err := w.store.Update(ctx, job); err != nil {
		logger.Error("failed to persist job start", logging.Error(err))
		return err
	}
	logger.Info("job started", logging.String("type", string(job.Type)))

	started := time.Now()
	progress := func(stageLabel string, fraction float64) {
		job.UpdateProgress(stageLabel, fraction)
		if err := w.store.Update(ctx, job); err != nil {
			logger.Warn("failed to persist progress", logging.Error(err))
		}
	}

	result, err := w.execute(ctx, job, progress)
	if err != nil && errors.Is(err, context.Canceled) {
		logger.Debug("job interrupted by shutdown")
		return err
	}

	if err != nil {
		if failErr := job.Fail(err.Error()); failErr != nil {
			logger.Error("fail transition rejected", logging.Error(failErr))
		}
		logger.Error("job failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Remedy(err)),
			logging.Duration("elapsed", time.Since(started)),
		)
	} else {
		if completeErr := job.Complete(result); completeErr != nil {
			logger.Error("complete transition rejected", logging.Error(completeErr))
		}
		logger.Info("job completed",
			logging.String("output", result.OutputPath),
			logging.Duration("elapsed", time.Since(started)),
		)
	}

	if err := w.store.Update(ctx, job); err != nil {
		logger.Error("failed to persist job outcome", logging.Error(err))
		return err
	}
	w.metrics.ObserveJob(job.Status, time.Since(started))
	w.observeVRAM(ctx)
	w.cleanupFinished(ctx, logger)
	return nil
}

// execute calls the processor with panic containment so a crashing
// stage cannot take the daemon down.
func (w *Worker) execute(ctx context.Context, job *jobs.Job, progress ProgressFunc) (result jobs.Result, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = services.Wrap(services.ErrStageExecution, job.StageLabel, "worker",
				fmt.Sprintf("internal error: %v", recovered), nil)
		}
	}()
	return w.processor.Process(ctx, job, progress)
}

func (w *Worker) cleanupFinished(ctx context.Context, logger *slog.Logger) {
	keep := w.cfg.Worker.KeepFinishedJobs
	if keep <= 0 {
		return
	}
	removed, err := w.store.CleanupFinished(ctx, keep)
	if err != nil {
		logger.Warn("cleanup of finished jobs failed", logging.Error(err))
		return
	}
	if removed > 0 {
		logger.Debug("pruned finished jobs", logging.Int64("removed", removed))
	}
}

func (w *Worker) observeQueueDepth(ctx context.Context) {
	if w.metrics == nil {
		return
	}
	stats, err := w.store.Stats(ctx)
	if err != nil {
		return
	}
	w.metrics.SetPending(stats[jobs.StatusPending])
}

func (w *Worker) observeVRAM(ctx context.Context) {
	if w.metrics == nil || w.vram == nil {
		return
	}
	w.metrics.SetVRAMFree(w.vram.Status(ctx).FreeMB)
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
