package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/threadtracker/internal/config"
	"github.com/nao1215/threadtracker/internal/model"
	"golang.org/x/sync/errgroup"
)

// BatchProcessor tracks several users of one board concurrently.
// It uses errgroup to manage goroutines and respect the concurrency limit.
type BatchProcessor struct {
	board string

	// pipelineFactory creates a fresh pipeline for each user.
	pipelineFactory func(userID string) *Pipeline

	concurrency int

	// runTimeout bounds each user's run. Zero means no bound.
	runTimeout time.Duration

	logger *slog.Logger

	// results stores completed runs.
	// Access is synchronized via mutex.
	results []*model.Run
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of users tracked at once.
// Default is config.DefaultBatchSize.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithRunTimeout bounds each user's run. A run that hits the bound is
// marked TimedOut and keeps whatever it collected.
func WithRunTimeout(d time.Duration) BatchOption {
	return func(b *BatchProcessor) {
		if d > 0 {
			b.runTimeout = d
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor for the given board.
// pipelineFactory is called once per user.
func NewBatchProcessor(board string, pipelineFactory func(userID string) *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		board:           board,
		pipelineFactory: pipelineFactory,
		concurrency:     config.DefaultBatchSize,
		results:         make([]*model.Run, 0),
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch tracks every user concurrently and returns their runs in
// the order of userIDs. A failing run does not stop the others; its error
// is recorded on the run. The returned error is non-nil only when the
// batch was cancelled, in which case users that never started have a nil
// entry.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, userIDs []string) ([]*model.Run, error) {
	bp.logger.Info("starting batch processing",
		"total_users", len(userIDs),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	bp.results = make([]*model.Run, len(userIDs))

	err := bp.each(ctx, userIDs, func(run *model.Run, i int) {
		bp.mu.Lock()
		bp.results[i] = run
		bp.mu.Unlock()
	})

	bp.logger.Info("batch processing complete",
		"total_users", len(userIDs),
		"elapsed", time.Since(startTime),
	)

	return bp.results, err
}

// ProcessBatchWithCallback tracks every user and calls callback with each
// finished run and the user's index in userIDs. The callback runs on the
// worker goroutine and must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	userIDs []string,
	callback func(run *model.Run, index int),
) error {
	return bp.each(ctx, userIDs, callback)
}

func (bp *BatchProcessor) each(ctx context.Context, userIDs []string, done func(run *model.Run, index int)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, userID := range userIDs {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("tracking user",
				"user", userID,
				"index", i+1,
				"total", len(userIDs),
			)

			runCtx := ctx
			if bp.runTimeout > 0 {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(ctx, bp.runTimeout)
				defer cancel()
			}

			run := model.NewRun(bp.board, userID)
			if err := bp.pipelineFactory(userID).Execute(runCtx, run); err != nil {
				// The error is on the run; the other users keep going.
				bp.logger.Warn("tracking failed",
					"user", userID,
					"error", err,
				)
			}

			done(run, i)
			return nil
		})
	}

	return g.Wait()
}
