package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"audio-embed-service/internal/config"
	"audio-embed-service/internal/metrics"
	"audio-embed-service/internal/model"
	"audio-embed-service/internal/repository"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	maxBackoff = 10 * time.Minute
	// running jobs older than this are assumed orphaned by a crash
	staleAfter = 10 * time.Minute
	jobTimeout = 2 * time.Minute
	batchSize  = 100
)

type JobHandler interface {
	HandleJob(ctx context.Context, job *model.SyncJob) error
}

// Pool runs sync jobs persisted in the database. Jobs survive restarts; Enqueue
// only wakes the pool early.
type Pool struct {
	repo         repository.SyncJobRepository
	handler      JobHandler
	concurrency  int
	maxAttempts  int
	pollInterval time.Duration
	baseBackoff  time.Duration
	wake         chan struct{}
	now          func() time.Time
}

func NewPool(repo repository.SyncJobRepository, handler JobHandler, cfg *config.Worker) *Pool {
	p := &Pool{
		repo:         repo,
		handler:      handler,
		concurrency:  cfg.Concurrency,
		maxAttempts:  cfg.MaxAttempts,
		pollInterval: cfg.PollInterval,
		baseBackoff:  cfg.BaseBackoff,
		wake:         make(chan struct{}, 1),
		now:          time.Now,
	}
	if p.concurrency <= 0 {
		p.concurrency = 1
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = 1
	}
	if p.pollInterval <= 0 {
		p.pollInterval = 5 * time.Second
	}
	return p
}

func (p *Pool) Enqueue(ctx context.Context, job *model.SyncJob) error {
	if job.Status == "" {
		job.Status = model.SyncJobPending
	}
	if job.NextRunAt.IsZero() {
		job.NextRunAt = p.now().UTC()
	}

	if err := p.repo.Create(ctx, job); err != nil {
		return fmt.Errorf("persist sync job: %w", err)
	}

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// Run processes jobs until ctx is cancelled, then waits for in-flight jobs.
func (p *Pool) Run(ctx context.Context) error {
	log.Info().Int("workers", p.concurrency).Dur("poll_interval", p.pollInterval).Msg("sync worker pool starting")

	jobs := make(chan string, p.concurrency)
	g := new(errgroup.Group)

	for i := 0; i < p.concurrency; i++ {
		g.Go(func() error {
			for id := range jobs {
				// in-flight jobs finish even during shutdown
				if _, err := p.ProcessJob(context.WithoutCancel(ctx), id); err != nil {
					log.Error().Err(err).Str("job_id", id).Msg("sync job bookkeeping failed")
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)

		ticker := time.NewTicker(p.pollInterval)
		defer ticker.Stop()

		for {
			p.dispatch(ctx, jobs)

			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			case <-p.wake:
			}
		}
	})

	err := g.Wait()
	log.Info().Msg("sync worker pool stopped")
	return err
}

func (p *Pool) dispatch(ctx context.Context, jobs chan<- string) {
	now := p.now()
	due, err := p.repo.ListDue(ctx, now, now.Add(-staleAfter), batchSize)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("list due sync jobs failed")
		}
		return
	}

	for _, job := range due {
		select {
		case jobs <- job.ID:
		case <-ctx.Done():
			return
		}
	}
}

// RunDue processes every job that is currently due, one at a time, and returns
// how many it ran.
func (p *Pool) RunDue(ctx context.Context) (int, error) {
	now := p.now()
	due, err := p.repo.ListDue(ctx, now, now.Add(-staleAfter), batchSize)
	if err != nil {
		return 0, fmt.Errorf("list due sync jobs: %w", err)
	}

	ran := 0
	for _, job := range due {
		ok, err := p.ProcessJob(ctx, job.ID)
		if err != nil {
			return ran, err
		}
		if ok {
			ran++
		}
	}
	return ran, nil
}

// ProcessJob claims and runs one job. It reports false when the job was not
// claimable. Handler failures are recorded on the job, not returned.
func (p *Pool) ProcessJob(ctx context.Context, jobID string) (bool, error) {
	now := p.now()
	claimed, err := p.repo.Claim(ctx, jobID, now, now.Add(-staleAfter))
	if err != nil {
		return false, fmt.Errorf("claim sync job: %w", err)
	}
	if !claimed {
		return false, nil
	}

	job, err := p.repo.FindByID(ctx, jobID)
	if err != nil {
		return false, fmt.Errorf("load sync job: %w", err)
	}

	logger := log.With().
		Str("job_id", job.ID).
		Str("kind", job.Kind).
		Str("event_id", job.EventID).
		Str("event_type", job.EventType).
		Str("customer_id", job.CustomerID).
		Int("attempt", job.Attempts).
		Logger()

	jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	runErr := p.handler.HandleJob(jobCtx, job)
	cancel()

	if runErr == nil {
		metrics.SyncJobsTotal.WithLabelValues(job.Kind, "done").Inc()
		logger.Debug().Msg("sync job done")
		return true, p.repo.MarkDone(ctx, job.ID)
	}

	if job.Attempts >= p.maxAttempts {
		metrics.SyncJobsTotal.WithLabelValues(job.Kind, "failed").Inc()
		logger.Error().Err(runErr).Msg("sync job failed permanently")
		return true, p.repo.MarkFailed(ctx, job.ID, runErr.Error())
	}

	delay := Backoff(p.baseBackoff, job.Attempts)
	metrics.SyncJobsTotal.WithLabelValues(job.Kind, "retry").Inc()
	logger.Warn().Err(runErr).Dur("retry_in", delay).Msg("sync job failed, will retry")
	return true, p.repo.MarkRetry(ctx, job.ID, p.now().Add(delay), runErr.Error())
}

// Backoff returns base * 2^(attempts-1), capped at ten minutes.
func Backoff(base time.Duration, attempts int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if attempts < 1 {
		attempts = 1
	}

	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return min(d, maxBackoff)
}
