package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/access-control/internal/api/metrics"
	"github.com/99minutos/access-control/internal/core/domain"
	"github.com/99minutos/access-control/internal/core/ports"
)

const (
	defaultWorkers     = 4
	defaultMaxAttempts = 3
	defaultBackoff     = time.Second
	defaultJobTimeout  = 5 * time.Second
	settleTimeout      = 5 * time.Second
	channelBuffer      = 256
	pollWait           = time.Second
	promoteEvery       = time.Second
)

// Delivery is a dequeued job plus the receipt needed to acknowledge it.
type Delivery struct {
	Job     domain.InvalidationJob
	receipt string
}

// Source is a durable queue the dispatcher consumes from.
type Source interface {
	Dequeue(ctx context.Context, wait time.Duration) (*Delivery, error)
	Ack(ctx context.Context, d *Delivery) error
	Retry(ctx context.Context, job domain.InvalidationJob, at time.Time) error
	PromoteDue(ctx context.Context, now time.Time) (int, error)
}

// Handler performs the work for one job.
type Handler interface {
	Handle(ctx context.Context, job domain.InvalidationJob) error
}

// Options tunes the dispatcher. Zero values fall back to defaults.
type Options struct {
	Workers     int
	MaxAttempts int
	Backoff     time.Duration
	JobTimeout  time.Duration
}

// Dispatcher pulls jobs from a Source and routes them to a fixed set of
// workers using consistent hashing on the user id, so invalidations for one
// user are applied in order. Failed jobs are retried with exponential backoff;
// once MaxAttempts is reached they go to the FailedJobStore and are dropped.
type Dispatcher struct {
	workers []chan *Delivery
	source  Source
	handler Handler
	failed  ports.FailedJobStore
	opts    Options
	now     func() time.Time
	log     zerolog.Logger
	wg      sync.WaitGroup
}

func NewDispatcher(source Source, handler Handler, failed ports.FailedJobStore, opts Options, log zerolog.Logger) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = defaultJobTimeout
	}
	d := &Dispatcher{
		workers: make([]chan *Delivery, opts.Workers),
		source:  source,
		handler: handler,
		failed:  failed,
		opts:    opts,
		now:     time.Now,
		log:     log.With().Str("component", "invalidation_dispatcher").Logger(),
	}
	for i := range d.workers {
		d.workers[i] = make(chan *Delivery, channelBuffer)
	}
	return d
}

// Start launches the fetch loop, the retry promoter and all workers. Everything
// stops when ctx is cancelled; Wait blocks until they have.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
	d.wg.Add(2)
	go d.fetchLoop(ctx)
	go d.promoteLoop(ctx)
}

// Wait blocks until every goroutine started by Start has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// shardIndex maps a user id deterministically to a worker index.
func (d *Dispatcher) shardIndex(userID int64) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.FormatInt(userID, 10)))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) fetchLoop(ctx context.Context) {
	defer d.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		delivery, err := d.source.Dequeue(ctx, pollWait)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.log.Error().Err(err).Msg("dequeue failed")
			d.sleep(ctx, pollWait)
			continue
		}
		if delivery == nil {
			continue
		}

		idx := d.shardIndex(delivery.Job.UserID)
		select {
		case <-ctx.Done():
			return
		case d.workers[idx] <- delivery:
			metrics.InvalidationQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
		}
	}
}

func (d *Dispatcher) promoteLoop(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(promoteEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.source.PromoteDue(ctx, d.now()); err != nil && ctx.Err() == nil {
				d.log.Error().Err(err).Msg("promoting delayed jobs failed")
			}
		}
	}
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan *Delivery) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-ch:
			if !ok {
				return
			}
			metrics.InvalidationQueueDepth.WithLabelValues(strconv.Itoa(id)).Set(float64(len(ch)))
			d.process(ctx, id, delivery)
		}
	}
}

// process runs one attempt and settles the delivery. The original delivery is
// acknowledged in every branch; retries travel as new delayed entries.
// Settling outlives ctx so a job caught by shutdown is still retried or acked.
func (d *Dispatcher) process(ctx context.Context, workerID int, delivery *Delivery) {
	job := delivery.Job
	job.Attempts++

	jobCtx, cancel := context.WithTimeout(ctx, d.opts.JobTimeout)
	start := time.Now()
	err := d.handler.Handle(jobCtx, job)
	cancel()
	metrics.InvalidationJobDuration.Observe(time.Since(start).Seconds())

	settleCtx, cancelSettle := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancelSettle()

	logger := d.log.With().
		Str("job_id", job.ID).
		Int64("user_id", job.UserID).
		Str("scope", string(job.Scope())).
		Int("attempt", job.Attempts).
		Int("worker_id", workerID).
		Logger()

	switch {
	case err == nil:
		metrics.InvalidationJobsTotal.WithLabelValues("succeeded").Inc()
		logger.Debug().Msg("invalidation job succeeded")

	case job.Attempts < d.opts.MaxAttempts:
		job.LastError = err.Error()
		at := d.now().Add(d.backoff(job.Attempts))
		if rerr := d.source.Retry(settleCtx, job, at); rerr != nil {
			logger.Error().Err(rerr).AnErr("cause", err).Msg("scheduling retry failed, job dropped")
			break
		}
		metrics.InvalidationJobsTotal.WithLabelValues("retried").Inc()
		logger.Warn().Err(err).Time("retry_at", at).Msg("invalidation job failed, retrying")

	default:
		job.LastError = err.Error()
		metrics.InvalidationJobsTotal.WithLabelValues("failed").Inc()
		logger.Error().Err(err).Msg("invalidation job exhausted retries, entry will expire at TTL")
		if d.failed != nil {
			if serr := d.failed.SaveFailed(settleCtx, job); serr != nil {
				logger.Error().Err(serr).Msg("retaining failed job failed")
			}
		}
	}

	if aerr := d.source.Ack(settleCtx, delivery); aerr != nil {
		logger.Error().Err(aerr).Msg("ack failed, job may be redelivered")
	}
}

// backoff doubles per attempt: base, 2×base, 4×base…
func (d *Dispatcher) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return d.opts.Backoff * time.Duration(1<<uint(attempt-1))
}

func (d *Dispatcher) sleep(ctx context.Context, dur time.Duration) {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
