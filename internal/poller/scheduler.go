// Package poller runs the fixed-interval loops that pull work queues from the
// website and hand every item to its handler.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/psds-microservice/ticket-bot/internal/metrics"
	"github.com/psds-microservice/ticket-bot/internal/website"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Fetcher reads one queue endpoint.
type Fetcher interface {
	FetchQueue(ctx context.Context, path, key string) ([]json.RawMessage, error)
}

// Queue binds one endpoint to the handler of its items. Optional queues
// belong to website features that may not be deployed; their 404s are quiet.
type Queue struct {
	Name     string
	Path     string
	Key      string
	Optional bool
	Handle   func(ctx context.Context, raw json.RawMessage) error
}

type Options struct {
	Interval time.Duration
	// RetryAttempts is how many extra fetches a tick makes after a
	// transport error or a 5xx.
	RetryAttempts uint64
	RetryBase     time.Duration
	// ItemTimeout bounds one item's handler. The handler's context outlives
	// shutdown so a half-created ticket still gets committed.
	ItemTimeout time.Duration
}

const defaultItemTimeout = 30 * time.Second

type Scheduler struct {
	fetcher Fetcher
	queues  []Queue
	opts    Options
	log     *zap.Logger
}

func New(fetcher Fetcher, queues []Queue, opts Options, log *zap.Logger) *Scheduler {
	if opts.RetryBase <= 0 {
		opts.RetryBase = 200 * time.Millisecond
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = defaultItemTimeout
	}
	return &Scheduler{
		fetcher: fetcher,
		queues:  queues,
		opts:    opts,
		log:     log.Named("poller"),
	}
}

// Run starts one loop per queue and blocks until ctx is done. A cycle that is
// still running when ctx ends finishes its current item before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("poller started", zap.Int("queues", len(s.queues)), zap.Duration("interval", s.opts.Interval))
	g, ctx := errgroup.WithContext(ctx)
	for _, q := range s.queues {
		g.Go(func() error {
			s.loop(ctx, q)
			return nil
		})
	}
	err := g.Wait()
	s.log.Info("poller stopped")
	return err
}

// loop ticks at a fixed interval. A tick that arrives while the previous
// cycle of the same queue is still running is skipped.
func (s *Scheduler) loop(ctx context.Context, q Queue) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	var (
		busy atomic.Bool
		wg   sync.WaitGroup
	)
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			if !busy.CompareAndSwap(false, true) {
				metrics.PollCycles.WithLabelValues(q.Name, "skipped").Inc()
				s.log.Debug("previous cycle still running, tick skipped", zap.String("queue", q.Name))
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer busy.Store(false)
				s.Cycle(ctx, q)
			}()
		}
	}
}

// Cycle fetches q once and dispatches its items in order, one at a time.
func (s *Scheduler) Cycle(ctx context.Context, q Queue) {
	start := time.Now()
	defer func() {
		metrics.PollDuration.WithLabelValues(q.Name).Observe(time.Since(start).Seconds())
	}()
	log := s.log.With(zap.String("queue", q.Name))

	items, err := s.fetch(ctx, q)
	if err != nil {
		outcome := s.classify(ctx, q, err, log)
		metrics.PollCycles.WithLabelValues(q.Name, outcome).Inc()
		return
	}
	metrics.PollCycles.WithLabelValues(q.Name, "ok").Inc()
	if len(items) > 0 {
		log.Debug("dispatching queue items", zap.Int("items", len(items)))
	}

	for i, raw := range items {
		if ctx.Err() != nil {
			log.Info("shutdown, abandoning rest of batch", zap.Int("remaining", len(items)-i))
			return
		}
		if err := s.handle(ctx, q, raw); err != nil {
			metrics.PollItems.WithLabelValues(q.Name, "failed").Inc()
			log.Error("handle queue item", zap.Int("index", i), zap.Error(err))
			continue
		}
		metrics.PollItems.WithLabelValues(q.Name, "ok").Inc()
	}
}

// handle runs one item on a context detached from shutdown.
func (s *Scheduler) handle(ctx context.Context, q Queue, raw json.RawMessage) error {
	itemCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ItemTimeout)
	defer cancel()
	return q.Handle(itemCtx, raw)
}

func (s *Scheduler) fetch(ctx context.Context, q Queue) ([]json.RawMessage, error) {
	var items []json.RawMessage
	b := retry.WithMaxRetries(s.opts.RetryAttempts, retry.NewExponential(s.opts.RetryBase))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		var err error
		items, err = s.fetcher.FetchQueue(ctx, q.Path, q.Key)
		if err != nil && transient(ctx, err) {
			return retry.RetryableError(err)
		}
		return err
	})
	return items, err
}

// classify logs a failed fetch and returns its metric outcome. A 401 means
// the bot secret is not configured upstream; a 404 on an optional queue means
// the feature is not deployed. Neither is worth a log line at tick rate.
func (s *Scheduler) classify(ctx context.Context, q Queue, err error, log *zap.Logger) string {
	switch status := website.StatusOf(err); {
	case ctx.Err() != nil:
		return "cancelled"
	case status == http.StatusUnauthorized:
		return "suppressed"
	case status == http.StatusNotFound && q.Optional:
		return "suppressed"
	default:
		log.Error("poll queue", zap.Int("status", status), zap.Error(err))
		return "failed"
	}
}

// transient reports whether another fetch in the same tick may succeed.
func transient(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	status := website.StatusOf(err)
	return status == 0 || status >= http.StatusInternalServerError
}
