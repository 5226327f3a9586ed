package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/servicecheck/internal/domain"
	"github.com/hamed0406/servicecheck/internal/feed"
	"github.com/hamed0406/servicecheck/internal/reconcile"
	"github.com/hamed0406/servicecheck/internal/repo"
)

// Prober is satisfied by *probe.TCPProber.
type Prober interface {
	ProbeTarget(ctx context.Context, t domain.Target) domain.ProbeResult
}

// FeedFetcher is satisfied by *feed.Client and feed.Disabled. A nil snapshot
// with a nil error means the feed is switched off.
type FeedFetcher interface {
	Fetch(ctx context.Context) (*feed.Snapshot, error)
}

type Orchestrator struct {
	Logger     *zap.Logger
	Prober     Prober
	DeepProber Prober
	Feed       FeedFetcher
	Store      repo.StatusStore
	Detector   *Detector
	// Concurrency caps in-flight probes. 0 runs one probe per target, which
	// keeps a cycle within its slowest probe; a smaller cap trades that
	// bound for fewer sockets and runs the probes in batches.
	Concurrency  int
	ProbeTimeout time.Duration
}

func NewOrchestrator(
	logger *zap.Logger,
	prober Prober,
	fetcher FeedFetcher,
	store repo.StatusStore,
	detector *Detector,
	concurrency int,
	probeTimeout time.Duration,
) *Orchestrator {
	if concurrency < 0 {
		concurrency = 0
	}
	if probeTimeout <= 0 {
		probeTimeout = 10 * time.Second
	}
	if fetcher == nil {
		fetcher = feed.Disabled{}
	}
	return &Orchestrator{
		Logger:       logger,
		Prober:       prober,
		Feed:         fetcher,
		Store:        store,
		Detector:     detector,
		Concurrency:  concurrency,
		ProbeTimeout: probeTimeout,
	}
}

type feedOutcome struct {
	snap *feed.Snapshot
	err  error
}

// RunCycle probes every target once, reconciles against one feed fetch,
// detects up-edges and commits the cycle. If ctx ends before every probe has
// returned, nothing is committed and ctx.Err() is returned.
func (o *Orchestrator) RunCycle(ctx context.Context, targets []domain.Target) (*domain.Cycle, error) {
	c, err := o.evaluate(ctx, o.Prober, targets)
	if err != nil {
		return nil, err
	}

	if o.Detector != nil {
		events, err := o.Detector.Diff(ctx, c.ID, c.Results)
		if err != nil {
			o.Logger.Warn("transition_lookup_error", zap.String("cycle_id", c.ID), zap.Error(err))
		}
		c.Transitions = events
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := o.Store.Commit(ctx, c); err != nil {
		return nil, fmt.Errorf("commit cycle: %w", err)
	}

	o.Logger.Info("cycle_done",
		zap.String("cycle_id", c.ID),
		zap.Int("online", c.OnlineCount()),
		zap.Int("total", len(c.Results)),
		zap.Int("transitions", len(c.Transitions)),
		zap.Bool("feed_ok", c.FeedError == ""),
		zap.Duration("duration", c.Duration()),
	)
	return c, nil
}

// DeepCheck is Check with DeepProber, falling back to Prober when unset.
func (o *Orchestrator) DeepCheck(ctx context.Context, t domain.Target) (domain.CheckResult, error) {
	return o.Check(ctx, o.DeepProber, t)
}

// Check runs one uncommitted evaluation of a single target with the given
// prober. It never touches the status table or the transition projection.
func (o *Orchestrator) Check(ctx context.Context, p Prober, t domain.Target) (domain.CheckResult, error) {
	if p == nil {
		p = o.Prober
	}
	c, err := o.evaluate(ctx, p, []domain.Target{t})
	if err != nil {
		return domain.CheckResult{}, err
	}
	return c.Results[0], nil
}

func (o *Orchestrator) evaluate(ctx context.Context, p Prober, targets []domain.Target) (*domain.Cycle, error) {
	c := &domain.Cycle{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	feedCh := make(chan feedOutcome, 1)
	go func() {
		snap, err := o.Feed.Fetch(ctx)
		feedCh <- feedOutcome{snap: snap, err: err}
	}()

	probes := o.probeAll(ctx, p, targets)
	fo := <-feedCh

	if err := ctx.Err(); err != nil {
		o.Logger.Info("cycle_cancelled", zap.String("cycle_id", c.ID), zap.Error(err))
		return nil, err
	}

	snap := fo.snap
	if fo.err != nil {
		snap = nil
		c.FeedError = fo.err.Error()
		o.Logger.Warn("feed_unavailable", zap.String("cycle_id", c.ID), zap.Error(fo.err))
	}

	checkedAt := time.Now().UTC()
	c.Results = make([]domain.CheckResult, len(targets))
	for i, t := range targets {
		rec, _ := snap.Lookup(t.Name)
		status, detail := reconcile.Reconcile(probes[i], rec)
		c.Results[i] = domain.CheckResult{
			Target:     t,
			Probe:      probes[i],
			Feed:       rec,
			FeedAbsent: snap == nil,
			Status:     status,
			Detail:     detail,
			CheckedAt:  checkedAt,
		}
	}
	c.FinishedAt = time.Now().UTC()
	return c, nil
}

func (o *Orchestrator) probeAll(ctx context.Context, p Prober, targets []domain.Target) []domain.ProbeResult {
	out := make([]domain.ProbeResult, len(targets))
	if len(targets) == 0 {
		return out
	}

	limit := o.Concurrency
	if limit == 0 || limit > len(targets) {
		limit = len(targets)
	}
	if limit < len(targets) {
		o.Logger.Warn("probe_pool_limited",
			zap.Int("targets", len(targets)),
			zap.Int("concurrency", limit),
		)
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

dispatch:
	for i, tgt := range targets {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break dispatch
		}
		wg.Add(1)
		go func() {
			defer func() { <-sem }()
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					o.Logger.Error("probe_panic",
						zap.String("target", tgt.Name),
						zap.Any("panic", r),
					)
					out[i] = domain.Unreachable(domain.ProbeOtherTransportError, fmt.Sprintf("probe panic: %v", r))
				}
			}()

			pctx, cancel := context.WithTimeout(ctx, o.ProbeTimeout)
			defer cancel()

			res := p.ProbeTarget(pctx, tgt)
			out[i] = res
			if res.Reachable {
				o.Logger.Debug("probe_ok",
					zap.String("target", tgt.Name),
					zap.Duration("latency", res.Latency),
					zap.String("diagnostic", res.Diagnostic),
				)
			} else {
				o.Logger.Debug("probe_failed",
					zap.String("target", tgt.Name),
					zap.String("failure", string(res.Failure)),
					zap.String("diagnostic", res.Diagnostic),
				)
			}
		}()
	}

	wg.Wait()
	return out
}
