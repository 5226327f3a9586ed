package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/servicecheck/internal/domain"
	"github.com/hamed0406/servicecheck/internal/notify"
	"github.com/hamed0406/servicecheck/internal/repo"
)

const DefaultInterval = 10 * time.Second

type CycleRunner interface {
	RunCycle(ctx context.Context, targets []domain.Target) (*domain.Cycle, error)
}

// Publisher receives every committed cycle, e.g. the websocket hub.
type Publisher interface {
	Publish(c *domain.Cycle)
}

type LoopConfig struct {
	Interval        time.Duration
	Enabled         bool
	NotifyOnStartup bool
}

// Loop drives the orchestrator: one baseline pass over every target, then one
// pass per interval over the selected targets. The next tick is armed only
// after the previous cycle returns, so cycles never overlap.
type Loop struct {
	Logger    *zap.Logger
	Runner    CycleRunner
	Store     repo.StatusStore
	Notifier  notify.Notifier
	Publisher Publisher
	Interval  time.Duration

	notifyOnStartup bool
	enabled         atomic.Bool
	running         atomic.Bool
	trigger         chan struct{}
}

func NewLoop(logger *zap.Logger, runner CycleRunner, store repo.StatusStore, n notify.Notifier, pub Publisher, cfg LoopConfig) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	l := &Loop{
		Logger:          logger,
		Runner:          runner,
		Store:           store,
		Notifier:        n,
		Publisher:       pub,
		Interval:        cfg.Interval,
		notifyOnStartup: cfg.NotifyOnStartup,
		trigger:         make(chan struct{}, 1),
	}
	l.enabled.Store(cfg.Enabled)
	return l
}

// SetEnabled pauses or resumes the periodic passes. A paused loop still
// answers TriggerNow.
func (l *Loop) SetEnabled(on bool) {
	if l.enabled.Swap(on) != on {
		l.Logger.Info("monitoring_toggled", zap.Bool("enabled", on))
	}
}

func (l *Loop) Enabled() bool { return l.enabled.Load() }

// Running reports whether a cycle is in flight.
func (l *Loop) Running() bool { return l.running.Load() }

// TriggerNow asks for an extra pass over the selected targets. Requests made
// while one is already pending are coalesced.
func (l *Loop) TriggerNow() bool {
	select {
	case l.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run blocks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.Logger.Info("loop_started", zap.Duration("interval", l.Interval), zap.Bool("enabled", l.Enabled()))

	all, err := l.Store.List(ctx)
	if err != nil {
		l.Logger.Warn("loop_list_error", zap.Error(err))
	}
	baseline := make([]domain.Target, 0, len(all))
	for _, s := range all {
		baseline = append(baseline, s.Target)
	}
	l.runOnce(ctx, baseline, true)

	timer := time.NewTimer(l.Interval)
	defer timer.Stop()

	for {
		manual := false
		select {
		case <-ctx.Done():
			l.Logger.Info("loop_stopped")
			return ctx.Err()
		case <-timer.C:
		case <-l.trigger:
			manual = true
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		if manual || l.Enabled() {
			targets, err := l.Store.Selected(ctx)
			if err != nil {
				l.Logger.Warn("loop_selected_error", zap.Error(err))
			} else {
				l.runOnce(ctx, targets, false)
			}
		}
		timer.Reset(l.Interval)
	}
}

func (l *Loop) runOnce(ctx context.Context, targets []domain.Target, baseline bool) {
	if len(targets) == 0 {
		return
	}
	l.running.Store(true)
	c, err := l.Runner.RunCycle(ctx, targets)
	l.running.Store(false)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		l.Logger.Warn("cycle_failed", zap.Error(err))
		return
	}

	if l.Publisher != nil {
		l.Publisher.Publish(c)
	}

	if len(c.Transitions) == 0 {
		return
	}
	if baseline && !l.notifyOnStartup {
		l.Logger.Info("startup_transitions_suppressed", zap.Int("count", len(c.Transitions)))
		return
	}
	if err := notify.Announce(ctx, l.Notifier, c.Transitions); err != nil {
		l.Logger.Warn("notify_failed", zap.String("cycle_id", c.ID), zap.Error(err))
	}
}
