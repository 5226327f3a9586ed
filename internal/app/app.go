// Package app turns a loaded configuration into the concrete components the
// binaries share.
package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/servicecheck/internal/config"
	"github.com/hamed0406/servicecheck/internal/feed"
	"github.com/hamed0406/servicecheck/internal/notify"
	"github.com/hamed0406/servicecheck/internal/probe"
	"github.com/hamed0406/servicecheck/internal/repo/memory"
	"github.com/hamed0406/servicecheck/internal/scheduler"
)

func NewProber(c config.ProbeConfig) (*probe.TCPProber, error) {
	opts := []probe.Option{
		probe.WithConnectTimeout(c.ConnectTimeout),
		probe.WithResponseTimeout(c.ResponseTimeout),
		probe.WithHandshake(c.Handshake),
		probe.WithLatencyMode(probe.LatencyMode(c.LatencyMode)),
	}
	if c.DNSServer != "" {
		opts = append(opts, probe.WithResolver(probe.NewResolver(c.DNSServer, probe.DefaultDNSTimeout)))
	}
	return probe.New(opts...)
}

// NewFeed returns feed.Disabled when the feed is switched off.
func NewFeed(c config.FeedConfig) (scheduler.FeedFetcher, error) {
	if !c.Enabled {
		return feed.Disabled{}, nil
	}
	return feed.NewClient(c.URL, feed.WithTimeout(c.Timeout), feed.WithUserAgent(c.UserAgent))
}

// NewNotifier always logs; Slack is added when a webhook is configured.
func NewNotifier(c config.NotifyConfig, logger *zap.Logger) notify.Notifier {
	m := notify.Multi{notify.Log{Logger: logger}}
	if c.SlackWebhook != "" {
		m = append(m, notify.NewSlack(c.SlackWebhook))
	}
	return m
}

// NewOrchestrator wires a cycle orchestrator over store. The deep prober is
// the configured prober with the handshake forced on.
func NewOrchestrator(cfg *config.Config, logger *zap.Logger, store *memory.Store) (*scheduler.Orchestrator, error) {
	prober, err := NewProber(cfg.Probe)
	if err != nil {
		return nil, err
	}
	fetcher, err := NewFeed(cfg.Feed)
	if err != nil {
		return nil, fmt.Errorf("feed: %w", err)
	}
	// resolve, connect, then a full response window
	probeTimeout := probe.DefaultDNSTimeout + cfg.Probe.ConnectTimeout + cfg.Probe.ResponseTimeout
	o := scheduler.NewOrchestrator(
		logger,
		prober,
		fetcher,
		store,
		scheduler.NewDetector(store.Projection()),
		cfg.Probe.Concurrency,
		probeTimeout,
	)
	o.DeepProber = prober.WithHandshakeEnabled()
	return o, nil
}
