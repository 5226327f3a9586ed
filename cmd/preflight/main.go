// cmd/preflight/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/hamed0406/servicecheck/internal/app"
	"github.com/hamed0406/servicecheck/internal/config"
	"github.com/hamed0406/servicecheck/internal/registry"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	checkFeed := flag.Bool("feed", false, "also fetch the status feed once")
	flag.Parse()

	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail(err.Error())
	}
	ok("config valid (api.addr=" + cfg.API.Addr + ")")

	reg, err := registry.Load(cfg.Registry.Path)
	if err != nil {
		fail("registry " + cfg.Registry.Path + ": " + err.Error())
	}
	ok(fmt.Sprintf("registry %s: %d area(s), %d target(s)", cfg.Registry.Path, len(reg.Areas()), reg.Len()))

	if len(cfg.API.AdminKeys) == 0 {
		warn("api.admin_keys empty; admin routes are open.")
	}
	if len(cfg.API.PublicKeys) == 0 && len(cfg.API.AdminKeys) == 0 {
		warn("no API keys configured; read routes are open.")
	}
	if len(cfg.API.AllowedOrigins) == 0 {
		warn("api.allowed_origins empty; any origin is allowed by CORS.")
	}
	if cfg.Notify.SlackWebhook == "" {
		warn("notify.slack_webhook empty; transitions are only logged.")
	}

	if _, err := app.NewProber(cfg.Probe); err != nil {
		fail(err.Error())
	}
	ok(fmt.Sprintf("probe: connect %v, response %v, handshake=%v, latency=%s",
		cfg.Probe.ConnectTimeout, cfg.Probe.ResponseTimeout, cfg.Probe.Handshake, cfg.Probe.LatencyMode))

	if !cfg.Feed.Enabled {
		warn("feed disabled; every reachable target will report the feed as offline.")
	} else if *checkFeed {
		fetcher, err := app.NewFeed(cfg.Feed)
		if err != nil {
			fail(err.Error())
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Feed.Timeout+time.Second)
		defer cancel()
		snap, err := fetcher.Fetch(ctx)
		if err != nil {
			fail("feed: " + err.Error())
		}
		missing := 0
		for _, t := range reg.Targets() {
			if _, found := snap.Lookup(t.Name); !found {
				missing++
			}
		}
		ok(fmt.Sprintf("feed: %d record(s), %d registry target(s) not listed", snap.Len(), missing))
	}

	ok("preflight passed")
}
