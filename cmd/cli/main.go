// Command cli runs one check cycle against the registry and prints the result.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/hamed0406/servicecheck/internal/app"
	"github.com/hamed0406/servicecheck/internal/config"
	"github.com/hamed0406/servicecheck/internal/domain"
	"github.com/hamed0406/servicecheck/internal/registry"
	"github.com/hamed0406/servicecheck/internal/repo/memory"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to configuration file")
		target     = flag.String("target", "", "deep-check a single target by name (sends the handshake frame)")
		asJSON     = flag.Bool("json", false, "print results as JSON")
		verbose    = flag.Bool("v", false, "log cycle events to stderr")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	reg, err := registry.Load(cfg.Registry.Path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load registry:", err)
		os.Exit(1)
	}

	logger := zap.NewNop()
	if *verbose {
		logger, _ = zap.NewDevelopment()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := memory.New()
	if err := store.Load(ctx, reg.Targets(), true); err != nil {
		fmt.Fprintln(os.Stderr, "load targets:", err)
		os.Exit(1)
	}
	orch, err := app.NewOrchestrator(cfg, logger, store)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var results []domain.CheckResult
	if *target != "" {
		t, ok := reg.Lookup(*target)
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown target %q\n", *target)
			os.Exit(1)
		}
		res, err := orch.DeepCheck(ctx, t)
		if err != nil {
			fmt.Fprintln(os.Stderr, "check:", err)
			os.Exit(1)
		}
		results = []domain.CheckResult{res}
	} else {
		c, err := orch.RunCycle(ctx, reg.Targets())
		if err != nil {
			fmt.Fprintln(os.Stderr, "cycle:", err)
			os.Exit(1)
		}
		if c.FeedError != "" {
			fmt.Fprintln(os.Stderr, "feed unavailable:", c.FeedError)
		}
		results = c.Results
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(results)
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "AREA\tTARGET\tSTATUS\tLATENCY\tDETAIL")
	online := 0
	for _, r := range results {
		if r.IsUp() {
			online++
		}
		latency := "-"
		if ms := r.Probe.LatencyMS(); ms != nil {
			latency = fmt.Sprintf("%.0fms", *ms)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Target.Area, r.Target.Name, r.Status.Label(), latency, r.Detail)
	}
	_ = tw.Flush()
	fmt.Printf("\n%d/%d online\n", online, len(results))
}
