package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// handleMetrics writes the status table in Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Store.List(r.Context())
	if err != nil {
		s.Logger.Warn("metrics_list_error", zap.Error(err))
		http.Error(w, "metrics error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	var b strings.Builder
	b.WriteString("# HELP servicecheck_target_up Whether the target is fully online (1) or not (0).\n")
	b.WriteString("# TYPE servicecheck_target_up gauge\n")
	for _, row := range rows {
		if row.Last == nil {
			continue
		}
		up := 0
		if row.Last.IsUp() {
			up = 1
		}
		fmt.Fprintf(&b, "servicecheck_target_up{area=\"%s\",target=\"%s\",status=\"%s\"} %d\n",
			sanitizePrometheusLabel(row.Target.Area),
			sanitizePrometheusLabel(row.Target.Name),
			row.Last.Status, up)
	}

	b.WriteString("# HELP servicecheck_target_latency_seconds Last measured probe latency.\n")
	b.WriteString("# TYPE servicecheck_target_latency_seconds gauge\n")
	for _, row := range rows {
		if row.Last == nil || !row.Last.Probe.Measured() {
			continue
		}
		fmt.Fprintf(&b, "servicecheck_target_latency_seconds{area=\"%s\",target=\"%s\"} %g\n",
			sanitizePrometheusLabel(row.Target.Area),
			sanitizePrometheusLabel(row.Target.Name),
			row.Last.Probe.Latency.Seconds())
	}

	b.WriteString("# HELP servicecheck_target_selected Whether the target takes part in periodic cycles.\n")
	b.WriteString("# TYPE servicecheck_target_selected gauge\n")
	for _, row := range rows {
		sel := 0
		if row.Selected {
			sel = 1
		}
		fmt.Fprintf(&b, "servicecheck_target_selected{area=\"%s\",target=\"%s\"} %d\n",
			sanitizePrometheusLabel(row.Target.Area),
			sanitizePrometheusLabel(row.Target.Name),
			sel)
	}

	if c, err := s.Store.LatestCycle(r.Context()); err == nil && c != nil {
		feedOK := 1
		if c.FeedError != "" {
			feedOK = 0
		}
		b.WriteString("# HELP servicecheck_cycle_duration_seconds Wall time of the last committed cycle.\n")
		b.WriteString("# TYPE servicecheck_cycle_duration_seconds gauge\n")
		fmt.Fprintf(&b, "servicecheck_cycle_duration_seconds %g\n", c.Duration().Seconds())
		b.WriteString("# HELP servicecheck_cycle_online Targets fully online in the last cycle.\n")
		b.WriteString("# TYPE servicecheck_cycle_online gauge\n")
		fmt.Fprintf(&b, "servicecheck_cycle_online %d\n", c.OnlineCount())
		b.WriteString("# HELP servicecheck_feed_ok Whether the last cycle got a usable feed snapshot.\n")
		b.WriteString("# TYPE servicecheck_feed_ok gauge\n")
		fmt.Fprintf(&b, "servicecheck_feed_ok %d\n", feedOK)
	}

	if s.Monitor != nil {
		on := 0
		if s.Monitor.Enabled() {
			on = 1
		}
		b.WriteString("# HELP servicecheck_monitoring_enabled Whether periodic cycles are running.\n")
		b.WriteString("# TYPE servicecheck_monitoring_enabled gauge\n")
		fmt.Fprintf(&b, "servicecheck_monitoring_enabled %d\n", on)
	}

	_, _ = w.Write([]byte(b.String()))
}

// sanitizePrometheusLabel escapes a label value for the text exposition format.
func sanitizePrometheusLabel(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}
