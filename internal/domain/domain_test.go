package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestStatus_IsUpOnlyForFullyOnline(t *testing.T) {
	cases := []struct {
		s    Status
		want bool
	}{
		{StatusFullyOnline, true},
		{StatusReachableFeedOffline, false},
		{StatusUnreachableFeedOnline, false},
		{StatusFullyOffline, false},
		{Status(""), false},
	}
	for _, c := range cases {
		if got := c.s.IsUp(); got != c.want {
			t.Fatalf("%q.IsUp()=%v want %v", c.s, got, c.want)
		}
	}
}

func TestProbeResult_UnmeasuredLatencyIsNull(t *testing.T) {
	p := Unreachable(ProbeTimeout, "connect timeout")
	if p.Measured() {
		t.Fatalf("unreachable result should be unmeasured")
	}
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"latency_ms":null`) {
		t.Fatalf("want null latency, got %s", b)
	}
}

func TestProbeResult_ZeroLatencyIsMeasured(t *testing.T) {
	p := ProbeResult{Reachable: true, Latency: 0}
	if !p.Measured() {
		t.Fatalf("zero latency is a real measurement")
	}
	if ms := p.LatencyMS(); ms == nil || *ms != 0 {
		t.Fatalf("want 0ms, got %v", ms)
	}

	p.Latency = 1500 * time.Microsecond
	if ms := p.LatencyMS(); ms == nil || *ms != 1.5 {
		t.Fatalf("want 1.5ms, got %v", ms)
	}
}

func TestTransitionEvent_Message(t *testing.T) {
	e := TransitionEvent{Area: "Chocobo", Target: "C", Status: StatusFullyOnline}
	if got, want := e.Message(), "Chocobo - C is online! (online)"; got != want {
		t.Fatalf("Message()=%q want %q", got, want)
	}
}

func TestCycle_OnlineCount(t *testing.T) {
	c := &Cycle{
		Results: []CheckResult{
			{Status: StatusFullyOnline},
			{Status: StatusReachableFeedOffline},
			{Status: StatusFullyOnline},
			{Status: StatusFullyOffline},
		},
	}
	if got := c.OnlineCount(); got != 2 {
		t.Fatalf("want 2 online, got %d", got)
	}
}

func TestTarget_HostPort(t *testing.T) {
	if got := (Target{Address: "::1", Port: 55006}).HostPort(); got != "[::1]:55006" {
		t.Fatalf("unexpected host port %q", got)
	}
}
