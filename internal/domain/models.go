package domain

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Target is one monitored service endpoint. Names are unique within a registry.
type Target struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Port    int    `json:"port"`
	Area    string `json:"area"`
}

// HostPort returns the dialable "address:port" form.
func (t Target) HostPort() string {
	return net.JoinHostPort(t.Address, strconv.Itoa(t.Port))
}

type Area struct {
	Name    string   `json:"name"`
	Targets []Target `json:"targets"`
}

// FeedRecord is the authoritative status the external feed reports for one service.
type FeedRecord struct {
	Name               string `json:"name"`
	Running            bool   `json:"running"`
	IsNew              bool   `json:"is_new"`
	IsUpgrading        bool   `json:"is_upgrading"`
	IsBusy             bool   `json:"is_busy"`
	CanCreateCharacter bool   `json:"can_create_character"`
	CanLogin           bool   `json:"can_login"`
	IsOut              bool   `json:"is_out"`
}

// CheckResult is the reconciled outcome for one target in one cycle.
type CheckResult struct {
	Target     Target      `json:"target"`
	Probe      ProbeResult `json:"probe"`
	Feed       *FeedRecord `json:"feed,omitempty"`
	FeedAbsent bool        `json:"feed_absent"`
	Status     Status      `json:"status"`
	Detail     string      `json:"detail"`
	CheckedAt  time.Time   `json:"checked_at"`
}

// IsUp reports whether the result counts as "up" for transition detection.
func (r CheckResult) IsUp() bool {
	return r.Status.IsUp()
}

// TransitionEvent records a target that became FullyOnline in a cycle.
type TransitionEvent struct {
	CycleID string    `json:"cycle_id"`
	Area    string    `json:"area"`
	Target  string    `json:"target"`
	Status  Status    `json:"status"`
	At      time.Time `json:"at"`
}

func (e TransitionEvent) Message() string {
	return fmt.Sprintf("%s - %s is online! (%s)", e.Area, e.Target, e.Status.Label())
}

// Cycle is one complete probe-and-reconcile pass.
type Cycle struct {
	ID          string            `json:"id"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
	Results     []CheckResult     `json:"results"`
	Transitions []TransitionEvent `json:"transitions"`
	FeedError   string            `json:"feed_error,omitempty"`
}

func (c *Cycle) Duration() time.Duration {
	return c.FinishedAt.Sub(c.StartedAt)
}

// OnlineCount returns how many results in the cycle are FullyOnline.
func (c *Cycle) OnlineCount() int {
	n := 0
	for _, r := range c.Results {
		if r.IsUp() {
			n++
		}
	}
	return n
}
