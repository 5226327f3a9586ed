package httpapi

import (
	"time"

	"github.com/hamed0406/servicecheck/internal/domain"
	"github.com/hamed0406/servicecheck/internal/repo"
)

type targetView struct {
	Area       string             `json:"area"`
	Name       string             `json:"name"`
	Address    string             `json:"address"`
	Port       int                `json:"port"`
	Selected   bool               `json:"selected"`
	Status     domain.Status      `json:"status"`
	Label      string             `json:"label"`
	Detail     string             `json:"detail"`
	LatencyMS  *float64           `json:"latency_ms"`
	Diagnostic string             `json:"diagnostic,omitempty"`
	Feed       *domain.FeedRecord `json:"feed,omitempty"`
	CheckedAt  *time.Time         `json:"checked_at"`
}

func newTargetView(s repo.TargetState) targetView {
	v := targetView{
		Area:     s.Target.Area,
		Name:     s.Target.Name,
		Address:  s.Target.Address,
		Port:     s.Target.Port,
		Selected: s.Selected,
		Label:    "not checked",
	}
	if s.Last != nil {
		at := s.Last.CheckedAt
		v.Status = s.Last.Status
		v.Label = s.Last.Status.Label()
		v.Detail = s.Last.Detail
		v.LatencyMS = s.Last.Probe.LatencyMS()
		v.Diagnostic = s.Last.Probe.Diagnostic
		v.Feed = s.Last.Feed
		v.CheckedAt = &at
	}
	return v
}

type resultView struct {
	Target     domain.Target      `json:"target"`
	Status     domain.Status      `json:"status"`
	Label      string             `json:"label"`
	Detail     string             `json:"detail"`
	Probe      domain.ProbeResult `json:"probe"`
	Feed       *domain.FeedRecord `json:"feed,omitempty"`
	FeedAbsent bool               `json:"feed_absent"`
	CheckedAt  time.Time          `json:"checked_at"`
}

func newResultView(r domain.CheckResult) resultView {
	return resultView{
		Target:     r.Target,
		Status:     r.Status,
		Label:      r.Status.Label(),
		Detail:     r.Detail,
		Probe:      r.Probe,
		Feed:       r.Feed,
		FeedAbsent: r.FeedAbsent,
		CheckedAt:  r.CheckedAt,
	}
}

type transitionView struct {
	Area    string        `json:"area"`
	Target  string        `json:"target"`
	Status  domain.Status `json:"status"`
	At      time.Time     `json:"at"`
	Message string        `json:"message"`
}

type cycleView struct {
	ID          string           `json:"id"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  time.Time        `json:"finished_at"`
	DurationMS  float64          `json:"duration_ms"`
	Online      int              `json:"online"`
	Total       int              `json:"total"`
	FeedError   string           `json:"feed_error,omitempty"`
	Transitions []transitionView `json:"transitions"`
}

func newCycleView(c *domain.Cycle) cycleView {
	v := cycleView{
		ID:          c.ID,
		StartedAt:   c.StartedAt,
		FinishedAt:  c.FinishedAt,
		DurationMS:  float64(c.Duration()) / float64(time.Millisecond),
		Online:      c.OnlineCount(),
		Total:       len(c.Results),
		FeedError:   c.FeedError,
		Transitions: make([]transitionView, 0, len(c.Transitions)),
	}
	for _, e := range c.Transitions {
		v.Transitions = append(v.Transitions, transitionView{
			Area:    e.Area,
			Target:  e.Target,
			Status:  e.Status,
			At:      e.At,
			Message: e.Message(),
		})
	}
	return v
}
