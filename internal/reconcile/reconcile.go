// Package reconcile merges the transport probe and the status feed into one
// classification per target.
package reconcile

import (
	"strings"

	"github.com/hamed0406/servicecheck/internal/domain"
)

const (
	DetailFullyOnline           = "transport reachable, feed confirms running"
	DetailReachableFeedOffline  = "transport reachable but feed reports offline"
	DetailUnreachableFeedOnline = "transport unreachable but feed reports running"
	DetailFullyOffline          = "transport unreachable and feed confirms offline"
)

// Reconcile is a pure function of its inputs. rec is nil when the feed was
// absent or did not list the target; both count as "not running".
func Reconcile(probe domain.ProbeResult, rec *domain.FeedRecord) (domain.Status, string) {
	running := rec != nil && rec.Running

	var status domain.Status
	var detail string
	switch {
	case probe.Reachable && running:
		status, detail = domain.StatusFullyOnline, DetailFullyOnline
	case probe.Reachable:
		status, detail = domain.StatusReachableFeedOffline, DetailReachableFeedOffline
	case running:
		status, detail = domain.StatusUnreachableFeedOnline, DetailUnreachableFeedOnline
	default:
		status, detail = domain.StatusFullyOffline, DetailFullyOffline
	}

	if q := Qualifiers(rec); len(q) > 0 {
		detail += " (" + strings.Join(q, ", ") + ")"
	}
	return status, detail
}

// Qualifiers lists the restrictive feed flags in fixed order.
func Qualifiers(rec *domain.FeedRecord) []string {
	if rec == nil {
		return nil
	}
	var q []string
	if rec.IsNew {
		q = append(q, "new server")
	}
	if rec.IsUpgrading {
		q = append(q, "under maintenance")
	}
	if rec.IsBusy {
		q = append(q, "busy")
	}
	if !rec.CanCreateCharacter {
		q = append(q, "character creation disabled")
	}
	if !rec.CanLogin {
		q = append(q, "login disabled")
	}
	return q
}
