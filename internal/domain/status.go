package domain

// Status is the reconciled classification of a target for one cycle.
type Status string

const (
	StatusFullyOnline           Status = "fully_online"
	StatusReachableFeedOffline  Status = "reachable_feed_offline"
	StatusUnreachableFeedOnline Status = "unreachable_feed_online"
	StatusFullyOffline          Status = "fully_offline"
)

// IsUp is true only for StatusFullyOnline; partial signals never count as up.
func (s Status) IsUp() bool {
	return s == StatusFullyOnline
}

func (s Status) Label() string {
	switch s {
	case StatusFullyOnline:
		return "online"
	case StatusReachableFeedOffline:
		return "reachable, feed offline"
	case StatusUnreachableFeedOnline:
		return "unreachable, feed online"
	case StatusFullyOffline:
		return "offline"
	default:
		return string(s)
	}
}
