package domain

import (
	"encoding/json"
	"time"
)

// Unmeasured is the latency of a probe that never produced a measurement.
// Zero is a valid elapsed time and must not be used for this.
const Unmeasured time.Duration = -1

// ProbeFailure classifies why a transport probe did not reach its target.
type ProbeFailure string

const (
	ProbeTimeout             ProbeFailure = "timeout"
	ProbeRefused             ProbeFailure = "refused"
	ProbeOtherTransportError ProbeFailure = "transport_error"
)

// ResponseKind classifies whatever the peer sent back after the handshake frame.
type ResponseKind string

const (
	ResponseLoginAck          ResponseKind = "login-ack"
	ResponseServerStatus      ResponseKind = "server-status"
	ResponseMaintenance       ResponseKind = "maintenance"
	ResponseMaintenanceNotice ResponseKind = "maintenance-notice"
	ResponseUnknown           ResponseKind = "unknown"
	ResponseShort             ResponseKind = "short"
	ResponseClosed            ResponseKind = "closed"
)

type Response struct {
	Bytes  int          `json:"bytes"`
	Header uint32       `json:"header"`
	Kind   ResponseKind `json:"kind"`
}

// ProbeResult is immutable once produced.
type ProbeResult struct {
	Reachable  bool          `json:"reachable"`
	Latency    time.Duration `json:"-"`
	Diagnostic string        `json:"diagnostic"`
	Failure    ProbeFailure  `json:"failure,omitempty"`
	Response   *Response     `json:"response,omitempty"`
}

// Measured reports whether Latency holds a real elapsed time.
func (p ProbeResult) Measured() bool {
	return p.Latency >= 0
}

// LatencyMS returns the latency in milliseconds, or nil when unmeasured.
func (p ProbeResult) LatencyMS() *float64 {
	if !p.Measured() {
		return nil
	}
	ms := float64(p.Latency) / float64(time.Millisecond)
	return &ms
}

func (p ProbeResult) MarshalJSON() ([]byte, error) {
	type alias ProbeResult
	return json.Marshal(struct {
		alias
		LatencyMS *float64 `json:"latency_ms"`
	}{alias: alias(p), LatencyMS: p.LatencyMS()})
}

// Unreachable builds a failed probe result.
func Unreachable(kind ProbeFailure, diagnostic string) ProbeResult {
	return ProbeResult{
		Reachable:  false,
		Latency:    Unmeasured,
		Diagnostic: diagnostic,
		Failure:    kind,
	}
}
