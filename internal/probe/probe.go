package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hamed0406/servicecheck/internal/domain"
)

const (
	DefaultConnectTimeout  = 1000 * time.Millisecond
	DefaultResponseTimeout = 5000 * time.Millisecond

	readBufferSize = 1024
)

// LatencyMode selects which elapsed time a successful probe reports.
type LatencyMode string

const (
	// LatencyConnect measures until the TCP connection is established.
	LatencyConnect LatencyMode = "connect"
	// LatencyResponse measures until the first response byte, falling back to
	// the connect time when the peer never answers.
	LatencyResponse LatencyMode = "response"
)

// DialFunc matches (*net.Dialer).DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// TCPProber checks that a target accepts TCP connections and optionally
// provokes a reply with the synthetic handshake frame.
type TCPProber struct {
	connectTimeout  time.Duration
	responseTimeout time.Duration
	handshake       bool
	latencyMode     LatencyMode
	resolver        *Resolver
	dial            DialFunc
	now             func() time.Time
}

type Option func(*TCPProber) error

func WithConnectTimeout(d time.Duration) Option {
	return func(p *TCPProber) error {
		if d <= 0 {
			return fmt.Errorf("connect timeout must be positive, got %v", d)
		}
		p.connectTimeout = d
		return nil
	}
}

func WithResponseTimeout(d time.Duration) Option {
	return func(p *TCPProber) error {
		if d <= 0 {
			return fmt.Errorf("response timeout must be positive, got %v", d)
		}
		p.responseTimeout = d
		return nil
	}
}

func WithHandshake(on bool) Option {
	return func(p *TCPProber) error {
		p.handshake = on
		return nil
	}
}

func WithLatencyMode(m LatencyMode) Option {
	return func(p *TCPProber) error {
		switch m {
		case LatencyConnect, LatencyResponse:
			p.latencyMode = m
			return nil
		case "":
			p.latencyMode = LatencyConnect
			return nil
		default:
			return fmt.Errorf("unknown latency mode %q", m)
		}
	}
}

func WithResolver(r *Resolver) Option {
	return func(p *TCPProber) error {
		p.resolver = r
		return nil
	}
}

// WithDialer replaces the network dialer, mainly for tests.
func WithDialer(d DialFunc) Option {
	return func(p *TCPProber) error {
		if d == nil {
			return errors.New("dialer must not be nil")
		}
		p.dial = d
		return nil
	}
}

func New(opts ...Option) (*TCPProber, error) {
	var d net.Dialer
	p := &TCPProber{
		connectTimeout:  DefaultConnectTimeout,
		responseTimeout: DefaultResponseTimeout,
		latencyMode:     LatencyConnect,
		dial:            d.DialContext,
		now:             time.Now,
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, fmt.Errorf("probe: %w", err)
		}
	}
	return p, nil
}

// WithHandshakeEnabled returns a copy of p that always sends the handshake frame.
func (p *TCPProber) WithHandshakeEnabled() *TCPProber {
	cp := *p
	cp.handshake = true
	return &cp
}

// ProbeTarget probes t's address and port.
func (p *TCPProber) ProbeTarget(ctx context.Context, t domain.Target) domain.ProbeResult {
	return p.Probe(ctx, t.Address, t.Port)
}

// Probe never returns an error; every failure is expressed in the result.
// The connection is closed on every path.
func (p *TCPProber) Probe(ctx context.Context, address string, port int) domain.ProbeResult {
	host := strings.TrimSpace(address)
	// An empty host would dial the local machine.
	if host == "" {
		return domain.Unreachable(domain.ProbeOtherTransportError, "invalid address: empty host")
	}
	if p.resolver != nil {
		ip, err := p.resolver.Resolve(ctx, host)
		if err != nil {
			return domain.Unreachable(domain.ProbeOtherTransportError, "dns resolution failed: "+err.Error())
		}
		host = ip
	}

	dctx, cancel := context.WithTimeout(ctx, p.connectTimeout)
	defer cancel()

	start := time.Now()
	conn, err := p.dial(dctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return classifyDialError(err, p.connectTimeout)
	}
	defer conn.Close()
	connectLatency := time.Since(start)

	if !p.handshake {
		return domain.ProbeResult{
			Reachable:  true,
			Latency:    connectLatency,
			Diagnostic: "connected",
		}
	}
	return p.exchange(ctx, conn, start, connectLatency)
}

func (p *TCPProber) exchange(ctx context.Context, conn net.Conn, start time.Time, connectLatency time.Duration) domain.ProbeResult {
	res := domain.ProbeResult{Reachable: true, Latency: connectLatency}

	deadline := time.Now().Add(p.responseTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if _, err := conn.Write(NewFrame(p.now()).Bytes()); err != nil {
		res.Diagnostic = "connected, handshake write failed: " + err.Error()
		return res
	}

	buf := make([]byte, readBufferSize)
	n, err := conn.Read(buf)
	if n > 0 {
		resp := ClassifyResponse(buf[:n])
		res.Response = &resp
		res.Diagnostic = fmt.Sprintf("connected, received %d bytes (%s)", n, resp.Kind)
		if p.latencyMode == LatencyResponse {
			res.Latency = time.Since(start)
		}
		return res
	}

	var ne net.Error
	switch {
	case errors.Is(err, io.EOF):
		resp := ClassifyResponse(nil)
		res.Response = &resp
		res.Diagnostic = "connected, peer closed connection without data"
	case errors.As(err, &ne) && ne.Timeout():
		res.Diagnostic = fmt.Sprintf("connected, no response within %s", p.responseTimeout)
	case err != nil:
		res.Diagnostic = "connected, read failed: " + err.Error()
	default:
		res.Diagnostic = "connected, empty read"
	}
	return res
}

func classifyDialError(err error, timeout time.Duration) domain.ProbeResult {
	var ne net.Error
	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		return domain.Unreachable(domain.ProbeTimeout, fmt.Sprintf("connect timeout (%s)", timeout))
	case errors.Is(err, syscall.ECONNREFUSED):
		return domain.Unreachable(domain.ProbeRefused, "connection refused")
	case errors.As(err, &dnsErr):
		return domain.Unreachable(domain.ProbeOtherTransportError, "dns resolution failed: "+dnsErr.Error())
	case errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		return domain.Unreachable(domain.ProbeOtherTransportError, "host unreachable: "+err.Error())
	default:
		return domain.Unreachable(domain.ProbeOtherTransportError, "transport error: "+err.Error())
	}
}
