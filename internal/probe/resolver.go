package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const (
	DNSClassNXDomain    = "NXDOMAIN"
	DNSClassNoARecord   = "NO_A_RECORD"
	DNSClassServFail    = "SERVFAIL_or_TIMEOUT"
	DNSClassInvalidName = "INVALID_NAME"

	DefaultDNSTimeout = 3 * time.Second
)

// DNSError is returned when a target host name cannot be turned into an address.
type DNSError struct {
	Host  string
	Class string
	Err   error
}

func (e *DNSError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dns %s: %s: %v", e.Host, e.Class, e.Err)
	}
	return fmt.Sprintf("dns %s: %s", e.Host, e.Class)
}

func (e *DNSError) Unwrap() error { return e.Err }

// Resolver maps registry addresses to dialable IPs. IP literals pass through.
// With a server configured, names are queried directly over DNS; otherwise the
// system resolver is used.
type Resolver struct {
	server string
	client *dns.Client
	system *net.Resolver
}

func NewResolver(server string, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultDNSTimeout
	}
	if server != "" {
		if _, _, err := net.SplitHostPort(server); err != nil {
			server = net.JoinHostPort(server, "53")
		}
	}
	return &Resolver{
		server: server,
		client: &dns.Client{Timeout: timeout},
		system: &net.Resolver{},
	}
}

func (r *Resolver) Resolve(ctx context.Context, host string) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" || strings.Contains(host, "://") {
		return "", &DNSError{Host: host, Class: DNSClassInvalidName}
	}
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}
	if r.server == "" {
		return r.resolveSystem(ctx, host)
	}

	var lastErr error
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(host), qtype)
		msg.RecursionDesired = true

		resp, _, err := r.client.ExchangeContext(ctx, msg, r.server)
		if err != nil {
			lastErr = &DNSError{Host: host, Class: DNSClassServFail, Err: err}
			continue
		}
		switch resp.Rcode {
		case dns.RcodeSuccess:
		case dns.RcodeNameError:
			return "", &DNSError{Host: host, Class: DNSClassNXDomain}
		default:
			lastErr = &DNSError{Host: host, Class: DNSClassServFail,
				Err: fmt.Errorf("rcode %s", dns.RcodeToString[resp.Rcode])}
			continue
		}
		for _, rr := range resp.Answer {
			switch v := rr.(type) {
			case *dns.A:
				return v.A.String(), nil
			case *dns.AAAA:
				return v.AAAA.String(), nil
			}
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", &DNSError{Host: host, Class: DNSClassNoARecord}
}

func (r *Resolver) resolveSystem(ctx context.Context, host string) (string, error) {
	ips, err := r.system.LookupIP(ctx, "ip", host)
	if err == nil && len(ips) > 0 {
		return ips[0].String(), nil
	}
	if err == nil {
		return "", &DNSError{Host: host, Class: DNSClassNoARecord}
	}
	class := DNSClassServFail
	var de *net.DNSError
	if errors.As(err, &de) && de.IsNotFound {
		class = DNSClassNXDomain
	}
	return "", &DNSError{Host: host, Class: class, Err: err}
}
