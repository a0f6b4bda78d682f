// Package webhook validates outbound webhook targets against SSRF.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

var (
	ErrUnsupportedScheme = errors.New("webhook url must use http or https")
	ErrBlockedHost       = errors.New("webhook host is not allowed")
	ErrHostNotAllowed    = errors.New("webhook host is not in the allowlist")
	ErrPrivateAddress    = errors.New("webhook target resolves to a private network address")
	ErrResolveFailed     = errors.New("webhook host could not be resolved")
)

// Resolver looks up every address of a host. *net.Resolver satisfies it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

type Option func(*Validator)

// WithResolver replaces the DNS resolver, mostly for tests.
func WithResolver(r Resolver) Option {
	return func(v *Validator) {
		v.resolver = r
	}
}

// Validator checks webhook URLs. The zero allowlist allows any public host.
type Validator struct {
	allowedHosts []string
	resolver     Resolver
}

func NewValidator(allowedHosts []string, opts ...Option) *Validator {
	v := &Validator{
		allowedHosts: normalizeHosts(allowedHosts),
		resolver:     net.DefaultResolver,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ParseAllowedHosts splits a comma separated allowlist such as
// "api.example.com, *.hooks.example.org".
func ParseAllowedHosts(raw string) []string {
	return normalizeHosts(strings.Split(raw, ","))
}

func normalizeHosts(hosts []string) []string {
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(h)), ".")
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}

// AllowedHosts returns the normalized allowlist.
func (v *Validator) AllowedHosts() []string {
	return append([]string(nil), v.allowedHosts...)
}

// Validate parses raw and rejects it unless it is an http(s) URL whose host,
// and every address the host resolves to, is public.
func (v *Validator) Validate(ctx context.Context, raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return nil, fmt.Errorf("%w: empty hostname", ErrBlockedHost)
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
		return nil, fmt.Errorf("%w: %s", ErrBlockedHost, host)
	}

	if len(v.allowedHosts) > 0 && !v.hostAllowed(host) {
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, host)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if IsPrivateAddr(addr) {
			return nil, fmt.Errorf("%w: %s", ErrPrivateAddress, addr)
		}
		return u, nil
	}

	addrs, err := v.resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrResolveFailed, host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: %s: no addresses", ErrResolveFailed, host)
	}
	for _, addr := range addrs {
		if IsPrivateAddr(addr) {
			return nil, fmt.Errorf("%w: %s resolves to %s", ErrPrivateAddress, host, addr)
		}
	}
	return u, nil
}

// hostAllowed matches exact entries and "*.domain" wildcards. A wildcard also
// matches the bare domain.
func (v *Validator) hostAllowed(host string) bool {
	for _, pattern := range v.allowedHosts {
		if domain, ok := strings.CutPrefix(pattern, "*."); ok {
			if host == domain || strings.HasSuffix(host, "."+domain) {
				return true
			}
			continue
		}
		if host == pattern {
			return true
		}
	}
	return false
}
