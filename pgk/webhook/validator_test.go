package webhook

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver map[string][]string

func (f fakeResolver) LookupNetIP(_ context.Context, _ string, host string) ([]netip.Addr, error) {
	raw, ok := f[host]
	if !ok {
		return nil, errors.New("no such host")
	}
	addrs := make([]netip.Addr, 0, len(raw))
	for _, r := range raw {
		addrs = append(addrs, netip.MustParseAddr(r))
	}
	return addrs, nil
}

var publicDNS = fakeResolver{
	"hooks.example.com":  {"93.184.216.34"},
	"api.example.com":    {"93.184.216.35", "2606:2800:220:1::1"},
	"example.com":        {"93.184.216.36"},
	"rebind.example.com": {"93.184.216.34", "127.0.0.1"},
	"loop.example.com":   {"127.0.0.1"},
	"mapped.example.com": {"::ffff:10.0.0.5"},
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		allow   []string
		url     string
		wantErr error
	}{
		{"https host", nil, "https://hooks.example.com/notify", nil},
		{"http host with port", nil, "http://api.example.com:8080/x", nil},
		{"public literal ip", nil, "http://8.8.8.8/hook", nil},
		{"ftp scheme", nil, "ftp://hooks.example.com/file", ErrUnsupportedScheme},
		{"no scheme", nil, "hooks.example.com/notify", ErrUnsupportedScheme},
		{"empty host", nil, "http:///path", ErrBlockedHost},
		{"localhost", nil, "http://localhost:3000", ErrBlockedHost},
		{"dot localhost", nil, "http://app.localhost", ErrBlockedHost},
		{"mdns name", nil, "http://printer.local/", ErrBlockedHost},
		{"uppercase localhost", nil, "http://LOCALHOST/", ErrBlockedHost},
		{"loopback literal", nil, "http://127.0.0.1/", ErrPrivateAddress},
		{"private literal", nil, "http://10.1.2.3/", ErrPrivateAddress},
		{"cgnat literal", nil, "http://100.64.0.1/", ErrPrivateAddress},
		{"metadata literal", nil, "http://169.254.169.254/latest", ErrPrivateAddress},
		{"benchmark literal", nil, "http://198.19.0.1/", ErrPrivateAddress},
		{"unspecified literal", nil, "http://0.0.0.0/", ErrPrivateAddress},
		{"ipv6 loopback", nil, "http://[::1]/", ErrPrivateAddress},
		{"ipv6 unique local", nil, "http://[fd12::1]/", ErrPrivateAddress},
		{"ipv6 link local", nil, "http://[fe80::1]/", ErrPrivateAddress},
		{"ipv4 mapped loopback", nil, "http://[::ffff:127.0.0.1]/", ErrPrivateAddress},
		{"dns to loopback", nil, "https://loop.example.com/", ErrPrivateAddress},
		{"any private answer rejects", nil, "https://rebind.example.com/", ErrPrivateAddress},
		{"dns to mapped private", nil, "https://mapped.example.com/", ErrPrivateAddress},
		{"unresolvable", nil, "https://nowhere.example.net/", ErrResolveFailed},
		{"allowlist exact", []string{"hooks.example.com"}, "https://hooks.example.com/", nil},
		{"allowlist wildcard", []string{"*.example.com"}, "https://api.example.com/", nil},
		{"allowlist wildcard apex", []string{"*.example.com"}, "https://example.com/", nil},
		{"allowlist miss", []string{"hooks.example.com"}, "https://api.example.com/", ErrHostNotAllowed},
		{"allowlist suffix is not a subdomain", []string{"*.example.com"}, "https://badexample.com/", ErrHostNotAllowed},
		{"allowlisted loopback name", []string{"loop.example.com"}, "https://loop.example.com/", ErrPrivateAddress},
		{"allowlisted loopback ip", []string{"127.0.0.1"}, "http://127.0.0.1/", ErrPrivateAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(tt.allow, WithResolver(publicDNS))
			u, err := v.Validate(context.Background(), tt.url)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, u)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, u)
		})
	}
}

func TestParseAllowedHosts(t *testing.T) {
	assert.Equal(t, []string{"api.example.com", "*.hooks.example.org"}, ParseAllowedHosts(" API.example.com , ,*.hooks.example.org."))
	assert.Empty(t, ParseAllowedHosts(""))
}

func TestIsPrivateAddr(t *testing.T) {
	tests := []struct {
		addr    string
		private bool
	}{
		{"10.0.0.1", true},
		{"172.16.0.1", true},
		{"172.31.255.255", true},
		{"172.32.0.1", false},
		{"192.168.1.1", true},
		{"127.0.0.53", true},
		{"100.127.255.255", true},
		{"100.128.0.1", false},
		{"198.18.0.1", true},
		{"198.20.0.1", false},
		{"0.0.0.0", true},
		{"1.1.1.1", false},
		{"::1", true},
		{"fc00::1", true},
		{"fe80::1%eth0", true},
		{"::ffff:192.168.0.1", true},
		{"::ffff:8.8.8.8", false},
		{"2001:4860:4860::8888", false},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.private, IsPrivateAddr(netip.MustParseAddr(tt.addr)))
		})
	}
}

func TestDenyPrivateControl(t *testing.T) {
	assert.ErrorIs(t, denyPrivateControl("tcp4", "127.0.0.1:80", nil), ErrPrivateAddress)
	assert.ErrorIs(t, denyPrivateControl("tcp6", "[::1]:443", nil), ErrPrivateAddress)
	assert.NoError(t, denyPrivateControl("tcp4", "93.184.216.34:443", nil))

	transport := NewSafeTransport()
	assert.Nil(t, transport.Proxy)
	assert.NotNil(t, transport.DialContext)
}
