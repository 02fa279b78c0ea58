package preprocess

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"

	"github.com/adalundhe/prism/core/errors"
)

// blockedHosts are metadata endpoints rejected by name, before any
// resolution.
var blockedHosts = map[string]bool{
	"metadata.google.internal":   true,
	"metadata.goog":              true,
	"instance-data":              true,
	"instance-data.ec2.internal": true,
}

// Guard validates that an image URL is safe to fetch. The check runs
// strictly before any fetch attempt; there is no trusted-input bypass.
type Guard struct {
	lookup func(ctx context.Context, host string) ([]netip.Addr, error)
}

// NewGuard creates a Guard using the default resolver.
func NewGuard() *Guard {
	return &Guard{
		lookup: func(ctx context.Context, host string) ([]netip.Addr, error) {
			return net.DefaultResolver.LookupNetIP(ctx, "ip", host)
		},
	}
}

// WithLookup replaces the guard's resolver, for tests.
func (g *Guard) WithLookup(lookup func(ctx context.Context, host string) ([]netip.Addr, error)) *Guard {
	g.lookup = lookup
	return g
}

// ValidateURL rejects non-HTTP(S) schemes, metadata endpoints, and hosts
// that resolve to loopback, link-local, private, or otherwise non-public
// addresses.
func (g *Guard) ValidateURL(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.New(errors.KindValidation, fmt.Sprintf("malformed image url %q", rawURL), err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return errors.New(errors.KindValidation, fmt.Sprintf("scheme %q is not allowed", u.Scheme), nil)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return errors.New(errors.KindValidation, "image url has no host", nil)
	}
	if blockedHosts[host] || strings.HasSuffix(host, ".internal") {
		return errors.New(errors.KindValidation, fmt.Sprintf("host %q is a blocked metadata endpoint", host), nil)
	}

	addrs, err := g.resolve(ctx, host)
	if err != nil {
		return errors.New(errors.KindNetwork, fmt.Sprintf("resolving host %q", host), err)
	}

	for _, addr := range addrs {
		if reason := rejectAddr(addr); reason != "" {
			return errors.New(errors.KindValidation,
				fmt.Sprintf("host %q resolves to %s address %s", host, reason, addr), nil)
		}
	}

	return nil
}

// resolve returns the host's addresses, handling literal IPs without a
// lookup.
func (g *Guard) resolve(ctx context.Context, host string) ([]netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return []netip.Addr{addr}, nil
	}
	return g.lookup(ctx, host)
}

// rejectAddr returns a non-empty reason when the address must not be
// fetched from.
func rejectAddr(addr netip.Addr) string {
	addr = addr.Unmap()
	switch {
	case addr.IsLoopback():
		return "loopback"
	case addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast():
		return "link-local"
	case addr.IsPrivate():
		return "private"
	case addr.IsUnspecified():
		return "unspecified"
	case addr.IsMulticast():
		return "multicast"
	}
	return ""
}
