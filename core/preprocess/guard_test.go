package preprocess

import (
	"context"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/prism/core/errors"
)

// staticLookup resolves every host to the given addresses.
func staticLookup(addrs ...string) func(ctx context.Context, host string) ([]netip.Addr, error) {
	return func(ctx context.Context, host string) ([]netip.Addr, error) {
		out := make([]netip.Addr, 0, len(addrs))
		for _, a := range addrs {
			out = append(out, netip.MustParseAddr(a))
		}
		return out, nil
	}
}

func TestValidateURLAcceptsPublicHost(t *testing.T) {
	g := NewGuard().WithLookup(staticLookup("93.184.216.34"))

	err := g.ValidateURL(context.Background(), "https://example.com/shot.png")
	assert.NoError(t, err)
}

func TestValidateURLRejectsSchemes(t *testing.T) {
	g := NewGuard().WithLookup(staticLookup("93.184.216.34"))

	for _, raw := range []string{
		"file:///etc/passwd",
		"ftp://example.com/a.png",
		"gopher://example.com/",
	} {
		err := g.ValidateURL(context.Background(), raw)
		require.Error(t, err, "scheme of %s must be rejected", raw)
		assert.Equal(t, errors.KindValidation, errors.GetKind(err))
	}
}

func TestValidateURLRejectsMetadataHosts(t *testing.T) {
	g := NewGuard().WithLookup(staticLookup("93.184.216.34"))

	for _, raw := range []string{
		"http://metadata.google.internal/computeMetadata/v1/",
		"http://anything.internal/secret",
		"http://instance-data/latest/meta-data/",
	} {
		err := g.ValidateURL(context.Background(), raw)
		assert.Error(t, err, "%s must be rejected by name", raw)
	}
}

func TestValidateURLRejectsNonPublicAddresses(t *testing.T) {
	cases := map[string]string{
		"loopback":    "127.0.0.1",
		"private-10":  "10.1.2.3",
		"private-172": "172.16.0.9",
		"private-192": "192.168.1.1",
		"link-local":  "169.254.169.254",
		"unspecified": "0.0.0.0",
		"v6-loopback": "::1",
	}

	for name, addr := range cases {
		t.Run(name, func(t *testing.T) {
			g := NewGuard().WithLookup(staticLookup(addr))
			err := g.ValidateURL(context.Background(), "http://evil.example.com/a.png")
			require.Error(t, err)
			assert.Equal(t, errors.KindValidation, errors.GetKind(err))
		})
	}
}

func TestValidateURLRejectsLiteralPrivateIP(t *testing.T) {
	// Literal addresses must be checked without any resolver involvement.
	g := NewGuard().WithLookup(func(ctx context.Context, host string) ([]netip.Addr, error) {
		t.Fatal("resolver must not be consulted for literal addresses")
		return nil, nil
	})

	err := g.ValidateURL(context.Background(), "http://169.254.169.254/latest/meta-data/")
	assert.Error(t, err)
}

func TestValidateURLRejectsAnyBadAddressInSet(t *testing.T) {
	g := NewGuard().WithLookup(staticLookup("93.184.216.34", "127.0.0.1"))

	err := g.ValidateURL(context.Background(), "http://rebind.example.com/a.png")
	assert.Error(t, err, "a single non-public address taints the whole host")
}
