package verifier

import (
	"context"
	"net"
	"testing"

	"github.com/foxcpp/go-mockdns"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerifier(t *testing.T, opts Options, zones map[string]mockdns.Zone) *Verifier {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	v, err := New(opts, log)
	require.NoError(t, err)
	return v.WithResolver(&mockdns.Resolver{Zones: zones})
}

func TestResolveMXOrderingAndDedup(t *testing.T) {
	v := newTestVerifier(t, Options{}, map[string]mockdns.Zone{
		"example.org.": {
			MX: []net.MX{
				{Host: "backup.example.org.", Pref: 20},
				{Host: "mx1.example.org.", Pref: 10},
				{Host: "backup.example.org.", Pref: 30},
				{Host: "mx2.example.org.", Pref: 10},
			},
		},
	})

	tr := newTrace(false, logrus.StandardLogger())
	cands := v.resolveMX(context.Background(), "example.org", v.Options(), tr)

	require.Len(t, cands, 3)
	// Ascending preference; equal preferences keep answer order; the
	// duplicate host keeps its lowest preference.
	assert.Equal(t, MXCandidate{Pref: 10, Host: "mx1.example.org"}, cands[0])
	assert.Equal(t, MXCandidate{Pref: 10, Host: "mx2.example.org"}, cands[1])
	assert.Equal(t, MXCandidate{Pref: 20, Host: "backup.example.org"}, cands[2])
}

func TestResolveMXErrorIsEmpty(t *testing.T) {
	v := newTestVerifier(t, Options{}, map[string]mockdns.Zone{})
	tr := newTrace(false, logrus.StandardLogger())
	cands := v.resolveMX(context.Background(), "missing.example", v.Options(), tr)
	assert.Empty(t, cands)
}

func TestResolveAFallback(t *testing.T) {
	v := newTestVerifier(t, Options{}, map[string]mockdns.Zone{
		"apex.example.": {A: []string{"192.0.2.10"}},
	})
	tr := newTrace(false, logrus.StandardLogger())
	addrs := v.resolveA(context.Background(), "apex.example", v.Options(), tr)
	require.Len(t, addrs, 1)
	assert.Equal(t, "192.0.2.10", addrs[0])
}
