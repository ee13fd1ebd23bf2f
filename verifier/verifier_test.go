package verifier

import (
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/foxcpp/go-mockdns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopbackZone points the domain's MX at the loopback fake server so the
// prober dials it without real DNS.
func loopbackZone(domain string) map[string]mockdns.Zone {
	return map[string]mockdns.Zone{
		domain + ".": {MX: []net.MX{{Host: "127.0.0.1.", Pref: 10}}},
	}
}

func scenarioVerifier(t *testing.T, port int, zones map[string]mockdns.Zone) *Verifier {
	opts := DefaultOptions()
	opts.Timeout = 2 * time.Second
	opts.Ports = []int{port}
	opts.Verbose = true
	return newTestVerifier(t, opts, zones)
}

func TestCheckDeliverable(t *testing.T) {
	srv := newFakeSMTPServer(t, rejectProbes("user@example.com"))
	v := scenarioVerifier(t, srv.port(), loopbackZone("example.com"))

	res := v.Check(context.Background(), "user@example.com")

	assert.Equal(t, StatusDeliverable, res.Status)
	assert.Nil(t, res.Reason)
	assert.True(t, res.IsValidSyntax)
	assert.True(t, res.DomainHasMX)
	assert.True(t, res.SMTPConnectable)
	require.NotNil(t, res.IsDeliverable)
	assert.True(t, *res.IsDeliverable)
	require.NotNil(t, res.IsCatchAll)
	assert.False(t, *res.IsCatchAll)
	assert.Equal(t, []string{"127.0.0.1"}, res.MXHosts)
	assert.NotEmpty(t, res.Logs)
}

func TestCheckInvalidSyntaxShortCircuits(t *testing.T) {
	v := newTestVerifier(t, Options{}, nil)

	res := v.Check(context.Background(), "bad..dots@example.com")

	assert.Equal(t, StatusInvalidSyntax, res.Status)
	require.NotNil(t, res.Reason)
	assert.Equal(t, ReasonLocalDots, *res.Reason)
	assert.False(t, res.IsValidSyntax)
	assert.False(t, res.DomainHasMX)
	assert.False(t, res.SMTPConnectable)
	assert.Empty(t, res.MXHosts)
}

func TestCheckCatchAllDisposable(t *testing.T) {
	srv := newFakeSMTPServer(t, acceptAll)
	v := scenarioVerifier(t, srv.port(), loopbackZone("mailinator.com"))

	res := v.Check(context.Background(), "anyone@mailinator.com")

	assert.Equal(t, StatusUnknown, res.Status)
	require.NotNil(t, res.Reason)
	assert.Equal(t, ReasonAcceptsAll, *res.Reason)
	require.NotNil(t, res.IsDeliverable)
	assert.True(t, *res.IsDeliverable)
	require.NotNil(t, res.IsCatchAll)
	assert.True(t, *res.IsCatchAll)
	require.NotNil(t, res.IsDisposable)
	assert.True(t, *res.IsDisposable)
}

func TestCheckInvalidDomain(t *testing.T) {
	v := scenarioVerifier(t, 25, map[string]mockdns.Zone{})

	res := v.Check(context.Background(), "x@no-such-domain.invalid")

	assert.Equal(t, StatusInvalidDomain, res.Status)
	require.NotNil(t, res.Reason)
	assert.Equal(t, ReasonNoMXNoA, *res.Reason)
	assert.True(t, res.IsValidSyntax)
	assert.False(t, res.DomainHasMX)
	assert.Empty(t, res.MXHosts)
}

func TestCheckSMTPUnreachable(t *testing.T) {
	port := unusedTCPPort(t)
	v := scenarioVerifier(t, port, loopbackZone("example.com"))

	res := v.Check(context.Background(), "x@example.com")

	assert.Equal(t, StatusUnknown, res.Status)
	require.NotNil(t, res.Reason)
	assert.Equal(t, ReasonSMTPUnreachable, *res.Reason)
	assert.False(t, res.SMTPConnectable)
	assert.Nil(t, res.IsDeliverable)
	assert.Equal(t, []string{"127.0.0.1"}, res.MXHosts)
}

func TestCheckUndeliverable(t *testing.T) {
	srv := newFakeSMTPServer(t, func(string) string { return "550 5.1.1 No such user" })
	v := scenarioVerifier(t, srv.port(), loopbackZone("example.com"))

	res := v.Check(context.Background(), "ghost@example.com")

	assert.Equal(t, StatusUndeliverable, res.Status)
	require.NotNil(t, res.Reason)
	assert.Equal(t, "rcpt_550", *res.Reason)
	require.NotNil(t, res.IsDeliverable)
	assert.False(t, *res.IsDeliverable)
	assert.Nil(t, res.IsCatchAll)
}

func TestCheckTempFail(t *testing.T) {
	srv := newFakeSMTPServer(t, func(string) string { return "451 4.7.1 Greylisted" })
	v := scenarioVerifier(t, srv.port(), loopbackZone("example.com"))

	res := v.Check(context.Background(), "user@example.com")

	assert.Equal(t, StatusUnknown, res.Status)
	require.NotNil(t, res.Reason)
	assert.Equal(t, "rcpt_451", *res.Reason)
	assert.Nil(t, res.IsDeliverable)
}

func TestCheckAFallbackHost(t *testing.T) {
	srv := newFakeSMTPServer(t, rejectProbes("user@example.net"))
	// No MX record: only an A record for the domain itself, so the domain
	// becomes the synthetic SMTP host. The dial hook sends the prober to
	// the loopback fixture regardless of hostname.
	zones := map[string]mockdns.Zone{
		"example.net.": {A: []string{"127.0.0.1"}},
	}
	opts := DefaultOptions()
	opts.Timeout = 2 * time.Second
	opts.Ports = []int{srv.port()}
	v := newTestVerifier(t, opts, zones)
	v.dial = func(ctx context.Context, network, addr string, timeout time.Duration) (net.Conn, error) {
		return defaultDial(ctx, network, fmt.Sprintf("127.0.0.1:%d", srv.port()), timeout)
	}

	res := v.Check(context.Background(), "user@example.net")

	assert.False(t, res.DomainHasMX)
	assert.Equal(t, []string{"example.net"}, res.MXHosts)
	assert.Equal(t, StatusDeliverable, res.Status)
}

func TestCheckDisposableIsAdvisory(t *testing.T) {
	srv := newFakeSMTPServer(t, rejectProbes("real@tempmail.com"))
	v := scenarioVerifier(t, srv.port(), loopbackZone("tempmail.com"))

	res := v.Check(context.Background(), "real@tempmail.com")

	// Disposable flag does not change the verdict.
	assert.Equal(t, StatusDeliverable, res.Status)
	require.NotNil(t, res.IsDisposable)
	assert.True(t, *res.IsDisposable)
}

func TestCheckWithRejectsBadArguments(t *testing.T) {
	v := newTestVerifier(t, Options{}, nil)

	_, err := v.CheckWith(context.Background(), "a@b.co", Options{Ports: []int{0}})
	assert.ErrorIs(t, err, ErrBadPorts)

	_, err = v.CheckWith(context.Background(), "a@b.co", Options{Timeout: -time.Second})
	assert.ErrorIs(t, err, ErrBadTimeout)

	_, err = v.CheckWith(context.Background(), "a@b.co", Options{MaxMX: -1})
	assert.ErrorIs(t, err, ErrBadMaxMX)
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{Ports: []int{70000}}, nil)
	assert.ErrorIs(t, err, ErrBadPorts)
}

// Invariant sweep over a mixed set of inputs, per the result-pairing rules.
func TestResultInvariants(t *testing.T) {
	srv := newFakeSMTPServer(t, rejectProbes("user@example.com"))
	zones := loopbackZone("example.com")
	zones["dead.example."] = mockdns.Zone{MX: []net.MX{{Host: "127.0.0.1.", Pref: 5}}}
	v := scenarioVerifier(t, srv.port(), zones)

	inputs := []string{
		"user@example.com",
		"ghost@example.com",
		"bad..dots@example.com",
		"nodomain",
		"x@no-such-domain.invalid",
	}
	for _, email := range inputs {
		res := v.Check(context.Background(), email)
		assertInvariants(t, res)
	}
}

func assertInvariants(t *testing.T, res *Result) {
	t.Helper()
	label := fmt.Sprintf("%s (%s)", res.Email, res.Status)

	switch res.Status {
	case StatusInvalidSyntax:
		assert.False(t, res.IsValidSyntax, label)
		assert.Empty(t, res.MXHosts, label)
	case StatusInvalidDomain:
		assert.True(t, res.IsValidSyntax, label)
		assert.False(t, res.DomainHasMX, label)
		assert.Empty(t, res.MXHosts, label)
	case StatusDeliverable:
		require.NotNil(t, res.IsDeliverable, label)
		assert.True(t, *res.IsDeliverable, label)
		require.NotNil(t, res.IsCatchAll, label)
		assert.False(t, *res.IsCatchAll, label)
	}
	if res.Status == StatusUnknown && res.Reason != nil && *res.Reason == ReasonAcceptsAll {
		assert.True(t, *res.IsDeliverable, label)
		assert.True(t, *res.IsCatchAll, label)
	}
	if !res.SMTPConnectable && res.IsDeliverable == nil && res.IsValidSyntax && res.DomainHasMX {
		assert.Equal(t, StatusUnknown, res.Status, label)
	}
	// mx_hosts is non-empty iff an SMTP attempt was made.
	attempted := res.Status != StatusInvalidSyntax && res.Status != StatusInvalidDomain
	assert.Equal(t, attempted, len(res.MXHosts) > 0, label)
}

func TestCatchAllSoftFailureIsConservative(t *testing.T) {
	// Real address accepted, probe greylisted: catch-all must stay false
	// so the deliverable verdict survives.
	srv := newFakeSMTPServer(t, func(to string) string {
		if strings.HasPrefix(to, probeLocalPrefix) {
			return "451 4.7.1 Greylisted"
		}
		return "250 OK"
	})
	v := scenarioVerifier(t, srv.port(), loopbackZone("example.com"))

	res := v.Check(context.Background(), "user@example.com")

	assert.Equal(t, StatusDeliverable, res.Status)
	require.NotNil(t, res.IsCatchAll)
	assert.False(t, *res.IsCatchAll)
}

func TestRandomProbeLocal(t *testing.T) {
	local := randomProbeLocal()
	assert.True(t, strings.HasPrefix(local, probeLocalPrefix))
	assert.Len(t, local, len(probeLocalPrefix)+probeLocalLen)
	assert.NotEqual(t, local, randomProbeLocal())
}
