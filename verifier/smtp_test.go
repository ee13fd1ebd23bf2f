package verifier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probeOpts(port int) Options {
	opts := DefaultOptions()
	opts.Timeout = 2 * time.Second
	opts.Ports = []int{port}
	return opts
}

func TestProbeHostAccepted(t *testing.T) {
	srv := newFakeSMTPServer(t, acceptAll)
	v := newTestVerifier(t, Options{}, nil)

	tr := newTrace(true, v.log)
	out := v.probeHost(context.Background(), "127.0.0.1", "user@example.com", probeOpts(srv.port()), tr)

	assert.True(t, out.Connected)
	assert.True(t, out.Accepted)
	assert.Equal(t, 250, out.Code)
	assert.NotEmpty(t, tr.lines)
}

func TestProbeHostHardReject(t *testing.T) {
	srv := newFakeSMTPServer(t, func(string) string { return "550 5.1.1 User unknown" })
	v := newTestVerifier(t, Options{}, nil)

	tr := newTrace(false, v.log)
	out := v.probeHost(context.Background(), "127.0.0.1", "ghost@example.com", probeOpts(srv.port()), tr)

	assert.True(t, out.Connected)
	assert.False(t, out.Accepted)
	assert.Equal(t, 550, out.Code)
	assert.Contains(t, out.Message, "User unknown")
}

func TestProbeHostSoftFailure(t *testing.T) {
	srv := newFakeSMTPServer(t, func(string) string { return "451 4.7.1 Greylisted, try later" })
	v := newTestVerifier(t, Options{}, nil)

	tr := newTrace(false, v.log)
	out := v.probeHost(context.Background(), "127.0.0.1", "user@example.com", probeOpts(srv.port()), tr)

	assert.True(t, out.Connected)
	assert.False(t, out.Accepted)
	assert.Equal(t, 451, out.Code)
}

func TestProbeHostConnectRefused(t *testing.T) {
	port := unusedTCPPort(t)
	v := newTestVerifier(t, Options{}, nil)

	tr := newTrace(false, v.log)
	out := v.probeHost(context.Background(), "127.0.0.1", "user@example.com", probeOpts(port), tr)

	assert.False(t, out.Connected)
	assert.False(t, out.Accepted)
	assert.Zero(t, out.Code)
}

func TestProbeHostSecondPortWins(t *testing.T) {
	srv := newFakeSMTPServer(t, acceptAll)
	dead := unusedTCPPort(t)
	v := newTestVerifier(t, Options{}, nil)

	opts := probeOpts(dead)
	opts.Ports = []int{dead, srv.port()}

	tr := newTrace(false, v.log)
	out := v.probeHost(context.Background(), "127.0.0.1", "user@example.com", opts, tr)

	assert.True(t, out.Connected)
	assert.True(t, out.Accepted)
}

func TestProbeHostCancelledContext(t *testing.T) {
	srv := newFakeSMTPServer(t, acceptAll)
	v := newTestVerifier(t, Options{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := newTrace(false, v.log)
	out := v.probeHost(ctx, "127.0.0.1", "user@example.com", probeOpts(srv.port()), tr)

	assert.False(t, out.Connected)
	require.Zero(t, srv.sessionCount())
}

func TestParsePorts(t *testing.T) {
	ports, err := ParsePorts("25, 587,465")
	require.NoError(t, err)
	assert.Equal(t, []int{25, 587, 465}, ports)

	_, err = ParsePorts("25,abc")
	assert.ErrorIs(t, err, ErrBadPorts)
	_, err = ParsePorts("0")
	assert.ErrorIs(t, err, ErrBadPorts)
	_, err = ParsePorts("")
	assert.ErrorIs(t, err, ErrBadPorts)
}
