package verifier

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAllSummaryPartition(t *testing.T) {
	srv := newFakeSMTPServer(t, rejectProbes("user@example.com"))
	v := scenarioVerifier(t, srv.port(), loopbackZone("example.com"))

	emails := []string{
		"user@example.com",    // deliverable
		"ghost@example.com",   // undeliverable (550)
		"bad..dots@test.com",  // invalid syntax
		"missing-at-sign",     // invalid syntax
		"x@nxdomain.invalid",  // invalid domain
	}

	results, summary, err := v.CheckAll(context.Background(), emails, 3)
	require.NoError(t, err)
	require.Len(t, results, len(emails))

	assert.Equal(t, len(emails), summary.Total())
	assert.Equal(t, 1, summary.Deliverable)
	assert.Equal(t, 1, summary.Undeliverable)
	assert.Equal(t, 3, summary.Invalid)
	assert.Equal(t, 0, summary.Unknown)

	// The multiset of results equals the per-address checks, regardless of
	// completion order.
	var got []string
	for _, r := range results {
		got = append(got, r.Email)
	}
	sort.Strings(got)
	want := append([]string(nil), emails...)
	sort.Strings(want)
	assert.Equal(t, want, got)
}

func TestCheckManyHandlesManyAddresses(t *testing.T) {
	srv := newFakeSMTPServer(t, acceptAll)
	v := scenarioVerifier(t, srv.port(), loopbackZone("example.com"))

	emails := make([]string, 20)
	for i := range emails {
		emails[i] = "bad..dots@example.com" // cheap, no network
	}
	_, summary, err := v.CheckAll(context.Background(), emails, 4)
	require.NoError(t, err)
	assert.Equal(t, 20, summary.Invalid)
}

func TestCheckManyRejectsBadConcurrency(t *testing.T) {
	v := newTestVerifier(t, Options{}, nil)
	_, err := v.CheckMany(context.Background(), []string{"a@b.co"}, 0)
	assert.ErrorIs(t, err, ErrBadConcurrency)
}

func TestCheckManyCancellationStopsDispatch(t *testing.T) {
	srv := newFakeSMTPServer(t, acceptAll)
	v := scenarioVerifier(t, srv.port(), loopbackZone("example.com"))

	ctx, cancel := context.WithCancel(context.Background())
	emails := make([]string, 200)
	for i := range emails {
		emails[i] = "user@example.com"
	}

	ch, err := v.CheckMany(ctx, emails, 2)
	require.NoError(t, err)

	// Take one result, then walk away.
	<-ch
	cancel()

	// The channel must close promptly once workers notice the cancel.
	deadline := time.After(10 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("results channel did not close after cancellation")
		}
	}
}

func TestCheckManyEmptyInput(t *testing.T) {
	v := newTestVerifier(t, Options{}, nil)
	results, summary, err := v.CheckAll(context.Background(), nil, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, summary.Total())
}
