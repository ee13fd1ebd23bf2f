package verifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyTable(t *testing.T) {
	tests := []struct {
		name        string
		connectable bool
		deliverable *bool
		catchAll    *bool
		rcptCode    int
		status      string
		reason      string // "" means nil
	}{
		{"unreachable", false, nil, nil, 0, StatusUnknown, ReasonSMTPUnreachable},
		{"accepts all", true, boolPtr(true), boolPtr(true), 0, StatusUnknown, ReasonAcceptsAll},
		{"deliverable", true, boolPtr(true), boolPtr(false), 250, StatusDeliverable, ""},
		{"hard reject with code", true, boolPtr(false), nil, 550, StatusUndeliverable, "rcpt_550"},
		{"hard reject no code", true, boolPtr(false), nil, 0, StatusUndeliverable, ReasonHardFail},
		{"soft with code", true, nil, nil, 451, StatusUnknown, "rcpt_451"},
		{"soft no code", true, nil, nil, 0, StatusUnknown, ReasonTempFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &Result{
				SMTPConnectable: tt.connectable,
				IsDeliverable:   tt.deliverable,
				IsCatchAll:      tt.catchAll,
			}
			classify(res, tt.rcptCode)
			assert.Equal(t, tt.status, res.Status)
			if tt.reason == "" {
				assert.Nil(t, res.Reason)
			} else {
				require.NotNil(t, res.Reason)
				assert.Equal(t, tt.reason, *res.Reason)
			}
		})
	}
}

func TestSummaryAdd(t *testing.T) {
	var s Summary
	for _, status := range []string{
		StatusDeliverable, StatusUndeliverable, StatusUnknown,
		StatusInvalidSyntax, StatusInvalidDomain,
	} {
		s.Add(&Result{Status: status})
	}
	assert.Equal(t, 1, s.Deliverable)
	assert.Equal(t, 1, s.Undeliverable)
	assert.Equal(t, 1, s.Unknown)
	assert.Equal(t, 2, s.Invalid)
	assert.Equal(t, 5, s.Total())
}
