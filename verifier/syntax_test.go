package verifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeValid(t *testing.T) {
	normalized, local, domain, reason := Normalize(" User.Name+tag@Example.COM ")
	require.Empty(t, reason)
	assert.Equal(t, "User.Name+tag@example.com", normalized)
	assert.Equal(t, "User.Name+tag", local)
	assert.Equal(t, "example.com", domain)
}

func TestNormalizeIDNA(t *testing.T) {
	normalized, _, domain, reason := Normalize("post@bücher.de")
	require.Empty(t, reason)
	assert.Equal(t, "xn--bcher-kva.de", domain)
	assert.Equal(t, "post@xn--bcher-kva.de", normalized)
}

func TestNormalizeSplitsAtLastAt(t *testing.T) {
	_, local, domain, reason := Normalize("a@b@c.example")
	// The split happens at the last '@'; the resulting local part "a@b"
	// then fails the atom character check.
	assert.Equal(t, ReasonLocalChars, reason)
	assert.Equal(t, "a@b", local)
	assert.Equal(t, "c.example", domain)
}

func TestNormalizeIdempotent(t *testing.T) {
	first, _, _, reason := Normalize("Mixed.Case@Bücher.DE")
	require.Empty(t, reason)
	second, _, _, reason := Normalize(first)
	require.Empty(t, reason)
	assert.Equal(t, first, second)
}

func TestNormalizeFailures(t *testing.T) {
	tests := []struct {
		name   string
		email  string
		reason string
	}{
		{"no at sign", "plainaddress", ReasonMissingAt},
		{"empty local", "@example.com", ReasonLocalLength},
		{"local too long", strings.Repeat("a", 65) + "@example.com", ReasonLocalLength},
		{"leading dot", ".user@example.com", ReasonLocalDots},
		{"trailing dot", "user.@example.com", ReasonLocalDots},
		{"double dot", "bad..dots@example.com", ReasonLocalDots},
		{"bad local char", "us er@example.com", ReasonLocalChars},
		{"quoted local", `"quoted"@example.com`, ReasonLocalChars},
		{"single label", "user@localhost", ReasonDomainTLD},
		{"label too long", "user@" + strings.Repeat("a", 64) + ".com", ReasonLabelLength},
		{"empty label", "user@foo..com", ReasonLabelLength},
		{"label hyphen edge", "user@-foo.com", ReasonLabelChars},
		{"underscore label", "user@exa_mple.com", ReasonLabelChars},
		{"one char tld", "user@example.c", ReasonTLDLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, reason := Normalize(tt.email)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestNormalizeBoundaries(t *testing.T) {
	// Local part of exactly 64 characters passes.
	_, _, _, reason := Normalize(strings.Repeat("a", 64) + "@example.com")
	assert.Empty(t, reason)

	// Domain of exactly 253 ASCII characters passes, 254 fails.
	l63 := strings.Repeat("a", 63)
	okDomain := strings.Join([]string{l63, l63, l63, strings.Repeat("a", 61)}, ".")
	require.Len(t, okDomain, 253)
	_, _, _, reason = Normalize("u@" + okDomain)
	assert.Empty(t, reason)

	longDomain := strings.Join([]string{l63, l63, l63, strings.Repeat("a", 62)}, ".")
	require.Len(t, longDomain, 254)
	_, _, _, reason = Normalize("u@" + longDomain)
	assert.Equal(t, ReasonDomainLength, reason)

	// Label of 63 characters passes.
	_, _, _, reason = Normalize("u@" + strings.Repeat("b", 63) + ".com")
	assert.Empty(t, reason)

	// Two-character TLD passes.
	_, _, _, reason = Normalize("u@example.co")
	assert.Empty(t, reason)
}
