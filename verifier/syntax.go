package verifier

import (
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

var (
	// Common-case atom characters only; quoted local parts are rejected.
	localAtomRegex = regexp.MustCompile("^[A-Za-z0-9!#$%&'*+/=?^_`{|}~.-]+$")
	labelRegex     = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,61}[A-Za-z0-9])?$`)
)

// Normalize splits an address at the last "@", trims surrounding whitespace,
// lowercases the domain and encodes it to its IDNA (punycode) ASCII form,
// then applies a conservative syntax check. The local part is preserved
// verbatim apart from trimming.
//
// On success reason is empty and normalized is local + "@" + asciiDomain.
// On failure reason carries a stable machine code; normalized, local and
// domain hold whatever was derived before the failure (empty for missing_at
// and domain_idna).
func Normalize(email string) (normalized, local, domain, reason string) {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return "", "", "", ReasonMissingAt
	}
	local = strings.TrimSpace(email[:at])
	rawDomain := strings.ToLower(strings.TrimSpace(email[at+1:]))

	// Punycode conversion only: length and character rules are enforced
	// below so that each failure maps to its own reason code.
	domain, err := idna.ToASCII(rawDomain)
	if err != nil {
		return "", local, "", ReasonDomainIDNA
	}
	normalized = local + "@" + domain

	if why := checkLocal(local); why != "" {
		return normalized, local, domain, why
	}
	if why := checkDomain(domain); why != "" {
		return normalized, local, domain, why
	}
	return normalized, local, domain, ""
}

func checkLocal(local string) string {
	if len(local) < 1 || len(local) > 64 {
		return ReasonLocalLength
	}
	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") || strings.Contains(local, "..") {
		return ReasonLocalDots
	}
	if !localAtomRegex.MatchString(local) {
		return ReasonLocalChars
	}
	return ""
}

func checkDomain(domain string) string {
	if len(domain) > 253 {
		return ReasonDomainLength
	}
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return ReasonDomainTLD
	}
	for _, label := range labels {
		if len(label) < 1 || len(label) > 63 {
			return ReasonLabelLength
		}
		if !labelRegex.MatchString(label) {
			return ReasonLabelChars
		}
	}
	if len(labels[len(labels)-1]) < 2 {
		return ReasonTLDLength
	}
	return ""
}
