package verifier

import (
	"context"
	"net"
	"sort"
	"strings"
)

// Resolver is the subset of net.Resolver the engine needs. Tests substitute
// a mockdns-backed resolver; the server path can wrap it with a cache.
type Resolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// MXCandidate is one mail exchanger for a domain.
type MXCandidate struct {
	Pref uint16
	Host string
}

// resolveMX returns the domain's MX candidates deduplicated by host (lowest
// preference wins) and sorted ascending by preference, ties keeping DNS
// answer order. Resolver errors are not fatal: the caller falls back to
// A/AAAA on an empty list.
func (v *Verifier) resolveMX(ctx context.Context, domain string, opts Options, tr *trace) []MXCandidate {
	lctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	records, err := v.resolver.LookupMX(lctx, domain)
	if err != nil {
		tr.logf("MX lookup failed: %v", err)
		return nil
	}

	best := make(map[string]uint16)
	var order []string
	for _, r := range records {
		if r == nil {
			continue
		}
		host := strings.TrimSuffix(r.Host, ".")
		if host == "" {
			continue
		}
		if pref, ok := best[host]; !ok {
			best[host] = r.Pref
			order = append(order, host)
		} else if r.Pref < pref {
			best[host] = r.Pref
		}
	}

	candidates := make([]MXCandidate, 0, len(order))
	for _, host := range order {
		candidates = append(candidates, MXCandidate{Pref: best[host], Host: host})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Pref < candidates[j].Pref
	})

	if len(candidates) > 0 {
		hosts := make([]string, len(candidates))
		for i, c := range candidates {
			hosts[i] = c.Host
		}
		tr.logf("MX records: %s", strings.Join(hosts, ", "))
	} else {
		tr.logf("No MX records found")
	}
	return candidates
}

// resolveA looks up A/AAAA addresses for the domain itself, used as the
// fallback SMTP target when no MX record exists.
func (v *Verifier) resolveA(ctx context.Context, domain string, opts Options, tr *trace) []string {
	lctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	ips, err := v.resolver.LookupIPAddr(lctx, domain)
	if err != nil {
		tr.logf("A/AAAA resolution failed: %v", err)
		return nil
	}
	addrs := make([]string, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, ip.IP.String())
	}
	if len(addrs) > 0 {
		tr.logf("Fallback A/AAAA for domain: %s", strings.Join(addrs, ", "))
	}
	return addrs
}
