package verifier

import (
	"context"
	"math/rand"
)

const (
	probeLocalPrefix = "probe_"
	probeLocalLen    = 20
	probeAlphabet    = "abcdefghijklmnopqrstuvwxyz0123456789"
)

func randomProbeLocal() string {
	b := make([]byte, probeLocalLen)
	for i := range b {
		b[i] = probeAlphabet[rand.Intn(len(probeAlphabet))]
	}
	return probeLocalPrefix + string(b)
}

// detectCatchAll re-runs the prober over the same candidate list with a
// random local part. Any accept means the host takes every recipient; the
// first hard 5xx proves it does not. When every host soft-fails or is
// unreachable the answer is false, so a transient error never downgrades a
// verdict that the real probe already earned.
func (v *Verifier) detectCatchAll(ctx context.Context, hosts []string, domain string, opts Options, tr *trace) bool {
	probeAddr := randomProbeLocal() + "@" + domain
	tr.logf("Catch-all probe: %s", probeAddr)

	for _, host := range hosts {
		if ctx.Err() != nil {
			break
		}
		out := v.probeHost(ctx, host, probeAddr, opts, tr)
		if out.Accepted {
			return true
		}
		switch out.Code {
		case 550, 551, 552, 553, 554:
			return false
		}
	}
	return false
}
