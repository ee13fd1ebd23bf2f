package verifier

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// Argument validation errors. These are the only errors the engine surfaces
// to callers; every network or protocol failure becomes a classified Result.
var (
	ErrBadPorts       = errors.New("verifier: ports must be a non-empty list of values in 1..65535")
	ErrBadTimeout     = errors.New("verifier: timeout must be positive")
	ErrBadMaxMX       = errors.New("verifier: max_mx must be positive")
	ErrBadConcurrency = errors.New("verifier: concurrency must be positive")
)

// Options control one validation pipeline.
type Options struct {
	// FromAddress is used as MAIL FROM. Default "verify@example.com".
	FromAddress string
	// HeloHost is the EHLO/HELO argument. Default "example.com".
	HeloHost string
	// Timeout bounds every network operation (DNS query, TCP connect,
	// each SMTP read/write). Default 7s.
	Timeout time.Duration
	// MaxMX caps how many MX hosts are attempted. Default 3.
	MaxMX int
	// Ports is the ordered SMTP port list. Default [25].
	Ports []int
	// Verbose enables trace capture into Result.Logs.
	Verbose bool
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		FromAddress: "verify@example.com",
		HeloHost:    "example.com",
		Timeout:     7 * time.Second,
		MaxMX:       3,
		Ports:       []int{25},
	}
}

func (o *Options) withDefaults() Options {
	out := *o
	def := DefaultOptions()
	if out.FromAddress == "" {
		out.FromAddress = def.FromAddress
	}
	if out.HeloHost == "" {
		out.HeloHost = def.HeloHost
	}
	if out.Timeout == 0 {
		out.Timeout = def.Timeout
	}
	if out.MaxMX == 0 {
		out.MaxMX = def.MaxMX
	}
	if len(out.Ports) == 0 {
		out.Ports = def.Ports
	}
	return out
}

func (o Options) validate() error {
	if o.Timeout <= 0 {
		return ErrBadTimeout
	}
	if o.MaxMX <= 0 {
		return ErrBadMaxMX
	}
	if len(o.Ports) == 0 {
		return ErrBadPorts
	}
	for _, p := range o.Ports {
		if p < 1 || p > 65535 {
			return ErrBadPorts
		}
	}
	return nil
}

// Verifier runs the validation pipeline: syntax, MX resolution, SMTP
// probing, catch-all detection and classification. It is safe for
// concurrent use; pipelines share no mutable state.
type Verifier struct {
	opts       Options
	resolver   Resolver
	disposable *DisposableSet
	log        logrus.FieldLogger
	dial       dialFunc
}

type dialFunc func(ctx context.Context, network, addr string, timeout time.Duration) (net.Conn, error)

func defaultDial(ctx context.Context, network, addr string, timeout time.Duration) (net.Conn, error) {
	d := net.Dialer{Timeout: timeout}
	return d.DialContext(ctx, network, addr)
}

// New builds a Verifier with the system resolver and the built-in
// disposable set. Zero option fields take their defaults; invalid values
// return a typed argument error.
func New(opts Options, log logrus.FieldLogger) (*Verifier, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Verifier{
		opts:       opts,
		resolver:   net.DefaultResolver,
		disposable: NewDisposableSet(),
		log:        log,
		dial:       defaultDial,
	}, nil
}

// WithResolver replaces the DNS resolver.
func (v *Verifier) WithResolver(r Resolver) *Verifier {
	v.resolver = r
	return v
}

// WithDisposable replaces the disposable-domain set.
func (v *Verifier) WithDisposable(set *DisposableSet) *Verifier {
	v.disposable = set
	return v
}

// Options returns the verifier's base options.
func (v *Verifier) Options() Options { return v.opts }

// Check validates one address with the verifier's base options.
func (v *Verifier) Check(ctx context.Context, email string) *Result {
	return v.check(ctx, email, v.opts)
}

// CheckWith validates one address with per-call options. Only argument
// validation can fail; network trouble always yields a classified Result.
func (v *Verifier) CheckWith(ctx context.Context, email string, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return v.check(ctx, email, opts), nil
}

// check is the single-address pipeline. The RCPT code surviving into the
// reason is the last one observed across connected hosts, matching the
// reference behavior; first-seen codes are overwritten deliberately.
func (v *Verifier) check(ctx context.Context, email string, opts Options) *Result {
	tr := newTrace(opts.Verbose, v.log.WithField("email", email))
	res := &Result{Email: email, MXHosts: []string{}}

	normalized, _, domain, why := Normalize(email)
	if normalized != "" {
		res.NormalizedEmail = strPtr(normalized)
	}
	if domain != "" {
		res.Domain = strPtr(domain)
	}
	if why != "" {
		res.IsDeliverable = boolPtr(false)
		res.Status = StatusInvalidSyntax
		res.Reason = strPtr(why)
		res.Logs = tr.lines
		return res
	}
	res.IsValidSyntax = true

	// Overall wall-clock cap for this address: the pathological worst case
	// of real + catch-all passes over every host and port.
	budget := opts.Timeout * time.Duration(len(opts.Ports)*opts.MaxMX*2)
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	candidates := v.resolveMX(ctx, domain, opts, tr)
	res.DomainHasMX = len(candidates) > 0

	hosts := make([]string, 0, opts.MaxMX)
	for i, c := range candidates {
		if i >= opts.MaxMX {
			break
		}
		hosts = append(hosts, c.Host)
	}
	if len(hosts) == 0 {
		if addrs := v.resolveA(ctx, domain, opts, tr); len(addrs) == 0 {
			res.IsDeliverable = boolPtr(false)
			res.Status = StatusInvalidDomain
			res.Reason = strPtr(ReasonNoMXNoA)
			res.Logs = tr.lines
			return res
		}
		// Only an A/AAAA record exists: treat the domain itself as the host.
		hosts = append(hosts, domain)
	}
	res.MXHosts = hosts

	var deliverable *bool
	var rcptCode int
	cancelled := false
	for _, host := range hosts {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		out := v.probeHost(ctx, host, normalized, opts, tr)
		res.SMTPConnectable = res.SMTPConnectable || out.Connected
		if out.Connected && out.Code != 0 {
			rcptCode = out.Code
		}
		if out.Accepted {
			deliverable = boolPtr(true)
			break
		}
		switch out.Code {
		case 550, 551, 552, 553, 554:
			// Hard rejection; keep trying remaining hosts in case one
			// accepts, though they are usually consistent.
			deliverable = boolPtr(false)
		}
	}

	if deliverable != nil && *deliverable && !cancelled && ctx.Err() == nil {
		res.IsCatchAll = boolPtr(v.detectCatchAll(ctx, hosts, domain, opts, tr))
	}
	res.IsDeliverable = deliverable

	disposable := v.disposable.Contains(domain)
	res.IsDisposable = boolPtr(disposable)
	if disposable {
		tr.logf("Disposable domain detected: %s", domain)
	}

	classify(res, rcptCode)
	res.Logs = tr.lines
	return res
}
