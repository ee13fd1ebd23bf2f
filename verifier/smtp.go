package verifier

import (
	"context"
	"crypto/tls"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

// ProbeOutcome is the classified result of probing one host across the
// configured port list. Code is 0 when no RCPT reply was obtained.
// Connected records whether an SMTP greeting was read on any port.
type ProbeOutcome struct {
	Accepted  bool
	Code      int
	Message   string
	Connected bool
}

// probeSession wraps one SMTP connection. The raw conn is kept so a fresh
// deadline can be armed before every protocol step; Timeout bounds each
// network operation, not the whole conversation.
type probeSession struct {
	conn    net.Conn
	text    *textproto.Conn
	timeout time.Duration
}

func (s *probeSession) cmd(expect int, format string, args ...interface{}) (int, string, error) {
	s.conn.SetDeadline(time.Now().Add(s.timeout))
	id, err := s.text.Cmd(format, args...)
	if err != nil {
		return 0, "", err
	}
	s.text.StartResponse(id)
	defer s.text.EndResponse(id)
	return s.text.ReadResponse(expect)
}

// hello negotiates EHLO, falling back to HELO if the server rejects it.
// Failures are not fatal; the returned string holds the advertised
// extensions (empty when only HELO succeeded or nothing did).
func (s *probeSession) hello(heloHost string) string {
	_, ext, err := s.cmd(250, "EHLO %s", heloHost)
	if err == nil {
		return ext
	}
	s.cmd(250, "HELO %s", heloHost)
	return ""
}

// upgradeTLS performs the STARTTLS handshake with a default verifying
// config and re-issues EHLO on the encrypted stream.
func (s *probeSession) upgradeTLS(host, heloHost string) error {
	if _, _, err := s.cmd(220, "STARTTLS"); err != nil {
		return err
	}
	tlsConn := tls.Client(s.conn, &tls.Config{ServerName: host})
	tlsConn.SetDeadline(time.Now().Add(s.timeout))
	if err := tlsConn.Handshake(); err != nil {
		return err
	}
	s.conn = tlsConn
	s.text = textproto.NewConn(tlsConn)
	s.hello(heloHost)
	return nil
}

func (s *probeSession) quit() {
	s.cmd(221, "QUIT")
	s.text.Close()
}

// probeHost walks the configured port list for one candidate host and runs
// the MAIL FROM / RCPT TO conversation. An error before the NOOP liveness
// check means the port is unreachable; once greeted, transport errors leave
// Connected set and move on to the next port with no reply code.
func (v *Verifier) probeHost(ctx context.Context, host, rcptAddr string, opts Options, tr *trace) ProbeOutcome {
	var out ProbeOutcome
	for _, port := range opts.Ports {
		if ctx.Err() != nil {
			tr.logf("Probe cancelled before %s:%d", host, port)
			break
		}
		tr.logf("Connecting SMTP %s:%d", host, port)

		conn, err := v.dial(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)), opts.Timeout)
		if err != nil {
			tr.logf("SMTP connect error %s:%d -> %v", host, port, err)
			continue
		}

		greeted, code, msg := v.converse(conn, host, rcptAddr, opts, tr)
		if !greeted {
			continue
		}
		out.Connected = true
		if code == 0 {
			continue
		}
		out.Code = code
		out.Message = msg
		out.Accepted = code == 250 || code == 251
		return out
	}
	return out
}

// converse runs banner, NOOP, EHLO/HELO, opportunistic STARTTLS, MAIL FROM
// and RCPT TO on an open connection. Returns whether the greeting + NOOP
// succeeded and the RCPT reply, code 0 when the session died before one
// was read.
func (v *Verifier) converse(conn net.Conn, host, rcptAddr string, opts Options, tr *trace) (greeted bool, rcptCode int, rcptMsg string) {
	s := &probeSession{conn: conn, text: textproto.NewConn(conn), timeout: opts.Timeout}
	defer conn.Close()

	s.conn.SetDeadline(time.Now().Add(s.timeout))
	code, banner, err := s.text.ReadResponse(220)
	if err != nil {
		tr.logf("SMTP banner error %s -> %v", host, err)
		return false, 0, ""
	}
	if _, _, err := s.cmd(250, "NOOP"); err != nil {
		tr.logf("SMTP NOOP failed %s -> %v", host, err)
		return false, 0, ""
	}
	tr.logf("Connected: %d %s", code, banner)

	ext := s.hello(opts.HeloHost)
	if strings.Contains(strings.ToUpper(ext), "STARTTLS") {
		if err := s.upgradeTLS(host, opts.HeloHost); err != nil {
			tr.logf("STARTTLS failed/ignored: %v", err)
		} else {
			tr.logf("STARTTLS negotiated")
		}
	}

	mailCode, _, err := s.cmd(2, "MAIL FROM:<%s>", opts.FromAddress)
	if err != nil {
		if te, ok := err.(*textproto.Error); ok {
			mailCode = te.Code
		} else {
			tr.logf("SMTP error %s -> %v", host, err)
			return true, 0, ""
		}
	}

	rcptCode, rcptMsg, err = s.cmd(2, "RCPT TO:<%s>", rcptAddr)
	if err != nil {
		te, ok := err.(*textproto.Error)
		if !ok {
			tr.logf("SMTP error %s -> %v", host, err)
			return true, 0, ""
		}
		rcptCode, rcptMsg = te.Code, te.Msg
	}
	tr.logf("MAIL FROM -> %d, RCPT TO -> %d %q", mailCode, rcptCode, rcptMsg)

	s.quit()
	return true, rcptCode, rcptMsg
}
