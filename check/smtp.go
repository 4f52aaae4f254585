package check

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mailprobe/mailprobe/types"
)

// DialFunc matches net.DialTimeout and is injectable for testing.
type DialFunc func(network, address string, timeout time.Duration) (net.Conn, error)

// ProbeConfig configures the SMTP probe.
type ProbeConfig struct {
	// HeloDomain is the domain sent in the EHLO/HELO command.
	HeloDomain string
	// MailFrom is the address sent in the MAIL FROM command.
	MailFrom string
	// Port is the SMTP port, normally "25".
	Port string
	// Timeout bounds the TCP connect and every read/write of the
	// session.
	Timeout time.Duration
}

// Attempt is the classified result of one handshake attempt.
type Attempt struct {
	Outcome types.Outcome
	// Code is the RCPT TO response code, or 0 when the session broke
	// before the recipient announcement was answered.
	Code   int
	Detail string
}

// Probe executes a single SMTP handshake against one MX host for one
// address:
//
//	Connect → banner → EHLO (HELO on rejection) → MAIL FROM → RCPT TO → QUIT → Close
//
// Every probe opens its own connection and fully tears it down;
// reusing one connection across recipients is exactly the signature
// remote anti-abuse systems flag as enumeration. QUIT and Close run
// on every exit path — an abandoned connection without a polite
// disconnect is what gets the probing IP blacklisted.
type Probe struct {
	cfg  ProbeConfig
	dial DialFunc
	log  *logrus.Logger
}

// NewProbe creates a probe. A nil dial defaults to net.DialTimeout; a
// nil logger defaults to the standard logrus logger.
func NewProbe(cfg ProbeConfig, dial DialFunc, log *logrus.Logger) *Probe {
	if dial == nil {
		dial = net.DialTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.Port == "" {
		cfg.Port = "25"
	}
	return &Probe{cfg: cfg, dial: dial, log: log}
}

// Run performs one handshake attempt and classifies the raw outcome.
// It never returns an error: every failure symptom maps to an Outcome
// via pure classification, and the retry layer consults
// Outcome.Retryable rather than inspecting error values.
func (p *Probe) Run(mxHost, email string) Attempt {
	address := net.JoinHostPort(mxHost, p.cfg.Port)

	conn, err := p.dial("tcp", address, p.cfg.Timeout)
	if err != nil {
		out := classifyNetError(err)
		p.log.WithFields(logrus.Fields{
			"mx_host": mxHost,
			"email":   email,
			"outcome": out,
		}).Debug("connect failed")
		return Attempt{Outcome: out, Detail: fmt.Sprintf("connect to %s: %v", address, err)}
	}

	s := &session{
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
	}
	defer s.close()

	if err := conn.SetDeadline(time.Now().Add(p.cfg.Timeout)); err != nil {
		return Attempt{Outcome: types.OutcomeSMTPError, Detail: fmt.Sprintf("set deadline: %v", err)}
	}

	// Banner
	code, msg, err := readResponse(s.reader)
	if err != nil {
		return brokenSession("greeting", err)
	}
	if code >= 400 {
		return Attempt{Outcome: types.OutcomeSMTPError, Detail: fmt.Sprintf("server rejected connection: %d %s", code, msg)}
	}

	// EHLO, with legacy HELO fallback when the server rejects it
	code, msg, err = s.command("EHLO " + p.cfg.HeloDomain)
	if err != nil {
		return brokenSession("EHLO", err)
	}
	if code != 250 {
		code, msg, err = s.command("HELO " + p.cfg.HeloDomain)
		if err != nil {
			return brokenSession("HELO", err)
		}
		if code != 250 {
			return Attempt{Outcome: types.OutcomeSMTPError, Detail: fmt.Sprintf("greeting rejected: %d %s", code, msg)}
		}
	}

	// MAIL FROM
	code, msg, err = s.command(fmt.Sprintf("MAIL FROM:<%s>", p.cfg.MailFrom))
	if err != nil {
		return brokenSession("MAIL FROM", err)
	}
	if code >= 400 {
		return Attempt{Outcome: types.OutcomeSMTPError, Detail: fmt.Sprintf("MAIL FROM rejected: %d %s", code, msg)}
	}

	// RCPT TO is where verification actually happens.
	code, msg, err = s.command(fmt.Sprintf("RCPT TO:<%s>", email))
	if err != nil {
		return brokenSession("RCPT TO", err)
	}

	att := classifyRCPT(code, msg)
	p.log.WithFields(logrus.Fields{
		"mx_host": mxHost,
		"email":   email,
		"code":    code,
		"outcome": att.Outcome,
	}).Debug("probe completed")
	return att
}

// classifyRCPT maps the recipient-announcement response code to an
// outcome.
func classifyRCPT(code int, msg string) Attempt {
	switch {
	case code == 250:
		return Attempt{Outcome: types.OutcomeValid, Code: code, Detail: "recipient accepted by server"}
	case code == 450 || code == 451 || code == 452:
		return Attempt{Outcome: types.OutcomeGreylisted, Code: code, Detail: fmt.Sprintf("server deferred recipient (code %d): %s", code, msg)}
	case code >= 500:
		return Attempt{Outcome: types.OutcomeMailboxNotFound, Code: code, Detail: fmt.Sprintf("server rejected recipient (code %d): %s", code, msg)}
	default:
		return Attempt{Outcome: types.OutcomeSMTPError, Code: code, Detail: fmt.Sprintf("unexpected RCPT response: %d %s", code, msg)}
	}
}

// classifyNetError maps a transport error to an outcome: timeouts and
// refused connections are transient (retryable); anything else is an
// SMTPError.
func classifyNetError(err error) types.Outcome {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return types.OutcomeTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return types.OutcomeConnectionRefused
	}
	return types.OutcomeSMTPError
}

// brokenSession classifies a mid-session read/write failure: a
// deadline hit is a Timeout, anything else means the server dropped
// the conversation.
func brokenSession(stage string, err error) Attempt {
	if out := classifyNetError(err); out == types.OutcomeTimeout {
		return Attempt{Outcome: out, Detail: fmt.Sprintf("%s: timed out: %v", stage, err)}
	}
	return Attempt{Outcome: types.OutcomeSMTPError, Detail: fmt.Sprintf("%s: server disconnected unexpectedly: %v", stage, err)}
}

// session is one live SMTP conversation.
type session struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
}

// command sends one SMTP command line and reads the response.
func (s *session) command(line string) (int, string, error) {
	if _, err := s.writer.WriteString(line + "\r\n"); err != nil {
		return 0, "", err
	}
	if err := s.writer.Flush(); err != nil {
		return 0, "", err
	}
	return readResponse(s.reader)
}

// close sends a best-effort QUIT and closes the connection. Called on
// every exit path of Run.
func (s *session) close() {
	_ = s.conn.SetDeadline(time.Now().Add(2 * time.Second))
	_, _ = s.writer.WriteString("QUIT\r\n")
	_ = s.writer.Flush()
	_ = s.conn.Close()
}

// readResponse reads a (possibly multi-line) SMTP response.
func readResponse(r *bufio.Reader) (code int, full string, err error) {
	var lines []string
	for {
		line, readErr := r.ReadString('\n')
		if readErr != nil {
			return 0, "", fmt.Errorf("read SMTP response: %w", readErr)
		}
		line = strings.TrimRight(line, "\r\n")
		if len(line) < 3 {
			return 0, "", errors.New("SMTP response line too short")
		}
		lines = append(lines, line)
		// If the 4th character is not '-', this is the last line
		if len(line) < 4 || line[3] != '-' {
			break
		}
	}

	lastLine := lines[len(lines)-1]
	if _, err := fmt.Sscanf(lastLine[:3], "%d", &code); err != nil {
		return 0, "", fmt.Errorf("invalid SMTP response code %q: %w", lastLine[:3], err)
	}
	return code, strings.Join(lines, " | "), nil
}
