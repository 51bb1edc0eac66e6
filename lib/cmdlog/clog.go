// Package cmdlog logs plotter scripts and instrument traffic with colour.
package cmdlog

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

var (
	CmdStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	RespStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("35"))
	ScriptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
)

// Script logs every non-empty line of a plotter script at debug level.
func Script(log *zap.SugaredLogger, script string) {
	for _, line := range strings.Split(script, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			log.Debug(ScriptStyle.Render(line))
		}
	}
}

// Describe renders an instrument response for a log line: quoted when it is
// printable text, quoted and hex dumped when it is short binary, and only
// hex dumped otherwise.
func Describe(resp string) string {
	switch {
	case resp == "":
		return "<no response>"
	case printable(resp):
		return fmt.Sprintf("[%d] %q", len(resp), resp)
	case len(resp) < 32:
		return fmt.Sprintf("[%d] %q (% 2x)", len(resp), resp, []byte(resp))
	}
	return fmt.Sprintf("[%d] % 2x", len(resp), []byte(resp))
}

// printable allows 7-bit text plus tab, newline, vertical tab, form feed and
// carriage return.
func printable(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= utf8.RuneSelf || (c < ' ' && (c < '\t' || c > '\r')) || c == 0x7f {
			return false
		}
	}
	return true
}

// Instrument is the subset of *instrument.Link an Echo needs.
type Instrument interface {
	Command(format string, a ...any) error
	Query(cmd string) (string, error)
}

// Echo runs instrument commands and logs each exchange. Errors are logged
// rather than returned; it is meant for interactive poking at an
// instrument.
type Echo struct {
	inst Instrument
	log  *zap.SugaredLogger
}

// NewEcho wraps inst.
func NewEcho(inst Instrument, log *zap.SugaredLogger) *Echo {
	return &Echo{inst: inst, log: log}
}

// Query sends q and returns the response, or "" on error.
func (e *Echo) Query(q string) string {
	resp, err := e.inst.Query(q)
	if err != nil {
		e.log.Errorw("query failed", "cmd", CmdStyle.Render(q), "error", err)
		return ""
	}
	e.log.Infof("%s: %s", CmdStyle.Render(q), RespStyle.Render(Describe(resp)))
	return resp
}

// Command sends c.
func (e *Echo) Command(c string) {
	if err := e.inst.Command("%s", c); err != nil {
		e.log.Errorw("command failed", "cmd", CmdStyle.Render(c), "error", err)
		return
	}
	e.log.Infof("%s()", CmdStyle.Render(c))
}
