// Package instrument talks to SCPI style instruments over any byte stream:
// a TCP socket to a networked scope or a serial port.
package instrument

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Link sends line terminated commands to an instrument and reads line
// terminated responses. It satisfies query.Querier.
type Link struct {
	rw    io.ReadWriter
	r     *bufio.Reader
	term  byte
	delay time.Duration
	debug bool
	log   *zap.SugaredLogger

	lastWrite time.Time
}

// LinkOption applies an option to the link.
type LinkOption func(*Link)

// NewLink wraps rw. Commands are terminated with a newline unless
// WithTerminator says otherwise.
func NewLink(rw io.ReadWriter, opts ...LinkOption) *Link {
	l := Link{
		rw:   rw,
		r:    bufio.NewReader(rw),
		term: '\n',
		log:  zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(&l)
	}
	return &l
}

// WithTerminator sets the byte appended to commands and expected at the end
// of every response.
func WithTerminator(b byte) LinkOption { return func(l *Link) { l.term = b } }

// WithWriteDelay enforces a minimum gap between consecutive writes. Some
// instruments drop commands that arrive back to back.
func WithWriteDelay(d time.Duration) LinkOption { return func(l *Link) { l.delay = d } }

// WithDebug causes commands and responses to be logged.
func WithDebug() LinkOption { return func(l *Link) { l.debug = true } }

// WithLogger sets the logger used in debug mode.
func WithLogger(log *zap.SugaredLogger) LinkOption { return func(l *Link) { l.log = log } }

// Write writes raw bytes to the instrument.
func (l *Link) Write(p []byte) (n int, err error) {
	l.pace()
	return l.rw.Write(p)
}

// Read reads raw bytes from the instrument.
func (l *Link) Read(p []byte) (n int, err error) {
	return l.r.Read(p)
}

func (l *Link) pace() {
	if l.delay > 0 && !l.lastWrite.IsZero() {
		if wait := l.delay - time.Since(l.lastWrite); wait > 0 {
			time.Sleep(wait)
		}
	}
	l.lastWrite = time.Now()
}

// Command formats according to a format specifier if arguments are given and
// sends the command. Leading and trailing whitespace is removed before the
// terminator is appended.
func (l *Link) Command(format string, a ...any) error {
	cmd := format
	if a != nil {
		cmd = fmt.Sprintf(format, a...)
	}
	cmd = strings.TrimSpace(cmd)
	if l.debug {
		l.log.Debugw("cmd", "cmd", cmd)
	}
	_, err := l.Write([]byte(cmd + string(l.term)))
	return err
}

// Query sends cmd and returns the response with the terminator and
// surrounding whitespace removed.
func (l *Link) Query(cmd string) (string, error) {
	if err := l.Command("%s", cmd); err != nil {
		return "", fmt.Errorf("error writing command %q: %w", cmd, err)
	}
	s, err := l.r.ReadString(l.term)
	if errors.Is(err, io.EOF) && len(s) > 0 {
		err = nil
	}
	s = strings.TrimSpace(strings.TrimSuffix(s, string(l.term)))
	if l.debug {
		l.log.Debugw("query", "cmd", cmd, "response", s)
	}
	return s, err
}
