package connutil

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/spf13/pflag"
	"go.bug.st/serial"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gotmc/remotelab/lib/find"
	"github.com/gotmc/remotelab/lib/instrument"
)

// Conn describes how to reach an instrument: a TCP address for networked
// instruments, or a serial port for USB and RS-232 ones.
type Conn struct {
	Addr        string
	SerialPort  string
	Baud        int
	Delay       time.Duration
	Timeout     time.Duration
	Debug       bool
	DefaultPort int // appended to Addr when it has no port

	dial func(network, addr string, timeout time.Duration) (net.Conn, error)
}

// AddFlags is to be called before the flag set is parsed.
func (c *Conn) AddFlags(fs *pflag.FlagSet) {
	if c.Baud == 0 {
		c.Baud = 115200
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if c.DefaultPort == 0 {
		c.DefaultPort = 5025 // SCPI raw socket
	}
	fs.StringVar(&c.Addr, "addr", c.Addr, "instrument host[:port] for a network connection")
	fs.StringVar(&c.SerialPort, "port", c.SerialPort, `instrument serial port ("auto" to search USB)`)
	fs.IntVar(&c.Baud, "baud", c.Baud, "serial baud rate")
	fs.DurationVar(&c.Delay, "delay", c.Delay, "minimum delay between writes")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "connect and read timeout")
	fs.BoolVar(&c.Debug, "debug-link", c.Debug, "log instrument commands and responses")
}

// Setup is to be called after the flags are parsed. The returned cleanup
// closes the connection; it is never nil.
func (c *Conn) Setup(log *zap.SugaredLogger) (link *instrument.Link, cleanup func() error, err error) {
	nocleanup := func() error { return nil }

	var rwc io.ReadWriteCloser
	switch {
	case c.Addr != "" && c.SerialPort != "":
		return nil, nocleanup, fmt.Errorf("both --addr and --port given; choose one")
	case c.Addr != "":
		rwc, err = c.openTCP()
	case c.SerialPort != "":
		rwc, err = c.openSerial(log)
	default:
		return nil, nocleanup, fmt.Errorf("no instrument connection: set --addr or --port")
	}
	if err != nil {
		return nil, nocleanup, err
	}

	opts := []instrument.LinkOption{instrument.WithLogger(log)}
	if c.Delay > 0 {
		opts = append(opts, instrument.WithWriteDelay(c.Delay))
	}
	if c.Debug {
		opts = append(opts, instrument.WithDebug())
	}
	link = instrument.NewLink(rwc, opts...)

	cleanup = func() error {
		var errs error
		if p, ok := rwc.(serial.Port); ok {
			// Discard any unread data before closing.
			errs = multierr.Append(errs, p.ResetInputBuffer())
		}
		return multierr.Append(errs, rwc.Close())
	}
	return link, cleanup, nil
}

func (c *Conn) openTCP() (io.ReadWriteCloser, error) {
	addr := c.Addr
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, fmt.Sprint(c.DefaultPort))
	}
	dial := c.dial
	if dial == nil {
		dial = net.DialTimeout
	}
	conn, err := dial("tcp", addr, c.Timeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return &deadlineConn{Conn: conn, timeout: c.Timeout}, nil
}

func (c *Conn) openSerial(log *zap.SugaredLogger) (io.ReadWriteCloser, error) {
	name := c.SerialPort
	if name == "auto" {
		var err error
		name, err = find.Find(find.FTDI)
		if err != nil {
			return nil, fmt.Errorf("locating serial port: %w", err)
		}
		log.Infow("found serial port", "port", name)
	}
	port, err := serial.Open(name, &serial.Mode{BaudRate: c.Baud})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	if err := port.SetReadTimeout(c.Timeout); err != nil {
		return nil, multierr.Append(err, port.Close())
	}
	return port, nil
}

// deadlineConn refreshes the read deadline before every read so a silent
// instrument cannot hang a query forever.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (d *deadlineConn) Read(p []byte) (int, error) {
	if d.timeout > 0 {
		if err := d.Conn.SetReadDeadline(time.Now().Add(d.timeout)); err != nil {
			return 0, err
		}
	}
	return d.Conn.Read(p)
}
