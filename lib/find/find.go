// Package find locates USB serial adapters, so a console can default to the
// only instrument cable plugged in.
package find

import (
	"errors"
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

// ErrNotFound is returned when no port passes the filters.
var ErrNotFound = errors.New("no matching serial port")

// USB vendor IDs of adapters found on lab benches.
const (
	VendorArduino = "2341"
	VendorPiPico  = "2E8A"
	VendorFTDI    = "0403" // GPIB-USB adapters and most USB-serial cables
)

// Port is a serial port on a USB device.
type Port struct {
	Dev    string
	VID    string
	PID    string
	Serial string
}

func (p Port) String() string {
	return fmt.Sprintf("%s (%s:%s serial %s)", p.Dev, p.VID, p.PID, p.Serial)
}

// Filter selects ports.
type Filter func(Port) bool

// Vendor matches a USB vendor ID, ignoring case.
func Vendor(vid string) Filter {
	return func(p Port) bool { return strings.EqualFold(p.VID, vid) }
}

// Serial matches a USB serial number exactly.
func Serial(sn string) Filter {
	return func(p Port) bool { return p.Serial == sn }
}

var (
	Arduino = Vendor(VendorArduino)
	PiPico  = Vendor(VendorPiPico)
	FTDI    = Vendor(VendorFTDI)
)

// Find returns the device path of the one USB serial port passing every
// filter. It fails when none or several match.
func Find(filters ...Filter) (string, error) {
	ports, err := USBPorts()
	if err != nil {
		return "", err
	}
	return pick(ports, filters...)
}

func pick(ports []Port, filters ...Filter) (string, error) {
	var matched []Port
next:
	for _, p := range ports {
		for _, f := range filters {
			if !f(p) {
				continue next
			}
		}
		matched = append(matched, p)
	}
	switch len(matched) {
	case 0:
		return "", ErrNotFound
	case 1:
		return matched[0].Dev, nil
	}
	names := make([]string, len(matched))
	for i, p := range matched {
		names[i] = p.String()
	}
	return "", fmt.Errorf("%d serial ports match, narrow the search: %s", len(matched), strings.Join(names, ", "))
}

// USBPorts lists serial ports that sit on a USB device.
func USBPorts() ([]Port, error) {
	list, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	var ports []Port
	for _, p := range list {
		if p.IsUSB {
			ports = append(ports, Port{Dev: p.Name, VID: p.VID, PID: p.PID, Serial: p.SerialNumber})
		}
	}
	return ports, nil
}
