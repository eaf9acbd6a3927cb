package find

import (
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

// FilterFn selects a serial port by its USB descriptors.
type FilterFn func(*Usbtty) bool

// PrologixFilter matches the FTDI FT245R bridge the Prologix GPIB-USB
// controller is built on.
func PrologixFilter(ut *Usbtty) bool {
	return strings.EqualFold(ut.IDv, "0403") &&
		strings.EqualFold(ut.IDp, "6001")
}

// SerialFilter matches a USB serial number exactly.
func SerialFilter(s string) FilterFn {
	return func(ut *Usbtty) bool { return ut.Serial == s }
}

// ProductFilter matches ports whose USB product string contains s.
func ProductFilter(s string) FilterFn {
	return func(ut *Usbtty) bool {
		return strings.Contains(strings.ToLower(ut.Prod), strings.ToLower(s))
	}
}

// Find searches for a usb serial device. If filter is not nil,
// it is used to narrow choices down. The first device for which
// it returns true (if any) is chosen.
func Find(filter FilterFn) (string, error) {
	ttys, err := AllUsbTtys()
	if err != nil {
		return "", err
	}
	return Select(ttys, filter)
}

// Select applies the same rules as Find to a known list of ports.
func Select(ttys Usbttys, filter FilterFn) (string, error) {
	if filter != nil {
		var matched Usbttys
		for i := range ttys {
			if filter(&ttys[i]) {
				matched = Usbttys{ttys[i]}
				break
			}
		}
		ttys = matched
	}

	if len(ttys) == 0 {
		return "", fmt.Errorf("no matching ttys found")
	}
	if len(ttys) == 1 {
		return ttys[0].Dev, nil
	}
	return "", fmt.Errorf("multiple ttys:\n%s", ttys)
}

type Usbtty struct {
	Dev      string
	IDp, IDv string
	Prod     string
	Serial   string
}

func (u Usbtty) String() string {
	return fmt.Sprintf("dev %s pid/vid %s/%s prod %s serial %s", u.Dev, u.IDp, u.IDv, u.Prod, u.Serial)
}

type Usbttys []Usbtty

func (uts Usbttys) String() string {
	s := make([]string, 0, len(uts))
	for _, ut := range uts {
		s = append(s, ut.String())
	}
	return strings.Join(s, "\n")
}

// AllUsbTtys lists the serial ports backed by USB devices.
func AllUsbTtys() (Usbttys, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	return fromDetails(ports), nil
}

func fromDetails(ports []*enumerator.PortDetails) Usbttys {
	var devs Usbttys
	for _, p := range ports {
		if p == nil || !p.IsUSB {
			continue
		}
		devs = append(devs, Usbtty{
			Dev:    p.Name,
			IDp:    p.PID,
			IDv:    p.VID,
			Prod:   p.Product,
			Serial: p.SerialNumber,
		})
	}
	return devs
}
