package tek

import (
	"fmt"
	"strings"
)

// Identity is the reply to the IEEE 488.2 `*IDN?` query as Tektronix
// instruments format it, e.g.
//
//	TEKTRONIX,AFG3021B,C012345,SCPI:99.0 FV:3.1.1
type Identity struct {
	Manufacturer string
	Model        string
	Serial       string
	Firmware     string
	raw          string
}

// ParseIdentity splits an `*IDN?` reply into its four fields. Missing fields
// are left empty; anything past the third comma belongs to Firmware.
func ParseIdentity(s string) Identity {
	s = strings.TrimSpace(s)
	id := Identity{raw: s}
	fields := strings.SplitN(s, ",", 4)
	dst := []*string{&id.Manufacturer, &id.Model, &id.Serial, &id.Firmware}
	for i, f := range fields {
		*dst[i] = strings.TrimSpace(f)
	}
	return id
}

// Matches reports whether the raw reply contains want, e.g.
// "TEKTRONIX,AFG3021B". Matching is on the raw text, so a reply with stray
// bytes around the identifier still matches.
func (id Identity) Matches(want string) bool {
	return want != "" && strings.Contains(id.raw, want)
}

// Raw returns the reply as received, minus surrounding whitespace.
func (id Identity) Raw() string { return id.raw }

func (id Identity) String() string {
	if id.Serial == "" && id.Firmware == "" {
		return fmt.Sprintf("%s %s", id.Manufacturer, id.Model)
	}
	return fmt.Sprintf("%s %s (s/n %s, %s)", id.Manufacturer, id.Model, id.Serial, id.Firmware)
}
