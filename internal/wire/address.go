package wire

import "strings"

// Address is the closed set of TSPS message kinds.
type Address int

const (
	AddressUnknown Address = iota
	AddressEntered
	AddressUpdated
	AddressMoved
	AddressWillLeave
	AddressScene
)

const (
	PathEntered   = "TSPS/personEntered/"
	PathUpdated   = "TSPS/personUpdated/"
	PathMoved     = "TSPS/personMoved/"
	PathWillLeave = "TSPS/personWillLeave/"
	PathScene     = "TSPS/scene/"
)

var addressByKey = map[string]Address{
	"TSPS/personEntered":   AddressEntered,
	"TSPS/personUpdated":   AddressUpdated,
	"TSPS/personMoved":     AddressMoved,
	"TSPS/personWillLeave": AddressWillLeave,
	"TSPS/scene":           AddressScene,
}

// ParseAddress resolves an OSC address string, tolerating "/TSPS/..." and a
// missing trailing slash.
func ParseAddress(raw string) Address {
	key := strings.Trim(strings.TrimSpace(raw), "/")
	if a, ok := addressByKey[key]; ok {
		return a
	}
	return AddressUnknown
}

// Path returns the canonical wire path for a, or "" for AddressUnknown.
func (a Address) Path() string {
	switch a {
	case AddressEntered:
		return PathEntered
	case AddressUpdated:
		return PathUpdated
	case AddressMoved:
		return PathMoved
	case AddressWillLeave:
		return PathWillLeave
	case AddressScene:
		return PathScene
	default:
		return ""
	}
}

// OSCAddress is Path with the leading slash OSC encoders require.
func (a Address) OSCAddress() string {
	if a == AddressUnknown {
		return ""
	}
	return "/" + a.Path()
}

func (a Address) String() string {
	switch a {
	case AddressEntered:
		return "entered"
	case AddressUpdated:
		return "updated"
	case AddressMoved:
		return "moved"
	case AddressWillLeave:
		return "will_leave"
	case AddressScene:
		return "scene"
	default:
		return "unknown"
	}
}
