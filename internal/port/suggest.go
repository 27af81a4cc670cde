package port

import (
	"fmt"

	"github.com/mmr-tortoise/devstack/internal/model"
)

const (
	// suggestStep is the granularity of suggested offsets. Round-hundred
	// offsets keep the mapping between original and shifted ports easy to
	// do in your head (5432 → 5532 → 5632 …).
	suggestStep = 100

	// maxOffset bounds the search. Beyond this, shifted ports start
	// leaving the usable range for common service ports.
	maxOffset = 60000

	// maxPort is the highest valid TCP/UDP port number (2^16 - 1).
	maxPort = 65535
)

// availabilityProbe is the Scanner capability SuggestOffset needs.
// Narrowed to an interface so tests can supply a deterministic probe
// instead of binding real sockets.
type availabilityProbe interface {
	IsPortAvailable(port int, protocol string) bool
}

// SuggestOffset finds the smallest offset (a multiple of 100, starting at
// 0) at which every declared port is free on this host. This is how
// several generated environments run side by side: the first gets offset
// 0, the next one lands on the first round-hundred offset whose ports are
// all unbound.
//
// Ports are expected un-offset, as declared in overlay metadata. An empty
// port list suggests 0. If no offset within range works, an error is
// returned rather than a port set that cannot bind.
func SuggestOffset(probe availabilityProbe, ports []model.Port) (int, error) {
	if len(ports) == 0 {
		return 0, nil
	}

	for offset := 0; offset <= maxOffset; offset += suggestStep {
		if allAvailable(probe, ports, offset) {
			return offset, nil
		}
	}
	return 0, fmt.Errorf("no free port offset found in 0..%d for %d declared ports", maxOffset, len(ports))
}

// allAvailable reports whether every port is free at the given offset.
// An offset pushing any port past the valid range disqualifies it.
func allAvailable(probe availabilityProbe, ports []model.Port, offset int) bool {
	for _, p := range ports {
		shifted := p.Port + offset
		if shifted > maxPort {
			return false
		}
		if !probe.IsPortAvailable(shifted, p.Protocol) {
			return false
		}
	}
	return true
}
