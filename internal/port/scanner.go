// Package port probes host port availability for generated environments.
//
// The composition engine shifts service ports by a fixed offset, but it
// never touches the network — whether the shifted ports are actually free
// on this machine is a CLI concern. This package answers that question:
// it can check a generated environment's ports against the OS and suggest
// the smallest offset at which every declared port is free.
package port

import (
	"fmt"
	"net"

	"github.com/mmr-tortoise/devstack/internal/model"
)

// Scanner checks whether specific ports are available on the host machine.
//
// It uses the operating system's network stack (net.Listen /
// net.ListenPacket) to determine if a port is free. This is the most
// reliable method because it asks the OS directly, rather than parsing
// /proc/net/* or relying on external commands like `lsof` or `ss` which
// may require elevated permissions.
//
// The struct is currently stateless, but is defined as a struct (rather
// than bare functions) so the Scanner stays injectable as a dependency,
// which keeps offset suggestion testable without binding real sockets.
type Scanner struct{}

// NewScanner creates a new Scanner instance.
func NewScanner() *Scanner {
	return &Scanner{}
}

// IsPortAvailable checks whether a single port is free on the host.
//
// For TCP, it attempts net.Listen("tcp", ":port"). For UDP, it attempts
// net.ListenPacket("udp", ":port"). If the listen/bind succeeds, the port
// is available — the listener is immediately closed via defer.
//
// We bind to all interfaces (":port" rather than "127.0.0.1:port")
// because Docker typically publishes ports on 0.0.0.0, so we need to
// check the same address space to avoid false positives.
//
// Returns true if the port is free, false if it is already in use or
// out of range.
func (s *Scanner) IsPortAvailable(portNum int, protocol string) bool {
	if portNum < 1 || portNum > maxPort {
		return false
	}
	addr := fmt.Sprintf(":%d", portNum)

	switch protocol {
	case "udp":
		conn, err := net.ListenPacket("udp", addr)
		if err != nil {
			return false
		}
		defer func() { _ = conn.Close() }()
		return true
	default:
		// Unknown protocols are treated as TCP, the overwhelmingly
		// common case for dev services.
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return false
		}
		defer func() { _ = listener.Close() }()
		return true
	}
}

// Busy returns the subset of ports that are not currently available on
// the host. The input ports are expected to already carry their offset
// (i.e. the values the generated environment will actually bind).
func (s *Scanner) Busy(ports []model.Port) []model.Port {
	var busy []model.Port
	for _, p := range ports {
		if !s.IsPortAvailable(p.Port, p.Protocol) {
			busy = append(busy, p)
		}
	}
	return busy
}
