package port

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/devstack/internal/model"
)

// fakeProbe reports the configured ports as busy and everything else as
// free, letting suggestion tests run without binding sockets.
type fakeProbe struct {
	busy map[int]bool
}

func (f *fakeProbe) IsPortAvailable(port int, protocol string) bool {
	return !f.busy[port]
}

func TestIsPortAvailable_FreePort(t *testing.T) {
	s := NewScanner()

	// Grab an ephemeral port, close it, and expect it to scan as free.
	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	freePort := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	assert.True(t, s.IsPortAvailable(freePort, "tcp"))
}

func TestIsPortAvailable_BusyPort(t *testing.T) {
	s := NewScanner()

	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer func() { _ = listener.Close() }()
	busyPort := listener.Addr().(*net.TCPAddr).Port

	assert.False(t, s.IsPortAvailable(busyPort, "tcp"))
}

func TestIsPortAvailable_InvalidPort(t *testing.T) {
	s := NewScanner()
	assert.False(t, s.IsPortAvailable(0, "tcp"))
	assert.False(t, s.IsPortAvailable(70000, "tcp"))
}

func TestBusy(t *testing.T) {
	s := NewScanner()

	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer func() { _ = listener.Close() }()
	busyPort := listener.Addr().(*net.TCPAddr).Port

	free, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	freePort := free.Addr().(*net.TCPAddr).Port
	require.NoError(t, free.Close())

	busy := s.Busy([]model.Port{
		{Port: busyPort, Service: "db", Protocol: "tcp"},
		{Port: freePort, Service: "cache", Protocol: "tcp"},
	})

	require.Len(t, busy, 1)
	assert.Equal(t, "db", busy[0].Service)
}

func TestSuggestOffset_ZeroWhenAllFree(t *testing.T) {
	probe := &fakeProbe{busy: map[int]bool{}}

	offset, err := SuggestOffset(probe, []model.Port{{Port: 5432}, {Port: 6379}})
	require.NoError(t, err)
	assert.Equal(t, 0, offset)
}

func TestSuggestOffset_SkipsBusyOffsets(t *testing.T) {
	// 5432 and 5532 are taken; the first fully free band is +200.
	probe := &fakeProbe{busy: map[int]bool{5432: true, 5532: true}}

	offset, err := SuggestOffset(probe, []model.Port{{Port: 5432}, {Port: 6379}})
	require.NoError(t, err)
	assert.Equal(t, 200, offset)
}

func TestSuggestOffset_EmptyPortList(t *testing.T) {
	offset, err := SuggestOffset(&fakeProbe{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, offset)
}

func TestSuggestOffset_NoFreeBand(t *testing.T) {
	// A port high enough that every offset either collides or overflows.
	probe := &fakeProbe{busy: map[int]bool{65535: true}}

	_, err := SuggestOffset(probe, []model.Port{{Port: 65535}})
	require.Error(t, err)
}
