package ports

import (
	"net"
	"strconv"
)

// Prober reports whether a TCP port can currently be bound.
type Prober interface {
	IsAvailable(port int) bool
}

// Probe checks bindability by opening and immediately closing a listener.
// An empty Host binds all interfaces, which also collides with a listener
// on a single loopback address.
type Probe struct {
	Host string
}

func (p Probe) IsAvailable(port int) bool {
	if port <= 0 || port > 65535 {
		return false
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(p.Host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}
