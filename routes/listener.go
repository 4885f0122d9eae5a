package routes

import (
	"fmt"
	"net"
	"strings"
)

// Listener is one configured bind address routes may target with endpoint
// bindings.
type Listener struct {
	Host string
	Port string
}

func (l Listener) String() string {
	return net.JoinHostPort(l.Host, l.Port)
}

// ParseListener accepts "host:port" or ":port" forms.
func ParseListener(s string) (Listener, error) {
	host, port, err := net.SplitHostPort(strings.TrimSpace(s))
	if err != nil {
		return Listener{}, fmt.Errorf("parse listener %q: %w", s, err)
	}
	if port == "" {
		return Listener{}, fmt.Errorf("parse listener %q: port required", s)
	}
	return Listener{Host: host, Port: port}, nil
}

// Matches reports whether an endpoint binding refers to this listener. An
// empty host on either side binds all interfaces.
func (l Listener) Matches(other Listener) bool {
	if l.Port != other.Port {
		return false
	}
	return l.Host == "" || other.Host == "" || l.Host == other.Host
}
