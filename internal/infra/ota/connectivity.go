package ota

import (
	"context"
	"net"
	"net/url"
	"time"
)

// Connectivity checks reachability of the version server with a TCP dial.
type Connectivity struct {
	addr   string
	dialer net.Dialer
}

func NewConnectivity(rawURL string, timeout time.Duration) *Connectivity {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Connectivity{
		addr:   hostPort(rawURL),
		dialer: net.Dialer{Timeout: timeout},
	}
}

func (c *Connectivity) Reachable(ctx context.Context) bool {
	if c.addr == "" {
		return true
	}
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func hostPort(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	if port := u.Port(); port != "" {
		return net.JoinHostPort(u.Hostname(), port)
	}
	switch u.Scheme {
	case "http", "ws":
		return net.JoinHostPort(u.Hostname(), "80")
	default:
		return net.JoinHostPort(u.Hostname(), "443")
	}
}
