package main

import (
	"fmt"
	"net"
	"strings"
)

// listenerURL returns a human-friendly URL for a listener address.
// 1.- Normalise the configured address so the message always shows a reachable host:port pair.
// 2.- Prefix the scheme the listener speaks so operators can copy the URL directly.
func listenerURL(scheme, address string) string {
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s", scheme, normaliseHostPort(address))
}

func normaliseHostPort(address string) string {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return "localhost"
	}
	host, port, err := net.SplitHostPort(trimmed)
	if err != nil {
		if strings.HasPrefix(trimmed, ":") {
			return "localhost" + trimmed
		}
		return trimmed
	}
	switch strings.TrimSpace(host) {
	case "", "0.0.0.0", "::", "[::]":
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
