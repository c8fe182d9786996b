package util

import (
	"net"
	"strconv"
	"strings"
)

// NormalizeAddr returns the provided address if it is non-empty (after trimming
// whitespace), or the fallback value if the address is empty or whitespace-only.
func NormalizeAddr(addr, fallback string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return fallback
	}
	return addr
}

// SplitEndpoint parses a "host:port" endpoint as written in .lagoon.yml or
// LAGOON_OVERRIDE_SSH. A missing host or an unusable port is replaced by the
// corresponding default, so the result is always dialable.
//
// Examples:
//
//	SplitEndpoint("ssh.example.com:2020", "d", 22) → "ssh.example.com", 2020
//	SplitEndpoint("ssh.example.com", "d", 22)      → "ssh.example.com", 22
//	SplitEndpoint(":abc", "d", 22)                 → "d", 22
func SplitEndpoint(endpoint, defaultHost string, defaultPort int) (string, int) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return defaultHost, defaultPort
	}
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		// No port component at all.
		return NormalizeAddr(strings.Trim(endpoint, "[]"), defaultHost), defaultPort
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || ValidatePort(port) != nil {
		port = defaultPort
	}
	return NormalizeAddr(host, defaultHost), port
}

// JoinEndpoint is the inverse of SplitEndpoint.
func JoinEndpoint(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
