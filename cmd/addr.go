package cmd

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

const defaultServeAddr = "127.0.0.1:8000"

// resolveServeAddr picks the listen address from the --addr flag or a
// positional argument, supporting both:
//
//	askdocs serve :8080
//	askdocs serve --addr :8080
func resolveServeAddr(flagAddr string, args []string) (string, error) {
	addr := flagAddr
	if len(args) > 0 && args[0] != "" {
		addr = args[0]
	}
	if addr == "" {
		addr = defaultServeAddr
	}

	if err := validateAddr(addr); err != nil {
		return "", fmt.Errorf("invalid address %q: %w", addr, err)
	}
	return addr, nil
}

// validateAddr validates the listen address format.
func validateAddr(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("must be in host:port format: %w", err)
	}

	if host != "" && host != "localhost" {
		if ip := net.ParseIP(host); ip == nil {
			if strings.ContainsAny(host, " \t\n") {
				return fmt.Errorf("invalid host: %s", host)
			}
		}
	}

	if port == "" {
		return fmt.Errorf("port is required")
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("port must be numeric: %w", err)
	}
	if portNum < 0 || portNum > 65535 {
		return fmt.Errorf("port must be 0-65535 (0 = auto-assign), got %d", portNum)
	}

	return nil
}
