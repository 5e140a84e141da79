package crawler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrBlockedAddress is returned when a dial resolves to a private or local address.
var ErrBlockedAddress = errors.New("blocked connection to private/local IP")

// ssrfSafeDialContext returns a DialContext that resolves the host itself and
// refuses private, loopback, link-local and unspecified addresses. The check
// runs after resolution so DNS rebinding cannot bypass it.
func ssrfSafeDialContext() func(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}

		ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, err
		}

		var lastErr error
		for _, ip := range ips {
			if isPrivateOrLocalIP(ip.IP) {
				lastErr = fmt.Errorf("%w: %s", ErrBlockedAddress, ip.IP)
				continue
			}
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip.IP.String(), port))
			if err != nil {
				lastErr = err
				continue
			}
			return conn, nil
		}

		if lastErr == nil {
			lastErr = fmt.Errorf("no addresses found for %s", host)
		}
		return nil, lastErr
	}
}

// isPrivateOrLocalIP reports whether ip must never be dialled by the crawler.
func isPrivateOrLocalIP(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		ip = ip4
	}
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}
