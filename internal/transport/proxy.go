package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"time"
)

const checkProxyTimeout = 2 * time.Second

const (
	socks5Version      = 0x05
	socks5AuthNone     = 0x00
	socks5AuthNoAccept = 0xFF
)

// CheckProxy verifies that the configured proxy speaks SOCKS5 and accepts
// clients without authentication. It does nothing when no proxy is set.
//
// Only the method negotiation is performed; no connection to the board is
// requested through the proxy.
func (c *Client) CheckProxy(ctx context.Context) error {
	if c.proxyAddr == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyAddr)
	if err != nil {
		return errors.Join(ErrProxyCannotConnect, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return errors.Join(ErrProxyCannotConnect, err)
	}

	// version, one method offered, "no authentication"
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return errors.Join(ErrProxyCannotConnect, err)
	}

	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return errors.Join(ErrProxyNotSOCKS5, err)
	}
	if resp[0] != socks5Version || resp[1] == socks5AuthNoAccept || resp[1] != socks5AuthNone {
		return ErrProxyNotSOCKS5
	}

	c.logger.Debug("SOCKS5 proxy ok", "proxy", c.proxyAddr)
	return nil
}
