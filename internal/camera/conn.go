package camera

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"
)

// dial opens the session connection. Only the dial is bounded by a timeout;
// reads and writes on the returned connection block.
func dial(ctx context.Context, address string, timeout time.Duration) (net.Conn, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	return conn, nil
}

type readCloser interface{ CloseRead() error }

type writeCloser interface{ CloseWrite() error }

// closeConn half-closes input, then output, then closes conn. Failures are
// logged and otherwise ignored.
func closeConn(conn net.Conn, logger *slog.Logger) {
	if rc, ok := conn.(readCloser); ok {
		if err := rc.CloseRead(); err != nil {
			logger.Debug("Failed to shut down socket input", "error", err)
		}
	}
	if wc, ok := conn.(writeCloser); ok {
		if err := wc.CloseWrite(); err != nil {
			logger.Debug("Failed to shut down socket output", "error", err)
		}
	}
	if err := conn.Close(); err != nil {
		logger.Warn("Cannot close socket", "error", err)
	}
}
