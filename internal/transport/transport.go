// Package transport abstracts the network+authentication handshake used to
// decide whether a node is connectable, and to hand callers a live
// connection once it is.
package transport

import (
	"context"
	"io"
	"time"
)

// Credentials identifies the remote account used for the handshake.
type Credentials struct {
	User           string
	PrivateKeyPath string
}

// Connector attempts connections to a single address.
type Connector interface {
	// Connect performs the handshake against one address. Network
	// unreachability and authentication rejection are both ordinary
	// failures; the caller moves on to the next candidate address either
	// way. On success the returned handle is live and owned by the caller.
	Connect(ctx context.Context, addr string, creds Credentials, timeout time.Duration) (io.Closer, error)
}

// MockConnector is a mock implementation of Connector.
type MockConnector struct {
	ConnectFunc func(ctx context.Context, addr string, creds Credentials, timeout time.Duration) (io.Closer, error)
}

func (m *MockConnector) Connect(ctx context.Context, addr string, creds Credentials, timeout time.Duration) (io.Closer, error) {
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx, addr, creds, timeout)
	}
	return NopHandle{}, nil
}

// NopHandle is a connection handle that holds no resources.
type NopHandle struct{}

func (NopHandle) Close() error { return nil }
