package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/crypto/ssh"
)

// SSHConnector implements Connector using the SSH protocol with
// private-key authentication.
type SSHConnector struct {
	port string
	log  logr.Logger
}

// NewSSHConnector creates an SSHConnector. Port defaults to 22.
func NewSSHConnector(port string, log logr.Logger) *SSHConnector {
	if port == "" {
		port = "22"
	}
	return &SSHConnector{port: port, log: log}
}

// Connect dials the address and completes the SSH handshake. Host keys are
// not verified: nodes are freshly provisioned and their keys are unknown
// until first contact.
func (c *SSHConnector) Connect(ctx context.Context, addr string, creds Credentials, timeout time.Duration) (io.Closer, error) {
	keyData, err := os.ReadFile(creds.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	config := &ssh.ClientConfig{
		User:            creds.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: c.logHostKey,
		Timeout:         timeout,
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(addr, c.port))
	if err != nil {
		return nil, fmt.Errorf("host %s not reachable: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

func (c *SSHConnector) logHostKey(hostname string, _ net.Addr, key ssh.PublicKey) error {
	c.log.V(1).Info("ignoring unknown host key", "host", hostname, "type", key.Type(), "fingerprint", ssh.FingerprintSHA256(key))
	return nil
}
