// Package hetzner implements the cloud provider contract on top of the
// Hetzner Cloud API.
package hetzner

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/gridship/gridship/internal/provider"
	"github.com/gridship/gridship/internal/util/retry"
)

// Provider manages instances through the Hetzner Cloud API.
type Provider struct {
	client   *hcloud.Client
	location string
}

// New creates a Provider authenticated with the given API token. The
// location is optional; when empty, Hetzner picks one.
func New(token, location string) *Provider {
	return &Provider{
		client:   hcloud.NewClient(hcloud.WithToken(token)),
		location: location,
	}
}

// StartInstance creates a server and returns its numeric ID as a string.
// It returns once the create action is accepted; boot progress is observed
// through IsInstanceRunning.
func (p *Provider) StartInstance(ctx context.Context, spec provider.LaunchSpec) (string, error) {
	serverType, _, err := p.client.ServerType.Get(ctx, spec.Flavor)
	if err != nil {
		return "", fmt.Errorf("failed to get server type %s: %w", spec.Flavor, err)
	}
	if serverType == nil {
		return "", fmt.Errorf("server type not found: %s", spec.Flavor)
	}

	image, _, err := p.client.Image.GetForArchitecture(ctx, spec.ImageID, serverType.Architecture)
	if err != nil {
		return "", fmt.Errorf("failed to get image %s: %w", spec.ImageID, err)
	}
	if image == nil {
		return "", fmt.Errorf("image not found: %s", spec.ImageID)
	}

	sshKey, _, err := p.client.SSHKey.Get(ctx, spec.KeyName)
	if err != nil {
		return "", fmt.Errorf("failed to get ssh key %s: %w", spec.KeyName, err)
	}
	if sshKey == nil {
		return "", fmt.Errorf("ssh key not found: %s", spec.KeyName)
	}

	var firewalls []*hcloud.ServerCreateFirewall
	if spec.SecurityGroup != "" {
		fw, _, err := p.client.Firewall.Get(ctx, spec.SecurityGroup)
		if err != nil {
			return "", fmt.Errorf("failed to get firewall %s: %w", spec.SecurityGroup, err)
		}
		if fw == nil {
			return "", fmt.Errorf("firewall not found: %s", spec.SecurityGroup)
		}
		firewalls = append(firewalls, &hcloud.ServerCreateFirewall{Firewall: *fw})
	}

	var location *hcloud.Location
	if p.location != "" {
		location, _, err = p.client.Location.Get(ctx, p.location)
		if err != nil {
			return "", fmt.Errorf("failed to get location %s: %w", p.location, err)
		}
		if location == nil {
			return "", fmt.Errorf("location not found: %s", p.location)
		}
	}

	opts := hcloud.ServerCreateOpts{
		Name:       spec.NodeName,
		ServerType: serverType,
		Image:      image,
		SSHKeys:    []*hcloud.SSHKey{sshKey},
		UserData:   spec.UserData,
		Location:   location,
		Firewalls:  firewalls,
	}

	var result hcloud.ServerCreateResult
	err = retry.Do(ctx, func() error {
		res, _, err := p.client.Server.Create(ctx, opts)
		if err != nil {
			if isInvalidParameter(err) {
				return retry.Fatal(err)
			}
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to create server %s: %w", spec.NodeName, err)
	}

	return strconv.FormatInt(result.Server.ID, 10), nil
}

// StopInstance deletes the server. A server that no longer exists is not
// an error.
func (p *Provider) StopInstance(ctx context.Context, instanceID string) error {
	id, err := parseID(instanceID)
	if err != nil {
		return err
	}

	return retry.Do(ctx, func() error {
		server, _, err := p.client.Server.GetByID(ctx, id)
		if err != nil {
			return retry.Fatal(fmt.Errorf("failed to get server %d: %w", id, err))
		}
		if server == nil {
			return nil // already gone
		}
		_, _, err = p.client.Server.DeleteWithResult(ctx, server)
		if err != nil {
			if isResourceLocked(err) {
				return err
			}
			return retry.Fatal(err)
		}
		return nil
	})
}

// IsInstanceRunning reports whether the server status is running.
func (p *Provider) IsInstanceRunning(ctx context.Context, instanceID string) (bool, error) {
	id, err := parseID(instanceID)
	if err != nil {
		return false, err
	}
	server, _, err := p.client.Server.GetByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to get server %d: %w", id, err)
	}
	if server == nil {
		return false, fmt.Errorf("server not found: %d", id)
	}
	return server.Status == hcloud.ServerStatusRunning, nil
}

// GetIPs returns the server's public IPv4 followed by any private
// addresses. The public address is listed first because it is the most
// likely to be reachable from the controller.
func (p *Provider) GetIPs(ctx context.Context, instanceID string) ([]string, error) {
	id, err := parseID(instanceID)
	if err != nil {
		return nil, err
	}
	server, _, err := p.client.Server.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get server %d: %w", id, err)
	}
	if server == nil {
		return nil, fmt.Errorf("server not found: %d", id)
	}

	var ips []string
	if server.PublicNet.IPv4.IP != nil && !server.PublicNet.IPv4.IP.IsUnspecified() {
		ips = append(ips, server.PublicNet.IPv4.IP.String())
	}
	for _, privateNet := range server.PrivateNet {
		if privateNet.IP != nil {
			ips = append(ips, privateNet.IP.String())
		}
	}
	return ips, nil
}

func parseID(instanceID string) (int64, error) {
	id, err := strconv.ParseInt(instanceID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid instance id: %s", instanceID)
	}
	return id, nil
}

// isResourceLocked checks if an error indicates a resource is locked.
// These errors are retryable.
func isResourceLocked(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "locked") ||
		strings.Contains(errStr, "conflict") ||
		strings.Contains(errStr, "is busy")
}

// isInvalidParameter checks if an error indicates invalid parameters.
// These errors are fatal and should not be retried.
func isInvalidParameter(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "invalid") ||
		strings.Contains(errStr, "not found") ||
		strings.Contains(errStr, "does not exist")
}
