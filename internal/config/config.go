// Package config loads and validates the cluster template file.
//
// The template declares the cluster's identity, the cloud and store
// backends, the SSH key material, and the node kinds with their counts
// and minimums. Loading never talks to the cloud; validation is purely
// structural.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration with yaml decoding from strings like "10m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the top-level cluster template.
type Config struct {
	ClusterName    string         `yaml:"cluster_name"`
	SSHTo          string         `yaml:"ssh_to,omitempty"`
	StartupTimeout Duration       `yaml:"startup_timeout,omitempty"`
	Provider       ProviderConfig `yaml:"provider"`
	SSH            SSHConfig      `yaml:"ssh"`
	Store          StoreConfig    `yaml:"store,omitempty"`
	Setup          SetupConfig    `yaml:"setup,omitempty"`
	Kinds          []KindConfig   `yaml:"kinds"`
}

// SetupConfig declares the post-start configuration step. Command is run
// locally with an inventory of the cluster's nodes; an empty command makes
// setup a no-op.
type SetupConfig struct {
	Command string `yaml:"command,omitempty"`
}

// ProviderConfig selects and parameterizes the cloud backend.
type ProviderConfig struct {
	// TokenEnv names the environment variable holding the API token.
	// Tokens never live in the template file itself.
	TokenEnv string `yaml:"token_env"`
	Location string `yaml:"location,omitempty"`
}

// SSHConfig holds the key material used to reach the nodes.
type SSHConfig struct {
	KeyName        string `yaml:"key_name"`
	PublicKeyPath  string `yaml:"public_key"`
	PrivateKeyPath string `yaml:"private_key"`
	Port           string `yaml:"port,omitempty"`
}

// StoreConfig selects the persistence backend. The zero value keeps
// cluster state in memory for the lifetime of the invocation.
type StoreConfig struct {
	Backend string     `yaml:"backend,omitempty"` // memory, etcd or s3
	Etcd    EtcdConfig `yaml:"etcd,omitempty"`
	S3      S3Config   `yaml:"s3,omitempty"`
}

// EtcdConfig parameterizes the etcd store backend.
type EtcdConfig struct {
	Endpoints []string `yaml:"endpoints"`
}

// S3Config parameterizes the S3 store backend.
type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix,omitempty"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// KindConfig declares one node group.
type KindConfig struct {
	Name          string `yaml:"name"`
	Count         int    `yaml:"count"`
	MinCount      int    `yaml:"min_count,omitempty"`
	Image         string `yaml:"image"`
	ImageUser     string `yaml:"image_user"`
	Flavor        string `yaml:"flavor"`
	SecurityGroup string `yaml:"security_group,omitempty"`
	UserData      string `yaml:"user_data,omitempty"`
}

// LoadFile reads and validates a cluster template.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the template for structural problems.
func (c *Config) Validate() error {
	if c.ClusterName == "" {
		return fmt.Errorf("cluster_name is required")
	}
	if c.Provider.TokenEnv == "" {
		return fmt.Errorf("provider.token_env is required")
	}
	if c.SSH.KeyName == "" || c.SSH.PrivateKeyPath == "" {
		return fmt.Errorf("ssh.key_name and ssh.private_key are required")
	}
	if len(c.Kinds) == 0 {
		return fmt.Errorf("at least one kind is required")
	}

	seen := make(map[string]bool, len(c.Kinds))
	for _, kind := range c.Kinds {
		if kind.Name == "" {
			return fmt.Errorf("kind with empty name")
		}
		if seen[kind.Name] {
			return fmt.Errorf("duplicate kind %q", kind.Name)
		}
		seen[kind.Name] = true
		if kind.Count < 0 || kind.MinCount < 0 {
			return fmt.Errorf("kind %q: counts must not be negative", kind.Name)
		}
		if kind.Count == 0 {
			return fmt.Errorf("kind %q: count is required", kind.Name)
		}
		if kind.Image == "" || kind.ImageUser == "" || kind.Flavor == "" {
			return fmt.Errorf("kind %q: image, image_user and flavor are required", kind.Name)
		}
	}

	switch c.Store.Backend {
	case "", "memory":
	case "etcd":
		if len(c.Store.Etcd.Endpoints) == 0 {
			return fmt.Errorf("store.etcd.endpoints is required for the etcd backend")
		}
	case "s3":
		if c.Store.S3.Bucket == "" || c.Store.S3.Region == "" {
			return fmt.Errorf("store.s3.bucket and store.s3.region are required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.SSHTo != "" && !seen[c.SSHTo] {
		return fmt.Errorf("ssh_to names unknown kind %q", c.SSHTo)
	}
	return nil
}

// Minimums returns the explicitly configured per-kind minimums. Kinds
// without a min_count are omitted; their minimum defaults to the actual
// count at start time.
func (c *Config) Minimums() map[string]int {
	mins := make(map[string]int)
	for _, kind := range c.Kinds {
		if kind.MinCount > 0 {
			mins[kind.Name] = kind.MinCount
		}
	}
	return mins
}
