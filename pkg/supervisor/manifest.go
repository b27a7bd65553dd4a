package supervisor

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest is the declarative description of a set of children to launch.
//
//	children:
//	  - id: cache-primer
//	    worker: sleeper
//	    start_timeout: 5s
//	    args:
//	      wake_after: 500ms
type Manifest struct {
	Children []ChildManifest `yaml:"children"`
}

// ChildManifest declares a single child.
type ChildManifest struct {
	// ID of the child, unique within the manifest
	ID string `yaml:"id"`

	// Worker names a registered worker type
	Worker string `yaml:"worker"`

	// MailboxSize overrides the supervisor default when > 0
	MailboxSize int `yaml:"mailbox_size"`

	// StartTimeout bounds the readiness handshake; zero means the caller's
	// default applies
	StartTimeout Duration `yaml:"start_timeout"`

	// Args are passed to the worker factory
	Args map[string]any `yaml:"args"`
}

// Duration is a time.Duration that unmarshals from YAML strings like "250ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// LoadManifest reads and validates a children manifest from a YAML file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	if err := manifest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}

	return &manifest, nil
}

// Validate checks required fields and ID uniqueness.
func (m *Manifest) Validate() error {
	if len(m.Children) == 0 {
		return fmt.Errorf("manifest has no children")
	}

	seen := make(map[string]bool, len(m.Children))
	for i, child := range m.Children {
		if child.ID == "" {
			return fmt.Errorf("child %d: id is required", i)
		}
		if child.Worker == "" {
			return fmt.Errorf("child %q: worker is required", child.ID)
		}
		if child.StartTimeout < 0 {
			return fmt.Errorf("child %q: start_timeout must be non-negative", child.ID)
		}
		if seen[child.ID] {
			return fmt.Errorf("child %q: duplicate id", child.ID)
		}
		seen[child.ID] = true
	}

	return nil
}

// Spec converts the declaration into a launchable Spec.
func (c *ChildManifest) Spec() Spec {
	return Spec{
		ID:          c.ID,
		WorkerType:  c.Worker,
		Args:        c.Args,
		MailboxSize: c.MailboxSize,
	}
}
