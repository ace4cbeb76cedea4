// Package manifest builds the package.json that drives each install.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultName is the name written into every manifest
	DefaultName = "package-size-checker"

	// DefaultType enables the ES module system
	DefaultType = "module"

	// Latest is the version constraint requested for checked packages
	Latest = "latest"
)

var (
	// ErrEmptyDependency indicates a blank dependency name
	ErrEmptyDependency = errors.New("dependency name is required")

	// ErrTooManyDependencies indicates a second dependency was requested
	ErrTooManyDependencies = errors.New("manifest holds at most one dependency")
)

// Manifest is the package manager descriptor
type Manifest struct {
	Name         string            `json:"name"`
	Type         string            `json:"type"`
	Dependencies map[string]string `json:"dependencies"`
}

// New returns a manifest with no dependencies
func New(name string) *Manifest {
	if name == "" {
		name = DefaultName
	}
	return &Manifest{
		Name:         name,
		Type:         DefaultType,
		Dependencies: make(map[string]string),
	}
}

// ForPackage returns a manifest requesting identifier at the latest version
func ForPackage(name, identifier string) (*Manifest, error) {
	m := New(name)
	if err := m.AddDependency(identifier, Latest); err != nil {
		return nil, err
	}
	return m, nil
}

// AddDependency records identifier at constraint. Re-adding the same
// identifier replaces its constraint.
func (m *Manifest) AddDependency(identifier, constraint string) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return ErrEmptyDependency
	}
	if m.Dependencies == nil {
		m.Dependencies = make(map[string]string)
	}
	if _, ok := m.Dependencies[identifier]; !ok && len(m.Dependencies) > 0 {
		return fmt.Errorf("%w: already requested %s", ErrTooManyDependencies, m.dependencyName())
	}
	if constraint == "" {
		constraint = Latest
	}
	m.Dependencies[identifier] = constraint
	return nil
}

// Dependency returns the single requested dependency, if any
func (m *Manifest) Dependency() (string, string, bool) {
	for name, constraint := range m.Dependencies {
		return name, constraint, true
	}
	return "", "", false
}

func (m *Manifest) dependencyName() string {
	name, _, _ := m.Dependency()
	return name
}

// Marshal encodes the manifest with two-space indentation
func (m *Manifest) Marshal() ([]byte, error) {
	out := *m
	if out.Dependencies == nil {
		out.Dependencies = map[string]string{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Parse decodes a manifest, enforcing the single dependency rule
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if len(m.Dependencies) > 1 {
		return nil, ErrTooManyDependencies
	}
	if m.Dependencies == nil {
		m.Dependencies = make(map[string]string)
	}
	return &m, nil
}

// ModuleDir derives the installed module directory name from an identifier
// by taking the final "/" segment, which strips npm scopes.
func ModuleDir(identifier string) string {
	parts := strings.Split(strings.TrimSpace(identifier), "/")
	return parts[len(parts)-1]
}
