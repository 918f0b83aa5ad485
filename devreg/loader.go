package devreg

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver"
	"gopkg.in/yaml.v2"
)

// schemaConstraint is the descriptor schema range this build understands.
// Descriptors without a schema field predate versioning and are accepted.
const schemaConstraintStr = "^1.0.0"

var schemaConstraint = mustConstraint(schemaConstraintStr)

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Registry maps device id to descriptor. Iteration order is irrelevant;
// loading order governs which descriptor wins a duplicate id.
type Registry struct {
	Devices map[string]*DeviceDescriptor
}

func NewRegistry() *Registry {
	return &Registry{Devices: make(map[string]*DeviceDescriptor)}
}

// Insert adds or replaces a descriptor by id.
func (r *Registry) Insert(desc *DeviceDescriptor) {
	r.Devices[desc.ID] = desc
}

// Get looks a descriptor up by id.
func (r *Registry) Get(id string) (*DeviceDescriptor, bool) {
	d, ok := r.Devices[id]
	return d, ok
}

// IDs returns device ids in sorted order, for stable listings.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.Devices))
	for id := range r.Devices {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// LoadDescriptorFile parses one YAML descriptor and gates it on the
// schema version.
func LoadDescriptorFile(path string) (*DeviceDescriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading descriptor %s: %w", path, err)
	}
	var desc DeviceDescriptor
	if err := yaml.Unmarshal(raw, &desc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadDescriptor, path, err)
	}
	if desc.ID == "" {
		return nil, fmt.Errorf("%w: %s: missing id", ErrBadDescriptor, path)
	}
	if desc.Schema != "" {
		v, err := semver.NewVersion(desc.Schema)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: schema %q: %v", ErrBadSchema, path, desc.Schema, err)
		}
		if !schemaConstraint.Check(v) {
			return nil, fmt.Errorf("%w: %s: schema %s outside %s", ErrBadSchema, path, desc.Schema, schemaConstraintStr)
		}
	}
	return &desc, nil
}

// LoadDescriptorsDir reads every .yml/.yaml entry in sorted name order.
// Duplicate ids overwrite in that order; last file wins.
func LoadDescriptorsDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading descriptor dir %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yml", ".yaml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	reg := NewRegistry()
	for _, p := range paths {
		desc, err := LoadDescriptorFile(p)
		if err != nil {
			return nil, err
		}
		reg.Insert(desc)
	}
	return reg, nil
}
