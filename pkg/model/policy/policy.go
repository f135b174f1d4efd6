// Package policy loads attribute migration policies from YAML. A policy file
// maps attribute kind names to the action each operation should take:
//
//	kinds:
//	  label:
//	    split: duplicate
//	    merge: keep
//	  debug_mark:
//	    copy: lose
//
// Applying a policy installs the overrides on a document registry, where they
// take precedence over kind defaults but not over per-instance settings.
package policy

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"solidcore/pkg/model"
)

// MaxKinds bounds the number of kinds a single policy file may configure.
const MaxKinds = 1024

// Policy is a parsed set of per-kind behavior overrides.
type Policy struct {
	Name  string
	kinds map[string]model.Behavior
}

type policyYAML struct {
	Name  string                       `yaml:"name"`
	Kinds map[string]map[string]string `yaml:"kinds"`
}

// Parse decodes a policy document.
func Parse(data []byte) (*Policy, error) {
	var raw policyYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling policy YAML: %w", err)
	}
	if len(raw.Kinds) > MaxKinds {
		return nil, fmt.Errorf("too many kinds: %d (max %d)", len(raw.Kinds), MaxKinds)
	}
	p := &Policy{Name: raw.Name, kinds: make(map[string]model.Behavior, len(raw.Kinds))}
	for kind, actions := range raw.Kinds {
		if kind == "" {
			return nil, fmt.Errorf("policy kind with empty name")
		}
		b, err := model.BehaviorFromMap(actions)
		if err != nil {
			return nil, fmt.Errorf("kind %s: %w", kind, err)
		}
		p.kinds[kind] = b
	}
	return p, nil
}

// Load reads and parses the policy file at path.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied policy path
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	return Parse(data)
}

// Kinds returns the configured kind names in order.
func (p *Policy) Kinds() []string {
	out := make([]string, 0, len(p.kinds))
	for k := range p.kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Behavior returns the overrides for kind.
func (p *Policy) Behavior(kind string) (model.Behavior, bool) {
	b, ok := p.kinds[kind]
	return b, ok
}

// Set records overrides for kind, replacing earlier ones.
func (p *Policy) Set(kind string, b model.Behavior) {
	if p.kinds == nil {
		p.kinds = make(map[string]model.Behavior)
	}
	p.kinds[kind] = b
}

// Apply installs the overrides on r. Kinds the registry does not know are
// still installed so generic attributes restored under that name follow them.
func (p *Policy) Apply(r *model.Registry) {
	for _, kind := range p.Kinds() {
		r.SetOverrides(kind, p.kinds[kind])
	}
}

// Marshal renders the policy back to YAML.
func (p *Policy) Marshal() ([]byte, error) {
	raw := policyYAML{Name: p.Name, Kinds: make(map[string]map[string]string, len(p.kinds))}
	for kind, b := range p.kinds {
		raw.Kinds[kind] = b.Map()
	}
	return yaml.Marshal(raw)
}
