package core

import (
	"fmt"
	"sort"

	"solidcore/pkg/model"
)

// Plugin contributes entity kinds, rules and attribute policies.
type Plugin interface {
	Name() string
	Version() string
	Register(registry *PluginRegistry) error
}

type kindRegistration struct {
	kind    *model.Kind
	factory model.Factory
}

// PluginRegistry accumulates plugin contributions during registration.
type PluginRegistry struct {
	kinds    []kindRegistration
	rules    []Rule
	policies map[string]model.Behavior
}

// NewPluginRegistry returns an empty registry.
func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{policies: make(map[string]model.Behavior)}
}

// RegisterKind adds an entity kind with the factory archive reads use to
// allocate placeholders.
func (r *PluginRegistry) RegisterKind(kind *model.Kind, factory model.Factory) error {
	if kind == nil || factory == nil {
		return fmt.Errorf("kind and factory are required")
	}
	for _, existing := range r.kinds {
		if existing.kind.Name() == kind.Name() {
			return fmt.Errorf("%w: %s", model.ErrDuplicateKind, kind.Name())
		}
	}
	r.kinds = append(r.kinds, kindRegistration{kind: kind, factory: factory})
	return nil
}

// RegisterRule adds a rule run before every commit.
func (r *PluginRegistry) RegisterRule(rule Rule) {
	if rule == nil {
		return
	}
	r.rules = append(r.rules, rule)
}

// RegisterPolicy overrides the behavior of an attribute kind. Unset
// operations keep the kind defaults.
func (r *PluginRegistry) RegisterPolicy(kind string, b model.Behavior) {
	if kind == "" {
		return
	}
	r.policies[kind] = b
}

// Rules returns a copy of registered rules.
func (r *PluginRegistry) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Kinds returns the registered kind names in registration order.
func (r *PluginRegistry) Kinds() []string {
	out := make([]string, len(r.kinds))
	for i, k := range r.kinds {
		out[i] = k.kind.Name()
	}
	return out
}

// Policies returns a copy of the registered overrides.
func (r *PluginRegistry) Policies() map[string]model.Behavior {
	out := make(map[string]model.Behavior, len(r.policies))
	for k, b := range r.policies {
		out[k] = b
	}
	return out
}

// PluginMetadata describes an installed plugin.
type PluginMetadata struct {
	Name     string
	Version  string
	Kinds    []string
	Rules    []string
	Policies []string
}

func (r *PluginRegistry) metadata(p Plugin) PluginMetadata {
	meta := PluginMetadata{Name: p.Name(), Version: p.Version(), Kinds: r.Kinds()}
	for _, rule := range r.rules {
		meta.Rules = append(meta.Rules, rule.Name())
	}
	for kind := range r.policies {
		meta.Policies = append(meta.Policies, kind)
	}
	sort.Strings(meta.Policies)
	return meta
}
