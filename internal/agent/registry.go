package agent

import (
	"fmt"
	"sort"
	"sync"
)

// Registry indexes loaded agents by name.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Agent
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: map[string]*Agent{}}
}

// Register installs an agent. Returns an error if the name already exists.
func (r *Registry) Register(a *Agent) error {
	if a == nil {
		return fmt.Errorf("agent: nil agent")
	}
	if a.Name == "" {
		return fmt.Errorf("agent: name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, exists := r.agents[a.Name]; exists {
		return fmt.Errorf("agent: %s already registered (%s and %s)", a.Name, existing.Path, a.Path)
	}
	r.agents[a.Name] = a
	return nil
}

// Resolve returns the agent registered under name.
func (r *Registry) Resolve(name string) (*Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	if !ok {
		return nil, fmt.Errorf("agent: unknown name %s", name)
	}
	return a, nil
}

// Names returns the sorted list of registered agent names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every registered agent in name order.
func (r *Registry) All() []*Agent {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Agent, 0, len(names))
	for _, name := range names {
		out = append(out, r.agents[name])
	}
	return out
}

// Security returns the agents in the security category, in name order.
func (r *Registry) Security() []*Agent {
	var out []*Agent
	for _, a := range r.All() {
		if a.SecurityFocused() {
			out = append(out, a)
		}
	}
	return out
}
