package persona

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registry resolves persona names to definitions. Builtins are always
// present; YAML files can add roles or override builtins.
type Registry struct {
	personas map[string]Persona
}

// NewRegistry returns a registry holding the builtin personas.
func NewRegistry() *Registry {
	r := &Registry{personas: make(map[string]Persona)}
	for _, p := range []Persona{Default, UIExpert, AppStarterExpert} {
		r.personas[p.Name] = p
	}
	return r
}

// Register adds or replaces a persona.
func (r *Registry) Register(p Persona) error {
	if err := p.validate(); err != nil {
		return err
	}
	r.personas[p.Name] = p
	return nil
}

// Get resolves a persona by name. Empty or unknown names fall back to the
// Default persona.
func (r *Registry) Get(name string) Persona {
	if p, ok := r.personas[name]; ok {
		return p
	}
	return r.personas[NameDefault]
}

// Has reports whether a persona with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.personas[name]
	return ok
}

// Names returns the registered persona names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.personas))
	for name := range r.personas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe renders a one-line-per-persona summary used in planning prompts.
func (r *Registry) Describe() string {
	var b strings.Builder
	for _, name := range r.Names() {
		p := r.personas[name]
		fmt.Fprintf(&b, "- %s: %s\n", p.Name, p.Description)
	}
	return b.String()
}

// LoadFile registers one persona from a YAML file.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read persona file: %w", err)
	}
	var p Persona
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parse persona file %s: %w", path, err)
	}
	if err := r.Register(p); err != nil {
		return fmt.Errorf("persona file %s: %w", path, err)
	}
	return nil
}

// LoadDir registers every .yaml/.yml persona in a directory. A missing
// directory is not an error.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read persona dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if err := r.LoadFile(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}
