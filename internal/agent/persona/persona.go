package persona

import (
	"fmt"
	"strings"
)

// Context item names a persona can require before each model call.
const (
	ContextUIState    = "ui_state"
	ContextScreenshot = "screenshot"
	ContextPhoneState = "phone_state"
	ContextPackages   = "packages"
	ContextMemory     = "memory"
)

// Persona bundles the prompt, the allowed device actions and the context
// items one executor role needs. Tasks carry a persona name; the registry
// resolves it at dispatch time.
type Persona struct {
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description"`
	ExpertiseAreas  []string `yaml:"expertise_areas"`
	AllowedActions  []string `yaml:"allowed_actions"`
	RequiredContext []string `yaml:"required_context"`
	SystemPrompt    string   `yaml:"system_prompt"`
	UserPrompt      string   `yaml:"user_prompt"`
}

// Requires reports whether the persona asks for the given context item.
func (p *Persona) Requires(item string) bool {
	for _, c := range p.RequiredContext {
		if c == item {
			return true
		}
	}
	return false
}

// Allows reports whether the persona may call the given action.
func (p *Persona) Allows(action string) bool {
	for _, a := range p.AllowedActions {
		if a == action {
			return true
		}
	}
	return false
}

// RenderSystemPrompt substitutes the action descriptions into the system
// prompt template.
func (p *Persona) RenderSystemPrompt(actionDescriptions string) string {
	return strings.ReplaceAll(p.SystemPrompt, "{tool_descriptions}", actionDescriptions)
}

// RenderUserPrompt substitutes the task goal into the user prompt template.
func (p *Persona) RenderUserPrompt(goal string) string {
	return strings.ReplaceAll(p.UserPrompt, "{goal}", goal)
}

func (p *Persona) validate() error {
	if p.Name == "" {
		return fmt.Errorf("persona name is required")
	}
	if p.SystemPrompt == "" {
		return fmt.Errorf("persona %q has no system prompt", p.Name)
	}
	if len(p.AllowedActions) == 0 {
		return fmt.Errorf("persona %q allows no actions", p.Name)
	}
	return nil
}
