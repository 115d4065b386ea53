package persona

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRegistryBuiltins(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{NameDefault, NameUIExpert, NameAppStarterExpert} {
		if !r.Has(name) {
			t.Errorf("builtin persona %q missing", name)
		}
	}
}

func TestGetFallsBackToDefault(t *testing.T) {
	r := NewRegistry()
	p := r.Get("NoSuchExpert")
	if p.Name != NameDefault {
		t.Errorf("fallback persona = %q, want %q", p.Name, NameDefault)
	}
	if p := r.Get(""); p.Name != NameDefault {
		t.Errorf("empty name persona = %q, want %q", p.Name, NameDefault)
	}
}

func TestPersonaContextRequirements(t *testing.T) {
	if !Default.Requires(ContextUIState) || !Default.Requires(ContextScreenshot) {
		t.Error("Default should require ui_state and screenshot")
	}
	if AppStarterExpert.Requires(ContextUIState) {
		t.Error("AppStarterExpert should not require ui_state")
	}
	if !AppStarterExpert.Requires(ContextPackages) {
		t.Error("AppStarterExpert should require packages")
	}
}

func TestPersonaActionGating(t *testing.T) {
	if !AppStarterExpert.Allows("start_app") || !AppStarterExpert.Allows("complete") {
		t.Error("AppStarterExpert must allow start_app and complete")
	}
	if AppStarterExpert.Allows("tap_by_index") {
		t.Error("AppStarterExpert must not allow tap_by_index")
	}
	if !UIExpert.Allows("drag") {
		t.Error("UIExpert must allow drag")
	}
}

func TestRenderPrompts(t *testing.T) {
	rendered := Default.RenderUserPrompt("open the settings app")
	if !strings.Contains(rendered, "open the settings app") {
		t.Error("user prompt should contain the goal")
	}
	sys := Default.RenderSystemPrompt("- tap_by_index(index)")
	if !strings.Contains(sys, "- tap_by_index(index)") {
		t.Error("system prompt should contain the action descriptions")
	}
	if strings.Contains(sys, "{tool_descriptions}") {
		t.Error("placeholder should be substituted")
	}
}

func TestLoadDirRegistersYAMLPersonas(t *testing.T) {
	dir := t.TempDir()
	content := `name: PaymentExpert
description: Handles checkout flows
allowed_actions:
  - tap_by_index
  - input_text
  - complete
required_context:
  - ui_state
system_prompt: You handle payment screens. {tool_descriptions}
user_prompt: "{goal}"
`
	if err := os.WriteFile(filepath.Join(dir, "payment.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry()
	if err := r.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	p := r.Get("PaymentExpert")
	if p.Name != "PaymentExpert" {
		t.Fatalf("persona not registered, got %q", p.Name)
	}
	if !p.Allows("input_text") {
		t.Error("yaml-loaded persona should allow input_text")
	}
}

func TestLoadDirMissingDirIsNotAnError(t *testing.T) {
	r := NewRegistry()
	if err := r.LoadDir(filepath.Join(t.TempDir(), "does-not-exist")); err != nil {
		t.Errorf("missing dir should be tolerated, got %v", err)
	}
}

func TestRegisterRejectsInvalidPersona(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Persona{Name: "Broken"}); err == nil {
		t.Error("persona without prompt/actions should be rejected")
	}
}
