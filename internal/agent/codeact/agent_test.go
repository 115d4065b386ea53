package codeact

import (
	"context"
	"strings"
	"sync"
	"testing"

	"droidrun/internal/agent/domain"
	"droidrun/internal/agent/persona"
	"droidrun/internal/agent/ports"
	"droidrun/internal/llm"
)

// fakeDevice is a minimal in-package device double; the interpreter and
// context gathering only need canned state.
type fakeDevice struct {
	mu       sync.Mutex
	taps     []int
	typed    []string
	started  []string
	memory   []string
	packages []string
	state    *ports.DeviceState
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		packages: []string{"com.android.settings", "com.android.calculator2"},
		state: &ports.DeviceState{
			UITree: []ports.UINode{
				{Index: 0, ClassName: "FrameLayout", Children: []ports.UINode{
					{Index: 3, ClassName: "TextView", Text: "Wi-Fi"},
				}},
			},
			PhoneState: ports.PhoneState{CurrentApp: "Settings", PackageName: "com.android.settings"},
		},
	}
}

func (d *fakeDevice) GetState(ctx context.Context) (*ports.DeviceState, error) {
	return d.state, nil
}

func (d *fakeDevice) TakeScreenshot(ctx context.Context) ([]byte, error) {
	return []byte{0x89, 0x50, 0x4e, 0x47}, nil
}

func (d *fakeDevice) TapByIndex(ctx context.Context, index int) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.taps = append(d.taps, index)
	return "tapped element", nil
}

func (d *fakeDevice) Swipe(ctx context.Context, startX, startY, endX, endY, durationMS int) (string, error) {
	return "swiped", nil
}

func (d *fakeDevice) Drag(ctx context.Context, startX, startY, endX, endY, durationMS int) (string, error) {
	return "dragged", nil
}

func (d *fakeDevice) InputText(ctx context.Context, text string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.typed = append(d.typed, text)
	return "typed text", nil
}

func (d *fakeDevice) PressKey(ctx context.Context, keycode int) (string, error) {
	return "pressed key", nil
}

func (d *fakeDevice) Back(ctx context.Context) (string, error) {
	return "pressed back", nil
}

func (d *fakeDevice) StartApp(ctx context.Context, pkg, activity string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = append(d.started, pkg)
	return "started " + pkg, nil
}

func (d *fakeDevice) ListPackages(ctx context.Context, includeSystem bool) ([]string, error) {
	return d.packages, nil
}

func (d *fakeDevice) Remember(information string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.memory = append(d.memory, information)
	return "remembered"
}

func (d *fakeDevice) Memory() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.memory))
	copy(out, d.memory)
	return out
}

func collectEvents() (func(ports.AgentEvent), *[]ports.AgentEvent) {
	var events []ports.AgentEvent
	return func(ev ports.AgentEvent) { events = append(events, ev) }, &events
}

func TestAgentCompletesTask(t *testing.T) {
	device := newFakeDevice()
	client := llm.NewScriptedClient(
		"I see the Wi-Fi entry at index 3, tapping it.\n```\ntap_by_index(3)\n```",
		"Wi-Fi settings are open, the task is done.\n```\ncomplete(true, \"wifi settings open\")\n```",
	)
	emit, events := collectEvents()

	agent := NewAgent(client, device, persona.Default, emit, nil, Config{MaxSteps: 5})
	outcome, err := agent.Run(context.Background(), "Open the Wi-Fi settings")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Success {
		t.Fatalf("outcome = %+v", outcome)
	}
	if outcome.Reason != "wifi settings open" {
		t.Errorf("reason = %q", outcome.Reason)
	}
	if len(device.taps) != 1 || device.taps[0] != 3 {
		t.Errorf("taps = %v", device.taps)
	}
	if len(outcome.Memory.Steps) < 2 {
		t.Errorf("episodic steps = %d, want at least one per model call", len(outcome.Memory.Steps))
	}

	var sawEnd bool
	for _, ev := range *events {
		if end, ok := ev.(*domain.TaskEndEvent); ok {
			sawEnd = true
			if !end.Success {
				t.Error("task end event should report success")
			}
		}
	}
	if !sawEnd {
		t.Error("expected a task end event")
	}
}

func TestAgentRepromptsWhenNoCode(t *testing.T) {
	device := newFakeDevice()
	client := llm.NewScriptedClient(
		"I think I should tap something but I am not sure.",
		"```\ncomplete(false, \"could not decide\")\n```",
	)

	agent := NewAgent(client, device, persona.Default, nil, nil, Config{MaxSteps: 5})
	outcome, err := agent.Run(context.Background(), "do something")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Success {
		t.Error("outcome should be a failure")
	}

	// The second request must carry the corrective reminder.
	requests := client.Requests()
	if len(requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(requests))
	}
	found := false
	for _, msg := range requests[1].Messages {
		if strings.Contains(msg.Content, "complete(success, reason)") {
			found = true
		}
	}
	if !found {
		t.Error("re-prompt should mention complete(success, reason)")
	}
}

func TestAgentStopsAtMaxSteps(t *testing.T) {
	device := newFakeDevice()
	client := &llm.ScriptedClient{
		CompleteFunc: func(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
			return &ports.CompletionResponse{Content: "tapping again\n```\ntap_by_index(3)\n```"}, nil
		},
	}

	agent := NewAgent(client, device, persona.Default, nil, nil, Config{MaxSteps: 3})
	outcome, err := agent.Run(context.Background(), "never finishes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Success {
		t.Error("exhausted budget should fail the task")
	}
	if !strings.Contains(outcome.Reason, "max step count") {
		t.Errorf("reason = %q", outcome.Reason)
	}
	if client.CallCount() != 3 {
		t.Errorf("model calls = %d, want 3", client.CallCount())
	}
}

func TestSystemPromptSurvivesHistoryTrimming(t *testing.T) {
	device := newFakeDevice()
	// Code-only replies inflate the history fast: every step adds the
	// assistant message, a reasoning reminder and an execution result.
	client := llm.NewScriptedClient(
		"```\ntap_by_index(3)\n```",
		"```\ntap_by_index(3)\n```",
		"```\ncomplete(true, \"done\")\n```",
	)

	agent := NewAgent(client, device, persona.Default, nil, nil, Config{MaxSteps: 5, HistoryLimit: 1})
	outcome, err := agent.Run(context.Background(), "tap the Wi-Fi entry")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Success {
		t.Fatalf("outcome = %+v", outcome)
	}

	requests := client.Requests()
	if len(requests) != 3 {
		t.Fatalf("requests = %d, want 3", len(requests))
	}
	for i, req := range requests {
		if len(req.Messages) == 0 || req.Messages[0].Role != ports.RoleSystem {
			t.Fatalf("request %d does not start with the system prompt", i+1)
		}
		for _, msg := range req.Messages[1:] {
			if msg.Role == ports.RoleSystem {
				t.Errorf("request %d carries a duplicate system message", i+1)
			}
		}
	}
	// The last request is trimmed down to the system prompt, the task
	// framing, two recent messages and the context block.
	if got := len(requests[2].Messages); got != 5 {
		t.Errorf("trimmed request size = %d, want 5", got)
	}
}

func TestAgentHonorsCancellation(t *testing.T) {
	device := newFakeDevice()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := llm.NewScriptedClient("unused")
	agent := NewAgent(client, device, persona.Default, nil, nil, Config{MaxSteps: 3})
	_, err := agent.Run(ctx, "goal")
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestAppStarterContextSkipsUIState(t *testing.T) {
	device := newFakeDevice()
	client := llm.NewScriptedClient(
		"Launching the calculator.\n```\nstart_app(\"com.android.calculator2\")\ncomplete(true, \"launched\")\n```",
	)

	agent := NewAgent(client, device, persona.AppStarterExpert, nil, nil, Config{MaxSteps: 2})
	outcome, err := agent.Run(context.Background(), "open the calculator")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Success {
		t.Fatalf("outcome = %+v", outcome)
	}
	if len(device.started) != 1 || device.started[0] != "com.android.calculator2" {
		t.Errorf("started = %v", device.started)
	}

	// Package context is present, UI tree is not.
	request := client.Requests()[0]
	joined := ""
	for _, msg := range request.Messages {
		joined += msg.Content + "\n"
	}
	if !strings.Contains(joined, "com.android.settings") {
		t.Error("package list should be in the context")
	}
	if strings.Contains(joined, "Current UI elements") {
		t.Error("app starter should not receive the UI tree")
	}
}
