package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"droidrun/internal/agent/domain"
	"droidrun/internal/agent/persona"
	"droidrun/internal/agent/ports"
	"droidrun/internal/device"
	"droidrun/internal/llm"
	"droidrun/internal/trajectory"
)

// eventRecorder collects every event routed through the stream consumer.
type eventRecorder struct {
	mu     sync.Mutex
	events []ports.AgentEvent
}

func (r *eventRecorder) OnEvent(event ports.AgentEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType()
	}
	return out
}

func completeScript(success bool, reason string) string {
	flag := "False"
	if success {
		flag = "True"
	}
	return "Finishing up.\n```\ncomplete(" + flag + ", \"" + reason + "\")\n```"
}

func TestRunWithoutReasoningDispatchesGoalDirectly(t *testing.T) {
	client := llm.NewScriptedClient(completeScript(true, "airplane mode enabled"))
	recorder := &eventRecorder{}
	c := New(client, device.NewScripted(), nil, recorder, nil, Config{
		MaxSteps:  15,
		Reasoning: false,
	})

	result, err := c.Run(context.Background(), "turn on airplane mode")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("run failed: %s", result.Reason)
	}
	if len(result.TaskHistory) != 1 {
		t.Fatalf("history = %d entries, want 1", len(result.TaskHistory))
	}
	task := result.TaskHistory[0]
	if task.Description != "turn on airplane mode" {
		t.Errorf("task description = %q, want the raw goal", task.Description)
	}
	if task.Role != persona.NameDefault {
		t.Errorf("role = %q, want Default", task.Role)
	}

	// Exactly one model call: the planner never ran.
	if client.CallCount() != 1 {
		t.Errorf("llm calls = %d, want 1", client.CallCount())
	}
	if result.Steps != 1 {
		t.Errorf("steps = %d, want the executor's step count", result.Steps)
	}

	types := recorder.types()
	if types[0] != "goal_start" {
		t.Errorf("first event = %q", types[0])
	}
	if types[len(types)-1] != "finalize" {
		t.Errorf("last event = %q", types[len(types)-1])
	}
}

func TestRunWithPlannerCompletesGoal(t *testing.T) {
	client := llm.NewScriptedClient(
		// Planner round one: a single app-launch task.
		"Settings must be open first.\n```\nset_tasks([{\"task\": \"Open the Settings app\", \"agent\": \"AppStarterExpert\"}])\n```",
		// AppStarterExpert executes it.
		completeScript(true, "settings opened"),
		// Planner round two: done. The AppStarterExpert task was accepted
		// without a reflection call.
		"```\ncomplete_goal(\"settings are open\")\n```",
	)
	c := New(client, device.NewScripted(), nil, nil, nil, Config{
		MaxSteps:   15,
		Reasoning:  true,
		Reflection: true,
	})

	result, err := c.Run(context.Background(), "open settings")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("run failed: %s", result.Reason)
	}
	if result.Output != "settings are open" {
		t.Errorf("output = %q", result.Output)
	}
	if len(result.TaskHistory) != 1 {
		t.Fatalf("history = %d entries, want 1", len(result.TaskHistory))
	}
	if result.TaskHistory[0].Status != domain.TaskStatusCompleted {
		t.Errorf("status = %q", result.TaskHistory[0].Status)
	}
	if client.CallCount() != 3 {
		t.Errorf("llm calls = %d, want 3", client.CallCount())
	}
}

func TestRunStopsAtGlobalStepCeiling(t *testing.T) {
	plan := "```\nset_tasks([{\"task\": \"poke around\", \"agent\": \"Default\"}])\n```"
	exec := completeScript(true, "poked")
	client := llm.NewScriptedClient(plan, exec, plan, exec, plan, exec, plan, exec)
	c := New(client, device.NewScripted(), nil, nil, nil, Config{
		MaxSteps:   3,
		Reasoning:  true,
		Reflection: false,
	})

	result, err := c.Run(context.Background(), "never finishes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("run should fail at the ceiling")
	}
	if !strings.Contains(result.Reason, "maximum step count") {
		t.Errorf("reason = %q", result.Reason)
	}
	if result.Steps != 3 {
		t.Errorf("steps = %d, want 3", result.Steps)
	}
	// Three planning cycles, each followed by one execution step.
	if client.CallCount() != 6 {
		t.Errorf("llm calls = %d, want 6", client.CallCount())
	}
}

func TestRunFeedsReflectionBackIntoPlanning(t *testing.T) {
	client := llm.NewScriptedClient(
		"```\nset_tasks([{\"task\": \"enable wifi\", \"agent\": \"Default\"}])\n```",
		completeScript(true, "toggled something"),
		// The critic disagrees with the executor.
		`{"goal_achieved": false, "advice": "You toggled bluetooth, open the Wi-Fi page instead.", "summary": "wrong toggle"}`,
		// Planner retries with the advice in context, then gives up cleanly.
		"```\ncomplete_goal(\"gave up\")\n```",
	)
	c := New(client, device.NewScripted(), nil, nil, nil, Config{
		MaxSteps:   15,
		Reasoning:  true,
		Reflection: true,
	})

	result, err := c.Run(context.Background(), "enable wifi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("run failed: %s", result.Reason)
	}
	if len(result.TaskHistory) != 1 {
		t.Fatalf("history = %d entries", len(result.TaskHistory))
	}
	if result.TaskHistory[0].Status != domain.TaskStatusFailed {
		t.Errorf("rejected task should be failed, got %q", result.TaskHistory[0].Status)
	}

	// The second planner request carries the critic's advice.
	requests := client.Requests()
	joined := ""
	for _, msg := range requests[3].Messages {
		joined += msg.Content + "\n"
	}
	if !strings.Contains(joined, "open the Wi-Fi page instead") {
		t.Error("reflection advice should reach the retry planning prompt")
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := llm.NewScriptedClient()
	c := New(client, device.NewScripted(), nil, nil, nil, Config{Reasoning: true})

	result, err := c.Run(ctx, "goal")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("cancelled run must not succeed")
	}
	if result.Reason != "cancelled" {
		t.Errorf("reason = %q, want cancelled", result.Reason)
	}
	if client.CallCount() != 0 {
		t.Errorf("llm calls = %d, want 0", client.CallCount())
	}
}

func TestRunRecoversFromPanic(t *testing.T) {
	client := &llm.ScriptedClient{
		CompleteFunc: func(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
			panic("model client exploded")
		},
	}
	c := New(client, device.NewScripted(), nil, nil, nil, Config{Reasoning: false})

	result, err := c.Run(context.Background(), "goal")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("panicked run must not succeed")
	}
	if !strings.Contains(result.Reason, "model client exploded") {
		t.Errorf("reason = %q", result.Reason)
	}
}

func TestRunFatalLLMErrorFinalizesWithVerdict(t *testing.T) {
	client := &llm.ScriptedClient{
		CompleteFunc: func(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
			return nil, errors.New("invalid api key")
		},
	}
	c := New(client, device.NewScripted(), nil, nil, nil, Config{Reasoning: false})

	result, err := c.Run(context.Background(), "goal")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("run must fail")
	}
	if !strings.Contains(result.Reason, "invalid api key") {
		t.Errorf("reason = %q", result.Reason)
	}
}

func TestRunPersistsTrajectoryOnCompletion(t *testing.T) {
	client := llm.NewScriptedClient(completeScript(true, "done"))
	dir := t.TempDir()
	c := New(client, device.NewScripted(), nil, nil, nil, Config{
		Reasoning:       false,
		TrajectoryLevel: trajectory.LevelStep,
		TrajectoryDir:   dir,
	})

	result, err := c.Run(context.Background(), "goal")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("run failed: %s", result.Reason)
	}
}

func TestRunDispatchesQueuedTasksWithoutReplanning(t *testing.T) {
	client := llm.NewScriptedClient(
		"```\nset_tasks([{\"task\": \"step one\", \"agent\": \"Default\"}, {\"task\": \"step two\", \"agent\": \"Default\"}])\n```",
		completeScript(true, "one done"),
		completeScript(true, "two done"),
		"```\ncomplete_goal(\"both steps done\")\n```",
	)
	c := New(client, device.NewScripted(), nil, nil, nil, Config{
		MaxSteps:   15,
		Reasoning:  true,
		Reflection: false,
	})

	result, err := c.Run(context.Background(), "two step goal")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("run failed: %s", result.Reason)
	}
	if len(result.TaskHistory) != 2 {
		t.Fatalf("history = %d entries, want 2", len(result.TaskHistory))
	}
	// Four model calls: one plan, two executions, one final plan. The second
	// task was dispatched straight from the queue.
	if client.CallCount() != 4 {
		t.Errorf("llm calls = %d, want 4", client.CallCount())
	}
}

func TestEventStreamPreservesOrderAndDrainsOnClose(t *testing.T) {
	recorder := &eventRecorder{}
	stream := newEventStream(recorder.OnEvent)

	for i := 0; i < 100; i++ {
		stream.Push(domain.NewTaskExecutionResultEvent("output"))
	}
	stream.Close()

	if got := len(recorder.types()); got != 100 {
		t.Errorf("consumed %d events, want 100", got)
	}

	// Pushes after close are dropped, not deadlocked.
	stream.Push(domain.NewTaskExecutionResultEvent("late"))
	if got := len(recorder.types()); got != 100 {
		t.Errorf("late push should be dropped, got %d", got)
	}
}
