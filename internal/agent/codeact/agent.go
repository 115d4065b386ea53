package codeact

import (
	"context"
	"fmt"
	"time"

	"droidrun/internal/agent/domain"
	"droidrun/internal/agent/persona"
	"droidrun/internal/agent/ports"
	"droidrun/internal/logging"
)

const noCodeReminder = "No code was provided. If you want to mark the task as complete (whether it failed or succeeded), use complete(success, reason) within a ``` code block."

const noThoughtReminder = "You provided code without explaining your reasoning first. Describe what you see and your plan before the code block in your next step."

// Config tunes one task dispatch. HistoryLimit bounds the conversation view
// sent to the model, independently of the step budget.
type Config struct {
	MaxSteps     int
	HistoryLimit int
	Vision       bool
}

// Outcome is the terminal result of one task dispatch.
type Outcome struct {
	Success bool
	Reason  string
	Steps   int
	Memory  *domain.EpisodicMemory
}

// Agent runs the think/act/observe loop for a single task against the
// device, using the persona's prompt and action subset.
type Agent struct {
	llm     ports.LLMClient
	device  ports.DeviceController
	persona persona.Persona
	emit    func(ports.AgentEvent)
	logger  logging.Logger
	config  Config
}

// NewAgent builds an executor for one task dispatch.
func NewAgent(llm ports.LLMClient, device ports.DeviceController, p persona.Persona, emit func(ports.AgentEvent), logger logging.Logger, config Config) *Agent {
	if config.MaxSteps <= 0 {
		config.MaxSteps = 5
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = 20
	}
	if emit == nil {
		emit = func(ports.AgentEvent) {}
	}
	return &Agent{
		llm:     llm,
		device:  device,
		persona: p,
		emit:    emit,
		logger:  logging.OrNop(logger),
		config:  config,
	}
}

// Run executes the loop until complete(...) is called or the step budget is
// exhausted. Cancellation surfaces as ctx.Err().
func (a *Agent) Run(ctx context.Context, goal string) (*Outcome, error) {
	capabilities := DeviceCapabilities(a.device, a.emit).Filter(a.persona.AllowedActions)
	interpreter := NewInterpreter(capabilities, a.logger)
	interpreter.SetAfterMutation(a.captureSnapshot)

	// The system message lives outside the window so trimming can never
	// drop it from a request.
	system := ports.SystemMessage(a.persona.RenderSystemPrompt(capabilities.Describe()))
	window := domain.NewConversationWindow(a.config.HistoryLimit)
	window.Append(ports.UserMessage(a.persona.RenderUserPrompt(goal)))

	memory := domain.NewEpisodicMemory(a.persona.Name)
	consecutiveNoCode := 0

	for step := 1; step <= a.config.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a.logger.Info("Step %d/%d: thinking...", step, a.config.MaxSteps)

		contextText, screenshot := a.gatherContext(ctx)

		messages := append([]ports.Message{system}, window.Trimmed()...)
		if contextText != "" || screenshot != nil {
			contextMsg := ports.UserMessage(contextText)
			if screenshot != nil && a.config.Vision {
				contextMsg = ports.UserMessageWithImages(contextText, screenshot)
			}
			// Context blocks are transient: they reflect the current screen
			// and are not stored in the conversation history.
			messages = append(messages, contextMsg)
		}

		resp, err := a.llm.Complete(ctx, ports.CompletionRequest{Messages: messages})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return a.finish(false, fmt.Sprintf("model call failed: %v", err), step, memory), nil
		}

		window.Append(ports.AssistantMessage(resp.Content))
		memory.AddStep(contextText, resp.Content, screenshot, time.Now())

		code, thought := ExtractCodeAndThought(resp.Content)
		a.emit(domain.NewTaskThinkingEvent(thought, code))

		if thought == "" && code != "" {
			a.logger.Warn("model provided code without reasoning, adding reminder")
			window.Append(ports.UserMessage(noThoughtReminder))
		}

		if code == "" {
			consecutiveNoCode++
			if consecutiveNoCode >= 2 {
				return a.finish(false, "model repeatedly produced no actions", step, memory), nil
			}
			a.logger.Warn("no code in response, re-prompting")
			window.Append(ports.UserMessage(noCodeReminder))
			continue
		}
		consecutiveNoCode = 0

		a.emit(domain.NewTaskExecutionEvent(code))
		output, completion := interpreter.Run(ctx, code)
		a.emit(domain.NewTaskExecutionResultEvent(output))
		window.Append(ports.UserMessage(fmt.Sprintf("Execution Result:\n```\n%s\n```", output)))

		if completion != nil {
			a.recordFinalObservation(ctx, memory)
			return a.finish(completion.Success, completion.Reason, step, memory), nil
		}
	}

	return a.finish(false, fmt.Sprintf("Reached max step count of %d steps", a.config.MaxSteps), a.config.MaxSteps, memory), nil
}

func (a *Agent) finish(success bool, reason string, steps int, memory *domain.EpisodicMemory) *Outcome {
	a.emit(domain.NewTaskEndEvent(success, reason))
	return &Outcome{Success: success, Reason: reason, Steps: steps, Memory: memory}
}

// gatherContext collects the persona's required context items. The screenshot
// is always recorded into the event stream when required; it is only attached
// to the request when vision is enabled. Fetch failures log warnings and the
// loop continues with what it has.
func (a *Agent) gatherContext(ctx context.Context) (string, []byte) {
	var blocks []string
	var screenshot []byte

	if a.persona.Requires(persona.ContextScreenshot) {
		data, err := a.device.TakeScreenshot(ctx)
		if err != nil {
			a.logger.Warn("screenshot failed: %v", err)
		} else {
			screenshot = data
			a.emit(domain.NewScreenshotEvent(data))
		}
	}

	if a.persona.Requires(persona.ContextUIState) || a.persona.Requires(persona.ContextPhoneState) {
		state, err := a.device.GetState(ctx)
		if err != nil {
			a.logger.Warn("could not retrieve device state, is the accessibility service enabled? %v", err)
		} else {
			a.emit(domain.NewUIStateEvent(state))
			if a.persona.Requires(persona.ContextUIState) {
				blocks = append(blocks, "Current UI elements:\n"+FormatUITree(state.UITree))
			}
			blocks = append(blocks, FormatPhoneState(state.PhoneState))
		}
	}

	if a.persona.Requires(persona.ContextPackages) {
		packages, err := a.device.ListPackages(ctx, true)
		if err != nil {
			a.logger.Warn("package listing failed: %v", err)
		} else {
			blocks = append(blocks, FormatPackages(packages))
		}
	}

	if a.persona.Allows("remember") {
		if block := FormatMemory(a.device.Memory()); block != "" {
			blocks = append(blocks, block)
		}
	}

	text := ""
	for i, block := range blocks {
		if i > 0 {
			text += "\n\n"
		}
		text += block
	}
	return text, screenshot
}

// captureSnapshot records the screen after a mutating action so action-level
// trajectories show intermediate states.
func (a *Agent) captureSnapshot(ctx context.Context) {
	if data, err := a.device.TakeScreenshot(ctx); err == nil {
		a.emit(domain.NewScreenshotEvent(data))
	} else {
		a.logger.Warn("post-action screenshot failed: %v", err)
	}
	if state, err := a.device.GetState(ctx); err == nil {
		a.emit(domain.NewUIStateEvent(state))
	} else {
		a.logger.Warn("post-action state fetch failed: %v", err)
	}
}

// recordFinalObservation appends the closing screen state to the episodic
// memory so the critic sees the result of the last action.
func (a *Agent) recordFinalObservation(ctx context.Context, memory *domain.EpisodicMemory) {
	if !a.persona.Requires(persona.ContextScreenshot) {
		return
	}
	screenshot, err := a.device.TakeScreenshot(ctx)
	if err != nil {
		a.logger.Warn("final screenshot failed: %v", err)
		return
	}
	summary := "Final state observation after task completion"
	if state, stateErr := a.device.GetState(ctx); stateErr == nil {
		summary += "\n" + FormatUITree(state.UITree)
	}
	memory.AddStep(summary, "", screenshot, time.Now())
}
