package planner

import (
	"context"
	"fmt"
	"strings"

	"droidrun/internal/agent/codeact"
	"droidrun/internal/agent/domain"
	"droidrun/internal/agent/persona"
	"droidrun/internal/agent/ports"
	"droidrun/internal/logging"
)

// maxAttempts bounds the corrective loop when the model fails to call a
// planning tool.
const maxAttempts = 3

// Result is the outcome of one planning round.
type Result struct {
	Tasks        []domain.Task
	GoalComplete bool
	Message      string
	Thought      string
}

// FailureContext re-frames planning after a failed task.
type FailureContext struct {
	TaskDescription string
	Reason          string
}

// Planner asks the model for the next task batch. Its conversation window
// persists across rounds so earlier plans inform later ones.
type Planner struct {
	llm      ports.LLMClient
	device   ports.DeviceController
	registry *persona.Registry
	manager  *domain.TaskManager
	emit     func(ports.AgentEvent)
	logger   logging.Logger
	vision   bool
	system   ports.Message
	window   *domain.ConversationWindow
}

// New builds a planner bound to the task manager.
func New(llm ports.LLMClient, device ports.DeviceController, registry *persona.Registry, manager *domain.TaskManager, emit func(ports.AgentEvent), logger logging.Logger, vision bool) *Planner {
	if emit == nil {
		emit = func(ports.AgentEvent) {}
	}
	// The system message is held apart from the window so trimming only
	// affects the plan/result exchange history.
	return &Planner{
		llm:      llm,
		device:   device,
		registry: registry,
		manager:  manager,
		emit:     emit,
		logger:   logging.OrNop(logger),
		vision:   vision,
		system:   ports.SystemMessage(strings.ReplaceAll(systemPrompt, "{agents}", registry.Describe())),
		window:   domain.NewConversationWindow(8),
	}
}

// Plan runs one planning round: gather state, ask the model, execute the
// planning tool it calls. A successful round either replaces the task queue
// or declares the goal complete.
func (p *Planner) Plan(ctx context.Context, goal string, reflection *domain.Reflection, failure *FailureContext) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prompt := strings.ReplaceAll(userPromptTemplate, "{goal}", goal)
	if failure != nil {
		prompt = strings.NewReplacer(
			"{task_description}", failure.TaskDescription,
			"{reason}", failure.Reason,
			"{goal}", goal,
		).Replace(taskFailedTemplate)
	}
	p.window.Append(ports.UserMessage(prompt))

	contextText, screenshot := p.gatherContext(ctx, reflection)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		messages := append([]ports.Message{p.system}, p.window.Trimmed()...)
		if contextText != "" || screenshot != nil {
			contextMsg := ports.UserMessage(contextText)
			if screenshot != nil && p.vision {
				contextMsg = ports.UserMessageWithImages(contextText, screenshot)
			}
			messages = append(messages, contextMsg)
		}

		resp, err := p.llm.Complete(ctx, ports.CompletionRequest{Messages: messages})
		if err != nil {
			return nil, fmt.Errorf("planning model call: %w", err)
		}
		p.window.Append(ports.AssistantMessage(resp.Content))

		code, thought := codeact.ExtractCodeAndThought(resp.Content)
		p.emit(domain.NewPlanThinkingEvent(thought, code))

		if code == "" {
			p.logger.Warn("planner produced no tool call, re-prompting (attempt %d/%d)", attempt, maxAttempts)
			p.window.Append(ports.UserMessage(correctiveInstruction))
			continue
		}

		result, output := p.executePlanningTools(ctx, code)
		if result != nil {
			result.Thought = thought
			return result, nil
		}

		p.logger.Warn("planning tools produced no plan: %s", output)
		p.window.Append(ports.UserMessage(fmt.Sprintf("Execution Result:\n```\n%s\n```\n%s", output, correctiveInstruction)))
	}

	return nil, fmt.Errorf("planner did not produce a plan after %d attempts", maxAttempts)
}

// executePlanningTools interprets the planning script. The returned Result is
// nil when neither tool produced an effect.
func (p *Planner) executePlanningTools(ctx context.Context, code string) (*Result, string) {
	var result *Result

	capabilities := codeact.NewCapabilitySet(
		codeact.Capability{
			Name:        "set_tasks",
			Description: `set_tasks([{"task": ..., "agent": ...}]): replace the task queue with 1-5 assignments.`,
			Invoke: func(ctx context.Context, args codeact.Args) (string, error) {
				tasks, err := p.parseTaskAssignments(args)
				if err != nil {
					return "", err
				}
				if err := p.manager.SetTasks(tasks); err != nil {
					return "", err
				}
				result = &Result{Tasks: tasks}
				p.emit(domain.NewPlanCreatedEvent(tasks))
				return fmt.Sprintf("Task queue replaced with %d task(s).", len(tasks)), nil
			},
		},
		codeact.Capability{
			Name:        "complete_goal",
			Description: `complete_goal(message): declare the overall goal achieved.`,
			Invoke: func(ctx context.Context, args codeact.Args) (string, error) {
				message, err := args.StringOr(0, "message", "")
				if err != nil {
					return "", err
				}
				p.manager.CompleteGoal(message)
				result = &Result{GoalComplete: true, Message: message}
				return "Goal marked as complete.", nil
			},
		},
	)

	interpreter := codeact.NewInterpreter(capabilities, p.logger)
	output, _ := interpreter.Run(ctx, code)
	return result, output
}

// parseTaskAssignments validates the set_tasks argument: a list of 1-5
// {"task", "agent"} maps. Unknown agents fall back to the Default persona.
func (p *Planner) parseTaskAssignments(args codeact.Args) ([]domain.Task, error) {
	if len(args.Positional) != 1 {
		return nil, fmt.Errorf("set_tasks takes exactly one list argument")
	}
	list, ok := args.Positional[0].([]any)
	if !ok {
		return nil, fmt.Errorf("set_tasks argument must be a list of task assignments")
	}
	if len(list) == 0 || len(list) > 5 {
		return nil, fmt.Errorf("set_tasks requires between 1 and 5 tasks, got %d", len(list))
	}

	tasks := make([]domain.Task, 0, len(list))
	for i, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("assignment %d must be a map with task and agent keys", i+1)
		}
		description, _ := entry["task"].(string)
		if description == "" {
			return nil, fmt.Errorf("assignment %d has no task description", i+1)
		}
		role, _ := entry["agent"].(string)
		if role == "" || !p.registry.Has(role) {
			if role != "" {
				p.logger.Warn("unknown agent %q, using %s", role, persona.NameDefault)
			}
			role = persona.NameDefault
		}
		tasks = append(tasks, domain.Task{Description: description, Role: role})
	}
	return tasks, nil
}

// gatherContext assembles the planning context block: task history, device
// state, remembered facts and any pending reflection advice.
func (p *Planner) gatherContext(ctx context.Context, reflection *domain.Reflection) (string, []byte) {
	blocks := []string{"Task history:\n" + p.manager.HistoryBlock()}

	var screenshot []byte
	if data, err := p.device.TakeScreenshot(ctx); err != nil {
		p.logger.Warn("planner screenshot failed: %v", err)
	} else {
		screenshot = data
		p.emit(domain.NewScreenshotEvent(data))
	}

	if state, err := p.device.GetState(ctx); err != nil {
		p.logger.Warn("planner could not retrieve device state: %v", err)
	} else {
		p.emit(domain.NewUIStateEvent(state))
		blocks = append(blocks,
			"Current UI elements:\n"+codeact.FormatUITree(state.UITree),
			codeact.FormatPhoneState(state.PhoneState))
	}

	if facts := p.device.Memory(); len(facts) > 0 {
		blocks = append(blocks, codeact.FormatMemory(facts))
	}

	if reflection != nil && !reflection.GoalAchieved() {
		blocks = append(blocks, fmt.Sprintf("Reflection on the previous task:\nSummary: %s\nAdvice: %s",
			reflection.Summary(), reflection.Advice()))
	}

	return strings.Join(blocks, "\n\n"), screenshot
}
