package agent

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"droidrun/internal/agent/codeact"
	"droidrun/internal/agent/domain"
	"droidrun/internal/agent/persona"
	"droidrun/internal/agent/planner"
	"droidrun/internal/agent/ports"
	"droidrun/internal/agent/reflector"
	"droidrun/internal/logging"
	"droidrun/internal/observability"
	"droidrun/internal/trajectory"
)

// Steps one dispatched task may take when the planner is in the loop. With
// reasoning disabled the whole global budget goes to the single task.
const reasoningTaskSteps = 5

// Config controls one coordinator run.
type Config struct {
	MaxSteps   int // global planner-or-dispatch ceiling
	Reasoning  bool
	Reflection bool
	Vision     bool

	TrajectoryLevel trajectory.Level
	TrajectoryDir   string
}

// RunResult is the structured verdict every run produces.
type RunResult struct {
	Success     bool
	Reason      string
	Output      string
	Steps       int
	TaskHistory []domain.Task
}

// Coordinator sequences planning, task dispatch and reflection for one goal.
type Coordinator struct {
	llm      ports.LLMClient
	device   ports.DeviceController
	registry *persona.Registry
	listener ports.EventListener
	logger   logging.Logger
	config   Config
}

// New builds a coordinator. The listener receives every progress event in
// emission order and may be nil.
func New(llm ports.LLMClient, device ports.DeviceController, registry *persona.Registry, listener ports.EventListener, logger logging.Logger, config Config) *Coordinator {
	if config.MaxSteps <= 0 {
		config.MaxSteps = 15
	}
	if config.TrajectoryLevel == "" {
		config.TrajectoryLevel = trajectory.LevelNone
	}
	if config.TrajectoryDir == "" {
		config.TrajectoryDir = "trajectories"
	}
	if registry == nil {
		registry = persona.NewRegistry()
	}
	return &Coordinator{
		llm:      llm,
		device:   device,
		registry: registry,
		listener: listener,
		logger:   logging.OrNop(logger),
		config:   config,
	}
}

type runState int

const (
	stateStart runState = iota
	stateReasoning
	stateCodeActExecute
	stateCodeActResult
	stateReflect
	stateFinalize
)

// run holds the mutable pieces of one goal execution.
type run struct {
	goal    string
	manager *domain.TaskManager
	traj    *trajectory.RunTrajectory
	emit    func(ports.AgentEvent)
	// planner persists across rounds so earlier plans stay in its window.
	planner *planner.Planner

	steps      int
	current    domain.Task
	outcome    *codeact.Outcome
	reflection *domain.Reflection
	failure    *planner.FailureContext
	// forcePlanning skips the dispatch-next-queued-task shortcut after a
	// failure so the planner sees the failed state.
	forcePlanning bool

	success bool
	reason  string
	output  string
}

// Run drives the goal to a terminal verdict. It always returns a RunResult;
// the error is non-nil only when trajectory persistence failed.
func (c *Coordinator) Run(ctx context.Context, goal string) (*RunResult, error) {
	ctx, span := observability.StartSpan(ctx, "coordinator.run", attribute.String("goal", goal))
	defer span.End()

	traj := trajectory.New(goal, c.config.TrajectoryLevel)
	stream := newEventStream(func(event ports.AgentEvent) {
		traj.Record(event)
		if c.listener != nil {
			c.listener.OnEvent(event)
		}
	})

	r := &run{
		goal:    goal,
		manager: domain.NewTaskManager(),
		traj:    traj,
		emit:    stream.Push,
	}
	r.emit(domain.NewGoalStartEvent(goal))

	c.execute(ctx, r)

	observability.GoalRuns.WithLabelValues(outcomeLabel(r.success)).Inc()
	r.emit(domain.NewFinalizeEvent(r.success, r.reason, r.output, r.steps))
	stream.Close()

	var persistErr error
	if traj.Level() != trajectory.LevelNone {
		if _, err := traj.Persist(c.config.TrajectoryDir, c.logger); err != nil {
			persistErr = fmt.Errorf("persist trajectory: %w", err)
		}
	}

	return &RunResult{
		Success:     r.success,
		Reason:      r.reason,
		Output:      r.output,
		Steps:       r.steps,
		TaskHistory: r.manager.History(),
	}, persistErr
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// execute walks the state machine until Finalize. Panics in any state
// handler become a failed verdict instead of escaping the engine.
func (c *Coordinator) execute(ctx context.Context, r *run) {
	defer func() {
		if p := recover(); p != nil {
			c.logger.Error("run aborted by panic: %v", p)
			r.success = false
			r.reason = fmt.Sprintf("internal error: %v", p)
		}
	}()

	state := stateStart
	for state != stateFinalize {
		if ctx.Err() != nil {
			r.success = false
			r.reason = "cancelled"
			return
		}

		switch state {
		case stateStart:
			state = c.stepStart(r)
		case stateReasoning:
			state = c.stepReasoning(ctx, r)
		case stateCodeActExecute:
			state = c.stepCodeActExecute(ctx, r)
		case stateCodeActResult:
			state = c.stepCodeActResult(r)
		case stateReflect:
			state = c.stepReflect(ctx, r)
		}
	}
}

// stepStart wraps the raw goal as a single task when reasoning is off.
func (c *Coordinator) stepStart(r *run) runState {
	if c.config.Reasoning {
		return stateReasoning
	}
	if err := r.manager.SetTasks([]domain.Task{{Description: r.goal, Role: persona.NameDefault}}); err != nil {
		r.success = false
		r.reason = err.Error()
		return stateFinalize
	}
	return stateCodeActExecute
}

// stepReasoning enforces the global ceiling and decides between dispatching
// queued work and asking the planner for more.
func (c *Coordinator) stepReasoning(ctx context.Context, r *run) runState {
	if r.steps >= c.config.MaxSteps {
		r.success = false
		r.reason = fmt.Sprintf("reached maximum step count of %d", c.config.MaxSteps)
		return stateFinalize
	}
	r.steps++
	observability.PlanningCycles.Inc()

	if r.reflection == nil && !r.forcePlanning && r.manager.HasPending() {
		return stateCodeActExecute
	}

	if r.planner == nil {
		r.planner = planner.New(c.llm, c.device, c.registry, r.manager, r.emit, c.logger, c.config.Vision)
	}
	planCtx, span := observability.StartSpan(ctx, "planner.plan")
	result, err := r.planner.Plan(planCtx, r.goal, r.reflection, r.failure)
	span.End()

	r.reflection = nil
	r.failure = nil
	r.forcePlanning = false

	if err != nil {
		r.success = false
		r.reason = fmt.Sprintf("planning failed: %v", err)
		return stateFinalize
	}
	if result.GoalComplete {
		r.success = true
		r.reason = "goal achieved"
		r.output = result.Message
		return stateFinalize
	}
	if len(result.Tasks) == 0 {
		r.success = false
		r.reason = "planner produced no tasks"
		return stateFinalize
	}
	return stateCodeActExecute
}

// stepCodeActExecute pops the next task and runs it to its own verdict.
func (c *Coordinator) stepCodeActExecute(ctx context.Context, r *run) runState {
	task, ok := r.manager.Next()
	if !ok {
		return stateReasoning
	}
	r.current = task

	p := c.registry.Get(task.Role)
	taskSteps := reasoningTaskSteps
	if !c.config.Reasoning {
		taskSteps = c.config.MaxSteps
	}

	executor := codeact.NewAgent(c.llm, c.device, p, r.emit, c.logger, codeact.Config{
		MaxSteps: taskSteps,
		Vision:   c.config.Vision,
	})

	taskCtx, span := observability.StartSpan(ctx, "codeact.task", attribute.String("persona", p.Name))
	outcome, err := executor.Run(taskCtx, task.Description)
	span.End()

	if err != nil {
		outcome = &codeact.Outcome{Success: false, Reason: err.Error()}
	}
	r.outcome = outcome
	observability.CodeActSteps.Add(float64(outcome.Steps))
	return stateCodeActResult
}

// stepCodeActResult routes the task verdict: terminal without reasoning,
// through the critic when enabled, straight back to planning otherwise.
func (c *Coordinator) stepCodeActResult(r *run) runState {
	if !c.config.Reasoning {
		r.success = r.outcome.Success
		r.reason = r.outcome.Reason
		r.output = r.outcome.Reason
		r.steps = r.outcome.Steps
		c.recordOutcome(r)
		return stateFinalize
	}

	if c.config.Reflection && r.outcome.Success {
		return stateReflect
	}

	c.recordOutcome(r)
	if !r.outcome.Success {
		r.failure = &planner.FailureContext{
			TaskDescription: r.current.Description,
			Reason:          r.outcome.Reason,
		}
		r.forcePlanning = true
	}
	return stateReasoning
}

func (c *Coordinator) recordOutcome(r *run) {
	if r.outcome.Success {
		r.manager.CompleteTask(r.current, r.outcome.Reason)
	} else {
		r.manager.FailTask(r.current, r.outcome.Reason)
	}
}

// stepReflect lets the critic second-guess a task the executor believes it
// finished. App-launch specialist tasks are accepted without a model call.
func (c *Coordinator) stepReflect(ctx context.Context, r *run) runState {
	if r.current.Role == persona.NameAppStarterExpert {
		r.manager.CompleteTask(r.current, r.outcome.Reason)
		return stateReasoning
	}
	if r.outcome.Memory == nil {
		r.manager.CompleteTask(r.current, r.outcome.Reason)
		return stateReasoning
	}

	critic := reflector.New(c.llm, c.registry, c.logger, c.config.Vision)
	reflectCtx, span := observability.StartSpan(ctx, "reflector.reflect")
	reflection, err := critic.Reflect(reflectCtx, r.outcome.Memory, r.current.Description)
	span.End()

	if err != nil {
		c.logger.Warn("reflection failed, treating task as failed: %v", err)
		r.manager.FailTask(r.current, fmt.Sprintf("reflection failed: %v", err))
		r.failure = &planner.FailureContext{
			TaskDescription: r.current.Description,
			Reason:          err.Error(),
		}
		r.forcePlanning = true
		return stateReasoning
	}

	r.emit(domain.NewReflectionEvent(reflection))
	if reflection.GoalAchieved() {
		r.manager.CompleteTask(r.current, reflection.Summary())
		return stateReasoning
	}

	r.manager.FailTask(r.current, reflection.Summary())
	r.reflection = &reflection
	r.failure = &planner.FailureContext{
		TaskDescription: r.current.Description,
		Reason:          reflection.Summary(),
	}
	return stateReasoning
}
