package domain

import (
	"time"

	"droidrun/internal/agent/ports"
)

// Re-export the event listener contract defined at the port layer.
type AgentEvent = ports.AgentEvent
type EventListener = ports.EventListener

// BaseEvent provides the timestamp shared by all events
type BaseEvent struct {
	timestamp time.Time
}

func (e *BaseEvent) Timestamp() time.Time {
	return e.timestamp
}

func newBaseEvent() BaseEvent {
	return BaseEvent{timestamp: time.Now()}
}

// MacroAction marks events that are recorded into the replayable macro.
type MacroAction interface {
	AgentEvent
	MacroAction() string
}

// GoalStartEvent - emitted once when a run begins
type GoalStartEvent struct {
	BaseEvent
	Goal string `json:"goal"`
}

func (e *GoalStartEvent) EventType() string { return "goal_start" }

func NewGoalStartEvent(goal string) *GoalStartEvent {
	return &GoalStartEvent{BaseEvent: newBaseEvent(), Goal: goal}
}

// ScreenshotEvent - a captured screen frame (PNG bytes)
type ScreenshotEvent struct {
	BaseEvent
	Data []byte `json:"-"`
}

func (e *ScreenshotEvent) EventType() string { return "screenshot" }

func NewScreenshotEvent(data []byte) *ScreenshotEvent {
	return &ScreenshotEvent{BaseEvent: newBaseEvent(), Data: data}
}

// UIStateEvent - a captured accessibility tree snapshot
type UIStateEvent struct {
	BaseEvent
	State *ports.DeviceState `json:"state"`
}

func (e *UIStateEvent) EventType() string { return "ui_state" }

func NewUIStateEvent(state *ports.DeviceState) *UIStateEvent {
	return &UIStateEvent{BaseEvent: newBaseEvent(), State: state}
}

// TaskThinkingEvent - the model produced a thought (and possibly code)
type TaskThinkingEvent struct {
	BaseEvent
	Thought string `json:"thought,omitempty"`
	Code    string `json:"code,omitempty"`
}

func (e *TaskThinkingEvent) EventType() string { return "task_thinking" }

func NewTaskThinkingEvent(thought, code string) *TaskThinkingEvent {
	return &TaskThinkingEvent{BaseEvent: newBaseEvent(), Thought: thought, Code: code}
}

// TaskExecutionEvent - an action script is about to run
type TaskExecutionEvent struct {
	BaseEvent
	Code string `json:"code"`
}

func (e *TaskExecutionEvent) EventType() string { return "task_execution" }

func NewTaskExecutionEvent(code string) *TaskExecutionEvent {
	return &TaskExecutionEvent{BaseEvent: newBaseEvent(), Code: code}
}

// TaskExecutionResultEvent - the observation produced by a script run
type TaskExecutionResultEvent struct {
	BaseEvent
	Output string `json:"output"`
}

func (e *TaskExecutionResultEvent) EventType() string { return "task_execution_result" }

func NewTaskExecutionResultEvent(output string) *TaskExecutionResultEvent {
	return &TaskExecutionResultEvent{BaseEvent: newBaseEvent(), Output: output}
}

// TaskEndEvent - a dispatched task finished
type TaskEndEvent struct {
	BaseEvent
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

func (e *TaskEndEvent) EventType() string { return "task_end" }

func NewTaskEndEvent(success bool, reason string) *TaskEndEvent {
	return &TaskEndEvent{BaseEvent: newBaseEvent(), Success: success, Reason: reason}
}

// PlanThinkingEvent - planning model output before tool execution
type PlanThinkingEvent struct {
	BaseEvent
	Thought string `json:"thought,omitempty"`
	Code    string `json:"code,omitempty"`
}

func (e *PlanThinkingEvent) EventType() string { return "plan_thinking" }

func NewPlanThinkingEvent(thought, code string) *PlanThinkingEvent {
	return &PlanThinkingEvent{BaseEvent: newBaseEvent(), Thought: thought, Code: code}
}

// PlanCreatedEvent - the planner replaced the task queue
type PlanCreatedEvent struct {
	BaseEvent
	Tasks []Task `json:"tasks"`
}

func (e *PlanCreatedEvent) EventType() string { return "plan_created" }

func NewPlanCreatedEvent(tasks []Task) *PlanCreatedEvent {
	return &PlanCreatedEvent{BaseEvent: newBaseEvent(), Tasks: tasks}
}

// ReflectionEvent - the critic produced a verdict for a task
type ReflectionEvent struct {
	BaseEvent
	GoalAchieved bool   `json:"goal_achieved"`
	Summary      string `json:"summary,omitempty"`
	Advice       string `json:"advice,omitempty"`
}

func (e *ReflectionEvent) EventType() string { return "reflection" }

func NewReflectionEvent(r Reflection) *ReflectionEvent {
	return &ReflectionEvent{
		BaseEvent:    newBaseEvent(),
		GoalAchieved: r.GoalAchieved(),
		Summary:      r.Summary(),
		Advice:       r.Advice(),
	}
}

// FinalizeEvent - the run reached its terminal state
type FinalizeEvent struct {
	BaseEvent
	Success bool   `json:"success"`
	Reason  string `json:"reason"`
	Output  string `json:"output,omitempty"`
	Steps   int    `json:"steps"`
}

func (e *FinalizeEvent) EventType() string { return "finalize" }

func NewFinalizeEvent(success bool, reason, output string, steps int) *FinalizeEvent {
	return &FinalizeEvent{BaseEvent: newBaseEvent(), Success: success, Reason: reason, Output: output, Steps: steps}
}

// Macro action events. Each corresponds to one successful state-mutating
// device primitive and carries enough detail to replay it.

// TapActionEvent records a tap on an element index
type TapActionEvent struct {
	BaseEvent
	Index   int    `json:"index"`
	Element string `json:"element,omitempty"`
}

func (e *TapActionEvent) EventType() string   { return "tap_action" }
func (e *TapActionEvent) MacroAction() string { return "tap" }

func NewTapActionEvent(index int, element string) *TapActionEvent {
	return &TapActionEvent{BaseEvent: newBaseEvent(), Index: index, Element: element}
}

// SwipeActionEvent records a swipe gesture
type SwipeActionEvent struct {
	BaseEvent
	StartX     int `json:"start_x"`
	StartY     int `json:"start_y"`
	EndX       int `json:"end_x"`
	EndY       int `json:"end_y"`
	DurationMS int `json:"duration_ms"`
}

func (e *SwipeActionEvent) EventType() string   { return "swipe_action" }
func (e *SwipeActionEvent) MacroAction() string { return "swipe" }

func NewSwipeActionEvent(startX, startY, endX, endY, durationMS int) *SwipeActionEvent {
	return &SwipeActionEvent{BaseEvent: newBaseEvent(), StartX: startX, StartY: startY, EndX: endX, EndY: endY, DurationMS: durationMS}
}

// DragActionEvent records a long-press drag gesture
type DragActionEvent struct {
	BaseEvent
	StartX     int `json:"start_x"`
	StartY     int `json:"start_y"`
	EndX       int `json:"end_x"`
	EndY       int `json:"end_y"`
	DurationMS int `json:"duration_ms"`
}

func (e *DragActionEvent) EventType() string   { return "drag_action" }
func (e *DragActionEvent) MacroAction() string { return "drag" }

func NewDragActionEvent(startX, startY, endX, endY, durationMS int) *DragActionEvent {
	return &DragActionEvent{BaseEvent: newBaseEvent(), StartX: startX, StartY: startY, EndX: endX, EndY: endY, DurationMS: durationMS}
}

// InputTextActionEvent records typed text
type InputTextActionEvent struct {
	BaseEvent
	Text string `json:"text"`
}

func (e *InputTextActionEvent) EventType() string   { return "input_text_action" }
func (e *InputTextActionEvent) MacroAction() string { return "input_text" }

func NewInputTextActionEvent(text string) *InputTextActionEvent {
	return &InputTextActionEvent{BaseEvent: newBaseEvent(), Text: text}
}

// KeyPressActionEvent records an Android keycode press
type KeyPressActionEvent struct {
	BaseEvent
	Keycode int `json:"keycode"`
}

func (e *KeyPressActionEvent) EventType() string   { return "key_press_action" }
func (e *KeyPressActionEvent) MacroAction() string { return "key_press" }

func NewKeyPressActionEvent(keycode int) *KeyPressActionEvent {
	return &KeyPressActionEvent{BaseEvent: newBaseEvent(), Keycode: keycode}
}

// StartAppEvent records an app launch
type StartAppEvent struct {
	BaseEvent
	Package  string `json:"package"`
	Activity string `json:"activity,omitempty"`
}

func (e *StartAppEvent) EventType() string   { return "start_app_action" }
func (e *StartAppEvent) MacroAction() string { return "start_app" }

func NewStartAppEvent(pkg, activity string) *StartAppEvent {
	return &StartAppEvent{BaseEvent: newBaseEvent(), Package: pkg, Activity: activity}
}
