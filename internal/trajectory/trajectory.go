package trajectory

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"droidrun/internal/agent/domain"
	"droidrun/internal/agent/ports"
)

// Level selects how much of a run is captured.
type Level string

const (
	// LevelNone records nothing.
	LevelNone Level = "none"
	// LevelStep records progress events, screenshots and UI states.
	LevelStep Level = "step"
	// LevelAction additionally records the replayable macro.
	LevelAction Level = "action"
)

// ParseLevel validates a capture-level string.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelNone, LevelStep, LevelAction:
		return Level(s), nil
	}
	return "", fmt.Errorf("invalid trajectory level %q (expected none, step or action)", s)
}

// RunTrajectory accumulates everything observed during one goal run. It is
// fed from the single event-consumer goroutine but guarded anyway so late
// events after finalize cannot race persistence.
type RunTrajectory struct {
	mu sync.Mutex

	level     Level
	goal      string
	startedAt time.Time

	events      []json.RawMessage
	screenshots [][]byte
	uiStates    []*ports.DeviceState
	macros      []macroEntry
}

type macroEntry struct {
	Action      string         `json:"action"`
	Timestamp   time.Time      `json:"timestamp"`
	Description string         `json:"description"`
	Fields      map[string]any `json:"fields,omitempty"`
}

// New creates a trajectory for one run.
func New(goal string, level Level) *RunTrajectory {
	return &RunTrajectory{
		level:     level,
		goal:      goal,
		startedAt: time.Now(),
	}
}

// Level returns the configured capture level.
func (t *RunTrajectory) Level() Level { return t.level }

// Record routes one event into the trajectory. Screenshots and UI states are
// kept out of the event log and stored in their own artifact streams.
func (t *RunTrajectory) Record(event ports.AgentEvent) {
	if t.level == LevelNone {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch e := event.(type) {
	case *domain.ScreenshotEvent:
		if len(e.Data) > 0 {
			t.screenshots = append(t.screenshots, e.Data)
		}
		return
	case *domain.UIStateEvent:
		if e.State != nil {
			t.uiStates = append(t.uiStates, e.State)
		}
		return
	}

	if macro, ok := event.(domain.MacroAction); ok {
		if t.level == LevelAction {
			t.macros = append(t.macros, newMacroEntry(macro))
		}
	}

	raw, err := encodeEvent(event)
	if err != nil {
		return
	}
	t.events = append(t.events, raw)
}

// encodeEvent wraps the event fields with its type tag and timestamp.
func encodeEvent(event ports.AgentEvent) (json.RawMessage, error) {
	fields, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := json.Unmarshal(fields, &payload); err != nil {
		return nil, err
	}
	if payload == nil {
		payload = map[string]any{}
	}
	payload["type"] = event.EventType()
	payload["timestamp"] = event.Timestamp().Format(time.RFC3339Nano)
	return json.Marshal(payload)
}

func newMacroEntry(macro domain.MacroAction) macroEntry {
	entry := macroEntry{
		Action:    macro.MacroAction(),
		Timestamp: macro.Timestamp(),
	}
	switch e := macro.(type) {
	case *domain.TapActionEvent:
		entry.Description = fmt.Sprintf("Tap element %d", e.Index)
		if e.Element != "" {
			entry.Description = fmt.Sprintf("Tap element %d (%s)", e.Index, e.Element)
		}
		entry.Fields = map[string]any{"index": e.Index, "element": e.Element}
	case *domain.SwipeActionEvent:
		entry.Description = fmt.Sprintf("Swipe from (%d, %d) to (%d, %d)", e.StartX, e.StartY, e.EndX, e.EndY)
		entry.Fields = gestureFields(e.StartX, e.StartY, e.EndX, e.EndY, e.DurationMS)
	case *domain.DragActionEvent:
		entry.Description = fmt.Sprintf("Drag from (%d, %d) to (%d, %d)", e.StartX, e.StartY, e.EndX, e.EndY)
		entry.Fields = gestureFields(e.StartX, e.StartY, e.EndX, e.EndY, e.DurationMS)
	case *domain.InputTextActionEvent:
		entry.Description = fmt.Sprintf("Type %q", e.Text)
		entry.Fields = map[string]any{"text": e.Text}
	case *domain.KeyPressActionEvent:
		entry.Description = fmt.Sprintf("Press key %d", e.Keycode)
		entry.Fields = map[string]any{"keycode": e.Keycode}
	case *domain.StartAppEvent:
		entry.Description = fmt.Sprintf("Start app %s", e.Package)
		entry.Fields = map[string]any{"package": e.Package, "activity": e.Activity}
	default:
		entry.Description = macro.MacroAction()
	}
	return entry
}

func gestureFields(startX, startY, endX, endY, durationMS int) map[string]any {
	return map[string]any{
		"start_x":     startX,
		"start_y":     startY,
		"end_x":       endX,
		"end_y":       endY,
		"duration_ms": durationMS,
	}
}

// EventCount returns the number of recorded progress events.
func (t *RunTrajectory) EventCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.events)
}

// ScreenshotCount returns the number of captured frames.
func (t *RunTrajectory) ScreenshotCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.screenshots)
}

// MacroCount returns the number of recorded macro actions.
func (t *RunTrajectory) MacroCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.macros)
}
