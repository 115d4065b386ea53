package device

import (
	"context"
	"fmt"
	"sync"

	"droidrun/internal/agent/ports"
)

// Scripted is an in-memory device double for tests and dry runs. State and
// screenshot are canned; every action is recorded.
type Scripted struct {
	mu         sync.Mutex
	State      *ports.DeviceState
	Screenshot []byte
	Packages   []string

	// Errs maps an action name to an error it should return.
	Errs map[string]error

	calls  []string
	memory []string
}

// NewScripted builds a scripted device with a small default screen.
func NewScripted() *Scripted {
	return &Scripted{
		Screenshot: []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a},
		Packages:   []string{"com.android.settings", "com.example.app"},
		State: &ports.DeviceState{
			UITree: []ports.UINode{
				{Index: 0, ClassName: "android.widget.FrameLayout", Bounds: "0,0,1080,1920", Children: []ports.UINode{
					{Index: 1, ClassName: "android.widget.TextView", Text: "Settings", Bounds: "0,100,1080,200"},
					{Index: 2, ClassName: "android.widget.Button", Text: "OK", Bounds: "400,800,680,900"},
				}},
			},
			PhoneState: ports.PhoneState{CurrentApp: "Home", PackageName: "com.android.launcher"},
		},
	}
}

func (s *Scripted) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

// Calls returns every recorded action in order.
func (s *Scripted) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *Scripted) err(action string) error {
	if s.Errs == nil {
		return nil
	}
	return s.Errs[action]
}

func (s *Scripted) GetState(ctx context.Context) (*ports.DeviceState, error) {
	s.record("get_state")
	if err := s.err("get_state"); err != nil {
		return nil, err
	}
	return s.State, nil
}

func (s *Scripted) TakeScreenshot(ctx context.Context) ([]byte, error) {
	s.record("take_screenshot")
	if err := s.err("take_screenshot"); err != nil {
		return nil, err
	}
	return s.Screenshot, nil
}

func (s *Scripted) TapByIndex(ctx context.Context, index int) (string, error) {
	s.record(fmt.Sprintf("tap_by_index(%d)", index))
	if err := s.err("tap_by_index"); err != nil {
		return "", err
	}
	return fmt.Sprintf("Tapped element %d", index), nil
}

func (s *Scripted) Swipe(ctx context.Context, startX, startY, endX, endY, durationMS int) (string, error) {
	s.record(fmt.Sprintf("swipe(%d,%d,%d,%d,%d)", startX, startY, endX, endY, durationMS))
	if err := s.err("swipe"); err != nil {
		return "", err
	}
	return "Swiped", nil
}

func (s *Scripted) Drag(ctx context.Context, startX, startY, endX, endY, durationMS int) (string, error) {
	s.record(fmt.Sprintf("drag(%d,%d,%d,%d,%d)", startX, startY, endX, endY, durationMS))
	if err := s.err("drag"); err != nil {
		return "", err
	}
	return "Dragged", nil
}

func (s *Scripted) InputText(ctx context.Context, text string) (string, error) {
	s.record(fmt.Sprintf("input_text(%s)", text))
	if err := s.err("input_text"); err != nil {
		return "", err
	}
	return "Text input completed", nil
}

func (s *Scripted) PressKey(ctx context.Context, keycode int) (string, error) {
	s.record(fmt.Sprintf("press_key(%d)", keycode))
	if err := s.err("press_key"); err != nil {
		return "", err
	}
	return fmt.Sprintf("Pressed key %d", keycode), nil
}

func (s *Scripted) Back(ctx context.Context) (string, error) {
	s.record("back")
	if err := s.err("back"); err != nil {
		return "", err
	}
	return "Pressed key BACK", nil
}

func (s *Scripted) StartApp(ctx context.Context, pkg, activity string) (string, error) {
	s.record(fmt.Sprintf("start_app(%s)", pkg))
	if err := s.err("start_app"); err != nil {
		return "", err
	}
	return "App started: " + pkg, nil
}

func (s *Scripted) ListPackages(ctx context.Context, includeSystem bool) ([]string, error) {
	s.record("list_packages")
	if err := s.err("list_packages"); err != nil {
		return nil, err
	}
	return s.Packages, nil
}

func (s *Scripted) Remember(information string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memory = append(s.memory, information)
	return "Remembered: " + information
}

func (s *Scripted) Memory() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.memory))
	copy(out, s.memory)
	return out
}
