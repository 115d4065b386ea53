package ports

import "context"

// UINode is one element of the accessibility tree. Index is the stable
// handle actions use to address the element.
type UINode struct {
	Index      int      `json:"index"`
	ClassName  string   `json:"className,omitempty"`
	ResourceID string   `json:"resourceId,omitempty"`
	Text       string   `json:"text,omitempty"`
	Bounds     string   `json:"bounds,omitempty"`
	Children   []UINode `json:"children,omitempty"`
}

// PhoneState describes the foreground context of the device.
type PhoneState struct {
	CurrentApp    string `json:"currentApp,omitempty"`
	PackageName   string `json:"packageName,omitempty"`
	KeyboardShown bool   `json:"keyboardShown"`
}

// DeviceState is a point-in-time snapshot of the screen.
type DeviceState struct {
	UITree     []UINode   `json:"a11y_tree"`
	PhoneState PhoneState `json:"phone_state"`
}

// DeviceController abstracts the connected Android device. Action methods
// return a human-readable outcome line that becomes part of the execution
// observation; failures are returned as errors, never panics.
type DeviceController interface {
	// GetState returns the accessibility tree and phone state.
	GetState(ctx context.Context) (*DeviceState, error)

	// TakeScreenshot returns the current screen as PNG bytes.
	TakeScreenshot(ctx context.Context) ([]byte, error)

	// TapByIndex taps the element with the given accessibility index.
	TapByIndex(ctx context.Context, index int) (string, error)

	// Swipe performs a swipe gesture between two points.
	Swipe(ctx context.Context, startX, startY, endX, endY, durationMS int) (string, error)

	// Drag performs a long-press drag between two points.
	Drag(ctx context.Context, startX, startY, endX, endY, durationMS int) (string, error)

	// InputText types text into the focused field.
	InputText(ctx context.Context, text string) (string, error)

	// PressKey sends an Android keycode.
	PressKey(ctx context.Context, keycode int) (string, error)

	// Back presses the hardware back button.
	Back(ctx context.Context) (string, error)

	// StartApp launches a package, optionally a specific activity.
	StartApp(ctx context.Context, pkg, activity string) (string, error)

	// ListPackages returns installed package names.
	ListPackages(ctx context.Context, includeSystem bool) ([]string, error)

	// Remember stores a fact for later prompt context.
	Remember(information string) string

	// Memory returns all remembered facts in insertion order.
	Memory() []string
}
