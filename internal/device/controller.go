package device

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"droidrun/internal/agent/ports"
	"droidrun/internal/logging"
)

const (
	portalStateURI    = "content://com.droidrun.portal/state"
	portalKeyboardURI = "content://com.droidrun.portal/keyboard/input"
	portalKeyboardIME = "com.droidrun.portal/.DroidrunKeyboardIME"

	packageCacheTTL = 30 * time.Second
)

// Controller drives a real Android device through adb and the companion
// portal app. It implements ports.DeviceController.
type Controller struct {
	adb    *ADB
	logger logging.Logger

	mu       sync.Mutex
	elements []ports.UINode // last fetched tree, consulted by TapByIndex
	memory   []string

	packageCache *expirable.LRU[string, []string]
}

// NewController connects to the device with the given serial. The portal
// keyboard is enabled best-effort; a failure only logs a warning.
func NewController(ctx context.Context, serial string, logger logging.Logger) *Controller {
	c := &Controller{
		adb:          NewADB(serial, logger),
		logger:       logging.OrNop(logger),
		packageCache: expirable.NewLRU[string, []string](2, nil, packageCacheTTL),
	}
	c.setupKeyboard(ctx)
	return c
}

// newControllerForTest wires a controller over a fake runner.
func newControllerForTest(runner Runner) *Controller {
	return &Controller{
		adb:          NewADB("test-serial", nil).WithRunner(runner),
		logger:       logging.Nop(),
		packageCache: expirable.NewLRU[string, []string](2, nil, packageCacheTTL),
	}
}

// setupKeyboard switches the device to the portal IME so unicode text input
// works through the content provider.
func (c *Controller) setupKeyboard(ctx context.Context) {
	if _, err := c.adb.Shell(ctx, "ime", "enable", portalKeyboardIME); err != nil {
		c.logger.Warn("could not enable portal keyboard: %v", err)
		return
	}
	if _, err := c.adb.Shell(ctx, "ime", "set", portalKeyboardIME); err != nil {
		c.logger.Warn("could not activate portal keyboard: %v", err)
	}
}

// GetState queries the portal content provider for the accessibility tree
// and phone state, and refreshes the element cache used by TapByIndex.
func (c *Controller) GetState(ctx context.Context) (*ports.DeviceState, error) {
	out, err := c.adb.Shell(ctx, "content", "query", "--uri", portalStateURI)
	if err != nil {
		return nil, err
	}

	payload, err := parseContentProviderOutput(out)
	if err != nil {
		return nil, err
	}

	var state ports.DeviceState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return nil, fmt.Errorf("parse device state: %w", err)
	}

	c.mu.Lock()
	c.elements = state.UITree
	c.mu.Unlock()
	return &state, nil
}

// parseContentProviderOutput extracts the JSON payload from a
// `content query` row. The portal wraps the state JSON in a "data" field.
func parseContentProviderOutput(out string) (string, error) {
	idx := strings.Index(out, "result=")
	if idx < 0 {
		idx = strings.Index(out, "data=")
		if idx < 0 {
			return "", fmt.Errorf("unexpected content provider output: %q", truncate(out, 200))
		}
	}
	raw := out[strings.Index(out[idx:], "=")+idx+1:]

	var envelope struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal([]byte(raw), &envelope); err == nil && envelope.Data != "" {
		return envelope.Data, nil
	}
	// Some portal builds return the state JSON directly.
	return raw, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// TakeScreenshot captures the screen as PNG bytes via screencap.
func (c *Controller) TakeScreenshot(ctx context.Context) ([]byte, error) {
	data, err := c.adb.ExecOut(ctx, "screencap", "-p")
	if err != nil {
		return nil, err
	}
	if len(data) < 8 {
		return nil, fmt.Errorf("screencap returned %d bytes", len(data))
	}
	return data, nil
}

// TapByIndex taps the center of the cached element with the given index.
func (c *Controller) TapByIndex(ctx context.Context, index int) (string, error) {
	c.mu.Lock()
	elements := c.elements
	c.mu.Unlock()

	if len(elements) == 0 {
		return "", fmt.Errorf("no UI elements cached, get the state first")
	}

	element := findElementByIndex(elements, index)
	if element == nil {
		indices := collectIndices(elements)
		sort.Ints(indices)
		shown := indices
		if len(shown) > 20 {
			shown = shown[:20]
		}
		return "", fmt.Errorf("no element found with index %d, available indices: %v", index, shown)
	}
	if element.Bounds == "" {
		return "", fmt.Errorf("element %d (%q, %s) has no bounds and cannot be tapped", index, element.Text, element.ClassName)
	}

	x, y, err := boundsCenter(element.Bounds)
	if err != nil {
		return "", fmt.Errorf("element %d: %w", index, err)
	}

	if _, err := c.adb.Shell(ctx, "input", "tap", strconv.Itoa(x), strconv.Itoa(y)); err != nil {
		return "", err
	}

	// Give the UI a moment to settle.
	sleepCtx(ctx, 500*time.Millisecond)

	desc := fmt.Sprintf("Tapped element %d", index)
	if element.Text != "" {
		desc += fmt.Sprintf(" (%q)", element.Text)
	}
	return fmt.Sprintf("%s at (%d, %d)", desc, x, y), nil
}

// boundsCenter parses "left,top,right,bottom" into the center point.
func boundsCenter(bounds string) (int, int, error) {
	parts := strings.Split(bounds, ",")
	if len(parts) != 4 {
		return 0, 0, fmt.Errorf("invalid bounds format %q", bounds)
	}
	vals := make([]int, 4)
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return 0, 0, fmt.Errorf("invalid bounds format %q", bounds)
		}
		vals[i] = v
	}
	return (vals[0] + vals[2]) / 2, (vals[1] + vals[3]) / 2, nil
}

func findElementByIndex(nodes []ports.UINode, index int) *ports.UINode {
	for i := range nodes {
		if nodes[i].Index == index {
			return &nodes[i]
		}
		if found := findElementByIndex(nodes[i].Children, index); found != nil {
			return found
		}
	}
	return nil
}

func collectIndices(nodes []ports.UINode) []int {
	var out []int
	for _, node := range nodes {
		out = append(out, node.Index)
		out = append(out, collectIndices(node.Children)...)
	}
	return out
}

// Swipe performs a swipe gesture.
func (c *Controller) Swipe(ctx context.Context, startX, startY, endX, endY, durationMS int) (string, error) {
	if _, err := c.adb.Shell(ctx, "input", "swipe",
		strconv.Itoa(startX), strconv.Itoa(startY), strconv.Itoa(endX), strconv.Itoa(endY),
		strconv.Itoa(durationMS)); err != nil {
		return "", err
	}
	sleepCtx(ctx, time.Duration(durationMS)*time.Millisecond)
	return fmt.Sprintf("Swiped from (%d, %d) to (%d, %d) in %d ms", startX, startY, endX, endY, durationMS), nil
}

// Drag performs a long-press drag gesture.
func (c *Controller) Drag(ctx context.Context, startX, startY, endX, endY, durationMS int) (string, error) {
	if _, err := c.adb.Shell(ctx, "input", "draganddrop",
		strconv.Itoa(startX), strconv.Itoa(startY), strconv.Itoa(endX), strconv.Itoa(endY),
		strconv.Itoa(durationMS)); err != nil {
		return "", err
	}
	sleepCtx(ctx, time.Duration(durationMS)*time.Millisecond)
	return fmt.Sprintf("Dragged from (%d, %d) to (%d, %d) in %d ms", startX, startY, endX, endY, durationMS), nil
}

// InputText types text through the portal keyboard. The text travels
// base64-encoded so unicode and shell metacharacters survive.
func (c *Controller) InputText(ctx context.Context, text string) (string, error) {
	encoded := base64.StdEncoding.EncodeToString([]byte(text))
	if _, err := c.adb.Shell(ctx, "content", "insert",
		"--uri", portalKeyboardURI,
		"--bind", "base64_text:s:"+encoded); err != nil {
		return "", err
	}
	return "Text input completed: " + truncate(text, 50), nil
}

// PressKey sends an Android keycode.
func (c *Controller) PressKey(ctx context.Context, keycode int) (string, error) {
	if _, err := c.adb.Shell(ctx, "input", "keyevent", strconv.Itoa(keycode)); err != nil {
		return "", err
	}
	return fmt.Sprintf("Pressed key %s", keyName(keycode)), nil
}

func keyName(keycode int) string {
	switch keycode {
	case 3:
		return "HOME"
	case 4:
		return "BACK"
	case 66:
		return "ENTER"
	case 67:
		return "DELETE"
	default:
		return strconv.Itoa(keycode)
	}
}

// Back presses the hardware back button.
func (c *Controller) Back(ctx context.Context) (string, error) {
	return c.PressKey(ctx, 4)
}

// StartApp launches a package. When no activity is given, the launcher
// activity is resolved first.
func (c *Controller) StartApp(ctx context.Context, pkg, activity string) (string, error) {
	if activity == "" {
		resolved, err := c.resolveActivity(ctx, pkg)
		if err != nil {
			return "", err
		}
		activity = resolved
	}
	if _, err := c.adb.Shell(ctx, "am", "start", "-n", pkg+"/"+activity); err != nil {
		return "", err
	}
	return fmt.Sprintf("App started: %s with activity %s", pkg, activity), nil
}

func (c *Controller) resolveActivity(ctx context.Context, pkg string) (string, error) {
	out, err := c.adb.Shell(ctx, "cmd", "package", "resolve-activity", "--brief", pkg)
	if err != nil {
		return "", err
	}
	lines := strings.Split(out, "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if idx := strings.Index(last, "/"); idx >= 0 {
		return last[idx+1:], nil
	}
	return "", fmt.Errorf("could not resolve launcher activity for %s", pkg)
}

// ListPackages lists installed package names. Results are cached briefly,
// the list barely changes within one run.
func (c *Controller) ListPackages(ctx context.Context, includeSystem bool) ([]string, error) {
	cacheKey := "user"
	if includeSystem {
		cacheKey = "all"
	}
	if cached, ok := c.packageCache.Get(cacheKey); ok {
		return cached, nil
	}

	args := []string{"pm", "list", "packages"}
	if !includeSystem {
		args = append(args, "-3")
	}
	out, err := c.adb.Shell(ctx, args...)
	if err != nil {
		return nil, err
	}

	var packages []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if name, ok := strings.CutPrefix(line, "package:"); ok {
			packages = append(packages, name)
		}
	}
	sort.Strings(packages)
	c.packageCache.Add(cacheKey, packages)
	return packages, nil
}

// Remember stores a fact for later prompt context.
func (c *Controller) Remember(information string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memory = append(c.memory, information)
	return fmt.Sprintf("Remembered: %s", truncate(information, 100))
}

// Memory returns all remembered facts.
func (c *Controller) Memory() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.memory))
	copy(out, c.memory)
	return out
}

// sleepCtx sleeps unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
