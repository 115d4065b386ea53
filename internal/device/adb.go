package device

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"droidrun/internal/logging"
)

// Runner executes one adb invocation and returns its combined output.
// Injectable for tests.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func defaultRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// ADB is a thin wrapper over the adb binary, scoped to one device serial.
type ADB struct {
	path   string
	serial string
	runner Runner
	logger logging.Logger
}

// NewADB creates a wrapper for the given serial. An empty serial targets the
// only connected device.
func NewADB(serial string, logger logging.Logger) *ADB {
	return &ADB{
		path:   "adb",
		serial: serial,
		runner: defaultRunner,
		logger: logging.OrNop(logger),
	}
}

// WithRunner replaces the command runner. Used by tests.
func (a *ADB) WithRunner(runner Runner) *ADB {
	a.runner = runner
	return a
}

func (a *ADB) baseArgs() []string {
	if a.serial == "" {
		return nil
	}
	return []string{"-s", a.serial}
}

// Shell runs `adb shell <args...>` and returns trimmed output.
func (a *ADB) Shell(ctx context.Context, args ...string) (string, error) {
	full := append(a.baseArgs(), "shell")
	full = append(full, args...)
	out, err := a.runner(ctx, a.path, full...)
	if err != nil {
		return "", fmt.Errorf("adb shell %s: %w (%s)", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return strings.TrimRight(string(out), "\r\n"), nil
}

// ExecOut runs `adb exec-out <args...>` and returns the raw bytes. Used for
// binary output such as screencap.
func (a *ADB) ExecOut(ctx context.Context, args ...string) ([]byte, error) {
	full := append(a.baseArgs(), "exec-out")
	full = append(full, args...)
	out, err := a.runner(ctx, a.path, full...)
	if err != nil {
		return nil, fmt.Errorf("adb exec-out %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

// DeviceInfo describes one entry of `adb devices`.
type DeviceInfo struct {
	Serial string
	State  string
}

// ListDevices returns the connected devices as reported by `adb devices`.
func ListDevices(ctx context.Context, runner Runner) ([]DeviceInfo, error) {
	if runner == nil {
		runner = defaultRunner
	}
	out, err := runner(ctx, "adb", "devices")
	if err != nil {
		return nil, fmt.Errorf("adb devices: %w", err)
	}

	var devices []DeviceInfo
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		devices = append(devices, DeviceInfo{Serial: fields[0], State: fields[1]})
	}
	return devices, nil
}
