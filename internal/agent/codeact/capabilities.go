package codeact

import (
	"context"
	"fmt"
	"strings"

	"droidrun/internal/agent/domain"
	"droidrun/internal/agent/ports"
)

// DeviceCapabilities binds the device controller to the interpreter and
// emits one macro action event per successful mutating call.
func DeviceCapabilities(device ports.DeviceController, emit func(ports.AgentEvent)) *CapabilitySet {
	if emit == nil {
		emit = func(ports.AgentEvent) {}
	}

	return NewCapabilitySet(
		Capability{
			Name:        "tap_by_index",
			Description: "tap_by_index(index): tap the UI element with the given index.",
			Mutating:    true,
			Invoke: func(ctx context.Context, args Args) (string, error) {
				index, err := args.Int(0)
				if err != nil {
					return "", err
				}
				result, err := device.TapByIndex(ctx, index)
				if err != nil {
					return "", err
				}
				emit(domain.NewTapActionEvent(index, result))
				return result, nil
			},
		},
		Capability{
			Name:        "swipe",
			Description: "swipe(start_x, start_y, end_x, end_y, duration_ms): swipe between two points. duration_ms is optional (default 300).",
			Mutating:    true,
			Invoke: func(ctx context.Context, args Args) (string, error) {
				coords, durationMS, err := gestureArgs(args, 300)
				if err != nil {
					return "", err
				}
				result, err := device.Swipe(ctx, coords[0], coords[1], coords[2], coords[3], durationMS)
				if err != nil {
					return "", err
				}
				emit(domain.NewSwipeActionEvent(coords[0], coords[1], coords[2], coords[3], durationMS))
				return result, nil
			},
		},
		Capability{
			Name:        "drag",
			Description: "drag(start_x, start_y, end_x, end_y, duration_ms): long-press drag between two points. duration_ms is optional (default 1000).",
			Mutating:    true,
			Invoke: func(ctx context.Context, args Args) (string, error) {
				coords, durationMS, err := gestureArgs(args, 1000)
				if err != nil {
					return "", err
				}
				result, err := device.Drag(ctx, coords[0], coords[1], coords[2], coords[3], durationMS)
				if err != nil {
					return "", err
				}
				emit(domain.NewDragActionEvent(coords[0], coords[1], coords[2], coords[3], durationMS))
				return result, nil
			},
		},
		Capability{
			Name:        "input_text",
			Description: "input_text(text): type text into the focused input field.",
			Mutating:    true,
			Invoke: func(ctx context.Context, args Args) (string, error) {
				text, err := args.String(0)
				if err != nil {
					return "", err
				}
				result, err := device.InputText(ctx, text)
				if err != nil {
					return "", err
				}
				emit(domain.NewInputTextActionEvent(text))
				return result, nil
			},
		},
		Capability{
			Name:        "press_key",
			Description: "press_key(keycode): press an Android key by keycode (e.g. 3 for HOME, 4 for BACK, 66 for ENTER).",
			Mutating:    true,
			Invoke: func(ctx context.Context, args Args) (string, error) {
				keycode, err := args.Int(0)
				if err != nil {
					return "", err
				}
				result, err := device.PressKey(ctx, keycode)
				if err != nil {
					return "", err
				}
				emit(domain.NewKeyPressActionEvent(keycode))
				return result, nil
			},
		},
		Capability{
			Name:        "back",
			Description: "back(): press the hardware back button.",
			Mutating:    true,
			Invoke: func(ctx context.Context, args Args) (string, error) {
				result, err := device.Back(ctx)
				if err != nil {
					return "", err
				}
				emit(domain.NewKeyPressActionEvent(4))
				return result, nil
			},
		},
		Capability{
			Name:        "start_app",
			Description: "start_app(package, activity): launch an app by package name. activity is optional.",
			Mutating:    true,
			Invoke: func(ctx context.Context, args Args) (string, error) {
				pkg, err := args.String(0)
				if err != nil {
					return "", err
				}
				activity, err := args.StringOr(1, "activity", "")
				if err != nil {
					return "", err
				}
				result, err := device.StartApp(ctx, pkg, activity)
				if err != nil {
					return "", err
				}
				emit(domain.NewStartAppEvent(pkg, activity))
				return result, nil
			},
		},
		Capability{
			Name:        "list_packages",
			Description: "list_packages(include_system): list installed package names. include_system is optional (default false).",
			Invoke: func(ctx context.Context, args Args) (string, error) {
				includeSystem := false
				if len(args.Positional) > 0 || args.Keyword["include_system"] != nil {
					v, err := args.Bool(0, "include_system")
					if err != nil {
						return "", err
					}
					includeSystem = v
				}
				packages, err := device.ListPackages(ctx, includeSystem)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Packages:\n%s", strings.Join(packages, "\n")), nil
			},
		},
		Capability{
			Name:        "remember",
			Description: "remember(information): store a fact; remembered facts are shown in later steps.",
			Invoke: func(ctx context.Context, args Args) (string, error) {
				info, err := args.String(0)
				if err != nil {
					return "", err
				}
				return device.Remember(info), nil
			},
		},
	)
}

func gestureArgs(args Args, defaultDurationMS int) ([4]int, int, error) {
	var coords [4]int
	for i := 0; i < 4; i++ {
		v, err := args.Int(i)
		if err != nil {
			return coords, 0, err
		}
		coords[i] = v
	}
	durationMS, err := args.IntOr(4, defaultDurationMS)
	if err != nil {
		return coords, 0, err
	}
	return coords, durationMS, nil
}
