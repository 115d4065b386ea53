package codeact

import (
	"fmt"
	"strings"

	"droidrun/internal/agent/ports"
)

// FormatUITree renders the accessibility tree as an indented text block the
// model can address by index.
func FormatUITree(nodes []ports.UINode) string {
	if len(nodes) == 0 {
		return "No UI elements visible."
	}
	var b strings.Builder
	var walk func(nodes []ports.UINode, depth int)
	walk = func(nodes []ports.UINode, depth int) {
		indent := strings.Repeat("  ", depth)
		for _, node := range nodes {
			fmt.Fprintf(&b, "%s[%d] %s", indent, node.Index, node.ClassName)
			if node.Text != "" {
				fmt.Fprintf(&b, " text=%q", node.Text)
			}
			if node.ResourceID != "" {
				fmt.Fprintf(&b, " id=%s", node.ResourceID)
			}
			if node.Bounds != "" {
				fmt.Fprintf(&b, " bounds=%s", node.Bounds)
			}
			b.WriteString("\n")
			if len(node.Children) > 0 {
				walk(node.Children, depth+1)
			}
		}
	}
	walk(nodes, 0)
	return strings.TrimRight(b.String(), "\n")
}

// FormatPhoneState renders the foreground context block.
func FormatPhoneState(state ports.PhoneState) string {
	keyboard := "hidden"
	if state.KeyboardShown {
		keyboard = "shown"
	}
	app := state.CurrentApp
	if app == "" {
		app = state.PackageName
	}
	if app == "" {
		app = "unknown"
	}
	return fmt.Sprintf("Current app: %s (package: %s), keyboard: %s", app, state.PackageName, keyboard)
}

// FormatPackages renders the installed package list block.
func FormatPackages(packages []string) string {
	if len(packages) == 0 {
		return "No packages listed."
	}
	return "Installed packages:\n" + strings.Join(packages, "\n")
}

// FormatMemory renders remembered facts for the prompt.
func FormatMemory(facts []string) string {
	if len(facts) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Remembered information:\n")
	for i, fact := range facts {
		fmt.Fprintf(&b, "%d. %s\n", i+1, fact)
	}
	return strings.TrimRight(b.String(), "\n")
}
