package codeact

import (
	"context"
	"fmt"
	"strings"

	"droidrun/internal/logging"
	"droidrun/internal/observability"
)

// Completion is the terminal verdict of a task, produced by the complete(...)
// primitive. It is threaded back to the caller as a value; nothing in the
// capability set mutates shared completion state.
type Completion struct {
	Success bool
	Reason  string
}

// Capability is one callable action exposed to the model.
type Capability struct {
	Name        string
	Description string
	// Mutating marks actions that change device state; the interpreter
	// captures a screenshot/UI snapshot after each one.
	Mutating bool
	Invoke   func(ctx context.Context, args Args) (string, error)
}

// CapabilitySet is the ordered collection of actions bound to a run.
type CapabilitySet struct {
	order  []string
	byName map[string]Capability
}

// NewCapabilitySet builds a set from the given capabilities, keeping order
// for prompt rendering.
func NewCapabilitySet(capabilities ...Capability) *CapabilitySet {
	s := &CapabilitySet{byName: make(map[string]Capability)}
	for _, c := range capabilities {
		s.Add(c)
	}
	return s
}

// Add registers a capability, replacing any existing one with the same name.
func (s *CapabilitySet) Add(c Capability) {
	if _, exists := s.byName[c.Name]; !exists {
		s.order = append(s.order, c.Name)
	}
	s.byName[c.Name] = c
}

// Get looks up a capability by name.
func (s *CapabilitySet) Get(name string) (Capability, bool) {
	c, ok := s.byName[name]
	return c, ok
}

// Names returns capability names in registration order.
func (s *CapabilitySet) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Filter returns a new set holding only the named capabilities, in this
// set's order.
func (s *CapabilitySet) Filter(allowed []string) *CapabilitySet {
	allowedSet := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		allowedSet[name] = true
	}
	out := &CapabilitySet{byName: make(map[string]Capability)}
	for _, name := range s.order {
		if allowedSet[name] {
			out.Add(s.byName[name])
		}
	}
	return out
}

// Describe renders the action list for the system prompt.
func (s *CapabilitySet) Describe() string {
	var b strings.Builder
	for _, name := range s.order {
		c := s.byName[name]
		fmt.Fprintf(&b, "- %s\n", c.Description)
	}
	b.WriteString("- complete(success, reason): mark the task as finished. success is true or false, reason explains the outcome.\n")
	return b.String()
}

// Interpreter runs action scripts against a capability set.
type Interpreter struct {
	capabilities *CapabilitySet
	logger       logging.Logger
	// afterMutation runs after each successful mutating action except the
	// last statement of the script (the next step's context gathering
	// covers that one).
	afterMutation func(ctx context.Context)
}

// NewInterpreter builds an interpreter over a capability set.
func NewInterpreter(capabilities *CapabilitySet, logger logging.Logger) *Interpreter {
	return &Interpreter{capabilities: capabilities, logger: logging.OrNop(logger)}
}

// SetAfterMutation installs the post-action capture hook.
func (i *Interpreter) SetAfterMutation(hook func(ctx context.Context)) {
	i.afterMutation = hook
}

// Run executes a script. The returned output is the observation fed back to
// the model. A non-nil Completion means complete(...) was called; statements
// after it never run.
func (i *Interpreter) Run(ctx context.Context, script string) (output string, completion *Completion) {
	var lines []string
	appendLine := func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	statements, parseErr := ParseScript(script)

	for idx, stmt := range statements {
		if err := ctx.Err(); err != nil {
			appendLine("Error: execution cancelled")
			break
		}

		if stmt.Name == "complete" {
			success, err := stmt.Args.Bool(0, "success")
			if err != nil {
				appendLine("Error: complete: %v", err)
				break
			}
			reason, err := stmt.Args.StringOr(1, "reason", "")
			if err != nil {
				appendLine("Error: complete: %v", err)
				break
			}
			completion = &Completion{Success: success, Reason: reason}
			appendLine("Task marked as finished.")
			break
		}

		capability, ok := i.capabilities.Get(stmt.Name)
		if !ok {
			appendLine("Error: unknown function %q (line %d)", stmt.Name, stmt.Line)
			break
		}

		observability.ToolExecutions.Inc()
		result, err := i.invoke(ctx, capability, stmt.Args)
		if err != nil {
			observability.ToolErrors.Inc()
			appendLine("Error: %s: %v", stmt.Name, err)
			break
		}
		if result != "" {
			appendLine("%s", result)
		}

		if capability.Mutating && i.afterMutation != nil && idx < len(statements)-1 {
			i.afterMutation(ctx)
		}
	}

	if parseErr != nil && completion == nil {
		appendLine("Error: %v", parseErr)
	}

	if len(lines) == 0 {
		lines = append(lines, "No output.")
	}
	return strings.Join(lines, "\n"), completion
}

// invoke calls a capability, converting panics into errors.
func (i *Interpreter) invoke(ctx context.Context, capability Capability, args Args) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			i.logger.Error("panic in action %s: %v", capability.Name, r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return capability.Invoke(ctx, args)
}
