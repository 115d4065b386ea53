package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"droidrun/internal/agent"
	"droidrun/internal/agent/domain"
	"droidrun/internal/agent/ports"
)

var (
	blue   = color.New(color.FgBlue).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func renderError(msg string) string {
	return red("error: " + msg)
}

// renderer prints progress events as they arrive from the run's event stream.
type renderer struct{}

func newRenderer() ports.EventListener {
	return renderer{}
}

func (renderer) OnEvent(event ports.AgentEvent) {
	switch e := event.(type) {
	case *domain.GoalStartEvent:
		fmt.Printf("%s %s\n", bold("Goal:"), e.Goal)
	case *domain.PlanThinkingEvent:
		if e.Thought != "" {
			fmt.Printf("%s %s\n", cyan("plan"), firstLine(e.Thought))
		}
	case *domain.PlanCreatedEvent:
		fmt.Printf("%s %d task(s)\n", cyan("plan"), len(e.Tasks))
		for i, task := range e.Tasks {
			fmt.Printf("  %d. %s %s\n", i+1, task.Description, gray("["+task.Role+"]"))
		}
	case *domain.TaskThinkingEvent:
		if e.Thought != "" {
			fmt.Printf("%s %s\n", yellow("think"), firstLine(e.Thought))
		}
	case *domain.TaskExecutionEvent:
		fmt.Printf("%s %s\n", blue("act"), firstLine(e.Code))
	case *domain.TaskExecutionResultEvent:
		fmt.Printf("%s %s\n", gray("obs"), firstLine(e.Output))
	case *domain.TaskEndEvent:
		if e.Success {
			fmt.Printf("%s %s\n", green("task done"), e.Reason)
		} else {
			fmt.Printf("%s %s\n", red("task failed"), e.Reason)
		}
	case *domain.ReflectionEvent:
		if e.GoalAchieved {
			fmt.Printf("%s %s\n", green("review ok"), e.Summary)
		} else {
			fmt.Printf("%s %s\n", red("review rejected"), e.Advice)
		}
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx] + " ..."
	}
	return s
}

func printVerdict(result *agent.RunResult) {
	fmt.Println()
	if result.Success {
		fmt.Printf("%s %s\n", green(bold("SUCCESS")), result.Reason)
	} else {
		fmt.Printf("%s %s\n", red(bold("FAILED")), result.Reason)
	}
	if result.Output != "" && result.Output != result.Reason {
		fmt.Printf("%s %s\n", bold("Output:"), result.Output)
	}
	fmt.Printf("%s %d\n", bold("Steps:"), result.Steps)
	if len(result.TaskHistory) > 0 {
		fmt.Println(bold("Tasks:"))
		for i, task := range result.TaskHistory {
			marker := green("✓")
			if task.Status != domain.TaskStatusCompleted {
				marker = red("✗")
			}
			fmt.Printf("  %s %d. %s\n", marker, i+1, task.Description)
		}
	}
}
