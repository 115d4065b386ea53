package domain

import (
	"fmt"
	"sync"
)

// TaskStatus tracks the lifecycle of a task
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Task is a single unit of work produced by planning and executed by the
// action loop. Role selects the executor persona.
type Task struct {
	Description   string     `json:"description"`
	Status        TaskStatus `json:"status"`
	Role          string     `json:"agent_type"`
	ResultMessage string     `json:"result_message,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
}

// TaskManager owns the active task queue and the permanent execution history.
// Finished tasks are copied into history; later queue replacement never
// rewrites what already happened.
type TaskManager struct {
	mu            sync.Mutex
	queue         []Task
	history       []Task
	goalCompleted bool
	goalMessage   string
}

// NewTaskManager creates an empty task manager.
func NewTaskManager() *TaskManager {
	return &TaskManager{}
}

// SetTasks replaces the active queue. Incoming tasks are normalized to
// pending status. History is untouched.
func (m *TaskManager) SetTasks(tasks []Task) error {
	if len(tasks) == 0 {
		return fmt.Errorf("task list must not be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = make([]Task, len(tasks))
	for i, task := range tasks {
		task.Status = TaskStatusPending
		task.ResultMessage = ""
		task.FailureReason = ""
		m.queue[i] = task
	}
	return nil
}

// Next removes and returns the oldest pending task, in insertion order.
func (m *TaskManager) Next() (Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return Task{}, false
	}
	task := m.queue[0]
	m.queue = m.queue[1:]
	return task, true
}

// HasPending reports whether undispatched tasks remain in the queue.
func (m *TaskManager) HasPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue) > 0
}

// CompleteTask records a successful task into history. The stored record is
// a copy; the caller's value stays independent.
func (m *TaskManager) CompleteTask(task Task, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task.Status = TaskStatusCompleted
	task.ResultMessage = message
	task.FailureReason = ""
	m.history = append(m.history, task)
}

// FailTask records a failed task into history.
func (m *TaskManager) FailTask(task Task, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task.Status = TaskStatusFailed
	task.FailureReason = reason
	m.history = append(m.history, task)
}

// CompleteGoal marks the overall goal as achieved with a final message.
// The pending queue is cleared; nothing remains to execute.
func (m *TaskManager) CompleteGoal(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.goalCompleted = true
	m.goalMessage = message
	m.queue = nil
}

// GoalCompleted reports whether planning declared the goal achieved.
func (m *TaskManager) GoalCompleted() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.goalCompleted, m.goalMessage
}

// Tasks returns a snapshot of the pending queue.
func (m *TaskManager) Tasks() []Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Task, len(m.queue))
	copy(out, m.queue)
	return out
}

// History returns a snapshot of every finished task in completion order.
func (m *TaskManager) History() []Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Task, len(m.history))
	copy(out, m.history)
	return out
}

// HistoryBlock renders the finished tasks as a prompt-ready text block.
func (m *TaskManager) HistoryBlock() string {
	history := m.History()
	if len(history) == 0 {
		return "No tasks executed yet."
	}
	out := ""
	for i, task := range history {
		line := fmt.Sprintf("%d. [%s] %s", i+1, task.Status, task.Description)
		switch task.Status {
		case TaskStatusCompleted:
			if task.ResultMessage != "" {
				line += fmt.Sprintf(" (result: %s)", task.ResultMessage)
			}
		case TaskStatusFailed:
			if task.FailureReason != "" {
				line += fmt.Sprintf(" (failure: %s)", task.FailureReason)
			}
		}
		out += line + "\n"
	}
	return out
}
