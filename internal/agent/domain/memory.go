package domain

import "time"

// EpisodicStep captures one model exchange inside a task dispatch.
type EpisodicStep struct {
	Prompt     string    `json:"prompt"`
	Response   string    `json:"response"`
	Timestamp  time.Time `json:"timestamp"`
	Screenshot []byte    `json:"-"`
}

// EpisodicMemory is the full record of a single task dispatch, handed to the
// critic after execution. One memory exists per dispatched task.
type EpisodicMemory struct {
	Persona string         `json:"persona"`
	Steps   []EpisodicStep `json:"steps"`
}

// NewEpisodicMemory creates an empty memory for the given persona.
func NewEpisodicMemory(persona string) *EpisodicMemory {
	return &EpisodicMemory{Persona: persona}
}

// AddStep appends one exchange to the memory.
func (m *EpisodicMemory) AddStep(prompt, response string, screenshot []byte, ts time.Time) {
	m.Steps = append(m.Steps, EpisodicStep{
		Prompt:     prompt,
		Response:   response,
		Timestamp:  ts,
		Screenshot: screenshot,
	})
}
