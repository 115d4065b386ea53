package reflector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"droidrun/internal/agent/domain"
	"droidrun/internal/agent/persona"
	"droidrun/internal/agent/ports"
	"droidrun/internal/logging"
)

// maxParseAttempts bounds the re-request loop when the model keeps returning
// malformed JSON.
const maxParseAttempts = 3

const systemPrompt = `You are a Reflector AI that analyzes the performance of an Android Agent. Your role is to examine episodic memory steps and evaluate whether the agent achieved its goal.

EVALUATION PROCESS:
1. First, determine if the agent achieved the stated goal based on the episodic memory steps
2. If the goal was achieved, acknowledge the success
3. If the goal was NOT achieved, analyze what went wrong and provide direct advice
4. Use the provided screenshots (if any) to understand the visual context of each step
The screenshots show the screens the agent saw, in chronological order from left to right.

ANALYSIS AREAS (for failed goals):
- Missed opportunities or inefficient actions
- Incorrect tool usage or navigation choices
- Failure to understand context or user intent
- Suboptimal decision-making patterns

ADVICE GUIDELINES (for failed goals):
- Address the agent directly using "you" form with present/future focus (e.g., "You need to...", "Look for...", "Focus on...")
- Give actionable guidance for what to do NOW when retrying the goal, not what went wrong before
- Consider the current app state and context the agent will face when retrying
- Keep it concise but precise (1-2 sentences)

OUTPUT FORMAT:
You MUST respond with a valid JSON object in this exact format:

{
    "goal_achieved": true,
    "advice": null,
    "summary": "Brief summary of what happened"
}

OR

{
    "goal_achieved": false,
    "advice": "Direct advice using 'you' form focused on what to do NOW when retrying",
    "summary": "Brief summary of what happened"
}

IMPORTANT:
- If goal_achieved is true, set advice to null
- If goal_achieved is false, provide direct "you" form advice
- Always include a brief summary of the agent's performance
- ONLY return the JSON object, no additional text or formatting`

// Reflector is the episodic-memory critic. It judges one finished task
// dispatch against the goal and, on failure, produces advice for the retry.
type Reflector struct {
	llm      ports.LLMClient
	registry *persona.Registry
	logger   logging.Logger
	vision   bool
}

// New creates a reflector. With vision enabled, the screenshots captured
// during the task are composed into one labelled strip and attached.
func New(llm ports.LLMClient, registry *persona.Registry, logger logging.Logger, vision bool) *Reflector {
	return &Reflector{
		llm:      llm,
		registry: registry,
		logger:   logging.OrNop(logger),
		vision:   vision,
	}
}

// Reflect evaluates the episodic memory of one task dispatch against the
// goal. Malformed model responses are repaired and, failing that,
// re-requested a bounded number of times.
func (r *Reflector) Reflect(ctx context.Context, memory *domain.EpisodicMemory, goal string) (domain.Reflection, error) {
	messages := r.buildMessages(memory, goal)

	var lastErr error
	for attempt := 1; attempt <= maxParseAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.Reflection{}, err
		}

		resp, err := r.llm.Complete(ctx, ports.CompletionRequest{Messages: messages})
		if err != nil {
			return domain.Reflection{}, fmt.Errorf("reflection request: %w", err)
		}

		reflection, err := parseReflection(resp.Content)
		if err == nil {
			return reflection, nil
		}
		lastErr = err
		r.logger.Warn("reflection response did not parse (attempt %d/%d): %v", attempt, maxParseAttempts, err)
	}
	return domain.Reflection{}, fmt.Errorf("reflection response unparseable after %d attempts: %w", maxParseAttempts, lastErr)
}

func (r *Reflector) buildMessages(memory *domain.EpisodicMemory, goal string) []ports.Message {
	var sb strings.Builder
	sb.WriteString(formatPersona(r.registry.Get(memory.Persona)))
	sb.WriteString("\n\nGoal: ")
	sb.WriteString(goal)
	sb.WriteString("\n\nEpisodic Memory Steps:\n")
	sb.WriteString(formatSteps(memory.Steps))
	sb.WriteString("\n\nPlease evaluate if the goal was achieved and provide your analysis in the specified JSON format.")

	user := ports.UserMessage(sb.String())
	if r.vision {
		strip, err := composeStrip(stepScreenshots(memory.Steps))
		if err != nil {
			r.logger.Warn("could not compose screenshot strip: %v", err)
		} else if strip != nil {
			user = ports.UserMessageWithImages(sb.String(), strip)
		}
	}
	return []ports.Message{ports.SystemMessage(systemPrompt), user}
}

func stepScreenshots(steps []domain.EpisodicStep) [][]byte {
	var out [][]byte
	for _, step := range steps {
		if len(step.Screenshot) > 0 {
			out = append(out, step.Screenshot)
		}
	}
	return out
}

func formatPersona(p persona.Persona) string {
	return fmt.Sprintf(`ACTOR AGENT PERSONA:
- Name: %s
- Description: %s
- Available Actions: %s
- Expertise Areas: %s`,
		p.Name, p.Description,
		strings.Join(p.AllowedActions, ", "),
		strings.Join(p.ExpertiseAreas, ", "))
}

func formatSteps(steps []domain.EpisodicStep) string {
	if len(steps) == 0 {
		return "(no steps recorded)"
	}
	var sb strings.Builder
	for i, step := range steps {
		fmt.Fprintf(&sb, "Step %d:\nPrompt: %s\nResponse: %s\nTimestamp: %s\n---\n",
			i+1, step.Prompt, step.Response, step.Timestamp.Format("2006-01-02 15:04:05"))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// parseReflection turns the raw model output into a Reflection. Code fences
// are stripped first; if strict parsing fails, the payload goes through
// jsonrepair before giving up.
func parseReflection(raw string) (domain.Reflection, error) {
	content := stripCodeFence(strings.TrimSpace(raw))

	var payload struct {
		GoalAchieved bool    `json:"goal_achieved"`
		Advice       *string `json:"advice"`
		Summary      string  `json:"summary"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(content)
		if repairErr != nil {
			return domain.Reflection{}, fmt.Errorf("parse reflection: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &payload); err != nil {
			return domain.Reflection{}, fmt.Errorf("parse repaired reflection: %w", err)
		}
	}

	advice := ""
	if payload.Advice != nil {
		advice = strings.TrimSpace(*payload.Advice)
	}
	if !payload.GoalAchieved && advice == "" {
		advice = "Retry the goal with a different approach. Previous attempt: " + payload.Summary
	}
	return domain.NewReflection(payload.GoalAchieved, payload.Summary, advice), nil
}

func stripCodeFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}
