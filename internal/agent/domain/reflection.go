package domain

// Reflection is the critic's verdict on one task execution. Immutable once
// built. A positive verdict never carries advice.
type Reflection struct {
	goalAchieved bool
	summary      string
	advice       string
}

// NewReflection builds a verdict. When goalAchieved is true any advice is
// discarded.
func NewReflection(goalAchieved bool, summary, advice string) Reflection {
	if goalAchieved {
		advice = ""
	}
	return Reflection{goalAchieved: goalAchieved, summary: summary, advice: advice}
}

// GoalAchieved reports whether the critic accepted the execution.
func (r Reflection) GoalAchieved() bool { return r.goalAchieved }

// Summary returns the critic's account of what happened.
func (r Reflection) Summary() string { return r.summary }

// Advice returns corrective guidance for the next planning round. Empty when
// the execution was accepted.
func (r Reflection) Advice() string { return r.advice }
