package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReflectionPositiveVerdictClearsAdvice(t *testing.T) {
	r := NewReflection(true, "task went fine", "should be dropped")
	assert.True(t, r.GoalAchieved())
	assert.Equal(t, "task went fine", r.Summary())
	assert.Empty(t, r.Advice())
}

func TestReflectionNegativeVerdictKeepsAdvice(t *testing.T) {
	r := NewReflection(false, "tapped the wrong button", "scroll down before tapping")
	assert.False(t, r.GoalAchieved())
	assert.Equal(t, "scroll down before tapping", r.Advice())
}
