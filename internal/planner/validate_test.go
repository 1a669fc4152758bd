package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func caps(names ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

func TestValidateFillsTaskIDsAndDefaultsPriority(t *testing.T) {
	plan := &TaskPlan{Tasks: []TaskItem{
		{Capability: "weather"},
		{Capability: "weather", Priority: PriorityHigh},
	}}
	require.NoError(t, Validate(plan, caps("weather"), nil))

	assert.NotEmpty(t, plan.Tasks[0].TaskID)
	assert.NotEmpty(t, plan.Tasks[1].TaskID)
	assert.NotEqual(t, plan.Tasks[0].TaskID, plan.Tasks[1].TaskID)
	assert.Equal(t, PriorityMedium, plan.Tasks[0].Priority)
	assert.Equal(t, PriorityHigh, plan.Tasks[1].Priority)
}

func TestValidateRejectsUnknownCapability(t *testing.T) {
	plan := &TaskPlan{Tasks: []TaskItem{{TaskID: "t1", Capability: "nonexistent"}}}
	err := Validate(plan, caps("weather"), nil)
	assert.Error(t, err)
}

func TestValidateAllowsDeclaredFallbackCapability(t *testing.T) {
	plan := &TaskPlan{Tasks: []TaskItem{{TaskID: "t1", Capability: "chat"}}}
	err := Validate(plan, caps("weather"), caps("chat"))
	assert.NoError(t, err)
}

func TestValidateRejectsUnknownDependency(t *testing.T) {
	plan := &TaskPlan{Tasks: []TaskItem{
		{TaskID: "t1", Capability: "weather", Dependencies: []string{"ghost"}},
	}}
	err := Validate(plan, caps("weather"), nil)
	assert.Error(t, err)
}

func TestValidateRejectsDependencyCycle(t *testing.T) {
	plan := &TaskPlan{Tasks: []TaskItem{
		{TaskID: "t1", Capability: "weather", Dependencies: []string{"t2"}},
		{TaskID: "t2", Capability: "weather", Dependencies: []string{"t1"}},
	}}
	err := Validate(plan, caps("weather"), nil)
	assert.Error(t, err)
}

func TestValidateRejectsEmptyPlan(t *testing.T) {
	plan := &TaskPlan{}
	err := Validate(plan, caps("weather"), nil)
	assert.Error(t, err)
}

func TestValidateAcceptsDiamondDependencyGraph(t *testing.T) {
	plan := &TaskPlan{Tasks: []TaskItem{
		{TaskID: "t1", Capability: "weather"},
		{TaskID: "t2", Capability: "weather", Dependencies: []string{"t1"}},
		{TaskID: "t3", Capability: "weather", Dependencies: []string{"t1"}},
		{TaskID: "t4", Capability: "weather", Dependencies: []string{"t2", "t3"}},
	}}
	assert.NoError(t, Validate(plan, caps("weather"), nil))
}
