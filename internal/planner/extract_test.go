package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSONFromMarkdownFence(t *testing.T) {
	input := "Sure, here's the plan:\n```json\n{\"tasks\":[]}\n```\nLet me know if that works."
	assert.Equal(t, `{"tasks":[]}`, extractJSON(input))
}

func TestExtractJSONFromGenericFence(t *testing.T) {
	input := "```\n{\"tasks\":[]}\n```"
	assert.Equal(t, `{"tasks":[]}`, extractJSON(input))
}

func TestExtractJSONFromBareObject(t *testing.T) {
	input := `{"tasks":[]}`
	assert.Equal(t, `{"tasks":[]}`, extractJSON(input))
}

func TestExtractJSONFromSurroundingProse(t *testing.T) {
	input := `Here is my answer: {"tasks":[]} -- hope that helps!`
	assert.Equal(t, `{"tasks":[]}`, extractJSON(input))
}
