package fallback

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepairJSON_ValidPassesThrough(t *testing.T) {
	repaired, ok := RepairJSON(`{"a":1}`)
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, repaired)
}

func TestRepairJSON_TrailingComma(t *testing.T) {
	repaired, ok := RepairJSON(`{"a":1,"b":2,}`)
	assert.True(t, ok)
	assert.JSONEq(t, `{"a":1,"b":2}`, repaired)
}

func TestRepairJSON_UnclosedBrace(t *testing.T) {
	repaired, ok := RepairJSON(`{"a":1,"b":{"c":2}`)
	assert.True(t, ok)
	assert.JSONEq(t, `{"a":1,"b":{"c":2}}`, repaired)
}

func TestRepairJSON_Truncated(t *testing.T) {
	repaired, ok := RepairJSON(`{"a":1,"b":`)
	assert.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, repaired)
}

func TestRepairJSON_Unrepairable(t *testing.T) {
	_, ok := RepairJSON(`not json at all {{{`)
	assert.False(t, ok)
}
