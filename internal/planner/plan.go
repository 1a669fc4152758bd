// Package planner implements the task planner (spec component C9): it
// turns a natural-language user query into a validated TaskPlan by
// prompting the LLM connector from a versioned template library, repairing
// or retrying on malformed output, and falling back to a single-task plan
// routed to a default chat agent when the LLM can't be salvaged. Grounded
// on the teacher's agents/cortex buildOrchestrationPrompt/parseDecision
// shape (string-built prompt, code-fence-tolerant JSON extraction),
// generalized from a single Decision into a TaskPlan DAG.
package planner

import "time"

const component = "planner"

// Priority is a TaskItem's scheduling priority, per spec section 3.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// TaskItem is one node in a TaskPlan's dependency DAG, per spec section 3.
type TaskItem struct {
	TaskID          string                 `json:"taskId"`
	Capability      string                 `json:"capability"`
	TargetAgentHint string                 `json:"targetAgentHint,omitempty"`
	Params          map[string]interface{} `json:"params,omitempty"`
	Dependencies    []string               `json:"dependencies,omitempty"`
	Priority        Priority               `json:"priority,omitempty"`
}

// TaskPlan is an ordered sequence of TaskItems whose Dependencies form a
// DAG, per spec section 3.
type TaskPlan struct {
	Tasks []TaskItem `json:"tasks"`
	// OnError controls sibling-branch behavior on task failure, per spec
	// section 4.11 step 5. Empty means failures are isolated to their own
	// branch; "fail-fast" cancels every other in-flight task.
	OnError string `json:"onError,omitempty"`
	// Degraded marks a plan synthesized by the rule-based fallback rather
	// than the LLM, so callers can flag the eventual response accordingly.
	Degraded bool      `json:"-"`
	BuiltAt  time.Time `json:"-"`
}

// OnErrorFailFast is the declared value that cancels sibling branches on
// any task failure, per spec section 4.11 step 5.
const OnErrorFailFast = "fail-fast"

// rawTaskPlan is the wire shape the decomposition prompt asks the LLM to
// emit; Priority arrives as a possibly-empty string before defaulting.
type rawTaskPlan struct {
	Tasks   []rawTaskItem `json:"tasks"`
	OnError string        `json:"onError"`
}

type rawTaskItem struct {
	TaskID          string                 `json:"taskId"`
	Capability      string                 `json:"capability"`
	TargetAgentHint string                 `json:"targetAgentHint"`
	Params          map[string]interface{} `json:"params"`
	Dependencies    []string               `json:"dependencies"`
	Priority        string                 `json:"priority"`
}
