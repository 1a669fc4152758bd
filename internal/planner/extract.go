package planner

import (
	"encoding/json"
	"strings"
)

// extractJSON strips markdown code fences and leading/trailing prose
// around a JSON object, the same tolerant extraction the teacher's
// parseDecision performs on raw LLM text before unmarshaling.
func extractJSON(response string) string {
	jsonStr := response
	if idx := strings.Index(response, "```json"); idx != -1 {
		start := idx + len("```json")
		if end := strings.Index(response[start:], "```"); end != -1 {
			jsonStr = strings.TrimSpace(response[start : start+end])
		}
	} else if idx := strings.Index(response, "```"); idx != -1 {
		start := idx + 3
		if end := strings.Index(response[start:], "```"); end != -1 {
			jsonStr = strings.TrimSpace(response[start : start+end])
		}
	}

	trimmed := strings.TrimSpace(jsonStr)
	if !strings.HasPrefix(trimmed, "{") {
		start := strings.Index(jsonStr, "{")
		end := strings.LastIndex(jsonStr, "}")
		if start != -1 && end != -1 && end > start {
			jsonStr = jsonStr[start : end+1]
		}
	}
	return jsonStr
}

func parseRawPlan(jsonStr string) (rawTaskPlan, error) {
	var raw rawTaskPlan
	err := json.Unmarshal([]byte(jsonStr), &raw)
	return raw, err
}

func toTaskPlan(raw rawTaskPlan) TaskPlan {
	tasks := make([]TaskItem, len(raw.Tasks))
	for i, rt := range raw.Tasks {
		tasks[i] = TaskItem{
			TaskID:          rt.TaskID,
			Capability:      rt.Capability,
			TargetAgentHint: rt.TargetAgentHint,
			Params:          rt.Params,
			Dependencies:    rt.Dependencies,
			Priority:        Priority(strings.ToUpper(rt.Priority)),
		}
	}
	return TaskPlan{Tasks: tasks, OnError: raw.OnError}
}
