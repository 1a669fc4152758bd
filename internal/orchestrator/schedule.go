package orchestrator

import "github.com/owulveryck/amcp/internal/planner"

// readyTasks returns the tasks in plan whose dependencies are already
// present in results and which have not yet been dispatched, per spec
// section 4.11 step 5 ("schedules runnable tasks, zero-dependency first,
// releasing more as upstream futures resolve").
func readyTasks(plan *planner.TaskPlan, results map[string]TaskResult, dispatched map[string]string) []planner.TaskItem {
	var ready []planner.TaskItem
	for _, t := range plan.Tasks {
		if _, done := results[t.TaskID]; done {
			continue
		}
		if _, inFlight := dispatched[t.TaskID]; inFlight {
			continue
		}
		if dependenciesSatisfied(t, results) {
			ready = append(ready, t)
		}
	}
	return ready
}

func dependenciesSatisfied(t planner.TaskItem, results map[string]TaskResult) bool {
	for _, dep := range t.Dependencies {
		if _, ok := results[dep]; !ok {
			return false
		}
	}
	return true
}

// allTerminal reports whether every task in plan has a recorded result.
func allTerminal(plan *planner.TaskPlan, results map[string]TaskResult) bool {
	return len(results) >= len(plan.Tasks)
}
