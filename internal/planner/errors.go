package planner

import "fmt"

func errUnknownTemplate(name string) error {
	return fmt.Errorf("unknown prompt template %q", name)
}

func errMissingVar(name string) error {
	return fmt.Errorf("missing required template variable %q", name)
}

func errUnknownCapability(capability, taskID string) error {
	return fmt.Errorf("task %q: capability %q is not known and not in the declared fallback set", taskID, capability)
}

func errUnknownDependency(taskID, dep string) error {
	return fmt.Errorf("task %q depends on unknown task %q", taskID, dep)
}

func errCyclicDependency(taskID string) error {
	return fmt.Errorf("dependency cycle detected at task %q", taskID)
}

func errDuplicateTaskID(taskID string) error {
	return fmt.Errorf("duplicate taskId %q", taskID)
}

func errEmptyPlan() error {
	return fmt.Errorf("plan has no tasks")
}
