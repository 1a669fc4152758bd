package planner

import (
	"fmt"

	"github.com/owulveryck/amcp/internal/amcperr"
)

// Validate checks a TaskPlan against spec section 4.7 step 4: every
// capability must be known or declared as an allowed fallback, the
// dependency relation must be a DAG, and every referenced taskId must
// exist. It also fills in missing taskIds and defaults empty priorities to
// MEDIUM (steps 4 and 5), mutating plan in place.
func Validate(plan *TaskPlan, knownCapabilities map[string]struct{}, fallbackCapabilities map[string]struct{}) error {
	if len(plan.Tasks) == 0 {
		return amcperr.New(amcperr.KindValidation, component, "Validate", errEmptyPlan())
	}

	assignMissingTaskIDs(plan)

	seen := make(map[string]struct{}, len(plan.Tasks))
	for _, t := range plan.Tasks {
		if _, dup := seen[t.TaskID]; dup {
			return amcperr.New(amcperr.KindValidation, component, "Validate", errDuplicateTaskID(t.TaskID))
		}
		seen[t.TaskID] = struct{}{}
	}

	for i := range plan.Tasks {
		t := &plan.Tasks[i]
		if t.Priority == "" {
			t.Priority = PriorityMedium
		}

		_, known := knownCapabilities[t.Capability]
		_, fallback := fallbackCapabilities[t.Capability]
		if !known && !fallback {
			return amcperr.New(amcperr.KindValidation, component, "Validate", errUnknownCapability(t.Capability, t.TaskID))
		}

		for _, dep := range t.Dependencies {
			if _, ok := seen[dep]; !ok {
				return amcperr.New(amcperr.KindValidation, component, "Validate", errUnknownDependency(t.TaskID, dep))
			}
		}
	}

	if err := checkAcyclic(plan.Tasks); err != nil {
		return amcperr.New(amcperr.KindValidation, component, "Validate", err)
	}
	return nil
}

func assignMissingTaskIDs(plan *TaskPlan) {
	next := 1
	for i := range plan.Tasks {
		if plan.Tasks[i].TaskID != "" {
			continue
		}
		for {
			candidate := fmt.Sprintf("t%d", next)
			next++
			if !taskIDTaken(plan.Tasks, candidate) {
				plan.Tasks[i].TaskID = candidate
				break
			}
		}
	}
}

func taskIDTaken(tasks []TaskItem, id string) bool {
	for _, t := range tasks {
		if t.TaskID == id {
			return true
		}
	}
	return false
}

// checkAcyclic runs a standard three-color DFS over the dependency edges
// (task -> its dependencies) to detect cycles.
func checkAcyclic(tasks []TaskItem) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	byID := make(map[string]TaskItem, len(tasks))
	for _, t := range tasks {
		byID[t.TaskID] = t
	}

	color := make(map[string]int, len(tasks))
	var visit func(id string) error
	visit = func(id string) error {
		switch color[id] {
		case gray:
			return errCyclicDependency(id)
		case black:
			return nil
		}
		color[id] = gray
		for _, dep := range byID[id].Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[id] = black
		return nil
	}

	for _, t := range tasks {
		if color[t.TaskID] == white {
			if err := visit(t.TaskID); err != nil {
				return err
			}
		}
	}
	return nil
}
