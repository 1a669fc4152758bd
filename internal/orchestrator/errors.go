package orchestrator

import "fmt"

func errNoCapableAgent(capability string) error {
	return fmt.Errorf("no registered agent advertises capability %q", capability)
}

func errMissingUserQuery() error {
	return fmt.Errorf("orchestration request is missing a userQuery")
}
