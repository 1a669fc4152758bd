package agentctx

import "errors"

var (
	errAlreadyRegistered  = errors.New("agent already registered in this context")
	errUnknownAgent       = errors.New("unknown agent id")
	errLifecycleViolation = errors.New("lifecycle transition not valid from the agent's current state")
	errUnknownControlKind = errors.New("unrecognized control event kind")
	errNoFactory          = errors.New("no factory registered for agent type")
	errAgentNotActive     = errors.New("agent not in ACTIVE state")
)
