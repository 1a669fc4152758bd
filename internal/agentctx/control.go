package agentctx

// ControlKind enumerates the pre-defined operational commands a context can
// send to an agent, per spec section 4.3's sendControlEvent.
type ControlKind string

const (
	ControlPing     ControlKind = "PING"
	ControlDrain    ControlKind = "DRAIN"
	ControlShutdown ControlKind = "SHUTDOWN"
	ControlMigrate  ControlKind = "MIGRATE"
)

// ControlEvent bypasses the normal FIFO data queue: SendControlEvent applies
// it directly to the target agent's lifecycle state. It is not serialized
// against data events already being handled by that agent.
type ControlEvent struct {
	Kind    ControlKind
	Payload map[string]string
}
