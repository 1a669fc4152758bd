package envelope

import "github.com/google/uuid"

// AgentID identifies an agent uniquely within the mesh. Two AgentIDs are
// equal iff name, namespace and instance all match; a clone gets a fresh
// instance so the source and the clone never collide.
type AgentID struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	Instance  string `json:"instance"`
}

// NewAgentID mints an AgentID with a fresh instance uuid.
func NewAgentID(name, namespace string) AgentID {
	return AgentID{Name: name, Namespace: namespace, Instance: uuid.NewString()}
}

// Clone returns a copy of id with a fresh instance, as required when an
// agent is cloned to a new context.
func (id AgentID) Clone() AgentID {
	return AgentID{Name: id.Name, Namespace: id.Namespace, Instance: uuid.NewString()}
}

func (id AgentID) Equal(other AgentID) bool {
	return id.Name == other.Name && id.Namespace == other.Namespace && id.Instance == other.Instance
}

func (id AgentID) String() string {
	return id.Namespace + "/" + id.Name + "#" + id.Instance
}

func (id AgentID) IsZero() bool {
	return id.Name == "" && id.Namespace == "" && id.Instance == ""
}
