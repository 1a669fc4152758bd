package orchestrator

import (
	"sync"

	"github.com/owulveryck/amcp/internal/planner"
)

// TaskResult is one completed (or failed) task's outcome, gathered back
// into the owning RequestState as specialists respond.
type TaskResult struct {
	TaskID  string
	Payload map[string]interface{}
	Err     string
}

// RequestState is the per-orchestration-request working set: the plan
// being executed, results gathered so far, and bookkeeping for dependency
// scheduling. Grounded on the teacher's ConversationState
// (agents/cortex/state), narrowed from a whole conversation history down
// to one request's task DAG.
type RequestState struct {
	RequestID string
	UserQuery string
	Plan      *planner.TaskPlan

	mu          sync.Mutex
	Results     map[string]TaskResult
	Dispatched  map[string]string // taskId -> correlationId, for cancellation on fail-fast
	failed      bool
	synthesized bool
}

func newRequestState(requestID, userQuery string, plan *planner.TaskPlan) *RequestState {
	return &RequestState{
		RequestID:  requestID,
		UserQuery:  userQuery,
		Plan:       plan,
		Results:    make(map[string]TaskResult),
		Dispatched: make(map[string]string),
	}
}

// StateStore holds one RequestState per in-flight orchestration request,
// keyed by requestId. Each RequestState carries its own mutex (mirroring
// the teacher's InMemoryStateManager.WithLock, but scoped to the request
// itself rather than a side table of locks) so withLock and any direct
// state.mu.Lock() call serialize against the same lock.
type StateStore struct {
	mu    sync.RWMutex
	items map[string]*RequestState
}

func newStateStore() *StateStore {
	return &StateStore{items: make(map[string]*RequestState)}
}

func (s *StateStore) put(state *RequestState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[state.RequestID] = state
}

func (s *StateStore) get(requestID string) (*RequestState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.items[requestID]
	return st, ok
}

func (s *StateStore) delete(requestID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, requestID)
}

// withLock runs fn with exclusive access to state's bookkeeping fields
// (Results/Dispatched/failed/synthesized), via the RequestState's
// own mutex — the same lock any direct state.mu.Lock() call elsewhere in
// this package serializes against.
func (s *StateStore) withLock(requestID string, fn func(*RequestState)) bool {
	state, ok := s.get(requestID)
	if !ok {
		return false
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	fn(state)
	return true
}
