package fallback

import (
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/owulveryck/amcp/internal/amcperr"
	"github.com/owulveryck/amcp/internal/observability"
)

const component = "fallback"

// seedFile is the on-disk shape fallback.rules_path loads, following the
// teacher/pack's convention of a thin YAML wrapper struct around the
// runtime type (e.g. tarsy's TarsyYAMLConfig).
type seedFile struct {
	Rules []FallbackRule `yaml:"rules"`
}

// Manager bundles malformed-output repair, rule-based emergency response
// synthesis with reinforcement, and a circuit breaker, per spec section
// 4.10 / component C11.
type Manager struct {
	rules   *RuleStore
	circuit *CircuitBreaker
	logger  *slog.Logger
}

// NewManager constructs a Manager. rulesPath, if non-empty, is read as a
// YAML seed file; a missing or unreadable file falls back to the built-in
// category defaults rather than failing startup. stats may be nil.
func NewManager(rulesPath string, circuitThreshold int, circuitCooldown time.Duration, logger *slog.Logger, stats *observability.MetricsManager) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	var seed []FallbackRule
	if rulesPath != "" {
		if loaded, err := loadSeed(rulesPath); err != nil {
			logger.Warn("fallback: could not load rule seed, using defaults", "path", rulesPath, "error", err)
		} else {
			seed = loaded
		}
	}
	return &Manager{
		rules:   NewRuleStore(seed),
		circuit: NewCircuitBreaker(circuitThreshold, circuitCooldown, stats),
		logger:  logger,
	}
}

func loadSeed(path string) ([]FallbackRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, amcperr.New(amcperr.KindNotFound, component, "loadSeed", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, amcperr.New(amcperr.KindValidation, component, "loadSeed", err)
	}
	return f.Rules, nil
}

// RepairJSON delegates to the package-level bracket/comma/truncation
// repair heuristics.
func (m *Manager) RepairJSON(raw string) (string, bool) { return RepairJSON(raw) }

// EmergencyResponse synthesizes a rule-based response for userQuery after
// failureReason, logging which rule category served it.
func (m *Manager) EmergencyResponse(userQuery, failureReason string) string {
	resp := m.rules.Synthesize(userQuery, failureReason)
	m.logger.Info("fallback: emergency response synthesized", "reason", failureReason)
	return resp
}

// Learn reinforces or creates the rule for prompt's category using
// response, called after every successful LLM round trip.
func (m *Manager) Learn(prompt, response string) { m.rules.Learn(prompt, response) }

// Allow reports whether the circuit for service currently permits a call.
func (m *Manager) Allow(service string) bool { return m.circuit.Allow(service) }

// RecordSuccess/RecordFailure forward to the circuit breaker.
func (m *Manager) RecordSuccess(service string) { m.circuit.RecordSuccess(service) }
func (m *Manager) RecordFailure(service string) { m.circuit.RecordFailure(service) }

// CircuitState reports service's current breaker state.
func (m *Manager) CircuitState(service string) CircuitState { return m.circuit.State(service) }

// Rules returns a snapshot of the live rule set.
func (m *Manager) Rules() []FallbackRule { return m.rules.Rules() }

// SummarizeResults composes a structured plain-text summary of raw task
// results when the LLM is unavailable at the orchestrator's synthesis
// step, per spec section 4.11 step 7.
func (m *Manager) SummarizeResults(userQuery string, results map[string]string) string {
	return summarizeResults(userQuery, results)
}
