package planner

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/owulveryck/amcp/internal/amcperr"
	"github.com/owulveryck/amcp/internal/llm"
)

// Generator is the narrow slice of llm.Connector the planner needs, kept
// as an interface so this package doesn't force every caller to wire up
// the full LLM connector.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (string, error)
}

// Repairer is the narrow slice of internal/fallback.Manager the planner
// needs for malformed-JSON repair (spec section 4.7 step 3).
type Repairer interface {
	RepairJSON(raw string) (string, bool)
}

// Config bundles planner construction parameters.
type Config struct {
	Model                string
	TemplateName         string
	DefaultChatAgent     string
	FallbackCapabilities map[string]struct{}
}

// Planner decomposes a user query into a TaskPlan, per spec section 4.7.
type Planner struct {
	llm     Generator
	repair  Repairer
	library *Library
	cfg     Config
	logger  *slog.Logger
}

// New constructs a Planner. library may be nil to use the built-in
// decomposition template.
func New(generator Generator, repair Repairer, library *Library, cfg Config, logger *slog.Logger) *Planner {
	if library == nil {
		library = NewLibrary(nil)
	}
	if cfg.TemplateName == "" {
		cfg.TemplateName = "decompose.v1"
	}
	if cfg.DefaultChatAgent == "" {
		cfg.DefaultChatAgent = "chat"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{llm: generator, repair: repair, library: library, cfg: cfg, logger: logger}
}

// Decompose produces a validated TaskPlan for userQuery given the set of
// capabilities currently known to the registry, per spec section 4.7.
func (p *Planner) Decompose(ctx context.Context, userQuery string, knownCapabilities map[string]struct{}) (*TaskPlan, error) {
	prompt, err := p.library.Render(p.cfg.TemplateName, map[string]string{
		"userQuery":    userQuery,
		"capabilities": strings.Join(capabilityNames(knownCapabilities), ", "),
	})
	if err != nil {
		p.logger.WarnContext(ctx, "failed to render planner prompt, using fallback plan", "error", err)
		return p.fallbackPlan(userQuery), nil
	}

	response, err := p.llm.Generate(ctx, llm.Request{Model: p.cfg.Model, Prompt: prompt})
	if err != nil {
		p.logger.WarnContext(ctx, "llm decomposition call failed, using fallback plan", "error", err)
		return p.fallbackPlan(userQuery), nil
	}

	plan, err := p.parseAndValidate(response, knownCapabilities)
	if err == nil {
		return plan, nil
	}
	p.logger.WarnContext(ctx, "planner response failed validation, attempting repair", "error", err)

	if p.repair != nil {
		if repaired, ok := p.repair.RepairJSON(extractJSON(response)); ok {
			plan, err = p.parseAndValidate(repaired, knownCapabilities)
			if err == nil {
				return plan, nil
			}
			p.logger.WarnContext(ctx, "repaired planner response still invalid, using fallback plan", "error", err)
		}
	}

	return p.fallbackPlan(userQuery), nil
}

func (p *Planner) parseAndValidate(response string, knownCapabilities map[string]struct{}) (*TaskPlan, error) {
	raw, err := parseRawPlan(extractJSON(response))
	if err != nil {
		return nil, amcperr.New(amcperr.KindValidation, component, "parseAndValidate", err)
	}
	plan := toTaskPlan(raw)
	if err := Validate(&plan, knownCapabilities, p.cfg.FallbackCapabilities); err != nil {
		return nil, err
	}
	return &plan, nil
}

// fallbackPlan routes the raw query to the configured default chat agent
// as a single task, per spec section 4.7 step 3.
func (p *Planner) fallbackPlan(userQuery string) *TaskPlan {
	return &TaskPlan{
		Degraded: true,
		Tasks: []TaskItem{
			{
				TaskID:     "t1",
				Capability: p.cfg.DefaultChatAgent,
				Params:     map[string]interface{}{"query": userQuery},
				Priority:   PriorityMedium,
			},
		},
	}
}

func capabilityNames(capabilities map[string]struct{}) []string {
	names := make([]string, 0, len(capabilities))
	for name := range capabilities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
