package planner

import (
	"bytes"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/owulveryck/amcp/internal/amcperr"
)

// PromptTemplate is one versioned entry in the template library, loaded
// from YAML the same way internal/fallback seeds its rule set. RequiredVars
// names every variable the template body references; rendering with a
// missing variable fails fast rather than silently emitting an empty
// value, per spec section 4.7 step 1.
type PromptTemplate struct {
	Name         string   `yaml:"name"`
	Version      string   `yaml:"version"`
	Body         string   `yaml:"body"`
	RequiredVars []string `yaml:"requiredVars"`
}

// templateFile is the on-disk shape of a template library YAML file.
type templateFile struct {
	Templates []PromptTemplate `yaml:"templates"`
}

// Library holds the active set of prompt templates, keyed by name.
type Library struct {
	templates map[string]PromptTemplate
}

// NewLibrary builds a Library from an explicit template set, falling back
// to the built-in decomposition template when none are supplied.
func NewLibrary(templates []PromptTemplate) *Library {
	if len(templates) == 0 {
		templates = defaultTemplates()
	}
	lib := &Library{templates: make(map[string]PromptTemplate, len(templates))}
	for _, t := range templates {
		lib.templates[t.Name] = t
	}
	return lib
}

// LoadLibraryFile parses a template library from the contents of a YAML
// file.
func LoadLibraryFile(data []byte) (*Library, error) {
	var f templateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, amcperr.New(amcperr.KindValidation, component, "LoadLibraryFile", err)
	}
	return NewLibrary(f.Templates), nil
}

// Render looks up name and executes it against vars, failing if the
// template references a variable not present in vars (spec section 4.7
// step 1: "unknown variables fail-fast").
func (l *Library) Render(name string, vars map[string]string) (string, error) {
	tmpl, ok := l.templates[name]
	if !ok {
		return "", amcperr.New(amcperr.KindNotFound, component, "Render", errUnknownTemplate(name))
	}

	for _, required := range tmpl.RequiredVars {
		if _, present := vars[required]; !present {
			return "", amcperr.New(amcperr.KindValidation, component, "Render", errMissingVar(required))
		}
	}

	t, err := template.New(tmpl.Name).Option("missingkey=error").Parse(tmpl.Body)
	if err != nil {
		return "", amcperr.New(amcperr.KindInternal, component, "Render", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", amcperr.New(amcperr.KindValidation, component, "Render", err)
	}
	return buf.String(), nil
}

// defaultTemplates is the built-in decomposition prompt, grounded on the
// teacher's buildOrchestrationPrompt string-builder shape but generalized
// to ask for a TaskPlan instead of a single Decision.
func defaultTemplates() []PromptTemplate {
	return []PromptTemplate{
		{
			Name:         "decompose.v1",
			Version:      "v1",
			RequiredVars: []string{"userQuery", "capabilities"},
			Body: `You are a task planner for a distributed agent mesh. Decompose the user's
request into a directed acyclic graph of capability-tagged sub-tasks.

Known capabilities: {{.capabilities}}

User request: {{.userQuery}}

Respond ONLY with valid JSON matching this exact shape, no prose, no markdown
fences:
{
  "tasks": [
    {
      "taskId": "t1",
      "capability": "one of the known capabilities",
      "targetAgentHint": "optional agent name",
      "params": {"key": "value"},
      "dependencies": ["t0"],
      "priority": "HIGH|MEDIUM|LOW"
    }
  ]
}

Rules:
- Every capability must be one of the known capabilities listed above.
- dependencies must reference only taskIds that also appear in this plan.
- Omit dependencies entirely for tasks with none.
- priority defaults to MEDIUM if unsure.`,
		},
	}
}
