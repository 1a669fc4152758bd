package fallback

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// FallbackRule is a trigger/template pair the manager uses to synthesize
// an emergency response, per spec section 3.
type FallbackRule struct {
	Category         string    `yaml:"category"`
	TriggerPattern   string    `yaml:"triggerPattern"`
	ResponseTemplate string    `yaml:"responseTemplate"`
	LearningScore    int       `yaml:"-"`
	LastUsed         time.Time `yaml:"-"`
}

// categoryKeywords classifies a prompt into a rule category using simple
// keyword matching, per spec section 4.10's "keyword categories: coding,
// help, question, chat, …".
var categoryKeywords = map[string][]string{
	"coding":   {"code", "function", "sort", "bug", "compile", "algorithm", "program"},
	"help":     {"help", "how do i", "how can i", "support"},
	"question": {"what", "why", "when", "where", "who"},
	"chat":     {"hello", "hi", "thanks", "how are you"},
}

// classify returns the best-matching category for prompt, or "general" if
// none of the keyword sets match.
func classify(prompt string) string {
	lower := strings.ToLower(prompt)
	for _, cat := range []string{"coding", "help", "question", "chat"} {
		for _, kw := range categoryKeywords[cat] {
			if strings.Contains(lower, kw) {
				return cat
			}
		}
	}
	return "general"
}

// RuleStore holds the live FallbackRule set, seeded from category defaults
// and reinforced by successful LLM responses, per spec section 4.10.
type RuleStore struct {
	mu    sync.RWMutex
	rules map[string]*FallbackRule // keyed by category
}

// NewRuleStore seeds a RuleStore from seed; if seed is empty, built-in
// category defaults are used.
func NewRuleStore(seed []FallbackRule) *RuleStore {
	rs := &RuleStore{rules: make(map[string]*FallbackRule)}
	if len(seed) == 0 {
		seed = defaultRules()
	}
	for i := range seed {
		r := seed[i]
		rs.rules[r.Category] = &r
	}
	return rs
}

func defaultRules() []FallbackRule {
	return []FallbackRule{
		{Category: "coding", TriggerPattern: "coding", ResponseTemplate: "I can't reach the model right now, but generally: break the problem into small steps, write a test first, and check the standard library before hand-rolling a solution. Your question was: %s"},
		{Category: "help", TriggerPattern: "help", ResponseTemplate: "I'm temporarily unable to reach the assistant backend. Please retry shortly. Your request: %s"},
		{Category: "question", TriggerPattern: "question", ResponseTemplate: "I don't have a live answer right now, but I've recorded your question for follow-up: %s"},
		{Category: "chat", TriggerPattern: "chat", ResponseTemplate: "Hey — I'm running in degraded mode at the moment, so I can't chat properly, but I heard: %s"},
		{Category: "general", TriggerPattern: "general", ResponseTemplate: "The assistant backend is currently unavailable. Your request has been queued: %s"},
	}
}

// Synthesize chooses the best-matching rule for userQuery (classified by
// category) and renders its template, per spec section 4.10. It always
// returns a rule — the "general" category is the catch-all.
func (rs *RuleStore) Synthesize(userQuery, failureReason string) string {
	category := classify(userQuery)

	rs.mu.Lock()
	defer rs.mu.Unlock()

	rule, ok := rs.rules[category]
	if !ok {
		rule, ok = rs.rules["general"]
		if !ok {
			return userQuery
		}
	}
	rule.LearningScore++
	rule.LastUsed = time.Now()
	return renderTemplate(rule.ResponseTemplate, userQuery)
}

// Learn classifies prompt and, if response is notably richer than the
// current template (longer and more distinct runes — the length/diversity
// heuristic spec section 4.10 calls for), replaces the category's
// template with it.
func (rs *RuleStore) Learn(prompt, response string) {
	category := classify(prompt)

	rs.mu.Lock()
	defer rs.mu.Unlock()

	rule, ok := rs.rules[category]
	if !ok {
		rs.rules[category] = &FallbackRule{
			Category:         category,
			TriggerPattern:   category,
			ResponseTemplate: response,
			LastUsed:         time.Now(),
		}
		return
	}
	if isHigherQuality(response, rule.ResponseTemplate) {
		rule.ResponseTemplate = response
		rule.LastUsed = time.Now()
	}
}

// isHigherQuality is the length/diversity heuristic: candidate must be
// both longer and use a richer alphabet (distinct runes) than current.
func isHigherQuality(candidate, current string) bool {
	if len(candidate) <= len(current) {
		return false
	}
	return distinctRuneCount(candidate) > distinctRuneCount(current)
}

func distinctRuneCount(s string) int {
	seen := make(map[rune]struct{})
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		seen[r] = struct{}{}
		s = s[size:]
	}
	return len(seen)
}

func renderTemplate(template, query string) string {
	if strings.Contains(template, "%s") {
		return strings.Replace(template, "%s", query, 1)
	}
	return template
}

// summarizeResults renders a structured plain-text digest of raw task
// results, sorted by taskId, for the orchestrator's synthesis step when
// the LLM is unavailable (spec section 4.11 step 7).
func summarizeResults(userQuery string, results map[string]string) string {
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	fmt.Fprintf(&b, "Results for %q (assistant backend unavailable, showing raw task output):\n", userQuery)
	for _, id := range ids {
		fmt.Fprintf(&b, "- %s: %s\n", id, results[id])
	}
	return b.String()
}

// Rules returns a snapshot of every rule, for diagnostics and persistence.
func (rs *RuleStore) Rules() []FallbackRule {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	out := make([]FallbackRule, 0, len(rs.rules))
	for _, r := range rs.rules {
		out = append(out, *r)
	}
	return out
}
