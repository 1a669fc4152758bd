// Package fallback implements the fallback manager (spec component C11):
// malformed-JSON repair, rule-based emergency response synthesis with
// reinforcement learning, and a per-downstream circuit breaker. The YAML
// rule-seed shape mirrors the teacher/pack's config-loading style (e.g.
// tarsy's gopkg.in/yaml.v3 structs) rather than hand-rolled parsing.
package fallback

import (
	"encoding/json"
	"regexp"
	"strings"
)

// trailingDanglingKey matches an incomplete trailing "key": fragment (a
// key with no value after it) so repairTruncation can drop the whole
// fragment instead of leaving a colon with nothing after it.
var trailingDanglingKey = regexp.MustCompile(`,?\s*"(?:[^"\\]|\\.)*"\s*:\s*$`)

// RepairJSON attempts to coerce a malformed JSON string produced by an LLM
// into something that parses, per spec section 4.10: trailing-comma
// removal, truncation repair, and bracket balancing, in that order
// (truncation repair runs before balancing so a dangling key is dropped
// before closers are appended). It returns the repaired string and true on
// success, or the original string and false if nothing made it parse.
func RepairJSON(raw string) (string, bool) {
	if json.Valid([]byte(raw)) {
		return raw, true
	}

	candidate := removeTrailingCommas(raw)
	candidate = repairTruncation(candidate)
	candidate = balanceBrackets(candidate)

	if json.Valid([]byte(candidate)) {
		return candidate, true
	}
	return raw, false
}

// removeTrailingCommas strips a comma that appears immediately before a
// closing bracket or brace, the most common LLM JSON mistake.
func removeTrailingCommas(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] == ',' {
			j := i + 1
			for j < len(runes) && (runes[j] == ' ' || runes[j] == '\n' || runes[j] == '\t' || runes[j] == '\r') {
				j++
			}
			if j < len(runes) && (runes[j] == '}' || runes[j] == ']') {
				continue
			}
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}

// balanceBrackets appends any closing brackets/braces needed to match
// unclosed openers, respecting string literals so braces inside quoted
// text are not counted.
func balanceBrackets(s string) string {
	var stack []rune
	inString := false
	escaped := false

	for _, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, r)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if inString {
		s += `"`
	}
	var closers strings.Builder
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			closers.WriteByte('}')
		} else {
			closers.WriteByte(']')
		}
	}
	return s + closers.String()
}

// repairTruncation drops a dangling trailing comma or colon left by a
// response cut off mid-token, then re-runs bracket balancing since trimming
// can expose further unclosed structure.
func repairTruncation(s string) string {
	trimmed := strings.TrimRight(s, " \t\n\r")

	if loc := trailingDanglingKey.FindStringIndex(trimmed); loc != nil {
		trimmed = trimmed[:loc[0]]
	}
	trimmed = strings.TrimRight(trimmed, " \t\n\r,:")

	if trimmed != s {
		return balanceBrackets(trimmed)
	}
	return s
}
