// Package topic implements the hierarchical dotted-topic grammar used for
// pub/sub routing: lowercase alphanumeric segments joined by ".", with "*"
// matching exactly one segment and "**" matching one-or-more trailing
// segments in a subscription pattern.
package topic

import (
	"regexp"
	"strings"

	"github.com/owulveryck/amcp/internal/amcperr"
)

const component = "topic"

var topicRe = regexp.MustCompile(`^[a-z0-9]+(\.[a-z0-9*]+)*$`)

// Validate reports whether s is a syntactically valid topic or pattern
// string per the grammar in spec section 4.1. It does not distinguish
// between a concrete topic and a wildcard pattern — use ValidatePattern
// for subscription-time checks that also enforce "**" can only trail.
func Validate(s string) error {
	if s == "" {
		return amcperr.New(amcperr.KindValidation, component, "Validate", errEmptyTopic)
	}
	if !topicRe.MatchString(s) {
		return amcperr.New(amcperr.KindValidation, component, "Validate", errMalformedTopic)
	}
	return nil
}

// ValidatePattern validates a subscription pattern, additionally requiring
// that "**" only ever appears as the final segment.
func ValidatePattern(pattern string) error {
	if err := Validate(pattern); err != nil {
		return err
	}
	segments := strings.Split(pattern, ".")
	for i, seg := range segments {
		if seg == "**" && i != len(segments)-1 {
			return amcperr.New(amcperr.KindValidation, component, "ValidatePattern", errTrailingDoubleStar)
		}
	}
	return nil
}

// Match reports whether the concrete topic matches the subscription
// pattern. "*" matches exactly one segment; "**" (only valid as the last
// pattern segment) matches one or more trailing segments.
func Match(topic, pattern string) bool {
	topicSegs := strings.Split(topic, ".")
	patternSegs := strings.Split(pattern, ".")

	ti := 0
	for pi := 0; pi < len(patternSegs); pi++ {
		seg := patternSegs[pi]
		if seg == "**" {
			// "**" must be the final pattern segment and match at least
			// one remaining topic segment.
			return ti < len(topicSegs)
		}
		if ti >= len(topicSegs) {
			return false
		}
		if seg != "*" && seg != topicSegs[ti] {
			return false
		}
		ti++
	}
	return ti == len(topicSegs)
}
