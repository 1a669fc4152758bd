package topic

import "errors"

var (
	errEmptyTopic         = errors.New("topic must not be empty")
	errMalformedTopic     = errors.New("topic does not match the hierarchical dotted grammar")
	errTrailingDoubleStar = errors.New("\"**\" wildcard must be the final pattern segment")
)
