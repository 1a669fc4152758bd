package a2a

import "errors"

var (
	errNoTracker       = errors.New("a2a bridge has no correlation tracker configured")
	errResponseTimeout = errors.New("timed out waiting for correlated a2a response")
)
