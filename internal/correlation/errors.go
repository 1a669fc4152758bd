package correlation

import "errors"

var (
	errTimedOut     = errors.New("correlation wait timed out")
	errAlreadyInUse = errors.New("correlation id already has a pending waiter")
)
