package bus

import "errors"

var errBrokerStopped = errors.New("event bus is not running")
