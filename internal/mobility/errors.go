package mobility

import "errors"

var errUnknownContext = errors.New("unknown context id")
