package envelope

import "errors"

var (
	errMissingRequiredField  = errors.New("id, specVersion, source and type are required")
	errInvalidDeliveryOption = errors.New("unrecognized delivery option")
)
