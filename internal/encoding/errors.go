package encoding

import "errors"

var (
	errEmptyDest    = errors.New("empty destination address")
	errEmptyPayload = errors.New("empty payload")
)
