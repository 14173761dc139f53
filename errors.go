package netio

import "errors"

var (
	errBindFailed        = errors.New("netio: bind failed")
	errUnresolvable      = errors.New("netio: endpoint could not be resolved")
	errUnknownEndpoint   = errors.New("netio: endpoint uri is malformed")
	errReactorInitFailed = errors.New("netio: reactor init failed")
)
