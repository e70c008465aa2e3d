package service

import "errors"

var (
	// ErrInvalidMessage marks an inbound message that was dropped without
	// changing any state.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrUnknownDevice is returned by registry updates for a device that is
	// not registered. The pipeline always touches before updating, so this
	// only surfaces on a contract violation.
	ErrUnknownDevice = errors.New("unknown device")
)
