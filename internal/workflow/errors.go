package workflow

import "errors"

var (
	ErrUnknownProduct  = errors.New("unknown product")
	ErrStaleEvent      = errors.New("stale event")
	ErrUnexpectedInput = errors.New("unexpected input for current state")
	ErrAddressTooShort = errors.New("address too short")
	ErrFullyBooked     = errors.New("no free slots for date")
	ErrSlotUnavailable = errors.New("selected slot is not available")
)
