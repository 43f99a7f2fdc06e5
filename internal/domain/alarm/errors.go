package alarm

import "errors"

var (
	// ErrInvalidRequest marks malformed requests: unknown action, missing or unexpected fields.
	// No state is mutated when it is returned.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidArgument marks well-formed requests carrying an unacceptable value,
	// e.g. an alarm type outside {sound, vibrate}. No state is mutated when it is returned.
	ErrInvalidArgument = errors.New("invalid argument")
)

// IsClientError reports whether err belongs to the caller-side error kinds.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) || errors.Is(err, ErrInvalidArgument)
}
