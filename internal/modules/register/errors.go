package register

import "errors"

// Sentinel errors for the register module. Raise sites wrap these with
// detail via fmt.Errorf and %w so callers can branch with errors.Is.
var (
	// ErrInvalidConfig reports malformed construction parameters. Fatal:
	// an environment is never created from an invalid configuration.
	ErrInvalidConfig = errors.New("invalid register configuration")

	// ErrInvalidAction reports an action index outside [0, NumActions).
	// Recoverable: the state is left unmodified.
	ErrInvalidAction = errors.New("invalid action")
)
