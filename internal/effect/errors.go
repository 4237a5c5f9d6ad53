package effect

import "errors"

var (
	// ErrGeneratorDone is returned by a generator resumed after completion.
	ErrGeneratorDone = errors.New("effect: generator already completed")

	// ErrStopped rejects watch futures still pending when the runner stops.
	ErrStopped = errors.New("effect: runner stopped")

	// ErrUnknownEffect is returned when an intent names no registered body.
	ErrUnknownEffect = errors.New("effect: no body registered")
)
