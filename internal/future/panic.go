package future

import "fmt"

// PanicError wraps a value recovered from a panicking goroutine.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return &PanicError{Value: err}
	}
	return &PanicError{Value: r}
}

// Unwrap exposes a recovered error value.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Recovered converts a recovered panic value into an error.
func Recovered(r any) error {
	return panicError(r)
}
