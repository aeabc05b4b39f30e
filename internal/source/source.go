// Package source supplies one landmark frame per detection tick.
package source

import (
	"context"
	"errors"

	"github.com/ayusman/signify/internal/landmark"
)

// ErrExhausted is returned by finite sources after their last frame.
var ErrExhausted = errors.New("source exhausted")

// Source produces landmark frames. A frame with nothing detected is a valid
// result, not an error.
type Source interface {
	// Open prepares the source for reading.
	Open() error

	// Next returns the landmarks for the current moment.
	Next(ctx context.Context) (landmark.Frame, error)

	// Close releases the source. It may be reopened.
	Close() error
}
