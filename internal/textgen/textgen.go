// ABOUTME: Text generation backend for chart narrative assistance
// ABOUTME: Defines the Generator interface plus rate-limit and overload errors

package textgen

import (
	"context"
	"errors"
)

// Generation errors
var (
	ErrRateLimited = errors.New("text generation rate limited")
	ErrOverloaded  = errors.New("text generation backend overloaded")
)

// Options controls a single generation request.
type Options struct {
	// JSON asks the backend to return a strict JSON document.
	JSON bool
}

// Generator produces text from a prompt. Implementations must be safe for
// concurrent use.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// Disabled rejects every request. Used when textgen is turned off in config.
type Disabled struct{}

func (Disabled) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	return "", errors.New("text generation is not enabled")
}

var _ Generator = Disabled{}
