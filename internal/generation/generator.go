package generation

import "context"

// Generator produces one artifact for a given kind from a source brief and
// returns a locator for the result.
type Generator interface {
	Generate(ctx context.Context, kind, brief string) (string, error)
}

// Func adapts a function to the Generator interface.
type Func func(ctx context.Context, kind, brief string) (string, error)

// Generate implements Generator.
func (f Func) Generate(ctx context.Context, kind, brief string) (string, error) {
	return f(ctx, kind, brief)
}
