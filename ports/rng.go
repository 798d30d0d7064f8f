package ports

import (
	"context"
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a named operation
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)

	// Stream creates an isolated generator for one stage and stable key. The same
	// (stage, key, seed) always yields the same sequence regardless of which other
	// streams were opened before it.
	Stream(ctx context.Context, stage, key string, seed int64) (*rand.Rand, error)
}
