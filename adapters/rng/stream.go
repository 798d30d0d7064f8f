package rng

import (
	"context"
	"hash/fnv"
	"math/rand"

	"exocompare/ports"
)

// StreamAdapter implements ports.RNGPort with per-key sub-streams derived from
// one global seed.
type StreamAdapter struct{}

// NewStreamAdapter creates the adapter
func NewStreamAdapter() *StreamAdapter {
	return &StreamAdapter{}
}

var _ ports.RNGPort = (*StreamAdapter)(nil)

// SeededStream creates a deterministic random number generator for a named operation
func (a *StreamAdapter) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rand.New(rand.NewSource(seed)), nil
}

// Stream derives the sub-stream for (stage, key) from seed.
func (a *StreamAdapter) Stream(ctx context.Context, stage, key string, seed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rand.New(rand.NewSource(DeriveSeed(seed, stage, key))), nil
}

// DeriveSeed mixes the global seed with an FNV-1a digest of stage and key and
// finalizes with splitmix64 so neighbouring keys land far apart.
func DeriveSeed(seed int64, stage, key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(stage))
	h.Write([]byte{0})
	h.Write([]byte(key))
	return int64(splitmix64(uint64(seed) ^ h.Sum64()))
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
