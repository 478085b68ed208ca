package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
)

// HashProvider derives deterministic pseudo-embeddings from a text
// hash. Identical texts always map to identical vectors, so indexing
// and retrieval stay exercisable without any embedding model. The
// vectors carry no semantic signal; this is a degraded mode for
// development and tests.
type HashProvider struct {
	dimension int
}

// NewHashProvider creates a hash provider with the given dimension.
func NewHashProvider(dimension int) *HashProvider {
	if dimension <= 0 {
		dimension = 384
	}
	return &HashProvider{dimension: dimension}
}

// EmbedDocuments generates deterministic embeddings for multiple texts.
func (p *HashProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		vectors[i] = p.embed(text)
	}
	return vectors, nil
}

// EmbedQuery generates a deterministic embedding for a single query.
func (p *HashProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	return p.embed(text), nil
}

// embed expands a SHA-256 digest of the text into a normalized vector.
func (p *HashProvider) embed(text string) []float32 {
	seed := sha256.Sum256([]byte(text))

	vector := make([]float32, p.dimension)
	var block [32]byte
	copy(block[:], seed[:])
	for i := 0; i < p.dimension; i++ {
		if i%8 == 0 && i > 0 {
			block = sha256.Sum256(block[:])
		}
		bits := binary.BigEndian.Uint32(block[(i%8)*4:])
		vector[i] = float32(bits)/float32(math.MaxUint32) - 0.5
	}

	// Cosine-similarity stores expect unit vectors.
	var norm float32
	for _, v := range vector {
		norm += v * v
	}
	norm = float32(math.Sqrt(float64(norm)))
	if norm > 0 {
		for i := range vector {
			vector[i] /= norm
		}
	}
	return vector
}

// Dimension returns the configured dimension.
func (p *HashProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op.
func (p *HashProvider) Close() error {
	return nil
}

var _ Provider = (*HashProvider)(nil)
