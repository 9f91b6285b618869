// Package embeddings stores and builds the vectors aligned with the enriched
// medication rows.
package embeddings

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

var ErrDimensionMismatch = errors.New("embedding dimensions differ")

// Store is an ordered, read-only sequence of fixed-length vectors kept in a
// single row-major buffer. Row i belongs to medication i.
type Store struct {
	rows int
	dim  int
	data []float32
}

// NewStore copies vectors into a store. Every vector must have the same length.
func NewStore(vectors [][]float32) (*Store, error) {
	if len(vectors) == 0 {
		return &Store{}, nil
	}

	dim := len(vectors[0])
	data := make([]float32, 0, len(vectors)*dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has %d values, expected %d: %w", i, len(v), dim, ErrDimensionMismatch)
		}
		data = append(data, v...)
	}

	return &Store{rows: len(vectors), dim: dim, data: data}, nil
}

func newStoreFromBuffer(rows, dim int, data []float32) *Store {
	return &Store{rows: rows, dim: dim, data: data}
}

// Len returns the number of vectors.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return s.rows
}

// Dim returns the vector length.
func (s *Store) Dim() int {
	if s == nil {
		return 0
	}
	return s.dim
}

// Vector returns row i. The slice aliases the store and must not be modified.
func (s *Store) Vector(i int) []float32 {
	return s.data[i*s.dim : (i+1)*s.dim : (i+1)*s.dim]
}

// Fingerprint hashes the shape and contents of the store.
func (s *Store) Fingerprint() uint64 {
	d := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[:4], uint32(s.Len()))
	binary.LittleEndian.PutUint32(buf[4:], uint32(s.Dim()))
	_, _ = d.Write(buf[:])
	if s == nil {
		return d.Sum64()
	}
	for _, f := range s.data {
		binary.LittleEndian.PutUint32(buf[:4], math.Float32bits(f))
		_, _ = d.Write(buf[:4])
	}
	return d.Sum64()
}
