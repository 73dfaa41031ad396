// Package store holds named vector collections searched by cosine distance.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Match is one search candidate. Distance is the cosine distance 1 - cos(a, b), so 0 means
// identical direction and larger values mean less similar.
type Match struct {
	ID       string
	Distance float64
	Content  string
	Payload  map[string]string
}

type Collection interface {
	Name() string
	Insert(ctx context.Context, id string, content string, vec []float32, payload map[string]string) error
	// Nearest returns up to k matches ordered by ascending distance.
	Nearest(ctx context.Context, vec []float32, k int) ([]Match, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
	ListIDs(ctx context.Context) ([]string, error)
}

// Expirer is implemented by collections that can drop entries created before cutoff
// (unix seconds).
type Expirer interface {
	DeleteBefore(ctx context.Context, cutoff int64) (int64, error)
}

type Backend interface {
	Collection(ctx context.Context, name string) (Collection, error)
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("collection name is required")
	}
	return name, nil
}

// CosineDistance returns 1 - cos(a, b). A zero vector is at distance 1 from everything.
func CosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1, nil
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return 1 - sim, nil
}

func clonePayload(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
