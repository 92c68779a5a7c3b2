package faces

import (
	"math"
	"testing"
)

// vectorWithCosine builds a unit vector whose cosine similarity with the
// unit x-axis vector is exactly c.
func vectorWithCosine(c float64) []float32 {
	s := math.Sqrt(1 - c*c)
	return []float32{float32(c), float32(s), 0}
}

func TestAccumulatorDedupThreshold(t *testing.T) {
	base := []float32{1, 0, 0}

	t.Run("similarity above threshold keeps first only", func(t *testing.T) {
		acc := NewAccumulator(0.70)
		acc.AddIfUnique(Result{Embedding: base, Score: 0.9})
		added := acc.AddIfUnique(Result{Embedding: vectorWithCosine(0.95), Score: 0.8})
		if added {
			t.Error("near-duplicate embedding was added")
		}
		if got := len(acc.Results()); got != 1 {
			t.Errorf("got %d results, want 1", got)
		}
		if acc.Results()[0].Score != 0.9 {
			t.Error("first-seen result was not the one retained")
		}
	})

	t.Run("similarity below threshold keeps both", func(t *testing.T) {
		acc := NewAccumulator(0.70)
		acc.AddIfUnique(Result{Embedding: base})
		added := acc.AddIfUnique(Result{Embedding: vectorWithCosine(0.40)})
		if !added {
			t.Error("distinct embedding was rejected")
		}
		if got := len(acc.Results()); got != 2 {
			t.Errorf("got %d results, want 2", got)
		}
	})

	t.Run("similarity exactly at threshold is a duplicate", func(t *testing.T) {
		acc := NewAccumulator(0.70)
		acc.AddIfUnique(Result{Embedding: base})
		if acc.AddIfUnique(Result{Embedding: vectorWithCosine(0.70 + 1e-6)}) {
			t.Error("at-threshold embedding was added")
		}
	})
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}

	if got := CosineSimilarity(a, []float32{0, 1, 0}); got != 0 {
		t.Errorf("orthogonal vectors: got %v, want 0", got)
	}
	if got := CosineSimilarity(a, []float32{3, 0, 0}); math.Abs(float64(got)-1) > 1e-6 {
		t.Errorf("parallel unnormalized vectors: got %v, want 1", got)
	}
	if got := CosineSimilarity(a, []float32{1, 0}); got != 0 {
		t.Errorf("mismatched lengths: got %v, want 0", got)
	}
	if got := CosineSimilarity(a, []float32{0, 0, 0}); got != 0 {
		t.Errorf("zero vector: got %v, want 0", got)
	}
}

func TestNormalizeEmbedding(t *testing.T) {
	normalized := NormalizeEmbedding([]float32{3, 4})

	var norm float64
	for _, v := range normalized {
		norm += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(norm)-1) > 1e-6 {
		t.Errorf("norm after normalization: got %v, want 1", math.Sqrt(norm))
	}
	if math.Abs(float64(normalized[0])-0.6) > 1e-6 || math.Abs(float64(normalized[1])-0.8) > 1e-6 {
		t.Errorf("got %v, want [0.6 0.8]", normalized)
	}

	zero := NormalizeEmbedding([]float32{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Error("zero vector should pass through unchanged")
	}
}
