package faces

import "math"

// Accumulator collects the retained faces of one media item across all of
// its frames. Two embeddings whose cosine similarity meets the threshold are
// the same physical face; the first-seen one wins and the duplicate is
// discarded.
type Accumulator struct {
	threshold float32
	results   []Result
}

func NewAccumulator(threshold float32) *Accumulator {
	return &Accumulator{threshold: threshold}
}

// AddIfUnique keeps the candidate only if it matches nothing already
// accumulated. O(n·m), but n and m are faces per item, not corpus-wide.
func (a *Accumulator) AddIfUnique(candidate Result) bool {
	for i := range a.results {
		if CosineSimilarity(a.results[i].Embedding, candidate.Embedding) >= a.threshold {
			return false
		}
	}
	a.results = append(a.results, candidate)
	return true
}

// Results returns the retained faces in first-seen order.
func (a *Accumulator) Results() []Result {
	return a.results
}

// CosineSimilarity calculates cosine similarity between two embeddings.
// Normalizes internally, so it is safe for raw vectors too; for
// pre-normalized embeddings it reduces to the dot product.
func CosineSimilarity(embedding1, embedding2 []float32) float32 {
	if len(embedding1) != len(embedding2) || len(embedding1) == 0 {
		return 0.0
	}

	var dotProduct, norm1, norm2 float32
	for i := 0; i < len(embedding1); i++ {
		dotProduct += embedding1[i] * embedding2[i]
		norm1 += embedding1[i] * embedding1[i]
		norm2 += embedding2[i] * embedding2[i]
	}
	if norm1 == 0 || norm2 == 0 {
		return 0.0
	}
	return dotProduct / (float32(math.Sqrt(float64(norm1))) * float32(math.Sqrt(float64(norm2))))
}

// NormalizeEmbedding normalizes the embedding vector to unit length (L2).
func NormalizeEmbedding(embedding []float32) []float32 {
	if len(embedding) == 0 {
		return embedding
	}

	var norm float32
	for _, val := range embedding {
		norm += val * val
	}
	norm = float32(math.Sqrt(float64(norm)))
	if norm == 0 {
		return embedding
	}

	normalized := make([]float32, len(embedding))
	for i, val := range embedding {
		normalized[i] = val / norm
	}
	return normalized
}
