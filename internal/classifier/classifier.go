package classifier

import (
	"fmt"
	"math"
)

// Classifier assigns a label and per-class probabilities to an embedding
// vector. Implementations must be safe for concurrent use.
type Classifier interface {
	Classify(vec []float32) (label string, probs map[string]float64, err error)
	Labels() []string
}

// Linear is a logistic-regression classifier over sentence embeddings.
// Weights has one row per label; probabilities come from a softmax over the
// per-label scores, so they always sum to 1.
type Linear struct {
	labels  []string
	weights [][]float64
	bias    []float64
	dim     int
}

// NewLinear validates the weight shapes and builds a Linear classifier.
func NewLinear(labels []string, weights [][]float64, bias []float64) (*Linear, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("classifier: no labels")
	}
	if len(weights) != len(labels) {
		return nil, fmt.Errorf("classifier: %d weight rows for %d labels", len(weights), len(labels))
	}
	if len(bias) != len(labels) {
		return nil, fmt.Errorf("classifier: %d bias terms for %d labels", len(bias), len(labels))
	}

	dim := len(weights[0])
	if dim == 0 {
		return nil, fmt.Errorf("classifier: empty weight row")
	}
	for i, row := range weights {
		if len(row) != dim {
			return nil, fmt.Errorf("classifier: weight row %d has length %d, want %d", i, len(row), dim)
		}
	}

	return &Linear{labels: labels, weights: weights, bias: bias, dim: dim}, nil
}

// Dim returns the expected embedding dimensionality.
func (l *Linear) Dim() int {
	return l.dim
}

// Labels returns the class labels in score order.
func (l *Linear) Labels() []string {
	return l.labels
}

// Classify scores the embedding against every label and returns the
// highest-probability label together with the full probability map.
func (l *Linear) Classify(vec []float32) (string, map[string]float64, error) {
	if len(vec) != l.dim {
		return "", nil, fmt.Errorf("classifier: embedding has dimension %d, want %d", len(vec), l.dim)
	}

	scores := make([]float64, len(l.labels))
	for i, row := range l.weights {
		s := l.bias[i]
		for j, w := range row {
			s += w * float64(vec[j])
		}
		scores[i] = s
	}

	probs := softmax(scores)

	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}

	byLabel := make(map[string]float64, len(l.labels))
	for i, label := range l.labels {
		byLabel[label] = probs[i]
	}

	return l.labels[best], byLabel, nil
}

// softmax converts raw scores into probabilities. Scores are shifted by the
// maximum before exponentiation to keep the math stable.
func softmax(scores []float64) []float64 {
	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}

	out := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(s - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
