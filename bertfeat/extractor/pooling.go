package extractor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/bertfeat/bertfeat/encoder"

	"gonum.org/v1/gonum/floats"
)

// Pooling selects how per-position embeddings collapse into one feature
// vector. The set is closed; each variant has its own aggregation function.
type Pooling int

const (
	// PoolingCLS returns the model's pooled output vector. This is a
	// distinct model output, not row 0 of the embedding matrix.
	PoolingCLS Pooling = iota
	// PoolingMean averages the token rows, excluding the [CLS] and [SEP]
	// positions.
	PoolingMean
	// PoolingCLSAndMean is the elementwise mean of the other two.
	PoolingCLSAndMean
)

// ErrNoTokens is returned when MEAN pooling is requested for an empty token
// sequence. Rejecting the call keeps the degenerate case visible instead of
// handing a misleading vector to downstream classifiers.
var ErrNoTokens = errors.New("mean pooling requires at least one token")

// ParsePooling maps a config string to a Pooling variant.
func ParsePooling(s string) (Pooling, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cls", "":
		return PoolingCLS, nil
	case "mean":
		return PoolingMean, nil
	case "cls_and_mean", "cls+mean":
		return PoolingCLSAndMean, nil
	default:
		return PoolingCLS, fmt.Errorf("unknown pooling mode %q", s)
	}
}

func (p Pooling) String() string {
	switch p {
	case PoolingCLS:
		return "cls"
	case PoolingMean:
		return "mean"
	case PoolingCLSAndMean:
		return "cls_and_mean"
	default:
		return fmt.Sprintf("pooling(%d)", int(p))
	}
}

// pool aggregates one encoder result into a feature vector. numTokens is the
// number of retained tokens, i.e. rows 1..numTokens of the embedding matrix.
// Accumulation is in float64 regardless of the source precision so rounding
// error stays bounded across long inputs.
func pool(mode Pooling, res *encoder.Result, numTokens int) ([]float64, error) {
	switch mode {
	case PoolingCLS:
		return poolCLS(res.Pooled), nil
	case PoolingMean:
		return poolMean(res.Embeddings, numTokens)
	case PoolingCLSAndMean:
		mean, err := poolMean(res.Embeddings, numTokens)
		if err != nil {
			return nil, err
		}
		cls := poolCLS(res.Pooled)
		floats.Add(cls, mean)
		floats.Scale(0.5, cls)
		return cls, nil
	default:
		return nil, fmt.Errorf("unknown pooling mode %v", mode)
	}
}

func poolCLS(pooled []float32) []float64 {
	return widen(pooled)
}

func poolMean(embeddings [][]float32, numTokens int) ([]float64, error) {
	if numTokens == 0 {
		return nil, ErrNoTokens
	}
	sum := make([]float64, len(embeddings[1]))
	for i := 1; i <= numTokens; i++ {
		floats.Add(sum, widen(embeddings[i]))
	}
	floats.Scale(1/float64(numTokens), sum)
	return sum, nil
}

func widen(row []float32) []float64 {
	out := make([]float64, len(row))
	for i, v := range row {
		out[i] = float64(v)
	}
	return out
}
