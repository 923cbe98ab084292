package extractor

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/ZanzyTHEbar/bertfeat/bertfeat/encoder"
)

// TokenMetadata is the metadata key carrying the originating token string on
// sequence-mode examples.
const TokenMetadata = "Token"

// DefaultLabel is applied when the caller supplies no label.
const DefaultLabel = "unknown"

// ErrLabelMismatch is returned when a per-token label list does not match the
// retained token count.
var ErrLabelMismatch = errors.New("label count does not match token count")

// Example wraps one feature vector with the shared feature names, a label
// and optional metadata. Examples are immutable after creation and owned by
// the caller.
type Example struct {
	FeatureNames  []string          `json:"feature_names"`
	FeatureValues []float64         `json:"feature_values"`
	Label         string            `json:"label"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// SequenceExample is an ordered list of Examples, one per retained token
// position, preserving encoder output order.
type SequenceExample struct {
	Examples []*Example `json:"examples"`
}

// FeatureNames generates the shared feature-name list for a D-dimensional
// model: "D=<i>" zero-padded to the digit width of D-1.
func FeatureNames(dim int) []string {
	width := len(strconv.Itoa(dim - 1))
	names := make([]string, dim)
	for i := 0; i < dim; i++ {
		names[i] = fmt.Sprintf("D=%0*d", width, i)
	}
	return names
}

func newExample(names []string, values []float64, label string) *Example {
	if label == "" {
		label = DefaultLabel
	}
	return &Example{FeatureNames: names, FeatureValues: values, Label: label}
}

func newTokenExample(names []string, row []float32, label, token string) *Example {
	ex := newExample(names, widen(row), label)
	ex.Metadata = map[string]string{TokenMetadata: token}
	return ex
}

// buildSequence turns the embedding matrix rows into per-token Examples.
// Row 0 is the classification marker and the final row the separator; when
// stripMarkers is true both rows are consumed without producing Examples,
// otherwise each becomes its own Example labeled DefaultLabel with the
// literal marker string as metadata. labels must be nil (all DefaultLabel)
// or exactly len(tokens) long.
func buildSequence(res *encoder.Result, names []string, tokens, labels []string, stripMarkers bool, clsToken, sepToken string) (*SequenceExample, error) {
	if labels != nil && len(labels) != len(tokens) {
		return nil, fmt.Errorf("%w: %d labels for %d tokens", ErrLabelMismatch, len(labels), len(tokens))
	}

	capacity := len(tokens)
	if !stripMarkers {
		capacity += 2
	}
	examples := make([]*Example, 0, capacity)

	if !stripMarkers {
		examples = append(examples, newTokenExample(names, res.Embeddings[0], DefaultLabel, clsToken))
	}
	for i, tok := range tokens {
		label := DefaultLabel
		if labels != nil {
			label = labels[i]
		}
		examples = append(examples, newTokenExample(names, res.Embeddings[i+1], label, tok))
	}
	if !stripMarkers {
		examples = append(examples, newTokenExample(names, res.Embeddings[len(tokens)+1], DefaultLabel, sepToken))
	}

	return &SequenceExample{Examples: examples}, nil
}
