package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/ZanzyTHEbar/bertfeat/bertfeat/encoder"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const extractorTokenizerJSON = `{
  "normalizer": {"type": "BertNormalizer", "lowercase": true, "strip_accents": null},
  "post_processor": {
    "special_tokens": {
      "[SEP]": {"tokens": ["[SEP]"]},
      "[CLS]": {"tokens": ["[CLS]"]}
    }
  },
  "model": {
    "unk_token": "[UNK]",
    "continuing_subword_prefix": "##",
    "max_input_chars_per_word": 100,
    "vocab": {
      "[PAD]": 0, "[UNK]": 1, "[CLS]": 2, "[SEP]": 3,
      "hello": 4, "world": 5, "un": 6, "##able": 7, "unable": 8
    }
  }
}`

// fakeEncoder produces deterministic embeddings: row i of the matrix is
// filled with float32(i+1) and the pooled vector with -1, so tests can tell
// every row apart and distinguish pooled output from row 0.
type fakeEncoder struct {
	dim     int
	failure error
	invokes atomic.Int64
	closes  atomic.Int64
}

func (f *fakeEncoder) Invoke(_ context.Context, ids, mask, tokenTypes []int64) (*encoder.Result, error) {
	f.invokes.Add(1)
	if f.failure != nil {
		return nil, f.failure
	}
	if len(ids) != len(mask) || len(ids) != len(tokenTypes) {
		return nil, fmt.Errorf("%w: ragged input", encoder.ErrEncode)
	}
	emb := make([][]float32, len(ids))
	for i := range emb {
		row := make([]float32, f.dim)
		for j := range row {
			row[j] = float32(i + 1)
		}
		emb[i] = row
	}
	pooled := make([]float32, f.dim)
	for j := range pooled {
		pooled[j] = -1
	}
	return &encoder.Result{Embeddings: emb, Pooled: pooled}, nil
}

func (f *fakeEncoder) Dimensions() int { return f.dim }

func (f *fakeEncoder) Close() error {
	f.closes.Add(1)
	return nil
}

func newTestExtractor(t *testing.T, opts Options) (*FeatureExtractor, *fakeEncoder) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tokenizer.json")
	require.NoError(t, os.WriteFile(path, []byte(extractorTokenizerJSON), 0o644))

	opts.TokenizerPath = path
	fake := &fakeEncoder{dim: 4}
	fe, err := New(opts, fake, zerolog.Nop())
	require.NoError(t, err)
	return fe, fake
}

func TestExtractCLS(t *testing.T) {
	fe, fake := newTestExtractor(t, Options{Pooling: PoolingCLS})

	ex, err := fe.Extract(context.Background(), "hello world", "greeting")
	require.NoError(t, err)

	assert.Equal(t, "greeting", ex.Label)
	assert.Equal(t, []string{"D=0", "D=1", "D=2", "D=3"}, ex.FeatureNames)
	assert.Equal(t, []float64{-1, -1, -1, -1}, ex.FeatureValues)
	assert.Equal(t, int64(1), fake.invokes.Load())
}

func TestExtractMean(t *testing.T) {
	fe, _ := newTestExtractor(t, Options{Pooling: PoolingMean})

	// Rows: CLS=1s, hello=2s, world=3s, SEP=4s. Mean of token rows = 2.5.
	ex, err := fe.Extract(context.Background(), "hello world", "")
	require.NoError(t, err)

	assert.Equal(t, DefaultLabel, ex.Label)
	assert.InDeltaSlice(t, []float64{2.5, 2.5, 2.5, 2.5}, ex.FeatureValues, 1e-12)
}

func TestExtractEmptyInputMeanRejected(t *testing.T) {
	fe, _ := newTestExtractor(t, Options{Pooling: PoolingMean})

	_, err := fe.Extract(context.Background(), "", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoTokens))
}

func TestExtractEmptyInputCLS(t *testing.T) {
	fe, _ := newTestExtractor(t, Options{Pooling: PoolingCLS})

	ex, err := fe.Extract(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, -1, -1, -1}, ex.FeatureValues)
}

func TestExtractEncoderFailure(t *testing.T) {
	fe, fake := newTestExtractor(t, Options{Pooling: PoolingCLS})
	fake.failure = fmt.Errorf("%w: session exploded", encoder.ErrEncode)

	_, err := fe.Extract(context.Background(), "hello", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, encoder.ErrEncode))
}

func TestExtractSequence(t *testing.T) {
	fe, _ := newTestExtractor(t, Options{Pooling: PoolingCLS})

	seq, err := fe.ExtractSequence(context.Background(), "hello world", nil, true)
	require.NoError(t, err)

	require.Len(t, seq.Examples, 2)
	assert.Equal(t, "hello", seq.Examples[0].Metadata[TokenMetadata])
	assert.Equal(t, []float64{2, 2, 2, 2}, seq.Examples[0].FeatureValues)
	assert.Equal(t, "world", seq.Examples[1].Metadata[TokenMetadata])
	assert.Equal(t, []float64{3, 3, 3, 3}, seq.Examples[1].FeatureValues)

	kept, err := fe.ExtractSequence(context.Background(), "hello world", []string{"a", "b"}, false)
	require.NoError(t, err)
	require.Len(t, kept.Examples, 4)
	assert.Equal(t, "[CLS]", kept.Examples[0].Metadata[TokenMetadata])
	assert.Equal(t, "a", kept.Examples[1].Label)
	assert.Equal(t, "b", kept.Examples[2].Label)
	assert.Equal(t, "[SEP]", kept.Examples[3].Metadata[TokenMetadata])
}

func TestExtractTruncation(t *testing.T) {
	fe, _ := newTestExtractor(t, Options{Pooling: PoolingCLS, MaxLength: 4})

	enc, err := fe.Encode(context.Background(), "hello world unable hello")
	require.NoError(t, err)

	// Two tokens survive beside the markers.
	assert.Equal(t, []string{"hello", "world"}, enc.Tokens)
	assert.Equal(t, []int64{2, 4, 5, 3}, enc.IDs)
	assert.Equal(t, []int64{1, 1, 1, 1}, enc.Masks)
	assert.Equal(t, []int64{0, 0, 0, 0}, enc.TokenTypes)
	require.Len(t, enc.Embeddings, 4)
	assert.Equal(t, []float32{-1, -1, -1, -1}, enc.CLS)
}

func TestExtractBatchPreservesOrder(t *testing.T) {
	fe, fake := newTestExtractor(t, Options{Pooling: PoolingMean, BatchWorkers: 3})

	texts := []string{"hello", "world", "hello world", "unable", "hello unable"}
	examples, err := fe.ExtractBatch(context.Background(), texts, "doc")
	require.NoError(t, err)

	require.Len(t, examples, len(texts))
	for i, ex := range examples {
		require.NotNil(t, ex, "example %d", i)
		assert.Equal(t, "doc", ex.Label)
	}
	// "hello" has a single token: mean equals that row exactly.
	assert.Equal(t, []float64{2, 2, 2, 2}, examples[0].FeatureValues)
	assert.Equal(t, int64(len(texts)), fake.invokes.Load())
}

func TestExtractBatchFailureAborts(t *testing.T) {
	fe, _ := newTestExtractor(t, Options{Pooling: PoolingMean})

	// The empty document fails MEAN pooling and aborts the batch.
	_, err := fe.ExtractBatch(context.Background(), []string{"hello", ""}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoTokens))
}

func TestCloseIdempotent(t *testing.T) {
	fe, fake := newTestExtractor(t, Options{})

	require.NoError(t, fe.Close())
	require.NoError(t, fe.Close())
	assert.Equal(t, int64(2), fake.closes.Load())
}

func TestNewRejectsTinyMaxLength(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokenizer.json")
	require.NoError(t, os.WriteFile(path, []byte(extractorTokenizerJSON), 0o644))

	_, err := New(Options{TokenizerPath: path, MaxLength: 2}, &fakeEncoder{dim: 4}, zerolog.Nop())
	require.Error(t, err)
}

func TestNewRejectsMissingTokenizer(t *testing.T) {
	_, err := New(Options{TokenizerPath: "/nonexistent/tokenizer.json"}, &fakeEncoder{dim: 4}, zerolog.Nop())
	require.Error(t, err)
}
