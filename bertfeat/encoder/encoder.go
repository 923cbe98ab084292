package encoder

import (
	"context"
	"errors"
)

// Result holds the outputs of one encoder invocation: the per-position
// embedding matrix (one row per input position, including the [CLS] and
// [SEP] rows) and the separately computed pooled vector. The two are
// distinct model outputs; Pooled is not row 0 of Embeddings.
type Result struct {
	Embeddings [][]float32
	Pooled     []float32
}

// Encoder is the opaque encoding capability the extraction pipeline depends
// on. The pipeline never constructs or owns the underlying resource, it only
// holds this handle. Implementations must support concurrent read-only
// invocations or callers must serialize.
type Encoder interface {
	// Invoke runs the model over one assembled input. The three slices must
	// be the same length.
	Invoke(ctx context.Context, ids, mask, tokenTypes []int64) (*Result, error)
	// Dimensions returns the embedding dimensionality D, fixed at load time.
	Dimensions() int
	// Close releases the underlying resource. A second close is a no-op.
	Close() error
}

// ErrEncode marks a runtime invocation failure. It is terminal for the
// current extraction call only, and distinct from configuration errors so
// callers can tell "model is broken" from "this one input failed".
var ErrEncode = errors.New("encoder invocation failed")
