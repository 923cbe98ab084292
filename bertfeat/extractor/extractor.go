package extractor

import (
	"context"
	"fmt"
	"runtime"

	internal "github.com/ZanzyTHEbar/bertfeat/bertfeat"
	"github.com/ZanzyTHEbar/bertfeat/bertfeat/encoder"
	"github.com/ZanzyTHEbar/bertfeat/bertfeat/tokenizer"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	concpool "github.com/sourcegraph/conc/pool"
)

// Options configures a FeatureExtractor.
type Options struct {
	// TokenizerPath locates the HuggingFace tokenizer json file.
	TokenizerPath string
	// MaxLength bounds the assembled input length in wordpieces, including
	// the [CLS] and [SEP] markers. Zero selects the default.
	MaxLength int
	// Pooling selects the single-vector aggregation mode.
	Pooling Pooling
	// BatchWorkers bounds ExtractBatch concurrency. Zero selects a
	// CPU-derived default.
	BatchWorkers int
}

// FeatureExtractor turns raw text into fixed-dimension feature vectors by
// tokenizing, assembling encoder inputs, invoking the encoder and pooling
// its outputs. All state is immutable after construction, so one extractor
// is safe to share across goroutines as long as the encoder supports
// concurrent invocation.
type FeatureExtractor struct {
	cfg       *tokenizer.Config
	tok       *tokenizer.Pipeline
	enc       encoder.Encoder
	pooling   Pooling
	maxLength int
	workers   int
	names     []string
	log       zerolog.Logger
}

// New builds a FeatureExtractor over an already-initialized encoder. The
// tokenizer config is loaded and validated here; any problem is a
// configuration error and no usable extractor is returned.
func New(opts Options, enc encoder.Encoder, log zerolog.Logger) (*FeatureExtractor, error) {
	if opts.MaxLength == 0 {
		opts.MaxLength = internal.DefaultMaxLength
	}
	if opts.MaxLength < 3 {
		return nil, internal.NewConfigError("extractor.maxLength", fmt.Sprintf("%d", opts.MaxLength), "must leave room for at least one token beside the markers")
	}
	if opts.BatchWorkers <= 0 {
		opts.BatchWorkers = min(max(runtime.NumCPU(), 2), 16)
	}

	cfg, err := tokenizer.LoadConfig(opts.TokenizerPath)
	if err != nil {
		return nil, err
	}

	return &FeatureExtractor{
		cfg:       cfg,
		tok:       tokenizer.New(cfg),
		enc:       enc,
		pooling:   opts.Pooling,
		maxLength: opts.MaxLength,
		workers:   opts.BatchWorkers,
		names:     FeatureNames(enc.Dimensions()),
		log:       log,
	}, nil
}

// Dimensions returns the embedding dimensionality D.
func (f *FeatureExtractor) Dimensions() int { return f.enc.Dimensions() }

// MaxLength returns the maximum assembled input length, markers included.
func (f *FeatureExtractor) MaxLength() int { return f.maxLength }

// Vocab returns the tokenizer vocabulary.
func (f *FeatureExtractor) Vocab() *tokenizer.Vocabulary { return f.cfg.Vocab }

// Tokenize exposes the tokenizer: raw text to subword tokens, untruncated.
func (f *FeatureExtractor) Tokenize(text string) []string { return f.tok.Split(text) }

// Extract tokenizes text and returns one pooled Example. An empty label
// defaults to "unknown".
func (f *FeatureExtractor) Extract(ctx context.Context, text, label string) (*Example, error) {
	return f.ExtractTokens(ctx, f.tok.Split(text), label)
}

// ExtractTokens builds one pooled Example from pre-tokenized input. Tokens
// should come from the tokenizer this extractor's model expects.
func (f *FeatureExtractor) ExtractTokens(ctx context.Context, tokens []string, label string) (*Example, error) {
	in, res, err := f.invoke(ctx, tokens)
	if err != nil {
		return nil, err
	}
	values, err := pool(f.pooling, res, len(in.Tokens))
	if err != nil {
		return nil, err
	}
	return newExample(f.names, values, label), nil
}

// ExtractSequence tokenizes text and returns one Example per retained token
// position. labels must be nil or match the retained token count; pass
// stripMarkers to drop the [CLS] and [SEP] rows from the result.
func (f *FeatureExtractor) ExtractSequence(ctx context.Context, text string, labels []string, stripMarkers bool) (*SequenceExample, error) {
	return f.ExtractSequenceTokens(ctx, f.tok.Split(text), labels, stripMarkers)
}

// ExtractSequenceTokens is ExtractSequence over pre-tokenized input.
func (f *FeatureExtractor) ExtractSequenceTokens(ctx context.Context, tokens []string, labels []string, stripMarkers bool) (*SequenceExample, error) {
	in, res, err := f.invoke(ctx, tokens)
	if err != nil {
		return nil, err
	}
	if labels != nil && in.Dropped > 0 && len(labels) == len(in.Tokens)+in.Dropped {
		labels = labels[:len(in.Tokens)]
	}
	return buildSequence(res, f.names, in.Tokens, labels, stripMarkers, f.cfg.ClassificationToken, f.cfg.SeparatorToken)
}

// ExtractBatch runs Extract over texts with bounded concurrency, returning
// Examples in input order. The first failing request aborts the batch.
func (f *FeatureExtractor) ExtractBatch(ctx context.Context, texts []string, label string) ([]*Example, error) {
	out := make([]*Example, len(texts))
	p := concpool.New().WithMaxGoroutines(f.workers).WithContext(ctx).WithCancelOnError()
	for i, text := range texts {
		i, text := i, text
		p.Go(func(ctx context.Context) error {
			ex, err := f.Extract(ctx, text, label)
			if err != nil {
				return err
			}
			out[i] = ex
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Encoding is the debug surface for one request: everything that crossed
// the encoder boundary.
type Encoding struct {
	Tokens     []string    `json:"tokens"`
	IDs        []int64     `json:"ids"`
	Masks      []int64     `json:"masks"`
	TokenTypes []int64     `json:"token_types"`
	CLS        []float32   `json:"cls_token"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Encode tokenizes text and returns the raw encoder exchange.
func (f *FeatureExtractor) Encode(ctx context.Context, text string) (*Encoding, error) {
	in, res, err := f.invoke(ctx, f.tok.Split(text))
	if err != nil {
		return nil, err
	}
	return &Encoding{
		Tokens:     in.Tokens,
		IDs:        in.IDs,
		Masks:      in.Mask,
		TokenTypes: in.TokenTypes,
		CLS:        res.Pooled,
		Embeddings: res.Embeddings,
	}, nil
}

// Close releases the encoder. Safe to call more than once.
func (f *FeatureExtractor) Close() error { return f.enc.Close() }

// invoke assembles the input and runs the encoder, logging truncation with a
// per-request correlation id.
func (f *FeatureExtractor) invoke(ctx context.Context, tokens []string) (Input, *encoder.Result, error) {
	in := Assemble(tokens, f.cfg, f.maxLength)
	reqID := uuid.NewString()
	if in.Dropped > 0 {
		f.log.Info().
			Str("request_id", reqID).
			Int("dropped", in.Dropped).
			Int("retained", len(in.Tokens)).
			Msg("truncated input to max length")
	}
	res, err := f.enc.Invoke(ctx, in.IDs, in.Mask, in.TokenTypes)
	if err != nil {
		f.log.Error().Str("request_id", reqID).Err(err).Msg("encoder invocation failed")
		return Input{}, nil, err
	}
	return in, res, nil
}
