package tokenizer

import (
	"fmt"
	"os"

	internal "github.com/ZanzyTHEbar/bertfeat/bertfeat"

	json "github.com/goccy/go-json"
)

// Token names used by BERT-style models.
const (
	ClassificationToken = "[CLS]"
	SeparatorToken      = "[SEP]"
	UnknownToken        = "[UNK]"
)

// DefaultMarker is the continuation subword prefix used when the tokenizer
// config does not specify one.
const DefaultMarker = "##"

// Config is the immutable tokenizer configuration parsed from a HuggingFace
// tokenizer json file. It is built once at load time; all fields are
// read-only afterwards and safe to share across goroutines.
type Config struct {
	Vocab                *Vocabulary
	UnknownToken         string
	ClassificationToken  string
	SeparatorToken       string
	Lowercase            bool
	StripAccents         bool
	MaxInputCharsPerWord int
}

// tokenizerJSON mirrors the subset of the HuggingFace tokenizer file schema
// this package consumes. Vocab values decode as json.Number so a non-integer
// entry can be reported with its key.
type tokenizerJSON struct {
	Normalizer *struct {
		Lowercase    *bool `json:"lowercase"`
		StripAccents *bool `json:"strip_accents"`
	} `json:"normalizer"`
	PostProcessor *struct {
		SpecialTokens map[string]struct {
			Tokens []string `json:"tokens"`
		} `json:"special_tokens"`
	} `json:"post_processor"`
	Model *struct {
		UnkToken                string                 `json:"unk_token"`
		ContinuingSubwordPrefix string                 `json:"continuing_subword_prefix"`
		MaxInputCharsPerWord    int                    `json:"max_input_chars_per_word"`
		Vocab                   map[string]json.Number `json:"vocab"`
	} `json:"model"`
}

// LoadConfig reads and validates a tokenizer json file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokenizer config: %w", err)
	}
	return ParseConfig(raw)
}

// ParseConfig validates raw tokenizer json. Every missing or malformed field
// is a *internal.ConfigError naming the field; no partially parsed Config is
// ever returned.
func ParseConfig(raw []byte) (*Config, error) {
	var doc tokenizerJSON
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, internal.NewConfigError("tokenizer", "", fmt.Sprintf("malformed json: %v", err))
	}

	if doc.Normalizer == nil {
		return nil, internal.NewConfigError("normalizer", "", "missing")
	}
	lowercase := doc.Normalizer.Lowercase != nil && *doc.Normalizer.Lowercase
	stripAccents := doc.Normalizer.StripAccents != nil && *doc.Normalizer.StripAccents

	if doc.PostProcessor == nil {
		return nil, internal.NewConfigError("post_processor", "", "missing")
	}
	if doc.PostProcessor.SpecialTokens == nil {
		return nil, internal.NewConfigError("post_processor.special_tokens", "", "missing")
	}
	sep, ok := doc.PostProcessor.SpecialTokens[SeparatorToken]
	if !ok || len(sep.Tokens) == 0 {
		return nil, internal.NewConfigError("post_processor.special_tokens."+SeparatorToken, "", "missing separator token")
	}
	cls, ok := doc.PostProcessor.SpecialTokens[ClassificationToken]
	if !ok || len(cls.Tokens) == 0 {
		return nil, internal.NewConfigError("post_processor.special_tokens."+ClassificationToken, "", "missing classification token")
	}

	if doc.Model == nil {
		return nil, internal.NewConfigError("model", "", "missing")
	}
	if doc.Model.UnkToken == "" {
		return nil, internal.NewConfigError("model.unk_token", "", "missing or empty")
	}
	if doc.Model.MaxInputCharsPerWord == 0 {
		return nil, internal.NewConfigError("model.max_input_chars_per_word", "0", "must be non-zero")
	}
	if len(doc.Model.Vocab) == 0 {
		return nil, internal.NewConfigError("model.vocab", "", "missing or empty")
	}

	entries := make(map[string]int, len(doc.Model.Vocab))
	for tok, num := range doc.Model.Vocab {
		id, err := num.Int64()
		if err != nil {
			return nil, internal.NewConfigError("model.vocab."+tok, num.String(), "not an integer")
		}
		entries[tok] = int(id)
	}

	marker := doc.Model.ContinuingSubwordPrefix
	if marker == "" {
		marker = DefaultMarker
	}

	cfg := &Config{
		Vocab:                NewVocabulary(entries, marker),
		UnknownToken:         doc.Model.UnkToken,
		ClassificationToken:  cls.Tokens[0],
		SeparatorToken:       sep.Tokens[0],
		Lowercase:            lowercase,
		StripAccents:         stripAccents,
		MaxInputCharsPerWord: doc.Model.MaxInputCharsPerWord,
	}

	// The pipeline cannot assemble inputs without ids for the markers.
	for _, tok := range []string{cfg.UnknownToken, cfg.ClassificationToken, cfg.SeparatorToken} {
		if !cfg.Vocab.Contains(tok) {
			return nil, internal.NewConfigError("model.vocab", tok, "special token missing from vocabulary")
		}
	}

	return cfg, nil
}
