package tokenizer

import (
	"fmt"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/model/wordpiece"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"
)

// Sugarme wraps the sugarme/tokenizer WordPiece implementation behind the
// same basic+wordpiece contract as Pipeline. It is the reference backend the
// parity tests compare against; no post-processor is attached so the output
// is the raw subword sequence without [CLS]/[SEP].
type Sugarme struct {
	t *tk.Tokenizer
}

// NewSugarme loads a vocab.txt file (one token per line, line number = id)
// and builds a BERT-style sugarme tokenizer. The normalizer cleans text,
// handles CJK chars, strips accents and lowercases, matching a Config with
// both normalizer flags set.
func NewSugarme(vocabPath string) (*Sugarme, error) {
	wp, err := wordpiece.NewWordPieceFromFile(vocabPath, UnknownToken)
	if err != nil {
		return nil, fmt.Errorf("load wordpiece vocab: %w", err)
	}

	t := tk.NewTokenizer(wp)
	t.WithNormalizer(normalizer.NewBertNormalizer(true, true, true, true))
	t.WithPreTokenizer(pretokenizer.NewBertPreTokenizer())

	return &Sugarme{t: t}, nil
}

// Tokens runs the sugarme pipeline and returns the subword strings.
func (s *Sugarme) Tokens(text string) ([]string, error) {
	enc, err := s.t.Encode(tk.NewSingleEncodeInput(tk.NewInputSequence(text)), false)
	if err != nil {
		return nil, fmt.Errorf("sugarme encode: %w", err)
	}
	return enc.GetTokens(), nil
}
