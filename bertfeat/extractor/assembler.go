package extractor

import "github.com/ZanzyTHEbar/bertfeat/bertfeat/tokenizer"

// Values expected by BERT inputs
const (
	maskValue      = 1
	tokenTypeValue = 0
)

// Input is the assembled encoder input for one request: three parallel
// int64 sequences of identical length len(Tokens)+2.
type Input struct {
	IDs        []int64
	Mask       []int64
	TokenTypes []int64
	// Tokens are the retained tokens after truncation, in order.
	Tokens []string
	// Dropped counts tokens removed by prefix truncation.
	Dropped int
}

// Assemble maps tokens to vocabulary ids, truncating to the first
// maxLength-2 tokens and bracketing with the classification and separator
// markers. Tokens absent from the vocabulary map to the unknown-token id.
// The mask is all ones (no padding) and the token types all zeros
// (single-segment input only).
func Assemble(tokens []string, cfg *tokenizer.Config, maxLength int) Input {
	dropped := 0
	if len(tokens) > maxLength-2 {
		dropped = len(tokens) - (maxLength - 2)
		tokens = tokens[:maxLength-2]
	}

	clsID, _ := cfg.Vocab.ID(cfg.ClassificationToken)
	sepID, _ := cfg.Vocab.ID(cfg.SeparatorToken)
	unkID, _ := cfg.Vocab.ID(cfg.UnknownToken)

	size := len(tokens) + 2
	ids := make([]int64, size)
	mask := make([]int64, size)
	types := make([]int64, size)

	ids[0] = int64(clsID)
	for i, tok := range tokens {
		if id, ok := cfg.Vocab.ID(tok); ok {
			ids[i+1] = int64(id)
		} else {
			ids[i+1] = int64(unkID)
		}
	}
	ids[size-1] = int64(sepID)

	for i := range mask {
		mask[i] = maskValue
		types[i] = tokenTypeValue
	}

	return Input{IDs: ids, Mask: mask, TokenTypes: types, Tokens: tokens, Dropped: dropped}
}
