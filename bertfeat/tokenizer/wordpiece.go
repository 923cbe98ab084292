package tokenizer

import "unicode/utf8"

// WordPiece applies greedy longest-match subword splitting to a single basic
// token. Matching is deterministic: the same word and vocabulary always
// produce the same pieces.
type WordPiece struct {
	vocab         *Vocabulary
	unknown       string
	maxInputChars int
}

// NewWordPiece builds a WordPiece matcher over the vocabulary.
func NewWordPiece(vocab *Vocabulary, unknown string, maxInputChars int) WordPiece {
	return WordPiece{vocab: vocab, unknown: unknown, maxInputChars: maxInputChars}
}

// WordTokens splits one word into subword pieces. Words longer than the
// configured character limit, and words with no valid decomposition, degrade
// to a single unknown-token emission. The fallback is atomic: pieces matched
// before a dead end are discarded, never emitted.
func (w WordPiece) WordTokens(word string) []string {
	if word == "" {
		return nil
	}
	if utf8.RuneCountInString(word) > w.maxInputChars {
		return []string{w.unknown}
	}
	pieces, ok := w.match(word)
	if !ok {
		return []string{w.unknown}
	}
	return pieces
}

// match resolves the greedy decomposition, reporting failure instead of
// erroring so the caller can substitute the unknown token locally.
func (w WordPiece) match(word string) ([]string, bool) {
	var pieces []string
	rest := word
	continuation := false
	for len(rest) > 0 {
		tok, ok := w.vocab.LongestPrefix(rest, continuation)
		if !ok {
			return nil, false
		}
		consumed := len(tok)
		if continuation {
			consumed -= len(w.vocab.Marker())
		}
		pieces = append(pieces, tok)
		rest = rest[consumed:]
		continuation = true
	}
	return pieces, true
}
