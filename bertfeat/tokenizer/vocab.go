package tokenizer

import (
	"strings"

	radix "github.com/armon/go-radix"
)

// Vocabulary is the immutable token -> id mapping loaded from the tokenizer
// config. Besides the forward and reverse maps it keeps two patricia trees
// so the greedy matcher can find the longest vocabulary entry that prefixes
// a word in O(k): one tree for word-initial pieces and one for continuation
// pieces (stored with the continuation marker removed).
type Vocabulary struct {
	ids     map[string]int
	tokens  map[int]string
	initial *radix.Tree
	cont    *radix.Tree
	marker  string
}

// NewVocabulary builds a vocabulary from the raw token -> id entries.
// marker is the continuation subword prefix, usually "##".
func NewVocabulary(entries map[string]int, marker string) *Vocabulary {
	v := &Vocabulary{
		ids:     make(map[string]int, len(entries)),
		tokens:  make(map[int]string, len(entries)),
		initial: radix.New(),
		cont:    radix.New(),
		marker:  marker,
	}
	for tok, id := range entries {
		v.ids[tok] = id
		v.tokens[id] = tok
		if strings.HasPrefix(tok, marker) && len(tok) > len(marker) {
			v.cont.Insert(tok[len(marker):], tok)
		} else {
			v.initial.Insert(tok, tok)
		}
	}
	return v
}

// ID returns the id assigned to the token.
func (v *Vocabulary) ID(token string) (int, bool) {
	id, ok := v.ids[token]
	return id, ok
}

// Token reverse-looks-up the token string assigned to an id.
func (v *Vocabulary) Token(id int) (string, bool) {
	tok, ok := v.tokens[id]
	return tok, ok
}

// Contains reports whether the token exists in the vocabulary.
func (v *Vocabulary) Contains(token string) bool {
	_, ok := v.ids[token]
	return ok
}

// Size returns the number of vocabulary entries.
func (v *Vocabulary) Size() int { return len(v.ids) }

// Marker returns the continuation subword prefix.
func (v *Vocabulary) Marker() string { return v.marker }

// Tokens returns all vocabulary entries in unspecified order.
func (v *Vocabulary) Tokens() []string {
	out := make([]string, 0, len(v.ids))
	for tok := range v.ids {
		out = append(out, tok)
	}
	return out
}

// LongestPrefix returns the longest vocabulary entry that is a prefix of s.
// When continuation is true the match is performed against continuation
// pieces and the returned token carries the marker prefix. Zero-length
// matches are never returned.
func (v *Vocabulary) LongestPrefix(s string, continuation bool) (string, bool) {
	tree := v.initial
	if continuation {
		tree = v.cont
	}
	key, val, ok := tree.LongestPrefix(s)
	if !ok || len(key) == 0 {
		return "", false
	}
	return val.(string), true
}
