package tokenizer

// Tokenizer converts raw text into an ordered sequence of subword tokens.
// Implementations are total: any input produces a (possibly empty) token
// sequence, never an error.
type Tokenizer interface {
	Split(text string) []string
}

// Pipeline is the BERT-style tokenizer: basic pre-tokenization followed by
// greedy WordPiece matching. It holds only immutable state and is safe for
// concurrent use.
type Pipeline struct {
	basic     BasicTokenizer
	wordpiece WordPiece
}

// New builds the tokenization pipeline from a loaded Config.
func New(cfg *Config) *Pipeline {
	return &Pipeline{
		basic:     BasicTokenizer{Lowercase: cfg.Lowercase, StripAccents: cfg.StripAccents},
		wordpiece: NewWordPiece(cfg.Vocab, cfg.UnknownToken, cfg.MaxInputCharsPerWord),
	}
}

// Split tokenizes text into subword tokens.
func (p *Pipeline) Split(text string) []string {
	words := p.basic.Split(text)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		tokens = append(tokens, p.wordpiece.WordTokens(w)...)
	}
	return tokens
}
