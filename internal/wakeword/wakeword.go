// Package wakeword detects and strips the configured trigger token from the
// front of a transcribed utterance. Matching is token-boundary aware: the
// wakeword inside a longer word never matches.
package wakeword

import "strings"

// Options controls wakeword matching.
type Options struct {
	// CaseSensitive compares the token byte-for-byte instead of folding case.
	CaseSensitive bool
	// StartOnly restricts matching to the first token of the utterance.
	// When false, the first occurrence anywhere in the text is removed.
	StartOnly bool
}

// DefaultOptions matches case-insensitively at the start of the utterance.
func DefaultOptions() Options {
	return Options{CaseSensitive: false, StartOnly: true}
}

// Processor carries a configured wakeword. Construct one per pipeline
// instance; there is no package-level default.
type Processor struct {
	word string
	opts Options
}

// NewProcessor creates a processor for the given trigger token.
func NewProcessor(word string, opts Options) *Processor {
	return &Processor{word: strings.TrimSpace(word), opts: opts}
}

// Word returns the configured trigger token.
func (p *Processor) Word() string {
	return p.word
}

// Detect reports whether the wakeword is present in the text under the
// configured matching rules.
func (p *Processor) Detect(text string) bool {
	return detect(text, p.word, p.opts)
}

// Process strips the wakeword and reports whether it was present.
// The returned text is whitespace-normalized either way.
func (p *Processor) Process(text string) (bool, string) {
	detected := p.Detect(text)
	return detected, Strip(text, p.word, p.opts)
}

// Strip removes the first occurrence of the wakeword from the text and
// normalizes whitespace. Pure and total: absent or empty wakeword returns
// the whitespace-normalized input unchanged. An input equal to only the
// wakeword becomes the empty string.
func Strip(text, word string, opts Options) string {
	tokens := strings.Fields(text)
	word = strings.TrimSpace(word)
	if word == "" {
		return strings.Join(tokens, " ")
	}

	for i, tok := range tokens {
		if opts.StartOnly && i > 0 {
			break
		}
		if tokenEqual(tok, word, opts.CaseSensitive) {
			return strings.Join(append(tokens[:i:i], tokens[i+1:]...), " ")
		}
	}
	return strings.Join(tokens, " ")
}

func detect(text, word string, opts Options) bool {
	word = strings.TrimSpace(word)
	if word == "" {
		return false
	}
	for i, tok := range strings.Fields(text) {
		if opts.StartOnly && i > 0 {
			return false
		}
		if tokenEqual(tok, word, opts.CaseSensitive) {
			return true
		}
	}
	return false
}

// tokenEqual compares a whole token against the wakeword. Substring matches
// are deliberately not matches: "aurora" must not match inside "auroral".
func tokenEqual(tok, word string, caseSensitive bool) bool {
	if caseSensitive {
		return tok == word
	}
	return strings.EqualFold(tok, word)
}
