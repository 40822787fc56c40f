// Package vocab builds the word and character index mappings used by the
// tagger. Indices are assigned in first-seen order and never removed.
package vocab

import (
	"fmt"
	"strings"

	"github.com/golangast/seqtagger/tagger/tag"
)

// Vocabulary represents the mapping between tokens and indices.
type Vocabulary[T comparable] struct {
	TokenToID map[T]int
	IDToToken []T
}

// NewVocabulary creates an empty Vocabulary with initialized maps.
func NewVocabulary[T comparable]() *Vocabulary[T] {
	return &Vocabulary[T]{TokenToID: make(map[T]int)}
}

// AddToken assigns the next free index to token if it has not been seen and
// returns its index.
func (v *Vocabulary[T]) AddToken(token T) int {
	if id, ok := v.TokenToID[token]; ok {
		return id
	}
	id := len(v.IDToToken)
	v.TokenToID[token] = id
	v.IDToToken = append(v.IDToToken, token)
	return id
}

// GetTokenID retrieves the index for token.
func (v *Vocabulary[T]) GetTokenID(token T) (int, bool) {
	id, ok := v.TokenToID[token]
	return id, ok
}

// GetToken retrieves the token stored at id.
func (v *Vocabulary[T]) GetToken(id int) (T, bool) {
	if id < 0 || id >= len(v.IDToToken) {
		var zero T
		return zero, false
	}
	return v.IDToToken[id], true
}

// Size returns the number of distinct tokens.
func (v *Vocabulary[T]) Size() int {
	return len(v.IDToToken)
}

// Format renders the vocabulary in index order using verb for each token,
// e.g. {"The": 0, "dog": 1} for %q.
func (v *Vocabulary[T]) Format(verb string) string {
	var b strings.Builder
	b.WriteByte('{')
	for id, token := range v.IDToToken {
		if id > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, verb+": %d", token, id)
	}
	b.WriteByte('}')
	return b.String()
}

// Vocabularies holds the word and character mappings built from a corpus.
type Vocabularies struct {
	Words *Vocabulary[string]
	Chars *Vocabulary[rune]
}

// Build scans examples in order, adding each word and then each of its
// characters the first time they are seen.
func Build(examples []tag.Example) *Vocabularies {
	v := &Vocabularies{
		Words: NewVocabulary[string](),
		Chars: NewVocabulary[rune](),
	}
	for _, ex := range examples {
		for _, word := range ex.Tokens {
			v.Words.AddToken(word)
			for _, r := range word {
				v.Chars.AddToken(r)
			}
		}
	}
	return v
}
