package tag

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTag is returned when a tag name or index is not part of a Set.
var ErrUnknownTag = errors.New("unknown tag")

// Part-of-speech tags used by the toy corpus.
const (
	DET = "DET"
	NN  = "NN"
	V   = "V"
)

// Example is a training sentence paired with one tag per token.
type Example struct {
	Tokens []string `json:"tokens" yaml:"tokens"`
	Tags   []string `json:"tags" yaml:"tags"`
}

// NewExample splits sentence on whitespace and pairs it with tags.
func NewExample(sentence string, tags ...string) Example {
	return Example{Tokens: strings.Fields(sentence), Tags: tags}
}

// Sentence joins the tokens back into text.
func (e Example) Sentence() string {
	return strings.Join(e.Tokens, " ")
}

// Corpus returns the two-sentence training set.
func Corpus() []Example {
	return []Example{
		NewExample("The dog ate the apple", DET, NN, V, DET, NN),
		NewExample("Everybody read that book", NN, V, DET, NN),
	}
}

// Set is a fixed enumeration of tags with forward and inverse mappings.
type Set struct {
	names []string
	index map[string]int
}

// NewSet creates a Set where names[i] has index i.
func NewSet(names ...string) *Set {
	s := &Set{names: names, index: make(map[string]int, len(names))}
	for i, name := range names {
		s.index[name] = i
	}
	return s
}

// DefaultSet returns DET=0, NN=1, V=2.
func DefaultSet() *Set {
	return NewSet(DET, NN, V)
}

// Len returns the number of tags.
func (s *Set) Len() int { return len(s.names) }

// Names returns the tags in index order.
func (s *Set) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Index returns the index of name.
func (s *Set) Index(name string) (int, error) {
	i, ok := s.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTag, name)
	}
	return i, nil
}

// Name returns the tag at index i.
func (s *Set) Name(i int) (string, error) {
	if i < 0 || i >= len(s.names) {
		return "", fmt.Errorf("%w: index %d", ErrUnknownTag, i)
	}
	return s.names[i], nil
}

// Indices maps every tag in tags to its index.
func (s *Set) Indices(tags []string) ([]int, error) {
	idxs := make([]int, len(tags))
	for i, t := range tags {
		idx, err := s.Index(t)
		if err != nil {
			return nil, err
		}
		idxs[i] = idx
	}
	return idxs, nil
}
