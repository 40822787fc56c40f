package tag

import (
	"errors"
	"testing"
)

func TestDefaultSet(t *testing.T) {
	s := DefaultSet()
	testCases := []struct {
		name  string
		index int
	}{
		{DET, 0},
		{NN, 1},
		{V, 2},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			idx, err := s.Index(tc.name)
			if err != nil || idx != tc.index {
				t.Errorf("Index(%q) = %d, %v; expected %d", tc.name, idx, err, tc.index)
			}
			name, err := s.Name(tc.index)
			if err != nil || name != tc.name {
				t.Errorf("Name(%d) = %q, %v; expected %q", tc.index, name, err, tc.name)
			}
		})
	}

	if _, err := s.Index("ADJ"); !errors.Is(err, ErrUnknownTag) {
		t.Errorf("Index(ADJ) error = %v; expected ErrUnknownTag", err)
	}
	if _, err := s.Name(3); !errors.Is(err, ErrUnknownTag) {
		t.Errorf("Name(3) error = %v; expected ErrUnknownTag", err)
	}
}

func TestCorpusAligned(t *testing.T) {
	for _, ex := range Corpus() {
		if len(ex.Tokens) != len(ex.Tags) {
			t.Errorf("%q has %d tokens and %d tags", ex.Sentence(), len(ex.Tokens), len(ex.Tags))
		}
	}
}
