package vocab

import (
	"testing"

	"github.com/golangast/seqtagger/tagger/tag"
	"github.com/google/go-cmp/cmp"
)

func TestBuildFirstSeenOrder(t *testing.T) {
	v := Build(tag.Corpus())

	wantWords := []string{"The", "dog", "ate", "the", "apple", "Everybody", "read", "that", "book"}
	if diff := cmp.Diff(wantWords, v.Words.IDToToken); diff != "" {
		t.Errorf("word order mismatch (-want +got):\n%s", diff)
	}

	wantChars := []rune("ThedogatplEvrybk")
	if diff := cmp.Diff(wantChars, v.Chars.IDToToken); diff != "" {
		t.Errorf("char order mismatch (-want +got):\n%s", diff)
	}

	for id, word := range v.Words.IDToToken {
		got, ok := v.Words.GetTokenID(word)
		if !ok || got != id {
			t.Errorf("GetTokenID(%q) = %d, %v; expected %d", word, got, ok, id)
		}
	}
}

func TestBuildDeterministic(t *testing.T) {
	a := Build(tag.Corpus())
	b := Build(tag.Corpus())
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("vocabularies differ between runs (-a +b):\n%s", diff)
	}
}

func TestAddTokenIsAppendOnly(t *testing.T) {
	v := NewVocabulary[string]()
	testCases := []struct {
		token    string
		expected int
	}{
		{"a", 0},
		{"b", 1},
		{"a", 0},
		{"c", 2},
		{"b", 1},
	}
	for _, tc := range testCases {
		if got := v.AddToken(tc.token); got != tc.expected {
			t.Errorf("AddToken(%q) = %d; expected %d", tc.token, got, tc.expected)
		}
	}
	if v.Size() != 3 {
		t.Errorf("Size() = %d; expected 3", v.Size())
	}
	if _, ok := v.GetTokenID("z"); ok {
		t.Errorf("GetTokenID(%q) found an unseen token", "z")
	}
	if _, ok := v.GetToken(3); ok {
		t.Errorf("GetToken(3) found an out of range id")
	}
}

func TestFormat(t *testing.T) {
	v := NewVocabulary[rune]()
	v.AddToken('T')
	v.AddToken('h')
	if got, want := v.Format("%q"), "{'T': 0, 'h': 1}"; got != want {
		t.Errorf("Format() = %s; expected %s", got, want)
	}
}
