package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstAfterFifth(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"single word", "avalanche", "avalanche"},
		{"skips short covering word", "avalanche: a pytorch library for deep continual learning", "pytorch"},
		{"covering word returned", "continual learning with deep architectures", "continual"},
		{"short input", "ab", "ab"},
		// len 17, position 3 lands on the space after "abc": the word
		// starting right there is the prefilter.
		{"position on joining space", "abc defghij klmno", "defghij"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FirstAfterFifth(tt.in))
		})
	}
}

func TestFirstAfterFifth_Deterministic(t *testing.T) {
	in := "a survey of transfer learning methods"
	first := FirstAfterFifth(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, FirstAfterFifth(in))
	}
}

func TestIsFirstWordShort(t *testing.T) {
	assert.True(t, IsFirstWordShort("j smith"))
	assert.True(t, IsFirstWordShort("a"))
	assert.False(t, IsFirstWordShort("ada lovelace"))
	assert.False(t, IsFirstWordShort(""))
	assert.False(t, IsFirstWordShort("   "))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "some title", Sanitize("  some title  "))
	assert.Equal(t, "ab", Sanitize(`a<>:"/\|?*b`))
	assert.Equal(t, "", Sanitize(""))
	assert.Equal(t, "attention is all you need", Sanitize("attention is all you need"))
}

func TestFold(t *testing.T) {
	assert.Equal(t, "jose garcia", Fold("José García"))
	assert.Equal(t, "francois", Fold("François"))
	assert.Equal(t, "plain", Fold("plain"))
}

func TestAuthorPrefilter(t *testing.T) {
	tests := []struct {
		name         string
		in           string
		wantInitials string
		wantSurname  string
	}{
		{"full first name", "ada lovelace", "ad", "lovelace"},
		{"dotted initial", "a. lovelace", "a", "lovelace"},
		{"bare initial", "a lovelace", "a", "lovelace"},
		{"single token", "lovelace", "lo", "lovelace"},
		{"empty", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			initials, surname := AuthorPrefilter(tt.in)
			assert.Equal(t, tt.wantInitials, initials)
			assert.Equal(t, tt.wantSurname, surname)
		})
	}
}
