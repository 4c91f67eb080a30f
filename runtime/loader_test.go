package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCensoredWords(t *testing.T) {
	req := require.New(t)

	data, err := LoadCensoredWords()

	req.NoError(err)
	req.NotEmpty(data.Words)
	req.Contains(data.Languages, "en")
	req.Contains(data.Languages, "fr")
	req.Contains(data.Words, "spam")

	// Words shared by several dictionaries appear once
	seen := make(map[string]int)
	for _, w := range data.Words {
		seen[w]++
	}
	req.Equal(1, seen["idiot"])

	// Dictionary comment lines are not words
	for _, w := range data.Words {
		req.False(w[0] == '#', "comment line leaked into word list: %s", w)
	}
}
