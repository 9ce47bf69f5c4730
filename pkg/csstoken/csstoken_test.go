package csstoken

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tdewolff/parse/v2/css"
)

func TestAllOffsets(t *testing.T) {
	text := "a { color: red }"
	tokens := All(text)
	require.NotEmpty(t, tokens)

	assert.Equal(t, 0, tokens[0].Start)
	assert.Equal(t, len(text), tokens[len(tokens)-1].End)
	for i, tok := range tokens {
		assert.Equal(t, text[tok.Start:tok.End], tok.String())
		if i > 0 {
			assert.Equal(t, tokens[i-1].End, tok.Start)
		}
	}
}

func TestAllTypes(t *testing.T) {
	var types []css.TokenType
	for _, tok := range All("a{b:url(x)}") {
		types = append(types, tok.Type)
	}
	assert.Equal(t, []css.TokenType{
		css.IdentToken,
		css.LeftBraceToken,
		css.IdentToken,
		css.ColonToken,
		css.URLToken,
		css.RightBraceToken,
	}, types)
}

func TestTokenizeEmpty(t *testing.T) {
	called := false
	Tokenize("", func(Token) { called = true })
	assert.False(t, called)
}
