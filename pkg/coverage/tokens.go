package coverage

import (
	"github.com/tdewolff/parse/v2/css"

	"github.com/jupierce/css-coverage-analysis/pkg/csstoken"
)

// TokenWeight returns how many alignment positions a token of type tt
// occupies. Tokens a formatter may add, drop or rewrite (whitespace,
// comments, semicolons and colons) weigh 0 and are ignored. A URL token
// weighs 3 because formatters may spell it as a function, a string and a
// closing parenthesis.
func TokenWeight(tt css.TokenType) int {
	switch tt {
	case css.ErrorToken,
		css.BadStringToken,
		css.BadURLToken,
		css.WhitespaceToken,
		css.SemicolonToken,
		css.CommentToken,
		css.ColonToken:
		return 0
	case css.URLToken:
		return 3
	default:
		return 1
	}
}

// alignedToken is a token that takes part in alignment. Index is its
// position in the sequence of weighted tokens of the text.
type alignedToken struct {
	Index int
	Start int
	End   int
}

// alignedTokens lexes text and returns its weighted tokens in order.
func alignedTokens(text string) []alignedToken {
	var (
		out   []alignedToken
		index int
	)
	csstoken.Tokenize(text, func(t csstoken.Token) {
		w := TokenWeight(t.Type)
		if w == 0 {
			return
		}
		index += w
		out = append(out, alignedToken{Index: index, Start: t.Start, End: t.End})
	})
	return out
}
