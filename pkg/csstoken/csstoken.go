// Package csstoken streams CSS tokens together with their byte offsets.
package csstoken

import (
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// Token is a lexical CSS token occupying Text[Start:End].
type Token struct {
	Type  css.TokenType
	Start int
	End   int
	Data  []byte
}

// String returns the token text.
func (t Token) String() string {
	return string(t.Data)
}

// Tokenize lexes text and calls fn for every token in order. Tokens are
// contiguous: each one starts where the previous one ended, so whitespace
// and comments are reported too. The final EOF token is not reported.
func Tokenize(text string, fn func(Token)) {
	l := css.NewLexer(parse.NewInputString(text))
	offset := 0
	for {
		tt, data := l.Next()
		if tt == css.ErrorToken {
			return
		}
		fn(Token{
			Type:  tt,
			Start: offset,
			End:   offset + len(data),
			Data:  data,
		})
		offset += len(data)
	}
}

// All returns every token of text. Token data is copied so it stays valid
// after lexing finishes.
func All(text string) []Token {
	var tokens []Token
	Tokenize(text, func(t Token) {
		t.Data = append([]byte(nil), t.Data...)
		tokens = append(tokens, t)
	})
	return tokens
}
